package download

import (
	"github.com/otcheredev/wado-download-engine/internal/models"
	"github.com/otcheredev/wado-download-engine/internal/wado"
)

// InstancesFromMetadata turns a parsed WADO-RS series metadata
// response into the SopInstanceRef list a LoadSeriesTask plans over.
// A multiframe instance (NumberOfFrames > 1) expands into one
// SopInstanceRef per frame, with frame 1 marked canonical so
// Job.dedupe skips the rest.
func InstancesFromMetadata(meta models.SeriesMetadataResponse) []wado.SopInstanceRef {
	refs := make([]wado.SopInstanceRef, 0, len(meta))
	for _, inst := range meta {
		if inst.NumberOfFrames <= 1 {
			refs = append(refs, wado.SopInstanceRef{
				SOPInstanceUID:   inst.SOPInstanceUID,
				IsCanonicalFrame: true,
			})
			continue
		}
		for frame := 1; frame <= inst.NumberOfFrames; frame++ {
			refs = append(refs, wado.SopInstanceRef{
				SOPInstanceUID:   inst.SOPInstanceUID,
				Frame:            frame,
				IsCanonicalFrame: frame == 1,
			})
		}
	}
	return refs
}

// ContainsMultiframes reports whether any instance in meta carries
// more than one frame, which flips SeriesRef.ContainsMultiframes so
// the dedup pass knows to collapse non-canonical frames.
func ContainsMultiframes(meta models.SeriesMetadataResponse) bool {
	for _, inst := range meta {
		if inst.NumberOfFrames > 1 {
			return true
		}
	}
	return false
}

// preferredTSUID scans a metadata response for a common transfer
// syntax every instance shares, falling back to "" (caller omits the
// query param and lets the origin choose) when instances disagree.
func preferredTSUID(meta models.SeriesMetadataResponse) string {
	if len(meta) == 0 {
		return ""
	}
	ts := meta[0].TransferSyntaxUID
	for _, inst := range meta[1:] {
		if inst.TransferSyntaxUID != ts {
			return ""
		}
	}
	return ts
}

// PlanSeriesRef builds a SeriesRef ready for NewTask out of a fetched
// WADO-RS metadata response and the endpoint/identity it came from.
func PlanSeriesRef(endpoint wado.WadoEndpoint, studyUID, seriesUID string, meta models.SeriesMetadataResponse) wado.SeriesRef {
	return wado.SeriesRef{
		SeriesInstanceUID:   seriesUID,
		StudyInstanceUID:    studyUID,
		Instances:           InstancesFromMetadata(meta),
		ContainsMultiframes: ContainsMultiframes(meta),
		PreferredTSUID:      preferredTSUID(meta),
		Endpoint:            endpoint,
	}
}
