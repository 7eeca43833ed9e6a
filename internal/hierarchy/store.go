// Package hierarchy is the object-model adapter: the boundary between
// the download engine and whatever owns the patient/study/series tree
// the caller already has open. The engine never constructs this tree;
// it only asks it questions and merges metadata into it as UIDs are
// learned mid-download.
package hierarchy

import (
	"github.com/otcheredev/wado-download-engine/internal/wado"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Patient is a minimal patient-level record: enough to answer tag
// overrides and merges. The clinical model itself lives outside this
// module.
type Patient struct {
	UID    string
	Name   string
	Values map[tag.Tag]string
}

// Study is a minimal study-level record, parented by a patient UID.
type Study struct {
	UID         string
	PatientUID  string
	Description string
	Values      map[tag.Tag]string
}

// Series is a minimal series-level record, parented by a study UID,
// tracking every SOP instance UID it has already downloaded so
// cross-split duplicate checks work study-wide.
type Series struct {
	UID      string
	StudyUID string
	SOPUIDs  map[string]struct{}
}

// Store is the object-model adapter contract. Implementations may be
// in-memory (tests, single-process deployments) or a thin shim over a
// caller-owned tree living elsewhere in the host application.
type Store interface {
	// ParentOfSeries returns the study a series belongs to.
	ParentOfSeries(seriesUID string) (Study, bool)
	// ParentOfStudy returns the patient a study belongs to.
	ParentOfStudy(studyUID string) (Patient, bool)

	// HasSOPInstance reports whether sopUID has already been recorded
	// anywhere under studyUID, including series that arose from a
	// prior split of the same acquisition.
	HasSOPInstance(studyUID, sopUID string) bool
	// RecordSOPInstance marks sopUID as downloaded under seriesUID
	// (and, transitively, its study).
	RecordSOPInstance(seriesUID, sopUID string)

	// MergePatientUID folds the records held under oldUID onto newUID
	// (typically a UID newly read off a downloaded file); newUID is the
	// surviving key. Idempotent: merging a UID into itself is a no-op.
	// No series or study loses its parent as a result.
	MergePatientUID(oldUID, newUID string) error
	// MergeStudyUID folds the study held under oldUID onto newUID,
	// same direction and guarantees as MergePatientUID.
	MergeStudyUID(oldUID, newUID string) error

	// TagValue resolves the authoritative value of t for a series,
	// checking the owning patient first and falling back to the
	// owning study (patient wins on conflict).
	TagValue(seriesUID string, t tag.Tag) (string, bool)

	// Publish hands an event to every registered listener, one at a
	// time per listener, in publish order.
	Publish(e wado.Event)
	// Subscribe registers a listener for every future Publish call.
	Subscribe(sink wado.EventSink)
}
