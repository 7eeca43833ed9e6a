package models

// InstanceMetadata is one instance entry from a WADO-RS series
// metadata response (GET .../series/{uid}/metadata), keyed by DICOM
// tag the way the wire format actually sends it. It is the input the
// engine parses into a wado.SopInstanceRef before planning a download.
type InstanceMetadata struct {
	SOPInstanceUID    string `json:"00080018" dicom:"00080018"`
	SOPClassUID       string `json:"00080016" dicom:"00080016"`
	InstanceNumber    int    `json:"00200013" dicom:"00200013"`
	TransferSyntaxUID string `json:"00020010" dicom:"00020010"`
	NumberOfFrames    int    `json:"00280008" dicom:"00280008"`
	RetrieveURL       string `json:"00081190,omitempty"`
}

// SeriesMetadataResponse is the parsed top-level JSON array a WADO-RS
// metadata endpoint returns: one InstanceMetadata per element.
type SeriesMetadataResponse []InstanceMetadata
