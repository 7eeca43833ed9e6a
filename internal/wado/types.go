// Package wado holds the data model shared by the download engine:
// endpoints, series/instance references, tasks, jobs, and priority keys.
package wado

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// WadoEndpoint describes a remote WADO-URI or WADO-RS origin. It is
// immutable once attached to a series.
type WadoEndpoint struct {
	BaseURL          string
	AdditionalQuery  string // begins with "&" or empty
	WadoRS           bool   // true: multipart WADO-RS, false: single-object WADO-URI
	SOPOnly          bool   // omit studyUID/seriesUID query params
	TagOverrides     []uint32
	PreferredQuality int
}

// SopInstanceRef uniquely identifies one DICOM object within a series.
type SopInstanceRef struct {
	SOPInstanceUID   string
	Frame            int // 0 when not a multiframe sub-reference
	DirectURL        string
	PresentationUID  string
	IsCanonicalFrame bool // false marks this as a duplicate frame reference
}

// Key returns the (uid, frame) identity pair for deduplication.
func (s SopInstanceRef) Key() string {
	if s.Frame == 0 {
		return s.SOPInstanceUID
	}
	return s.SOPInstanceUID + "#" + strconv.Itoa(s.Frame)
}

// SeriesRef is the enumerated unit of work: one DICOM series and its
// ordered instances.
type SeriesRef struct {
	SeriesInstanceUID   string
	StudyInstanceUID    string
	PatientPseudoUID    string
	Instances           []SopInstanceRef
	ContainsMultiframes bool
	PreferredTSUID      string
	Endpoint            WadoEndpoint
}

// Status is the lifecycle state of a LoadSeriesTask.
type Status int

const (
	StatusQueued Status = iota
	StatusDownloading
	StatusPaused
	StatusComplete
	StatusError
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusDownloading:
		return "downloading"
	case StatusPaused:
		return "paused"
	case StatusComplete:
		return "complete"
	case StatusError:
		return "error"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// OpeningStrategy hints how the host will present the series once
// instances start arriving (not interpreted by the engine itself).
type OpeningStrategy int

const (
	OpenDefault OpeningStrategy = iota
	OpenBestPreview
)

// JobStatus is the terminal-or-not state of a single DownloadJob.
type JobStatus int

const (
	JobDownloading JobStatus = iota
	JobComplete
	JobError
	JobCancelled
	JobSkipped
)

// CacheEntry records where one successfully downloaded instance landed.
type CacheEntry struct {
	Path    string
	Source  SopInstanceRef
	IsTemp  bool
	Written time.Time
}

// PriorityKey orders LoadSeriesTasks in the scheduler. Lower Less()
// value (by the comparator in internal/scheduler) runs first.
type PriorityKey struct {
	PatientKey string
	StudyKey   string
	SeriesKey  string
	Selected   bool
	Weight     int
	EnqueueSeq uint64
}

// TaskID identifies a LoadSeriesTask across the scheduler, manager, and
// management API.
type TaskID = uuid.UUID

func NewTaskID() TaskID { return uuid.New() }
