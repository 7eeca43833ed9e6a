package scheduler

import "github.com/otcheredev/wado-download-engine/internal/wado"

// less orders two priority keys: user-selected series first, then
// patient/study/series identity for grouping, then FIFO within a group.
func less(a, b wado.PriorityKey) bool {
	if a.Selected != b.Selected {
		return a.Selected
	}
	if a.PatientKey != b.PatientKey {
		return a.PatientKey < b.PatientKey
	}
	if a.StudyKey != b.StudyKey {
		return a.StudyKey < b.StudyKey
	}
	if a.SeriesKey != b.SeriesKey {
		return a.SeriesKey < b.SeriesKey
	}
	return a.EnqueueSeq < b.EnqueueSeq
}
