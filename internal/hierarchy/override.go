package hierarchy

import "github.com/suyashkumar/dicom/pkg/tag"

// SeriesOverrideSource adapts a Store to dicomrewrite.OverrideSource
// for one series, so the rewriter never needs to know about studies,
// patients, or the store's locking.
type SeriesOverrideSource struct {
	Store     Store
	SeriesUID string
}

func (s SeriesOverrideSource) Value(t tag.Tag) (string, bool) {
	return s.Store.TagValue(s.SeriesUID, t)
}
