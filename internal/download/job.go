package download

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/otcheredev/wado-download-engine/internal/cache"
	"github.com/otcheredev/wado-download-engine/internal/hierarchy"
	"github.com/otcheredev/wado-download-engine/internal/wado"
	"github.com/otcheredev/wado-download-engine/pkg/dicomrewrite"
)

// sopDedupeTTL bounds how long a recorded SOP instance's cross-restart
// dedupe marker survives in cache.Cache. The in-memory hierarchy.Store
// covers dedup within a process lifetime; this covers a restart
// landing mid-series.
const sopDedupeTTL = 7 * 24 * time.Hour

// tagsFromUints unpacks each uint32 into a (group, element) pair, high
// 16 bits first, matching how WadoEndpoint.TagOverrides is populated
// from config (0xGGGGEEEE).
func tagsFromUints(raw []uint32) []tag.Tag {
	tags := make([]tag.Tag, 0, len(raw))
	for _, v := range raw {
		tags = append(tags, tag.Tag{Group: uint16(v >> 16), Element: uint16(v & 0xFFFF)})
	}
	return tags
}

// Job is one SOP instance's download: fetch, optionally rewrite tags,
// and land the result under cacheDir (or a throwaway temp file when
// writeInCache is false).
type Job struct {
	TaskID     wado.TaskID
	TenantID   string
	Task       *Task
	Endpoint   wado.WadoEndpoint
	Series     wado.SeriesRef
	Instance   wado.SopInstanceRef
	CacheDir   string
	TmpDir     string
	WriteCache bool

	Retriever Retriever
	Store     hierarchy.Store
	Cache     cache.Cache
	Sink      wado.EventSink
}

// Run executes the job once. Every outcome — transient HTTP failure,
// unsupported transfer syntax, decode error, or auth rejection — is
// reported as a JobError the caller folds into the task's error
// counter; none of them abort the series. Only context cancellation
// unwinds the call without attempting a write.
func (j *Job) Run(ctx context.Context) *wado.JobError {
	if err := ctx.Err(); err != nil {
		return &wado.JobError{Kind: wado.JobErrCancelled, Err: wado.ErrCancelled}
	}

	if j.dedupe(ctx) {
		log.Debug().Str("sop_uid", j.Instance.SOPInstanceUID).Msg("skipping already-downloaded instance")
		return nil
	}

	transferSyntax := j.Series.PreferredTSUID
	body, err := j.Retriever.Fetch(ctx, j.Endpoint, j.Series, j.Instance, transferSyntax)
	if err != nil {
		return classifyFetchError(err)
	}

	jobErr := j.writeBody(ctx, body)
	if jobErr != nil && errors.Is(jobErr.Err, wado.ErrUnsupportedTsuid) && transferSyntax != defaultTransferSyntax {
		body, err = j.Retriever.Fetch(ctx, j.Endpoint, j.Series, j.Instance, defaultTransferSyntax)
		if err != nil {
			return classifyFetchError(err)
		}
		jobErr = j.writeBody(ctx, body)
	}

	if jobErr != nil {
		return jobErr
	}

	if j.Task != nil {
		if j.Task.ClaimFirstInstance() {
			destPath, pathErr := j.destinationPath()
			if pathErr == nil {
				j.reconcileFirstInstance(destPath)
			}
			j.Task.MarkFirstInstanceDone()
		} else if err := j.Task.WaitFirstInstance(ctx); err != nil {
			return &wado.JobError{Kind: wado.JobErrCancelled, Err: wado.ErrCancelled}
		}
	}

	j.recordAndPublish(ctx)
	return nil
}

// reconcileFirstInstance implements the first-instance metadata
// effect: the first job to land a file for a series reads its actual
// patient/study UIDs and, if they differ from the worklist entry's
// pseudo UIDs, asks the adapter to merge the groups before publishing
// its own add event. This resolves anonymization mismatches between a
// worklist entry and the image headers it actually points at.
func (j *Job) reconcileFirstInstance(destPath string) {
	if j.Store == nil {
		return
	}

	patientUID, studyUID, err := dicomrewrite.ReadIdentity(destPath)
	if err != nil {
		log.Warn().Err(err).Str("sop_uid", j.Instance.SOPInstanceUID).Msg("first-instance identity read failed, parents left unreconciled")
		return
	}

	if patientUID != "" && patientUID != j.Series.PatientPseudoUID {
		if err := j.Store.MergePatientUID(j.Series.PatientPseudoUID, patientUID); err != nil {
			log.Warn().Err(err).Msg("patient UID merge rejected")
		}
	}
	if studyUID != "" && studyUID != j.Series.StudyInstanceUID {
		if err := j.Store.MergeStudyUID(j.Series.StudyInstanceUID, studyUID); err != nil {
			log.Warn().Err(err).Msg("study UID merge rejected")
			return
		}
	}

	if j.Sink != nil {
		j.Sink.Publish(wado.Event{
			Kind:      wado.EventUpdateParent,
			TaskID:    j.TaskID,
			SeriesUID: j.Series.SeriesInstanceUID,
		})
	}
}

// dedupe reports whether this instance should be skipped: either it's
// a non-canonical frame of an already-handled multiframe instance, its
// SOP UID already exists somewhere under the same study (a split
// series re-delivering instances another series already has), or it
// was already recorded in a prior process lifetime that crashed or
// restarted mid-series.
func (j *Job) dedupe(ctx context.Context) bool {
	if j.Series.ContainsMultiframes && !j.Instance.IsCanonicalFrame {
		return true
	}
	if j.Store != nil && j.Store.HasSOPInstance(j.Series.StudyInstanceUID, j.Instance.SOPInstanceUID) {
		return true
	}
	if j.Cache != nil {
		ok, err := j.Cache.Exists(ctx, j.sopDedupeKey())
		if err == nil && ok {
			return true
		}
	}
	return false
}

func (j *Job) recordAndPublish(ctx context.Context) {
	if j.Store != nil {
		j.Store.RecordSOPInstance(j.Series.SeriesInstanceUID, j.Instance.SOPInstanceUID)
	}
	if j.Cache != nil {
		if err := j.Cache.Set(ctx, j.sopDedupeKey(), []byte{1}, sopDedupeTTL); err != nil {
			log.Warn().Err(err).Str("sop_uid", j.Instance.SOPInstanceUID).Msg("failed to record cross-restart dedupe marker")
		}
	}
	if j.Sink != nil {
		j.Sink.Publish(wado.Event{
			Kind:      wado.EventAdd,
			TaskID:    j.TaskID,
			SeriesUID: j.Series.SeriesInstanceUID,
			Instance:  &j.Instance,
		})
	}
}

func (j *Job) sopDedupeKey() string {
	return cache.CacheKey(j.TenantID, j.Series.StudyInstanceUID, "", j.Instance.SOPInstanceUID, "sop-downloaded")
}

func (j *Job) writeBody(ctx context.Context, body io.ReadCloser) *wado.JobError {
	defer body.Close()

	destPath, err := j.destinationPath()
	if err != nil {
		return &wado.JobError{Kind: wado.JobErrDecode, Err: err}
	}

	if len(j.Endpoint.TagOverrides) == 0 {
		return j.copyRaw(body, destPath)
	}
	return j.rewriteTags(body, destPath)
}

func (j *Job) copyRaw(body io.Reader, destPath string) *wado.JobError {
	tmp, err := os.CreateTemp(j.TmpDir, "wado-*.part")
	if err != nil {
		return &wado.JobError{Kind: wado.JobErrDecode, Err: err}
	}
	tmpPath := tmp.Name()

	_, copyErr := io.Copy(tmp, body)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		if copyErr != nil {
			if errors.Is(copyErr, context.Canceled) {
				return &wado.JobError{Kind: wado.JobErrCancelled, Err: wado.ErrCancelled}
			}
			return &wado.JobError{Kind: wado.JobErrDecode, Err: copyErr}
		}
		return &wado.JobError{Kind: wado.JobErrDecode, Err: closeErr}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return &wado.JobError{Kind: wado.JobErrDecode, Err: err}
	}
	return nil
}

func (j *Job) rewriteTags(body io.Reader, destPath string) *wado.JobError {
	source := hierarchy.SeriesOverrideSource{Store: j.Store, SeriesUID: j.Series.SeriesInstanceUID}
	overrideTags := tagsFromUints(j.Endpoint.TagOverrides)

	tmpPath := destPath + ".part"
	_, err := dicomrewrite.Rewrite(body, tmpPath, overrideTags, source)
	if err != nil {
		if errors.Is(err, wado.ErrUnsupportedTsuid) {
			return &wado.JobError{Kind: wado.JobErrUnsupportedTsuid, Err: err}
		}
		return &wado.JobError{Kind: wado.JobErrDecode, Err: err}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return &wado.JobError{Kind: wado.JobErrDecode, Err: err}
	}
	return nil
}

func (j *Job) destinationPath() (string, error) {
	dir := j.TmpDir
	if j.WriteCache {
		dir = j.CacheDir
	}
	if dir == "" {
		return "", wado.ErrTmpDirMissing
	}
	return filepath.Join(dir, j.Instance.Key()+".dcm"), nil
}

func classifyFetchError(err error) *wado.JobError {
	switch {
	case errors.Is(err, wado.ErrCancelled):
		return &wado.JobError{Kind: wado.JobErrCancelled, Err: err}
	case errors.Is(err, wado.ErrAuthExpired), errors.Is(err, wado.ErrAuthRejected):
		return &wado.JobError{Kind: wado.JobErrFatalAuth, Err: err}
	default:
		return &wado.JobError{Kind: wado.JobErrTransientHTTP, Err: err}
	}
}
