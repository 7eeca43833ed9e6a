// Package download implements the core of the engine: planning an
// instance order for a series, fanning its instances out across a
// bounded worker pool, and folding per-job outcomes into one task
// result without ever letting a single instance's failure abort the
// whole series.
package download

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/rs/zerolog/log"

	"github.com/otcheredev/wado-download-engine/internal/cache"
	"github.com/otcheredev/wado-download-engine/internal/hierarchy"
	"github.com/otcheredev/wado-download-engine/internal/wado"
)

// Manager runs LoadSeriesTasks. EngineService.SubmitSeries builds a
// fresh Manager for each task it queues, carrying that task's endpoint
// retriever.
type Manager struct {
	SeriesConcurrency int64
	CacheDir          string
	TmpDir            string

	Retriever Retriever
	Store     hierarchy.Store
	Cache     cache.Cache
	Sink      wado.EventSink
}

// Run drives task to completion: it blocks until every instance has
// been attempted or the task is cancelled. No per-instance outcome —
// transient HTTP failure, unsupported transfer syntax, decode error,
// or rejected/expired auth — aborts the series; each is folded into
// the task's error counter and progress, and the remaining instances
// still run. Only cancellation stops dispatch early.
func (m *Manager) Run(ctx context.Context, task *Task) error {
	task.setStatus(wado.StatusDownloading)
	task.startedAt = time.Now()
	m.publish(task, wado.EventLoadingStart)

	instances := task.Series.Instances
	order := planOrder(len(instances))
	progress := NewProgress(len(instances))
	task.progress = progress

	sem := semaphore.NewWeighted(m.seriesConcurrency())
	g, gctx := errgroup.WithContext(task.ctx)

	for _, idx := range order {
		idx := idx
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}

		g.Go(func() error {
			defer sem.Release(1)
			return m.runOne(gctx, task, instances[idx], progress)
		})
	}

	g.Wait()

	if task.ctx.Err() != nil {
		task.setStatus(wado.StatusCancelled)
		m.publish(task, wado.EventLoadingCancel)
		return nil
	}

	task.setStatus(wado.StatusComplete)
	m.publish(task, wado.EventLoadingStop)
	return nil
}

func (m *Manager) runOne(ctx context.Context, task *Task, instance wado.SopInstanceRef, progress *Progress) error {
	if err := task.waitIfPaused(ctx); err != nil {
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}

	job := &Job{
		TaskID:     task.ID,
		TenantID:   task.TenantID,
		Task:       task,
		Endpoint:   task.Series.Endpoint,
		Series:     task.Series,
		Instance:   instance,
		CacheDir:   m.CacheDir,
		TmpDir:     m.TmpDir,
		WriteCache: task.WriteInCache,
		Retriever:  m.Retriever,
		Store:      m.Store,
		Cache:      m.Cache,
		Sink:       m.Sink,
	}

	jobErr := job.Run(ctx)
	if jobErr == nil {
		progress.MarkDone()
		return nil
	}

	switch jobErr.Kind {
	case wado.JobErrCancelled:
		return nil
	case wado.JobErrFatalAuth:
		log.Warn().
			Str("sop_uid", instance.SOPInstanceUID).
			Str("series_uid", task.Series.SeriesInstanceUID).
			Err(jobErr).
			Msg("instance auth rejected, continuing series")
		progress.MarkError()
		task.recordError()
		return nil
	default:
		log.Warn().
			Str("sop_uid", instance.SOPInstanceUID).
			Str("series_uid", task.Series.SeriesInstanceUID).
			Err(jobErr).
			Msg("instance download failed, continuing series")
		progress.MarkError()
		task.recordError()
		return nil
	}
}

func (m *Manager) seriesConcurrency() int64 {
	if m.SeriesConcurrency <= 0 {
		return 1
	}
	return m.SeriesConcurrency
}

func (m *Manager) publish(task *Task, kind wado.EventKind) {
	if m.Sink == nil {
		return
	}
	m.Sink.Publish(wado.Event{
		Kind:      kind,
		TaskID:    task.ID,
		SeriesUID: task.Series.SeriesInstanceUID,
	})
}
