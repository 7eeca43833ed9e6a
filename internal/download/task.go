package download

import (
	"context"
	"sync"
	"time"

	"github.com/otcheredev/wado-download-engine/internal/wado"
)

// firstInstanceClaim coordinates the single metadata reconciliation
// that runs against the first successfully written instance of a
// series: exactly one job claims it and every other job blocks its
// own adapter event until that job has finished.
type firstInstanceClaim struct {
	once sync.Once
	done chan struct{}
}

func newFirstInstanceClaim() *firstInstanceClaim {
	return &firstInstanceClaim{done: make(chan struct{})}
}

// Task is one LoadSeriesTask: the unit the scheduler queues and the
// manager executes. It owns the cancellation token for its series and
// tracks status transitions queued -> downloading -> {complete, error,
// cancelled}, with paused reachable and reversible from downloading.
type Task struct {
	ID              wado.TaskID
	TenantID        string
	Series          wado.SeriesRef
	Priority        wado.PriorityKey
	WriteInCache    bool
	OpeningStrategy wado.OpeningStrategy

	mu        sync.Mutex
	status    wado.Status
	errCount  int
	startedAt time.Time
	progress  *Progress

	ctx    context.Context
	cancel context.CancelFunc
	pauseC chan struct{} // closed while not paused; replaced on Pause

	firstInstance *firstInstanceClaim
}

// NewTask creates a queued task bound to parent's lifetime.
func NewTask(parent context.Context, series wado.SeriesRef, priority wado.PriorityKey, writeInCache bool, strategy wado.OpeningStrategy) *Task {
	ctx, cancel := context.WithCancel(parent)
	t := &Task{
		ID:              wado.NewTaskID(),
		Series:          series,
		Priority:        priority,
		WriteInCache:    writeInCache,
		OpeningStrategy: strategy,
		status:          wado.StatusQueued,
		ctx:             ctx,
		cancel:          cancel,
		pauseC:          closedChan(),
		firstInstance:   newFirstInstanceClaim(),
	}
	return t
}

func closedChan() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}

func (t *Task) Status() wado.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Task) setStatus(s wado.Status) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}

// Cancel transitions the task to cancelled and cancels its context,
// unblocking every in-flight job waiting on it.
func (t *Task) Cancel() {
	t.setStatus(wado.StatusCancelled)
	t.cancel()
}

// Pause blocks further job dispatch without cancelling in-flight work.
// Reversible only from StatusDownloading.
func (t *Task) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != wado.StatusDownloading {
		return
	}
	t.status = wado.StatusPaused
	t.pauseC = make(chan struct{})
}

// Resume reverses a Pause, allowing dispatch to continue.
func (t *Task) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != wado.StatusPaused {
		return
	}
	t.status = wado.StatusDownloading
	close(t.pauseC)
}

// waitIfPaused blocks until the task is resumed or cancelled.
func (t *Task) waitIfPaused(ctx context.Context) error {
	t.mu.Lock()
	ch := t.pauseC
	t.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClaimFirstInstance returns true exactly once per task, to whichever
// job reaches it first. That job is responsible for reconciling
// patient/study metadata against the downloaded file before any job
// (including itself) publishes its own adapter event.
func (t *Task) ClaimFirstInstance() bool {
	claimed := false
	t.firstInstance.once.Do(func() { claimed = true })
	return claimed
}

// MarkFirstInstanceDone releases every job blocked in
// WaitFirstInstance. Called exactly once, by the job that won
// ClaimFirstInstance.
func (t *Task) MarkFirstInstanceDone() {
	close(t.firstInstance.done)
}

// WaitFirstInstance blocks until the first-instance reconciliation
// has completed, or ctx is done.
func (t *Task) WaitFirstInstance(ctx context.Context) error {
	select {
	case <-t.firstInstance.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Task) recordError() {
	t.mu.Lock()
	t.errCount++
	t.mu.Unlock()
}

func (t *Task) ErrorCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errCount
}

// ProgressSnapshot reports how many instances have finished. A task
// that hasn't started running yet (Manager.Run assigns progress)
// reports an empty, indeterminate snapshot.
func (t *Task) ProgressSnapshot() Snapshot {
	t.mu.Lock()
	p := t.progress
	t.mu.Unlock()
	if p == nil {
		return Snapshot{Indeterminate: true}
	}
	return p.Snapshot()
}
