// Package scheduler orders queued series downloads and bounds how many
// run at once across the whole engine, independent of the per-series
// concurrency cap the download manager applies to a single series'
// instances.
package scheduler

import (
	"container/heap"
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/otcheredev/wado-download-engine/internal/wado"
)

// Entry is one queued unit of work. Start is invoked once a global
// concurrency slot is free and this entry reaches the head of the
// queue; it must return once the series finishes, errors, or is
// cancelled so the scheduler can release the slot.
type Entry struct {
	Key    wado.PriorityKey
	TaskID wado.TaskID
	Start  func(ctx context.Context)

	index int // heap bookkeeping, owned by Scheduler
}

type entryHeap []*Entry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return less(h[i].Key, h[j].Key) }
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *entryHeap) Push(x any)        { e := x.(*Entry); e.index = len(*h); *h = append(*h, e) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Scheduler is a priority queue of pending series downloads gated by a
// global concurrency cap. Re-keying (a user selecting a different
// series mid-flight) reorders pending entries without preempting
// whatever is already running.
type Scheduler struct {
	mu     sync.Mutex
	cond   *sync.Cond
	heap   entryHeap
	byTask map[wado.TaskID]*Entry
	sem    *semaphore.Weighted
	closed bool
}

// New builds a Scheduler that runs at most globalConcurrency series at
// once.
func New(globalConcurrency int64) *Scheduler {
	s := &Scheduler{
		byTask: make(map[wado.TaskID]*Entry),
		sem:    semaphore.NewWeighted(globalConcurrency),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Enqueue adds a new entry to the queue.
func (s *Scheduler) Enqueue(e *Entry) {
	s.mu.Lock()
	heap.Push(&s.heap, e)
	s.byTask[e.TaskID] = e
	s.mu.Unlock()
	s.cond.Signal()
}

// Reprioritize updates an already-queued entry's key (typically
// setting Selected=true when the user picks a different series) and
// restores heap order. A no-op if the task already started running
// and left the queue.
func (s *Scheduler) Reprioritize(taskID wado.TaskID, key wado.PriorityKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byTask[taskID]
	if !ok || e.index < 0 {
		return
	}
	e.Key = key
	heap.Fix(&s.heap, e.index)
}

// Cancel removes a queued entry before it starts running. Returns
// false if the task already started (or never existed) and the caller
// must cancel it through its own cancellation token instead.
func (s *Scheduler) Cancel(taskID wado.TaskID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byTask[taskID]
	if !ok || e.index < 0 {
		return false
	}
	heap.Remove(&s.heap, e.index)
	delete(s.byTask, taskID)
	return true
}

// Run drives the queue until ctx is done: it blocks for a free global
// slot, pops the highest-priority entry, and runs its Start callback
// in its own goroutine, releasing the slot when Start returns.
func (s *Scheduler) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.cond.Broadcast()
	}()

	for {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return err
		}

		e, ok := s.next(ctx)
		if !ok {
			s.sem.Release(1)
			return ctx.Err()
		}

		go func(e *Entry) {
			defer s.sem.Release(1)
			e.Start(ctx)
		}(e)
	}
}

func (s *Scheduler) next(ctx context.Context) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.heap.Len() == 0 && !s.closed {
		s.cond.Wait()
	}
	if s.heap.Len() == 0 {
		return nil, false
	}

	e := heap.Pop(&s.heap).(*Entry)
	delete(s.byTask, e.TaskID)
	return e, true
}

// Len reports the number of entries still waiting to run.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heap.Len()
}
