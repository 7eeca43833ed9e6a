package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/otcheredev/wado-download-engine/internal/wado"
)

func TestSchedulerRunsSelectedEntryFirst(t *testing.T) {
	s := New(1)

	var mu sync.Mutex
	var order []string

	record := func(name string) func(ctx context.Context) {
		return func(ctx context.Context) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	s.Enqueue(&Entry{TaskID: wado.NewTaskID(), Key: wado.PriorityKey{EnqueueSeq: 1}, Start: record("first-in")})
	s.Enqueue(&Entry{TaskID: wado.NewTaskID(), Key: wado.PriorityKey{Selected: true, EnqueueSeq: 2}, Start: record("selected")})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go s.Run(ctx)

	deadline := time.Now().Add(500 * time.Millisecond)
	for {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n >= 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) < 1 || order[0] != "selected" {
		t.Fatalf("execution order = %v, want selected entry first", order)
	}
}

func TestSchedulerCancelRemovesQueuedEntry(t *testing.T) {
	s := New(1)
	id := wado.NewTaskID()
	s.Enqueue(&Entry{TaskID: id, Key: wado.PriorityKey{}, Start: func(ctx context.Context) {}})

	if !s.Cancel(id) {
		t.Fatal("expected Cancel to remove a still-queued entry")
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after cancelling the only entry", s.Len())
	}
}
