package download

import (
	"context"
	"testing"
	"time"

	"github.com/otcheredev/wado-download-engine/internal/wado"
)

func TestTaskPauseBlocksThenResumeUnblocks(t *testing.T) {
	task := NewTask(context.Background(), wado.SeriesRef{}, wado.PriorityKey{}, false, wado.OpenDefault)
	task.setStatus(wado.StatusDownloading)
	task.Pause()

	if task.Status() != wado.StatusPaused {
		t.Fatalf("status = %v, want StatusPaused", task.Status())
	}

	unblocked := make(chan struct{})
	go func() {
		task.waitIfPaused(context.Background())
		close(unblocked)
	}()

	select {
	case <-unblocked:
		t.Fatal("waitIfPaused returned before Resume was called")
	case <-time.After(50 * time.Millisecond):
	}

	task.Resume()

	select {
	case <-unblocked:
	case <-time.After(time.Second):
		t.Fatal("waitIfPaused did not unblock after Resume")
	}
}

func TestTaskCancelUnblocksPause(t *testing.T) {
	task := NewTask(context.Background(), wado.SeriesRef{}, wado.PriorityKey{}, false, wado.OpenDefault)
	task.setStatus(wado.StatusDownloading)
	task.Pause()
	task.Cancel()

	err := task.waitIfPaused(task.ctx)
	if err == nil {
		t.Fatal("expected waitIfPaused to report cancellation")
	}
}
