package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/otcheredev/wado-download-engine/internal/download"
	"github.com/otcheredev/wado-download-engine/internal/scheduler"
	"github.com/otcheredev/wado-download-engine/internal/wado"
)

func newTestService() *EngineService {
	return NewEngineService(nil, nil, nil, scheduler.New(4), nil, nil, nil, 4, "/tmp", "/tmp", true)
}

func newTestTask() *download.Task {
	series := wado.SeriesRef{SeriesInstanceUID: "series-1", StudyInstanceUID: "study-1"}
	priority := wado.PriorityKey{PatientKey: "tenant-1", StudyKey: "study-1", SeriesKey: "series-1"}
	return download.NewTask(context.Background(), series, priority, false, wado.OpenDefault)
}

func TestCancelTaskDelegatesToLiveTask(t *testing.T) {
	svc := newTestService()
	task := newTestTask()

	svc.mu.Lock()
	svc.tasks[task.ID] = task
	svc.mu.Unlock()

	if err := svc.CancelTask(task.ID); err != nil {
		t.Fatalf("CancelTask failed: %v", err)
	}
	if task.Status() != wado.StatusCancelled {
		t.Errorf("Status = %v, want StatusCancelled", task.Status())
	}
}

func TestCancelTaskFallsBackToSchedulerForQueuedEntries(t *testing.T) {
	svc := newTestService()
	taskID := uuid.New()

	svc.scheduler.Enqueue(&scheduler.Entry{
		Key:    wado.PriorityKey{},
		TaskID: taskID,
		Start:  func(ctx context.Context) {},
	})

	if err := svc.CancelTask(taskID); err != nil {
		t.Fatalf("CancelTask failed: %v", err)
	}
	if svc.scheduler.Len() != 0 {
		t.Errorf("scheduler.Len() = %d, want 0 after cancel", svc.scheduler.Len())
	}
}

func TestCancelTaskReturnsErrorForUnknownTask(t *testing.T) {
	svc := newTestService()
	if err := svc.CancelTask(uuid.New()); err == nil {
		t.Error("expected an error cancelling an unknown task")
	}
}

func TestPauseAndResumeTaskDelegateToLiveTask(t *testing.T) {
	svc := newTestService()
	task := newTestTask()

	svc.mu.Lock()
	svc.tasks[task.ID] = task
	svc.mu.Unlock()

	// Pause only takes effect from StatusDownloading; a freshly queued
	// task's Pause() call is a no-op, but PauseTask/ResumeTask must still
	// find the task and return without error either way.
	if err := svc.PauseTask(task.ID); err != nil {
		t.Fatalf("PauseTask failed: %v", err)
	}
	if err := svc.ResumeTask(task.ID); err != nil {
		t.Fatalf("ResumeTask failed: %v", err)
	}
}

func TestPauseTaskReturnsErrorForUnknownTask(t *testing.T) {
	svc := newTestService()
	if err := svc.PauseTask(uuid.New()); err == nil {
		t.Error("expected an error pausing an unknown task")
	}
}

func TestTaskStatusReportsSnapshot(t *testing.T) {
	svc := newTestService()
	task := newTestTask()

	svc.mu.Lock()
	svc.tasks[task.ID] = task
	svc.mu.Unlock()

	snap, err := svc.TaskStatus(task.ID)
	if err != nil {
		t.Fatalf("TaskStatus failed: %v", err)
	}
	if snap.Status != wado.StatusQueued {
		t.Errorf("Status = %v, want StatusQueued", snap.Status)
	}
	if !snap.Indeterminate {
		t.Error("expected an indeterminate snapshot before Manager.Run assigns progress")
	}
}

func TestTaskStatusReturnsErrorForUnknownTask(t *testing.T) {
	svc := newTestService()
	if _, err := svc.TaskStatus(uuid.New()); err == nil {
		t.Error("expected an error for an unknown task")
	}
}

func TestReprioritizeUpdatesQueuedEntryKey(t *testing.T) {
	svc := newTestService()
	task := newTestTask()
	task.Priority = wado.PriorityKey{PatientKey: "tenant-1", StudyKey: "study-1", SeriesKey: "series-1"}

	svc.mu.Lock()
	svc.tasks[task.ID] = task
	svc.mu.Unlock()

	svc.scheduler.Enqueue(&scheduler.Entry{Key: task.Priority, TaskID: task.ID, Start: func(ctx context.Context) {}})

	svc.Reprioritize(task.ID, true)
}

func TestReprioritizeIsNoopForUnknownTask(t *testing.T) {
	svc := newTestService()
	svc.Reprioritize(uuid.New(), true)
}
