package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/otcheredev/wado-download-engine/internal/scheduler"
	"github.com/otcheredev/wado-download-engine/internal/services"
)

func newTestTaskHandler() *TaskHandler {
	engine := services.NewEngineService(nil, nil, nil, scheduler.New(4), nil, nil, nil, 4, "/tmp", "/tmp", true)
	return NewTaskHandler(engine)
}

func routerFor(h *TaskHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/tasks/{taskID}/cancel", h.CancelTask)
	r.Post("/tasks/{taskID}/pause", h.PauseTask)
	r.Post("/tasks/{taskID}/resume", h.ResumeTask)
	r.Get("/tasks/{taskID}", h.TaskStatus)
	return r
}

func TestCancelTaskReturns404ForUnknownTask(t *testing.T) {
	h := newTestTaskHandler()
	r := routerFor(h)

	req := httptest.NewRequest(http.MethodPost, "/tasks/"+uuid.New().String()+"/cancel", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestCancelTaskReturns400ForMalformedTaskID(t *testing.T) {
	h := newTestTaskHandler()
	r := routerFor(h)

	req := httptest.NewRequest(http.MethodPost, "/tasks/not-a-uuid/cancel", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestTaskStatusReturns404ForUnknownTask(t *testing.T) {
	h := newTestTaskHandler()
	r := routerFor(h)

	req := httptest.NewRequest(http.MethodGet, "/tasks/"+uuid.New().String(), nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestPauseAndResumeReturn404ForUnknownTask(t *testing.T) {
	h := newTestTaskHandler()
	r := routerFor(h)

	taskID := uuid.New().String()

	req := httptest.NewRequest(http.MethodPost, "/tasks/"+taskID+"/pause", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("pause status = %d, want 404", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/tasks/"+taskID+"/resume", nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("resume status = %d, want 404", rr.Code)
	}
}
