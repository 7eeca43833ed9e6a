package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/wado-download-engine/internal/middleware"
	"github.com/otcheredev/wado-download-engine/internal/services"
	"github.com/otcheredev/wado-download-engine/internal/wado"
)

// TaskHandler is the submit/cancel/pause/resume/progress control
// surface a client drives a LoadSeriesTask through.
type TaskHandler struct {
	engine *services.EngineService
}

func NewTaskHandler(engine *services.EngineService) *TaskHandler {
	return &TaskHandler{engine: engine}
}

type submitSeriesRequest struct {
	EndpointID uuid.UUID `json:"endpoint_id"`
	StudyUID   string    `json:"study_uid"`
	SeriesUID  string    `json:"series_uid"`
	Selected   bool      `json:"selected"`
	// WriteInCache is a pointer so an omitted field falls back to the
	// engine's configured default instead of silently meaning false.
	WriteInCache    *bool `json:"write_in_cache"`
	OpeningStrategy int   `json:"opening_strategy"`
}

// SubmitSeries queues a LoadSeriesTask for a series on a configured
// WADO endpoint and returns its task ID.
func (h *TaskHandler) SubmitSeries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, ok := middleware.GetTenantID(ctx)
	if !ok {
		http.Error(w, "Tenant ID not found", http.StatusBadRequest)
		return
	}

	var req submitSeriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.StudyUID == "" || req.SeriesUID == "" {
		http.Error(w, "study_uid and series_uid are required", http.StatusBadRequest)
		return
	}

	taskID, err := h.engine.SubmitSeries(ctx, services.SubmitSeriesRequest{
		TenantID:        tenantID,
		EndpointID:      req.EndpointID,
		StudyUID:        req.StudyUID,
		SeriesUID:       req.SeriesUID,
		Selected:        req.Selected,
		WriteInCache:    req.WriteInCache,
		OpeningStrategy: wado.OpeningStrategy(req.OpeningStrategy),
	})
	if err != nil {
		log.Error().Err(err).
			Str("study_uid", req.StudyUID).
			Str("series_uid", req.SeriesUID).
			Msg("failed to submit series")
		http.Error(w, "Failed to submit series", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"task_id": taskID.String()})
}

func (h *TaskHandler) taskIDParam(r *http.Request) (wado.TaskID, bool) {
	idStr := chi.URLParam(r, "taskID")
	id, err := uuid.Parse(idStr)
	return id, err == nil
}

// CancelTask cancels a running or queued task.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.taskIDParam(r)
	if !ok {
		http.Error(w, "Invalid task ID", http.StatusBadRequest)
		return
	}
	if err := h.engine.CancelTask(taskID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PauseTask pauses dispatch for a running task without cancelling
// in-flight work.
func (h *TaskHandler) PauseTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.taskIDParam(r)
	if !ok {
		http.Error(w, "Invalid task ID", http.StatusBadRequest)
		return
	}
	if err := h.engine.PauseTask(taskID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResumeTask reverses a prior PauseTask call.
func (h *TaskHandler) ResumeTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.taskIDParam(r)
	if !ok {
		http.Error(w, "Invalid task ID", http.StatusBadRequest)
		return
	}
	if err := h.engine.ResumeTask(taskID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reprioritizeRequest struct {
	Selected bool `json:"selected"`
}

// Reprioritize reorders a still-queued task, typically in response to
// a user selecting a different series to view first.
func (h *TaskHandler) Reprioritize(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.taskIDParam(r)
	if !ok {
		http.Error(w, "Invalid task ID", http.StatusBadRequest)
		return
	}

	var req reprioritizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.engine.Reprioritize(taskID, req.Selected)
	w.WriteHeader(http.StatusNoContent)
}

// TaskStatus reports a task's current status and progress snapshot.
func (h *TaskHandler) TaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.taskIDParam(r)
	if !ok {
		http.Error(w, "Invalid task ID", http.StatusBadRequest)
		return
	}

	snap, err := h.engine.TaskStatus(taskID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":        snap.Status.String(),
		"done":          snap.Done,
		"total":         snap.Total,
		"errors":        snap.Errors,
		"indeterminate": snap.Indeterminate,
	})
}
