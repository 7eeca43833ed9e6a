package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/wado-download-engine/internal/middleware"
	"github.com/otcheredev/wado-download-engine/internal/models"
	"github.com/otcheredev/wado-download-engine/internal/services"
)

// ManagementHandler exposes WADO endpoint configuration CRUD and the
// connection-test probe to tenant administrators.
type ManagementHandler struct {
	engine *services.EngineService
}

func NewManagementHandler(engine *services.EngineService) *ManagementHandler {
	return &ManagementHandler{engine: engine}
}

// CreateEndpoint creates a new WADO endpoint configuration.
func (h *ManagementHandler) CreateEndpoint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, ok := middleware.GetTenantID(ctx)
	if !ok {
		http.Error(w, "Tenant ID not found", http.StatusBadRequest)
		return
	}

	var req models.WadoEndpointConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	config, err := h.engine.CreateEndpoint(ctx, tenantID, &req)
	if err != nil {
		log.Error().Err(err).Msg("failed to create WADO endpoint config")
		http.Error(w, "Failed to create endpoint", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(config)
}

// TestConnection probes a WADO endpoint's reachability without persisting it.
func (h *ManagementHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.ConnectionTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	status, err := h.engine.TestConnection(ctx, &req)
	if err != nil {
		log.Warn().Err(err).Msg("connection test failed")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// GetEndpoints retrieves every WADO endpoint configured for a tenant.
func (h *ManagementHandler) GetEndpoints(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, ok := middleware.GetTenantID(ctx)
	if !ok {
		http.Error(w, "Tenant ID not found", http.StatusBadRequest)
		return
	}

	configs, err := h.engine.GetEndpoints(ctx, tenantID)
	if err != nil {
		log.Error().Err(err).Msg("failed to get WADO endpoint configs")
		http.Error(w, "Failed to get endpoints", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(configs)
}

// GetEndpoint retrieves a single WADO endpoint configuration.
func (h *ManagementHandler) GetEndpoint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid endpoint ID", http.StatusBadRequest)
		return
	}

	config, err := h.engine.GetEndpoint(ctx, id)
	if err != nil {
		log.Error().Err(err).Str("endpoint_id", idStr).Msg("failed to get WADO endpoint config")
		http.Error(w, "Failed to get endpoint", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(config)
}

// DeleteEndpoint removes a WADO endpoint configuration and evicts its
// cached retriever.
func (h *ManagementHandler) DeleteEndpoint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid endpoint ID", http.StatusBadRequest)
		return
	}

	if err := h.engine.DeleteEndpoint(ctx, id); err != nil {
		log.Error().Err(err).Str("endpoint_id", idStr).Msg("failed to delete WADO endpoint config")
		http.Error(w, "Failed to delete endpoint", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
