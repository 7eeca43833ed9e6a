package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/otcheredev/wado-download-engine/internal/adapters"
	"github.com/otcheredev/wado-download-engine/internal/models"
	"github.com/otcheredev/wado-download-engine/internal/scheduler"
	"github.com/otcheredev/wado-download-engine/internal/services"
)

func newTestManagementHandler() *ManagementHandler {
	factory := adapters.NewEngineFactory("test-agent", "test-app", 5*time.Second, 15*time.Second, 3)
	engine := services.NewEngineService(nil, nil, factory, scheduler.New(4), nil, nil, nil, 4, "/tmp", "/tmp", true)
	return NewManagementHandler(engine)
}

func TestTestConnectionReportsReachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := newTestManagementHandler()
	body, _ := json.Marshal(models.ConnectionTestRequest{BaseURL: srv.URL})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/endpoints/test", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.TestConnection(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var status models.ConnectionStatus
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !status.IsConnected {
		t.Error("IsConnected = false, want true")
	}
}

func TestTestConnectionReportsUnreachableEndpoint(t *testing.T) {
	h := newTestManagementHandler()
	body, _ := json.Marshal(models.ConnectionTestRequest{BaseURL: "http://127.0.0.1:1"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/endpoints/test", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.TestConnection(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even for a failed probe", rr.Code)
	}

	var status models.ConnectionStatus
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if status.IsConnected {
		t.Error("IsConnected = true, want false")
	}
	if status.ErrorMessage == "" {
		t.Error("expected a non-empty ErrorMessage")
	}
}

func TestGetEndpointReturns400ForMalformedID(t *testing.T) {
	h := newTestManagementHandler()

	r := chi.NewRouter()
	r.Get("/endpoints/{id}", h.GetEndpoint)

	req := httptest.NewRequest(http.MethodGet, "/endpoints/not-a-uuid", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}
