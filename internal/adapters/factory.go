package adapters

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/otcheredev/wado-download-engine/internal/download"
	"github.com/otcheredev/wado-download-engine/internal/models"
	"github.com/otcheredev/wado-download-engine/internal/transport"
	"github.com/otcheredev/wado-download-engine/internal/wado"
	"github.com/rs/zerolog/log"
)

// engineEntry bundles the retriever a LoadSeriesTask fetches through
// with the endpoint snapshot it was built from and the transport it
// owns, so EngineFactory can close idle connections on removal.
type engineEntry struct {
	retriever download.Retriever
	endpoint  wado.WadoEndpoint
	transport *transport.Transport
}

// EngineFactory builds and caches one retriever per WADO endpoint
// configuration, keyed by endpoint ID, so every task queued against
// the same PACS shares connections, auth tokens, and a circuit
// breaker rather than rebuilding them per task.
type EngineFactory struct {
	mu             sync.RWMutex
	entries        map[uuid.UUID]*engineEntry
	breakers       *transport.BreakerFactory
	userAgent      string
	appIdentity    string
	connectTimeout time.Duration
	readTimeout    time.Duration
	maxRedirects   int
}

// NewEngineFactory builds a factory that dials every endpoint with
// connectTimeout/readTimeout/maxRedirects taken from the engine's
// configuration (internal/config.EngineConfig).
func NewEngineFactory(userAgent, appIdentity string, connectTimeout, readTimeout time.Duration, maxRedirects int) *EngineFactory {
	return &EngineFactory{
		entries:        make(map[uuid.UUID]*engineEntry),
		breakers:       transport.NewBreakerFactory(),
		userAgent:      userAgent,
		appIdentity:    appIdentity,
		connectTimeout: connectTimeout,
		readTimeout:    readTimeout,
		maxRedirects:   maxRedirects,
	}
}

// GetRetriever gets or creates the (retriever, endpoint) pair for
// config, rebuilding it if the cached entry's base URL has drifted
// out from under a config that was edited in place.
func (f *EngineFactory) GetRetriever(config models.WadoEndpointConfig) (download.Retriever, wado.WadoEndpoint, error) {
	f.mu.RLock()
	entry, exists := f.entries[config.ID]
	f.mu.RUnlock()

	if exists && entry.endpoint.BaseURL == config.BaseURL {
		return entry.retriever, entry.endpoint, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if entry, exists := f.entries[config.ID]; exists && entry.endpoint.BaseURL == config.BaseURL {
		return entry.retriever, entry.endpoint, nil
	}

	auth, err := buildAuth(config)
	if err != nil {
		return nil, wado.WadoEndpoint{}, fmt.Errorf("failed to configure auth: %w", err)
	}

	breaker := f.breakers.For(config.BaseURL)
	t := transport.New(transport.Config{
		ConnectTimeout: f.connectTimeout,
		ReadTimeout:    f.readTimeout,
		MaxRedirects:   f.maxRedirects,
	}, auth, breaker, f.userAgent, f.appIdentity)

	endpoint := toWadoEndpoint(config)
	retriever := download.NewRetriever(t, transport.Config{})

	f.entries[config.ID] = &engineEntry{retriever: retriever, endpoint: endpoint, transport: t}

	log.Info().
		Str("endpoint_id", config.ID.String()).
		Str("base_url", config.BaseURL).
		Bool("wado_rs", config.WadoRS).
		Msg("built WADO retriever")

	return retriever, endpoint, nil
}

// Remove closes and evicts the cached entry for an endpoint, used
// when a config is deleted or disabled.
func (f *EngineFactory) Remove(endpointID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, exists := f.entries[endpointID]
	if !exists {
		return
	}
	entry.transport.Close()
	delete(f.entries, endpointID)

	log.Info().Str("endpoint_id", endpointID.String()).Msg("removed WADO retriever")
}

// CloseAll releases every cached transport's idle connections.
func (f *EngineFactory) CloseAll() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, entry := range f.entries {
		entry.transport.Close()
		delete(f.entries, id)
	}
}

// TestConnection probes an endpoint without caching anything,
// measuring round-trip latency the way the management API reports it.
func (f *EngineFactory) TestConnection(ctx context.Context, config models.WadoEndpointConfig) (*models.ConnectionStatus, error) {
	start := time.Now()
	status := &models.ConnectionStatus{LastChecked: start}

	auth, err := buildAuth(config)
	if err != nil {
		status.ErrorMessage = err.Error()
		return status, err
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	t := transport.New(transport.Config{ConnectTimeout: probeTimeout, ReadTimeout: probeTimeout}, auth, nil, f.userAgent, f.appIdentity)
	defer t.Close()

	_, err = t.Do(ctx, config.BaseURL, transport.Config{})
	status.ResponseTime = time.Since(start).Milliseconds()

	var statusErr *wado.HTTPStatusError
	if err == nil || errors.As(err, &statusErr) {
		status.IsConnected = true
		return status, nil
	}

	status.IsConnected = false
	status.ErrorMessage = err.Error()
	return status, err
}
