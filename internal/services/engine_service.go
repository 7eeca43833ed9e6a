// Package services implements the business logic behind the
// management API: endpoint configuration CRUD and the submit/cancel/
// pause/resume control points of a LoadSeriesTask.
package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/wado-download-engine/internal/adapters"
	"github.com/otcheredev/wado-download-engine/internal/cache"
	"github.com/otcheredev/wado-download-engine/internal/download"
	"github.com/otcheredev/wado-download-engine/internal/hierarchy"
	"github.com/otcheredev/wado-download-engine/internal/models"
	"github.com/otcheredev/wado-download-engine/internal/repository"
	"github.com/otcheredev/wado-download-engine/internal/scheduler"
	"github.com/otcheredev/wado-download-engine/internal/wado"
)

// EngineService wires the management API to the download engine: it
// resolves a tenant's WadoEndpointConfig into a retriever, plans a
// SeriesRef, and hands the resulting LoadSeriesTask to the scheduler.
type EngineService struct {
	endpointRepo  *repository.WadoEndpointRepository
	auditRepo     *repository.AuditRepository
	engineFactory *adapters.EngineFactory
	scheduler     *scheduler.Scheduler
	store         hierarchy.Store
	cache         cache.Cache
	sink          wado.EventSink

	seriesConcurrency int64
	cacheDir          string
	tmpDir            string
	writeInCache      bool

	mu         sync.Mutex
	tasks      map[wado.TaskID]*download.Task
	enqueueSeq uint64
}

func NewEngineService(
	endpointRepo *repository.WadoEndpointRepository,
	auditRepo *repository.AuditRepository,
	engineFactory *adapters.EngineFactory,
	sched *scheduler.Scheduler,
	store hierarchy.Store,
	c cache.Cache,
	sink wado.EventSink,
	seriesConcurrency int64,
	cacheDir, tmpDir string,
	writeInCache bool,
) *EngineService {
	return &EngineService{
		endpointRepo:      endpointRepo,
		auditRepo:         auditRepo,
		engineFactory:     engineFactory,
		scheduler:         sched,
		store:             store,
		cache:             c,
		sink:              sink,
		seriesConcurrency: seriesConcurrency,
		cacheDir:          cacheDir,
		tmpDir:            tmpDir,
		writeInCache:      writeInCache,
		tasks:             make(map[wado.TaskID]*download.Task),
	}
}

// CreateEndpoint persists a new WADO endpoint configuration, unsetting
// any existing primary for the tenant first if this one is primary.
func (s *EngineService) CreateEndpoint(ctx context.Context, tenantID uuid.UUID, req *models.WadoEndpointConfigRequest) (*models.WadoEndpointConfig, error) {
	config := &models.WadoEndpointConfig{
		TenantID:         tenantID,
		Name:             req.Name,
		BaseURL:          req.BaseURL,
		AdditionalQuery:  req.AdditionalQuery,
		WadoRS:           req.WadoRS,
		SOPOnly:          req.SOPOnly,
		TagOverrides:     req.TagOverrides,
		PreferredQuality: req.PreferredQuality,
		AuthType:         req.AuthType,
		ClientID:         req.ClientID,
		ClientSecret:     req.ClientSecret,
		TokenURL:         req.TokenURL,
		IsPrimary:        req.IsPrimary,
		IsActive:         true,
	}

	if req.IsPrimary {
		if err := s.endpointRepo.SetPrimary(ctx, uuid.Nil, tenantID); err != nil {
			return nil, fmt.Errorf("failed to unset primary flags: %w", err)
		}
	}

	if err := s.endpointRepo.Create(ctx, config); err != nil {
		return nil, fmt.Errorf("failed to create WADO endpoint config: %w", err)
	}

	return config, nil
}

func (s *EngineService) GetEndpoints(ctx context.Context, tenantID uuid.UUID) ([]models.WadoEndpointConfig, error) {
	configs, err := s.endpointRepo.GetByTenantID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get WADO endpoint configs: %w", err)
	}
	return configs, nil
}

func (s *EngineService) GetEndpoint(ctx context.Context, id uuid.UUID) (*models.WadoEndpointConfig, error) {
	config, err := s.endpointRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get WADO endpoint config: %w", err)
	}
	return config, nil
}

func (s *EngineService) DeleteEndpoint(ctx context.Context, id uuid.UUID) error {
	if err := s.endpointRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete WADO endpoint config: %w", err)
	}
	s.engineFactory.Remove(id)
	return nil
}

// TestConnection probes an endpoint without persisting it.
func (s *EngineService) TestConnection(ctx context.Context, req *models.ConnectionTestRequest) (*models.ConnectionStatus, error) {
	probe := models.WadoEndpointConfig{
		BaseURL:      req.BaseURL,
		WadoRS:       req.WadoRS,
		AuthType:     req.AuthType,
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		TokenURL:     req.TokenURL,
	}
	return s.engineFactory.TestConnection(ctx, probe)
}

// SubmitSeriesRequest is the parsed payload of a submit-series call.
type SubmitSeriesRequest struct {
	TenantID   uuid.UUID
	EndpointID uuid.UUID
	StudyUID   string
	SeriesUID  string
	Selected   bool
	// WriteInCache overrides the engine's configured default when set;
	// nil means the caller didn't specify a preference.
	WriteInCache    *bool
	OpeningStrategy wado.OpeningStrategy
}

// SubmitSeries resolves req.EndpointID into a retriever, discovers the
// series' instance list over WADO-RS metadata, and enqueues a
// LoadSeriesTask. Against a WADO-URI-only endpoint the metadata call
// returns wado.ErrUnsupportedOperation and SubmitSeries returns that
// error without queuing anything.
func (s *EngineService) SubmitSeries(ctx context.Context, req SubmitSeriesRequest) (wado.TaskID, error) {
	config, err := s.endpointRepo.GetByID(ctx, req.EndpointID)
	if err != nil {
		return wado.TaskID{}, fmt.Errorf("failed to load endpoint config: %w", err)
	}

	retriever, endpoint, err := s.engineFactory.GetRetriever(*config)
	if err != nil {
		return wado.TaskID{}, fmt.Errorf("failed to build retriever: %w", err)
	}

	meta, err := retriever.FetchSeriesMetadata(ctx, endpoint, req.StudyUID, req.SeriesUID)
	if err != nil {
		return wado.TaskID{}, fmt.Errorf("failed to fetch series metadata: %w", err)
	}

	series := download.PlanSeriesRef(endpoint, req.StudyUID, req.SeriesUID, meta)

	priority := wado.PriorityKey{
		PatientKey: req.TenantID.String(),
		StudyKey:   req.StudyUID,
		SeriesKey:  req.SeriesUID,
		Selected:   req.Selected,
		EnqueueSeq: atomic.AddUint64(&s.enqueueSeq, 1),
	}

	writeInCache := s.writeInCache
	if req.WriteInCache != nil {
		writeInCache = *req.WriteInCache
	}

	task := download.NewTask(ctx, series, priority, writeInCache, req.OpeningStrategy)
	task.TenantID = req.TenantID.String()

	s.mu.Lock()
	s.tasks[task.ID] = task
	s.mu.Unlock()

	manager := &download.Manager{
		SeriesConcurrency: s.seriesConcurrency,
		CacheDir:          s.cacheDir,
		TmpDir:            s.tmpDir,
		Retriever:         retriever,
		Store:             s.store,
		Cache:             s.cache,
		Sink:              s.sink,
	}

	s.scheduler.Enqueue(&scheduler.Entry{
		Key:    priority,
		TaskID: task.ID,
		Start: func(runCtx context.Context) {
			start := time.Now()
			runErr := manager.Run(runCtx, task)
			s.recordOutcome(ctx, req.TenantID, req.EndpointID, task, start, runErr)
		},
	})

	return task.ID, nil
}

func (s *EngineService) recordOutcome(ctx context.Context, tenantID, endpointID uuid.UUID, task *download.Task, start time.Time, runErr error) {
	snap := task.ProgressSnapshot()
	lastError := ""
	if runErr != nil {
		lastError = runErr.Error()
	}

	entry := &models.DownloadAuditLog{
		TenantID:       tenantID,
		TaskID:         task.ID,
		EndpointID:     endpointID,
		SeriesUID:      task.Series.SeriesInstanceUID,
		StudyUID:       task.Series.StudyInstanceUID,
		Status:         task.Status().String(),
		InstanceCount:  snap.Total,
		ErrorCount:     snap.Errors,
		LastError:      lastError,
		DurationMillis: time.Since(start).Milliseconds(),
	}

	if err := s.auditRepo.Create(ctx, entry); err != nil {
		log.Error().Err(err).Str("task_id", task.ID.String()).Msg("failed to record audit log")
	}

	s.mu.Lock()
	delete(s.tasks, task.ID)
	s.mu.Unlock()
}

// Reprioritize reorders a still-queued task; no-op if it already
// started running.
func (s *EngineService) Reprioritize(taskID wado.TaskID, selected bool) {
	s.mu.Lock()
	task, ok := s.tasks[taskID]
	s.mu.Unlock()
	if !ok {
		return
	}

	key := wado.PriorityKey{
		PatientKey: task.Priority.PatientKey,
		StudyKey:   task.Priority.StudyKey,
		SeriesKey:  task.Priority.SeriesKey,
		Selected:   selected,
		EnqueueSeq: task.Priority.EnqueueSeq,
	}
	s.scheduler.Reprioritize(taskID, key)
}

func (s *EngineService) CancelTask(taskID wado.TaskID) error {
	s.mu.Lock()
	task, ok := s.tasks[taskID]
	s.mu.Unlock()
	if !ok {
		if s.scheduler.Cancel(taskID) {
			return nil
		}
		return fmt.Errorf("task %s not found", taskID)
	}
	task.Cancel()
	return nil
}

func (s *EngineService) PauseTask(taskID wado.TaskID) error {
	s.mu.Lock()
	task, ok := s.tasks[taskID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("task %s not found or already finished", taskID)
	}
	task.Pause()
	return nil
}

func (s *EngineService) ResumeTask(taskID wado.TaskID) error {
	s.mu.Lock()
	task, ok := s.tasks[taskID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("task %s not found or already finished", taskID)
	}
	task.Resume()
	return nil
}

// TaskSnapshot is the progress/status view the management API reports.
type TaskSnapshot struct {
	Status wado.Status
	download.Snapshot
}

func (s *EngineService) TaskStatus(taskID wado.TaskID) (TaskSnapshot, error) {
	s.mu.Lock()
	task, ok := s.tasks[taskID]
	s.mu.Unlock()
	if !ok {
		return TaskSnapshot{}, fmt.Errorf("task %s not found or already finished", taskID)
	}
	return TaskSnapshot{Status: task.Status(), Snapshot: task.ProgressSnapshot()}, nil
}
