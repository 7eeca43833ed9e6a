package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/otcheredev/wado-download-engine/internal/database"
	"github.com/otcheredev/wado-download-engine/internal/models"
)

// AuditRepository handles download audit log database operations.
type AuditRepository struct{}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

func (r *AuditRepository) Create(ctx context.Context, log *models.DownloadAuditLog) error {
	if err := database.DB.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// GetByTenantID retrieves audit logs for a tenant, most recent first.
func (r *AuditRepository) GetByTenantID(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]models.DownloadAuditLog, error) {
	var logs []models.DownloadAuditLog
	query := database.DB.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to get audit logs: %w", err)
	}

	return logs, nil
}

// GetBySeriesUID retrieves every recorded task outcome for one series.
func (r *AuditRepository) GetBySeriesUID(ctx context.Context, tenantID uuid.UUID, seriesUID string) ([]models.DownloadAuditLog, error) {
	var logs []models.DownloadAuditLog
	if err := database.DB.WithContext(ctx).
		Where("tenant_id = ? AND series_uid = ?", tenantID, seriesUID).
		Order("created_at DESC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to get audit logs: %w", err)
	}
	return logs, nil
}

// GetByTaskID retrieves the single audit record for a task, if any.
func (r *AuditRepository) GetByTaskID(ctx context.Context, taskID uuid.UUID) (*models.DownloadAuditLog, error) {
	var log models.DownloadAuditLog
	if err := database.DB.WithContext(ctx).
		Where("task_id = ?", taskID).
		First(&log).Error; err != nil {
		return nil, fmt.Errorf("failed to get audit log: %w", err)
	}
	return &log, nil
}
