package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/otcheredev/wado-download-engine/internal/database"
	"github.com/otcheredev/wado-download-engine/internal/models"
)

// WadoEndpointRepository handles WADO endpoint configuration database
// operations.
type WadoEndpointRepository struct{}

func NewWadoEndpointRepository() *WadoEndpointRepository {
	return &WadoEndpointRepository{}
}

func (r *WadoEndpointRepository) Create(ctx context.Context, config *models.WadoEndpointConfig) error {
	if err := database.DB.WithContext(ctx).Create(config).Error; err != nil {
		return fmt.Errorf("failed to create WADO endpoint config: %w", err)
	}
	return nil
}

func (r *WadoEndpointRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.WadoEndpointConfig, error) {
	var config models.WadoEndpointConfig
	if err := database.DB.WithContext(ctx).Where("id = ?", id).First(&config).Error; err != nil {
		return nil, fmt.Errorf("failed to get WADO endpoint config: %w", err)
	}
	return &config, nil
}

func (r *WadoEndpointRepository) GetByTenantID(ctx context.Context, tenantID uuid.UUID) ([]models.WadoEndpointConfig, error) {
	var configs []models.WadoEndpointConfig
	if err := database.DB.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("is_primary DESC, created_at ASC").
		Find(&configs).Error; err != nil {
		return nil, fmt.Errorf("failed to get WADO endpoint configs: %w", err)
	}
	return configs, nil
}

func (r *WadoEndpointRepository) GetPrimaryByTenantID(ctx context.Context, tenantID uuid.UUID) (*models.WadoEndpointConfig, error) {
	var config models.WadoEndpointConfig
	if err := database.DB.WithContext(ctx).
		Where("tenant_id = ? AND is_primary = ? AND is_active = ?", tenantID, true, true).
		First(&config).Error; err != nil {
		return nil, fmt.Errorf("failed to get primary WADO endpoint config: %w", err)
	}
	return &config, nil
}

func (r *WadoEndpointRepository) Update(ctx context.Context, config *models.WadoEndpointConfig) error {
	if err := database.DB.WithContext(ctx).Save(config).Error; err != nil {
		return fmt.Errorf("failed to update WADO endpoint config: %w", err)
	}
	return nil
}

func (r *WadoEndpointRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := database.DB.WithContext(ctx).Delete(&models.WadoEndpointConfig{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete WADO endpoint config: %w", err)
	}
	return nil
}

// SetPrimary sets one endpoint as primary for a tenant and unsets every other.
func (r *WadoEndpointRepository) SetPrimary(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	tx := database.DB.WithContext(ctx).Begin()
	defer func() {
		if rec := recover(); rec != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Model(&models.WadoEndpointConfig{}).
		Where("tenant_id = ?", tenantID).
		Update("is_primary", false).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to unset primary flags: %w", err)
	}

	if err := tx.Model(&models.WadoEndpointConfig{}).
		Where("id = ?", id).
		Update("is_primary", true).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to set primary: %w", err)
	}

	return tx.Commit().Error
}

func (r *WadoEndpointRepository) UpdateConnectionStatus(ctx context.Context, id uuid.UUID, status *models.ConnectionStatus) error {
	updates := map[string]interface{}{
		"last_connection_test":   status.LastChecked,
		"last_connection_status": status.IsConnected,
		"last_error":             status.ErrorMessage,
	}

	if err := database.DB.WithContext(ctx).
		Model(&models.WadoEndpointConfig{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update connection status: %w", err)
	}

	return nil
}
