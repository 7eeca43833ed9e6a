package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DownloadAuditLog records one row per terminal LoadSeriesTask: what
// series, against which endpoint, how it finished, and how long it
// took. It does not model the patient/study/series hierarchy itself.
type DownloadAuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID   uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	TaskID     uuid.UUID `gorm:"type:uuid;not null;index" json:"task_id"`
	EndpointID uuid.UUID `gorm:"type:uuid;index" json:"endpoint_id"`

	SeriesUID string `gorm:"type:varchar(255);index" json:"series_uid"`
	StudyUID  string `gorm:"type:varchar(255);index" json:"study_uid"`

	Status         string `gorm:"type:varchar(20);index" json:"status"` // complete, error, cancelled
	InstanceCount  int    `json:"instance_count"`
	ErrorCount     int    `json:"error_count"`
	LastError      string `gorm:"type:text" json:"last_error,omitempty"`
	DurationMillis int64  `json:"duration_ms"`

	CreatedAt time.Time `gorm:"index" json:"timestamp"`
}

func (DownloadAuditLog) TableName() string {
	return "download_audit_logs"
}

func (a *DownloadAuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// CacheMetrics tracks how often a downloaded instance was already
// present (memory/redis dedup hit) versus fetched fresh from a WADO
// origin.
type CacheMetrics struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	CacheKey  string    `gorm:"type:varchar(500);not null" json:"cache_key"`
	CacheHit  bool      `gorm:"not null;index" json:"cache_hit"`
	CacheTier string    `gorm:"type:varchar(20)" json:"cache_tier"` // memory, redis
	Size      int64     `json:"size_bytes"`
	Duration  int64     `json:"duration_ms"`
	CreatedAt time.Time `gorm:"index" json:"timestamp"`
}

func (CacheMetrics) TableName() string {
	return "cache_metrics"
}

func (c *CacheMetrics) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
