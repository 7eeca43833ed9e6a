package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WadoEndpointConfig is a tenant's persisted WADO origin configuration:
// where to retrieve from, whether it speaks WADO-URI or WADO-RS, and
// which tags get overridden on the way out.
type WadoEndpointConfig struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Name     string    `gorm:"type:varchar(255);not null" json:"name"`

	BaseURL          string  `gorm:"type:varchar(500);not null" json:"base_url"`
	AdditionalQuery  string  `gorm:"type:varchar(500)" json:"additional_query,omitempty"`
	WadoRS           bool    `gorm:"default:false" json:"wado_rs"`
	SOPOnly          bool    `gorm:"default:false" json:"sop_only"`
	TagOverrides     []int64 `gorm:"type:bigint[];default:'{}'" json:"tag_overrides"`
	PreferredQuality int     `gorm:"default:0" json:"preferred_quality"`

	AuthType     string `gorm:"type:varchar(50)" json:"auth_type,omitempty"` // "", "oauth2_client_credentials"
	ClientID     string `gorm:"type:varchar(255)" json:"client_id,omitempty"`
	ClientSecret string `gorm:"type:text" json:"-"`
	TokenURL     string `gorm:"type:varchar(500)" json:"token_url,omitempty"`

	IsActive  bool `gorm:"default:true" json:"is_active"`
	IsPrimary bool `gorm:"default:false" json:"is_primary"`

	LastConnectionTest   time.Time `gorm:"index" json:"last_connection_test,omitempty"`
	LastConnectionStatus bool      `json:"last_connection_status,omitempty"`
	LastError            string    `gorm:"type:text" json:"last_error,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (WadoEndpointConfig) TableName() string {
	return "wado_endpoint_configs"
}

func (w *WadoEndpointConfig) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// ConnectionStatus is the result of a live reachability probe against
// a configured endpoint.
type ConnectionStatus struct {
	IsConnected  bool      `json:"is_connected"`
	LastChecked  time.Time `json:"last_checked"`
	ResponseTime int64     `json:"response_time_ms"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// WadoEndpointConfigRequest is the create/update payload for the
// management API.
type WadoEndpointConfigRequest struct {
	Name             string  `json:"name" binding:"required"`
	BaseURL          string  `json:"base_url" binding:"required"`
	AdditionalQuery  string  `json:"additional_query,omitempty"`
	WadoRS           bool    `json:"wado_rs"`
	SOPOnly          bool    `json:"sop_only"`
	TagOverrides     []int64 `json:"tag_overrides,omitempty"`
	PreferredQuality int     `json:"preferred_quality"`
	AuthType         string  `json:"auth_type,omitempty"`
	ClientID         string  `json:"client_id,omitempty"`
	ClientSecret     string  `json:"client_secret,omitempty"`
	TokenURL         string  `json:"token_url,omitempty"`
	IsPrimary        bool    `json:"is_primary"`
}

// ConnectionTestRequest probes an endpoint's reachability without
// persisting it, used by the "test before you save" management flow.
type ConnectionTestRequest struct {
	BaseURL      string `json:"base_url" binding:"required"`
	WadoRS       bool   `json:"wado_rs"`
	AuthType     string `json:"auth_type,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	TokenURL     string `json:"token_url,omitempty"`
}
