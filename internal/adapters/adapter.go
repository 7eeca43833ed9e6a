// Package adapters turns a persisted WadoEndpointConfig into the
// transport.Transport and download.Retriever pair the engine actually
// downloads through, caching one pair per endpoint so every task
// queued against the same PACS shares connections, auth tokens, and a
// circuit breaker.
package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/otcheredev/wado-download-engine/internal/models"
	"github.com/otcheredev/wado-download-engine/internal/transport"
	"github.com/otcheredev/wado-download-engine/internal/wado"
	"golang.org/x/oauth2/clientcredentials"
)

// toWadoEndpoint converts a persisted config row into the immutable
// value every SeriesRef carries its endpoint as.
func toWadoEndpoint(config models.WadoEndpointConfig) wado.WadoEndpoint {
	overrides := make([]uint32, len(config.TagOverrides))
	for i, v := range config.TagOverrides {
		overrides[i] = uint32(v)
	}
	return wado.WadoEndpoint{
		BaseURL:          config.BaseURL,
		AdditionalQuery:  config.AdditionalQuery,
		WadoRS:           config.WadoRS,
		SOPOnly:          config.SOPOnly,
		TagOverrides:     overrides,
		PreferredQuality: config.PreferredQuality,
	}
}

// buildAuth resolves a config's auth section into a transport.AuthMethod.
// A config with no AuthType is anonymous and returns (nil, nil).
func buildAuth(config models.WadoEndpointConfig) (*transport.AuthMethod, error) {
	switch config.AuthType {
	case "":
		return nil, nil
	case "oauth2_client_credentials":
		if config.TokenURL == "" || config.ClientID == "" {
			return nil, fmt.Errorf("oauth2_client_credentials auth requires token_url and client_id")
		}
		cc := &clientcredentials.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			TokenURL:     config.TokenURL,
		}
		return transport.NewAuthMethod(cc.TokenSource(context.Background())), nil
	default:
		return nil, fmt.Errorf("unsupported auth_type: %s", config.AuthType)
	}
}

// probeTimeout bounds a TestConnection call so a dead PACS fails fast
// instead of hanging the management API request that triggered it.
const probeTimeout = 10 * time.Second
