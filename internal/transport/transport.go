// Package transport issues the HTTP requests behind WADO-URI and
// WADO-RS retrieval: timeouts, redirect following, header injection,
// and optional OAuth bearer signing with one-shot refresh on 401.
package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/otcheredev/wado-download-engine/internal/wado"
	"github.com/sony/gobreaker"
)

// Config configures one request.
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Headers        map[string]string
	Post           bool
	MaxRedirects   int
}

// Response is the lazy result of a successful request.
type Response struct {
	StatusCode  int
	Header      http.Header
	Body        io.ReadCloser
	ContentType string
}

// Transport performs single HTTP requests with a fixed redirect/auth
// policy. It is safe for concurrent use and is shared across every
// DownloadJob in a series (and, via the factory, across series for the
// same endpoint).
type Transport struct {
	client      *http.Client
	auth        *AuthMethod // nil when the endpoint requires no bearer auth
	breaker     *gobreaker.CircuitBreaker // nil disables per-endpoint circuit breaking
	userAgent   string
	appIdentity string
}

// New builds a Transport. auth and breaker may both be nil, for an
// anonymous endpoint with no circuit protection.
func New(cfg Config, auth *AuthMethod, breaker *gobreaker.CircuitBreaker, userAgent, appIdentity string) *Transport {
	return &Transport{
		breaker: breaker,
		client: &http.Client{
			Timeout: cfg.ConnectTimeout + cfg.ReadTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				max := cfg.MaxRedirects
				if max == 0 {
					max = 3
				}
				if len(via) >= max {
					return http.ErrUseLastResponse
				}
				// Carry over Cookie and caller headers on redirect.
				if len(via) > 0 {
					prev := via[len(via)-1]
					for k, v := range prev.Header {
						if _, ok := req.Header[k]; !ok {
							req.Header[k] = v
						}
					}
				}
				return nil
			},
		},
		auth:        auth,
		userAgent:   userAgent,
		appIdentity: appIdentity,
	}
}

// Do issues one GET or POST-no-body request, retrying exactly once on
// 401 when auth is bound. When a breaker is bound, the whole call
// (including the 401 retry) counts as a single breaker request.
func (t *Transport) Do(ctx context.Context, url string, cfg Config) (*Response, error) {
	if t.breaker == nil {
		return t.do(ctx, url, cfg)
	}
	v, err := t.breaker.Execute(func() (interface{}, error) {
		return t.do(ctx, url, cfg)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Response), nil
}

func (t *Transport) do(ctx context.Context, url string, cfg Config) (*Response, error) {
	resp, err := t.doOnce(ctx, url, cfg)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && t.auth != nil {
		resp.Body.Close()
		expired := t.auth.CurrentExpired()
		t.auth.Reset()
		resp, err = t.doOnce(ctx, url, cfg)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			if expired {
				return nil, wado.ErrAuthExpired
			}
			return nil, wado.ErrAuthRejected
		}
	}

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		// CheckRedirect already followed up to the cap; a 3xx surfacing
		// here means the cap was hit.
		resp.Body.Close()
		return nil, &wado.HTTPStatusError{Code: resp.StatusCode, URL: url}
	}

	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, &wado.HTTPStatusError{Code: resp.StatusCode, URL: url}
	}

	return resp, nil
}

func (t *Transport) doOnce(ctx context.Context, url string, cfg Config) (*Response, error) {
	method := http.MethodGet
	if cfg.Post {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}

	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	if t.appIdentity != "" {
		req.Header.Set("X-App-Identity", t.appIdentity)
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	if t.auth != nil {
		token, err := t.auth.Token(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := t.client
	if cfg.ConnectTimeout > 0 || cfg.ReadTimeout > 0 {
		timeout := cfg.ConnectTimeout + cfg.ReadTimeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, wado.ErrCancelled
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, wado.ErrTimeout
		}
		return nil, wado.ErrNetworkUnavailable
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		Header:      resp.Header,
		Body:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// Close releases idle connections.
func (t *Transport) Close() { t.client.CloseIdleConnections() }
