package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/otcheredev/wado-download-engine/internal/wado"
)

func TestDoReturnsBodyOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	tr := New(Config{ConnectTimeout: time.Second, ReadTimeout: time.Second}, nil, nil, "test-agent", "test-app")
	defer tr.Close()

	resp, err := tr.Do(context.Background(), srv.URL, Config{})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
}

func TestDoReturnsHTTPStatusErrorOn404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	tr := New(Config{ConnectTimeout: time.Second, ReadTimeout: time.Second}, nil, nil, "test-agent", "test-app")
	defer tr.Close()

	_, err := tr.Do(context.Background(), srv.URL, Config{})
	if err == nil {
		t.Fatal("expected an error for 404 response")
	}
	var statusErr *wado.HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *wado.HTTPStatusError, got %T: %v", err, err)
	}
	if statusErr.Code != http.StatusNotFound {
		t.Errorf("Code = %d, want 404", statusErr.Code)
	}
}

func TestDoReturnsHTTPStatusErrorWhenNoAuthBoundAnd401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tr := New(Config{ConnectTimeout: time.Second, ReadTimeout: time.Second}, nil, nil, "test-agent", "test-app")
	defer tr.Close()

	_, err := tr.Do(context.Background(), srv.URL, Config{})
	var statusErr *wado.HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *wado.HTTPStatusError for a 401 on an anonymous endpoint, got %T: %v", err, err)
	}
	if statusErr.Code != http.StatusUnauthorized {
		t.Errorf("Code = %d, want 401", statusErr.Code)
	}
}
