package db

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func runHealth(t *testing.T, ping func(context.Context) error) (*httptest.ResponseRecorder, healthResponse) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	stats := func() PoolStats {
		return PoolStats{TotalConns: 4, IdleConns: 3, AcquiredConns: 1, MaxConns: 10}
	}
	if err := healthHandler(ping, stats)(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	return rec, resp
}

func TestHealthHandler_Healthy(t *testing.T) {
	rec, resp := runHealth(t, func(context.Context) error { return nil })

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp.Status != "healthy" {
		t.Errorf("expected healthy status, got %q", resp.Status)
	}
	if resp.Error != "" {
		t.Errorf("expected no error, got %q", resp.Error)
	}
	if resp.Pool.TotalConns != 4 {
		t.Errorf("expected pool stats in response, got %+v", resp.Pool)
	}
}

func TestHealthHandler_PingFailure(t *testing.T) {
	rec, resp := runHealth(t, func(context.Context) error {
		return errors.New("connection refused")
	})

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if resp.Status != "unhealthy" {
		t.Errorf("expected unhealthy status, got %q", resp.Status)
	}
	if resp.Error != "connection refused" {
		t.Errorf("expected ping error in response, got %q", resp.Error)
	}
}
