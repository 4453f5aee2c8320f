package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	serve := func(h *HealthHandler, path string) *httptest.ResponseRecorder {
		r := gin.New()
		r.GET("/health", h.Health)
		r.GET("/ready", h.Ready)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	ok := func(ctx context.Context) error { return nil }
	down := func(ctx context.Context) error { return errors.New("connection refused") }

	assert.Equal(t, http.StatusOK, serve(NewHealthHandler(nil), "/health").Code)
	assert.Equal(t, http.StatusOK, serve(NewHealthHandler(map[string]ReadyCheck{"ffmpeg": ok}), "/ready").Code)

	w := serve(NewHealthHandler(map[string]ReadyCheck{"ffmpeg": ok, "mongo": down}), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
