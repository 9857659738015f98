package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/study-replan-api/internal/service"
)

func newProbeRouter(h *MetricsHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/metrics", h.Prometheus)
	return router
}

func TestMetricsHandlerReady(t *testing.T) {
	up := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("dial tcp: connection refused") }

	w := doRequest(newProbeRouter(NewMetricsHandler(nil, map[string]Pinger{"database": up, "redis": up})), http.MethodGet, "/ready")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ready","checks":{"database":"ok","redis":"ok"}}`, w.Body.String())

	w = doRequest(newProbeRouter(NewMetricsHandler(nil, map[string]Pinger{"database": up, "redis": down})), http.MethodGet, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":{"database":"ok","redis":"dial tcp: connection refused"}}`, w.Body.String())
}

func TestMetricsHandlerHealthAndPrometheus(t *testing.T) {
	router := newProbeRouter(NewMetricsHandler(service.NewMetricsService(), nil))

	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/health").Code)
	w := doRequest(router, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "goroutines_total")

	assert.Equal(t, http.StatusServiceUnavailable, doRequest(newProbeRouter(NewMetricsHandler(nil, nil)), http.MethodGet, "/metrics").Code)
}
