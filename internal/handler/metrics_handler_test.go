package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/casa-azul-api/internal/service"
)

func TestMetricsHandlerReady(t *testing.T) {
	down := false
	h := NewMetricsHandler(service.NewMetricsService(), map[string]Pinger{
		"postgres": PingFunc(func(context.Context) error { return nil }),
		"redis": PingFunc(func(context.Context) error {
			if down {
				return errors.New("connection refused")
			}
			return nil
		}),
	})
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ready", h.Ready)
	r.GET("/metrics", h.Prometheus)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ready", "").Code)

	down = true
	rec := do(r, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")

	rec = do(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "goroutines_total")
}
