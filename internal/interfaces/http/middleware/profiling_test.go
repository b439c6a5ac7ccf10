package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/synchub/backend/internal/infrastructure/telemetry"
	"github.com/synchub/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// serveLabeled runs one request through the profiling middleware and
// captures the pprof labels visible inside the handler.
func serveLabeled(t *testing.T, cfg middleware.ProfilingConfig, method, route, path string, before ...gin.HandlerFunc) map[string]string {
	t.Helper()

	labels := map[string]string{}
	r := gin.New()
	r.Use(before...)
	r.Use(middleware.ProfilingWithConfig(cfg))
	r.Handle(method, route, func(c *gin.Context) {
		for _, key := range []string{
			telemetry.ProfilingLabelMethod,
			telemetry.ProfilingLabelRoute,
			telemetry.ProfilingLabelController,
			telemetry.ProfilingLabelTenantID,
		} {
			if v, ok := pprof.Label(c.Request.Context(), key); ok {
				labels[key] = v
			}
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	return labels
}

func TestDefaultProfilingConfig(t *testing.T) {
	cfg := middleware.DefaultProfilingConfig()

	assert.True(t, cfg.Enabled)
	assert.Contains(t, cfg.SkipPaths, "/health")
	assert.Contains(t, cfg.SkipPaths, "/metrics")
	assert.Contains(t, cfg.SkipPathPrefixes, "/swagger")
}

func TestProfilingMiddleware_LabelsRequest(t *testing.T) {
	labels := serveLabeled(t, middleware.DefaultProfilingConfig(),
		http.MethodGet, "/api/v1/connections/:id", "/api/v1/connections/81")

	assert.Equal(t, http.MethodGet, labels[telemetry.ProfilingLabelMethod])
	assert.Equal(t, "/api/v1/connections/:id", labels[telemetry.ProfilingLabelRoute])
	assert.Equal(t, "connections", labels[telemetry.ProfilingLabelController])
	assert.NotContains(t, labels, telemetry.ProfilingLabelTenantID)
}

func TestProfilingMiddleware_TenantLabelFromClaims(t *testing.T) {
	t.Run("string claim is labeled", func(t *testing.T) {
		labels := serveLabeled(t, middleware.DefaultProfilingConfig(),
			http.MethodGet, "/api/v1/mappings", "/api/v1/mappings",
			func(c *gin.Context) {
				c.Set(middleware.JWTTenantIDKey, "tenant-123")
				c.Next()
			})
		assert.Equal(t, "tenant-123", labels[telemetry.ProfilingLabelTenantID])
	})

	t.Run("non-string claim is skipped", func(t *testing.T) {
		labels := serveLabeled(t, middleware.DefaultProfilingConfig(),
			http.MethodGet, "/api/v1/mappings", "/api/v1/mappings",
			func(c *gin.Context) {
				c.Set(middleware.JWTTenantIDKey, 12345)
				c.Next()
			})
		assert.NotContains(t, labels, telemetry.ProfilingLabelTenantID)
	})
}

func TestProfilingMiddleware_Disabled(t *testing.T) {
	labels := serveLabeled(t, middleware.ProfilingConfig{Enabled: false},
		http.MethodGet, "/api/v1/connections", "/api/v1/connections")
	assert.Empty(t, labels)
}

func TestProfilingMiddleware_SkipPaths(t *testing.T) {
	cfg := middleware.ProfilingConfig{
		Enabled:          true,
		SkipPaths:        []string{"/health"},
		SkipPathPrefixes: []string{"/swagger"},
	}

	tests := []struct {
		name    string
		route   string
		path    string
		labeled bool
	}{
		{"exact skip", "/health", "/health", false},
		{"prefix skip", "/swagger/*any", "/swagger/index.html", false},
		{"subpath of exact skip is labeled", "/health/deep", "/health/deep", true},
		{"api route is labeled", "/api/v1/conflicts", "/api/v1/conflicts", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labels := serveLabeled(t, cfg, http.MethodGet, tt.route, tt.path)
			if tt.labeled {
				assert.NotEmpty(t, labels)
			} else {
				assert.Empty(t, labels)
			}
		})
	}
}

func TestProfilingMiddleware_ControllerSegment(t *testing.T) {
	tests := []struct {
		route      string
		path       string
		controller string
	}{
		{"/api/v1/connections", "/api/v1/connections", "connections"},
		{"/api/v1/connections/:id/webhooks", "/api/v1/connections/81/webhooks", "connections"},
		{"/api/v2/conflicts", "/api/v2/conflicts", "conflicts"},
		{"/v1/mappings", "/v1/mappings", "mappings"},
		{"/webhooks", "/webhooks", "webhooks"},
	}
	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			labels := serveLabeled(t, middleware.DefaultProfilingConfig(),
				http.MethodGet, tt.route, tt.path)
			assert.Equal(t, tt.controller, labels[telemetry.ProfilingLabelController])
		})
	}
}

func TestProfilingMiddleware_PreservesGinContext(t *testing.T) {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("custom_key", "custom_value")
		c.Next()
	})
	r.Use(middleware.Profiling())
	r.GET("/api/v1/connections", func(c *gin.Context) {
		value, exists := c.Get("custom_key")
		assert.True(t, exists)
		assert.Equal(t, "custom_value", value)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/connections", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
