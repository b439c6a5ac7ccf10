package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serveRoute(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func textHandler(status int, body string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(status, body)
	}
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.NotNil(t, r)
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)
}

func TestRouterWithAPIVersion(t *testing.T) {
	r := NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterRegister(t *testing.T) {
	r := NewRouter(gin.New())
	r.Register(NewDomainGroup("connection", "/connections"))
	assert.Len(t, r.registrars, 1)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v1"))

	group := NewDomainGroup("system", "/system")
	group.GET("/ping", textHandler(http.StatusOK, "pong"))

	r.Register(group)
	r.Setup()

	w := serveRoute(engine, "GET", "/api/v1/system/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestDomainGroup(t *testing.T) {
	t.Run("carries name and prefix", func(t *testing.T) {
		g := NewDomainGroup("sync", "/sync")
		assert.Equal(t, "sync", g.Name())
		assert.Equal(t, "/sync", g.Prefix())
	})

	t.Run("binds each HTTP method", func(t *testing.T) {
		methods := []struct {
			register func(g *DomainGroup, h gin.HandlerFunc)
			method   string
			path     string
			status   int
		}{
			{func(g *DomainGroup, h gin.HandlerFunc) { g.GET("/items", h) }, "GET", "/api/v1/test/items", http.StatusOK},
			{func(g *DomainGroup, h gin.HandlerFunc) { g.POST("/items", h) }, "POST", "/api/v1/test/items", http.StatusCreated},
			{func(g *DomainGroup, h gin.HandlerFunc) { g.PUT("/items/:id", h) }, "PUT", "/api/v1/test/items/123", http.StatusOK},
			{func(g *DomainGroup, h gin.HandlerFunc) { g.PATCH("/items/:id", h) }, "PATCH", "/api/v1/test/items/123", http.StatusOK},
			{func(g *DomainGroup, h gin.HandlerFunc) { g.DELETE("/items/:id", h) }, "DELETE", "/api/v1/test/items/123", http.StatusNoContent},
		}

		for _, tt := range methods {
			t.Run(tt.method, func(t *testing.T) {
				engine := gin.New()
				g := NewDomainGroup("test", "/test")
				tt.register(g, textHandler(tt.status, ""))
				g.RegisterRoutes(engine.Group("/api/v1"))

				w := serveRoute(engine, tt.method, tt.path)
				assert.Equal(t, tt.status, w.Code)
			})
		}
	})

	t.Run("applies middleware before routes", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("test", "/test")

		g.Use(func(c *gin.Context) {
			c.Header("X-Test-Middleware", "applied")
			c.Next()
		})
		g.GET("/items", textHandler(http.StatusOK, "ok"))
		g.RegisterRoutes(engine.Group("/api/v1"))

		w := serveRoute(engine, "GET", "/api/v1/test/items")
		assert.Equal(t, "applied", w.Header().Get("X-Test-Middleware"))
	})

	t.Run("mounts subgroups under the parent prefix", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("sync", "/sync")

		g.Group("configs", "/configs").GET("", textHandler(http.StatusOK, "configs list"))
		g.Group("executions", "/executions").GET("", textHandler(http.StatusOK, "executions list"))
		g.RegisterRoutes(engine.Group("/api/v1"))

		w := serveRoute(engine, "GET", "/api/v1/sync/configs")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "configs list", w.Body.String())

		w = serveRoute(engine, "GET", "/api/v1/sync/executions")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "executions list", w.Body.String())
	})
}

func TestMultipleDomainGroups(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	syncGroup := NewDomainGroup("sync", "/sync")
	syncGroup.GET("/configs", textHandler(http.StatusOK, "configs"))

	webhooks := NewDomainGroup("webhook", "/webhooks")
	webhooks.GET("/channels", textHandler(http.StatusOK, "channels"))

	r.Register(syncGroup).Register(webhooks)
	r.Setup()

	w := serveRoute(engine, "GET", "/api/v1/sync/configs")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "configs", w.Body.String())

	w = serveRoute(engine, "GET", "/api/v1/webhooks/channels")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "channels", w.Body.String())
}

func TestChainedMethodCalls(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	g := NewDomainGroup("test", "/test")
	g.GET("/a", textHandler(http.StatusOK, "a")).
		POST("/b", textHandler(http.StatusOK, "b")).
		PUT("/c", textHandler(http.StatusOK, "c"))

	r.Register(g).Setup()

	for _, tt := range []struct {
		method string
		path   string
	}{
		{"GET", "/api/v1/test/a"},
		{"POST", "/api/v1/test/b"},
		{"PUT", "/api/v1/test/c"},
	} {
		w := serveRoute(engine, tt.method, tt.path)
		assert.Equal(t, http.StatusOK, w.Code, "Route %s %s should work", tt.method, tt.path)
	}
}
