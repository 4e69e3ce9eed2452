package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"

	"canchas/pkg/config"
	"canchas/pkg/identity"
	"canchas/pkg/logger"
)

type whoami struct{}

func (whoami) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/whoami", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if id, ok := identity.FromContext(r.Context()); ok {
			_, _ = w.Write([]byte(id.UserID))
			return
		}
		_, _ = w.Write([]byte("anonymous"))
	})
}

func newTestApp(t *testing.T) *Application {
	t.Helper()
	cfg := &config.Config{
		Port:              "8080",
		JWTSecret:         "secret",
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    time.Second,
		IdempotencyTTL:    time.Minute,
		MaxRequestSize:    1 << 20,
		Log:               logger.Nop(),
	}
	a := NewApplication(cfg)
	a.SetApp(whoami{})
	t.Cleanup(func() {
		a.idempotencyStore.Stop()
		a.rateLimiter.Stop()
	})
	return a
}

func TestApplication_RoutesThroughAuth(t *testing.T) {
	a := newTestApp(t)
	tok, err := identity.CreateAccessToken("secret", &identity.Identity{UserID: "user-1", Role: identity.RoleUsuario}, time.Hour)
	if err != nil {
		t.Fatalf("CreateAccessToken: %v", err)
	}

	tests := []struct {
		name       string
		auth       string
		wantStatus int
		wantBody   string
	}{
		{name: "anonymous", wantStatus: http.StatusOK, wantBody: "anonymous"},
		{name: "authenticated", auth: "Bearer " + tok, wantStatus: http.StatusOK, wantBody: "user-1"},
		{name: "bad token", auth: "Bearer nope", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			a.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID")
			}
		})
	}
}

func TestHealthAndReady(t *testing.T) {
	a := newTestApp(t)
	a.Health().AddCheck("mongo", func(context.Context) error { return nil })
	a.Health().SetMetrics(func() map[string]any { return map[string]any{"published": 3} })

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"published":3`) {
		t.Fatalf("ready = %d %s", rec.Code, rec.Body.String())
	}

	a.Health().AddCheck("redis", func(context.Context) error { return errors.New("down") })
	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), `"redis":"error"`) {
		t.Errorf("ready with failing check = %d %s", rec.Code, rec.Body.String())
	}
}
