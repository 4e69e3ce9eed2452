package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"canchas/pkg/identity"
	"canchas/pkg/logger"
)

const secret = "test-secret"

func token(t *testing.T, id *identity.Identity, ttl time.Duration) string {
	t.Helper()
	tok, err := identity.CreateAccessToken(secret, id, ttl)
	if err != nil {
		t.Fatalf("CreateAccessToken: %v", err)
	}
	return tok
}

func TestAuthentication(t *testing.T) {
	user := &identity.Identity{UserID: "user-1", Role: identity.RoleUsuario}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{name: "anonymous", wantStatus: http.StatusOK},
		{name: "valid token", header: "Bearer " + token(t, user, time.Hour), wantStatus: http.StatusOK, wantUser: "user-1"},
		{name: "expired token", header: "Bearer " + token(t, user, -time.Minute), wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer not-a-jwt", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string
			h := Authentication(secret, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if id, ok := identity.FromContext(r.Context()); ok {
					gotUser = id.UserID
				}
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/reservas", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if gotUser != tt.wantUser {
				t.Errorf("user = %q, want %q", gotUser, tt.wantUser)
			}
		})
	}
}

func TestIdempotency_ReplaysPerCaller(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Minute)
	defer store.Stop()

	var calls atomic.Int32
	h := Idempotency(store, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte{'0' + byte(n)})
	}))

	send := func(ctx context.Context, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reservas", strings.NewReader(`{}`)).WithContext(ctx)
		req.Header.Set(IdempotencyHeader, key)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	alice := identity.WithIdentity(context.Background(), &identity.Identity{UserID: "alice", Role: identity.RoleUsuario})
	bob := identity.WithIdentity(context.Background(), &identity.Identity{UserID: "bob", Role: identity.RoleUsuario})

	first := send(alice, "k1")
	second := send(alice, "k1")
	if first.Body.String() != "1" || second.Body.String() != "1" || second.Code != http.StatusCreated {
		t.Errorf("replay mismatch: %q/%q (%d)", first.Body.String(), second.Body.String(), second.Code)
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Error("replayed response not marked")
	}

	if got := send(bob, "k1").Body.String(); got != "2" {
		t.Errorf("other caller reused cached response: %q", got)
	}
	if calls.Load() != 2 {
		t.Errorf("handler calls = %d, want 2", calls.Load())
	}
}

func TestIdempotency_SkipsFailures(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Minute)
	defer store.Stop()

	var calls atomic.Int32
	h := Idempotency(store, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusConflict)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reservas", nil)
		req.Header.Set(IdempotencyHeader, "k1")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls.Load() != 2 {
		t.Errorf("failed response was cached: calls = %d", calls.Load())
	}
}

func TestRateLimit(t *testing.T) {
	limiter := NewInMemoryRateLimiter(2, time.Minute)
	defer limiter.Stop()

	h := RateLimit(limiter, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/horarios", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("10.0.0.1:1234"); code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, code)
		}
	}
	if code := send("10.0.0.1:5678"); code != http.StatusTooManyRequests {
		t.Errorf("third request: status %d, want 429", code)
	}
	if code := send("10.0.0.2:1234"); code != http.StatusOK {
		t.Errorf("other client throttled: status %d", code)
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "boom") {
		t.Errorf("panic value leaked: %s", rec.Body.String())
	}
}

func TestContentTypeAndSize(t *testing.T) {
	h := MaxRequestSize(16)(ContentTypeValidation(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})))

	tests := []struct {
		name        string
		method      string
		body        string
		contentType string
		wantStatus  int
	}{
		{name: "json", method: http.MethodPost, body: `{}`, contentType: "application/json; charset=utf-8", wantStatus: http.StatusOK},
		{name: "form", method: http.MethodPost, body: `a=b`, contentType: "application/x-www-form-urlencoded", wantStatus: http.StatusUnsupportedMediaType},
		{name: "bodyless post", method: http.MethodPost, wantStatus: http.StatusOK},
		{name: "get", method: http.MethodGet, wantStatus: http.StatusOK},
		{name: "too large", method: http.MethodPost, body: `{"a":"0123456789abcdef"}`, contentType: "application/json", wantStatus: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/reservas", strings.NewReader(tt.body))
			if tt.body == "" {
				req = httptest.NewRequest(tt.method, "/api/v1/reservas", nil)
			}
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequestTimeout(t *testing.T) {
	h := RequestTimeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		time.Sleep(5 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", rec.Code)
	}
}

func TestRequestLogging_PropagatesID(t *testing.T) {
	var seen string
	h := RequestLogging(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestID(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "6f1c1c1e-8d7b-4a57-9a0e-3d3b9f1e2c44")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "6f1c1c1e-8d7b-4a57-9a0e-3d3b9f1e2c44" || rec.Header().Get(RequestIDHeader) != seen {
		t.Errorf("request id not propagated: %q / %q", seen, rec.Header().Get(RequestIDHeader))
	}
}
