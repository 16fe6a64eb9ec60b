package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoActor() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := UserIDFromContext(r.Context())
		_, _ = w.Write([]byte(id))
	})
}

func TestTokenAuth_IssueAndVerify(t *testing.T) {
	auth := NewTokenAuth("secret", "pittstate-connect")

	token, err := auth.Issue("user-1", time.Hour)
	require.NoError(t, err)

	sub, err := auth.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)

	_, err = NewTokenAuth("other-secret", "pittstate-connect").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewTokenAuth("secret", "someone-else").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenAuth_Expired(t *testing.T) {
	auth := NewTokenAuth("secret", "")
	past := time.Now().Add(-2 * time.Hour)
	auth.now = func() time.Time { return past }
	token, err := auth.Issue("user-1", time.Hour)
	require.NoError(t, err)

	auth.now = time.Now
	_, err = auth.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenAuth_Middleware(t *testing.T) {
	auth := NewTokenAuth("secret", "")
	token, err := auth.Issue("mentor-7", time.Hour)
	require.NoError(t, err)
	h := auth.Middleware(echoActor())

	tests := []struct {
		name     string
		prepare  func(r *http.Request)
		wantCode int
		wantBody string
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK, "mentor-7"},
		{"query token", func(r *http.Request) { r.URL.RawQuery = "token=" + token }, http.StatusOK, "mentor-7"},
		{"missing", func(*http.Request) {}, http.StatusUnauthorized, "unauthorized"},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized, "unauthorized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/matches", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestAdminKeyAuth(t *testing.T) {
	hash, err := HashAdminKey("let-me-in")
	require.NoError(t, err)
	auth := NewAdminKeyAuth("", hash)
	h := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodDelete, "/admin/v1/matches/m-1", nil)
		if key != "" {
			req.Header.Set("X-Admin-Key", key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, do("let-me-in").Code)
	assert.Equal(t, http.StatusForbidden, do("wrong").Code)
	assert.Equal(t, http.StatusUnauthorized, do("").Code)

	assert.False(t, NewAdminKeyAuth("", "").IsValid("let-me-in"), "empty hash rejects everything")
}

func TestIPRateLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(0.001, 2)
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("1.1.1.1"))
	assert.Equal(t, http.StatusOK, call("1.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("1.1.1.1"))
	assert.Equal(t, http.StatusOK, call("2.2.2.2"), "buckets are per client")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", ClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", ClientIP(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	assert.Equal(t, "203.0.113.9", ClientIP(req))
}

func TestRequestSizeLimit(t *testing.T) {
	h := RequestSizeLimitMiddleware(8)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("this body is too long"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) MiddlewareFunc {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(mw("outer"), mw("inner"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestCompositeHealthChecker(t *testing.T) {
	hc := NewCompositeHealthChecker("1.2.3")
	status := hc.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, "No health checks registered", status.Message)

	hc.AddCheck("postgres", func(context.Context) error { return nil })
	hc.AddCheck("migrations", func(context.Context) error { return errors.New("schema behind") })

	status = hc.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.False(t, status.Ready)
	assert.True(t, status.Checks["postgres"].Healthy)
	assert.Equal(t, "schema behind", status.Checks["migrations"].Message)
	assert.Equal(t, "Some checks failed: migrations", status.Message)
	assert.Equal(t, "1.2.3", status.Version)
}

func TestCompositeHealthChecker_OptionalCheckDegrades(t *testing.T) {
	hc := NewCompositeHealthChecker("")
	hc.AddCheck("postgres", func(context.Context) error { return nil })
	hc.AddOptionalCheck("redis", func(context.Context) error { return errors.New("connection refused") })

	status := hc.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.True(t, status.Degraded)
	assert.True(t, status.Checks["redis"].Optional)
	assert.Equal(t, "Degraded: redis", status.Message)
}

func TestCompositeHealthChecker_Timeout(t *testing.T) {
	hc := NewCompositeHealthChecker("")
	hc.SetTimeout(20 * time.Millisecond)
	hc.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := hc.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Contains(t, status.Checks["slow"].Message, "deadline exceeded")
}
