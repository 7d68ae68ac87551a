package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ryohei/inkwell/internal/metrics"
	"github.com/ryohei/inkwell/internal/model"
	"github.com/ryohei/inkwell/internal/post"
)

// --- モック定義 ---

type mockTokenVerifier struct {
	verifyFn func(token string) (string, error)
}

func (m *mockTokenVerifier) Verify(token string) (string, error) {
	if m.verifyFn != nil {
		return m.verifyFn(token)
	}
	return "", errors.New("invalid token")
}

type mockUserFinder struct {
	findByIDFn func(ctx context.Context, id int64) (*model.User, error)
}

func (m *mockUserFinder) FindByID(ctx context.Context, id int64) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, model.NewUserNotFoundError()
}

type mockHealthChecker struct {
	pingFn func(ctx context.Context) error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func newTestRouter(t *testing.T, deps *RouterDeps) http.Handler {
	t.Helper()
	if deps.TokenVerifier == nil {
		deps.TokenVerifier = &mockTokenVerifier{}
	}
	if deps.UserFinder == nil {
		deps.UserFinder = &mockUserFinder{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if deps.AuthService == nil {
		deps.AuthService = &mockAuthService{}
	}
	if deps.ProfileService == nil {
		deps.ProfileService = &mockProfileService{}
	}
	if deps.PostService == nil {
		deps.PostService = &mockPostService{}
	}
	if deps.ItemService == nil {
		deps.ItemService = &mockItemService{}
	}
	return NewRouter(deps)
}

// --- テスト ---

func TestRouter_HealthCheck_Healthy(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{
		HealthChecker: &mockHealthChecker{},
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestRouter_HealthCheck_DatabaseDown(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{
		HealthChecker: &mockHealthChecker{
			pingFn: func(ctx context.Context) error {
				return errors.New("connection refused")
			},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if !strings.Contains(rec.Body.String(), `"status":"unhealthy"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.NewCollector(reg)

	router := newTestRouter(t, &RouterDeps{Gatherer: reg})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRouter_MetricsEndpointDisabledWithoutGatherer(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestRouter_ProtectedRoutesRequireAuth(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/profile"},
		{http.MethodPut, "/api/profile"},
		{http.MethodPost, "/api/posts"},
		{http.MethodPut, "/api/posts/1"},
		{http.MethodDelete, "/api/posts/1"},
		{http.MethodPost, "/api/items"},
		{http.MethodGet, "/api/items"},
		{http.MethodGet, "/api/items/count"},
		{http.MethodGet, "/api/items/1"},
		{http.MethodPut, "/api/items/1"},
		{http.MethodDelete, "/api/items/1"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			req := httptest.NewRequest(route.method, route.path, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestRouter_PublicPostRoutesAllowAnonymous(t *testing.T) {
	postSvc := &mockPostService{
		listFn: func(ctx context.Context, opts post.ListOptions) ([]*model.PostWithAuthor, error) {
			return nil, nil
		},
		getFn: func(ctx context.Context, postID int64, requesterID *int64) (*model.PostWithAuthor, error) {
			return &model.PostWithAuthor{
				Post: model.Post{ID: postID, Status: model.PostStatusPublished},
			}, nil
		},
	}
	router := newTestRouter(t, &RouterDeps{PostService: postSvc})

	for _, path := range []string{"/api/posts", "/api/posts/1"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d: %s", path, rec.Code, http.StatusOK, rec.Body.String())
		}
	}
}

func TestRouter_AuthenticatedRequestReachesHandler(t *testing.T) {
	user := &model.User{ID: 7, Email: "taro@example.com", DisplayName: "太郎"}
	router := newTestRouter(t, &RouterDeps{
		TokenVerifier: &mockTokenVerifier{
			verifyFn: func(token string) (string, error) {
				if token != "valid-token" {
					return "", errors.New("invalid token")
				}
				return "7", nil
			},
		},
		UserFinder: &mockUserFinder{
			findByIDFn: func(ctx context.Context, id int64) (*model.User, error) {
				return user, nil
			},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "taro@example.com") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestRouter_SecurityHeadersApplied(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("X-Request-Id"); got == "" {
		t.Error("X-Request-Id should be set")
	}
}
