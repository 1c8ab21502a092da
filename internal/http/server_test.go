package http

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"studyhub/internal/auth"
	"studyhub/internal/authz"
	"studyhub/internal/blob"
	"studyhub/internal/config"
	"studyhub/internal/db"
	"studyhub/internal/mail"
	"studyhub/internal/operations"
	"studyhub/internal/tasks"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.JWTIssuer = "test-issuer"
	cfg.Auth.AccessTokenTTL = 15 * time.Minute
	cfg.RateLimit.Disabled = true
	return cfg
}

// newOfflineServer has no database; only requests rejected before any query are safe.
func newOfflineServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	gate, err := authz.NewGate()
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	svc := operations.NewService(cfg, nil, gate, tasks.Inline{}, nil, mail.LogSender{})
	return NewServer(cfg, svc, nil)
}

func doReq(t *testing.T, h http.Handler, method, path, token string, body []byte) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec, env
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	h := newOfflineServer(t, testConfig()).Router()
	rec, env := doReq(t, h, http.MethodGet, "/api/nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if env.Success || env.Error != "Route not found" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newOfflineServer(t, testConfig()).Router()
	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodPost, "/api/forums"},
		{http.MethodGet, "/api/users/notifications"},
		{http.MethodGet, "/api/admin/dashboard"},
		{http.MethodPost, "/api/resources/" + uuid.NewString() + "/rate"},
	}
	for _, p := range paths {
		rec, env := doReq(t, h, p.method, p.path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", p.method, p.path, rec.Code)
		}
		if env.Error != "Not authorized to access this route" {
			t.Fatalf("%s %s: unexpected error %q", p.method, p.path, env.Error)
		}
	}

	rec, _ := doReq(t, h, http.MethodGet, "/api/auth/me", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for malformed token, got %d", rec.Code)
	}

	cfg := testConfig()
	forged, err := auth.NewAccessToken("other-secret", cfg.Auth.JWTIssuer, time.Minute, auth.Claims{UserID: uuid.NewString(), Role: "admin"})
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	rec, _ = doReq(t, h, http.MethodGet, "/api/admin/dashboard", forged, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for forged token, got %d", rec.Code)
	}
}

func TestValidationErrorsAreBadRequest(t *testing.T) {
	h := newOfflineServer(t, testConfig()).Router()

	rec, env := doReq(t, h, http.MethodPost, "/api/auth/login", "", []byte("{"))
	if rec.Code != http.StatusBadRequest || env.Error != "Invalid request body" {
		t.Fatalf("expected invalid body, got %d %+v", rec.Code, env)
	}

	rec, env = doReq(t, h, http.MethodPost, "/api/auth/register", "", []byte(`{"email":"not-an-email"}`))
	if rec.Code != http.StatusBadRequest || env.Success || env.Error == "" {
		t.Fatalf("expected validation failure, got %d %+v", rec.Code, env)
	}

	rec, _ = doReq(t, h, http.MethodPost, "/api/auth/register", "", []byte(`{"name":"A","email":"a@b.co","password":"secret1","faculty":"F","department":"D","role":"admin"}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected self-registration as admin to be rejected, got %d", rec.Code)
	}
}

func TestAuthRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Disabled = false
	cfg.RateLimit.AuthLimit = 2
	cfg.RateLimit.AuthWindow = time.Hour
	h := newOfflineServer(t, cfg).Router()

	for i := 0; i < 2; i++ {
		rec, _ := doReq(t, h, http.MethodPost, "/api/auth/login", "", []byte(`{}`))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("attempt %d: expected 400, got %d", i, rec.Code)
		}
	}
	rec, env := doReq(t, h, http.MethodPost, "/api/auth/login", "", []byte(`{}`))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if env.Error != "Too many authentication attempts, please try again after an hour" {
		t.Fatalf("unexpected message %q", env.Error)
	}

	// Other routes only count against the general policy.
	rec, _ = doReq(t, h, http.MethodGet, "/api/nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[operations.Kind]int{
		operations.KindValidation:      http.StatusBadRequest,
		operations.KindConflict:        http.StatusBadRequest,
		operations.KindUnauthenticated: http.StatusUnauthorized,
		operations.KindForbidden:       http.StatusForbidden,
		operations.KindNotFound:        http.StatusNotFound,
		operations.KindStorage:         http.StatusInternalServerError,
		operations.KindInternal:        http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := statusFor(kind); got != want {
			t.Fatalf("%s: expected %d, got %d", kind, want, got)
		}
	}
}

func TestFailHidesCauseOutsideDevelopment(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Environment = config.EnvProduction
	s := newOfflineServer(t, cfg)
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	rec := httptest.NewRecorder()
	s.fail(rec, req, errors.New("connection refused"))
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusInternalServerError || env.Error != "Server Error" || env.Detail != "" {
		t.Fatalf("unexpected production failure %d %+v", rec.Code, env)
	}

	s.cfg.Server.Environment = config.EnvDevelopment
	rec = httptest.NewRecorder()
	s.fail(rec, req, errors.New("connection refused"))
	env = envelope{}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Detail != "connection refused" {
		t.Fatalf("expected detail in development, got %+v", env)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":             "",
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"Bearerabc":    "",
		"Bearer a b":   "a b",
	}
	for header, want := range cases {
		if got := bearerToken(header); got != want {
			t.Fatalf("bearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newOfflineServer(t, testConfig()).Router()
	doReq(t, h, http.MethodGet, "/api/nope", "", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "studyhub_http_requests_total") {
		t.Fatalf("expected request counter in metrics output")
	}
}

func openTestDB(t *testing.T) *db.Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, url)
	if err != nil {
		t.Skipf("db unavailable: %v", err)
	}
	t.Cleanup(pool.Close)
	require.NoError(t, db.Migrate(ctx, pool, "up"))
	return db.NewStore(pool)
}

func newOnlineServer(t *testing.T) http.Handler {
	t.Helper()
	cfg := testConfig()
	store := openTestDB(t)
	gate, err := authz.NewGate()
	require.NoError(t, err)
	blobs, err := blob.NewStore(t.TempDir(), cfg.Uploads.MaxBytes)
	require.NoError(t, err)
	svc := operations.NewService(cfg, store, gate, tasks.Inline{}, blobs, mail.LogSender{})
	return NewServer(cfg, svc, nil).Router()
}

type sessionBody struct {
	Data struct {
		Token string `json:"token"`
		User  struct {
			ID   string `json:"id"`
			Role string `json:"role"`
		} `json:"user"`
	} `json:"data"`
}

func register(t *testing.T, h http.Handler, role string) (string, string) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{
		"name":       "Grace",
		"email":      uuid.NewString() + "@example.test",
		"password":   "secret1",
		"faculty":    "Science",
		"department": "Computing",
		"role":       role,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var session sessionBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.NotEmpty(t, session.Data.Token)
	return session.Data.User.ID, session.Data.Token
}

func TestForumFlowOverHTTP(t *testing.T) {
	h := newOnlineServer(t)
	_, creator := register(t, h, "student")
	_, replier := register(t, h, "alumni")

	rec, env := doReq(t, h, http.MethodGet, "/api/auth/me", creator, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	rec, _ = doReq(t, h, http.MethodPost, "/api/forums", creator, []byte(`{"title":"Compilers","description":"Parsing help","category":"technical"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	forumID := created.Data.ID

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("content", "Try recursive descent"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/forums/"+forumID+"/posts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+replier)
	postRec := httptest.NewRecorder()
	h.ServeHTTP(postRec, req)
	require.Equal(t, http.StatusCreated, postRec.Code, postRec.Body.String())

	rec, env = doReq(t, h, http.MethodGet, "/api/forums/"+forumID+"/posts?page=1&limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.Count)
	require.Equal(t, 1, *env.Count)
	require.Equal(t, 1, env.Pagination.Total)

	rec, _ = doReq(t, h, http.MethodDelete, "/api/forums/"+forumID, replier, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = doReq(t, h, http.MethodGet, "/api/users/notifications", creator, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.UnreadCount)
	require.Equal(t, 1, *env.UnreadCount)

	rec, _ = doReq(t, h, http.MethodGet, "/api/admin/dashboard", creator, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = doReq(t, h, http.MethodGet, "/api/forums/not-a-uuid", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
