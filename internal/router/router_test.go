package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/setting"
	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/setting/entity"
	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-fusion-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-fusion-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-fusion-go/pkg/utilities"
)

type testServer struct {
	handler http.Handler
	svc     *user.UserService
	metrics *metrics.HTTP
}

func newTestServer(t *testing.T, frontend string) *testServer {
	t.Helper()
	dir := t.TempDir()
	users, closeDB, err := userrepo.Open(context.Background(), database.Config{
		Type:       database.SQLite,
		SQLitePath: filepath.Join(dir, "app.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeDB() })

	ids, err := utilities.NewIDGenerator(1)
	require.NoError(t, err)
	hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}
	authority, err := auth.New(auth.Config{SecretKey: []byte("router-test-secret")}, users, hasher)
	require.NoError(t, err)

	if frontend == "" {
		frontend = filepath.Join(dir, "missing-dist")
	}
	settings := &setting.Settings{
		Environment:       "test",
		Debug:             false,
		APIPrefix:         "/api",
		CORSOrigins:       []string{"http://localhost:5173"},
		FrontendBuildPath: frontend,
		Mode:              "web",
		App:               entity.DefaultAppInfo(),
	}
	svc := user.NewUserService(users, hasher, ids)
	m := metrics.New()
	h := RegisterRoutes(Deps{
		Settings:  settings,
		Logger:    zap.NewNop().Sugar(),
		Users:     users,
		Service:   svc,
		Authority: authority,
		Metrics:   m,
	})
	return &testServer{handler: h, svc: svc, metrics: m}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func (s *testServer) loginForm(t *testing.T, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req)
}

func (s *testServer) get(path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.do(req)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "")
	rec := s.get("/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[setting.HealthResponse](t, rec)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "connected", body.Database)
	assert.Equal(t, "Fusion", body.AppName)
	assert.Equal(t, "web", body.Mode)

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, rec.Header().Get("X-Process-Time"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRegister(t *testing.T) {
	s := newTestServer(t, "")
	rec := s.register(t, `{"email":"Alice@Example.com","username":"alice","password":"Sup3rSecret!","full_name":"Alice"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.IsType(t, "", body["id"])
	assert.Equal(t, "alice@example.com", body["email"])
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, true, body["is_active"])
	assert.NotContains(t, body, "hashed_password")

	rec = s.register(t, `{"email":"alice@example.com","username":"alice2","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email or username already registered", decode[map[string]string](t, rec)["error"])

	rec = s.register(t, `{"email":"nope","username":"","password":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "validation error", decode[map[string]any](t, rec)["error"])

	rec = s.register(t, `{not json`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestLoginAndGatedRoutes(t *testing.T) {
	s := newTestServer(t, "")
	require.Equal(t, http.StatusCreated, s.register(t, `{"email":"alice@example.com","username":"alice","password":"Sup3rSecret!"}`).Code)

	rec := s.loginForm(t, "alice", "Sup3rSecret!")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tok := decode[user.TokenResponse](t, rec)
	assert.Equal(t, "bearer", tok.TokenType)
	assert.Equal(t, int64(1800), tok.ExpiresIn)
	require.NotEmpty(t, tok.AccessToken)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"alice","password":"Sup3rSecret!"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	assert.Equal(t, http.StatusOK, s.do(req).Code)

	rec = s.get("/api/auth/me", tok.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode[map[string]any](t, rec)["username"])

	rec = s.get("/api/users?skip=0&limit=10", tok.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	assert.Equal(t, http.StatusUnprocessableEntity, s.get("/api/users?limit=abc", tok.AccessToken).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, s.get("/api/users?skip=-1", tok.AccessToken).Code)
}

func TestLoginMultipartForm(t *testing.T) {
	s := newTestServer(t, "")
	require.Equal(t, http.StatusCreated, s.register(t, `{"email":"alice@example.com","username":"alice","password":"Sup3rSecret!"}`).Code)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("username", "alice"))
	require.NoError(t, mw.WriteField("password", "Sup3rSecret!"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := s.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode[user.TokenResponse](t, rec).AccessToken)
}

func TestOversizedBody(t *testing.T) {
	s := newTestServer(t, "")
	huge := `{"email":"a@example.com","username":"a","password":"` + strings.Repeat("x", 2<<20) + `"}`
	rec := s.register(t, huge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(huge))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusRequestEntityTooLarge, s.do(req).Code)
}

func TestLoginFailuresAreUniform(t *testing.T) {
	s := newTestServer(t, "")
	require.Equal(t, http.StatusCreated, s.register(t, `{"email":"alice@example.com","username":"alice","password":"Sup3rSecret!"}`).Code)

	wrong := s.loginForm(t, "alice", "wrong")
	unknown := s.loginForm(t, "mallory", "wrong")
	empty := s.loginForm(t, "", "")
	for _, rec := range []*httptest.ResponseRecorder{wrong, unknown, empty} {
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
		assert.Equal(t, "Incorrect username or password", decode[map[string]string](t, rec)["error"])
	}
}

func TestGateRejections(t *testing.T) {
	s := newTestServer(t, "")
	for _, h := range []string{"", "Bearer", "Basic abc", "Bearer not.a.jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		if h != "" {
			req.Header.Set("Authorization", h)
		}
		rec := s.do(req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, h)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	}
}

func TestDeactivationRevokesAccess(t *testing.T) {
	s := newTestServer(t, "")
	require.Equal(t, http.StatusCreated, s.register(t, `{"email":"alice@example.com","username":"alice","password":"Sup3rSecret!"}`).Code)
	tok := decode[user.TokenResponse](t, s.loginForm(t, "alice", "Sup3rSecret!")).AccessToken
	require.Equal(t, http.StatusOK, s.get("/api/auth/me", tok).Code)

	_, err := s.svc.SetActiveByUsername(context.Background(), "alice", false)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, s.get("/api/auth/me", tok).Code)
	assert.Equal(t, http.StatusUnauthorized, s.loginForm(t, "alice", "Sup3rSecret!").Code)

	_, err = s.svc.SetActiveByUsername(context.Background(), "alice", true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, s.get("/api/auth/me", tok).Code)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := s.do(req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = s.do(req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec = s.do(req)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, strings.ToLower(rec.Header().Get("Access-Control-Expose-Headers")), "x-request-id")

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = s.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, "")
	s.get("/api/health", "")
	rec := s.get("/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/api/health",status="200"} 1`)
}

func TestFrontendMissing(t *testing.T) {
	s := newTestServer(t, "")
	rec := s.get("/", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Frontend not built", decode[map[string]string](t, rec)["error"])
}

func TestSPA(t *testing.T) {
	dist := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dist, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dist, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dist, "assets", "app.js"), []byte("console.log(1)"), 0o644))
	s := newTestServer(t, dist)

	rec := s.get("/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "app</html>")

	rec = s.get("/dashboard/settings", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "app</html>")

	rec = s.get("/assets/app.js", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, s.get("/api/nope", "").Code)
	assert.Equal(t, http.StatusNotFound, s.get("/static/missing.css", "").Code)
}

func TestRecover(t *testing.T) {
	for _, detail := range []bool{false, true} {
		h := RecoverMiddleware(zap.NewNop().Sugar(), detail)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		msg := decode[map[string]string](t, rec)["error"]
		if detail {
			assert.Equal(t, "boom", msg)
		} else {
			assert.Equal(t, "internal server error", msg)
		}
	}
}

func TestRequestIDPassthrough(t *testing.T) {
	var seen string
	h := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}
