package setting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/setting/entity"
	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/setting/repo"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"APP_NAME", "APP_VERSION", "ENVIRONMENT", "DEBUG", "HOST", "PORT", "API_PREFIX",
		"DATABASE_TYPE", "CORS_ORIGINS", "FRONTEND_BUILD_PATH", "JWT_SECRET_KEY",
		"JWT_ALGORITHM", "JWT_ACCESS_TOKEN_EXPIRE_MINUTES", "APP_CONFIG_FILE", "CONFIG_FILE",
	} {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	s := FromEnv()
	assert.Equal(t, "development", s.Environment)
	assert.True(t, s.Debug)
	assert.Equal(t, "0.0.0.0:8000", s.Addr())
	assert.Equal(t, "/api", s.APIPrefix)
	assert.Equal(t, "sqlite", s.DatabaseType)
	assert.Len(t, s.CORSOrigins, 3)
	assert.Equal(t, "HS256", s.JWTAlgorithm)
	assert.Equal(t, 30*60.0, s.TokenTTL().Seconds())
	assert.Equal(t, "Fusion", s.App.Name)
	assert.True(t, s.IsDevelopment())
	assert.NoError(t, s.Validate())
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DEBUG", "false")
	t.Setenv("API_PREFIX", "v1/")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("JWT_ACCESS_TOKEN_EXPIRE_MINUTES", "5")

	s := FromEnv()
	assert.True(t, s.IsProduction())
	assert.False(t, s.Debug)
	assert.Equal(t, "/v1", s.APIPrefix)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, s.CORSOrigins)
	assert.Equal(t, 5*60.0, s.TokenTTL().Seconds())

	// the development secret is refused in production
	assert.Error(t, s.Validate())
	s.JWTSecretKey = "prod-secret"
	assert.NoError(t, s.Validate())
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	s := FromEnv()
	s.JWTSecretKey = ""
	assert.Error(t, s.Validate())

	s = FromEnv()
	s.JWTExpireMinutes = 0
	assert.Error(t, s.Validate())

	s = FromEnv()
	s.Port = 70000
	assert.Error(t, s.Validate())
}

func TestLoad_ConfigFiles(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "app_config.json")
	require.NoError(t, repo.NewFileRepo(jsonPath).Save(&entity.AppConfig{
		App:      &entity.AppInfo{Name: "Acme", Version: "2.0.0"},
		Mode:     "desktop",
		Server:   &entity.ServerOverride{Port: 9000},
		Database: &entity.DatabaseOverride{Type: "postgresql"},
	}))
	yamlPath := filepath.Join(dir, "override.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("server:\n  host: 127.0.0.1\n"), 0o644))

	s, err := NewService(repo.NewFileRepo(jsonPath), repo.NewFileRepo(yamlPath), repo.NewFileRepo(filepath.Join(dir, "missing.json"))).Load()
	require.NoError(t, err)
	assert.Equal(t, "Acme", s.App.Name)
	assert.Equal(t, "2.0.0", s.App.Version)
	assert.Equal(t, "desktop", s.Mode)
	assert.Equal(t, "postgresql", s.DatabaseType)
	assert.Equal(t, "127.0.0.1:9000", s.Addr())
}

func TestApply_DesktopBindsLoopback(t *testing.T) {
	clearEnv(t)
	s := FromEnv()
	s.Apply(&entity.AppConfig{Mode: "desktop", Server: &entity.ServerOverride{Host: "0.0.0.0", Port: 9100}})
	assert.Equal(t, "127.0.0.1:9100", s.Addr())

	s = FromEnv()
	s.Apply(&entity.AppConfig{Mode: "web", Server: &entity.ServerOverride{Host: "10.0.0.5"}})
	assert.Equal(t, "10.0.0.5", s.Host)
}

func TestLoad_BadFile(t *testing.T) {
	clearEnv(t)
	p := filepath.Join(t.TempDir(), "app_config.json")
	require.NoError(t, os.WriteFile(p, []byte("{nope"), 0o644))
	_, err := NewService(repo.NewFileRepo(p)).Load()
	assert.Error(t, err)
}

func TestDefaultFiles(t *testing.T) {
	clearEnv(t)
	files := DefaultFiles()
	require.Len(t, files, 1)
	assert.Equal(t, "./app_config.json", files[0].Path())

	t.Setenv("CONFIG_FILE", "/etc/fusion.yaml")
	assert.Len(t, DefaultFiles(), 2)
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealth(t *testing.T) {
	clearEnv(t)
	s := FromEnv()

	for _, tc := range []struct {
		err  error
		want string
	}{
		{nil, "connected"},
		{errors.New("dial tcp: refused"), "error: dial tcp: refused"},
	} {
		rec := httptest.NewRecorder()
		NewHandler(&s, fakePinger{tc.err}, zap.NewNop().Sugar()).Health(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		var body HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "healthy", body.Status)
		assert.Equal(t, tc.want, body.Database)
		assert.Equal(t, "development", body.Environment)
	}
}
