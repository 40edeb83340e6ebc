package setting

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/setting/entity"
	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/setting/repo"
)

// DefaultSecretKey is the development fallback for JWT_SECRET_KEY. It is
// refused in production.
const DefaultSecretKey = "your-secret-key-change-in-production"

// DesktopHost is the bind host forced in desktop mode.
const DesktopHost = "127.0.0.1"

// Settings holds runtime settings for the API process.
type Settings struct {
	Environment       string   // development / production / test
	Debug             bool     // include panic details in 500 responses
	Host              string   // bind host
	Port              int      // bind port
	APIPrefix         string   // mount point of the JSON API
	DatabaseType      string   // sqlite / postgresql / mysql / mongodb
	CORSOrigins       []string // allowed origins for CORS
	FrontendBuildPath string   // directory holding the built SPA
	JWTSecretKey      string   // HMAC key for session tokens
	JWTAlgorithm      string   // HS256 / HS384 / HS512
	JWTExpireMinutes  int      // token validity window
	Mode              string   // web / desktop
	App               entity.AppInfo
}

// FromEnv populates Settings from environment variables with defaults.
func FromEnv() Settings {
	info := entity.DefaultAppInfo()
	info.Name = firstNonEmpty(os.Getenv("APP_NAME"), info.Name)
	info.Version = firstNonEmpty(os.Getenv("APP_VERSION"), info.Version)
	return Settings{
		Environment:       firstNonEmpty(os.Getenv("ENVIRONMENT"), "development"),
		Debug:             boolFromEnv("DEBUG", true),
		Host:              firstNonEmpty(os.Getenv("HOST"), "0.0.0.0"),
		Port:              intFromEnv("PORT", 8000),
		APIPrefix:         normalizePrefix(firstNonEmpty(os.Getenv("API_PREFIX"), "/api")),
		DatabaseType:      firstNonEmpty(os.Getenv("DATABASE_TYPE"), "sqlite"),
		CORSOrigins:       parseCSV(firstNonEmpty(os.Getenv("CORS_ORIGINS"), "http://localhost:3000,http://localhost:5173,http://localhost:8000")),
		FrontendBuildPath: firstNonEmpty(os.Getenv("FRONTEND_BUILD_PATH"), "./frontend/dist"),
		JWTSecretKey:      firstNonEmpty(os.Getenv("JWT_SECRET_KEY"), DefaultSecretKey),
		JWTAlgorithm:      firstNonEmpty(os.Getenv("JWT_ALGORITHM"), "HS256"),
		JWTExpireMinutes:  intFromEnv("JWT_ACCESS_TOKEN_EXPIRE_MINUTES", 30),
		Mode:              "web",
		App:               info,
	}
}

// Apply overlays values from an application config file.
func (s *Settings) Apply(cfg *entity.AppConfig) {
	if cfg == nil {
		return
	}
	if cfg.App != nil {
		s.App = *cfg.App
	}
	if cfg.Mode != "" {
		s.Mode = cfg.Mode
	}
	if cfg.Server != nil {
		if cfg.Server.Host != "" {
			s.Host = cfg.Server.Host
		}
		if cfg.Server.Port != 0 {
			s.Port = cfg.Server.Port
		}
	}
	if cfg.Database != nil && cfg.Database.Type != "" {
		s.DatabaseType = cfg.Database.Type
	}
	// desktop builds only ever serve the local user
	if s.Mode == "desktop" {
		s.Host = DesktopHost
	}
}

func (s *Settings) IsDevelopment() bool { return strings.EqualFold(s.Environment, "development") }
func (s *Settings) IsProduction() bool  { return strings.EqualFold(s.Environment, "production") }

// Addr is the listen address.
func (s *Settings) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// TokenTTL is the validity window of issued session tokens.
func (s *Settings) TokenTTL() time.Duration {
	return time.Duration(s.JWTExpireMinutes) * time.Minute
}

// Validate rejects settings that would make the process unsafe or unusable.
func (s *Settings) Validate() error {
	if s.JWTSecretKey == "" {
		return errors.New("JWT_SECRET_KEY is empty")
	}
	if s.IsProduction() && s.JWTSecretKey == DefaultSecretKey {
		return errors.New("JWT_SECRET_KEY must be set in production")
	}
	if s.JWTExpireMinutes <= 0 {
		return fmt.Errorf("JWT_ACCESS_TOKEN_EXPIRE_MINUTES must be positive, got %d", s.JWTExpireMinutes)
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("invalid port %d", s.Port)
	}
	return nil
}

// Service loads settings from the environment and the config files.
type Service struct {
	files []*repo.FileRepo
}

// NewService constructs a Service. Files are applied in order; later files
// win.
func NewService(files ...*repo.FileRepo) *Service {
	return &Service{files: files}
}

// DefaultFiles returns the config files named by APP_CONFIG_FILE (default
// ./app_config.json) and CONFIG_FILE (YAML overlay, optional).
func DefaultFiles() []*repo.FileRepo {
	files := []*repo.FileRepo{repo.NewFileRepo(firstNonEmpty(os.Getenv("APP_CONFIG_FILE"), "./app_config.json"))}
	if p := os.Getenv("CONFIG_FILE"); p != "" {
		files = append(files, repo.NewFileRepo(p))
	}
	return files
}

// Load returns validated settings.
func (s *Service) Load() (*Settings, error) {
	st := FromEnv()
	for _, f := range s.files {
		cfg, err := f.Load()
		if err != nil {
			return nil, err
		}
		st.Apply(cfg)
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	return &st, nil
}

func normalizePrefix(p string) string {
	p = strings.TrimRight(p, "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// boolFromEnv reads a boolean from env var name, falling back to defaultVal when empty or invalid.
func boolFromEnv(name string, defaultVal bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func intFromEnv(name string, defaultVal int) int {
	v := os.Getenv(name)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func parseCSV(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
