package router

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/setting"
	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-fusion-go/internal/user/repo"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Settings  *setting.Settings
	Logger    *zap.SugaredLogger
	Users     userrepo.Repository
	Service   *user.UserService
	Authority *auth.Authority
	Metrics   *metrics.HTTP
}

// RegisterRoutes mounts the API under Settings.APIPrefix, /metrics at the
// root and the SPA on everything else, then wraps the mux in the
// middleware chain.
func RegisterRoutes(d Deps) http.Handler {
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	mux := http.NewServeMux()
	prefix := d.Settings.APIPrefix

	settingHandler := setting.NewHandler(d.Settings, d.Users, d.Logger)
	mux.HandleFunc("GET "+prefix+"/health", settingHandler.Health)

	userHandler := user.NewHandler(d.Service, d.Authority, d.Logger)
	gated := RequireUser(auth.NewGate(d.Authority), d.Logger)
	mux.HandleFunc("POST "+prefix+"/auth/register", userHandler.Register)
	mux.HandleFunc("POST "+prefix+"/auth/login", userHandler.Login)
	mux.Handle("GET "+prefix+"/auth/me", gated(http.HandlerFunc(userHandler.Me)))
	mux.Handle("GET "+prefix+"/users", gated(http.HandlerFunc(userHandler.List)))

	mux.Handle("GET /metrics", d.Metrics.Handler())
	mux.Handle("/", spaHandler(d.Settings.FrontendBuildPath, prefix))

	var h http.Handler = mux
	h = SecurityHeadersMiddleware()(h)
	h = CORSMiddleware(d.Settings.CORSOrigins)(h)
	h = MetricsMiddleware(d.Metrics)(h)
	h = LoggingMiddleware(d.Logger)(h)
	h = RequestIDMiddleware()(h)
	h = RecoverMiddleware(d.Logger, d.Settings.Debug)(h)
	return h
}
