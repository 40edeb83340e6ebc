package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/setting"
	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-fusion-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-fusion-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-fusion-go/pkg/utilities"
)

func main() {
	// best-effort: a missing .env means plain environment
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()

	settings, err := setting.NewService(setting.DefaultFiles()...).Load()
	if err != nil {
		sugar.Fatalf("load settings: %v", err)
	}
	if settings.IsProduction() {
		sugar.Info("running in production mode")
	} else if settings.JWTSecretKey == setting.DefaultSecretKey {
		sugar.Warn("JWT_SECRET_KEY is the development default")
	}
	sugar.Infow("starting", "app", settings.App.Name, "version", settings.App.Version, "mode", settings.Mode)

	dbCfg, err := database.ConfigFromEnv()
	if err != nil {
		sugar.Fatalf("database config: %v", err)
	}
	// app_config.json may pick another backend than the environment
	if dbCfg.Type, err = database.ParseType(settings.DatabaseType); err != nil {
		sugar.Fatalf("database config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, closeDB, err := userrepo.Open(ctx, dbCfg)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer closeDB()
	sugar.Infow("database ready", "type", dbCfg.Type)

	ids, err := utilities.NewIDGenerator(utilities.NodeFromEnv())
	if err != nil {
		sugar.Fatalf("id generator: %v", err)
	}
	hasher := auth.BcryptHasher{Cost: 12}
	authority, err := auth.New(auth.Config{
		SecretKey: []byte(settings.JWTSecretKey),
		Algorithm: settings.JWTAlgorithm,
		TokenTTL:  settings.TokenTTL(),
	}, users, hasher)
	if err != nil {
		sugar.Fatalf("auth: %v", err)
	}

	handler := router.RegisterRoutes(router.Deps{
		Settings:  settings,
		Logger:    sugar,
		Users:     users,
		Service:   user.NewUserService(users, hasher, ids),
		Authority: authority,
		Metrics:   metrics.New(),
	})
	srv := &http.Server{
		Addr:              settings.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sugar.Infow("listening", "addr", srv.Addr, "api_prefix", settings.APIPrefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := users.Ping(doneCtx); err != nil {
		sugar.Warnf("db ping on shutdown failed: %v", err)
	}
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
