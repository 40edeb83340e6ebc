package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/setting"
	settingentity "github.com/ovaphlow/pitchfork/service-fusion-go/internal/setting/entity"
	settingrepo "github.com/ovaphlow/pitchfork/service-fusion-go/internal/setting/repo"
	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-fusion-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-fusion-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-fusion-go/pkg/utilities"
)

func rootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "fusionctl",
		Short:         "Administer a Fusion deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile == "" {
				_ = godotenv.Load()
				return nil
			}
			return godotenv.Load(envFile)
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment from this file instead of ./.env")

	cmd.AddCommand(migrateCmd(), setupCmd(), userCmd(), versionCmd())
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fusionctl version %s (build: %s)\n", Version, BuildTime)
		},
	}
}

// openUsers resolves the backend the API server would use and opens it.
func openUsers(ctx context.Context) (userrepo.Repository, func() error, database.Type, error) {
	settings, err := setting.NewService(setting.DefaultFiles()...).Load()
	if err != nil {
		return nil, nil, "", fmt.Errorf("load settings: %w", err)
	}
	cfg, err := database.ConfigFromEnv()
	if err != nil {
		return nil, nil, "", err
	}
	if cfg.Type, err = database.ParseType(settings.DatabaseType); err != nil {
		return nil, nil, "", err
	}
	r, closeFn, err := userrepo.Open(ctx, cfg)
	if err != nil {
		return nil, nil, "", err
	}
	return r, closeFn, cfg.Type, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations (indexes for MongoDB)",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, closeFn, t, err := openUsers(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", t)
			return nil
		},
	}
}

func setupCmd() *cobra.Command {
	var (
		path    string
		name    string
		version string
		mode    string
		dbType  string
		host    string
		port    int
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Write the application config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode != "web" && mode != "desktop" {
				return fmt.Errorf("mode must be web or desktop, got %q", mode)
			}
			t, err := database.ParseType(dbType)
			if err != nil {
				return err
			}
			if port <= 0 || port > 65535 {
				return fmt.Errorf("invalid port %d", port)
			}
			if path == "" {
				path = os.Getenv("APP_CONFIG_FILE")
			}
			if path == "" {
				path = "./app_config.json"
			}

			info := settingentity.DefaultAppInfo()
			if name != "" {
				info.Name = name
			}
			if version != "" {
				info.Version = version
			}
			cfg := &settingentity.AppConfig{
				App:      &info,
				Mode:     mode,
				Server:   &settingentity.ServerOverride{Host: host, Port: port},
				Database: &settingentity.DatabaseOverride{Type: string(t)},
			}
			if err := settingrepo.NewFileRepo(path).Save(cfg); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&path, "config", "", "Config file to write (default $APP_CONFIG_FILE or ./app_config.json)")
	f.StringVar(&name, "name", "", "Application name")
	f.StringVar(&version, "app-version", "", "Application version")
	f.StringVar(&mode, "mode", "web", "Run mode (web, desktop)")
	f.StringVar(&dbType, "db", "sqlite", "Database backend (sqlite, postgresql, mysql, mongodb)")
	f.StringVar(&host, "host", "0.0.0.0", "Bind host")
	f.IntVar(&port, "port", 8000, "Bind port")
	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(userCreateCmd(), userActiveCmd("activate", true), userActiveCmd("deactivate", false))
	return cmd
}

func userCreateCmd() *cobra.Command {
	var (
		username string
		email    string
		password string
		fullName string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an active account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("FUSION_PASSWORD")
			}
			users, closeFn, _, err := openUsers(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			ids, err := utilities.NewIDGenerator(utilities.NodeFromEnv())
			if err != nil {
				return err
			}
			in := user.RegisterInput{Username: username, Email: email, Password: password}
			if fullName != "" {
				in.FullName = &fullName
			}
			u, err := user.NewUserService(users, auth.BcryptHasher{Cost: 12}, ids).Register(cmd.Context(), in)
			if err != nil {
				var verr *user.ValidationError
				if errors.As(err, &verr) {
					return fmt.Errorf("invalid input: %s", fieldList(verr.Fields))
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d)\n", u.Username, u.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&username, "username", "", "Login name")
	f.StringVar(&email, "email", "", "Email address")
	f.StringVar(&password, "password", "", "Password (default $FUSION_PASSWORD)")
	f.StringVar(&fullName, "full-name", "", "Display name")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// userActiveCmd toggles is_active. Tokens already issued to a deactivated
// account stop working on their next request.
func userActiveCmd(use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <username>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			users, closeFn, _, err := openUsers(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			u, err := user.NewUserService(users, nil, nil).SetActiveByUsername(cmd.Context(), args[0], active)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: active=%t\n", u.Username, u.IsActive)
			return nil
		},
	}
}

func fieldList(fields []user.FieldError) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Field+" ("+f.Rule+")")
	}
	return strings.Join(parts, ", ")
}
