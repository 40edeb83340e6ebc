package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Type selects the storage backend.
type Type string

const (
	SQLite     Type = "sqlite"
	PostgreSQL Type = "postgresql"
	MySQL      Type = "mysql"
	MongoDB    Type = "mongodb"
)

// ParseType normalizes a backend name. "postgres" is accepted as an alias.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgresql", "postgres":
		return PostgreSQL, nil
	case "mysql":
		return MySQL, nil
	case "mongodb", "mongo":
		return MongoDB, nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", s)
	}
}

// IsSQL reports whether the backend is served through database/sql.
func (t Type) IsSQL() bool { return t != MongoDB }

// Endpoint holds network connection settings for a server backend.
type Endpoint struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
}

type Config struct {
	Type       Type
	SQLitePath string
	// URL overrides the Postgres endpoint when set (DATABASE_URL).
	URL            string
	Postgres       Endpoint
	MySQL          Endpoint
	Mongo          Endpoint
	MaxConns       int
	Timeout        time.Duration
	TimeZone       string
	ClientEncoding string
}

// ConfigFromEnv reads DB config from environment variables
func ConfigFromEnv() (Config, error) {
	t, err := ParseType(os.Getenv("DATABASE_TYPE"))
	if err != nil {
		return Config{}, err
	}
	return Config{
		Type:       t,
		SQLitePath: envOr("SQLITE_DB_PATH", "./data/app.db"),
		URL:        os.Getenv("DATABASE_URL"),
		Postgres: Endpoint{
			Host:     envOr("POSTGRES_HOST", "localhost"),
			Port:     envInt("POSTGRES_PORT", 5432),
			Name:     envOr("POSTGRES_DB", "fusion"),
			User:     envOr("POSTGRES_USER", "postgres"),
			Password: envOr("POSTGRES_PASSWORD", "postgres"),
		},
		MySQL: Endpoint{
			Host:     envOr("MYSQL_HOST", "localhost"),
			Port:     envInt("MYSQL_PORT", 3306),
			Name:     envOr("MYSQL_DB", "fusion"),
			User:     envOr("MYSQL_USER", "root"),
			Password: envOr("MYSQL_PASSWORD", "root"),
		},
		Mongo: Endpoint{
			Host:     envOr("MONGODB_HOST", "localhost"),
			Port:     envInt("MONGODB_PORT", 27017),
			Name:     envOr("MONGODB_DB", "fusion"),
			User:     os.Getenv("MONGODB_USER"),
			Password: os.Getenv("MONGODB_PASSWORD"),
		},
		MaxConns:       envInt("DATABASE_MAX_CONNS", 5),
		Timeout:        5 * time.Second,
		TimeZone:       os.Getenv("DATABASE_TIMEZONE"),
		ClientEncoding: os.Getenv("DATABASE_CLIENT_ENCODING"),
	}, nil
}

// DriverName returns the database/sql driver registered for the backend.
func (c Config) DriverName() string {
	switch c.Type {
	case PostgreSQL:
		return "postgres"
	case MySQL:
		return "mysql"
	default:
		return "sqlite"
	}
}

// DSN builds the driver-specific data source name.
func (c Config) DSN() string {
	switch c.Type {
	case PostgreSQL:
		return c.postgresDSN()
	case MySQL:
		mc := mysql.NewConfig()
		mc.User = c.MySQL.User
		mc.Passwd = c.MySQL.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.MySQL.Host, strconv.Itoa(c.MySQL.Port))
		mc.DBName = c.MySQL.Name
		mc.ParseTime = true
		return mc.FormatDSN()
	default:
		return "file:" + c.SQLitePath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
}

// postgresDSN carries the session settings as connection parameters so
// lib/pq applies them to every pooled connection, not just the first one.
func (c Config) postgresDSN() string {
	var u *url.URL
	if c.URL != "" {
		parsed, err := url.Parse(c.URL)
		if err != nil {
			return c.URL
		}
		u = parsed
	} else {
		u = &url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.Postgres.User, c.Postgres.Password),
			Host:     net.JoinHostPort(c.Postgres.Host, strconv.Itoa(c.Postgres.Port)),
			Path:     "/" + c.Postgres.Name,
			RawQuery: "sslmode=disable",
		}
	}
	q := u.Query()
	if c.TimeZone != "" {
		q.Set("timezone", c.TimeZone)
	}
	if c.ClientEncoding != "" {
		q.Set("client_encoding", c.ClientEncoding)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// MongoURI builds the connection string for the MongoDB backend.
func (c Config) MongoURI() string {
	u := url.URL{
		Scheme: "mongodb",
		Host:   net.JoinHostPort(c.Mongo.Host, strconv.Itoa(c.Mongo.Port)),
		Path:   "/" + c.Mongo.Name,
	}
	if c.Mongo.User != "" && c.Mongo.Password != "" {
		u.User = url.UserPassword(c.Mongo.User, c.Mongo.Password)
	}
	return u.String()
}

// Connect opens a *sqlx.DB for SQL backends and verifies connectivity with a ping
func Connect(cfg Config) (*sqlx.DB, error) {
	if !cfg.Type.IsSQL() {
		return nil, fmt.Errorf("connect: %s is not a SQL backend", cfg.Type)
	}
	if cfg.Type == SQLite {
		if dir := filepath.Dir(cfg.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
	}
	db, err := sqlx.Open(cfg.DriverName(), cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 5
	}
	// sqlite serializes writers; a single connection avoids SQLITE_BUSY
	if cfg.Type == SQLite {
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
