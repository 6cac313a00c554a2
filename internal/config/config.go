package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"expense-tracker/internal/auth"

	"github.com/spf13/viper"
)

// Config holds the server configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Session  SessionConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Log      LogConfig
	Admin    AdminConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port           string
	SecureCookie   bool
	AllowedOrigins []string
}

// DatabaseConfig selects and tunes the SQL backend.
type DatabaseConfig struct {
	Driver          string
	Path            string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SessionConfig selects where sessions live and how long they last.
type SessionConfig struct {
	Backend  string
	Duration time.Duration
}

// RedisConfig is used when Session.Backend is "redis".
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig selects the password hasher.
type AuthConfig struct {
	Hasher        string
	BcryptCost    int
	Argon2Memory  uint32
	Argon2Time    uint32
	Argon2Threads uint8
}

// LogConfig configures zap.
type LogConfig struct {
	Level       string
	Development bool
}

// AdminConfig seeds a first user when the database has none.
type AdminConfig struct {
	User     string
	Password string
}

var envBindings = map[string]string{
	"server.port":                "PORT",
	"server.secure_cookie":       "SECURE_COOKIE",
	"server.allowed_origins":     "ALLOWED_ORIGINS",
	"database.driver":            "DB_DRIVER",
	"database.path":              "DB_PATH",
	"database.dsn":               "DATABASE_URL",
	"database.max_open_conns":    "DATABASE_MAX_OPEN_CONNS",
	"database.max_idle_conns":    "DATABASE_MAX_IDLE_CONNS",
	"database.conn_max_lifetime": "DATABASE_CONN_MAX_LIFETIME",
	"session.backend":            "SESSION_BACKEND",
	"session.duration":           "SESSION_DURATION",
	"redis.addr":                 "REDIS_ADDR",
	"redis.password":             "REDIS_PASSWORD",
	"redis.db":                   "REDIS_DB",
	"auth.hasher":                "PASSWORD_HASHER",
	"auth.bcrypt_cost":           "BCRYPT_COST",
	"auth.argon2_memory":         "ARGON2_MEMORY",
	"auth.argon2_time":           "ARGON2_TIME",
	"auth.argon2_threads":        "ARGON2_THREADS",
	"log.level":                  "LOG_LEVEL",
	"log.development":            "LOG_DEVELOPMENT",
	"admin.user":                 "ADMIN_USER",
	"admin.password":             "ADMIN_PASSWORD",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.secure_cookie", false)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "expenses.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("session.backend", "sql")
	v.SetDefault("session.duration", 30*24*time.Hour)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.hasher", "bcrypt")
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.argon2_memory", 64*1024)
	v.SetDefault("auth.argon2_time", 3)
	v.SetDefault("auth.argon2_threads", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("admin.user", "")
	v.SetDefault("admin.password", "")
}

// Load reads configuration from the environment and, when envFile is non-empty
// and exists, from that dotenv file. Environment variables win.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !isNotExist(err) {
				return nil, fmt.Errorf("read %s: %w", envFile, err)
			}
		} else {
			// Dotenv keys are flat (DB_PATH); map them onto the nested keys.
			for key, env := range envBindings {
				if v.IsSet(strings.ToLower(env)) && !envIsSet(env) {
					v.Set(key, v.Get(strings.ToLower(env)))
				}
			}
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("server.port"),
			SecureCookie:   v.GetBool("server.secure_cookie"),
			AllowedOrigins: splitList(v.GetStringSlice("server.allowed_origins")),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(v.GetString("database.driver")),
			Path:            v.GetString("database.path"),
			DSN:             v.GetString("database.dsn"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Session: SessionConfig{
			Backend:  strings.ToLower(v.GetString("session.backend")),
			Duration: v.GetDuration("session.duration"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Auth: AuthConfig{
			Hasher:        strings.ToLower(v.GetString("auth.hasher")),
			BcryptCost:    v.GetInt("auth.bcrypt_cost"),
			Argon2Memory:  v.GetUint32("auth.argon2_memory"),
			Argon2Time:    v.GetUint32("auth.argon2_time"),
			Argon2Threads: uint8(v.GetUint("auth.argon2_threads")),
		},
		Log: LogConfig{
			Level:       strings.ToLower(v.GetString("log.level")),
			Development: v.GetBool("log.development"),
		},
		Admin: AdminConfig{
			User:     v.GetString("admin.user"),
			Password: v.GetString("admin.password"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Session.Backend {
	case "sql":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis session backend")
		}
	default:
		return fmt.Errorf("unsupported session backend %q", c.Session.Backend)
	}
	if c.Session.Duration <= 0 {
		return fmt.Errorf("session.duration must be positive")
	}

	switch c.Auth.Hasher {
	case "bcrypt", "argon2id":
	default:
		return fmt.Errorf("unsupported password hasher %q", c.Auth.Hasher)
	}

	if (c.Admin.User == "") != (c.Admin.Password == "") {
		return fmt.Errorf("ADMIN_USER and ADMIN_PASSWORD must be set together")
	}
	return nil
}

// DatabaseDSN returns the data source for the configured driver.
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "postgres" {
		return c.Database.DSN
	}
	return c.Database.Path
}

// NewHasher builds the configured password hasher.
func (a AuthConfig) NewHasher() (auth.Hasher, error) {
	switch a.Hasher {
	case "", "bcrypt":
		return auth.BcryptHasher{Cost: a.BcryptCost}, nil
	case "argon2id":
		params := auth.DefaultArgon2Params
		if a.Argon2Memory > 0 {
			params.Memory = a.Argon2Memory
		}
		if a.Argon2Time > 0 {
			params.Time = a.Argon2Time
		}
		if a.Argon2Threads > 0 {
			params.Parallelism = a.Argon2Threads
		}
		return auth.Argon2Hasher{Params: params}, nil
	}
	return nil, fmt.Errorf("unknown hasher %q", a.Hasher)
}

func splitList(values []string) []string {
	out := []string{}
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func envIsSet(name string) bool {
	_, ok := os.LookupEnv(name)
	return ok
}
