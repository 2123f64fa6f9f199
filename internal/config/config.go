package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	Editor    EditorConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	JWT       JWTConfig
	CORS      CORSConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// BackendConfig points at the catalog, media and AI services
type BackendConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type EditorConfig struct {
	MaxImages           int
	MaxUploadBytes      int64
	SessionTTL          time.Duration
	SweepInterval       time.Duration
	CategoryPlaceholder string
	CategoryCacheTTL    time.Duration
	AllowedRoles        []string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// IsDevelopment reports whether the server runs outside production
func (c *Config) IsDevelopment() bool {
	return c.Server.Env != "production"
}

// Validate checks the settings the server cannot start without
func (c *Config) Validate() error {
	var errs []error
	if c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("BACKEND_BASE_URL is required"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Editor.MaxImages <= 0 {
		errs = append(errs, errors.New("EDITOR_MAX_IMAGES must be positive"))
	}
	return errors.Join(errs...)
}

// Load reads .env from the working directory and the environment
func Load() *Config {
	return load(viper.New(), ".")
}

func load(v *viper.Viper, path string) *Config {
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(path)
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("BACKEND_TIMEOUT_SECONDS", 15)
	v.SetDefault("EDITOR_MAX_IMAGES", 5)
	v.SetDefault("EDITOR_MAX_UPLOAD_MB", 32)
	v.SetDefault("EDITOR_SESSION_TTL_MINUTES", 30)
	v.SetDefault("EDITOR_SWEEP_INTERVAL_SECONDS", 60)
	v.SetDefault("EDITOR_CATEGORY_PLACEHOLDER", "Categoría actual")
	v.SetDefault("EDITOR_CATEGORY_CACHE_SECONDS", 300)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RATE_LIMIT_REQUESTS", 30)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)

	if err := v.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:     v.GetString("SERVER_PORT"),
			Env:      v.GetString("SERVER_ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		Backend: BackendConfig{
			BaseURL: v.GetString("BACKEND_BASE_URL"),
			Token:   v.GetString("BACKEND_TOKEN"),
			Timeout: time.Duration(v.GetInt("BACKEND_TIMEOUT_SECONDS")) * time.Second,
		},
		Editor: EditorConfig{
			MaxImages:           v.GetInt("EDITOR_MAX_IMAGES"),
			MaxUploadBytes:      v.GetInt64("EDITOR_MAX_UPLOAD_MB") << 20,
			SessionTTL:          time.Duration(v.GetInt("EDITOR_SESSION_TTL_MINUTES")) * time.Minute,
			SweepInterval:       time.Duration(v.GetInt("EDITOR_SWEEP_INTERVAL_SECONDS")) * time.Second,
			CategoryPlaceholder: v.GetString("EDITOR_CATEGORY_PLACEHOLDER"),
			CategoryCacheTTL:    time.Duration(v.GetInt("EDITOR_CATEGORY_CACHE_SECONDS")) * time.Second,
			AllowedRoles:        splitList(v.GetString("EDITOR_ALLOWED_ROLES")),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   time.Duration(v.GetInt("RATE_LIMIT_WINDOW_SECONDS")) * time.Second,
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
	}
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
