package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/backend"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/config"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/domain"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/editor"
	custommiddleware "github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/middleware"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/preview"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/repository"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/session"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config   *config.Config
	logger   *zap.Logger
	redis    *redis.Client
	sessions session.Manager
	stop     context.CancelFunc
}

// NewServer wires the backend clients, the session manager and the editor routes.
// A nil redis client disables rate limiting.
func NewServer(cfg *config.Config, logger *zap.Logger, redisClient *redis.Client) (*Server, error) {
	client, err := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Token:   cfg.Backend.Token,
		Timeout: cfg.Backend.Timeout,
	}, logger.Named("backend"))
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	var catalog editor.CatalogService = backend.NewCatalogClient(client)
	if redisClient != nil && cfg.Editor.CategoryCacheTTL > 0 {
		catalog = cachedCatalog{
			CatalogService: catalog,
			categories:     repository.NewCategoryRepository(redisClient, catalog, cfg.Editor.CategoryCacheTTL, logger.Named("categories")),
		}
	}

	sessions, err := session.NewManager(session.ManagerDeps{
		Engine: editor.Deps{
			Catalog:   catalog,
			Media:     backend.NewMediaClient(client),
			Describer: backend.NewDescriptionClient(client),
			Previews:  preview.NewMemoryStore(),
		},
		Options: editor.Options{
			MaxImages:           cfg.Editor.MaxImages,
			MaxFileSize:         cfg.Editor.MaxUploadBytes,
			CategoryPlaceholder: cfg.Editor.CategoryPlaceholder,
		},
		TTL:    cfg.Editor.SessionTTL,
		Logger: logger.Named("editor"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	return newServer(cfg, logger, redisClient, sessions), nil
}

func newServer(cfg *config.Config, logger *zap.Logger, redisClient *redis.Client, sessions session.Manager) *Server {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.IsDevelopment()))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
			"status":   "ok",
			"sessions": sessions.Count(),
		})
	})

	auth := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	requireRole := custommiddleware.RequireRole(cfg.Editor.AllowedRoles, logger)
	authMiddleware := func(next http.Handler) http.Handler {
		return auth(requireRole(next))
	}
	limiter := custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.Requests,
		Window:            cfg.RateLimit.Window,
		KeyPrefix:         "editor_rate_limit",
	}, logger)

	editorHandler := transport.NewEditorHandler(sessions, cfg.Editor.MaxUploadBytes, logger)
	editorHandler.RegisterRoutes(router, authMiddleware, limiter)

	ctx, stop := context.WithCancel(context.Background())
	go sessions.Run(ctx, cfg.Editor.SweepInterval)

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 2 * time.Minute,
		},
		config:   cfg,
		logger:   logger,
		redis:    redisClient,
		sessions: sessions,
		stop:     stop,
	}
}

// cachedCatalog serves category lookups from the redis repository
type cachedCatalog struct {
	editor.CatalogService
	categories repository.CategoryRepository
}

func (c cachedCatalog) CategoriesByBrand(ctx context.Context, brandID string) ([]domain.CategoryOption, error) {
	return c.categories.CategoriesByBrand(ctx, brandID)
}

func (c cachedCatalog) CategoryByID(ctx context.Context, id string) (domain.CategoryOption, error) {
	return c.categories.CategoryByID(ctx, id)
}

// InvalidateCategories drops the cached category list of a brand
func (c cachedCatalog) InvalidateCategories(ctx context.Context, brandID string) error {
	return c.categories.Invalidate(ctx, brandID)
}

// NewRedisClient connects to redis, returning nil when it cannot be reached
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unavailable, rate limiting disabled", zap.Error(err))
		client.Close()
		return nil
	}
	return client
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	s.stop()
	if n := s.sessions.CloseAll(); n > 0 {
		s.logger.Info("Discarded open editor sessions", zap.Int("count", n))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
