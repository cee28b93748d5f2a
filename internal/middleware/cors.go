package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/benvon/smart-todo-capture/internal/database"
	"github.com/benvon/smart-todo-capture/internal/models"
	"github.com/benvon/smart-todo-capture/internal/request"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const defaultCORSMaxAge = 86400

// CorsConfigSource supplies the stored CORS settings
type CorsConfigSource interface {
	Get(ctx context.Context) (*models.CorsConfig, error)
}

// CORSReloader applies rs/cors with origins read from the database,
// falling back to FRONTEND_URL when nothing is stored
type CORSReloader struct {
	swap     hotSwap
	repo     CorsConfigSource
	fallback string
}

// NewCORSReloader creates a CORS middleware that hot-reloads its settings
func NewCORSReloader(repo CorsConfigSource, frontendURLFallback string, log *zap.Logger, reloadInterval time.Duration) *CORSReloader {
	if log == nil {
		log = zap.NewNop()
	}
	r := &CORSReloader{
		repo:     repo,
		fallback: strings.TrimSpace(frontendURLFallback),
	}
	r.swap = hotSwap{name: "cors", build: r.build, interval: reloadInterval, log: log}
	return r
}

// Middleware wraps next with CORS handling
func (r *CORSReloader) Middleware() func(http.Handler) http.Handler {
	return r.swap.wrap
}

// Start runs the reload loop until ctx is cancelled. Call after Middleware() is applied.
func (r *CORSReloader) Start(ctx context.Context) {
	r.swap.run(ctx)
}

func (r *CORSReloader) build(ctx context.Context, next http.Handler) (http.Handler, error) {
	origins := database.SplitOrigins(r.fallback)
	allowCreds := true
	maxAge := defaultCORSMaxAge

	cfg, err := r.repo.Get(ctx)
	if err != nil {
		r.swap.log.Warn("failed_to_load_cors_config_using_fallback", zap.Error(err))
	} else if cfg != nil {
		origins = database.SplitOrigins(cfg.AllowedOrigins)
		allowCreds = cfg.AllowCredentials
		maxAge = cfg.MaxAge
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: allowCreds,
		MaxAge:           maxAge,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", request.RequestIDHeader},
		ExposedHeaders:   []string{request.RequestIDHeader},
	})
	return c.Handler(next), nil
}
