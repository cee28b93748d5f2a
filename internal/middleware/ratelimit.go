package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/benvon/smart-todo-capture/internal/models"
	"github.com/benvon/smart-todo-capture/internal/request"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"go.uber.org/zap"
)

// DefaultRate applies when no rate is stored. Format is ulule's "<limit>-<period>".
const DefaultRate = "10-S"

// RatelimitConfigStore reads and seeds the stored rate
type RatelimitConfigStore interface {
	Get(ctx context.Context) (*models.RatelimitConfig, error)
	Set(ctx context.Context, c *models.RatelimitConfig) error
}

// RateLimitReloader applies ulule/limiter per client IP with a rate read
// from the database. The counter store is shared across reloads.
type RateLimitReloader struct {
	swap        hotSwap
	store       limiter.Store
	repo        RatelimitConfigStore
	defaultRate string
}

// NewRateLimitReloader creates a rate limit middleware that hot-reloads its
// rate. store is typically ulule's Redis store so limits hold across replicas.
func NewRateLimitReloader(store limiter.Store, repo RatelimitConfigStore, defaultRate string, log *zap.Logger, reloadInterval time.Duration) (*RateLimitReloader, error) {
	if defaultRate == "" {
		defaultRate = DefaultRate
	}
	if _, err := limiter.NewRateFromFormatted(defaultRate); err != nil {
		return nil, fmt.Errorf("invalid default rate %q: %w", defaultRate, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	r := &RateLimitReloader{
		store:       store,
		repo:        repo,
		defaultRate: defaultRate,
	}
	r.swap = hotSwap{name: "ratelimit", build: r.build, interval: reloadInterval, log: log}
	return r, nil
}

// Middleware wraps next with rate limiting
func (r *RateLimitReloader) Middleware() func(http.Handler) http.Handler {
	return r.swap.wrap
}

// Start runs the reload loop until ctx is cancelled. Call after Middleware() is applied.
func (r *RateLimitReloader) Start(ctx context.Context) {
	r.swap.run(ctx)
}

func (r *RateLimitReloader) currentRate(ctx context.Context) string {
	log := r.swap.log
	cfg, err := r.repo.Get(ctx)
	switch {
	case err != nil:
		log.Warn("failed_to_load_ratelimit_config_using_default", zap.Error(err), zap.String("default_rate", r.defaultRate))
		return r.defaultRate
	case cfg == nil || cfg.Rate == "":
		if err := r.repo.Set(ctx, &models.RatelimitConfig{Rate: r.defaultRate}); err != nil {
			log.Error("failed_to_save_default_ratelimit_config", zap.Error(err), zap.String("default_rate", r.defaultRate))
		}
		return r.defaultRate
	default:
		return cfg.Rate
	}
}

func (r *RateLimitReloader) build(ctx context.Context, next http.Handler) (http.Handler, error) {
	rateStr := r.currentRate(ctx)
	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		r.swap.log.Error("failed_to_parse_rate_limit_using_default", zap.Error(err), zap.String("rate_str", rateStr))
		if rate, err = limiter.NewRateFromFormatted(r.defaultRate); err != nil {
			return nil, err
		}
	}

	mw := stdlibmw.NewMiddleware(
		limiter.New(r.store, rate),
		stdlibmw.WithKeyGetter(request.ClientIP),
		stdlibmw.WithLimitReachedHandler(func(w http.ResponseWriter, req *http.Request) {
			writeError(w, req, http.StatusTooManyRequests, "rate_limited", "Too many requests")
		}),
	)
	return mw.Handler(next), nil
}
