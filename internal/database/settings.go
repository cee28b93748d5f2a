package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/benvon/smart-todo-capture/internal/models"
)

// settingsKey is the row both settings tables are read from and written to
const settingsKey = "default"

// CorsConfigRepository stores the CORS policy
type CorsConfigRepository struct {
	db *DB
}

// NewCorsConfigRepository creates a new CORS config repository
func NewCorsConfigRepository(db *DB) *CorsConfigRepository {
	return &CorsConfigRepository{db: db}
}

// Get returns the stored policy, or nil when none has been set
func (r *CorsConfigRepository) Get(ctx context.Context) (*models.CorsConfig, error) {
	c := &models.CorsConfig{}
	err := r.db.QueryRowContext(ctx, `
		SELECT config_key, allowed_origins, allow_credentials, max_age, created_at, updated_at
		FROM cors_config WHERE config_key = $1
	`, settingsKey).Scan(&c.ConfigKey, &c.AllowedOrigins, &c.AllowCredentials, &c.MaxAge, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cors config: %w", err)
	}
	return c, nil
}

// Set replaces the stored policy. Origins are de-duplicated before saving
// and c is updated with the stored values.
func (r *CorsConfigRepository) Set(ctx context.Context, c *models.CorsConfig) error {
	origins := SplitOrigins(c.AllowedOrigins)
	if len(origins) == 0 {
		return errors.New("allowed_origins cannot be empty")
	}
	if c.MaxAge < 0 {
		return fmt.Errorf("max_age must not be negative, got %d", c.MaxAge)
	}

	c.ConfigKey = settingsKey
	c.AllowedOrigins = strings.Join(origins, ",")
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO cors_config (config_key, allowed_origins, allow_credentials, max_age)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (config_key) DO UPDATE SET
			allowed_origins = EXCLUDED.allowed_origins,
			allow_credentials = EXCLUDED.allow_credentials,
			max_age = EXCLUDED.max_age,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`, c.ConfigKey, c.AllowedOrigins, c.AllowCredentials, c.MaxAge).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to set cors config: %w", err)
	}
	return nil
}

// SplitOrigins splits a comma-separated origin list, dropping blanks and
// repeats while keeping the first-seen order
func SplitOrigins(raw string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, p := range strings.Split(raw, ",") {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// RatelimitConfigRepository stores the API rate limit
type RatelimitConfigRepository struct {
	db *DB
}

// NewRatelimitConfigRepository creates a new rate limit config repository
func NewRatelimitConfigRepository(db *DB) *RatelimitConfigRepository {
	return &RatelimitConfigRepository{db: db}
}

// Get returns the stored rate, or nil when none has been set
func (r *RatelimitConfigRepository) Get(ctx context.Context) (*models.RatelimitConfig, error) {
	c := &models.RatelimitConfig{}
	err := r.db.QueryRowContext(ctx, `
		SELECT config_key, rate, created_at, updated_at
		FROM ratelimit_config WHERE config_key = $1
	`, settingsKey).Scan(&c.ConfigKey, &c.Rate, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ratelimit config: %w", err)
	}
	return c, nil
}

// Set replaces the stored rate
func (r *RatelimitConfigRepository) Set(ctx context.Context, c *models.RatelimitConfig) error {
	c.Rate = strings.TrimSpace(c.Rate)
	if c.Rate == "" {
		return errors.New("rate cannot be empty")
	}

	c.ConfigKey = settingsKey
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO ratelimit_config (config_key, rate)
		VALUES ($1, $2)
		ON CONFLICT (config_key) DO UPDATE SET
			rate = EXCLUDED.rate,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`, c.ConfigKey, c.Rate).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to set ratelimit config: %w", err)
	}
	return nil
}
