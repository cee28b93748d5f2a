package models

import "time"

// CorsConfig is the operator-managed CORS policy the server reloads
type CorsConfig struct {
	ConfigKey string `json:"config_key"`
	// AllowedOrigins is a comma-separated origin list
	AllowedOrigins   string    `json:"allowed_origins"`
	AllowCredentials bool      `json:"allow_credentials"`
	MaxAge           int       `json:"max_age"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// RatelimitConfig is the per-client API rate in ulule's "<limit>-<period>" form
type RatelimitConfig struct {
	ConfigKey string    `json:"config_key"`
	Rate      string    `json:"rate"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
