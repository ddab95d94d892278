// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Sheet    SheetConfig
	Map      MapConfig
	Session  SessionConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080). PORT is honoured for
	// platforms that inject it.
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading the request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// BasePath is the mount point used in deep links, with leading and
	// trailing slash (default: /)
	BasePath string `env:"BASE_PATH" default:"/"`
}

// SheetConfig holds the published sheet location and fetch settings.
type SheetConfig struct {
	// ID is the Google Sheet document id
	ID string `env:"SHEET_ID" envAlt:"GOOGLE_SHEET_ID" default:"1PvOBObJktZaGqF9DdTqPUPD3yT_ygOy5u6LB-rzYuWk"`

	// GID selects the worksheet tab (default: 0)
	GID int `env:"SHEET_GID" default:"0"`

	// ExportURL is the CSV export template; {sheetId} and {gid} are substituted
	ExportURL string `env:"SHEET_EXPORT_URL" default:"https://docs.google.com/spreadsheets/d/{sheetId}/export?format=csv&gid={gid}"`

	// FetchTimeout bounds one fetch; 0 disables the timeout (default: 0s)
	FetchTimeout time.Duration `env:"SHEET_FETCH_TIMEOUT" default:"0s"`

	// RefreshInterval reloads the sheet periodically; 0 loads once at
	// startup (default: 0s)
	RefreshInterval time.Duration `env:"SHEET_REFRESH_INTERVAL" default:"0s"`

	// UserAgent is sent with every fetch
	UserAgent string `env:"SHEET_USER_AGENT" default:"outings/1.0 (+https://github.com/JonMunkholm/outings)"`
}

// MapConfig holds map page defaults.
type MapConfig struct {
	// CenterLat and CenterLng are the initial view when nothing is pinned
	CenterLat float64 `env:"MAP_CENTER_LAT" default:"37.7749"`
	CenterLng float64 `env:"MAP_CENTER_LNG" default:"-122.4194"`

	// DefaultZoom is used without a pin (default: 8)
	DefaultZoom int `env:"MAP_DEFAULT_ZOOM" default:"8"`

	// PinnedZoom is used when lat/lng are given without zoom (default: 15)
	PinnedZoom int `env:"MAP_PINNED_ZOOM" default:"15"`

	// TileURL is the Leaflet tile template
	TileURL string `env:"MAP_TILE_URL" default:"https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"`

	// TileAttribution is shown in the map corner
	TileAttribution string `env:"MAP_TILE_ATTRIBUTION" default:"&copy; OpenStreetMap contributors"`
}

// SessionConfig holds per-visitor filter state settings.
type SessionConfig struct {
	// CookieName carries the session id (default: outings_session)
	CookieName string `env:"SESSION_COOKIE_NAME" default:"outings_session"`

	// IdleTimeout drops a visitor's filters after this long without a
	// request or open event stream (default: 30m)
	IdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" default:"30m"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ReloadLimit is requests per minute for the reload endpoint (default: 5)
	ReloadLimit int `env:"RATE_LIMIT_RELOAD" default:"5"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
