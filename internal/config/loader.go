package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		// Get tags
		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		// Apply default if not set
		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		// Set the field value
		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			// Split comma-separated values, trim whitespace
			parts := strings.Split(value, ",")
			result := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					result = append(result, p)
				}
			}
			field.Set(reflect.ValueOf(result))
		} else {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, "SERVER_REQUEST_TIMEOUT must be positive")
	}
	if !strings.HasPrefix(c.Server.BasePath, "/") || !strings.HasSuffix(c.Server.BasePath, "/") {
		errs = append(errs, fmt.Sprintf("BASE_PATH (%q) must start and end with /", c.Server.BasePath))
	}

	// Sheet validation
	if strings.TrimSpace(c.Sheet.ID) == "" {
		errs = append(errs, "SHEET_ID is required")
	}
	if c.Sheet.GID < 0 {
		errs = append(errs, "SHEET_GID must be non-negative")
	}
	if !strings.Contains(c.Sheet.ExportURL, "{sheetId}") {
		errs = append(errs, "SHEET_EXPORT_URL must contain the {sheetId} placeholder")
	} else if u, err := url.Parse(strings.NewReplacer("{sheetId}", "x", "{gid}", "0").Replace(c.Sheet.ExportURL)); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("SHEET_EXPORT_URL (%q) must be an absolute URL", c.Sheet.ExportURL))
	}
	if c.Sheet.FetchTimeout < 0 {
		errs = append(errs, "SHEET_FETCH_TIMEOUT must be non-negative")
	}
	if c.Sheet.RefreshInterval < 0 || (c.Sheet.RefreshInterval > 0 && c.Sheet.RefreshInterval < time.Minute) {
		errs = append(errs, fmt.Sprintf("SHEET_REFRESH_INTERVAL (%s) must be 0 or at least 1m", c.Sheet.RefreshInterval))
	}

	// Map validation
	if c.Map.CenterLat < -90 || c.Map.CenterLat > 90 {
		errs = append(errs, fmt.Sprintf("MAP_CENTER_LAT (%v) must be within -90..90", c.Map.CenterLat))
	}
	if c.Map.CenterLng < -180 || c.Map.CenterLng > 180 {
		errs = append(errs, fmt.Sprintf("MAP_CENTER_LNG (%v) must be within -180..180", c.Map.CenterLng))
	}
	if c.Map.DefaultZoom < 0 || c.Map.DefaultZoom > 19 {
		errs = append(errs, fmt.Sprintf("MAP_DEFAULT_ZOOM (%d) must be 0-19", c.Map.DefaultZoom))
	}
	if c.Map.PinnedZoom < 0 || c.Map.PinnedZoom > 19 {
		errs = append(errs, fmt.Sprintf("MAP_PINNED_ZOOM (%d) must be 0-19", c.Map.PinnedZoom))
	}

	// Session validation
	if strings.TrimSpace(c.Session.CookieName) == "" || strings.ContainsAny(c.Session.CookieName, " ;=,") {
		errs = append(errs, fmt.Sprintf("SESSION_COOKIE_NAME (%q) must be a non-empty cookie token", c.Session.CookieName))
	}
	if c.Session.IdleTimeout < time.Minute {
		errs = append(errs, fmt.Sprintf("SESSION_IDLE_TIMEOUT (%s) must be at least 1m", c.Session.IdleTimeout))
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.ReloadLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_RELOAD must be positive when rate limiting is enabled")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// A custom export URL may carry credentials in its query, so only its host
// is shown.
func (c *Config) String() string {
	exportHost := "[MASKED]"
	if u, err := url.Parse(c.Sheet.ExportURL); err == nil && u.Host != "" {
		exportHost = u.Host
	}

	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d, BasePath: %q}, ", c.Server.Host, c.Server.Port, c.Server.BasePath))
	b.WriteString(fmt.Sprintf("Sheet: {ID: %q, GID: %d, ExportHost: %q, FetchTimeout: %s, RefreshInterval: %s}, ",
		c.Sheet.ID, c.Sheet.GID, exportHost, c.Sheet.FetchTimeout, c.Sheet.RefreshInterval))
	b.WriteString(fmt.Sprintf("Map: {Center: [%v, %v], DefaultZoom: %d, PinnedZoom: %d}, ",
		c.Map.CenterLat, c.Map.CenterLng, c.Map.DefaultZoom, c.Map.PinnedZoom))
	b.WriteString(fmt.Sprintf("Session: {CookieName: %q, IdleTimeout: %s}, ",
		c.Session.CookieName, c.Session.IdleTimeout))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d, ReloadLimit: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute, c.Rate.ReloadLimit))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
