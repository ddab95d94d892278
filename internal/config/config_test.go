package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so host settings cannot leak
// into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"SERVER_HOST", "SERVER_PORT", "PORT", "SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT",
		"SERVER_IDLE_TIMEOUT", "SERVER_SHUTDOWN_TIMEOUT", "SERVER_REQUEST_TIMEOUT", "BASE_PATH",
		"SHEET_ID", "GOOGLE_SHEET_ID", "SHEET_GID", "SHEET_EXPORT_URL", "SHEET_FETCH_TIMEOUT", "SHEET_REFRESH_INTERVAL", "SHEET_USER_AGENT",
		"MAP_CENTER_LAT", "MAP_CENTER_LNG", "MAP_DEFAULT_ZOOM", "MAP_PINNED_ZOOM", "MAP_TILE_URL", "MAP_TILE_ATTRIBUTION",
		"SESSION_COOKIE_NAME", "SESSION_IDLE_TIMEOUT",
		"RATE_LIMIT_ENABLED", "RATE_LIMIT_REQUESTS_PER_MINUTE", "RATE_LIMIT_RELOAD",
		"TRUSTED_PROXIES", "SECURITY_ENABLE_CSP", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(name, "")
	}
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, ShutdownTimeout: time.Second, RequestTimeout: time.Minute, BasePath: "/"},
		Sheet: SheetConfig{
			ID:        "abc",
			ExportURL: "https://docs.google.com/spreadsheets/d/{sheetId}/export?format=csv&gid={gid}",
		},
		Map:     MapConfig{CenterLat: 37.7749, CenterLng: -122.4194, DefaultZoom: 8, PinnedZoom: 15},
		Session: SessionConfig{CookieName: "outings_session", IdleTimeout: 30 * time.Minute},
		Rate:    RateLimitConfig{Enabled: true, RequestsPerMinute: 100, ReloadLimit: 5},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Server.BasePath != "/" {
		t.Errorf("Server.BasePath = %q, want /", cfg.Server.BasePath)
	}
	if cfg.Sheet.ID != "1PvOBObJktZaGqF9DdTqPUPD3yT_ygOy5u6LB-rzYuWk" {
		t.Errorf("Sheet.ID = %q", cfg.Sheet.ID)
	}
	if cfg.Sheet.GID != 0 || cfg.Sheet.FetchTimeout != 0 {
		t.Errorf("Sheet GID/FetchTimeout = %d/%v, want 0/0", cfg.Sheet.GID, cfg.Sheet.FetchTimeout)
	}
	if cfg.Map.CenterLat != 37.7749 || cfg.Map.CenterLng != -122.4194 {
		t.Errorf("Map center = (%v, %v)", cfg.Map.CenterLat, cfg.Map.CenterLng)
	}
	if cfg.Map.DefaultZoom != 8 || cfg.Map.PinnedZoom != 15 {
		t.Errorf("Map zoom = %d/%d, want 8/15", cfg.Map.DefaultZoom, cfg.Map.PinnedZoom)
	}
	if cfg.Rate.RequestsPerMinute != 100 {
		t.Errorf("Rate.RequestsPerMinute = %d, want %d", cfg.Rate.RequestsPerMinute, 100)
	}
	if !cfg.Security.EnableCSP {
		t.Error("Security.EnableCSP = false, want true")
	}
	if cfg.Session.CookieName != "outings_session" || cfg.Session.IdleTimeout != 30*time.Minute {
		t.Errorf("Session = %q/%v, want outings_session/30m", cfg.Session.CookieName, cfg.Session.IdleTimeout)
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SHEET_ID", "my-sheet")
	t.Setenv("SHEET_GID", "42")
	t.Setenv("MAP_CENTER_LAT", "36.5")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("BASE_PATH", "/outinglocations/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Sheet.ID != "my-sheet" || cfg.Sheet.GID != 42 {
		t.Errorf("Sheet = %q/%d", cfg.Sheet.ID, cfg.Sheet.GID)
	}
	if cfg.Map.CenterLat != 36.5 {
		t.Errorf("Map.CenterLat = %v, want 36.5", cfg.Map.CenterLat)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Server.BasePath != "/outinglocations/" {
		t.Errorf("Server.BasePath = %q", cfg.Server.BasePath)
	}
}

func TestLoad_AltEnvVar(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "3000")
	t.Setenv("GOOGLE_SHEET_ID", "alt-sheet")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Sheet.ID != "alt-sheet" {
		t.Errorf("Sheet.ID = %q, want %q", cfg.Sheet.ID, "alt-sheet")
	}
}

func TestLoad_PrimaryBeatsAlt(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("PORT", "3000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAP_CENTER_LNG", "west")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for non-numeric MAP_CENTER_LNG")
	}
	if !strings.Contains(err.Error(), "MAP_CENTER_LNG") {
		t.Errorf("error should mention MAP_CENTER_LNG: %v", err)
	}
}

func TestLoadStruct_MissingRequired(t *testing.T) {
	t.Setenv("OUTINGS_TEST_REQUIRED", "")

	var target struct {
		Value string `env:"OUTINGS_TEST_REQUIRED" required:"true"`
	}
	err := loadStruct(reflect.ValueOf(&target).Elem())
	if err == nil {
		t.Fatal("loadStruct() expected error for missing required variable")
	}
	if !strings.Contains(err.Error(), "OUTINGS_TEST_REQUIRED") {
		t.Errorf("error should name the variable: %v", err)
	}
}

func TestLoad_Duration(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_READ_TIMEOUT", "45s")
	t.Setenv("SHEET_FETCH_TIMEOUT", "1m30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want %v", cfg.Server.ReadTimeout, 45*time.Second)
	}
	if cfg.Sheet.FetchTimeout != 90*time.Second {
		t.Errorf("Sheet.FetchTimeout = %v, want %v", cfg.Sheet.FetchTimeout, 90*time.Second)
	}
}

func TestLoad_CommaSeparatedSlice(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 172.16.0.0/12 , 192.168.0.0/16")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	expected := []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}
	if !reflect.DeepEqual(cfg.Security.TrustedProxies, expected) {
		t.Errorf("TrustedProxies = %v, want %v", cfg.Security.TrustedProxies, expected)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"invalid port", func(c *Config) { c.Server.Port = 99999 }, "SERVER_PORT"},
		{"base path without trailing slash", func(c *Config) { c.Server.BasePath = "/outings" }, "BASE_PATH"},
		{"empty sheet id", func(c *Config) { c.Sheet.ID = "  " }, "SHEET_ID"},
		{"negative gid", func(c *Config) { c.Sheet.GID = -1 }, "SHEET_GID"},
		{"export url without placeholder", func(c *Config) { c.Sheet.ExportURL = "https://example.com/x.csv" }, "SHEET_EXPORT_URL"},
		{"relative export url", func(c *Config) { c.Sheet.ExportURL = "/sheets/{sheetId}" }, "SHEET_EXPORT_URL"},
		{"refresh interval too short", func(c *Config) { c.Sheet.RefreshInterval = 5 * time.Second }, "SHEET_REFRESH_INTERVAL"},
		{"refresh interval", func(c *Config) { c.Sheet.RefreshInterval = 15 * time.Minute }, ""},
		{"session idle timeout too short", func(c *Config) { c.Session.IdleTimeout = 10 * time.Second }, "SESSION_IDLE_TIMEOUT"},
		{"session cookie name with separator", func(c *Config) { c.Session.CookieName = "a;b" }, "SESSION_COOKIE_NAME"},
		{"latitude out of range", func(c *Config) { c.Map.CenterLat = 91 }, "MAP_CENTER_LAT"},
		{"longitude out of range", func(c *Config) { c.Map.CenterLng = -181 }, "MAP_CENTER_LNG"},
		{"zoom out of range", func(c *Config) { c.Map.PinnedZoom = 25 }, "MAP_PINNED_ZOOM"},
		{"reload limit", func(c *Config) { c.Rate.ReloadLimit = 0 }, "RATE_LIMIT_RELOAD"},
		{"reload limit ignored when disabled", func(c *Config) { c.Rate.Enabled = false; c.Rate.ReloadLimit = 0 }, ""},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }, "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error mentioning %s", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error should mention %s: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	for _, want := range []string{"SERVER_PORT", "LOG_FORMAT"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}

func TestServerAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"", 8080, ":8080"},
		{"0.0.0.0", 8080, "0.0.0.0:8080"},
		{"127.0.0.1", 3000, "127.0.0.1:3000"},
		{"localhost", 443, "localhost:443"},
	}

	for _, tt := range tests {
		cfg := &ServerConfig{Host: tt.host, Port: tt.port}
		got := cfg.Addr()
		if got != tt.want {
			t.Errorf("Addr() with host=%q, port=%d = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}

func TestConfigString_MasksExportQuery(t *testing.T) {
	cfg := validConfig()
	cfg.Sheet.ExportURL = "https://mirror.example.com/{sheetId}?token=secret"

	str := cfg.String()
	if strings.Contains(str, "secret") {
		t.Error("String() should not include the export URL query")
	}
	if !strings.Contains(str, "mirror.example.com") {
		t.Errorf("String() should include the export host: %s", str)
	}
}
