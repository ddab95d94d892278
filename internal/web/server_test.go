package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JonMunkholm/outings/internal/config"
	"github.com/JonMunkholm/outings/internal/location"
	"github.com/JonMunkholm/outings/internal/metrics"
	"github.com/JonMunkholm/outings/internal/sheets"
	"github.com/JonMunkholm/outings/internal/store"
)

type stubLoader struct {
	records []location.Record
	err     error
	calls   atomic.Int32
}

func (l *stubLoader) Load(ctx context.Context, sheetID string) ([]location.Record, error) {
	l.calls.Add(1)
	if l.err != nil {
		return nil, l.err
	}
	return l.records, nil
}

func testRecords() []location.Record {
	return []location.Record{
		{ID: "1", Name: "Big Basin", Latitude: 37.17, Longitude: -122.22, Category: "Camping", Subcategory: "Car camping", Description: "Redwoods"},
		{ID: "2", Name: "Pinnacles", Latitude: 36.49, Longitude: -121.18, Category: "Climbing", URL: "https://example.com/pinnacles"},
		{ID: "3", Name: "Mercury Mine", Latitude: 37.20, Longitude: -121.85, Category: "Caves & Mines"},
		{ID: "4", Name: "Railtown", Latitude: 37.95, Longitude: -120.40, Category: "Auto/Aviation/Trains", Description: "Steam trains"},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			RequestTimeout: 5 * time.Second,
			BasePath:       "/",
		},
		Sheet: config.SheetConfig{ID: "sheet-id"},
		Map: config.MapConfig{
			CenterLat:       37.7749,
			CenterLng:       -122.4194,
			DefaultZoom:     8,
			PinnedZoom:      15,
			TileURL:         "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
			TileAttribution: "&copy; OpenStreetMap contributors",
		},
		Session:  config.SessionConfig{CookieName: "outings_session", IdleTimeout: 30 * time.Minute},
		Rate:     config.RateLimitConfig{Enabled: false, RequestsPerMinute: 100, ReloadLimit: 5},
		Security: config.SecurityConfig{EnableCSP: true},
	}
}

// newTestServer builds a server over a store that has already loaded
// testRecords.
func newTestServer(t *testing.T, cfg *config.Config) (*Server, *store.Store, *stubLoader) {
	t.Helper()
	loader := &stubLoader{records: testRecords()}
	st := store.New()
	if err := st.Load(context.Background(), loader, cfg.Sheet.ID); err != nil {
		t.Fatalf("Load: %v", err)
	}
	srv := NewServer(cfg, st, loader, nil)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		st.Close()
	})
	return srv, st, loader
}

func do(t *testing.T, srv *Server, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

// visitor replays its session cookie on every request, like a browser.
type visitor struct {
	t      *testing.T
	srv    *Server
	cookie *http.Cookie
}

func newVisitor(t *testing.T, srv *Server) *visitor {
	return &visitor{t: t, srv: srv}
}

func (v *visitor) do(method, target string, body io.Reader) *httptest.ResponseRecorder {
	v.t.Helper()
	req := httptest.NewRequest(method, target, body)
	if v.cookie != nil {
		req.AddCookie(v.cookie)
	}
	rec := httptest.NewRecorder()
	v.srv.Router().ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == v.srv.cfg.Session.CookieName {
			v.cookie = c
		}
	}
	return rec
}

// session returns the visitor's server-side session, starting one if the
// visitor has not made a request yet.
func (v *visitor) session() *store.Session {
	v.t.Helper()
	if v.cookie == nil {
		v.do(http.MethodGet, "/about", nil)
	}
	sess, ok := v.srv.sessions.Get(v.cookie.Value)
	if !ok {
		v.t.Fatalf("no session for cookie %q", v.cookie.Value)
	}
	return sess
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t, testConfig())

	rec := do(t, srv, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	health := decode[HealthResponse](t, rec)
	if health.Status != "ok" || health.Dataset != store.StatusReady || health.Locations != 4 {
		t.Errorf("health = %+v", health)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv, _, _ := newTestServer(t, testConfig())

	rec := do(t, srv, http.MethodGet, "/about", nil)
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	csp := rec.Header().Get("Content-Security-Policy")
	for _, want := range []string{"https://unpkg.com", "https://*.tile.openstreetmap.org", "data:"} {
		if !strings.Contains(csp, want) {
			t.Errorf("CSP %q missing %q", csp, want)
		}
	}
}

func TestTileHost(t *testing.T) {
	tests := []struct {
		tileURL string
		want    string
	}{
		{"https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png", "https://*.tile.openstreetmap.org"},
		{"https://tiles.example.com/{z}/{x}/{y}{r}.png", "https://tiles.example.com"},
		{"not a url", ""},
	}
	for _, tt := range tests {
		if got := tileHost(tt.tileURL); got != tt.want {
			t.Errorf("tileHost(%q) = %q, want %q", tt.tileURL, got, tt.want)
		}
	}
}

func TestStaticAssets(t *testing.T) {
	srv, _, _ := newTestServer(t, testConfig())

	for _, path := range []string{"/static/app.js", "/static/styles.css"} {
		rec := do(t, srv, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, rec.Code)
		}
	}
}

func TestBasePathMount(t *testing.T) {
	cfg := testConfig()
	cfg.Server.BasePath = "/outinglocations/"
	srv, _, _ := newTestServer(t, cfg)

	rec := do(t, srv, http.MethodGet, "/outinglocations/api/locations", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("mounted api status = %d", rec.Code)
	}

	rec = do(t, srv, http.MethodGet, "/outinglocations/categories?category=Camping", nil)
	if !strings.Contains(rec.Body.String(), `href="/outinglocations/?lat=37.17`) {
		t.Error("card map links should carry the base path")
	}

	rec = do(t, srv, http.MethodGet, "/", nil)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/outinglocations/" {
		t.Errorf("root = %d -> %q", rec.Code, rec.Header().Get("Location"))
	}

	if rec := do(t, srv, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz should stay at the root, got %d", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	defer rl.stop()

	if !rl.allow("1.1.1.1") || !rl.allow("1.1.1.1") {
		t.Fatal("first two requests should pass")
	}
	if rl.allow("1.1.1.1") {
		t.Error("third request should be limited")
	}
	if !rl.allow("2.2.2.2") {
		t.Error("limits are per IP")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.Rate.Enabled = true
	cfg.Rate.RequestsPerMinute = 1
	srv, _, _ := newTestServer(t, cfg)

	if rec := do(t, srv, http.MethodGet, "/api/categories", nil); rec.Code != http.StatusOK {
		t.Fatalf("first request = %d", rec.Code)
	}
	rec := do(t, srv, http.MethodGet, "/api/categories", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	if got := sanitizeErrorMessage("first\nsecond"); got != "first" {
		t.Errorf("got %q", got)
	}
	long := strings.Repeat("x", 300)
	if got := sanitizeErrorMessage(long); len(got) != 203 {
		t.Errorf("len = %d, want 203", len(got))
	}
}

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		path   string
		accept string
		want   bool
	}{
		{"/categories", "text/html", false},
		{"/categories", "application/json", true},
		{"/api/locations", "", true},
		{"/outinglocations/api/locations", "", true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		req.Header.Set("Accept", tt.accept)
		if got := wantsJSON(req); got != tt.want {
			t.Errorf("wantsJSON(%s, %q) = %v", tt.path, tt.accept, got)
		}
	}
}

func TestRespondErrorHTMLPage(t *testing.T) {
	srv, _, _ := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/categories", nil)
	rec := httptest.NewRecorder()
	srv.respondError(rec, req, &sheets.DataLoadError{SheetID: "x", Err: errors.New("boom")}, http.StatusBadGateway)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "SHEET001") || strings.Contains(body, "boom") {
		t.Errorf("error page should show the code and hide the cause: %s", body)
	}
}

func TestStaticAssetsUnderBasePath(t *testing.T) {
	cfg := testConfig()
	cfg.Server.BasePath = "/outinglocations/"
	srv, _, _ := newTestServer(t, cfg)

	rec := do(t, srv, http.MethodGet, "/outinglocations/static/app.js", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestRateLimitUsesErrorCode(t *testing.T) {
	cfg := testConfig()
	cfg.Rate.Enabled = true
	cfg.Rate.RequestsPerMinute = 1
	srv, _, _ := newTestServer(t, cfg)

	do(t, srv, http.MethodGet, "/api/categories", nil)
	rec := do(t, srv, http.MethodGet, "/api/categories", nil)
	if resp := decode[ErrorResponse](t, rec); resp.Code != "RATE001" {
		t.Errorf("code = %q, want RATE001", resp.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	collector, err := metrics.NewCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	loader := &stubLoader{records: testRecords()}
	st := store.New(store.WithRecorder(collector))
	if err := st.Load(context.Background(), loader, "sheet-id"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	srv := NewServer(testConfig(), st, loader, collector)
	defer srv.Shutdown(context.Background())

	do(t, srv, http.MethodGet, "/about", nil)

	rec := do(t, srv, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	for _, want := range []string{"outings_locations_loaded 4", "outings_sessions_active 1"} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("metrics body missing %q:\n%s", want, rec.Body.String())
		}
	}
}

func TestSessionCookie(t *testing.T) {
	cfg := testConfig()
	cfg.Server.BasePath = "/outinglocations/"
	srv, _, _ := newTestServer(t, cfg)

	rec := do(t, srv, http.MethodGet, "/outinglocations/", nil)
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %v, want one session cookie", cookies)
	}
	c := cookies[0]
	if c.Name != "outings_session" || !c.HttpOnly || c.SameSite != http.SameSiteLaxMode || c.Path != "/outinglocations/" {
		t.Errorf("cookie = %+v", c)
	}
	if c.MaxAge != 0 || !c.Expires.IsZero() {
		t.Errorf("session cookie should not persist: %+v", c)
	}

	req := httptest.NewRequest(http.MethodGet, "/outinglocations/about", nil)
	req.AddCookie(c)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if got := rec.Result().Cookies(); len(got) != 0 {
		t.Errorf("known session got a new cookie: %v", got)
	}

	for _, value := range []string{"not-a-uuid", "0b6f4a52-5a5e-4bde-9d0e-2f6b2a9c1f00"} {
		req = httptest.NewRequest(http.MethodGet, "/outinglocations/about", nil)
		req.AddCookie(&http.Cookie{Name: "outings_session", Value: value})
		rec = httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		got := rec.Result().Cookies()
		if len(got) != 1 || got[0].Value == value {
			t.Errorf("cookie %q was not replaced: %v", value, got)
		}
	}

	if rec := do(t, srv, http.MethodGet, "/healthz", nil); len(rec.Result().Cookies()) != 0 {
		t.Error("healthz should not start a session")
	}
}
