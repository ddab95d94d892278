// Package web provides the HTTP server, pages and JSON API for the outings map.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/outings/internal/config"
	"github.com/JonMunkholm/outings/internal/core"
	"github.com/JonMunkholm/outings/internal/metrics"
	"github.com/JonMunkholm/outings/internal/store"
	mw "github.com/JonMunkholm/outings/internal/web/middleware"
)

//go:embed static
var staticFiles embed.FS

// Server is the HTTP server for the outings map.
type Server struct {
	cfg      *config.Config
	store    *store.Store
	sessions *store.Sessions
	loader   store.Loader
	metrics  *metrics.Collector

	router   *chi.Mux
	server   *http.Server
	limiters []*rateLimiter
}

// NewServer wires routes and middleware. collector may be nil. Each visitor
// gets its own filter session over st; Shutdown ends them.
func NewServer(cfg *config.Config, st *store.Store, loader store.Loader, collector *metrics.Collector) *Server {
	s := &Server{
		cfg:      cfg,
		store:    st,
		sessions: store.NewSessions(st, cfg.Session.IdleTimeout, collector),
		loader:   loader,
		metrics:  collector,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP, s.cfg.Map.TileURL))

	if s.cfg.Rate.Enabled {
		limiter := s.newLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(limiter.middleware)
	}
}

// setupRoutes mounts the application under the configured base path.
// Health and metrics stay at the root for health checks and scrapers.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	base := strings.TrimSuffix(s.cfg.Server.BasePath, "/")
	app := chi.NewRouter()

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(fmt.Sprintf("embedded static files: %v", err))
	}
	// Mounted routers still see the full URL path, so strip the base too.
	app.Handle("/static/*", http.StripPrefix(base+"/static/", http.FileServer(http.FS(staticFS))))

	app.Group(func(r chi.Router) {
		r.Use(s.withSession)

		// The event stream is long-lived and must not sit behind the request timeout.
		r.Get("/api/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

			// Pages
			r.Get("/", s.handleMap)
			r.Get("/categories", s.handleCategories)
			r.Get("/about", s.handleAbout)

			r.Route("/api", func(r chi.Router) {
				r.Get("/locations", s.handleLocations)

				r.Get("/categories", s.handleListCategories)
				r.Post("/categories/select-all", s.handleSelectAll)
				r.Post("/categories/clear", s.handleClearAll)
				r.Post("/categories/{category}/toggle", s.handleToggleCategory)

				r.Put("/search", s.handleSetSearch)

				r.Group(func(r chi.Router) {
					if s.cfg.Rate.Enabled {
						r.Use(s.newLimiter(s.cfg.Rate.ReloadLimit, time.Minute).middleware)
					}
					r.Post("/reload", s.handleReload)
				})
			})
		})
	})

	if base == "" {
		s.router.Mount("/", app)
		return
	}
	s.router.Mount(base, app)
	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, base+"/", http.StatusFound)
	})
}

func (s *Server) newLimiter(rate int, window time.Duration) *rateLimiter {
	rl := newRateLimiter(rate, window)
	s.limiters = append(s.limiters, rl)
	return rl
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr, "base_path", s.cfg.Server.BasePath)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, rl := range s.limiters {
		rl.stop()
	}
	s.sessions.Close()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// basePath returns the mount point with a trailing slash.
func (s *Server) basePath() string {
	return s.cfg.Server.BasePath
}

// securityHeaders adds security headers to all responses. The CSP admits the
// Leaflet CDN and the configured tile host.
func securityHeaders(enableCSP bool, tileURL string) func(http.Handler) http.Handler {
	csp := contentSecurityPolicy(tileURL)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				w.Header().Set("Content-Security-Policy", csp)
			}
			next.ServeHTTP(w, r)
		})
	}
}

const leafletCDN = "https://unpkg.com"

func contentSecurityPolicy(tileURL string) string {
	img := []string{"'self'", "data:", leafletCDN}
	if host := tileHost(tileURL); host != "" {
		img = append(img, host)
	}
	return strings.Join([]string{
		"default-src 'self'",
		"script-src 'self' " + leafletCDN,
		"style-src 'self' 'unsafe-inline' " + leafletCDN,
		"img-src " + strings.Join(img, " "),
		"connect-src 'self'",
		"font-src 'self'",
	}, "; ")
}

// tileHost turns a Leaflet tile template into a CSP source. The {s}
// subdomain placeholder becomes a wildcard.
func tileHost(tileURL string) string {
	u, err := url.Parse(strings.NewReplacer("{s}", "a", "{z}", "0", "{x}", "0", "{y}", "0", "{r}", "").Replace(tileURL))
	if err != nil || u.Host == "" {
		return ""
	}
	host := u.Host
	if strings.Contains(tileURL, "{s}.") {
		host = "*." + strings.TrimPrefix(host, "a.")
	}
	return u.Scheme + "://" + host
}

var errRateLimited = errors.New("rate limit exceeded")

// rateLimiter implements a fixed-window request limit per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	window   time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		done:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// cleanup drops visitors idle for two windows until stop is called.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if time.Since(v.lastReset) > rl.window*2 {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// allow consumes a token for ip and reports whether the request may proceed.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists || time.Since(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: time.Now()}
		return true
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			respondErrorJSON(w, core.MapError(errRateLimited), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the request's client address without port. TrustedRealIP
// has already replaced RemoteAddr when the request came through a proxy.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// writeError writes a JSON error response with a sanitized message.
func writeError(w http.ResponseWriter, status int, message string) {
	slog.Warn("http error", "status", status, "message", message)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": sanitizeErrorMessage(message)})
}

// sanitizeErrorMessage keeps the first line of message and bounds its length.
func sanitizeErrorMessage(message string) string {
	if i := strings.IndexAny(message, "\r\n"); i >= 0 {
		message = message[:i]
	}
	const maxLen = 200
	if len(message) > maxLen {
		message = message[:maxLen] + "..."
	}
	return message
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
