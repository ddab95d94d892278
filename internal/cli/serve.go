package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/outings/internal/config"
	"github.com/JonMunkholm/outings/internal/metrics"
	"github.com/JonMunkholm/outings/internal/sheets"
	"github.com/JonMunkholm/outings/internal/store"
	"github.com/JonMunkholm/outings/internal/web"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the map web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Serve(cmd.Context(), root.cfg, prometheus.DefaultRegisterer)
		},
	}
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down within
// cfg.Server.ShutdownTimeout. The dataset loads in the background so pages
// answer with a loading state straight away, and reloads every
// cfg.Sheet.RefreshInterval when that is set.
func Serve(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) error {
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	loader := newLoader(cfg, sheets.WithRecorder(collector))
	st := store.New(store.WithRecorder(collector))
	server := web.NewServer(cfg, st, loader, collector)

	slog.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"base_path", cfg.Server.BasePath,
		"sheet_id", cfg.Sheet.ID,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	go st.StartRefreshScheduler(ctx, loader, cfg.Sheet.ID, cfg.Sheet.RefreshInterval)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.Addr())
	}()

	select {
	case err := <-errCh:
		st.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Close subscriptions first so open event streams return.
	st.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
