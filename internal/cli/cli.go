package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/outings/internal/config"
	"github.com/JonMunkholm/outings/internal/core"
	"github.com/JonMunkholm/outings/internal/filter"
	"github.com/JonMunkholm/outings/internal/location"
	"github.com/JonMunkholm/outings/internal/logging"
	"github.com/JonMunkholm/outings/internal/sheets"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

// rootOptions holds the flags shared by every command.
type rootOptions struct {
	sheetID   string
	exportURL string
	verbose   bool

	cfg *config.Config
}

// NewRootCmd creates the root command with its subcommands.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "outings",
		Short: "Browse scout outing locations from the published sheet",
		Long: `Fetch the scout outings sheet, filter it the way the map does,
or run the map web server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			level := cfg.Logging.Level
			if opts.verbose {
				level = "debug"
			}
			// Logs go to stderr so stdout stays parseable.
			logging.SetupWriter(cmd.ErrOrStderr(), level, cfg.Logging.Format)

			if opts.sheetID != "" {
				cfg.Sheet.ID = opts.sheetID
			}
			if opts.exportURL != "" {
				cfg.Sheet.ExportURL = opts.exportURL
			}
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.sheetID, "sheet", "", "Google Sheet ID (default from SHEET_ID)")
	cmd.PersistentFlags().StringVar(&opts.exportURL, "export-url", "", "CSV export URL template with {sheetId} and {gid}")
	cmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")

	cmd.AddCommand(newFetchCmd(opts))
	cmd.AddCommand(newCategoriesCmd(opts))
	cmd.AddCommand(newServeCmd(opts))

	return cmd
}

// newLoader builds a sheet loader from configuration.
func newLoader(cfg *config.Config, opts ...sheets.Option) *sheets.Loader {
	base := []sheets.Option{
		sheets.WithExportURL(cfg.Sheet.ExportURL),
		sheets.WithGID(cfg.Sheet.GID),
		sheets.WithTimeout(cfg.Sheet.FetchTimeout),
		sheets.WithUserAgent(cfg.Sheet.UserAgent),
	}
	return sheets.NewLoader(append(base, opts...)...)
}

type fetchOptions struct {
	categories []string
	search     string
	lat, lng   float64
	format     string
}

func newFetchCmd(root *rootOptions) *cobra.Command {
	opts := &fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Load the sheet once and print the filtered locations",
		Long: `Load the sheet once and print the locations the map would show.
Without --category every category is selected, as on first load.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format := OutputFormat(strings.ToLower(opts.format))
			if format != FormatText && format != FormatJSON {
				return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", opts.format)
			}

			var pin *location.Point
			latSet, lngSet := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lng")
			if latSet != lngSet {
				return fmt.Errorf("--lat and --lng must be given together")
			}
			if latSet {
				pin = &location.Point{Lat: opts.lat, Lng: opts.lng}
			}

			records, err := newLoader(root.cfg).Load(cmd.Context(), root.cfg.Sheet.ID)
			if err != nil {
				return fmt.Errorf("fetching sheet: %w", err)
			}

			selected := filter.NewSet(filter.Categories(records)...)
			if len(opts.categories) > 0 {
				selected = filter.NewSet(opts.categories...)
			}
			shown := filter.MapView(records, selected, pin, opts.search)

			return WriteLocations(cmd.OutOrStdout(), &LocationsResult{
				SheetID:   root.cfg.Sheet.ID,
				Locations: shown,
				Count:     len(shown),
				Total:     len(records),
			}, format)
		},
	}

	cmd.Flags().StringArrayVar(&opts.categories, "category", nil, "Category to include (repeatable; default all)")
	cmd.Flags().StringVar(&opts.search, "search", "", "Case-insensitive search term")
	cmd.Flags().Float64Var(&opts.lat, "lat", 0, "Pin latitude (requires --lng)")
	cmd.Flags().Float64Var(&opts.lng, "lng", 0, "Pin longitude (requires --lat)")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text or json")

	return cmd
}

func newCategoriesCmd(root *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Print the categories found in the sheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := OutputFormat(strings.ToLower(format))
			if f != FormatText && f != FormatJSON {
				return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", format)
			}

			records, err := newLoader(root.cfg).Load(cmd.Context(), root.cfg.Sheet.ID)
			if err != nil {
				return fmt.Errorf("fetching sheet: %w", err)
			}
			return WriteCategories(cmd.OutOrStdout(), summarizeCategories(records), f)
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

// Execute runs the CLI with ctx, typically cancelled on SIGINT.
func Execute(ctx context.Context) {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		slog.Debug("command failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %s\n", errorMessage(err))
		os.Exit(ExitError)
	}
}

// errorMessage shows the mapped user message, with its code and suggested
// action, for errors that have one. Other errors print as they are.
func errorMessage(err error) string {
	if core.IsUserFacing(err) {
		return core.FormatUserError(err)
	}
	return err.Error()
}
