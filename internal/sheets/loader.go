package sheets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JonMunkholm/outings/internal/csv"
	"github.com/JonMunkholm/outings/internal/location"
	"github.com/JonMunkholm/outings/internal/logging"
)

const (
	// DefaultExportURL is the CSV export endpoint. {sheetId} and {gid} are
	// substituted per request.
	DefaultExportURL = "https://docs.google.com/spreadsheets/d/{sheetId}/export?format=csv&gid={gid}"

	// DefaultSheetID is the published outings sheet.
	DefaultSheetID = "1PvOBObJktZaGqF9DdTqPUPD3yT_ygOy5u6LB-rzYuWk"

	UserAgent = "outings/1.0 (+https://github.com/JonMunkholm/outings)"
)

// Recorder receives load metrics. *metrics.Collector satisfies it.
type Recorder interface {
	ObserveLoad(err error, d time.Duration)
	AddDroppedRows(reason string, n int)
}

// Loader fetches the sheet export and maps it into records.
// A Loader is safe for concurrent use.
type Loader struct {
	client    *http.Client
	exportURL string
	gid       int
	userAgent string
	recorder  Recorder
	timeout   *time.Duration
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) {
		if c != nil {
			l.client = c
		}
	}
}

// WithTimeout bounds each fetch. Zero means no timeout. It applies to a copy
// of the client, so a client passed to WithHTTPClient is left untouched.
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) { l.timeout = &d }
}

// WithExportURL overrides the export URL template.
func WithExportURL(tmpl string) Option {
	return func(l *Loader) {
		if tmpl != "" {
			l.exportURL = tmpl
		}
	}
}

// WithGID selects the worksheet tab.
func WithGID(gid int) Option {
	return func(l *Loader) { l.gid = gid }
}

// WithUserAgent sets the User-Agent header sent with each fetch.
func WithUserAgent(ua string) Option {
	return func(l *Loader) {
		if ua != "" {
			l.userAgent = ua
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(l *Loader) { l.recorder = r }
}

// NewLoader creates a Loader. Without options it fetches gid 0 from the public
// export endpoint with no timeout.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		client:    &http.Client{},
		exportURL: DefaultExportURL,
		userAgent: UserAgent,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.timeout != nil {
		c := *l.client
		c.Timeout = *l.timeout
		l.client = &c
	}
	return l
}

// URL returns the export URL for sheetID.
func (l *Loader) URL(sheetID string) string {
	return strings.NewReplacer(
		"{sheetId}", sheetID,
		"{gid}", strconv.Itoa(l.gid),
	).Replace(l.exportURL)
}

// Load fetches the sheet and returns its valid records in sheet order.
// Every call performs a fresh fetch.
func (l *Loader) Load(ctx context.Context, sheetID string) ([]location.Record, error) {
	records, _, err := l.LoadWithReport(ctx, sheetID)
	return records, err
}

// LoadWithReport is Load plus a summary of which rows were kept or dropped.
func (l *Loader) LoadWithReport(ctx context.Context, sheetID string) ([]location.Record, LoadReport, error) {
	logger := logging.WithFields(ctx, "sheet_id", sheetID)
	start := time.Now()

	body, size, err := l.fetch(ctx, sheetID)
	if err != nil {
		l.observe(err, time.Since(start), LoadReport{})
		logger.Warn("sheet load failed", "error", err)
		return nil, LoadReport{}, err
	}

	records, report := MapRows(csv.Parse(body))
	report.Bytes = size
	report.Duration = time.Since(start)
	l.observe(nil, report.Duration, report)

	if report.DroppedTotal() > 0 {
		logger.Debug("sheet rows dropped",
			"short_row", report.Dropped[DropShortRow],
			"missing_id", report.Dropped[DropMissingID],
			"sentinel_coordinates", report.Dropped[DropSentinelCoordinates],
		)
	}
	logger.Info("sheet loaded",
		"rows", report.Rows,
		"kept", report.Kept,
		"dropped", report.DroppedTotal(),
		"bytes", report.Bytes,
		"duration", report.Duration,
	)

	return records, report, nil
}

func (l *Loader) observe(err error, d time.Duration, report LoadReport) {
	if l.recorder == nil {
		return
	}
	l.recorder.ObserveLoad(err, d)
	for reason, n := range report.Dropped {
		l.recorder.AddDroppedRows(string(reason), n)
	}
}

// fetch performs the single GET and returns the sanitized body text.
func (l *Loader) fetch(ctx context.Context, sheetID string) (string, int64, error) {
	fail := func(status int, err error) (string, int64, error) {
		return "", 0, &DataLoadError{SheetID: sheetID, StatusCode: status, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL(sheetID), nil)
	if err != nil {
		return fail(0, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.1")

	resp, err := l.client.Do(req)
	if err != nil {
		return fail(0, fmt.Errorf("fetching sheet: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(resp.StatusCode, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	body := csv.WrapForStreaming(resp.Body)
	data, err := io.ReadAll(body)
	if err != nil {
		return fail(resp.StatusCode, fmt.Errorf("reading body: %w", err))
	}

	if looksLikeHTML(resp.Header.Get("Content-Type"), data) {
		if title := pageTitle(data); title != "" {
			return fail(resp.StatusCode, fmt.Errorf("%w (page title %q)", ErrHTMLResponse, title))
		}
		return fail(resp.StatusCode, ErrHTMLResponse)
	}

	return string(data), body.BytesRead, nil
}

// looksLikeHTML reports whether a response is an HTML document rather than
// CSV, either by content type or by its first non-blank bytes.
func looksLikeHTML(contentType string, data []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	head := bytes.TrimSpace(data)
	if len(head) > 64 {
		head = head[:64]
	}
	head = bytes.ToLower(head)
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}

// pageTitle extracts the <title> text from an HTML document.
func pageTitle(data []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
