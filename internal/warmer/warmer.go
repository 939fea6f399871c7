// Package warmer pre-populates the content and response caches.
package warmer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"praxis-website/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Item kinds
const (
	KindContent = "content"
	KindPage    = "page"
)

// ResponseCache is the part of the response cache the warmer clears
type ResponseCache interface {
	Clear(ctx context.Context) (int, error)
}

// ContentSource recomputes and clears cached content lookups
type ContentSource interface {
	Refresh(ctx context.Context, name, locale string) error
	Clear(ctx context.Context) error
}

// Config configures a Warmer
type Config struct {
	BaseURL     string
	Paths       []string
	Locales     []string
	Lookups     []string
	Timeout     time.Duration
	UserAgent   string
	Concurrency int
}

// Options controls one warm run
type Options struct {
	Clear bool
}

// Failure is one item that could not be warmed
type Failure struct {
	Kind   string `json:"kind"`
	Target string `json:"target"`
	Error  string `json:"error"`
}

// Report summarizes a warm run
type Report struct {
	StartedAt     time.Time     `json:"startedAt"`
	Duration      time.Duration `json:"duration"`
	Cleared       int           `json:"cleared"`
	ContentWarmed int           `json:"contentWarmed"`
	PagesWarmed   int           `json:"pagesWarmed"`
	Failures      []Failure     `json:"failures"`
}

// Failed returns the number of failed items
func (r *Report) Failed() int {
	return len(r.Failures)
}

// Warmer refreshes content lookups and requests the critical pages so their
// responses land in the cache
type Warmer struct {
	responses ResponseCache
	content   ContentSource
	client    *http.Client
	cfg       Config
	logger    *zap.Logger
}

// run collects the results of one WarmAll call
type run struct {
	mu     sync.Mutex
	report Report
}

// NewWarmer creates a Warmer. Unset config values get defaults.
func NewWarmer(responses ResponseCache, content ContentSource, cfg Config, logger *zap.Logger) *Warmer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "PraxisCacheWarmer/1.0"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Warmer{
		responses: responses,
		content:   content,
		client:    &http.Client{Timeout: cfg.Timeout},
		cfg:       cfg,
		logger:    logger,
	}
}

// WarmAll runs a full warm. Item failures are recorded in the report and
// never stop the run; only a failed clear is returned as an error.
func (w *Warmer) WarmAll(ctx context.Context, opts Options) (*Report, error) {
	r := &run{report: Report{StartedAt: time.Now().UTC(), Failures: []Failure{}}}

	if opts.Clear {
		if err := w.clear(ctx, r); err != nil {
			return r.finish(), err
		}
	}

	w.warmContent(ctx, r)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)
	for _, loc := range w.cfg.Locales {
		for _, p := range w.cfg.Paths {
			target := w.pageURL(p, loc)
			g.Go(func() error {
				w.warmPage(gctx, r, target)
				return nil
			})
		}
	}
	g.Wait()

	report := r.finish()
	w.logger.Info("Cache warm finished",
		zap.Int("content", report.ContentWarmed),
		zap.Int("pages", report.PagesWarmed),
		zap.Int("failed", report.Failed()),
		zap.Duration("duration", report.Duration))
	return report, nil
}

func (w *Warmer) clear(ctx context.Context, r *run) error {
	cleared := 0
	if w.responses != nil {
		n, err := w.responses.Clear(ctx)
		if err != nil {
			return fmt.Errorf("clear response cache: %w", err)
		}
		cleared = n
	}
	if w.content != nil {
		if err := w.content.Clear(ctx); err != nil {
			return fmt.Errorf("clear content cache: %w", err)
		}
	}
	r.mu.Lock()
	r.report.Cleared = cleared
	r.mu.Unlock()
	return nil
}

func (w *Warmer) warmContent(ctx context.Context, r *run) {
	if w.content == nil {
		return
	}
	for _, loc := range w.cfg.Locales {
		for _, name := range w.cfg.Lookups {
			err := w.content.Refresh(ctx, name, loc)
			w.record(r, KindContent, name+":"+loc, err)
		}
	}
}

func (w *Warmer) warmPage(ctx context.Context, r *run, target string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		w.record(r, KindPage, target, err)
		return
	}
	req.Header.Set("User-Agent", w.cfg.UserAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		w.record(r, KindPage, target, err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		w.record(r, KindPage, target, fmt.Errorf("unexpected status %d", resp.StatusCode))
		return
	}
	w.record(r, KindPage, target, nil)
}

func (w *Warmer) pageURL(p, loc string) string {
	q := url.Values{}
	q.Set("lang", loc)
	return w.cfg.BaseURL + p + "?" + q.Encode()
}

func (w *Warmer) record(r *run, kind, target string, err error) {
	metrics.RecordWarmItem(kind, err == nil)
	if err != nil {
		w.logger.Warn("Cache warm item failed", zap.String("kind", kind), zap.String("target", target), zap.Error(err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.report.Failures = append(r.report.Failures, Failure{Kind: kind, Target: target, Error: err.Error()})
		return
	}
	switch kind {
	case KindContent:
		r.report.ContentWarmed++
	case KindPage:
		r.report.PagesWarmed++
	}
}

func (r *run) finish() *Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Duration = time.Since(r.report.StartedAt)
	report := r.report
	return &report
}
