package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"praxis-website/internal/locale"
	"praxis-website/internal/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TagWebsite is carried by every cached response
const TagWebsite = "website"

// Route names are lowercase words joined by dots, so replacing the dots
// with underscores cannot make two routes share a key.
var routeNamePattern = regexp.MustCompile(`^[a-z]+(\.[a-z]+)*$`)

var pageTypeTags = []struct {
	prefix string
	tag    string
}{
	{"services", "services"},
	{"team", "team"},
	{"faq", "faq"},
	{"contact", "contact"},
}

// headers that describe one particular response and are not replayed
var volatileHeaders = []string{"Date", "X-Cache", "X-Request-Id", "Set-Cookie", "Content-Length"}

// Options configures a Manager
type Options struct {
	Enabled       bool
	Prefix        string
	TTL           time.Duration
	SessionCookie string
	Locales       []string
	DefaultLocale string

	// Excluded route names; a name ending in ".*" excludes the whole family
	Excluded []string
}

// Manager decides what is cached and under which key and tags
type Manager struct {
	store    ResponseStore
	opts     Options
	logger   *zap.Logger
	exact    map[string]bool
	families []string
}

// NewManager creates a Manager. Without explicit exclusions the contact
// submission and all legal pages are excluded.
func NewManager(store ResponseStore, opts Options, logger *zap.Logger) *Manager {
	if opts.Excluded == nil {
		opts.Excluded = []string{"contact.submit", "legal.*"}
	}
	if opts.DefaultLocale == "" && len(opts.Locales) > 0 {
		opts.DefaultLocale = opts.Locales[0]
	}
	m := &Manager{store: store, opts: opts, logger: logger, exact: make(map[string]bool)}
	for _, name := range opts.Excluded {
		if strings.HasSuffix(name, ".*") {
			m.families = append(m.families, strings.TrimSuffix(name, ".*"))
		} else {
			m.exact[name] = true
		}
	}
	return m
}

// Enabled reports whether response caching is on
func (m *Manager) Enabled() bool {
	return m.opts.Enabled
}

// Excluded reports whether route is never cached
func (m *Manager) Excluded(route string) bool {
	if m.exact[route] {
		return true
	}
	for _, family := range m.families {
		if route == family || strings.HasPrefix(route, family+".") {
			return true
		}
	}
	return false
}

// RequestCacheable applies the request predicate: GET, no session, at most
// the locale query parameter with a supported value, and a cacheable route.
func (m *Manager) RequestCacheable(r *http.Request, route string) bool {
	if !m.opts.Enabled || r.Method != http.MethodGet {
		return false
	}
	if r.Header.Get("Authorization") != "" {
		return false
	}
	if m.opts.SessionCookie != "" {
		if _, err := r.Cookie(m.opts.SessionCookie); err == nil {
			return false
		}
	}

	query := r.URL.Query()
	if len(query) > 1 {
		return false
	}
	for key, values := range query {
		if key != locale.QueryParam || len(values) != 1 || !m.supportedLocale(values[0]) {
			return false
		}
	}

	return routeNamePattern.MatchString(route) && !m.Excluded(route)
}

// ResponseCacheable applies the response predicate: 2xx, no Set-Cookie,
// and no no-cache or no-store directive.
func (m *Manager) ResponseCacheable(status int, h http.Header) bool {
	if status < 200 || status > 299 {
		return false
	}
	if len(h.Values("Set-Cookie")) > 0 {
		return false
	}
	for _, value := range h.Values("Cache-Control") {
		for _, directive := range strings.Split(value, ",") {
			d := strings.ToLower(strings.TrimSpace(directive))
			if d == "no-cache" || d == "no-store" {
				return false
			}
		}
	}
	return true
}

// Key derives the cache key of (locale, route)
func (m *Manager) Key(loc, route string) (string, error) {
	if !routeNamePattern.MatchString(route) {
		return "", fmt.Errorf("invalid route name %q", route)
	}
	if loc == "" || strings.ContainsAny(loc, ": ") {
		return "", fmt.Errorf("invalid locale %q", loc)
	}
	return m.opts.Prefix + "response:" + loc + ":" + strings.ReplaceAll(route, ".", "_"), nil
}

// Tags returns the invalidation tags of a cached (locale, route) response
func (m *Manager) Tags(loc, route string) []string {
	tags := []string{TagWebsite, RouteTag(route), LocaleTag(loc)}
	if route == "home" {
		tags = append(tags, "homepage")
	}
	for _, pt := range pageTypeTags {
		if strings.HasPrefix(route, pt.prefix) {
			tags = append(tags, pt.tag)
		}
	}
	return tags
}

// RouteTag is the tag of every response of route
func RouteTag(route string) string { return "route:" + route }

// LocaleTag is the tag of every response in loc
func LocaleTag(loc string) string { return "locale:" + loc }

// InvalidateTags removes all responses carrying any of tags
func (m *Manager) InvalidateTags(ctx context.Context, tags ...string) (int, error) {
	n, err := m.store.InvalidateTags(ctx, tags...)
	if err != nil {
		return n, err
	}
	m.logger.Info("Response cache invalidated", zap.Strings("tags", tags), zap.Int("entries", n))
	return n, nil
}

// Clear removes every cached response
func (m *Manager) Clear(ctx context.Context) (int, error) {
	n, err := m.store.Clear(ctx)
	if err != nil {
		return n, err
	}
	m.logger.Info("Response cache cleared", zap.Int("entries", n))
	return n, nil
}

func (m *Manager) supportedLocale(code string) bool {
	for _, l := range m.opts.Locales {
		if l == code {
			return true
		}
	}
	return false
}

// Middleware serves cached responses for route and stores cacheable misses.
// Store errors never fail the request.
func (m *Manager) Middleware(route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.RequestCacheable(c.Request, route) {
			metrics.RecordCacheResult("bypass")
			c.Next()
			return
		}

		ctx := c.Request.Context()
		loc := c.Query(locale.QueryParam)
		if loc == "" {
			loc = locale.FromContext(ctx, m.opts.DefaultLocale)
		}
		key, err := m.Key(loc, route)
		if err != nil {
			m.logger.Warn("Response cache key rejected", zap.String("route", route), zap.Error(err))
			c.Next()
			return
		}

		entry, err := m.store.Get(ctx, key)
		switch {
		case err == nil:
			metrics.RecordCacheResult("hit")
			for name, values := range entry.Header {
				c.Writer.Header().Del(name)
				for _, v := range values {
					c.Writer.Header().Add(name, v)
				}
			}
			c.Header("X-Cache", "HIT")
			c.Status(entry.Status)
			c.Writer.Write(entry.Body)
			c.Abort()
			return
		case !errors.Is(err, ErrCacheMiss):
			metrics.RecordCacheResult("error")
			m.logger.Warn("Response cache read failed", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		metrics.RecordCacheResult("miss")
		capture := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = capture
		c.Header("X-Cache", "MISS")
		c.Next()
		c.Writer = capture.ResponseWriter

		status := capture.Status()
		header := capture.Header()
		if !m.ResponseCacheable(status, header) {
			metrics.RecordCacheResult("discarded")
			return
		}

		stored := &Entry{
			Status:   status,
			Header:   header.Clone(),
			Body:     capture.body.Bytes(),
			StoredAt: time.Now().UTC(),
		}
		for _, h := range volatileHeaders {
			stored.Header.Del(h)
		}
		if err := m.store.Put(ctx, key, stored, m.Tags(loc, route), m.opts.TTL); err != nil {
			metrics.RecordCacheResult("error")
			m.logger.Warn("Response cache write failed", zap.String("key", key), zap.Error(err))
			return
		}
		metrics.RecordCacheResult("stored")
	}
}

// captureWriter copies the body while passing it through
type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
