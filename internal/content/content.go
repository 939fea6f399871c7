// Package content serves the static page content per locale through the
// key-value cache.
package content

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"praxis-website/internal/cache"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var dataFS embed.FS

// Lookup names
const (
	Services     = "services"
	Team         = "team"
	FAQ          = "faq"
	OpeningHours = "opening_hours"
	Navigation   = "navigation"
)

// Lookups lists every content lookup in refresh order
var Lookups = []string{Services, Team, FAQ, OpeningHours, Navigation}

// ErrUnknownLookup is returned for names outside Lookups
var ErrUnknownLookup = errors.New("unknown content lookup")

type Service struct {
	Slug    string `yaml:"slug" json:"slug"`
	Title   string `yaml:"title" json:"title"`
	Summary string `yaml:"summary" json:"summary"`
}

type TeamMember struct {
	Name string `yaml:"name" json:"name"`
	Role string `yaml:"role" json:"role"`
}

type Question struct {
	Question string `yaml:"question" json:"question"`
	Answer   string `yaml:"answer" json:"answer"`
}

type Hours struct {
	Days  string `yaml:"days" json:"days"`
	Hours string `yaml:"hours" json:"hours"`
}

type NavItem struct {
	Route string `yaml:"route" json:"route"`
	Path  string `yaml:"path" json:"path"`
	Label string `yaml:"label" json:"label"`
}

// Document is the content of one locale
type Document struct {
	Services     []Service    `yaml:"services"`
	Team         []TeamMember `yaml:"team"`
	FAQ          []Question   `yaml:"faq"`
	OpeningHours []Hours      `yaml:"opening_hours"`
	Navigation   []NavItem    `yaml:"navigation"`
}

func (d *Document) lookup(name string) (interface{}, error) {
	switch name {
	case Services:
		return d.Services, nil
	case Team:
		return d.Team, nil
	case FAQ:
		return d.FAQ, nil
	case OpeningHours:
		return d.OpeningHours, nil
	case Navigation:
		return d.Navigation, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownLookup, name)
}

// Provider answers content lookups, caching the encoded result per
// (lookup, locale)
type Provider struct {
	kv            cache.KVStore
	ttl           time.Duration
	defaultLocale string
	docs          map[string]*Document
	logger        *zap.Logger
}

// NewProvider loads the embedded documents. kv may be nil, in which case
// every lookup is computed.
func NewProvider(kv cache.KVStore, ttl time.Duration, defaultLocale string, logger *zap.Logger) (*Provider, error) {
	entries, err := dataFS.ReadDir("data")
	if err != nil {
		return nil, err
	}
	p := &Provider{
		kv:            kv,
		ttl:           ttl,
		defaultLocale: defaultLocale,
		docs:          make(map[string]*Document),
		logger:        logger,
	}
	for _, entry := range entries {
		raw, err := dataFS.ReadFile(path.Join("data", entry.Name()))
		if err != nil {
			return nil, err
		}
		var doc Document
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parse content %s: %w", entry.Name(), err)
		}
		p.docs[strings.TrimSuffix(entry.Name(), ".yaml")] = &doc
	}
	if _, ok := p.docs[defaultLocale]; !ok {
		return nil, fmt.Errorf("no content for default locale %q", defaultLocale)
	}
	return p, nil
}

// Locales lists the locales with content
func (p *Provider) Locales() []string {
	out := make([]string, 0, len(p.docs))
	for loc := range p.docs {
		out = append(out, loc)
	}
	sort.Strings(out)
	return out
}

// Key is the cache key of a lookup
func Key(name, locale string) string {
	return "content:" + name + ":" + locale
}

// Keys lists the cache keys of every lookup in every locale
func (p *Provider) Keys() []string {
	var keys []string
	for _, loc := range p.Locales() {
		for _, name := range Lookups {
			keys = append(keys, Key(name, loc))
		}
	}
	return keys
}

// Get returns the JSON encoded lookup for locale. Cache failures are logged
// and the value is computed instead.
func (p *Provider) Get(ctx context.Context, name, locale string) (json.RawMessage, error) {
	if _, ok := p.docs[locale]; !ok {
		locale = p.defaultLocale
	}
	if p.kv != nil {
		cached, err := p.kv.Get(ctx, Key(name, locale))
		if err == nil {
			return json.RawMessage(cached), nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			p.logger.Warn("Content cache read failed", zap.String("lookup", name), zap.Error(err))
		}
	}

	encoded, err := p.compute(name, locale)
	if err != nil {
		return nil, err
	}
	p.store(ctx, name, locale, encoded)
	return encoded, nil
}

// Refresh recomputes one lookup and stores it
func (p *Provider) Refresh(ctx context.Context, name, locale string) error {
	encoded, err := p.compute(name, locale)
	if err != nil {
		return err
	}
	if p.kv == nil {
		return nil
	}
	return p.kv.Set(ctx, Key(name, locale), string(encoded), p.ttl)
}

// Clear removes every cached lookup
func (p *Provider) Clear(ctx context.Context) error {
	if p.kv == nil {
		return nil
	}
	return p.kv.Delete(ctx, p.Keys()...)
}

func (p *Provider) compute(name, locale string) (json.RawMessage, error) {
	doc, ok := p.docs[locale]
	if !ok {
		return nil, fmt.Errorf("no content for locale %q", locale)
	}
	value, err := doc.lookup(name)
	if err != nil {
		return nil, err
	}
	return json.Marshal(value)
}

func (p *Provider) store(ctx context.Context, name, locale string, encoded json.RawMessage) {
	if p.kv == nil {
		return
	}
	if err := p.kv.Set(ctx, Key(name, locale), string(encoded), p.ttl); err != nil {
		p.logger.Warn("Content cache write failed", zap.String("lookup", name), zap.Error(err))
	}
}
