// Package locale resolves the active locale of a request and carries it
// through the request context.
package locale

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
)

// QueryParam selects the locale explicitly
const QueryParam = "lang"

type ctxKey struct{}

// Resolver picks one of the supported locales for a request
type Resolver struct {
	codes    []string
	fallback string
	matcher  language.Matcher
}

// NewResolver builds a resolver over codes. The fallback must be one of them;
// otherwise the first code is used.
func NewResolver(codes []string, fallback string) *Resolver {
	tags := make([]language.Tag, 0, len(codes))
	normalized := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.ToLower(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		tags = append(tags, language.Make(code))
		normalized = append(normalized, code)
	}

	r := &Resolver{codes: normalized, fallback: normalized[0], matcher: language.NewMatcher(tags)}
	if r.IsSupported(fallback) {
		r.fallback = strings.ToLower(fallback)
	}
	return r
}

// Supported returns the supported locale codes in configured order
func (r *Resolver) Supported() []string {
	out := make([]string, len(r.codes))
	copy(out, r.codes)
	return out
}

// Default returns the fallback locale
func (r *Resolver) Default() string {
	return r.fallback
}

// IsSupported reports whether code is a supported locale
func (r *Resolver) IsSupported(code string) bool {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, c := range r.codes {
		if c == code {
			return true
		}
	}
	return false
}

// Resolve applies query parameter, then Accept-Language, then the default
func (r *Resolver) Resolve(query, acceptLanguage string) string {
	if r.IsSupported(query) {
		return strings.ToLower(strings.TrimSpace(query))
	}
	if acceptLanguage != "" {
		tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
		if err == nil && len(tags) > 0 {
			_, idx, conf := r.matcher.Match(tags...)
			if conf != language.No && idx >= 0 && idx < len(r.codes) {
				return r.codes[idx]
			}
		}
	}
	return r.fallback
}

// Middleware stores the resolved locale in the request context
func (r *Resolver) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		loc := r.Resolve(c.Query(QueryParam), c.GetHeader("Accept-Language"))
		c.Request = c.Request.WithContext(WithLocale(c.Request.Context(), loc))
		c.Header("Content-Language", loc)
		c.Next()
	}
}

// WithLocale returns a context carrying code
func WithLocale(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, ctxKey{}, code)
}

// FromContext returns the locale stored in ctx or fallback
func FromContext(ctx context.Context, fallback string) string {
	if code, ok := ctx.Value(ctxKey{}).(string); ok && code != "" {
		return code
	}
	return fallback
}
