package cache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"praxis-website/internal/locale"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	m := NewManager(NewRedisStore(client, "praxis:"), Options{
		Enabled:       true,
		Prefix:        "praxis:",
		TTL:           time.Hour,
		SessionCookie: "praxis_session",
		Locales:       []string{"de", "en"},
		DefaultLocale: "de",
	}, zap.NewNop())
	return m, mr, client
}

func TestKey_DistinctPerLocaleAndRoute(t *testing.T) {
	m, _, _ := newTestManager(t)

	deHome, err := m.Key("de", "home")
	require.NoError(t, err)
	enHome, err := m.Key("en", "home")
	require.NoError(t, err)
	deServices, err := m.Key("de", "services")
	require.NoError(t, err)
	deImprint, err := m.Key("de", "legal.imprint")
	require.NoError(t, err)

	assert.Equal(t, "praxis:response:de:home", deHome)
	assert.Equal(t, "praxis:response:de:legal_imprint", deImprint)
	keys := map[string]bool{deHome: true, enHome: true, deServices: true, deImprint: true}
	assert.Len(t, keys, 4)

	again, _ := m.Key("de", "home")
	assert.Equal(t, deHome, again)

	_, err = m.Key("de", "legal_imprint")
	assert.Error(t, err)
	_, err = m.Key("de:x", "home")
	assert.Error(t, err)
}

func TestRequestCacheable(t *testing.T) {
	m, _, _ := newTestManager(t)

	tests := []struct {
		name   string
		method string
		target string
		route  string
		setup  func(*http.Request)
		want   bool
	}{
		{"contact page with locale", http.MethodGet, "/kontakt?lang=de", "contact", nil, true},
		{"no query", http.MethodGet, "/team", "team", nil, true},
		{"extra query parameter", http.MethodGet, "/kontakt?lang=de&utm=x", "contact", nil, false},
		{"unknown query parameter", http.MethodGet, "/team?page=2", "team", nil, false},
		{"unsupported locale", http.MethodGet, "/team?lang=fr", "team", nil, false},
		{"repeated locale", http.MethodGet, "/team?lang=de&lang=en", "team", nil, false},
		{"post", http.MethodPost, "/kontakt", "contact", nil, false},
		{"form submission route", http.MethodGet, "/kontakt", "contact.submit", nil, false},
		{"legal page", http.MethodGet, "/impressum", "legal.imprint", nil, false},
		{"authorization header", http.MethodGet, "/team", "team", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer abc")
		}, false},
		{"session cookie", http.MethodGet, "/team", "team", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "praxis_session", Value: "s"})
		}, false},
		{"other cookie", http.MethodGet, "/team", "team", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "theme", Value: "dark"})
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.setup != nil {
				tt.setup(r)
			}
			assert.Equal(t, tt.want, m.RequestCacheable(r, tt.route))
		})
	}
}

func TestRequestCacheable_Disabled(t *testing.T) {
	m := NewManager(nil, Options{Enabled: false, Locales: []string{"de"}}, zap.NewNop())
	assert.False(t, m.RequestCacheable(httptest.NewRequest(http.MethodGet, "/", nil), "home"))
}

func TestResponseCacheable(t *testing.T) {
	m, _, _ := newTestManager(t)

	header := func(kv ...string) http.Header {
		h := http.Header{}
		for i := 0; i < len(kv); i += 2 {
			h.Add(kv[i], kv[i+1])
		}
		return h
	}

	assert.True(t, m.ResponseCacheable(http.StatusOK, header("Content-Type", "application/json")))
	assert.True(t, m.ResponseCacheable(http.StatusOK, header("Cache-Control", "public, max-age=300")))
	assert.False(t, m.ResponseCacheable(http.StatusNotFound, header()))
	assert.False(t, m.ResponseCacheable(http.StatusFound, header()))
	assert.False(t, m.ResponseCacheable(http.StatusOK, header("Set-Cookie", "a=b")))
	assert.False(t, m.ResponseCacheable(http.StatusOK, header("Cache-Control", "private, No-Cache")))
	assert.False(t, m.ResponseCacheable(http.StatusOK, header("Cache-Control", "no-store")))
}

func TestTags(t *testing.T) {
	m, _, _ := newTestManager(t)

	assert.Equal(t, []string{"website", "route:home", "locale:de", "homepage"}, m.Tags("de", "home"))
	assert.Equal(t, []string{"website", "route:services", "locale:en", "services"}, m.Tags("en", "services"))
	assert.Equal(t, []string{"website", "route:contact.reasons", "locale:de", "contact"}, m.Tags("de", "contact.reasons"))
	assert.Equal(t, []string{"website", "route:sitemap", "locale:de"}, m.Tags("de", "sitemap"))
}

type pageRouter struct {
	engine *gin.Engine
	calls  map[string]*int32
}

func newPageRouter(m *Manager) *pageRouter {
	gin.SetMode(gin.TestMode)
	pr := &pageRouter{engine: gin.New(), calls: map[string]*int32{}}
	pr.engine.Use(locale.NewResolver([]string{"de", "en"}, "de").Middleware())

	page := func(route, path string, h func(c *gin.Context)) {
		var n int32
		pr.calls[route] = &n
		pr.engine.GET(path, m.Middleware(route), func(c *gin.Context) {
			atomic.AddInt32(&n, 1)
			h(c)
		})
	}
	page("home", "/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"page": "home", "locale": locale.FromContext(c.Request.Context(), "de")})
	})
	page("services", "/leistungen", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"page": "services"})
	})
	page("team", "/team", func(c *gin.Context) {
		c.SetCookie("praxis_flash", "1", 60, "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{"page": "team"})
	})
	page("faq", "/faq", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})
	return pr
}

func (pr *pageRouter) get(target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	pr.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func (pr *pageRouter) count(route string) int32 {
	return atomic.LoadInt32(pr.calls[route])
}

func TestMiddleware_MissThenHit(t *testing.T) {
	m, _, _ := newTestManager(t)
	pr := newPageRouter(m)

	first := pr.get("/?lang=en")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := pr.get("/?lang=en")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", second.Header().Get("Content-Type"))
	assert.Equal(t, int32(1), pr.count("home"))

	german := pr.get("/?lang=de")
	assert.Equal(t, "MISS", german.Header().Get("X-Cache"))
	assert.Contains(t, german.Body.String(), `"locale":"de"`)
	assert.Equal(t, int32(2), pr.count("home"))
}

func TestMiddleware_UncacheableRequestBypasses(t *testing.T) {
	m, _, _ := newTestManager(t)
	pr := newPageRouter(m)

	pr.get("/leistungen?lang=de&utm_source=x")
	w := pr.get("/leistungen?lang=de&utm_source=x")
	assert.Empty(t, w.Header().Get("X-Cache"))
	assert.Equal(t, int32(2), pr.count("services"))
}

func TestMiddleware_SetCookieNeverStored(t *testing.T) {
	m, mr, _ := newTestManager(t)
	pr := newPageRouter(m)

	pr.get("/team")
	w := pr.get("/team")
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, int32(2), pr.count("team"))
	assert.False(t, mr.Exists("praxis:response:de:team"))
}

func TestMiddleware_ErrorResponseNotStored(t *testing.T) {
	m, mr, _ := newTestManager(t)
	pr := newPageRouter(m)

	pr.get("/faq")
	pr.get("/faq")
	assert.Equal(t, int32(2), pr.count("faq"))
	assert.False(t, mr.Exists("praxis:response:de:faq"))
}

func TestMiddleware_RedisDownFailsOpen(t *testing.T) {
	m, mr, _ := newTestManager(t)
	pr := newPageRouter(m)
	mr.Close()

	w := pr.get("/leistungen")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(1), pr.count("services"))
}

func TestInvalidateTags(t *testing.T) {
	m, mr, _ := newTestManager(t)
	pr := newPageRouter(m)
	ctx := context.Background()

	pr.get("/")
	pr.get("/leistungen")
	pr.get("/leistungen?lang=en")
	require.True(t, mr.Exists("praxis:response:en:services"))

	n, err := m.InvalidateTags(ctx, "services")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, mr.Exists("praxis:response:de:services"))
	assert.False(t, mr.Exists("praxis:response:en:services"))
	assert.True(t, mr.Exists("praxis:response:de:home"))

	assert.Equal(t, "HIT", pr.get("/").Header().Get("X-Cache"))
	assert.Equal(t, "MISS", pr.get("/leistungen").Header().Get("X-Cache"))
}

func TestClear(t *testing.T) {
	m, mr, _ := newTestManager(t)
	pr := newPageRouter(m)

	pr.get("/")
	pr.get("/?lang=en")
	pr.get("/leistungen")

	n, err := m.Clear(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.False(t, mr.Exists("praxis:response:de:home"))
	assert.False(t, mr.Exists("praxis:tags"))
}

func TestRedisKV(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	kv := NewRedisKV(client, "praxis:")
	ctx := context.Background()

	_, err := kv.Get(ctx, "content:faq:de")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, kv.Set(ctx, "content:faq:de", `[{"q":"?"}]`, time.Minute))
	assert.True(t, mr.Exists("praxis:content:faq:de"))

	ok, err := kv.Has(ctx, "content:faq:de")
	require.NoError(t, err)
	assert.True(t, ok)

	val, err := kv.Get(ctx, "content:faq:de")
	require.NoError(t, err)
	assert.Equal(t, `[{"q":"?"}]`, val)

	mr.FastForward(2 * time.Minute)
	ok, err = kv.Has(ctx, "content:faq:de")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "a", "1", 0))
	require.NoError(t, kv.Delete(ctx, "a"))
	ok, _ = kv.Has(ctx, "a")
	assert.False(t, ok)
}
