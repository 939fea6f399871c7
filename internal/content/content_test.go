package content

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"praxis-website/internal/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestProvider(t *testing.T) (*Provider, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	p, err := NewProvider(cache.NewRedisKV(client, "praxis:"), time.Hour, "de", zap.NewNop())
	require.NoError(t, err)
	return p, mr
}

func TestNewProvider_LocalesHaveEveryLookup(t *testing.T) {
	p, _ := newTestProvider(t)
	assert.Equal(t, []string{"de", "en"}, p.Locales())

	for _, loc := range p.Locales() {
		for _, name := range Lookups {
			raw, err := p.compute(name, loc)
			require.NoError(t, err)
			var items []map[string]interface{}
			require.NoError(t, json.Unmarshal(raw, &items))
			assert.NotEmpty(t, items, "%s/%s", name, loc)
		}
	}
}

func TestGet_CachesResult(t *testing.T) {
	p, mr := newTestProvider(t)
	ctx := context.Background()

	raw, err := p.Get(ctx, Team, "en")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "General practitioner")
	assert.True(t, mr.Exists("praxis:content:team:en"))

	mr.Set("praxis:content:team:en", `[{"name":"cached"}]`)
	raw, err = p.Get(ctx, Team, "en")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"cached"}]`, string(raw))
}

func TestGet_UnknownLocaleFallsBack(t *testing.T) {
	p, _ := newTestProvider(t)

	raw, err := p.Get(context.Background(), Navigation, "fr")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Leistungen")
}

func TestGet_UnknownLookup(t *testing.T) {
	p, _ := newTestProvider(t)

	_, err := p.Get(context.Background(), "prices", "de")
	assert.ErrorIs(t, err, ErrUnknownLookup)
}

func TestGet_RedisDownStillAnswers(t *testing.T) {
	p, mr := newTestProvider(t)
	mr.Close()

	raw, err := p.Get(context.Background(), FAQ, "de")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Termin")
}

func TestRefreshAndClear(t *testing.T) {
	p, mr := newTestProvider(t)
	ctx := context.Background()

	mr.Set("praxis:content:services:de", "stale")
	require.NoError(t, p.Refresh(ctx, Services, "de"))
	got, err := mr.Get("praxis:content:services:de")
	require.NoError(t, err)
	assert.Contains(t, got, "Impfungen")
	assert.Greater(t, mr.TTL("praxis:content:services:de"), time.Duration(0))

	require.NoError(t, p.Refresh(ctx, FAQ, "en"))
	require.NoError(t, p.Clear(ctx))
	assert.False(t, mr.Exists("praxis:content:services:de"))
	assert.False(t, mr.Exists("praxis:content:faq:en"))
	assert.Len(t, p.Keys(), 10)
}
