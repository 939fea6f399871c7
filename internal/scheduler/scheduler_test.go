package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"praxis-website/internal/cleanup"
	"praxis-website/internal/config"
	"praxis-website/internal/warmer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWarmer struct {
	calls   int32
	cleared atomic.Bool
	block   chan struct{}
}

func (f *fakeWarmer) WarmAll(ctx context.Context, opts warmer.Options) (*warmer.Report, error) {
	atomic.AddInt32(&f.calls, 1)
	f.cleared.Store(opts.Clear)
	if f.block != nil {
		<-f.block
	}
	return &warmer.Report{PagesWarmed: 10}, nil
}

type fakeCleaner struct {
	got cleanup.CleanupConfig
	err error
}

func (f *fakeCleaner) Run(ctx context.Context, cfg cleanup.CleanupConfig) (*cleanup.CleanupResult, error) {
	f.got = cfg
	if f.err != nil {
		return nil, f.err
	}
	return &cleanup.CleanupResult{DryRun: cfg.DryRun}, nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	return cfg
}

func TestStart_RegistersEnabledJobs(t *testing.T) {
	s := NewScheduler(&fakeWarmer{}, &fakeCleaner{}, testConfig(), zap.NewNop())
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.True(t, s.IsRunning())
	assert.Len(t, s.cron.Entries(), 2)
}

func TestStart_NothingEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.Warmer.Enabled = false
	cfg.Cleanup.Enabled = false
	s := NewScheduler(&fakeWarmer{}, &fakeCleaner{}, cfg, zap.NewNop())

	require.NoError(t, s.Start())
	assert.False(t, s.IsRunning())
}

func TestStart_InvalidWarmSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Warmer.Schedule = "every day"
	s := NewScheduler(&fakeWarmer{}, nil, cfg, zap.NewNop())

	assert.Error(t, s.Start())
}

func TestRunWarmNow_SkipsWhileRunning(t *testing.T) {
	w := &fakeWarmer{block: make(chan struct{})}
	s := NewScheduler(w, nil, testConfig(), zap.NewNop())

	done := make(chan bool)
	go func() {
		_, ran := s.RunWarmNow(context.Background(), true)
		done <- ran
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&w.calls) == 1 }, time.Second, 5*time.Millisecond)

	_, ran := s.RunWarmNow(context.Background(), false)
	assert.False(t, ran)

	close(w.block)
	assert.True(t, <-done)
	assert.True(t, w.cleared.Load())
}

func TestRunCleanupNow(t *testing.T) {
	c := &fakeCleaner{}
	cfg := testConfig()
	cfg.Cleanup.RetentionDays = 30
	s := NewScheduler(nil, c, cfg, zap.NewNop())

	result, err := s.RunCleanupNow(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, 30, c.got.RetentionDays)

	c.err = errors.New("db down")
	_, err = s.RunCleanupNow(context.Background(), false)
	assert.Error(t, err)

	_, err = NewScheduler(nil, nil, cfg, zap.NewNop()).RunCleanupNow(context.Background(), false)
	assert.Error(t, err)
}

func TestParseDailyRunTime(t *testing.T) {
	s := NewScheduler(nil, nil, testConfig(), zap.NewNop())

	assert.Equal(t, "30 3 * * *", s.parseDailyRunTime("03:30"))
	assert.Equal(t, "0 23 * * *", s.parseDailyRunTime("23:00"))
	assert.Equal(t, "0 2 * * *", s.parseDailyRunTime("25:00"))
	assert.Equal(t, "0 2 * * *", s.parseDailyRunTime("nightly"))
}
