package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ForexSentinel/internal/collector"
	"ForexSentinel/internal/model"
	"ForexSentinel/internal/recorder"
)

func TestExponentialBackoff(t *testing.T) {
	p := ExponentialBackoff(3, time.Second, 30*time.Second)
	want := []time.Duration{1, 2, 4, 8, 16, 30, 30}
	for i, w := range want {
		if got := p.Delay(i); got != w*time.Second {
			t.Errorf("attempt %d: expected %v, got %v", i, w*time.Second, got)
		}
	}
	if got := p.Delay(64); got != 30*time.Second {
		t.Errorf("large attempt should cap, got %v", got)
	}
}

func TestRetryPolicy_Do(t *testing.T) {
	fail := errors.New("boom")

	calls := 0
	err := FixedDelay(2, 0).Do(context.Background(), func(context.Context, int) error {
		calls++
		return fail
	}, nil)
	if !errors.Is(err, fail) || calls != 3 {
		t.Errorf("expected 3 calls and the last error, got %d calls, err %v", calls, err)
	}

	calls = 0
	err = FixedDelay(2, 0).Do(context.Background(), func(context.Context, int) error {
		calls++
		if calls < 2 {
			return fail
		}
		return nil
	}, nil)
	if err != nil || calls != 2 {
		t.Errorf("expected success on second call, got %d calls, err %v", calls, err)
	}

	calls = 0
	_ = FixedDelay(5, 0).Do(context.Background(), func(context.Context, int) error {
		calls++
		return fail
	}, func() bool { return true })
	if calls != 1 {
		t.Errorf("stop should prevent retries, got %d calls", calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls = 0
	_ = FixedDelay(5, time.Hour).Do(ctx, func(context.Context, int) error {
		calls++
		return fail
	}, nil)
	if calls != 1 {
		t.Errorf("cancelled context should end retries, got %d calls", calls)
	}
}

type hookLog struct {
	mu      sync.Mutex
	starts  int
	resets  int
	results []string
	errs    []error
}

func (h *hookLog) hooks() TaskHooks[string] {
	return TaskHooks[string]{
		OnStart:   func() { h.mu.Lock(); h.starts++; h.mu.Unlock() },
		OnReset:   func() { h.mu.Lock(); h.resets++; h.mu.Unlock() },
		OnSuccess: func(r string) { h.mu.Lock(); h.results = append(h.results, r); h.mu.Unlock() },
		OnError:   func(err error) { h.mu.Lock(); h.errs = append(h.errs, err); h.mu.Unlock() },
	}
}

func identity(s string) string { return s }
func nonEmpty(s string) bool   { return s != "" }

func TestTask_SupersededResultIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	h := &hookLog{}
	task := NewTask(context.Background(), identity, nonEmpty, func(_ context.Context, d string) (string, error) {
		if d == "old" {
			<-release
		}
		return "result:" + d, nil
	}, FixedDelay(0, 0), h.hooks())

	require.True(t, task.Update("old"))
	require.True(t, task.Update("new"))
	close(release)
	task.Wait()

	assert.Equal(t, []string{"result:new"}, h.results)
	assert.Equal(t, 2, h.starts)
	assert.Empty(t, h.errs)
}

func TestTask_SupersededRunStopsRetrying(t *testing.T) {
	var oldCalls atomic.Int32
	started := make(chan struct{}, 1)
	h := &hookLog{}
	task := NewTask(context.Background(), identity, nonEmpty, func(_ context.Context, d string) (string, error) {
		if d == "old" {
			if oldCalls.Add(1) == 1 {
				started <- struct{}{}
			}
			return "", errors.New("fail")
		}
		return d, nil
	}, FixedDelay(5, 20*time.Millisecond), h.hooks())

	task.Update("old")
	<-started
	task.Update("new")
	task.Wait()

	assert.Less(t, oldCalls.Load(), int32(6), "superseded run should stop retrying")
	assert.Equal(t, []string{"new"}, h.results)
	assert.Empty(t, h.errs)
}

func TestTask_DisabledAndUnchanged(t *testing.T) {
	var runs atomic.Int32
	h := &hookLog{}
	task := NewTask(context.Background(), identity, nonEmpty, func(_ context.Context, d string) (string, error) {
		runs.Add(1)
		return d, nil
	}, FixedDelay(0, 0), h.hooks())

	assert.False(t, task.Update(""))
	assert.False(t, task.Rerun())
	assert.Equal(t, 1, h.resets)

	assert.True(t, task.Update("a"))
	assert.False(t, task.Update("a"), "same key should not rerun")
	assert.True(t, task.Rerun())
	task.Wait()
	assert.Equal(t, int32(2), runs.Load())
}

type fakeAnalyzer struct {
	mu    sync.Mutex
	calls int
	err   error
	// started, when set, makes Analyze signal and then block until ctx ends.
	started chan struct{}
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, news []model.NewsItem, settings model.Settings) (*model.Analysis, error) {
	f.mu.Lock()
	f.calls++
	started := f.started
	f.mu.Unlock()
	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &model.Analysis{
		Strengths:    []model.CurrencyStrength{{Currency: "USD", Strength: 0.5, Sentiment: model.SentimentBullish}},
		Correlations: []model.Correlation{{Pair1: "EUR/USD", Pair2: "GBP/USD", Strength: 0.8}},
		Model:        settings.Model,
		NewsCount:    len(news),
	}, nil
}

func (f *fakeAnalyzer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *fakeNotifier) SendWithRetry(_ context.Context, text string, _ int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, text)
	return nil
}

var models = []string{"gpt-4-turbo-preview", "gpt-4", "gpt-3.5-turbo"}

func newTestScheduler(t *testing.T, fetcher *collector.MockFetcher, an *fakeAnalyzer, tn Notifier) *Scheduler {
	t.Helper()
	return newTestSchedulerCtx(t, context.Background(), fetcher, an, tn)
}

func newTestSchedulerCtx(t *testing.T, ctx context.Context, fetcher *collector.MockFetcher, an *fakeAnalyzer, tn Notifier) *Scheduler {
	t.Helper()
	store := NewStore(model.Settings{Model: models[0]})
	s := NewScheduler(ctx, collector.NewCollector(fetcher), an, tn, recorder.NewNoopRecorder(), store, models)
	s.FetchPolicy = ExponentialBackoff(3, time.Millisecond, 4*time.Millisecond)
	s.SetAnalysisPolicy(FixedDelay(2, time.Millisecond))
	t.Cleanup(s.Stop)
	return s
}

var sampleNews = []model.NewsItem{
	{Title: "Fed holds", Description: "Powell hawkish", Link: "https://example.com/1", PubDate: "2025-10-14T08:00:00Z"},
	{Title: "ECB cuts", Description: "Euro falls", Link: "https://example.com/2", PubDate: "2025-10-14T09:00:00Z"},
}

func TestScheduler_FetchThenAnalyze(t *testing.T) {
	fetcher := &collector.MockFetcher{Items: sampleNews}
	an := &fakeAnalyzer{}
	tn := &fakeNotifier{}
	s := newTestScheduler(t, fetcher, an, tn)

	require.NoError(t, s.FetchNow())
	assert.Len(t, s.Store.News(), 2)
	assert.Equal(t, 0, an.count(), "no key, no analysis")
	assert.False(t, s.RetryAnalysis())

	require.NoError(t, s.UpdateSettings(model.Settings{APIKey: "sk-secret", Model: "gpt-4"}))
	s.analysis.Wait()
	require.NotNil(t, s.Store.Analysis())
	assert.Equal(t, "gpt-4", s.Store.Analysis().Model)
	assert.Equal(t, 1, an.count())

	// same content again does not re-trigger
	require.NoError(t, s.FetchNow())
	s.analysis.Wait()
	assert.Equal(t, 1, an.count())

	assert.True(t, s.RetryAnalysis())
	s.analysis.Wait()
	assert.Equal(t, 2, an.count())

	raw, err := json.Marshal(s.Store.Snapshot())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sk-secret")
	assert.Contains(t, string(raw), `"hasApiKey":true`)

	s.notifyWG.Wait()
	tn.mu.Lock()
	defer tn.mu.Unlock()
	for _, msg := range tn.sent {
		assert.NotContains(t, msg, "sk-secret")
	}
}

func TestScheduler_FetchRetriesThenFails(t *testing.T) {
	fetcher := &collector.MockFetcher{Err: errors.New("RSS feed error: server response timeout")}
	tn := &fakeNotifier{}
	s := newTestScheduler(t, fetcher, &fakeAnalyzer{}, tn)

	err := s.FetchNow()
	require.Error(t, err)
	assert.Equal(t, 4, fetcher.CallCount(), "one attempt plus three retries")

	snap := s.Store.Snapshot()
	assert.Equal(t, "RSS feed error: server response timeout", snap.NewsError)
	assert.Equal(t, snap.NewsError, snap.Error)
	assert.False(t, snap.NewsLoading)

	// repeated identical failure alerts once
	_ = s.FetchNow()
	s.notifyWG.Wait()
	tn.mu.Lock()
	assert.Len(t, tn.sent, 1)
	tn.mu.Unlock()

	// recovery
	fetcher.SetItems(sampleNews, nil)
	require.NoError(t, s.FetchNow())
	assert.Empty(t, s.Store.Snapshot().NewsError)
}

func TestScheduler_AnalysisError(t *testing.T) {
	an := &fakeAnalyzer{err: errors.New("analysis error: incomplete analysis data")}
	s := newTestScheduler(t, &collector.MockFetcher{Items: sampleNews}, an, nil)

	require.NoError(t, s.UpdateSettings(model.Settings{APIKey: "sk", Model: "gpt-4"}))
	require.NoError(t, s.FetchNow())
	s.analysis.Wait()

	assert.Equal(t, 3, an.count(), "one attempt plus two retries")
	snap := s.Store.Snapshot()
	assert.Nil(t, snap.Analysis)
	assert.Equal(t, "analysis error: incomplete analysis data", snap.AnalysisError)
}

func TestScheduler_ClearingKeyDropsAnalysis(t *testing.T) {
	s := newTestScheduler(t, &collector.MockFetcher{Items: sampleNews}, &fakeAnalyzer{}, nil)
	require.NoError(t, s.FetchNow())
	require.NoError(t, s.UpdateSettings(model.Settings{APIKey: "sk", Model: "gpt-4"}))
	s.analysis.Wait()
	require.NotNil(t, s.Store.Analysis())

	require.NoError(t, s.UpdateSettings(model.Settings{Model: "gpt-4"}))
	snap := s.Store.Snapshot()
	assert.Nil(t, snap.Analysis)
	assert.False(t, snap.AnalysisEnabled)
}

func TestScheduler_UpdateSettingsRejectsUnknownModel(t *testing.T) {
	s := newTestScheduler(t, &collector.MockFetcher{}, &fakeAnalyzer{}, nil)
	err := s.UpdateSettings(model.Settings{APIKey: "sk", Model: "gpt-99"})
	assert.ErrorIs(t, err, ErrUnknownModel)
	assert.Equal(t, models[0], s.Store.Settings().Model)
}

func TestScheduler_HandleCommand(t *testing.T) {
	s := newTestScheduler(t, &collector.MockFetcher{Items: sampleNews}, &fakeAnalyzer{}, nil)
	require.NoError(t, s.UpdateSettings(model.Settings{APIKey: "sk", Model: "gpt-4"}))

	assert.Contains(t, s.HandleCommand("/news"), "No news loaded yet")
	assert.Contains(t, s.HandleCommand("/analysis"), "disabled")

	require.NoError(t, s.FetchNow())
	s.analysis.Wait()
	assert.Contains(t, s.HandleCommand("/news"), "Fed holds")
	assert.Contains(t, s.HandleCommand("/analysis"), "Currency strength")

	assert.Contains(t, s.HandleCommand("/model gpt-3.5-turbo"), "Model set to gpt-3.5-turbo")
	assert.Equal(t, "sk", s.Store.Settings().APIKey, "switching model keeps the key")
	assert.Contains(t, s.HandleCommand("/model nope"), "unknown model")

	status := s.HandleCommand("/status")
	assert.Contains(t, status, "API key: set")
	assert.NotContains(t, status, "sk\n")

	assert.True(t, strings.HasPrefix(s.HandleCommand("/whatever"), "Available commands"))
}

func TestScheduler_RefreshNewsDeduplicates(t *testing.T) {
	s := newTestScheduler(t, &collector.MockFetcher{Items: sampleNews}, &fakeAnalyzer{}, nil)
	s.fetching.Store(true)
	assert.False(t, s.RefreshNews())
	assert.ErrorIs(t, s.FetchNow(), ErrFetchInProgress)
	s.fetching.Store(false)

	assert.True(t, s.RefreshNews())
	s.wg.Wait()
	assert.Len(t, s.Store.News(), 2)
}

func TestStore_SubscribersSeeEveryChange(t *testing.T) {
	store := NewStore(model.Settings{Model: "gpt-4"})
	var versions []uint64
	unsubscribe := store.Subscribe(func(s Snapshot) { versions = append(versions, s.Version) })

	store.SetNewsLoading(true)
	store.SetNews(sampleNews, time.Now())
	unsubscribe()
	store.SetNewsLoading(true)

	assert.Equal(t, []uint64{1, 2}, versions)
}

func TestStore_DeliversInVersionOrder(t *testing.T) {
	store := NewStore(model.Settings{Model: "gpt-4"})
	entered := make(chan struct{})
	release := make(chan struct{})

	var mu sync.Mutex
	var versions []uint64
	var last Snapshot
	store.Subscribe(func(s Snapshot) {
		if s.Version == 1 {
			close(entered)
			<-release
		}
		mu.Lock()
		versions = append(versions, s.Version)
		last = s
		mu.Unlock()
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); store.SetNewsLoading(true) }()
	<-entered
	go func() { defer wg.Done(); store.SetAnalysis(&model.Analysis{Model: "gpt-4"}) }()
	require.Eventually(t, func() bool { return store.Snapshot().Version == 2 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint64{1, 2}, versions)
	assert.Equal(t, uint64(2), last.Version)
	require.NotNil(t, last.Analysis)
	assert.False(t, last.AnalysisLoading)
}

func TestTask_CancelledContextIsNotAnError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	h := &hookLog{}
	task := NewTask(ctx, identity, nonEmpty, func(ctx context.Context, _ string) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	}, FixedDelay(3, time.Millisecond), h.hooks())

	require.True(t, task.Update("deps"))
	<-started
	cancel()
	task.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Empty(t, h.errs)
	assert.Empty(t, h.results)
}

func TestScheduler_StopDuringAnalysis(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	an := &fakeAnalyzer{started: make(chan struct{}, 1)}
	tn := &fakeNotifier{}
	s := newTestSchedulerCtx(t, ctx, &collector.MockFetcher{Items: sampleNews}, an, tn)

	require.NoError(t, s.FetchNow())
	require.NoError(t, s.UpdateSettings(model.Settings{APIKey: "sk", Model: "gpt-4"}))
	<-an.started

	cancel()
	s.Stop()

	assert.Equal(t, 1, an.count(), "no retries after shutdown")
	assert.Empty(t, s.Store.Snapshot().AnalysisError)
	tn.mu.Lock()
	defer tn.mu.Unlock()
	assert.Empty(t, tn.sent)
}
