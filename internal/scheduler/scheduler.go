package scheduler

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"html"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"ForexSentinel/internal/collector"
	"ForexSentinel/internal/model"
	"ForexSentinel/internal/notifier"
	"ForexSentinel/internal/recorder"
)

var (
	ErrFetchInProgress = errors.New("a news fetch is already running")
	ErrUnknownModel    = errors.New("unknown model")
)

// Retry defaults: the feed is retried 3 times with 1s·2^n backoff capped at 30s,
// analysis 2 times with a fixed 1s delay.
var (
	DefaultFetchPolicy    = ExponentialBackoff(3, time.Second, 30*time.Second)
	DefaultAnalysisPolicy = FixedDelay(2, time.Second)
)

// Analyzer produces an Analysis from news and settings.
type Analyzer interface {
	Analyze(ctx context.Context, news []model.NewsItem, settings model.Settings) (*model.Analysis, error)
}

// Notifier delivers messages to a chat. Nil disables notifications.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

type analysisDeps struct {
	News     []model.NewsItem
	Settings model.Settings
}

// Scheduler manages the poll job and the reactive analysis task.
type Scheduler struct {
	Cron      *cron.Cron
	Collector *collector.Collector
	Analyzer  Analyzer
	Notifier  Notifier
	Recorder  recorder.Recorder
	Store     *Store
	Models    []string
	Ctx       context.Context

	FetchPolicy RetryPolicy
	analysis    *Task[analysisDeps, *model.Analysis]

	fetching atomic.Bool
	wg       sync.WaitGroup // background fetches
	notifyWG sync.WaitGroup
	depsMu   sync.Mutex // orders store writes with the task updates they feed

	alertMu   sync.Mutex
	lastAlert map[string]string
}

// NewScheduler creates a new Scheduler. tn may be nil.
func NewScheduler(ctx context.Context, col *collector.Collector, an Analyzer, tn Notifier,
	rec recorder.Recorder, store *Store, models []string) *Scheduler {
	s := &Scheduler{
		Cron:        cron.New(),
		Collector:   col,
		Analyzer:    an,
		Notifier:    tn,
		Recorder:    rec,
		Store:       store,
		Models:      models,
		Ctx:         ctx,
		FetchPolicy: DefaultFetchPolicy,
		lastAlert:   make(map[string]string),
	}
	s.analysis = NewTask(ctx, depsKey, depsEnabled, s.runAnalysis, DefaultAnalysisPolicy, TaskHooks[*model.Analysis]{
		OnStart:   store.StartAnalysis,
		OnSuccess: s.analysisSucceeded,
		OnError:   s.analysisFailed,
		OnReset:   store.ResetAnalysis,
	})
	return s
}

// SetAnalysisPolicy replaces the analysis retry policy. Call before Start.
func (s *Scheduler) SetAnalysisPolicy(p RetryPolicy) { s.analysis.Policy = p }

// RegisterAll registers the feed poll job.
func (s *Scheduler) RegisterAll(pollCron string) error {
	if _, err := s.Cron.AddFunc(pollCron, s.pollTask); err != nil {
		return fmt.Errorf("register poll task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	logrus.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs and analysis runs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.wg.Wait()
	s.analysis.Wait()
	s.notifyWG.Wait()
	logrus.Info("scheduler stopped")
}

func (s *Scheduler) pollTask() {
	if err := s.FetchNow(); errors.Is(err, ErrFetchInProgress) {
		logrus.Debug("poll skipped: fetch already running")
	}
}

// FetchNow runs one fetch cycle with retries and blocks until it finishes.
func (s *Scheduler) FetchNow() error {
	if !s.fetching.CompareAndSwap(false, true) {
		return ErrFetchInProgress
	}
	defer s.fetching.Store(false)
	return s.fetchCycle()
}

// RefreshNews starts a fetch cycle in the background. It reports false when one is already running.
func (s *Scheduler) RefreshNews() bool {
	if !s.fetching.CompareAndSwap(false, true) {
		logrus.Info("manual refresh dropped: fetch already running")
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.fetching.Store(false)
		_ = s.fetchCycle()
	}()
	return true
}

func (s *Scheduler) fetchCycle() error {
	log := logrus.WithField("stage", "fetch")
	s.Store.SetNewsLoading(true)

	var items []model.NewsItem
	err := s.FetchPolicy.Do(s.Ctx, func(ctx context.Context, attempt int) error {
		res, err := s.Collector.Collect(ctx)
		run := &recorder.FetchRun{Timestamp: res.Started, Source: res.Source, Duration: res.Duration}
		if err != nil {
			run.Error = err.Error()
			log.WithField("attempt", attempt+1).Warnf("fetch failed: %v", err)
		} else {
			run.ItemCount = len(res.Items)
			items = res.Items
		}
		if rerr := s.Recorder.RecordFetch(run); rerr != nil {
			log.Errorf("record fetch: %v", rerr)
		}
		return err
	}, nil)

	if err != nil && s.Ctx.Err() != nil {
		log.Info("fetch abandoned: shutting down")
		s.Store.SetNewsLoading(false)
		return err
	}
	if err != nil {
		log.Errorf("fetch gave up: %v", err)
		s.Store.SetNewsError(err)
		s.alert("News fetch", err.Error())
		return err
	}

	log.WithField("items", len(items)).Info("news updated")
	s.clearAlert("News fetch")
	s.depsMu.Lock()
	s.Store.SetNews(items, time.Now())
	s.analysis.Update(analysisDeps{News: items, Settings: s.Store.Settings()})
	s.depsMu.Unlock()
	return nil
}

// UpdateSettings replaces the live settings and re-evaluates the analysis task.
func (s *Scheduler) UpdateSettings(settings model.Settings) error {
	if !slices.Contains(s.Models, settings.Model) {
		return fmt.Errorf("%w: %q", ErrUnknownModel, settings.Model)
	}
	s.depsMu.Lock()
	s.Store.SetSettings(settings)
	s.analysis.Update(analysisDeps{News: s.Store.News(), Settings: settings})
	s.depsMu.Unlock()
	logrus.WithFields(logrus.Fields{"model": settings.Model, "hasApiKey": settings.APIKey != ""}).Info("settings updated")
	return nil
}

// SetModel switches the model and keeps the current key.
func (s *Scheduler) SetModel(id string) error {
	settings := s.Store.Settings()
	settings.Model = id
	return s.UpdateSettings(settings)
}

// RetryAnalysis re-runs analysis with the current dependencies. It reports false when analysis is disabled.
func (s *Scheduler) RetryAnalysis() bool {
	return s.analysis.Rerun()
}

func depsKey(d analysisDeps) string {
	h := fnv.New64a()
	for _, n := range d.News {
		fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00", n.Title, n.Description, n.Link, n.PubDate)
	}
	fmt.Fprintf(h, "%s\x00%s", d.Settings.APIKey, d.Settings.Model)
	return fmt.Sprintf("%d:%x", len(d.News), h.Sum64())
}

func depsEnabled(d analysisDeps) bool {
	return len(d.News) > 0 && d.Settings.APIKey != ""
}

func (s *Scheduler) runAnalysis(ctx context.Context, d analysisDeps) (*model.Analysis, error) {
	runID := uuid.NewString()
	log := logrus.WithFields(logrus.Fields{"stage": "analysis", "run": runID, "model": d.Settings.Model})
	log.WithField("news", len(d.News)).Info("analysis started")

	a, err := s.Analyzer.Analyze(ctx, d.News, d.Settings)

	run := &recorder.AnalysisRun{
		RunID:     runID,
		Timestamp: time.Now(),
		Model:     d.Settings.Model,
		NewsCount: len(d.News),
		Status:    recorder.StatusOK,
		Analysis:  a,
	}
	if err != nil {
		run.Status = recorder.StatusError
		run.Error = err.Error()
		log.Warnf("analysis failed: %v", err)
	}
	if rerr := s.Recorder.RecordAnalysis(run); rerr != nil {
		log.Errorf("record analysis: %v", rerr)
	}
	return a, err
}

func (s *Scheduler) analysisSucceeded(a *model.Analysis) {
	s.Store.SetAnalysis(a)
	s.clearAlert("Analysis")
	logrus.WithFields(logrus.Fields{
		"stage":        "analysis",
		"strengths":    len(a.Strengths),
		"correlations": len(a.Correlations),
	}).Info("analysis updated")
	s.notify(notifier.FormatAnalysisReport(a))
}

func (s *Scheduler) analysisFailed(err error) {
	logrus.WithField("stage", "analysis").Errorf("analysis gave up: %v", err)
	s.Store.SetAnalysisError(err)
	s.alert("Analysis", err.Error())
}

// alert notifies once per distinct error message per stage.
func (s *Scheduler) alert(stage, msg string) {
	s.alertMu.Lock()
	if s.lastAlert[stage] == msg {
		s.alertMu.Unlock()
		return
	}
	s.lastAlert[stage] = msg
	s.alertMu.Unlock()
	s.notify(notifier.FormatError(stage, msg))
}

func (s *Scheduler) clearAlert(stage string) {
	s.alertMu.Lock()
	delete(s.lastAlert, stage)
	s.alertMu.Unlock()
}

func (s *Scheduler) notify(text string) {
	if s.Notifier == nil || s.Ctx.Err() != nil {
		return
	}
	s.notifyWG.Add(1)
	go func() {
		defer s.notifyWG.Done()
		if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
			logrus.Errorf("send notification: %v", err)
		}
	}()
}

// Status summarizes the current state for chat replies.
func (s *Scheduler) Status() notifier.Status {
	snap := s.Store.Snapshot()
	return notifier.Status{
		NewsCount:     len(snap.News),
		NewsUpdatedAt: snap.NewsUpdatedAt,
		NewsLoading:   snap.NewsLoading,
		Model:         snap.Settings.Model,
		HasAPIKey:     snap.Settings.HasAPIKey,
		Analyzing:     snap.AnalysisLoading,
		LastAnalysis:  snap.Analysis,
		Error:         snap.Error,
	}
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.FormatHelp(s.Models)
	}
	switch fields[0] {
	case "/news":
		return notifier.FormatNews(s.Store.News(), 10)
	case "/analysis":
		if a := s.Store.Analysis(); a != nil {
			return notifier.FormatAnalysisReport(a)
		}
		if snap := s.Store.Snapshot(); snap.AnalysisLoading {
			return "⏳ Analysis is running."
		} else if !snap.AnalysisEnabled {
			return "Analysis is disabled until news is loaded and an API key is set on the dashboard."
		} else if snap.AnalysisError != "" {
			return notifier.FormatError("Analysis", snap.AnalysisError)
		}
		return "No analysis yet."
	case "/refresh":
		if s.RefreshNews() {
			return "🔄 Refreshing news..."
		}
		return "A news fetch is already running."
	case "/status":
		return notifier.FormatStatus(s.Status())
	case "/model":
		if len(fields) < 2 {
			return fmt.Sprintf("Current model: %s\nUsage: /model &lt;id&gt;\nModels: %s",
				html.EscapeString(s.Store.Settings().Model), html.EscapeString(strings.Join(s.Models, ", ")))
		}
		if err := s.SetModel(fields[1]); err != nil {
			return fmt.Sprintf("❌ %s. Models: %s", html.EscapeString(err.Error()), html.EscapeString(strings.Join(s.Models, ", ")))
		}
		return fmt.Sprintf("✅ Model set to %s", html.EscapeString(fields[1]))
	default:
		return notifier.FormatHelp(s.Models)
	}
}
