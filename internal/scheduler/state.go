package scheduler

import (
	"sync"
	"time"

	"ForexSentinel/internal/model"
)

// PublicSettings is the client-safe view of Settings. The key itself never leaves the process.
type PublicSettings struct {
	Model     string `json:"model"`
	HasAPIKey bool   `json:"hasApiKey"`
}

// Snapshot is a consistent copy of the dashboard state.
type Snapshot struct {
	Version uint64 `json:"version"`

	News          []model.NewsItem `json:"news"`
	NewsLoading   bool             `json:"newsLoading"`
	NewsError     string           `json:"newsError,omitempty"`
	NewsUpdatedAt *time.Time       `json:"newsUpdatedAt,omitempty"`

	Analysis        *model.Analysis `json:"analysis"`
	AnalysisLoading bool            `json:"analysisLoading"`
	AnalysisError   string          `json:"analysisError,omitempty"`
	AnalysisEnabled bool            `json:"analysisEnabled"`

	// Error is the most recent error from either stage.
	Error string `json:"error,omitempty"`

	Settings PublicSettings `json:"settings"`
}

// Store holds the latest news and analysis results plus the live settings.
type Store struct {
	mu       sync.RWMutex
	version  uint64
	settings model.Settings

	news          []model.NewsItem
	newsLoading   bool
	newsErr       string
	newsErrAt     time.Time
	newsUpdatedAt time.Time

	analysis        *model.Analysis
	analysisLoading bool
	analysisErr     string
	analysisErrAt   time.Time

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Snapshot)

	// deliverMu serializes dispatch; delivered is the newest version handed out.
	deliverMu sync.Mutex
	delivered uint64
}

func NewStore(settings model.Settings) *Store {
	return &Store{
		settings: settings,
		news:     []model.NewsItem{},
		subs:     make(map[int]func(Snapshot)),
	}
}

// Subscribe registers fn to receive a Snapshot after every change.
// The returned func removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version:         s.version,
		News:            append([]model.NewsItem(nil), s.news...),
		NewsLoading:     s.newsLoading,
		NewsError:       s.newsErr,
		Analysis:        s.analysis,
		AnalysisLoading: s.analysisLoading,
		AnalysisError:   s.analysisErr,
		AnalysisEnabled: len(s.news) > 0 && s.settings.APIKey != "",
		Settings:        PublicSettings{Model: s.settings.Model, HasAPIKey: s.settings.APIKey != ""},
	}
	if snap.News == nil {
		snap.News = []model.NewsItem{}
	}
	if !s.newsUpdatedAt.IsZero() {
		t := s.newsUpdatedAt
		snap.NewsUpdatedAt = &t
	}
	switch {
	case s.newsErr != "" && s.analysisErr != "":
		snap.Error = s.newsErr
		if s.analysisErrAt.After(s.newsErrAt) {
			snap.Error = s.analysisErr
		}
	case s.newsErr != "":
		snap.Error = s.newsErr
	default:
		snap.Error = s.analysisErr
	}
	return snap
}

// update applies fn under the write lock and then notifies subscribers.
// Subscribers see versions in increasing order; a snapshot that lost the race
// to a newer one is never delivered.
func (s *Store) update(fn func()) {
	s.mu.Lock()
	fn()
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if snap.Version <= s.delivered {
		return
	}
	s.delivered = snap.Version

	s.subMu.Lock()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, f := range s.subs {
		subs = append(subs, f)
	}
	s.subMu.Unlock()
	for _, f := range subs {
		f(snap)
	}
}

func (s *Store) Settings() model.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *Store) News() []model.NewsItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.NewsItem(nil), s.news...)
}

func (s *Store) Analysis() *model.Analysis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.analysis
}

func (s *Store) SetSettings(settings model.Settings) {
	s.update(func() { s.settings = settings })
}

func (s *Store) SetNewsLoading(loading bool) {
	s.update(func() { s.newsLoading = loading })
}

// SetNews replaces the list wholesale and clears the fetch error.
func (s *Store) SetNews(items []model.NewsItem, at time.Time) {
	s.update(func() {
		s.news = append([]model.NewsItem{}, items...)
		s.newsLoading = false
		s.newsErr = ""
		s.newsUpdatedAt = at
	})
}

// SetNewsError keeps the previous items so the dashboard still has something to show.
func (s *Store) SetNewsError(err error) {
	s.update(func() {
		s.newsLoading = false
		s.newsErr = err.Error()
		s.newsErrAt = time.Now()
	})
}

// StartAnalysis drops the stale result and marks a run as pending.
func (s *Store) StartAnalysis() {
	s.update(func() {
		s.analysis = nil
		s.analysisLoading = true
		s.analysisErr = ""
	})
}

func (s *Store) SetAnalysis(a *model.Analysis) {
	s.update(func() {
		s.analysis = a
		s.analysisLoading = false
		s.analysisErr = ""
	})
}

func (s *Store) SetAnalysisError(err error) {
	s.update(func() {
		s.analysisLoading = false
		s.analysisErr = err.Error()
		s.analysisErrAt = time.Now()
	})
}

// ResetAnalysis clears everything analysis-related, used when analysis becomes disabled.
func (s *Store) ResetAnalysis() {
	s.update(func() {
		s.analysis = nil
		s.analysisLoading = false
		s.analysisErr = ""
	})
}
