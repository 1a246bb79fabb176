package recorder

import (
	"time"

	"ForexSentinel/internal/model"
)

// FetchRun is one feed fetch attempt.
type FetchRun struct {
	Timestamp time.Time
	Source    string
	ItemCount int
	Duration  time.Duration
	Error     string // empty on success
}

// AnalysisRun is one analyzer attempt and, on success, its normalized output.
type AnalysisRun struct {
	RunID     string
	Timestamp time.Time
	Model     string
	NewsCount int
	Status    string // "ok" or "error"
	Error     string
	Analysis  *model.Analysis
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Recorder appends run history for offline inspection. Nothing is read back.
type Recorder interface {
	RecordFetch(run *FetchRun) error
	RecordAnalysis(run *AnalysisRun) error
	Close() error
}
