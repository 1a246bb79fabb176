package analyzer

import (
	"errors"
	"fmt"
)

var (
	ErrMissingAPIKey      = errors.New("API key is required")
	ErrNoNews             = errors.New("no news available for analysis")
	ErrInvalidResponse    = errors.New("invalid response from model")
	ErrIncompleteAnalysis = errors.New("incomplete analysis data")
)

// AnalysisError wraps every failure returned by Analyze, including provider errors.
type AnalysisError struct {
	Err error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis error: %v", e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

func wrap(err error) error {
	if err == nil {
		return nil
	}
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return err
	}
	return &AnalysisError{Err: err}
}
