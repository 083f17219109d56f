package ports

import (
	"context"

	"loopscan/domain/core"
	"loopscan/domain/echo"
	"loopscan/domain/run"
)

// MatchFilters narrows a match listing
type MatchFilters struct {
	Bin      *float64
	MinScore *float64
	Limit    int
}

// ResultRepository persists run reports for later inspection
type ResultRepository interface {
	// SaveReport stores a report, replacing any previous report with the same run id
	SaveReport(ctx context.Context, report *run.Report) error

	// GetReport loads a full report
	GetReport(ctx context.Context, runID core.RunID) (*run.Report, error)

	// ListRuns returns the most recent runs first
	ListRuns(ctx context.Context, limit int) ([]run.RunSummary, error)

	// ListMatches returns a run's matches in canonical order
	ListMatches(ctx context.Context, runID core.RunID, filters MatchFilters) ([]echo.EchoMatch, error)
}
