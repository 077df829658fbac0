// Package store persists pipeline runs together with the consolidated shows
// and funnel summaries they produced.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/showfunnel/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

const defaultListLimit = 100

// Store defines the persistence interface for pipeline runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, id, source string) (*model.Run, error)
	FinishRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Results
	SaveShows(ctx context.Context, runID string, shows []model.ConsolidatedShow) error
	LoadShows(ctx context.Context, runID string) ([]model.ConsolidatedShow, error)
	SaveFunnels(ctx context.Context, runID string, funnels map[string]*model.FunnelSummary) error
	LoadFunnels(ctx context.Context, runID string) (map[string]*model.FunnelSummary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a store for driver ("sqlite" or "postgres") and migrates it.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case "sqlite":
		if dsn == "" {
			dsn = "showfunnel.db"
		}
		s, err = NewSQLite(dsn)
	case "postgres":
		s, err = NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func limitOf(f RunFilter) int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

func encodeMissing(missing []string) (string, error) {
	if len(missing) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(missing)
	return string(b), eris.Wrap(err, "store: marshal missing types")
}

func decodeMissing(raw string) ([]string, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal missing types")
	}
	return out, nil
}
