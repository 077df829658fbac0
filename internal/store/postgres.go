package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/showfunnel/internal/db"
	"github.com/sells-group/showfunnel/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 1
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'running',
	started_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at   TIMESTAMPTZ,
	snapshots     INTEGER NOT NULL DEFAULT 0,
	shows         INTEGER NOT NULL DEFAULT 0,
	ad_records    INTEGER NOT NULL DEFAULT 0,
	matched       INTEGER NOT NULL DEFAULT 0,
	missing_types JSONB NOT NULL DEFAULT '[]',
	error         TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS shows (
	run_id               TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	show_id              TEXT NOT NULL,
	position             INTEGER NOT NULL,
	city                 TEXT NOT NULL DEFAULT '',
	occupancy_rate       DOUBLE PRECISION NOT NULL DEFAULT 0,
	performance_category TEXT NOT NULL DEFAULT '',
	data                 JSONB NOT NULL,
	PRIMARY KEY (run_id, show_id)
);

CREATE TABLE IF NOT EXISTS funnels (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	show_id     TEXT NOT NULL,
	spend       DOUBLE PRECISION NOT NULL DEFAULT 0,
	impressions DOUBLE PRECISION NOT NULL DEFAULT 0,
	clicks      DOUBLE PRECISION NOT NULL DEFAULT 0,
	lp_views    DOUBLE PRECISION NOT NULL DEFAULT 0,
	add_to_cart DOUBLE PRECISION NOT NULL DEFAULT 0,
	purchases   DOUBLE PRECISION NOT NULL DEFAULT 0,
	records     INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, show_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
`

var showColumns = []string{"run_id", "show_id", "position", "city", "occupancy_rate", "performance_category", "data"}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, id, source string) (*model.Run, error) {
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, source, status, started_at) VALUES ($1, $2, $3, $4)`,
		id, source, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &model.Run{ID: id, Source: source, Status: model.RunStatusRunning, StartedAt: now}, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, run *model.Run) error {
	finished := time.Now().UTC()
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC()
	}
	missing, err := encodeMissing(run.MissingTypes)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, finished_at = $2, snapshots = $3, shows = $4, ad_records = $5,
		 matched = $6, missing_types = $7, error = $8 WHERE id = $9`,
		string(run.Status), finished, run.Snapshots, run.Shows, run.AdRecords,
		run.Matched, missing, run.Error, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", run.ID)
	}
	run.FinishedAt = &finished
	return nil
}

const postgresRunColumns = `id, source, status, started_at, finished_at, snapshots, shows, ad_records, matched, missing_types::text, error`

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+postgresRunColumns+` FROM runs WHERE id = $1`, runID)
	r, err := scanPostgresRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + postgresRunColumns + ` FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d`, argIdx)
	args = append(args, limitOf(filter))
	argIdx++
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// SaveShows replaces the run's shows and bulk-loads them with COPY.
func (s *PostgresStore) SaveShows(ctx context.Context, runID string, shows []model.ConsolidatedShow) error {
	rows := make([][]any, 0, len(shows))
	for i := range shows {
		sh := &shows[i]
		data, err := json.Marshal(sh)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal show %s", sh.ShowID)
		}
		rows = append(rows, []any{
			runID, sh.ShowID, i, sh.City, sh.OccupancyRate, string(sh.PerformanceCategory), data,
		})
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM shows WHERE run_id = $1`, runID); err != nil {
		return eris.Wrapf(err, "postgres: clear shows for run %s", runID)
	}
	_, err := db.CopyFrom(ctx, s.pool, "shows", showColumns, rows)
	return err
}

func (s *PostgresStore) LoadShows(ctx context.Context, runID string) ([]model.ConsolidatedShow, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM shows WHERE run_id = $1 ORDER BY position`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load shows for run %s", runID)
	}
	defer rows.Close()

	var shows []model.ConsolidatedShow
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan show")
		}
		var sh model.ConsolidatedShow
		if err := json.Unmarshal(data, &sh); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal show")
		}
		shows = append(shows, sh)
	}
	return shows, eris.Wrap(rows.Err(), "postgres: load shows iterate")
}

func (s *PostgresStore) SaveFunnels(ctx context.Context, runID string, funnels map[string]*model.FunnelSummary) error {
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "funnels",
		Columns:      funnelColumns,
		ConflictKeys: []string{"run_id", "show_id"},
	}, funnelRows(runID, funnels))
	return err
}

func (s *PostgresStore) LoadFunnels(ctx context.Context, runID string) (map[string]*model.FunnelSummary, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+funnelSelectList+` FROM funnels WHERE run_id = $1`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load funnels for run %s", runID)
	}
	defer rows.Close()

	out := make(map[string]*model.FunnelSummary)
	for rows.Next() {
		fs, err := scanFunnel(rows)
		if err != nil {
			return nil, err
		}
		out[fs.ShowID] = fs
	}
	return out, eris.Wrap(rows.Err(), "postgres: load funnels iterate")
}

func scanPostgresRun(row scannable) (*model.Run, error) {
	var (
		r        model.Run
		status   string
		finished *time.Time
		missing  string
	)
	if err := row.Scan(&r.ID, &r.Source, &status, &r.StartedAt, &finished,
		&r.Snapshots, &r.Shows, &r.AdRecords, &r.Matched, &missing, &r.Error); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	r.FinishedAt = finished
	var err error
	if r.MissingTypes, err = decodeMissing(missing); err != nil {
		return nil, err
	}
	return &r, nil
}
