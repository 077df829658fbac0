package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/showfunnel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'running',
	started_at    DATETIME NOT NULL,
	finished_at   DATETIME,
	snapshots     INTEGER NOT NULL DEFAULT 0,
	shows         INTEGER NOT NULL DEFAULT 0,
	ad_records    INTEGER NOT NULL DEFAULT 0,
	matched       INTEGER NOT NULL DEFAULT 0,
	missing_types TEXT NOT NULL DEFAULT '[]',
	error         TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS shows (
	run_id               TEXT NOT NULL REFERENCES runs(id),
	show_id              TEXT NOT NULL,
	position             INTEGER NOT NULL,
	city                 TEXT NOT NULL DEFAULT '',
	occupancy_rate       REAL NOT NULL DEFAULT 0,
	performance_category TEXT NOT NULL DEFAULT '',
	data                 TEXT NOT NULL,
	PRIMARY KEY (run_id, show_id)
);

CREATE TABLE IF NOT EXISTS funnels (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	show_id     TEXT NOT NULL,
	spend       REAL NOT NULL DEFAULT 0,
	impressions REAL NOT NULL DEFAULT 0,
	clicks      REAL NOT NULL DEFAULT 0,
	lp_views    REAL NOT NULL DEFAULT 0,
	add_to_cart REAL NOT NULL DEFAULT 0,
	purchases   REAL NOT NULL DEFAULT 0,
	records     INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, show_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, id, source string) (*model.Run, error) {
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, status, started_at) VALUES (?, ?, ?, ?)`,
		id, source, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &model.Run{ID: id, Source: source, Status: model.RunStatusRunning, StartedAt: now}, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *model.Run) error {
	finished := time.Now().UTC()
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC()
	}
	missing, err := encodeMissing(run.MissingTypes)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, snapshots = ?, shows = ?, ad_records = ?,
		 matched = ?, missing_types = ?, error = ? WHERE id = ?`,
		string(run.Status), finished, run.Snapshots, run.Shows, run.AdRecords,
		run.Matched, missing, run.Error, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", run.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", run.ID)
	}
	run.FinishedAt = &finished
	return nil
}

const sqliteRunColumns = `id, source, status, started_at, finished_at, snapshots, shows, ad_records, matched, missing_types, error`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteRunColumns+` FROM runs WHERE id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + sqliteRunColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limitOf(filter))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveShows(ctx context.Context, runID string, shows []model.ConsolidatedShow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save shows")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO shows (run_id, show_id, position, city, occupancy_rate, performance_category, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare save shows")
	}
	defer stmt.Close() //nolint:errcheck

	for i := range shows {
		sh := &shows[i]
		data, err := json.Marshal(sh)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal show %s", sh.ShowID)
		}
		if _, err := stmt.ExecContext(ctx, runID, sh.ShowID, i, sh.City, sh.OccupancyRate,
			string(sh.PerformanceCategory), string(data)); err != nil {
			return eris.Wrapf(err, "sqlite: insert show %s", sh.ShowID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save shows")
}

func (s *SQLiteStore) LoadShows(ctx context.Context, runID string) ([]model.ConsolidatedShow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM shows WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load shows for run %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var shows []model.ConsolidatedShow
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan show")
		}
		var sh model.ConsolidatedShow
		if err := json.Unmarshal([]byte(data), &sh); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal show")
		}
		shows = append(shows, sh)
	}
	return shows, eris.Wrap(rows.Err(), "sqlite: load shows iterate")
}

func (s *SQLiteStore) SaveFunnels(ctx context.Context, runID string, funnels map[string]*model.FunnelSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save funnels")
	}
	defer func() { _ = tx.Rollback() }()

	for _, row := range funnelRows(runID, funnels) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO funnels (`+funnelColumnList+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (run_id, show_id) DO UPDATE SET
			 spend = excluded.spend, impressions = excluded.impressions, clicks = excluded.clicks,
			 lp_views = excluded.lp_views, add_to_cart = excluded.add_to_cart,
			 purchases = excluded.purchases, records = excluded.records`,
			row...); err != nil {
			return eris.Wrapf(err, "sqlite: upsert funnel %v", row[1])
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save funnels")
}

func (s *SQLiteStore) LoadFunnels(ctx context.Context, runID string) (map[string]*model.FunnelSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+funnelSelectList+` FROM funnels WHERE run_id = ?`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load funnels for run %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	out := make(map[string]*model.FunnelSummary)
	for rows.Next() {
		fs, err := scanFunnel(rows)
		if err != nil {
			return nil, err
		}
		out[fs.ShowID] = fs
	}
	return out, eris.Wrap(rows.Err(), "sqlite: load funnels iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var (
		r        model.Run
		status   string
		finished sql.NullTime
		missing  string
	)
	err := row.Scan(&r.ID, &r.Source, &status, &r.StartedAt, &finished,
		&r.Snapshots, &r.Shows, &r.AdRecords, &r.Matched, &missing, &r.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.Status = model.RunStatus(status)
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	if r.MissingTypes, err = decodeMissing(missing); err != nil {
		return nil, err
	}
	return &r, nil
}
