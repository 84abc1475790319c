// Package store handles SQLite persistence of run history.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/hpctrend/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

const (
	dateLayout = "2006-01-02"
	// timestampLayout is fixed width so created_at sorts correctly as text.
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Store wraps SQLite access for run history.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			data_dir TEXT NOT NULL,
			snapshots INTEGER NOT NULL,
			output_path TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS fits (
			run_id TEXT NOT NULL,
			rank INTEGER NOT NULL,
			field TEXT NOT NULL,
			points INTEGER NOT NULL,
			first_date TEXT NOT NULL,
			last_date TEXT NOT NULL,
			slope REAL NOT NULL,
			intercept REAL NOT NULL,
			r_value REAL NOT NULL,
			p_value REAL NOT NULL,
			std_err REAL NOT NULL,
			proj_date TEXT NOT NULL,
			projection REAL NOT NULL,
			PRIMARY KEY (run_id, rank, field)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_fits_rank ON fits(rank);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertRun stores a completed run and the fit of every rank. It returns the new run id.
func (s *Store) InsertRun(ctx context.Context, run model.RunRecord, trends []model.RankTrend) (id string, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	id = uuid.NewString()
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, data_dir, snapshots, output_path) VALUES (?, ?, ?, ?, ?)`,
		id,
		createdAt.UTC().Format(timestampLayout),
		run.DataDir,
		run.Snapshots,
		run.OutputPath,
	); err != nil {
		return "", err
	}

	if len(trends) > 0 {
		stmt, perr := tx.PrepareContext(ctx,
			`INSERT INTO fits (run_id, rank, field, points, first_date, last_date, slope, intercept, r_value, p_value, std_err, proj_date, projection)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if perr != nil {
			err = perr
			return "", err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for _, t := range trends {
			if len(t.Dates) == 0 {
				continue
			}
			projDate, projection := t.Projection()
			if _, err = stmt.ExecContext(ctx,
				id,
				t.Rank,
				t.Field,
				len(t.Dates),
				t.Dates[0].Format(dateLayout),
				t.Dates[len(t.Dates)-1].Format(dateLayout),
				t.Fit.Slope,
				t.Fit.Intercept,
				t.Fit.RValue,
				t.Fit.PValue,
				t.Fit.StdErr,
				projDate.Format(dateLayout),
				projection,
			); err != nil {
				return "", err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// ListRuns returns the most recent runs, newest first. A limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	query := `SELECT id, created_at, data_dir, snapshots, output_path FROM runs ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var runs []model.RunRecord
	for rows.Next() {
		var run model.RunRecord
		var createdAt string
		if err := rows.Scan(&run.ID, &createdAt, &run.DataDir, &run.Snapshots, &run.OutputPath); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, err
		}
		run.CreatedAt = parsed
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// ListFits returns stored fits ordered oldest run first, then by rank.
// Filters: rank > 0 limits to one rank, last > 0 keeps the fits of the last N runs.
func (s *Store) ListFits(ctx context.Context, cfg model.HistoryConfig) ([]model.FitRecord, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Rank > 0 {
		clauses = append(clauses, "f.rank = ?")
		args = append(args, cfg.Rank)
	}
	if cfg.Last > 0 {
		clauses = append(clauses, "r.id IN (SELECT id FROM runs ORDER BY created_at DESC LIMIT ?)")
		args = append(args, cfg.Last)
	}
	query := fmt.Sprintf(`SELECT f.run_id, r.created_at, f.rank, f.field, f.points, f.first_date, f.last_date,
		f.slope, f.intercept, f.r_value, f.p_value, f.std_err, f.proj_date, f.projection
		FROM fits f
		JOIN runs r ON r.id = f.run_id
		WHERE %s
		ORDER BY r.created_at ASC, f.rank ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var fits []model.FitRecord
	for rows.Next() {
		var rec model.FitRecord
		var createdAt, firstDate, lastDate, projDate string
		if err := rows.Scan(&rec.RunID, &createdAt, &rec.Rank, &rec.Field, &rec.Points, &firstDate, &lastDate,
			&rec.Slope, &rec.Intercept, &rec.RValue, &rec.PValue, &rec.StdErr, &projDate, &rec.Projection); err != nil {
			return nil, err
		}
		if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, err
		}
		if rec.FirstDate, err = time.Parse(dateLayout, firstDate); err != nil {
			return nil, err
		}
		if rec.LastDate, err = time.Parse(dateLayout, lastDate); err != nil {
			return nil, err
		}
		if rec.ProjDate, err = time.Parse(dateLayout, projDate); err != nil {
			return nil, err
		}
		fits = append(fits, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return fits, nil
}
