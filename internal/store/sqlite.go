package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const defaultListLimit = 50

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	insertRunStmt        *sql.Stmt
	insertPredictionStmt *sql.Stmt
	getRunStmt           *sql.Stmt
	predictionsByRunStmt *sql.Stmt
}

var (
	sqliteOpen              = sql.Open
	sqlitePrepareStatements = (*SQLiteStore).prepareStatements
)

// NewSQLiteStore opens or creates a SQLite store at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: empty sqlite path")
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create sqlite dir: %w", err)
			}
		}
	}

	db, err := sqliteOpen("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	st := &SQLiteStore{db: db}
	if err := sqlitePrepareStatements(st); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func initSQLiteSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			model TEXT NOT NULL,
			provider TEXT NOT NULL,
			dataset TEXT NOT NULL,
			domain TEXT NOT NULL,
			mode TEXT NOT NULL,
			total INTEGER NOT NULL,
			correct INTEGER NOT NULL,
			unparsed INTEGER NOT NULL,
			errors INTEGER NOT NULL,
			accuracy REAL NOT NULL,
			input_tokens INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			cost_usd REAL NOT NULL,
			wall_ms INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS predictions (
			run_id TEXT NOT NULL,
			problem_id TEXT NOT NULL,
			domain TEXT NOT NULL,
			predicted TEXT NOT NULL,
			gold TEXT NOT NULL,
			parsed INTEGER NOT NULL,
			correct INTEGER NOT NULL,
			cached INTEGER NOT NULL,
			latency_ms INTEGER NOT NULL,
			input_tokens INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			error TEXT NOT NULL,
			raw TEXT NOT NULL,
			PRIMARY KEY(run_id, problem_id),
			FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_model ON runs(model, dataset)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_run_id ON predictions(run_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) prepareStatements() error {
	if s == nil || s.db == nil {
		return errors.New("store: nil sqlite store")
	}

	ctx := context.Background()
	type stmtSpec struct {
		dst    **sql.Stmt
		query  string
		errFmt string
	}

	specs := []stmtSpec{
		{
			dst: &s.insertRunStmt,
			query: `
				INSERT INTO runs (
					id, model, provider, dataset, domain, mode, total, correct, unparsed,
					errors, accuracy, input_tokens, output_tokens, cost_usd, wall_ms,
					created_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert run: %w",
		},
		{
			dst: &s.insertPredictionStmt,
			query: `
				INSERT INTO predictions (
					run_id, problem_id, domain, predicted, gold, parsed, correct, cached,
					latency_ms, input_tokens, output_tokens, error, raw
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert prediction: %w",
		},
		{
			dst: &s.getRunStmt,
			query: `
				SELECT id, model, provider, dataset, domain, mode, total, correct,
					unparsed, errors, accuracy, input_tokens, output_tokens, cost_usd,
					wall_ms, created_at
				FROM runs WHERE id = ?
			`,
			errFmt: "store: prepare get run: %w",
		},
		{
			dst: &s.predictionsByRunStmt,
			query: `
				SELECT run_id, problem_id, domain, predicted, gold, parsed, correct, cached,
					latency_ms, input_tokens, output_tokens, error, raw
				FROM predictions
				WHERE run_id = ?
				ORDER BY problem_id ASC
			`,
			errFmt: "store: prepare get predictions: %w",
		},
	}

	for _, spec := range specs {
		stmt, err := s.db.PrepareContext(ctx, spec.query)
		if err != nil {
			return fmt.Errorf(spec.errFmt, err)
		}
		*spec.dst = stmt
	}

	return nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	if s == nil {
		return nil
	}
	stmts := []*sql.Stmt{
		s.insertRunStmt,
		s.insertPredictionStmt,
		s.getRunStmt,
		s.predictionsByRunStmt,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveRun persists a run summary.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *RunRecord) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	if run == nil {
		return errors.New("store: nil run")
	}

	id := strings.TrimSpace(run.ID)
	if id == "" {
		return errors.New("store: empty run id")
	}
	if strings.TrimSpace(run.Model) == "" {
		return errors.New("store: empty model")
	}

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin run tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt := tx.StmtContext(ctx, s.insertRunStmt)
	defer stmt.Close()

	_, err = stmt.ExecContext(
		ctx,
		id,
		run.Model,
		run.Provider,
		run.Dataset,
		run.Domain,
		run.Mode,
		run.Total,
		run.Correct,
		run.Unparsed,
		run.Errors,
		run.Accuracy,
		run.InputTokens,
		run.OutputTokens,
		run.CostUSD,
		run.WallMs,
		createdAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit run: %w", err)
	}
	return nil
}

// SavePredictions persists the predictions of a run in one transaction.
func (s *SQLiteStore) SavePredictions(ctx context.Context, runID string, preds []PredictionRecord) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return errors.New("store: empty run id")
	}
	if len(preds) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin predictions tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt := tx.StmtContext(ctx, s.insertPredictionStmt)
	defer stmt.Close()

	for i := range preds {
		p := &preds[i]
		if strings.TrimSpace(p.ProblemID) == "" {
			return fmt.Errorf("store: prediction %d has empty problem id", i)
		}
		_, err := stmt.ExecContext(
			ctx,
			runID,
			p.ProblemID,
			p.Domain,
			p.Predicted,
			p.Gold,
			boolInt(p.Parsed),
			boolInt(p.Correct),
			boolInt(p.Cached),
			p.LatencyMs,
			p.InputTokens,
			p.OutputTokens,
			p.Error,
			p.Raw,
		)
		if err != nil {
			return fmt.Errorf("store: insert prediction %s: %w", p.ProblemID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit predictions: %w", err)
	}
	return nil
}

// GetRun loads a run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("store: empty run id")
	}

	row := s.getRunStmt.QueryRowContext(ctx, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs matching the filter, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var sb strings.Builder
	sb.WriteString(`SELECT id, model, provider, dataset, domain, mode, total, correct,
		unparsed, errors, accuracy, input_tokens, output_tokens, cost_usd, wall_ms,
		created_at
		FROM runs WHERE 1=1`)

	var args []any
	if m := strings.TrimSpace(filter.Model); m != "" {
		sb.WriteString(` AND model = ?`)
		args = append(args, m)
	}
	if d := strings.TrimSpace(filter.Dataset); d != "" {
		sb.WriteString(` AND dataset = ?`)
		args = append(args, d)
	}
	if d := strings.TrimSpace(filter.Domain); d != "" {
		sb.WriteString(` AND domain = ?`)
		args = append(args, d)
	}
	if m := strings.TrimSpace(filter.Mode); m != "" {
		sb.WriteString(` AND mode = ?`)
		args = append(args, m)
	}
	if !filter.Since.IsZero() {
		sb.WriteString(` AND created_at >= ?`)
		args = append(args, filter.Since.UTC().UnixMilli())
	}
	if !filter.Until.IsZero() {
		sb.WriteString(` AND created_at <= ?`)
		args = append(args, filter.Until.UTC().UnixMilli())
	}
	sb.WriteString(` ORDER BY created_at DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []*RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	return out, nil
}

// GetPredictions lists the predictions of a run ordered by problem id.
func (s *SQLiteStore) GetPredictions(ctx context.Context, runID string) ([]PredictionRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, errors.New("store: empty run id")
	}

	rows, err := s.predictionsByRunStmt.QueryContext(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("store: get predictions: %w", err)
	}
	defer rows.Close()

	var out []PredictionRecord
	for rows.Next() {
		var (
			p                       PredictionRecord
			parsed, correct, cached int
		)
		if err := rows.Scan(
			&p.RunID,
			&p.ProblemID,
			&p.Domain,
			&p.Predicted,
			&p.Gold,
			&parsed,
			&correct,
			&cached,
			&p.LatencyMs,
			&p.InputTokens,
			&p.OutputTokens,
			&p.Error,
			&p.Raw,
		); err != nil {
			return nil, fmt.Errorf("store: scan prediction: %w", err)
		}
		p.Parsed = parsed != 0
		p.Correct = correct != 0
		p.Cached = cached != 0
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan prediction rows: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var (
		run         RunRecord
		createdAtMS int64
	)
	if err := row.Scan(
		&run.ID,
		&run.Model,
		&run.Provider,
		&run.Dataset,
		&run.Domain,
		&run.Mode,
		&run.Total,
		&run.Correct,
		&run.Unparsed,
		&run.Errors,
		&run.Accuracy,
		&run.InputTokens,
		&run.OutputTokens,
		&run.CostUSD,
		&run.WallMs,
		&createdAtMS,
	); err != nil {
		return nil, err
	}
	run.CreatedAt = time.UnixMilli(createdAtMS).UTC()
	return &run, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
