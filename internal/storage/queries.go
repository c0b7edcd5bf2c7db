package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/pable/go-rollcorr/internal/model"
)

// timeLayout has a fixed width so started_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = `id, started_at, finished_at, source, min_length, max_window,
	players_seen, players_qualified, observations, rolling_path, correlation_path`

// InsertRun records the start of a run. Counts and paths are filled in later
// by FinishRun.
func (db *DB) InsertRun(r model.Run) error {
	_, err := db.conn.Exec(`
		INSERT INTO runs(id, started_at, source, min_length, max_window, rolling_path, correlation_path)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, formatTime(r.StartedAt), r.Source, r.MinLength, r.MaxWindow,
		r.RollingPath, r.CorrelationPath,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	return nil
}

// FinishRun stores the outcome of a run.
func (db *DB) FinishRun(r model.Run) error {
	res, err := db.conn.Exec(`
		UPDATE runs SET finished_at = ?, players_seen = ?, players_qualified = ?,
			observations = ?, rolling_path = ?, correlation_path = ?
		WHERE id = ?`,
		formatTime(r.FinishedAt), r.PlayersSeen, r.PlayersQualified, r.Observations,
		r.RollingPath, r.CorrelationPath, r.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", r.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: no such run", r.ID)
	}
	return nil
}

// InsertCorrelations bulk-inserts a run's correlation table in a transaction.
// Undefined coefficients are stored as NULL.
func (db *DB) InsertCorrelations(runID string, rows []model.CorrelationRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO correlations(run_id, window_size, avg_corr, obp_corr, slg_corr)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(runID, r.Window, r.AvgCorr, r.OBPCorr, r.SLGCorr); err != nil {
			return fmt.Errorf("insert correlation W=%d: %w", r.Window, err)
		}
	}
	return tx.Commit()
}

// ListRuns returns all runs, newest first.
func (db *DB) ListRuns() ([]model.Run, error) {
	rows, err := db.conn.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRunByPrefix finds the newest run whose id starts with prefix.
// It returns nil, nil when nothing matches.
func (db *DB) GetRunByPrefix(prefix string) (*model.Run, error) {
	row := db.conn.QueryRow(`SELECT `+runColumns+` FROM runs
		WHERE id LIKE ? ORDER BY started_at DESC LIMIT 1`, prefix+"%")
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetCorrelations returns a run's correlation table ordered by window.
func (db *DB) GetCorrelations(runID string) ([]model.CorrelationRow, error) {
	rows, err := db.conn.Query(`
		SELECT window_size, avg_corr, obp_corr, slg_corr
		FROM correlations WHERE run_id = ? ORDER BY window_size`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CorrelationRow
	for rows.Next() {
		var r model.CorrelationRow
		if err := rows.Scan(&r.Window, &r.AvgCorr, &r.OBPCorr, &r.SLGCorr); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// QueryRaw runs an arbitrary query and returns column names and rows rendered
// as strings. NULL values are rendered as "NULL".
func (db *DB) QueryRaw(query string) ([]string, [][]string, error) {
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]string
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = formatValue(v)
		}
		out = append(out, row)
	}
	return cols, out, rows.Err()
}

// Table is a user table and its column names in declaration order.
type Table struct {
	Name    string
	Columns []string
}

// Tables lists the tables of the database, sorted by name.
func (db *DB) Tables() ([]Table, error) {
	rows, err := db.conn.Query(`SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	var tables []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.Name); err != nil {
			rows.Close()
			return nil, err
		}
		tables = append(tables, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range tables {
		cols, err := db.conn.Query(`SELECT name FROM pragma_table_info(?) ORDER BY cid`, tables[i].Name)
		if err != nil {
			return nil, fmt.Errorf("columns of %s: %w", tables[i].Name, err)
		}
		for cols.Next() {
			var c string
			if err := cols.Scan(&c); err != nil {
				cols.Close()
				return nil, err
			}
			tables[i].Columns = append(tables[i].Columns, c)
		}
		cols.Close()
		if err := cols.Err(); err != nil {
			return nil, err
		}
	}
	return tables, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (model.Run, error) {
	var r model.Run
	var started string
	var finished sql.NullString
	if err := s.Scan(&r.ID, &started, &finished, &r.Source, &r.MinLength, &r.MaxWindow,
		&r.PlayersSeen, &r.PlayersQualified, &r.Observations,
		&r.RollingPath, &r.CorrelationPath); err != nil {
		return r, err
	}
	var err error
	if r.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return r, fmt.Errorf("run %s started_at: %w", r.ID, err)
	}
	if finished.Valid {
		if r.FinishedAt, err = time.Parse(timeLayout, finished.String); err != nil {
			return r, fmt.Errorf("run %s finished_at: %w", r.ID, err)
		}
	}
	return r, nil
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
