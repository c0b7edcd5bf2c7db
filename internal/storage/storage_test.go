package storage

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pable/go-rollcorr/internal/model"
)

func openMemDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRun(id string, started time.Time) model.Run {
	return model.Run{
		ID:          id,
		StartedAt:   started,
		Source:      "statcast_data.csv",
		MinLength:   260,
		MaxWindow:   250,
		RollingPath: "rolling_stats.csv",
	}
}

func TestRunLifecycle(t *testing.T) {
	db := openMemDB(t)
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	r := sampleRun("0b7c9a1e-0000-4000-8000-000000000001", start)
	if err := db.InsertRun(r); err != nil {
		t.Fatalf("InsertRun: %v", err)
	}

	got, err := db.GetRunByPrefix("0b7c")
	if err != nil {
		t.Fatalf("GetRunByPrefix: %v", err)
	}
	if got == nil {
		t.Fatal("expected run for prefix")
	}
	if !got.FinishedAt.IsZero() {
		t.Errorf("unfinished run should have zero FinishedAt, got %v", got.FinishedAt)
	}
	if !got.StartedAt.Equal(start) {
		t.Errorf("StartedAt: want %v, got %v", start, got.StartedAt)
	}

	r.FinishedAt = start.Add(90 * time.Second)
	r.PlayersSeen = 1200
	r.PlayersQualified = 410
	r.Observations = 123456789
	r.CorrelationPath = "correlation_table.csv"
	if err := db.FinishRun(r); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, _ = db.GetRunByPrefix(r.ID)
	if got.PlayersQualified != 410 || got.Observations != 123456789 {
		t.Errorf("counts not stored: %+v", got)
	}
	if got.CorrelationPath != "correlation_table.csv" {
		t.Errorf("CorrelationPath: %q", got.CorrelationPath)
	}
	if !got.FinishedAt.Equal(r.FinishedAt) {
		t.Errorf("FinishedAt: want %v, got %v", r.FinishedAt, got.FinishedAt)
	}
}

func TestFinishUnknownRun(t *testing.T) {
	db := openMemDB(t)
	if err := db.FinishRun(model.Run{ID: "missing", FinishedAt: time.Now()}); err == nil {
		t.Fatal("expected error finishing an unknown run")
	}
}

func TestGetRunByPrefixNoMatch(t *testing.T) {
	db := openMemDB(t)
	got, err := db.GetRunByPrefix("ffff")
	if err != nil {
		t.Fatalf("GetRunByPrefix: %v", err)
	}
	if got != nil {
		t.Error("expected nil for unknown prefix")
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	db := openMemDB(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	// Sub-second differences must still sort correctly.
	db.InsertRun(sampleRun("a", base))
	db.InsertRun(sampleRun("b", base.Add(500*time.Millisecond)))
	db.InsertRun(sampleRun("c", base.Add(time.Second)))

	runs, err := db.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].ID != "c" || runs[1].ID != "b" || runs[2].ID != "a" {
		t.Errorf("unexpected order: %s %s %s", runs[0].ID, runs[1].ID, runs[2].ID)
	}
}

func TestCorrelationsRoundTrip(t *testing.T) {
	db := openMemDB(t)
	db.InsertRun(sampleRun("r1", time.Now()))

	rows := []model.CorrelationRow{
		{Window: 2, AvgCorr: sql.NullFloat64{}, OBPCorr: sql.NullFloat64{Float64: 0.1, Valid: true}},
		{Window: 1, AvgCorr: sql.NullFloat64{Float64: 0.0125, Valid: true}, OBPCorr: sql.NullFloat64{Float64: -0.5, Valid: true}, SLGCorr: sql.NullFloat64{Float64: 0.03, Valid: true}},
	}
	if err := db.InsertCorrelations("r1", rows); err != nil {
		t.Fatalf("InsertCorrelations: %v", err)
	}

	got, err := db.GetCorrelations("r1")
	if err != nil {
		t.Fatalf("GetCorrelations: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].Window != 1 || got[1].Window != 2 {
		t.Errorf("rows not ordered by window: %d, %d", got[0].Window, got[1].Window)
	}
	if got[0].AvgCorr.Float64 != 0.0125 || got[0].OBPCorr.Float64 != -0.5 {
		t.Errorf("values mismatch: %+v", got[0])
	}
	if got[1].AvgCorr.Valid || got[1].SLGCorr.Valid {
		t.Errorf("undefined coefficients should round-trip as NULL: %+v", got[1])
	}
	if !got[1].OBPCorr.Valid {
		t.Error("obp_corr at W=2 should be defined")
	}
}

func TestCorrelationsRequireRun(t *testing.T) {
	db := openMemDB(t)
	err := db.InsertCorrelations("nope", []model.CorrelationRow{{Window: 1}})
	if err == nil {
		t.Fatal("expected foreign key violation for unknown run")
	}
}

func TestQueryRaw(t *testing.T) {
	db := openMemDB(t)
	db.InsertRun(sampleRun("r1", time.Now()))
	db.InsertCorrelations("r1", []model.CorrelationRow{
		{Window: 1, AvgCorr: sql.NullFloat64{Float64: 0.25, Valid: true}},
	})

	cols, rows, err := db.QueryRaw("SELECT window_size, avg_corr, obp_corr FROM correlations")
	if err != nil {
		t.Fatalf("QueryRaw: %v", err)
	}
	if len(cols) != 3 || cols[0] != "window_size" {
		t.Errorf("unexpected columns %v", cols)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	want := []string{"1", "0.25", "NULL"}
	for i := range want {
		if rows[0][i] != want[i] {
			t.Errorf("col %d: want %q, got %q", i, want[i], rows[0][i])
		}
	}

	if _, _, err := db.QueryRaw("SELECT * FROM no_such_table"); err == nil {
		t.Error("expected error for bad query")
	}
}

func TestTables(t *testing.T) {
	db := openMemDB(t)
	tables, err := db.Tables()
	if err != nil {
		t.Fatalf("Tables: %v", err)
	}
	if len(tables) != 2 || tables[0].Name != "correlations" || tables[1].Name != "runs" {
		t.Fatalf("unexpected tables %+v", tables)
	}
	want := []string{"run_id", "window_size", "avg_corr", "obp_corr", "slg_corr"}
	got := tables[0].Columns
	if len(got) != len(want) {
		t.Fatalf("correlations columns %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d: want %s, got %s", i, want[i], got[i])
		}
	}
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	existed, err := Remove(path)
	if err != nil || existed {
		t.Fatalf("Remove on missing db: existed=%v err=%v", existed, err)
	}

	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.InsertRun(sampleRun("r1", time.Now())); err != nil {
		t.Fatal(err)
	}
	db.Close()
	// A crashed writer can leave the sidecars behind.
	for _, side := range []string{path + "-wal", path + "-shm"} {
		if err := os.WriteFile(side, nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	existed, err = Remove(path)
	if err != nil || !existed {
		t.Fatalf("Remove: existed=%v err=%v", existed, err)
	}
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s still exists", filepath.Base(p))
		}
	}
}
