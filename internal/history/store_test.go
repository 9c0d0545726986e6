package history

import (
	"path/filepath"
	"testing"
	"time"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveAndLoadRuns(t *testing.T) {
	store := openStore(t)

	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	snapshots := []Snapshot{
		{RunID: "run-1", ProjectKey: "proj", Mode: "scan", Timestamp: base, FileCount: 4, FindingCount: 7, ViolationCount: 2, WarningCount: 3, DurationMS: 120},
		{RunID: "run-2", ProjectKey: "proj", Mode: "measure", Timestamp: base.Add(time.Minute), FileCount: 4, FindingCount: 5, RuleErrorCount: 1, DurationMS: 90},
		{RunID: "run-other", ProjectKey: "other", Mode: "scan", Timestamp: base.Add(2 * time.Minute)},
	}
	for _, snapshot := range snapshots {
		if err := store.SaveRun(snapshot, nil); err != nil {
			t.Fatalf("save %s: %v", snapshot.RunID, err)
		}
	}

	loaded, err := store.LoadRuns("proj", time.Time{})
	if err != nil {
		t.Fatalf("load runs: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 runs for proj, got %d", len(loaded))
	}
	if loaded[0].RunID != "run-1" || loaded[1].RunID != "run-2" {
		t.Fatalf("runs not ordered by timestamp: %s, %s", loaded[0].RunID, loaded[1].RunID)
	}
	if loaded[0].FindingCount != 7 || loaded[0].ViolationCount != 2 || loaded[0].WarningCount != 3 {
		t.Fatalf("counts not round-tripped: %+v", loaded[0])
	}
	if loaded[1].RuleErrorCount != 1 || loaded[1].Mode != "measure" {
		t.Fatalf("measure run not round-tripped: %+v", loaded[1])
	}
	if !loaded[0].Timestamp.Equal(base) {
		t.Fatalf("timestamp drifted: %v", loaded[0].Timestamp)
	}

	since, err := store.LoadRuns("proj", base.Add(30*time.Second))
	if err != nil {
		t.Fatalf("load runs since: %v", err)
	}
	if len(since) != 1 || since[0].RunID != "run-2" {
		t.Fatalf("since filter broken: %+v", since)
	}
}

func TestSaveRunUpsertsByRunID(t *testing.T) {
	store := openStore(t)

	snapshot := Snapshot{RunID: "run-1", ProjectKey: "proj", Mode: "scan", FindingCount: 1}
	if err := store.SaveRun(snapshot, nil); err != nil {
		t.Fatal(err)
	}
	snapshot.FindingCount = 9
	if err := store.SaveRun(snapshot, nil); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.LoadRuns("proj", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 || loaded[0].FindingCount != 9 {
		t.Fatalf("expected single upserted run, got %+v", loaded)
	}
}

func TestSaveRunPersistsMetrics(t *testing.T) {
	store := openStore(t)

	metrics := []MetricValue{
		{Rule: "var-count", Metric: "nodes", Value: 12},
		{Rule: "fn-count", Metric: "nodes", Value: 3},
	}
	if err := store.SaveRun(Snapshot{RunID: "run-1", ProjectKey: "proj", Mode: "measure"}, metrics); err != nil {
		t.Fatalf("save run: %v", err)
	}

	loaded, err := store.LoadMetrics("run-1")
	if err != nil {
		t.Fatalf("load metrics: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 metric values, got %d", len(loaded))
	}
	// Ordered by rule then metric.
	if loaded[0].Rule != "fn-count" || loaded[1].Rule != "var-count" {
		t.Fatalf("metric order broken: %+v", loaded)
	}
	if loaded[0].RunID != "run-1" || loaded[1].Value != 12 {
		t.Fatalf("metric values not round-tripped: %+v", loaded)
	}
}

func TestSaveRunRejectsEmptyRunID(t *testing.T) {
	store := openStore(t)
	if err := store.SaveRun(Snapshot{ProjectKey: "proj"}, nil); err == nil {
		t.Fatal("expected error for empty run id")
	}
}

func TestSaveRunDefaultsProjectKey(t *testing.T) {
	store := openStore(t)
	if err := store.SaveRun(Snapshot{RunID: "run-1"}, nil); err != nil {
		t.Fatal(err)
	}
	loaded, err := store.LoadRuns("", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 || loaded[0].ProjectKey != "default" {
		t.Fatalf("expected default project key, got %+v", loaded)
	}
}

func TestOpenRejectsDirectory(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Fatal("expected error when history path is a directory")
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
