package history

import (
	"database/sql"
	"time"
)

const SchemaVersion = 1

// Snapshot is one aggregate row per scan or measure run. Findings themselves
// are never persisted; only counts and measured metric values are.
type Snapshot struct {
	RunID          string
	ProjectKey     string
	Mode           string
	SchemaVersion  int
	Timestamp      time.Time
	FileCount      int
	FindingCount   int
	ViolationCount int
	WarningCount   int
	RuleErrorCount int
	DurationMS     int64
}

// MetricValue is one measured value recorded during a run, keyed by rule and
// metric name.
type MetricValue struct {
	RunID  string
	Rule   string
	Metric string
	Value  float64
}

func EnsureSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
  run_id TEXT NOT NULL,
  project_key TEXT NOT NULL,
  mode TEXT NOT NULL,
  schema_version INTEGER NOT NULL,
  ts_utc TEXT NOT NULL,
  file_count INTEGER NOT NULL,
  finding_count INTEGER NOT NULL,
  violation_count INTEGER NOT NULL,
  warning_count INTEGER NOT NULL,
  rule_error_count INTEGER NOT NULL,
  duration_ms INTEGER NOT NULL,
  PRIMARY KEY (run_id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_project_ts ON runs (project_key, ts_utc)`,
		`CREATE TABLE IF NOT EXISTS metric_values (
  run_id TEXT NOT NULL,
  rule TEXT NOT NULL,
  metric TEXT NOT NULL,
  value REAL NOT NULL,
  PRIMARY KEY (run_id, rule, metric),
  FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
)`,
	}

	for _, statement := range statements {
		if _, err := db.Exec(statement); err != nil {
			return err
		}
	}
	return nil
}
