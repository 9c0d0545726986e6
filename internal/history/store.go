package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// SaveRun persists one run snapshot with its measured metric values in a
// single transaction.
func (s *Store) SaveRun(snapshot Snapshot, metrics []MetricValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(snapshot.RunID) == "" {
		return fmt.Errorf("run id must not be empty")
	}
	if strings.TrimSpace(snapshot.ProjectKey) == "" {
		snapshot.ProjectKey = "default"
	}
	if snapshot.Timestamp.IsZero() {
		snapshot.Timestamp = time.Now().UTC()
	}
	if snapshot.SchemaVersion == 0 {
		snapshot.SchemaVersion = SchemaVersion
	}
	if snapshot.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported snapshot schema version %d", snapshot.SchemaVersion)
	}

	return s.withRetry("save run", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		_, err = tx.Exec(`
INSERT INTO runs (
  run_id, project_key, mode, schema_version, ts_utc, file_count, finding_count,
  violation_count, warning_count, rule_error_count, duration_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id) DO UPDATE SET
  project_key=excluded.project_key,
  mode=excluded.mode,
  schema_version=excluded.schema_version,
  ts_utc=excluded.ts_utc,
  file_count=excluded.file_count,
  finding_count=excluded.finding_count,
  violation_count=excluded.violation_count,
  warning_count=excluded.warning_count,
  rule_error_count=excluded.rule_error_count,
  duration_ms=excluded.duration_ms
`,
			snapshot.RunID,
			snapshot.ProjectKey,
			snapshot.Mode,
			snapshot.SchemaVersion,
			snapshot.Timestamp.UTC().Format(time.RFC3339Nano),
			snapshot.FileCount,
			snapshot.FindingCount,
			snapshot.ViolationCount,
			snapshot.WarningCount,
			snapshot.RuleErrorCount,
			snapshot.DurationMS,
		)
		if err != nil {
			return err
		}

		for _, metric := range metrics {
			_, err = tx.Exec(`
INSERT INTO metric_values (run_id, rule, metric, value)
VALUES (?, ?, ?, ?)
ON CONFLICT(run_id, rule, metric) DO UPDATE SET value=excluded.value
`,
				snapshot.RunID, metric.Rule, metric.Metric, metric.Value)
			if err != nil {
				return err
			}
		}

		return tx.Commit()
	})
}

// LoadRuns returns the snapshots for a project ordered by timestamp.
func (s *Store) LoadRuns(projectKey string, since time.Time) ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	projectKey = strings.TrimSpace(projectKey)
	if projectKey == "" {
		projectKey = "default"
	}

	query := `
SELECT
  run_id, project_key, mode, schema_version, ts_utc, file_count, finding_count,
  violation_count, warning_count, rule_error_count, duration_ms
FROM runs
WHERE project_key = ?`
	args := []any{projectKey}
	if !since.IsZero() {
		query += " AND ts_utc >= ?"
		args = append(args, since.UTC().Format(time.RFC3339Nano))
	}
	query += " ORDER BY ts_utc ASC, run_id ASC"

	var rows *sql.Rows
	err := s.withRetry("load runs", func() error {
		var qErr error
		rows, qErr = s.db.Query(query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := make([]Snapshot, 0)
	for rows.Next() {
		var (
			tsRaw    string
			snapshot Snapshot
		)
		if err := rows.Scan(
			&snapshot.RunID,
			&snapshot.ProjectKey,
			&snapshot.Mode,
			&snapshot.SchemaVersion,
			&tsRaw,
			&snapshot.FileCount,
			&snapshot.FindingCount,
			&snapshot.ViolationCount,
			&snapshot.WarningCount,
			&snapshot.RuleErrorCount,
			&snapshot.DurationMS,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}

		ts, err := time.Parse(time.RFC3339Nano, tsRaw)
		if err != nil {
			return nil, fmt.Errorf("parse run timestamp %q: %w", tsRaw, err)
		}
		snapshot.Timestamp = ts.UTC()

		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}

	return snapshots, nil
}

// LoadMetrics returns the measured values for one run, ordered by rule then
// metric name.
func (s *Store) LoadMetrics(runID string) ([]MetricValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	err := s.withRetry("load metrics", func() error {
		var qErr error
		rows, qErr = s.db.Query(
			`SELECT run_id, rule, metric, value FROM metric_values WHERE run_id = ?`, runID)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make([]MetricValue, 0)
	for rows.Next() {
		var value MetricValue
		if err := rows.Scan(&value.RunID, &value.Rule, &value.Metric, &value.Value); err != nil {
			return nil, fmt.Errorf("scan metric row: %w", err)
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metric rows: %w", err)
	}

	sort.Slice(values, func(i, j int) bool {
		if values[i].Rule == values[j].Rule {
			return values[i].Metric < values[j].Metric
		}
		return values[i].Rule < values[j].Rule
	})
	return values, nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
