package app

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"

	"sift/internal/config"
	"sift/internal/engine"
	errs "sift/internal/errors"
	"sift/internal/history"
	"sift/internal/lang"
	"sift/internal/observability"
	"sift/internal/rules"
)

// App wires the engine to its collaborators: the language registry, the rule
// registry, the metric sink, and the optional history store. One App serves
// many runs; each run builds fresh per-file engines.
type App struct {
	Config   *config.Config
	Registry map[string]lang.Spec

	loader  *lang.Loader
	ruleSet []rules.Rule
	store   *history.Store

	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
}

// Report is the aggregate outcome of one scan or measure run.
type Report struct {
	RunID        string
	Mode         string
	Findings     []rules.Finding
	FilesScanned int
	RuleErrors   int
	Duration     time.Duration
	Metrics      []history.MetricValue
}

func New(cfg *config.Config) (*App, error) {
	registry, err := lang.BuildRegistry(cfg.LanguageOverrides())
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeValidationError, "build language registry")
	}

	loader, err := lang.NewLoader(registry)
	if err != nil {
		return nil, err
	}

	ruleSet, err := rules.LoadAll(cfg.RuleFiles)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Registry: registry,
		loader:   loader,
		ruleSet:  ruleSet,
	}

	for _, pattern := range cfg.Exclude.Dirs {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeValidationError, "compile exclude dir pattern")
		}
		a.excludeDirs = append(a.excludeDirs, g)
	}
	for _, pattern := range cfg.Exclude.Files {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeValidationError, "compile exclude file pattern")
		}
		a.excludeFiles = append(a.excludeFiles, g)
	}

	if cfg.HistoryPath != "" {
		store, err := history.Open(cfg.HistoryPath)
		if err != nil {
			return nil, err
		}
		a.store = store
	}

	return a, nil
}

func (a *App) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

func (a *App) Rules() []rules.Rule {
	return a.ruleSet
}

// RunScan evaluates every rule against every matching file under the
// configured source paths.
func (a *App) RunScan(ctx context.Context) (Report, error) {
	return a.run(ctx, "scan")
}

// RunMeasure runs the same pipeline and additionally fires measurement
// callbacks for measure-context rules.
func (a *App) RunMeasure(ctx context.Context) (Report, error) {
	return a.run(ctx, "measure")
}

func (a *App) run(ctx context.Context, mode string) (Report, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.Run")
	defer span.End()

	files, err := a.collectFiles()
	if err != nil {
		return Report{}, err
	}
	return a.runFiles(ctx, mode, files)
}

// RunFiles evaluates an explicit file list (watch-mode rescans).
func (a *App) RunFiles(ctx context.Context, mode string, files []string) (Report, error) {
	return a.runFiles(ctx, mode, files)
}

func (a *App) runFiles(ctx context.Context, mode string, files []string) (Report, error) {
	start := time.Now()
	report := Report{
		RunID:    uuid.NewString(),
		Mode:     mode,
		Findings: make([]rules.Finding, 0),
	}

	sink := newCaptureSink()

	var failMu sync.Mutex
	onFail := func(rule string, err error) {
		failMu.Lock()
		report.RuleErrors++
		failMu.Unlock()
		slog.Warn("rule evaluation failed", "rule", rule, "run_id", report.RunID, "error", err)
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}

		language := lang.Detect(a.Registry, path)
		if language == "" {
			continue
		}
		grammar, err := a.loader.Grammar(language)
		if err != nil {
			slog.Warn("skipping file with unloaded grammar", "path", path, "language", language)
			continue
		}

		source, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("failed to read source file", "path", path, "error", err)
			continue
		}

		fileRules := rules.ForPath(a.ruleSet, path)
		manager, err := engine.NewManager(path, source, grammar, fileRules,
			engine.WithMetricSink(sink),
			engine.WithFailureObserver(onFail),
		)
		if err != nil {
			slog.Warn("failed to build engine for file", "path", path, "error", err)
			continue
		}

		var findings []rules.Finding
		if mode == "measure" {
			findings, err = manager.Measure(ctx)
		} else {
			findings, err = manager.Scan(ctx)
		}
		manager.Close()
		if err != nil {
			return Report{}, err
		}

		report.Findings = append(report.Findings, findings...)
		report.FilesScanned++
	}

	report.Duration = time.Since(start)
	report.Metrics = sink.values(report.RunID)
	observability.ScanDuration.WithLabelValues(mode).Observe(report.Duration.Seconds())

	if a.store != nil {
		if err := a.saveSnapshot(report); err != nil {
			slog.Warn("failed to save history snapshot", "run_id", report.RunID, "error", err)
		}
	}

	return report, nil
}

// DumpFile runs the query playground against a single file.
func (a *App) DumpFile(path, query string) ([]byte, error) {
	language := lang.Detect(a.Registry, path)
	if language == "" {
		return nil, errs.New(errs.CodeNotSupported, "cannot detect language").
			WithContext(errs.CtxPath, path)
	}
	grammar, err := a.loader.Grammar(language)
	if err != nil {
		return nil, err
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	manager, err := engine.NewManager(path, source, grammar, nil)
	if err != nil {
		return nil, err
	}
	defer manager.Close()

	return manager.Dump(query)
}

func (a *App) collectFiles() ([]string, error) {
	seen := make(map[string]bool)
	files := make([]string, 0)

	for _, root := range a.Config.SourcePaths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if a.shouldExcludeDir(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if a.shouldExcludeFile(path) {
				return nil
			}
			if lang.Detect(a.Registry, path) == "" {
				return nil
			}
			if !seen[path] {
				seen[path] = true
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}

func (a *App) shouldExcludeDir(path string) bool {
	base := filepath.Base(path)
	for _, g := range a.excludeDirs {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (a *App) shouldExcludeFile(path string) bool {
	base := filepath.Base(path)
	for _, g := range a.excludeFiles {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (a *App) saveSnapshot(report Report) error {
	snapshot := history.Snapshot{
		RunID:      report.RunID,
		ProjectKey: a.Config.ProjectKey,
		Mode:       report.Mode,
		Timestamp:  time.Now().UTC(),
		FileCount:  report.FilesScanned,
		DurationMS: report.Duration.Milliseconds(),
	}
	snapshot.FindingCount = len(report.Findings)
	for _, f := range report.Findings {
		switch f.Severity {
		case rules.SeverityViolation:
			snapshot.ViolationCount++
		case rules.SeverityWarning:
			snapshot.WarningCount++
		}
	}
	snapshot.RuleErrorCount = report.RuleErrors

	return a.store.SaveRun(snapshot, report.Metrics)
}

// Trends formats the stored run history for a project.
func (a *App) Trends(since time.Time) (string, error) {
	if a.store == nil {
		return "", errs.New(errs.CodeNotFound, "history store not configured")
	}
	snapshots, err := a.store.LoadRuns(a.Config.ProjectKey, since)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Runs: %d\n", len(snapshots)))
	for _, s := range snapshots {
		b.WriteString(fmt.Sprintf("%s  %-7s files=%d findings=%d violations=%d warnings=%d errors=%d %dms\n",
			s.Timestamp.Format(time.RFC3339), s.Mode, s.FileCount, s.FindingCount,
			s.ViolationCount, s.WarningCount, s.RuleErrorCount, s.DurationMS))
	}
	return b.String(), nil
}

// captureSink collects measured values for the history snapshot while also
// forwarding them to Prometheus.
type captureSink struct {
	mu     sync.Mutex
	prom   observability.PromSink
	record map[string]float64
	order  []string
}

func newCaptureSink() *captureSink {
	return &captureSink{record: make(map[string]float64)}
}

func (s *captureSink) Record(rule, metric string, value float64) {
	s.prom.Record(rule, metric, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	key := rule + "\x00" + metric
	if _, ok := s.record[key]; !ok {
		s.order = append(s.order, key)
	}
	s.record[key] = value
}

func (s *captureSink) values(runID string) []history.MetricValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]history.MetricValue, 0, len(s.order))
	for _, key := range s.order {
		rule, metric, _ := strings.Cut(key, "\x00")
		out = append(out, history.MetricValue{
			RunID:  runID,
			Rule:   rule,
			Metric: metric,
			Value:  s.record[key],
		})
	}
	return out
}
