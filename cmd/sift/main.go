package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sift/internal/app"
	"sift/internal/config"
	"sift/internal/observability"
	"sift/internal/rules"
)

var (
	configPath = flag.String("config", "./sift.toml", "Path to config file")
	measure    = flag.Bool("measure", false, "Run a measurement pass instead of a plain scan")
	dumpQuery  = flag.String("dump", "", "Run the query playground against a single file (empty string uses the language default pattern; requires a file argument)")
	dumpMode   = flag.Bool("dump-default", false, "Run the query playground with the language default pattern (requires a file argument)")
	watchMode  = flag.Bool("watch", false, "Keep watching source paths and rescan on change")
	trends     = flag.Bool("trends", false, "Print stored run history and exit")
	jsonOut    = flag.Bool("json", false, "Print findings as JSON instead of a text summary")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "0.3.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("sift v%s\n", VERSION)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if *configPath == "./sift.toml" && os.IsNotExist(err) {
			cfg = config.Default()
		} else {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}

	if flag.NArg() > 0 && !*dumpMode && *dumpQuery == "" {
		cfg.SourcePaths = []string{flag.Arg(0)}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Endpoint != "" {
		shutdown, err := observability.SetupTracing(ctx, cfg.Tracing.Endpoint, VERSION)
		if err != nil {
			slog.Error("failed to set up tracing", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if err := observability.Serve(cfg.MetricsAddr); err != nil {
				slog.Error("metrics listener failed", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
	}

	application, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	if *dumpMode || *dumpQuery != "" {
		if flag.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "dump mode requires exactly one file argument")
			os.Exit(1)
		}
		out, err := application.DumpFile(flag.Arg(0), *dumpQuery)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		fmt.Println(string(out))
		os.Exit(0)
	}

	if *trends {
		out, err := application.Trends(time.Time{})
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		fmt.Print(out)
		os.Exit(0)
	}

	var report app.Report
	if *measure {
		report, err = application.RunMeasure(ctx)
	} else {
		report, err = application.RunScan(ctx)
	}
	if err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}

	if *jsonOut {
		printJSON(report.Findings)
	} else {
		fmt.Print(app.FormatSummary(report))
	}

	if *watchMode {
		if err := application.Watch(ctx); err != nil && ctx.Err() == nil {
			slog.Error("watch failed", "error", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if hasViolations(report.Findings) {
		os.Exit(2)
	}
}

func printJSON(findings []rules.Finding) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(findings); err != nil {
		slog.Error("failed to encode findings", "error", err)
	}
}

func hasViolations(findings []rules.Finding) bool {
	for _, f := range findings {
		if f.Severity == rules.SeverityViolation {
			return true
		}
	}
	return false
}
