package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"sift/internal/watch"
)

// Watch rescans changed files until ctx is cancelled. Each change batch runs
// the scan pipeline over just the touched files.
func (a *App) Watch(ctx context.Context) error {
	onChange := func(paths []string) {
		existing := make([]string, 0, len(paths))
		for _, path := range paths {
			if _, err := os.Stat(path); err == nil {
				existing = append(existing, path)
			}
		}
		if len(existing) == 0 {
			return
		}

		report, err := a.RunFiles(ctx, "scan", existing)
		if err != nil {
			slog.Error("watch rescan failed", "error", err)
			return
		}
		slog.Info("rescan complete",
			"run_id", report.RunID,
			"files", report.FilesScanned,
			"findings", len(report.Findings),
		)
		if len(report.Findings) > 0 {
			fmt.Print(FormatSummary(report))
		}
	}

	watcher, err := watch.NewWatcher(
		a.Config.Watch.Debounce,
		a.Config.Watch.RescansPerSecond,
		a.Config.Exclude.Dirs,
		a.Config.Exclude.Files,
		onChange,
	)
	if err != nil {
		return err
	}
	defer watcher.Close()

	extensions := make([]string, 0)
	filenames := make([]string, 0)
	for _, spec := range a.Registry {
		if !spec.Enabled {
			continue
		}
		extensions = append(extensions, spec.Extensions...)
		filenames = append(filenames, spec.Filenames...)
	}
	watcher.SetFileFilters(extensions, filenames)

	if err := watcher.Watch(a.Config.SourcePaths); err != nil {
		return err
	}

	<-ctx.Done()
	return ctx.Err()
}
