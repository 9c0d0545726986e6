package app

import (
	"fmt"
	"sort"
	"strings"

	"sift/internal/rules"
)

// FormatSummary renders a plain-text run summary: counts per category and
// severity, then the findings in emission order.
func FormatSummary(report Report) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Run %s (%s)\n", report.RunID, report.Mode))
	b.WriteString(fmt.Sprintf("Files scanned: %d\n", report.FilesScanned))
	b.WriteString(fmt.Sprintf("Findings: %d\n", len(report.Findings)))
	if report.RuleErrors > 0 {
		b.WriteString(fmt.Sprintf("Rule errors: %d\n", report.RuleErrors))
	}

	grouped := rules.GroupByCategory(report.Findings)
	categories := make([]string, 0, len(grouped))
	for category := range grouped {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		b.WriteString(fmt.Sprintf("  %s: %d\n", category, len(grouped[category])))
	}

	if len(report.Metrics) > 0 {
		b.WriteString("Measurements:\n")
		for _, m := range report.Metrics {
			b.WriteString(fmt.Sprintf("  %s/%s = %g\n", m.Rule, m.Metric, m.Value))
		}
	}

	for _, f := range report.Findings {
		b.WriteString(fmt.Sprintf("%s:%d:%d [%s] %s: %s (%s)\n",
			f.Path, f.Line, f.Column, f.Severity, f.Rule, f.Message, f.Fragment))
	}

	return b.String()
}
