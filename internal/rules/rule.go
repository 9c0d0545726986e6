package rules

import (
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// RunContext says which operations a rule participates in.
type RunContext uint8

const (
	RunScan RunContext = 1 << iota
	RunMeasure
)

func (c RunContext) Has(other RunContext) bool {
	return c&other != 0
}

// PreFilter narrows the query scope before execution. A nil result means the
// rule matches nothing for this file.
type PreFilter func(root *sitter.Node) *sitter.Node

// Check is the fixed validation capability a rule record binds to by name.
// ValidateNodes sees every captured node at once; ValidateNode is invoked
// per node in capture order. Either may return zero findings.
type Check interface {
	ValidateNodes(ctx *CheckContext, nodes []*sitter.Node) []Finding
	ValidateNode(ctx *CheckContext, node *sitter.Node) []Finding
}

// Measurer records metrics for captured nodes. It never produces findings
// and only runs during a measure pass for rules whose context includes
// measure.
type Measurer interface {
	MeasureNodes(ctx *CheckContext, nodes []*sitter.Node)
}

// MetricSink receives measured values. The engine passes it through to
// measurers; it owns no storage itself.
type MetricSink interface {
	Record(rule, metric string, value float64)
}

// Rule is the immutable unit of analysis configuration. Records are loaded
// and validated by the registry; the engine never creates or mutates them.
type Rule struct {
	Name     string
	Category string
	Message  string
	Contexts RunContext
	Query    string
	RegEx    string
	Priority int
	Scope    string

	PreFilter PreFilter
	Check     Check
	Measurer  Measurer

	pathGlobs []glob.Glob
	pathRaw   []string
}

// EffectiveContexts defaults to scan when the record declared nothing.
func (r *Rule) EffectiveContexts() RunContext {
	if r.Contexts == 0 {
		return RunScan
	}
	return r.Contexts
}

// AppliesTo reports whether the rule is in scope for a file path. Rules
// without path globs apply everywhere.
func (r *Rule) AppliesTo(path string) bool {
	if len(r.pathGlobs) == 0 {
		return true
	}
	normalized := strings.ReplaceAll(filepath.ToSlash(path), "//", "/")
	base := filepath.Base(normalized)
	for _, g := range r.pathGlobs {
		if g.Match(normalized) || g.Match(base) {
			return true
		}
	}
	return false
}

// SetPathGlobs installs compiled path scoping patterns. The registry calls
// this during load; tests may call it directly.
func (r *Rule) SetPathGlobs(patterns []string) error {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return err
		}
		compiled = append(compiled, g)
	}
	r.pathGlobs = compiled
	r.pathRaw = append([]string(nil), patterns...)
	return nil
}

// PathPatterns returns the raw path scoping patterns, for display.
func (r *Rule) PathPatterns() []string {
	return append([]string(nil), r.pathRaw...)
}

// ForPath filters a rule list down to the rules in scope for one file,
// preserving order.
func ForPath(list []Rule, path string) []Rule {
	out := make([]Rule, 0, len(list))
	for i := range list {
		if list[i].AppliesTo(path) {
			out = append(out, list[i])
		}
	}
	return out
}
