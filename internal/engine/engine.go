package engine

import (
	"context"
	"log/slog"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"

	errs "sift/internal/errors"
	"sift/internal/lang"
	"sift/internal/observability"
	"sift/internal/rules"
)

// Capture is a named node binding produced by a query match.
type Capture struct {
	Name string
	Node *sitter.Node
}

// FailureObserver is the side channel for per-rule failures. It must not
// panic; the engine keeps evaluating the remaining rules after calling it.
type FailureObserver func(rule string, err error)

// Manager owns exactly one parsed tree, one rule list, and one source
// buffer, all fixed at construction. Scan, Measure and Dump hold no state
// across calls; repeated invocations on the same instance return list-equal
// results.
type Manager struct {
	path    string
	source  []byte
	grammar *lang.Grammar
	tree    *sitter.Tree
	ruleSet []rules.Rule
	sink    rules.MetricSink
	onFail  FailureObserver
}

// Option configures optional collaborators on a Manager.
type Option func(*Manager)

// WithMetricSink routes MeasureNodes output to sink.
func WithMetricSink(sink rules.MetricSink) Option {
	return func(m *Manager) { m.sink = sink }
}

// WithFailureObserver replaces the default slog-based failure reporting.
func WithFailureObserver(observer FailureObserver) Option {
	return func(m *Manager) { m.onFail = observer }
}

// NewManager parses source and fixes the rule list for the instance's
// lifetime. A parse failure fails construction; no evaluation is possible
// without a tree.
func NewManager(path string, source []byte, grammar *lang.Grammar, ruleSet []rules.Rule, opts ...Option) (*Manager, error) {
	start := time.Now()
	tree, err := lang.Parse(grammar, source)
	if err != nil {
		return nil, err
	}
	observability.ParseDuration.WithLabelValues(grammar.Name).Observe(time.Since(start).Seconds())

	m := &Manager{
		path:    path,
		source:  source,
		grammar: grammar,
		tree:    tree,
		ruleSet: ruleSet,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.onFail == nil {
		m.onFail = func(rule string, err error) {
			slog.Warn("rule evaluation failed", "rule", rule, "path", path, "error", err)
		}
	}
	return m, nil
}

func (m *Manager) Close() {
	if m.tree != nil {
		m.tree.Close()
		m.tree = nil
	}
}

func (m *Manager) Path() string { return m.path }

// Scan evaluates every rule in list order and returns the ordered finding
// list. Rules that fail to compile or execute contribute zero findings and
// never abort the run.
func (m *Manager) Scan(ctx context.Context) ([]rules.Finding, error) {
	return m.run(ctx, rules.RunScan)
}

// Measure runs the same pipeline as Scan and additionally invokes the
// measurement callback of every rule whose context includes measure.
// Validators run regardless of which operation was requested; only the
// measurement step is gated.
func (m *Manager) Measure(ctx context.Context) ([]rules.Finding, error) {
	return m.run(ctx, rules.RunMeasure)
}

func (m *Manager) run(ctx context.Context, mode rules.RunContext) ([]rules.Finding, error) {
	findings := make([]rules.Finding, 0)
	for i := range m.ruleSet {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rule := &m.ruleSet[i]
		start := time.Now()
		ruleFindings, err := m.evaluateRule(rule, mode)
		observability.RuleEvalDuration.WithLabelValues(rule.Name).Observe(time.Since(start).Seconds())
		if err != nil {
			observability.RuleErrorsTotal.Inc()
			m.onFail(rule.Name, err)
			continue
		}
		findings = append(findings, ruleFindings...)
	}
	for _, f := range findings {
		observability.FindingsTotal.WithLabelValues(f.Category).Inc()
	}
	return findings, nil
}

func (m *Manager) evaluateRule(rule *rules.Rule, mode rules.RunContext) ([]rules.Finding, error) {
	contexts := rule.EffectiveContexts()
	severity := rules.ClampSeverity(rule.Priority)

	scope := m.tree.RootNode()
	if rule.PreFilter != nil {
		scope = rule.PreFilter(scope)
	}

	var captures []Capture
	if scope != nil {
		var err error
		captures, err = m.execute(Compose(rule.Query, rule.RegEx), scope)
		if err != nil {
			return nil, err
		}
	}

	nodes := make([]*sitter.Node, 0, len(captures))
	for _, c := range captures {
		nodes = append(nodes, c.Node)
	}

	cctx := &rules.CheckContext{
		Path:   m.path,
		Source: m.source,
		Rule:   rule,
		Sink:   m.sink,
	}

	if mode.Has(rules.RunMeasure) && contexts.Has(rules.RunMeasure) && rule.Measurer != nil {
		rule.Measurer.MeasureNodes(cctx, nodes)
	}

	findings := make([]rules.Finding, 0)
	if rule.Check != nil {
		findings = append(findings, rule.Check.ValidateNodes(cctx, nodes)...)
		for _, node := range nodes {
			findings = append(findings, rule.Check.ValidateNode(cctx, node)...)
		}
	}

	for i := range findings {
		findings[i].Rule = rule.Name
		findings[i].Category = rule.Category
		findings[i].Severity = severity
		if findings[i].Path == "" {
			findings[i].Path = m.path
		}
		if findings[i].Message == "" {
			findings[i].Message = rule.Message
		}
	}
	return findings, nil
}

// execute compiles and runs a composed pattern over scope, returning the
// captures in the order the query engine yields them (document order is the
// query engine's contract).
func (m *Manager) execute(pattern string, scope *sitter.Node) ([]Capture, error) {
	query, qerr := sitter.NewQuery(m.grammar.Language, pattern)
	if qerr != nil {
		return nil, errs.Wrap(qerr, errs.CodeQueryError, "compile query").
			WithContext(errs.CtxQuery, pattern)
	}
	defer query.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()

	names := query.CaptureNames()
	matches := cursor.Matches(query, scope, m.source)

	captures := make([]Capture, 0)
	for {
		match := matches.Next()
		if match == nil {
			break
		}
		for _, c := range match.Captures {
			node := c.Node
			captures = append(captures, Capture{
				Name: names[c.Index],
				Node: &node,
			})
		}
	}
	return captures, nil
}
