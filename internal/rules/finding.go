package rules

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Finding is one emitted violation or measurement record, tied to a rule and
// a source location. Severity is the rule's clamped priority.
type Finding struct {
	Rule      string   `json:"rule"`
	Category  string   `json:"category"`
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`
	Path      string   `json:"path"`
	StartByte uint     `json:"start_byte"`
	EndByte   uint     `json:"end_byte"`
	Line      int      `json:"line"`
	Column    int      `json:"column"`
	Fragment  string   `json:"fragment"`
}

// CheckContext carries the per-file state checks need: the source buffer for
// fragment extraction, the rule being evaluated, and the metric sink.
type CheckContext struct {
	Path   string
	Source []byte
	Rule   *Rule
	Sink   MetricSink
}

func (c *CheckContext) Text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(c.Source[node.StartByte():node.EndByte()])
}

// Finding builds a finding anchored at node. Rule identity and severity are
// stamped by the evaluator; checks only supply location and message.
func (c *CheckContext) Finding(node *sitter.Node, message string) Finding {
	f := Finding{
		Message: message,
		Path:    c.Path,
	}
	if message == "" && c.Rule != nil {
		f.Message = c.Rule.Message
	}
	if node != nil {
		f.StartByte = node.StartByte()
		f.EndByte = node.EndByte()
		f.Line = int(node.StartPosition().Row) + 1
		f.Column = int(node.StartPosition().Column) + 1
		f.Fragment = c.Text(node)
	}
	return f
}

// Record forwards a measured value to the sink, if one is attached.
func (c *CheckContext) Record(metric string, value float64) {
	if c.Sink == nil || c.Rule == nil {
		return
	}
	c.Sink.Record(c.Rule.Name, metric, value)
}

// GroupByCategory is a pure derived view over an ordered finding list. The
// engine never applies it; reporting layers may.
func GroupByCategory(findings []Finding) map[string][]Finding {
	out := make(map[string][]Finding)
	for _, f := range findings {
		out[f.Category] = append(out[f.Category], f)
	}
	return out
}
