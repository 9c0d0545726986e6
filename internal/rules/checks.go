package rules

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Params holds the per-rule parameters a check factory receives from the
// rule record.
type Params map[string]interface{}

func (p Params) Int(key string) (int, bool) {
	switch v := p[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func (p Params) String(key string) (string, bool) {
	v, ok := p[key].(string)
	return v, ok
}

// CheckFactory builds a check from rule-record parameters. Factories reject
// missing or mis-typed parameters at registry-load time.
type CheckFactory func(params Params) (Check, error)

var (
	checkMu        sync.RWMutex
	checkFactories = map[string]CheckFactory{}
)

// RegisterCheck makes a check implementation available to rule records under
// the given name. Builtins register at init; embedding applications may add
// their own before loading rules.
func RegisterCheck(name string, factory CheckFactory) {
	checkMu.Lock()
	defer checkMu.Unlock()
	checkFactories[name] = factory
}

func NewCheck(name string, params Params) (Check, error) {
	checkMu.RLock()
	factory, ok := checkFactories[name]
	checkMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown check %q (known: %v)", name, CheckNames())
	}
	return factory(params)
}

func CheckNames() []string {
	checkMu.RLock()
	defer checkMu.RUnlock()
	names := make([]string, 0, len(checkFactories))
	for name := range checkFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	RegisterCheck("short-name", newShortNameCheck)
	RegisterCheck("pattern-match", newPatternMatchCheck)
	RegisterCheck("forbidden-text", newForbiddenTextCheck)
	RegisterCheck("node-count", newNodeCountCheck)
}

// baseCheck gives single-method checks no-op defaults for the rest of the
// capability interface.
type baseCheck struct{}

func (baseCheck) ValidateNodes(*CheckContext, []*sitter.Node) []Finding { return nil }
func (baseCheck) ValidateNode(*CheckContext, *sitter.Node) []Finding    { return nil }

// shortNameCheck flags captured identifiers whose text length is at or below
// the configured maximum.
type shortNameCheck struct {
	baseCheck
	max int
}

func newShortNameCheck(params Params) (Check, error) {
	max, ok := params.Int("max")
	if !ok || max < 1 {
		return nil, fmt.Errorf("short-name: missing or invalid param %q", "max")
	}
	return &shortNameCheck{max: max}, nil
}

func (c *shortNameCheck) ValidateNode(ctx *CheckContext, node *sitter.Node) []Finding {
	text := ctx.Text(node)
	if len(text) == 0 || len(text) > c.max {
		return nil
	}
	return []Finding{ctx.Finding(node, "")}
}

// patternMatchCheck flags every captured node. It pairs with rules that do
// their filtering in the composed query (regex-augmented patterns).
type patternMatchCheck struct {
	baseCheck
}

func newPatternMatchCheck(Params) (Check, error) {
	return &patternMatchCheck{}, nil
}

func (c *patternMatchCheck) ValidateNode(ctx *CheckContext, node *sitter.Node) []Finding {
	return []Finding{ctx.Finding(node, "")}
}

// forbiddenTextCheck flags captured nodes whose text matches a validator-side
// regular expression. Unlike the composed-query constraint, the expression
// runs in Go's regexp engine.
type forbiddenTextCheck struct {
	baseCheck
	pattern *regexp.Regexp
}

func newForbiddenTextCheck(params Params) (Check, error) {
	raw, ok := params.String("pattern")
	if !ok || raw == "" {
		return nil, fmt.Errorf("forbidden-text: missing param %q", "pattern")
	}
	pattern, err := regexp.Compile(raw)
	if err != nil {
		return nil, fmt.Errorf("forbidden-text: invalid pattern: %w", err)
	}
	return &forbiddenTextCheck{pattern: pattern}, nil
}

func (c *forbiddenTextCheck) ValidateNode(ctx *CheckContext, node *sitter.Node) []Finding {
	if !c.pattern.MatchString(ctx.Text(node)) {
		return nil
	}
	return []Finding{ctx.Finding(node, "")}
}

// nodeCountCheck is the bulk validator: one finding when the capture count
// exceeds the limit. It doubles as a measurer, recording the capture count.
type nodeCountCheck struct {
	baseCheck
	max int
}

func newNodeCountCheck(params Params) (Check, error) {
	max, ok := params.Int("max")
	if !ok || max < 0 {
		return nil, fmt.Errorf("node-count: missing or invalid param %q", "max")
	}
	return &nodeCountCheck{max: max}, nil
}

func (c *nodeCountCheck) ValidateNodes(ctx *CheckContext, nodes []*sitter.Node) []Finding {
	if len(nodes) <= c.max {
		return nil
	}
	var anchor *sitter.Node
	if len(nodes) > 0 {
		anchor = nodes[0]
	}
	f := ctx.Finding(anchor, "")
	if f.Message == "" {
		f.Message = fmt.Sprintf("capture count %d exceeds limit %d", len(nodes), c.max)
	}
	return []Finding{f}
}

func (c *nodeCountCheck) MeasureNodes(ctx *CheckContext, nodes []*sitter.Node) {
	ctx.Record("nodes", float64(len(nodes)))
}
