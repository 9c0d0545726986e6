package rules

import (
	"testing"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"sift/internal/lang"
)

// identifierNodes parses Go source and collects identifier nodes in document
// order, so checks can be exercised against real tree-sitter nodes.
func identifierNodes(t *testing.T, source []byte) []*sitter.Node {
	t.Helper()
	loader, err := lang.NewLoader(lang.DefaultRegistry())
	if err != nil {
		t.Fatalf("load grammars: %v", err)
	}
	grammar, err := loader.Grammar("go")
	if err != nil {
		t.Fatalf("go grammar: %v", err)
	}
	tree, err := lang.Parse(grammar, source)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	t.Cleanup(tree.Close)

	var nodes []*sitter.Node
	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		if node == nil {
			return
		}
		if node.Kind() == "identifier" {
			nodes = append(nodes, node)
			return
		}
		for i := uint(0); i < node.ChildCount(); i++ {
			walk(node.Child(i))
		}
	}
	walk(tree.RootNode())
	return nodes
}

func checkContext(source []byte, rule *Rule) *CheckContext {
	return &CheckContext{Path: "main.go", Source: source, Rule: rule}
}

func TestShortNameCheck(t *testing.T) {
	source := []byte("package main\n\nvar ab = 1\nvar longName = 2\n")
	nodes := identifierNodes(t, source)
	if len(nodes) != 2 {
		t.Fatalf("expected 2 identifiers, got %d", len(nodes))
	}

	check, err := NewCheck("short-name", Params{"max": 3})
	if err != nil {
		t.Fatalf("build check: %v", err)
	}
	ctx := checkContext(source, &Rule{Name: "short", Message: "too short"})

	findings := check.ValidateNode(ctx, nodes[0])
	if len(findings) != 1 || findings[0].Fragment != "ab" {
		t.Fatalf("expected finding for ab, got %+v", findings)
	}
	if findings[0].Message != "too short" {
		t.Fatalf("expected rule message, got %q", findings[0].Message)
	}

	if findings := check.ValidateNode(ctx, nodes[1]); len(findings) != 0 {
		t.Fatalf("expected no finding for longName, got %+v", findings)
	}
}

func TestShortNameCheckRejectsBadParams(t *testing.T) {
	if _, err := NewCheck("short-name", nil); err == nil {
		t.Fatal("expected error for missing max param")
	}
	if _, err := NewCheck("short-name", Params{"max": 0}); err == nil {
		t.Fatal("expected error for non-positive max")
	}
}

func TestPatternMatchCheckFlagsEveryNode(t *testing.T) {
	source := []byte("package main\n\nvar a = 1\n")
	nodes := identifierNodes(t, source)

	check, err := NewCheck("pattern-match", nil)
	if err != nil {
		t.Fatalf("build check: %v", err)
	}
	ctx := checkContext(source, &Rule{Name: "flag-all"})

	for _, node := range nodes {
		if findings := check.ValidateNode(ctx, node); len(findings) != 1 {
			t.Fatalf("expected one finding per node, got %d", len(findings))
		}
	}
}

func TestForbiddenTextCheck(t *testing.T) {
	source := []byte("package main\n\nvar tempValue = 1\nvar result = 2\n")
	nodes := identifierNodes(t, source)
	if len(nodes) != 2 {
		t.Fatalf("expected 2 identifiers, got %d", len(nodes))
	}

	check, err := NewCheck("forbidden-text", Params{"pattern": "^temp"})
	if err != nil {
		t.Fatalf("build check: %v", err)
	}
	ctx := checkContext(source, &Rule{Name: "no-temp"})

	if findings := check.ValidateNode(ctx, nodes[0]); len(findings) != 1 {
		t.Fatalf("expected finding for tempValue, got %+v", findings)
	}
	if findings := check.ValidateNode(ctx, nodes[1]); len(findings) != 0 {
		t.Fatalf("expected no finding for result, got %+v", findings)
	}

	if _, err := NewCheck("forbidden-text", Params{"pattern": "["}); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

type sinkRecorder struct {
	rule, metric string
	value        float64
	calls        int
}

func (s *sinkRecorder) Record(rule, metric string, value float64) {
	s.rule, s.metric, s.value = rule, metric, value
	s.calls++
}

func TestNodeCountCheck(t *testing.T) {
	source := []byte("package main\n\nvar a = 1\nvar b = 2\nvar c = 3\n")
	nodes := identifierNodes(t, source)
	if len(nodes) != 3 {
		t.Fatalf("expected 3 identifiers, got %d", len(nodes))
	}

	check, err := NewCheck("node-count", Params{"max": 2})
	if err != nil {
		t.Fatalf("build check: %v", err)
	}

	sink := &sinkRecorder{}
	rule := &Rule{Name: "var-count"}
	ctx := &CheckContext{Path: "main.go", Source: source, Rule: rule, Sink: sink}

	findings := check.ValidateNodes(ctx, nodes)
	if len(findings) != 1 {
		t.Fatalf("expected one bulk finding, got %d", len(findings))
	}
	if findings := check.ValidateNodes(ctx, nodes[:2]); len(findings) != 0 {
		t.Fatalf("expected no finding at the limit, got %+v", findings)
	}

	measurer, ok := check.(Measurer)
	if !ok {
		t.Fatal("node-count must implement Measurer")
	}
	measurer.MeasureNodes(ctx, nodes)
	if sink.calls != 1 || sink.rule != "var-count" || sink.metric != "nodes" || sink.value != 3 {
		t.Fatalf("unexpected sink record: %+v", sink)
	}
}

func TestUnknownCheck(t *testing.T) {
	if _, err := NewCheck("does-not-exist", nil); err == nil {
		t.Fatal("expected error for unknown check")
	}
}
