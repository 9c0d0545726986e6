package lang

import (
	"testing"

	errs "sift/internal/errors"
)

func TestLoaderCompilesEnabledGrammars(t *testing.T) {
	loader, err := NewLoader(DefaultRegistry())
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}

	grammar, err := loader.Grammar("go")
	if err != nil {
		t.Fatalf("go grammar: %v", err)
	}
	if grammar.Language == nil || grammar.TypeQuery == "" {
		t.Fatalf("incomplete grammar: %+v", grammar)
	}

	if _, err := loader.Grammar("python"); err != nil {
		t.Fatalf("python grammar: %v", err)
	}
}

func TestLoaderRejectsDisabledLanguage(t *testing.T) {
	loader, err := NewLoader(DefaultRegistry())
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}

	_, err = loader.Grammar("rust")
	if err == nil {
		t.Fatal("expected error for disabled language")
	}
	if !errs.IsCode(err, errs.CodeNotSupported) {
		t.Fatalf("expected NOT_SUPPORTED, got %v", err)
	}
}

func TestLoaderHonorsOverrides(t *testing.T) {
	registry, err := BuildRegistry(map[string]Override{
		"rust": {Enabled: boolPtr(true)},
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	loader, err := NewLoader(registry)
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	if _, err := loader.Grammar("rust"); err != nil {
		t.Fatalf("rust grammar after enable: %v", err)
	}
}

func TestParseProducesTree(t *testing.T) {
	loader, err := NewLoader(DefaultRegistry())
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	grammar, err := loader.Grammar("python")
	if err != nil {
		t.Fatalf("python grammar: %v", err)
	}

	tree, err := Parse(grammar, []byte("class Widget:\n    pass\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.Kind() != "module" {
		t.Fatalf("unexpected root node: %v", root)
	}
}

func TestParseNilGrammar(t *testing.T) {
	if _, err := Parse(nil, []byte("x")); err == nil {
		t.Fatal("expected error for nil grammar")
	}
}
