package lang

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_css "github.com/tree-sitter/tree-sitter-css/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_html "github.com/tree-sitter/tree-sitter-html/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	errs "sift/internal/errors"
)

// Grammar bundles a compiled tree-sitter language with its registry spec.
type Grammar struct {
	Name      string
	Language  *sitter.Language
	TypeQuery string
}

type Loader struct {
	grammars map[string]*Grammar
}

// NewLoader compiles the grammars for every enabled language in the registry.
func NewLoader(registry map[string]Spec) (*Loader, error) {
	loader := &Loader{grammars: make(map[string]*Grammar)}

	for id, spec := range registry {
		if !spec.Enabled {
			continue
		}
		language := languageFor(id)
		if language == nil {
			return nil, errs.New(errs.CodeNotSupported, "no grammar binding for language").
				WithContext(errs.CtxLanguage, id)
		}
		loader.grammars[id] = &Grammar{
			Name:      id,
			Language:  language,
			TypeQuery: spec.TypeQuery,
		}
	}

	return loader, nil
}

func (l *Loader) Grammar(language string) (*Grammar, error) {
	g, ok := l.grammars[language]
	if !ok {
		return nil, errs.New(errs.CodeNotSupported, "grammar not loaded").
			WithContext(errs.CtxLanguage, language)
	}
	return g, nil
}

func (l *Loader) Languages() []string {
	out := make([]string, 0, len(l.grammars))
	for id := range l.grammars {
		out = append(out, id)
	}
	return out
}

func languageFor(id string) *sitter.Language {
	switch id {
	case "css":
		return sitter.NewLanguage(tree_sitter_css.Language())
	case "go":
		return sitter.NewLanguage(tree_sitter_go.Language())
	case "html":
		return sitter.NewLanguage(tree_sitter_html.Language())
	case "java":
		return sitter.NewLanguage(tree_sitter_java.Language())
	case "javascript":
		return sitter.NewLanguage(tree_sitter_javascript.Language())
	case "python":
		return sitter.NewLanguage(tree_sitter_python.Language())
	case "rust":
		return sitter.NewLanguage(tree_sitter_rust.Language())
	case "tsx":
		return sitter.NewLanguage(tree_sitter_typescript.LanguageTSX())
	case "typescript":
		return sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	default:
		return nil
	}
}
