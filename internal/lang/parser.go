package lang

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	errs "sift/internal/errors"
)

// Parse builds the syntax tree for one source buffer. The returned tree must
// be closed by the caller once it is no longer needed.
func Parse(grammar *Grammar, source []byte) (*sitter.Tree, error) {
	if grammar == nil {
		return nil, errs.New(errs.CodeNotSupported, "nil grammar")
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar.Language)

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, errs.New(errs.CodeParseError, "parse failed").
			WithContext(errs.CtxLanguage, grammar.Name)
	}
	return tree, nil
}
