package engine

import (
	"encoding/json"

	errs "sift/internal/errors"
)

// DumpRecord is one matched source fragment from the query playground.
type DumpRecord struct {
	Fragment    string `json:"fragment"`
	StartOffset uint   `json:"start_offset"`
	EndOffset   uint   `json:"end_offset"`
}

// Dump compiles and executes an ad-hoc query against the whole tree and
// returns the serialized fragment list. An empty query falls back to the
// grammar's canned top-level type-declaration pattern. This path never
// touches the rule or finding model; it exists for rule authors poking at a
// grammar.
func (m *Manager) Dump(queryText string) ([]byte, error) {
	if queryText == "" {
		queryText = m.grammar.TypeQuery
	}
	if queryText == "" {
		return nil, errs.New(errs.CodeNotSupported, "no default playground query for language").
			WithContext(errs.CtxLanguage, m.grammar.Name)
	}

	captures, err := m.execute(queryText, m.tree.RootNode())
	if err != nil {
		return nil, err
	}

	records := make([]DumpRecord, 0, len(captures))
	for _, c := range captures {
		records = append(records, DumpRecord{
			Fragment:    string(m.source[c.Node.StartByte():c.Node.EndByte()]),
			StartOffset: c.Node.StartByte(),
			EndOffset:   c.Node.EndByte(),
		})
	}
	return json.MarshalIndent(records, "", "  ")
}
