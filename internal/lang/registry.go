package lang

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// Spec describes one analyzable language: how files are routed to it and
// which canned pattern the query playground falls back to.
type Spec struct {
	Name       string
	Extensions []string
	Filenames  []string
	// TypeQuery is the default playground pattern matching the language's
	// top-level type-declaration construct.
	TypeQuery string
	Enabled   bool
}

type Override struct {
	Enabled    *bool
	Extensions []string
	Filenames  []string
}

func DefaultRegistry() map[string]Spec {
	return map[string]Spec{
		"css": {
			Name:       "css",
			Extensions: []string{".css"},
			TypeQuery:  "(rule_set) @exp",
			Enabled:    false,
		},
		"go": {
			Name:       "go",
			Extensions: []string{".go"},
			TypeQuery:  "(type_declaration) @exp",
			Enabled:    true,
		},
		"html": {
			Name:       "html",
			Extensions: []string{".html", ".htm"},
			TypeQuery:  "(element) @exp",
			Enabled:    false,
		},
		"java": {
			Name:       "java",
			Extensions: []string{".java"},
			TypeQuery:  "(class_declaration) @exp",
			Enabled:    false,
		},
		"javascript": {
			Name:       "javascript",
			Extensions: []string{".js", ".cjs", ".mjs"},
			TypeQuery:  "(class_declaration) @exp",
			Enabled:    false,
		},
		"python": {
			Name:       "python",
			Extensions: []string{".py"},
			TypeQuery:  "(class_definition) @exp",
			Enabled:    true,
		},
		"rust": {
			Name:       "rust",
			Extensions: []string{".rs"},
			TypeQuery:  "(struct_item) @exp",
			Enabled:    false,
		},
		"tsx": {
			Name:       "tsx",
			Extensions: []string{".tsx"},
			TypeQuery:  "(interface_declaration) @exp",
			Enabled:    false,
		},
		"typescript": {
			Name:       "typescript",
			Extensions: []string{".ts"},
			TypeQuery:  "(interface_declaration) @exp",
			Enabled:    false,
		},
	}
}

func BuildRegistry(overrides map[string]Override) (map[string]Spec, error) {
	registry := cloneRegistry(DefaultRegistry())
	if overrides == nil {
		return registry, nil
	}

	for language, override := range overrides {
		spec, ok := registry[language]
		if !ok {
			return nil, fmt.Errorf("unknown language override %q", language)
		}
		if override.Enabled != nil {
			spec.Enabled = *override.Enabled
		}
		if len(override.Extensions) > 0 {
			spec.Extensions = normalizeExtensions(override.Extensions)
		}
		if len(override.Filenames) > 0 {
			spec.Filenames = normalizeFilenames(override.Filenames)
		}
		registry[language] = spec
	}

	if err := validateRegistry(registry); err != nil {
		return nil, err
	}
	return registry, nil
}

// Detect routes a file path to the owning enabled language, or "".
func Detect(registry map[string]Spec, filePath string) string {
	base := strings.ToLower(path.Base(filePath))
	ext := strings.ToLower(path.Ext(filePath))

	for _, id := range sortedIDs(registry) {
		spec := registry[id]
		if !spec.Enabled {
			continue
		}
		for _, name := range spec.Filenames {
			if base == name {
				return id
			}
		}
		for _, e := range spec.Extensions {
			if ext == e {
				return id
			}
		}
	}
	return ""
}

func cloneRegistry(in map[string]Spec) map[string]Spec {
	out := make(map[string]Spec, len(in))
	for id, spec := range in {
		copySpec := spec
		copySpec.Extensions = append([]string(nil), spec.Extensions...)
		copySpec.Filenames = append([]string(nil), spec.Filenames...)
		out[id] = copySpec
	}
	return out
}

func validateRegistry(registry map[string]Spec) error {
	extOwner := make(map[string]string)
	filenameOwner := make(map[string]string)

	for _, id := range sortedIDs(registry) {
		spec := registry[id]
		if !spec.Enabled {
			continue
		}
		for _, ext := range normalizeExtensions(spec.Extensions) {
			if existing, ok := extOwner[ext]; ok && existing != id {
				return fmt.Errorf("duplicate extension %q owned by %q and %q", ext, existing, id)
			}
			extOwner[ext] = id
		}
		for _, filename := range normalizeFilenames(spec.Filenames) {
			if existing, ok := filenameOwner[filename]; ok && existing != id {
				return fmt.Errorf("duplicate filename %q owned by %q and %q", filename, existing, id)
			}
			filenameOwner[filename] = id
		}
	}
	return nil
}

func normalizeExtensions(values []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(values))
	for _, value := range values {
		raw := strings.TrimSpace(strings.ToLower(value))
		if raw == "" {
			continue
		}
		if !strings.HasPrefix(raw, ".") {
			raw = "." + raw
		}
		if seen[raw] {
			continue
		}
		seen[raw] = true
		out = append(out, raw)
	}
	sort.Strings(out)
	return out
}

func normalizeFilenames(values []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(values))
	for _, value := range values {
		raw := strings.TrimSpace(strings.ToLower(path.Base(value)))
		if raw == "" {
			continue
		}
		if seen[raw] {
			continue
		}
		seen[raw] = true
		out = append(out, raw)
	}
	sort.Strings(out)
	return out
}

func sortedIDs(registry map[string]Spec) []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
