package lang

import "testing"

func boolPtr(v bool) *bool { return &v }

func TestDetectRoutesByExtension(t *testing.T) {
	registry := DefaultRegistry()

	cases := []struct {
		path string
		want string
	}{
		{"cmd/main.go", "go"},
		{"scripts/tool.py", "python"},
		{"web/app.ts", ""},      // typescript disabled by default
		{"README.md", ""},       // no owning language
		{"pkg/UPPER.GO", "go"},  // extension match is case-insensitive
	}
	for _, c := range cases {
		if got := Detect(registry, c.path); got != c.want {
			t.Errorf("Detect(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

func TestDetectRoutesByFilename(t *testing.T) {
	registry, err := BuildRegistry(map[string]Override{
		"python": {Filenames: []string{"BUILD"}},
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	if got := Detect(registry, "third_party/BUILD"); got != "python" {
		t.Fatalf("filename routing broken, got %q", got)
	}
}

func TestBuildRegistryEnablesLanguage(t *testing.T) {
	registry, err := BuildRegistry(map[string]Override{
		"typescript": {Enabled: boolPtr(true)},
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	if !registry["typescript"].Enabled {
		t.Fatal("override did not enable typescript")
	}
	if got := Detect(registry, "web/app.ts"); got != "typescript" {
		t.Fatalf("enabled language not routable, got %q", got)
	}
}

func TestBuildRegistryRejectsUnknownLanguage(t *testing.T) {
	if _, err := BuildRegistry(map[string]Override{"cobol": {}}); err == nil {
		t.Fatal("expected error for unknown language override")
	}
}

func TestBuildRegistryRejectsDuplicateExtension(t *testing.T) {
	_, err := BuildRegistry(map[string]Override{
		"python": {Extensions: []string{".go"}},
	})
	if err == nil {
		t.Fatal("expected duplicate extension error")
	}
}

func TestBuildRegistryNormalizesExtensions(t *testing.T) {
	registry, err := BuildRegistry(map[string]Override{
		"python": {Extensions: []string{"PY", " .pyw ", ".py"}},
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	spec := registry["python"]
	if len(spec.Extensions) != 2 || spec.Extensions[0] != ".py" || spec.Extensions[1] != ".pyw" {
		t.Fatalf("unexpected normalized extensions: %v", spec.Extensions)
	}
}

func TestBuildRegistryDoesNotMutateDefaults(t *testing.T) {
	if _, err := BuildRegistry(map[string]Override{
		"go": {Extensions: []string{".golang"}},
	}); err != nil {
		t.Fatalf("build registry: %v", err)
	}
	if DefaultRegistry()["go"].Extensions[0] != ".go" {
		t.Fatal("default registry mutated by override")
	}
}
