package rules

import "testing"

func TestClampSeverity(t *testing.T) {
	cases := []struct {
		priority int
		want     Severity
	}{
		{1, SeverityHint},
		{2, SeverityInfo},
		{3, SeverityWarning},
		{4, SeverityViolation},
		{5, SeverityViolation},
		{99, SeverityViolation},
		{1000000, SeverityViolation},
		{0, SeverityHint},
		{-7, SeverityHint},
	}
	for _, c := range cases {
		if got := ClampSeverity(c.priority); got != c.want {
			t.Errorf("ClampSeverity(%d) = %v, want %v", c.priority, got, c.want)
		}
	}
}

func TestSeverityString(t *testing.T) {
	if SeverityViolation.String() != "violation" {
		t.Fatalf("unexpected name %q", SeverityViolation.String())
	}
	if Severity(42).String() != "unknown" {
		t.Fatalf("expected unknown for out-of-range severity")
	}
}

func TestEffectiveContextsDefaultsToScan(t *testing.T) {
	var r Rule
	if r.EffectiveContexts() != RunScan {
		t.Fatal("expected default context scan")
	}

	r.Contexts = RunMeasure
	if r.EffectiveContexts() != RunMeasure {
		t.Fatal("expected declared context to win")
	}
	if !r.EffectiveContexts().Has(RunMeasure) || r.EffectiveContexts().Has(RunScan) {
		t.Fatal("context set membership broken")
	}
}
