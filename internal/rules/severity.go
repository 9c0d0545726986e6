package rules

// Severity is an ordered scale topped by Violation. Rule priorities above
// the maximum are clamped, never rejected.
type Severity int

const (
	SeverityHint Severity = iota + 1
	SeverityInfo
	SeverityWarning
	SeverityViolation
)

const MaxSeverity = SeverityViolation

func (s Severity) String() string {
	switch s {
	case SeverityHint:
		return "hint"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityViolation:
		return "violation"
	default:
		return "unknown"
	}
}

// ClampSeverity maps a declared rule priority onto the severity scale:
// min(priority, MaxSeverity), with a floor at Hint for non-positive values.
func ClampSeverity(priority int) Severity {
	if priority > int(MaxSeverity) {
		return MaxSeverity
	}
	if priority < int(SeverityHint) {
		return SeverityHint
	}
	return Severity(priority)
}
