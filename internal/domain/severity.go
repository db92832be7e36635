package domain

// Severity is the ordinal of a scanner severity label. Unknown or missing labels rank lowest.
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityByLabel = map[string]Severity{
	"CRITICAL": SeverityCritical,
	"HIGH":     SeverityHigh,
	"MEDIUM":   SeverityMedium,
	"LOW":      SeverityLow,
}

// ParseSeverity matches labels exactly; "high" or "Critical" are unknown.
func ParseSeverity(label string) Severity {
	return severityByLabel[label]
}

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "CRITICAL"
	case SeverityHigh:
		return "HIGH"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityLow:
		return "LOW"
	default:
		return "UNKNOWN"
	}
}
