package analyzer

import "github.com/rotisserie/eris"

// Severity buckets a risk score for display.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

// Score thresholds. A score must exceed the threshold to reach the bucket.
const (
	highThreshold   = 75
	mediumThreshold = 40
)

// SeverityOf maps a 0..100 risk score onto a Severity. Fractional scores
// are compared as-is.
func SeverityOf(score float64) Severity {
	switch {
	case score > highThreshold:
		return SeverityHigh
	case score > mediumThreshold:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func (s Severity) String() string {
	switch s {
	case SeverityHigh:
		return "high risk"
	case SeverityMedium:
		return "medium risk"
	default:
		return "low risk"
	}
}

// Key is the short name used in JSON and colour lookups.
func (s Severity) Key() string {
	switch s {
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	default:
		return "low"
	}
}

// MarshalText encodes the severity by its short name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.Key()), nil
}

// UnmarshalText decodes a short severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "high":
		*s = SeverityHigh
	case "medium":
		*s = SeverityMedium
	case "low":
		*s = SeverityLow
	default:
		return eris.Errorf("analyzer: unknown severity %q", string(b))
	}
	return nil
}
