package webhook

/* Verdict is the outcome of checking a delivery's signature
 * NotChecked is the zero value: no shared secret was configured
 */
type Verdict int

const (
	NotChecked Verdict = iota
	MatchedPrimary
	MatchedSecondary
	NoMatch
)

// String returns the string representation of the verdict
func (v Verdict) String() string {
	switch v {
	case NotChecked:
		return "not_checked"
	case MatchedPrimary:
		return "matched_primary"
	case MatchedSecondary:
		return "matched_secondary"
	case NoMatch:
		return "no_match"
	default:
		return "unknown"
	}
}

// NewVerdict creates a Verdict from a string
func NewVerdict(s string) Verdict {
	switch s {
	case "matched_primary":
		return MatchedPrimary
	case "matched_secondary":
		return MatchedSecondary
	case "no_match":
		return NoMatch
	default:
		return NotChecked
	}
}

// Message returns the sentence written to the record output, empty when not checked
func (v Verdict) Message() string {
	switch v {
	case MatchedPrimary:
		return "The calculated signature matched the primary signature"
	case MatchedSecondary:
		return "The calculated signature matched the secondary signature"
	case NoMatch:
		return "The calculated signature did not match the primary or secondary signature"
	default:
		return ""
	}
}

// Checked reports whether a signature comparison took place
func (v Verdict) Checked() bool {
	return v != NotChecked
}

