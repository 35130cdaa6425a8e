// Package inspect validates free-text input and uploaded files before they
// reach the generation backend. Verdicts are immutable and carry stable
// reason strings so operators can audit which rule fired.
package inspect

// Verdict is the outcome of inspecting one piece of content.
type Verdict struct {
	OK bool
	// Category is the stable identifier of the rule that fired, empty on accept.
	Category string
	// Reason is a human-readable description of the rejection, empty on accept.
	Reason string
}

// Accept returns an accepting verdict.
func Accept() Verdict {
	return Verdict{OK: true}
}

// Reject returns a rejecting verdict for the given rule category.
func Reject(category, reason string) Verdict {
	return Verdict{Category: category, Reason: reason}
}
