package inspect

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxInputLen bounds inspected text so worst-case matching cost stays fixed.
const MaxInputLen = 50000 // ~50 KB

// specialCharRatioMax is the tolerated density of non-alphanumeric,
// non-space characters. Higher densities look like encoded payloads.
const specialCharRatioMax = 0.30

// base64RunLen is the shortest base64-looking run treated as suspicious.
const base64RunLen = 50

// textCheck is one independent predicate in the detector. Checks run in the
// order they are declared; the first match determines the reported category.
type textCheck struct {
	category string
	pattern  *regexp.Regexp
}

// Patterns match against normalized text: lowercased, control characters
// stripped, whitespace collapsed to single spaces.
var textChecks = []textCheck{
	{"instruction_override", regexp.MustCompile(
		`(ignore|disregard|forget) (previous|all|above|prior) (instructions|prompts|directives|rules)` +
			`|override (previous|all|prior) instructions?` +
			`|(new|updated) instructions?:`)},
	{"role_manipulation", regexp.MustCompile(
		`you are now an? \w+` +
			`|act as an? \w+` +
			`|pretend (you are|to be) an?\b` +
			`|assume the role of`)},
	{"prompt_extraction", regexp.MustCompile(
		`(show|repeat|print) (me )?(your|the) (system )?(prompt|instructions|message)` +
			`|what (are|is) your (system )?(prompt|instructions)` +
			`|reveal your (system )?(prompt|instructions)`)},
	{"delimiter_injection", regexp.MustCompile(
		`<\|(system|assistant|user)\|>` +
			`|#+ ?system ?:` +
			`|--- ?end (instructions?|prompt)` +
			`|=== ?new (instructions?|prompt)`)},
	{"encoded_payload", regexp.MustCompile(
		`base64 decode` +
			`|decode this` +
			`|[a-z0-9+/]{50,}={0,2}`)},
}

// suspiciousKeywords are logged for anomaly monitoring but do not reject.
var suspiciousKeywords = []string{
	"jailbreak", "dan mode", "developer mode", "god mode",
	"unrestricted", "unfiltered", "uncensored",
}

// InspectText checks text for prompt-injection markers. Empty input is
// accepted: required-field validation belongs to the caller. The verdict is
// deterministic for identical input.
func InspectText(text string) Verdict {
	if text == "" {
		return Accept()
	}

	// Length bound applies to the raw input, before any pattern work.
	if len(text) > MaxInputLen {
		return Reject("input_too_long",
			fmt.Sprintf("input exceeds maximum length (%d bytes, max %d)", len(text), MaxInputLen))
	}

	normalized := normalize(text)

	for _, check := range textChecks {
		if check.pattern.MatchString(normalized) {
			return Reject(check.category, "potential prompt injection: "+check.category)
		}
	}

	if specialCharRatio(normalized) > specialCharRatioMax {
		return Reject("special_char_density", "potential prompt injection: special_char_density")
	}

	for _, kw := range suspiciousKeywords {
		if strings.Contains(normalized, kw) {
			slog.Warn("suspicious keyword in input", "keyword", kw, "audit_class", "security")
		}
	}

	return Accept()
}

// Sanitize strips control characters, collapses whitespace runs to single
// spaces, and truncates to MaxInputLen. Applied to every accepted input
// before forwarding. Idempotent: Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(text string) string {
	text = truncate(text, MaxInputLen)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\t' || unicode.IsPrint(r) {
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// normalize produces the canonical form the pattern checks run against.
func normalize(text string) string {
	return strings.ToLower(Sanitize(text))
}

func specialCharRatio(text string) float64 {
	if text == "" {
		return 0
	}
	var special, total int
	for _, r := range text {
		total++
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			special++
		}
	}
	return float64(special) / float64(total)
}

// truncate shortens s to at most maxBytes without splitting UTF-8 runes.
func truncate(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
