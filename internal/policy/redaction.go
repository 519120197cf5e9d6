package policy

import "regexp"

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Ordered so card numbers are masked before the looser phone pattern can claim them.
var rules = []rule{
	{regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), "[EMAIL_MASQUE]"},
	{regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`), "[CARTE_MASQUEE]"},
	{regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`), "[TEL_MASQUE]"},
}

// RedactPII masks emails, card numbers and phone numbers before transcript
// content is written to the durable store. The in-flight conversation keeps
// the raw text so diagnostic context is not lost mid-exchange.
func RedactPII(input string) (redacted string, changed bool) {
	out := input
	for _, r := range rules {
		next := r.pattern.ReplaceAllString(out, r.replacement)
		changed = changed || next != out
		out = next
	}
	return out, changed
}
