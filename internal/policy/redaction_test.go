package policy

import (
	"strings"
	"testing"
)

func TestRedactPII(t *testing.T) {
	input := "Mon email est jean.dupont@vygeek.com, tel +33 6 12 34 56 78, carte 4242 4242 4242 4242."
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[EMAIL_MASQUE]", "[TEL_MASQUE]", "[CARTE_MASQUEE]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
}

func TestRedactPIILeavesPlainTextAlone(t *testing.T) {
	input := "mon wifi ne fonctionne plus depuis ce matin"
	out, changed := RedactPII(input)
	if changed || out != input {
		t.Fatalf("RedactPII(%q) = %q, changed=%v; want unchanged", input, out, changed)
	}
}
