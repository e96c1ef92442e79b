package corpus

import (
	"strings"
	"testing"
)

const ecfrDocument = `<?xml version="1.0" encoding="UTF-8"?>
<document>
<section id="21.1">
<DIV8 N="21.1" TYPE="SECTION"><HEAD>§ 21.1 Applicability and definitions.</HEAD>
<P>(a) This part prescribes procedural requirements.</P>
<P>(ii) Rules governing the holders of certificates.</P>
<P>(b) For the purposes of this part <a href="https://example.com">see here</a>.</P>
<P>Closing paragraph.</P>
</DIV8>
</section>
<section id="21.2">
<DIV8 N="21.2" TYPE="SECTION"><HEAD>§ 21.2 Falsification of applications.</HEAD>
<P>No person may make any fraudulent statement.</P>
</DIV8>
</section>
</document>`

func lineWith(lines []string, v string) string {
	for _, l := range lines {
		if strings.Contains(l, v) {
			return l
		}
	}
	return ""
}

func indent(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

func TestECFRToMarkdown(t *testing.T) {
	got, err := ECFRToMarkdown(strings.NewReader(ecfrDocument))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "# Complete eCFR Document\n") {
		t.Errorf("missing document title: %s", got)
	}
	first := strings.Index(got, "## Section 21.1")
	second := strings.Index(got, "## Section 21.2")
	if first < 0 || second < first {
		t.Fatalf("sections missing or out of order: %s", got)
	}
	if !strings.Contains(got, "### § 21.1 Applicability and definitions.") {
		t.Errorf("section heading not converted: %s", got)
	}
	if strings.Contains(got, "https://example.com") {
		t.Errorf("links must be stripped: %s", got)
	}
	lines := strings.Split(got, "\n")
	a := lineWith(lines, "(a) This part prescribes")
	ii := lineWith(lines, "(ii) Rules governing")
	b := lineWith(lines, "(b) For the purposes of this part see here.")
	if a == "" || ii == "" || b == "" {
		t.Fatalf("list items missing: %s", got)
	}
	if indent(ii) <= indent(a) {
		t.Errorf("two char label must be nested deeper:\n%s\n%s", a, ii)
	}
	if indent(b) != indent(a) {
		t.Errorf("same level labels must share indentation:\n%s\n%s", a, b)
	}
	closing := lineWith(lines, "Closing paragraph.")
	if closing == "" || indent(closing) != 0 {
		t.Errorf("plain paragraph must close the lists: %q", closing)
	}
}
