package schema

import (
	"strings"
	"testing"

	"github.com/bububa/regulation-agents/components/regulation"
)

func TestAnswerPartition(t *testing.T) {
	ans := Answer{
		Answers: []DomainAnswer{
			{Domain: regulation.EASA, Content: "CS-25.571"},
			{Domain: regulation.FAA, Error: "timeout"},
			{Domain: regulation.JSSG, Content: "JSSG-2006"},
		},
	}
	failed := ans.Failed()
	if len(failed) != 1 || failed[0] != regulation.FAA {
		t.Errorf("unexpected failed domains: %v", failed)
	}
	ok := ans.Succeeded()
	if len(ok) != 2 || ok[0].Domain != regulation.EASA || ok[1].Domain != regulation.JSSG {
		t.Errorf("unexpected succeeded answers: %v", ok)
	}
}

func TestDomainAnswerString(t *testing.T) {
	ans := DomainAnswer{
		Domain:  regulation.FAA,
		Content: "See 14 CFR 25.571.",
		Sources: []Source{{Title: "14 CFR 25.571", URL: "https://www.ecfr.gov/current/title-14/section-25.571"}},
	}
	got := ans.String()
	if !strings.HasPrefix(got, "[FAA]\nSee 14 CFR 25.571.") {
		t.Errorf("unexpected prefix: %s", got)
	}
	if !strings.Contains(got, "- 14 CFR 25.571 (https://www.ecfr.gov/current/title-14/section-25.571)") {
		t.Errorf("expect citation line, got: %s", got)
	}
	failed := DomainAnswer{Domain: regulation.EDA, Error: "boom"}
	if got := failed.String(); got != "[EDA] unavailable: boom" {
		t.Errorf("unexpected failed rendering: %s", got)
	}
}

func TestUsageMerge(t *testing.T) {
	u := new(Usage)
	u.Merge(&Usage{InputTokens: 3, OutputTokens: 4})
	u.Merge(nil)
	u.Merge(&Usage{InputTokens: 1})
	if u.InputTokens != 4 || u.OutputTokens != 4 || u.Total() != 8 {
		t.Errorf("unexpected usage: %+v", u)
	}
}
