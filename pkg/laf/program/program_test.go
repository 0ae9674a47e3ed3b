package program

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cognicore/laf/pkg/laf/inference"
	"github.com/cognicore/laf/pkg/laf/internalerr"
)

func TestParse(t *testing.T) {
	src := `
# Birds
bird(tweety). {0.9, 0.6}
penguin(tweety). 0.7, 0.5
~flies(opus). {0.4, 0.5}
count(42). {1, 0}

flies(X) :- bird(X). {0.2, -0.1}
~flies(X) :- penguin(X), bird(X). {0.1, 0.1}
`

	prog, err := ParseString(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	wantFacts := []*inference.Fact{
		inference.NewFact("bird", "tweety", 0.9, 0.6),
		inference.NewFact("penguin", "tweety", 0.7, 0.5),
		inference.NewFact("~flies", "opus", 0.4, 0.5),
		inference.NewFact("count", "42", 1, 0),
	}
	if diff := cmp.Diff(wantFacts, prog.Facts); diff != "" {
		t.Errorf("Facts mismatch (-want +got):\n%s", diff)
	}

	wantRules := []*inference.Rule{
		inference.NewRule("flies", []string{"bird"}, 0.2, -0.1),
		inference.NewRule("~flies", []string{"penguin", "bird"}, 0.1, 0.1),
	}
	if diff := cmp.Diff(wantRules, prog.Rules); diff != "" {
		t.Errorf("Rules mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrorsCarryLineNumbers(t *testing.T) {
	tests := []struct {
		src  string
		line string
	}{
		{"a(1). {0.5}\nb(. {0.5}", "line 2"},
		{"a(1) {0.5}", "line 1"},
		{"\n\nc(X) :- . {0.1}", "line 3"},
		{"a(1). {0.5,}", "line 1"},
		{"a(1). {1.5}", "line 1"},
		{"a(1). {0.5}\nb(1). {0.2, -0.1}", "line 2"},
	}

	for _, tt := range tests {
		_, err := ParseString(tt.src)
		if err == nil {
			t.Errorf("Parse(%q): expected error", tt.src)
			continue
		}
		if !errors.Is(err, internalerr.ErrInvalidInput) {
			t.Errorf("Parse(%q): expected ErrInvalidInput, got %v", tt.src, err)
		}
		if !strings.HasPrefix(err.Error(), tt.line) {
			t.Errorf("Parse(%q): expected %q prefix, got %v", tt.src, tt.line, err)
		}
	}
}

func TestParseAcceptsRuleWeightsOutsideUnitRange(t *testing.T) {
	prog, err := ParseString("a(1). {0, 1}\nb(X) :- a(X). {1.5, -0.5}")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := prog.Rules[0].Attributes; got[0] != 1.5 || got[1] != -0.5 {
		t.Errorf("Expected rule weights {1.5, -0.5}, got %v", got)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	facts := []*inference.Fact{
		inference.NewFact("p", "x", 0.8),
		inference.NewFact("~p", "new york", 0.25),
	}
	rules := []*inference.Rule{
		inference.NewRule("q", []string{"p", "~r"}, -0.5),
	}

	var b strings.Builder
	if err := Format(&b, facts, rules); err != nil {
		t.Fatalf("Format: %v", err)
	}

	prog, err := ParseString(b.String())
	if err != nil {
		t.Fatalf("Parse(%q): %v", b.String(), err)
	}
	if diff := cmp.Diff(facts, prog.Facts); diff != "" {
		t.Errorf("Facts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(rules, prog.Rules); diff != "" {
		t.Errorf("Rules mismatch (-want +got):\n%s", diff)
	}
}
