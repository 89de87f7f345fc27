package prompt

import (
	"strings"
	"testing"

	"github.com/reasonlab/underspec/internal/dataset"
)

func testProblem() *dataset.Problem {
	return &dataset.Problem{
		ID:          "logic-1",
		Domain:      dataset.DomainLogic,
		Difficulty:  1,
		Statement:   "Alice is calm.\nQuestion: Is Alice happy?",
		Choices:     []string{"Alice is tidy.", "Bob is tall.", "Carol is quiet."},
		AnswerIndex: 0,
		MissingFact: "Alice is tidy.",
		Solution:    "yes",
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range Modes() {
		got, err := ParseMode(string(m))
		if err != nil || got != m {
			t.Fatalf("ParseMode(%q): got %q, %v", m, got, err)
		}
	}
	if _, err := ParseMode("essay"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestBuild_MC(t *testing.T) {
	_, user, err := Build(ModeMC, testProblem())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, want := range []string{"A. Alice is tidy.", "B. Bob is tall.", "C. Carol is quiet.", "just the letter"} {
		if !strings.Contains(user, want) {
			t.Fatalf("mc prompt missing %q:\n%s", want, user)
		}
	}
}

func TestBuild_Ambiguity(t *testing.T) {
	_, user, err := Build(ModeAmbiguity, testProblem())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if strings.Contains(user, "Alice is tidy.") {
		t.Fatal("ambiguity prompt must not reveal the missing fact or choices")
	}
	if !strings.Contains(user, "UNDERSPECIFIED") || !strings.Contains(user, "SOLVABLE") {
		t.Fatalf("ambiguity prompt missing response markers:\n%s", user)
	}
}

func TestBuild_FullInfo(t *testing.T) {
	_, user, err := Build(ModeFullInfo, testProblem())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(user, "Additional fact: Alice is tidy.") {
		t.Fatalf("fullinfo prompt missing the fact:\n%s", user)
	}
	if !strings.Contains(user, "(yes or no)") {
		t.Fatal("logic fullinfo prompt should ask for yes/no")
	}
}
