// Package prompt renders evaluation prompts for the three prompting modes.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/reasonlab/underspec/internal/dataset"
)

type Mode string

const (
	// ModeMC asks which candidate fact is needed to solve the problem.
	ModeMC Mode = "mc"
	// ModeAmbiguity asks whether the problem is solvable as stated.
	ModeAmbiguity Mode = "ambiguity"
	// ModeFullInfo supplies the missing fact and asks for the final answer.
	ModeFullInfo Mode = "fullinfo"
)

// Modes lists the supported prompting modes in canonical order.
func Modes() []Mode {
	return []Mode{ModeMC, ModeAmbiguity, ModeFullInfo}
}

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeMC:
		return ModeMC, nil
	case ModeAmbiguity:
		return ModeAmbiguity, nil
	case ModeFullInfo:
		return ModeFullInfo, nil
	default:
		return "", fmt.Errorf("prompt: unknown mode %q (expected mc|ambiguity|fullinfo)", s)
	}
}

const systemPrompt = "You are a careful reasoner. Follow the response format exactly."

// Build renders the system and user prompts for one problem in one mode.
func Build(mode Mode, p *dataset.Problem) (system, user string, err error) {
	if p == nil {
		return "", "", errors.New("prompt: nil problem")
	}

	switch mode {
	case ModeMC:
		return systemPrompt, buildMC(p), nil
	case ModeAmbiguity:
		return systemPrompt, buildAmbiguity(p), nil
	case ModeFullInfo:
		return systemPrompt, buildFullInfo(p), nil
	default:
		return "", "", fmt.Errorf("prompt: unknown mode %q", mode)
	}
}

func buildMC(p *dataset.Problem) string {
	var sb strings.Builder
	sb.WriteString("The following problem is missing exactly one fact needed to solve it.\n\n")
	sb.WriteString(strings.TrimSpace(p.Statement))
	sb.WriteString("\n\nWhich additional fact is needed to solve the problem?\n\n")

	for i, c := range p.Choices {
		label := string(rune('A' + i))
		sb.WriteString(label)
		sb.WriteString(". ")
		sb.WriteString(strings.TrimSpace(c))
		sb.WriteByte('\n')
	}

	sb.WriteString("\nReply with just the letter (e.g., A).\n")
	return sb.String()
}

func buildAmbiguity(p *dataset.Problem) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(p.Statement))
	sb.WriteString("\n\nIf the problem can be solved from the given information, reply exactly:\n")
	sb.WriteString("SOLVABLE: <your answer>\n")
	sb.WriteString("If a needed piece of information is missing, reply exactly:\n")
	sb.WriteString("UNDERSPECIFIED: <the missing information>\n")
	return sb.String()
}

func buildFullInfo(p *dataset.Problem) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(p.Statement))
	sb.WriteString("\n\nAdditional fact: ")
	sb.WriteString(strings.TrimSpace(p.MissingFact))
	sb.WriteString("\n\nSolve the problem. Reply with only the final answer")
	if p.Domain == dataset.DomainLogic {
		sb.WriteString(" (yes or no)")
	}
	sb.WriteString(".\n")
	return sb.String()
}
