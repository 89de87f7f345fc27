package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// Domain names a problem family.
const (
	DomainLogic    = "logic"
	DomainPlanning = "planning"
	DomainArith    = "arith"
)

// Domains lists the supported problem families in canonical order.
func Domains() []string {
	return []string{DomainLogic, DomainPlanning, DomainArith}
}

// Problem is one benchmark record: an underspecified problem statement plus
// candidate missing facts. Exactly one candidate (Choices[AnswerIndex])
// makes the problem solvable; Solution is the final answer once that fact is
// supplied. Records are immutable after generation.
type Problem struct {
	ID          string
	Domain      string
	Difficulty  int
	Statement   string
	Choices     []string
	AnswerIndex int
	MissingFact string
	Solution    string
}

// Validate checks structural integrity of a record.
func (p *Problem) Validate() error {
	if p == nil {
		return errors.New("dataset: nil problem")
	}
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("dataset: empty id")
	}
	switch p.Domain {
	case DomainLogic, DomainPlanning, DomainArith:
	default:
		return fmt.Errorf("dataset: %s: unknown domain %q", p.ID, p.Domain)
	}
	if strings.TrimSpace(p.Statement) == "" {
		return fmt.Errorf("dataset: %s: empty statement", p.ID)
	}
	if len(p.Choices) < 2 {
		return fmt.Errorf("dataset: %s: need at least 2 choices (got %d)", p.ID, len(p.Choices))
	}
	if p.AnswerIndex < 0 || p.AnswerIndex >= len(p.Choices) {
		return fmt.Errorf("dataset: %s: answer index %d out of range [0,%d)", p.ID, p.AnswerIndex, len(p.Choices))
	}
	if strings.TrimSpace(p.MissingFact) == "" {
		return fmt.Errorf("dataset: %s: empty missing fact", p.ID)
	}
	if got := strings.TrimSpace(p.Choices[p.AnswerIndex]); got != strings.TrimSpace(p.MissingFact) {
		return fmt.Errorf("dataset: %s: choice %d does not match missing fact", p.ID, p.AnswerIndex)
	}
	return nil
}
