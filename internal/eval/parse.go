package eval

import (
	"strconv"
	"strings"

	"github.com/reasonlab/underspec/internal/dataset"
)

// ParseMC extracts a multiple-choice answer index from free-form model
// output: a standalone letter token first, then a 1-based or 0-based number
// token, then a literal match against the choice text.
func ParseMC(response string, choices []string) (int, bool) {
	s := strings.TrimSpace(response)
	if s == "" {
		return -1, false
	}

	max := len(choices)
	if max <= 0 {
		max = 4
	}
	if max > 26 {
		max = 26
	}

	if idx, ok := extractLetterToken(s, max); ok {
		return idx, true
	}
	if idx, ok := extractNumberToken(s, max); ok {
		return idx, true
	}
	if idx, ok := matchChoiceText(s, choices, max); ok {
		return idx, true
	}
	return -1, false
}

func extractLetterToken(s string, max int) (int, bool) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c = c - 'a' + 'A'
		}
		if c < 'A' || c > 'Z' {
			continue
		}
		idx := int(c - 'A')
		if idx < 0 || idx >= max {
			continue
		}

		prevOK := i == 0 || !isAlphaNum(s[i-1])
		nextOK := i+1 == len(s) || !isAlphaNum(s[i+1])
		if prevOK && nextOK {
			return idx, true
		}
	}
	return -1, false
}

func extractNumberToken(s string, max int) (int, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			continue
		}
		j := i
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		n, err := strconv.Atoi(s[i:j])
		if err != nil {
			continue
		}
		if n >= 1 && n <= max {
			return n - 1, true
		}
		if n >= 0 && n < max {
			return n, true
		}
		i = j - 1
	}
	return -1, false
}

func matchChoiceText(s string, choices []string, max int) (int, bool) {
	if len(choices) == 0 {
		return -1, false
	}
	ls := strings.ToLower(s)
	for i, c := range choices {
		if i >= max {
			return -1, false
		}
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if strings.Contains(ls, c) {
			return i, true
		}
	}
	return -1, false
}

func isAlphaNum(b byte) bool {
	return (b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

// AmbiguityVerdict is the parsed outcome of an ambiguity-detection response.
type AmbiguityVerdict struct {
	Underspecified bool
	// Detail is the text after the marker: the claimed missing information,
	// or the claimed answer.
	Detail string
}

// ParseAmbiguity looks for the SOLVABLE / UNDERSPECIFIED markers the prompt
// instructs the model to use. When both appear (models sometimes restate the
// instructions before answering), the later occurrence is taken as the
// answer.
func ParseAmbiguity(response string) (AmbiguityVerdict, bool) {
	s := strings.TrimSpace(response)
	if s == "" {
		return AmbiguityVerdict{}, false
	}
	upper := strings.ToUpper(s)

	// UNSOLVABLE and NOT SOLVABLE are off-format but unambiguous ways of
	// flagging missing information, so they count as underspecified markers
	// rather than matching the bare SOLVABLE inside them.
	lu, luEnd := strings.LastIndex(upper, "UNDERSPECIFIED"), 0
	if lu >= 0 {
		luEnd = lu + len("UNDERSPECIFIED")
	}
	for _, marker := range []string{"UNSOLVABLE", "NOT SOLVABLE"} {
		if i := strings.LastIndex(upper, marker); i > lu {
			lu, luEnd = i, i+len(marker)
		}
	}
	ls := lastBareSolvable(upper)

	switch {
	case lu < 0 && ls < 0:
		return AmbiguityVerdict{}, false
	case lu > ls:
		return AmbiguityVerdict{
			Underspecified: true,
			Detail:         markerDetail(s, luEnd),
		}, true
	default:
		return AmbiguityVerdict{
			Underspecified: false,
			Detail:         markerDetail(s, ls+len("SOLVABLE")),
		}, true
	}
}

// lastBareSolvable finds the last "SOLVABLE" that is not part of
// "UNSOLVABLE" or preceded by "NOT ", or -1.
func lastBareSolvable(upper string) int {
	for i := strings.LastIndex(upper, "SOLVABLE"); i >= 0; i = strings.LastIndex(upper[:i], "SOLVABLE") {
		if i >= 2 && upper[i-2:i] == "UN" {
			continue
		}
		if strings.HasSuffix(upper[:i], "NOT ") {
			continue
		}
		return i
	}
	return -1
}

func markerDetail(s string, after int) string {
	if after >= len(s) {
		return ""
	}
	detail := s[after:]
	detail = strings.TrimLeft(detail, ":.,- \t")
	if i := strings.IndexByte(detail, '\n'); i >= 0 {
		detail = detail[:i]
	}
	return strings.TrimSpace(detail)
}

// FactMatch reports whether a claimed missing fact names the gold one,
// by content-token overlap. Half the gold fact's tokens must appear.
func FactMatch(claimed, gold string) bool {
	goldTokens := contentTokens(gold)
	if len(goldTokens) == 0 {
		return false
	}
	claimedSet := make(map[string]bool)
	for _, tok := range contentTokens(claimed) {
		claimedSet[tok] = true
	}
	hits := 0
	for _, tok := range goldTokens {
		if claimedSet[tok] {
			hits++
		}
	}
	return hits*2 >= len(goldTokens)
}

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "of": true,
	"on": true, "in": true, "at": true, "to": true, "and": true, "or": true,
	"that": true, "it": true, "for": true, "with": true, "each": true,
}

func contentTokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if !stopwords[f] {
			out = append(out, f)
		}
	}
	return out
}

// ParseFinalAnswer extracts and scores a final answer for fullinfo mode.
// Logic problems expect yes/no; planning and arithmetic expect the last
// number in the output to equal the solution.
func ParseFinalAnswer(domain, response, solution string) (predicted string, parsed, correct bool) {
	switch domain {
	case dataset.DomainLogic:
		yn, ok := extractYesNo(response)
		if !ok {
			return "", false, false
		}
		return yn, true, strings.EqualFold(yn, strings.TrimSpace(solution))
	default:
		num, ok := extractLastNumber(response)
		if !ok {
			return "", false, false
		}
		want, ok := parseFloat(solution)
		if !ok {
			return num, true, false
		}
		got, ok := parseFloat(num)
		if !ok {
			return num, true, false
		}
		return num, true, almostEqual(got, want)
	}
}

func extractYesNo(s string) (string, bool) {
	lower := strings.ToLower(s)
	iYes := lastWordIndex(lower, "yes")
	iNo := lastWordIndex(lower, "no")
	switch {
	case iYes < 0 && iNo < 0:
		return "", false
	case iYes > iNo:
		return "yes", true
	default:
		return "no", true
	}
}

// lastWordIndex finds the last occurrence of word with non-letter
// boundaries, or -1.
func lastWordIndex(s, word string) int {
	for i := strings.LastIndex(s, word); i >= 0; i = strings.LastIndex(s[:i], word) {
		prevOK := i == 0 || !isAlphaNum(s[i-1])
		next := i + len(word)
		nextOK := next >= len(s) || !isAlphaNum(s[next])
		if prevOK && nextOK {
			return i
		}
	}
	return -1
}

func extractLastNumber(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	start, end := -1, -1
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if (c >= '0' && c <= '9') || c == '.' || c == ',' {
			end = i + 1
			start = i
			for start > 0 {
				pc := s[start-1]
				if (pc >= '0' && pc <= '9') || pc == '.' || pc == ',' || pc == '-' {
					start--
					continue
				}
				break
			}
			break
		}
	}
	if start < 0 || end < 0 || start >= end {
		return "", false
	}
	raw := strings.TrimSpace(s[start:end])
	raw = strings.ReplaceAll(raw, ",", "")
	raw = strings.Trim(raw, ".")
	if raw == "" || raw == "-" {
		return "", false
	}
	return raw, true
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
