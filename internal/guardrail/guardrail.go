package guardrail

import "strings"

// RiskLevel controls how aggressively content is screened.
type RiskLevel string

const (
	RiskConservative RiskLevel = "conservative"
	RiskNormal       RiskLevel = "normal"
	RiskAggressive   RiskLevel = "aggressive"
)

// Verdict is the result of one evaluation. It carries no identity and is
// recomputed for every attempt.
type Verdict struct {
	Blocked     bool   `json:"blocked"`
	Reason      string `json:"reason,omitempty"`
	MatchedTerm string `json:"matched_term,omitempty"`
}

// conservativePatterns are urgency phrases screened in addition to the
// configured lists when the risk level is conservative.
var conservativePatterns = []string{
	"urgent",
	"act now",
	"limited time",
	"last chance",
	"don't miss",
}

// Engine classifies content as safe or blocked. It is stateless after
// construction and safe for concurrent use.
type Engine struct {
	bannedWords []string
	bannedTags  []string
	risk        RiskLevel
}

func NewEngine(bannedWords, bannedTags []string, risk RiskLevel) *Engine {
	words := make([]string, 0, len(bannedWords))
	for _, w := range bannedWords {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			words = append(words, w)
		}
	}
	tags := make([]string, 0, len(bannedTags))
	for _, t := range bannedTags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if !strings.HasPrefix(t, "#") {
			t = "#" + t
		}
		tags = append(tags, t)
	}
	if risk == "" {
		risk = RiskNormal
	}
	return &Engine{bannedWords: words, bannedTags: tags, risk: risk}
}

// Evaluate scans title and body for banned terms. It is pure: no I/O, no
// mutation, identical inputs always produce identical verdicts. The first
// match wins.
func (e *Engine) Evaluate(title, body string) Verdict {
	text := strings.ToLower(title + " " + body)

	for _, w := range e.bannedWords {
		if strings.Contains(text, w) {
			return Verdict{
				Blocked:     true,
				Reason:      "contains banned word: '" + w + "'",
				MatchedTerm: w,
			}
		}
	}

	for _, t := range e.bannedTags {
		if strings.Contains(text, t) {
			return Verdict{
				Blocked:     true,
				Reason:      "contains banned tag: '" + t + "'",
				MatchedTerm: t,
			}
		}
	}

	if e.risk == RiskConservative {
		for _, p := range conservativePatterns {
			if strings.Contains(text, p) {
				return Verdict{
					Blocked:     true,
					Reason:      "matches risk pattern: '" + p + "'",
					MatchedTerm: p,
				}
			}
		}
	}

	return Verdict{}
}
