package guardrail

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	engine := NewEngine([]string{"bedava", "kazanç"}, []string{"#crypto", "forex"}, RiskNormal)

	tests := []struct {
		name        string
		title       string
		body        string
		wantBlocked bool
		wantTerm    string
	}{
		{name: "clean content", title: "Morning routine", body: "Five things I do before 9am", wantBlocked: false},
		{name: "banned word in body", title: "Hey", body: "Bedava kazanç!", wantBlocked: true, wantTerm: "bedava"},
		{name: "banned word in title", title: "BEDAVA fırsat", body: "detaylar profilde", wantBlocked: true, wantTerm: "bedava"},
		{name: "case insensitive", title: "", body: "KaZanÇ garantili", wantBlocked: true, wantTerm: "kazanç"},
		{name: "banned tag", title: "market update", body: "thoughts on #crypto today", wantBlocked: true, wantTerm: "#crypto"},
		{name: "tag normalized without hash", title: "", body: "new #forex signals", wantBlocked: true, wantTerm: "#forex"},
		{name: "word without tag form passes tag list", title: "", body: "forex is risky", wantBlocked: false},
		{name: "empty input", title: "", body: "", wantBlocked: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := engine.Evaluate(tt.title, tt.body)
			assert.Equal(t, tt.wantBlocked, v.Blocked)
			assert.Equal(t, tt.wantTerm, v.MatchedTerm)
			if tt.wantBlocked {
				assert.Contains(t, v.Reason, tt.wantTerm)
			}
		})
	}
}

func TestEvaluateFirstMatchWins(t *testing.T) {
	engine := NewEngine([]string{"alpha", "beta"}, []string{"#gamma"}, RiskNormal)

	v := engine.Evaluate("alpha beta", "#gamma")
	assert.True(t, v.Blocked)
	assert.Equal(t, "alpha", v.MatchedTerm)
}

func TestEvaluateConservativePatterns(t *testing.T) {
	normal := NewEngine(nil, nil, RiskNormal)
	conservative := NewEngine(nil, nil, RiskConservative)

	v := normal.Evaluate("Sale", "act now before it's gone")
	assert.False(t, v.Blocked)

	v = conservative.Evaluate("Sale", "act now before it's gone")
	assert.True(t, v.Blocked)
	assert.Equal(t, "act now", v.MatchedTerm)

	v = conservative.Evaluate("URGENT announcement", "")
	assert.True(t, v.Blocked)
	assert.Equal(t, "urgent", v.MatchedTerm)
}

func TestEvaluateDeterministic(t *testing.T) {
	engine := NewEngine([]string{"spam"}, []string{"#ad"}, RiskConservative)

	first := engine.Evaluate("big spam energy", "body")
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, engine.Evaluate("big spam energy", "body"))
	}
}
