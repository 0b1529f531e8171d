// Package roleengine assigns a cognitive role to a session from its
// objective text, extracts and renders embedded meta-prompts from todo
// content, and assembles the system prompt handed back to the worker on
// each ProcessState call.
package roleengine

import (
	"strings"

	"github.com/dnnyngyen/phasecore/internal/types"
)

// roleKeywords are the phrases whose presence in a lowercased objective
// contribute to a role's score. Scoring is additive: every matched keyword
// adds one point to its role.
var roleKeywords = map[types.Role][]string{
	types.RolePlanner: {
		"plan", "roadmap", "strategy", "break down", "milestones", "sequence",
	},
	types.RoleCoder: {
		"implement", "code", "function", "refactor", "bug", "write a", "build",
	},
	types.RoleCritic: {
		"review", "critique", "evaluate", "assess", "audit", "flaws", "risks",
	},
	types.RoleResearcher: {
		"research", "investigate", "find out", "explore", "survey", "compare options",
	},
	types.RoleAnalyzer: {
		"analyze", "analysis", "metrics", "data", "statistics", "root cause",
	},
	types.RoleSynthesizer: {
		"summarize", "synthesize", "combine", "consolidate", "distill",
	},
	types.RoleUIArchitect: {
		"ui architecture", "design system", "component hierarchy", "layout structure",
	},
	types.RoleUIImplementer: {
		"ui component", "css", "styling", "frontend", "react component", "button", "form",
	},
	types.RoleUIRefiner: {
		"polish", "pixel", "visual tweak", "spacing", "accessibility pass",
	},
}

// RoleConfig is the per-role constant table used to parameterize prompt
// assembly: the reasoning multiplier, the role's stated focus, and
// frameworks/validation rules, all surfaced in the rendered prompt. The
// multiplier is only shown there; it does not scale the effectiveness delta.
type RoleConfig struct {
	ReasoningMultiplier float64
	Focus               string
	SuggestedFrameworks []string
	ValidationRules     []string
}

var roleConfigs = map[types.Role]RoleConfig{
	types.RolePlanner: {
		ReasoningMultiplier: 2.5,
		Focus:               "decomposing the objective into an ordered, verifiable todo list",
		SuggestedFrameworks: []string{"work breakdown structure", "dependency ordering"},
		ValidationRules:     []string{"every todo has a clear completion criterion"},
	},
	types.RoleCoder: {
		ReasoningMultiplier: 2.0,
		Focus:               "producing working, tested code changes",
		SuggestedFrameworks: []string{"red-green-refactor", "smallest viable diff"},
		ValidationRules:     []string{"changes compile", "existing tests still pass"},
	},
	types.RoleCritic: {
		ReasoningMultiplier: 3.0,
		Focus:               "finding correctness, security, and design flaws before they ship",
		SuggestedFrameworks: []string{"adversarial review", "failure-mode enumeration"},
		ValidationRules:     []string{"every flagged issue cites a concrete failure scenario"},
	},
	types.RoleResearcher: {
		ReasoningMultiplier: 2.0,
		Focus:               "gathering and cross-checking external information",
		SuggestedFrameworks: []string{"source triangulation"},
		ValidationRules:     []string{"claims are attributed to a source"},
	},
	types.RoleAnalyzer: {
		ReasoningMultiplier: 2.5,
		Focus:               "quantifying the problem and isolating root causes",
		SuggestedFrameworks: []string{"five whys", "statistical baseline comparison"},
		ValidationRules:     []string{"conclusions are backed by the analyzed data"},
	},
	types.RoleSynthesizer: {
		ReasoningMultiplier: 2.0,
		Focus:               "merging multiple inputs into one coherent answer",
		SuggestedFrameworks: []string{"source reconciliation"},
		ValidationRules:     []string{"contradictions between sources are surfaced, not hidden"},
	},
	types.RoleUIArchitect: {
		ReasoningMultiplier: 2.5,
		Focus:               "defining component structure and data flow before implementation",
		SuggestedFrameworks: []string{"component hierarchy diagram"},
		ValidationRules:     []string{"every screen maps to a defined component tree"},
	},
	types.RoleUIImplementer: {
		ReasoningMultiplier: 2.0,
		Focus:               "building the defined components to spec",
		SuggestedFrameworks: []string{"design-token fidelity"},
		ValidationRules:     []string{"rendered output matches the design spec"},
	},
	types.RoleUIRefiner: {
		ReasoningMultiplier: 2.0,
		Focus:               "polishing visual and interaction details",
		SuggestedFrameworks: []string{"pixel-diff review"},
		ValidationRules:     []string{"spacing and type scale follow the design system"},
	},
}

// ConfigFor returns the RoleConfig for r, falling back to the RoleCoder
// config if r is not recognized (keeps prompt assembly total).
func ConfigFor(r types.Role) RoleConfig {
	if cfg, ok := roleConfigs[r]; ok {
		return cfg
	}
	return roleConfigs[types.RoleCoder]
}

// DetectRole scores objective against every role's keyword set and returns
// the highest scorer, breaking ties using types.RoleTieBreakOrder (earlier
// entries win).
func DetectRole(objective string) types.Role {
	lower := strings.ToLower(objective)

	scores := make(map[types.Role]int, len(types.RoleTieBreakOrder))
	for role, keywords := range roleKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				scores[role]++
			}
		}
	}

	best := types.RoleTieBreakOrder[0]
	bestScore := scores[best]
	for _, role := range types.RoleTieBreakOrder[1:] {
		if scores[role] > bestScore {
			best = role
			bestScore = scores[role]
		}
	}
	return best
}
