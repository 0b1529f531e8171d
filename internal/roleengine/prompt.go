package roleengine

import (
	"fmt"
	"strings"

	"github.com/dnnyngyen/phasecore/internal/promptctx"
	"github.com/dnnyngyen/phasecore/internal/types"
)

// Assemble builds the full prompt handed to the worker for one
// ProcessState call:
//
//	prompt(phase, role, objective) = base_phase_prompt[phase]
//	                                + role_enhancement[role][phase]
//	                                + phase_context(payload)
//
// Base prompts are static per-phase templates (embed.go), with
// {{session_id}} substituted for sessionID (§4.1 step 3). The role
// enhancement is generated from the role's RoleConfig rather than
// hand-written per phase×role, since the config table is already the
// source of truth for what a role contributes to a prompt. phase_context
// is delegated to internal/promptctx.
func Assemble(phase types.Phase, role types.Role, objective, sessionID string, payload types.Payload) string {
	var b strings.Builder

	if base, ok := basePhasePrompt[phase]; ok {
		b.WriteString(strings.ReplaceAll(base, "{{session_id}}", sessionID))
	}

	b.WriteString(roleEnhancement(role, phase, objective))
	b.WriteString("\n")

	if ctx := promptctx.BuildPhaseContext(payload, promptctx.DefaultMaxChars); ctx != "" {
		b.WriteString(ctx)
	}

	return b.String()
}

// roleEnhancement renders the role-specific addendum to a phase's base
// prompt, surfacing the role's focus, reasoning multiplier, suggested
// frameworks, and validation rules so the worker self-regulates.
func roleEnhancement(role types.Role, phase types.Phase, objective string) string {
	cfg := ConfigFor(role)

	var b strings.Builder
	fmt.Fprintf(&b, "\nYou are acting as %s (reasoning multiplier %.1fx). Focus: %s.\n",
		role, cfg.ReasoningMultiplier, cfg.Focus)

	if len(cfg.SuggestedFrameworks) > 0 {
		fmt.Fprintf(&b, "Suggested frameworks: %s.\n", strings.Join(cfg.SuggestedFrameworks, ", "))
	}
	if len(cfg.ValidationRules) > 0 {
		fmt.Fprintf(&b, "Validate your output against: %s.\n", strings.Join(cfg.ValidationRules, "; "))
	}

	fmt.Fprintf(&b, "Objective: %s\n", objective)
	return b.String()
}
