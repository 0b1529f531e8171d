// Package promptctx selects and truncates the payload fields that get
// rendered into phase_context(payload) during prompt assembly, keeping the
// rendered context within a character budget the way a context window
// budget tracker keeps token usage within a window.
package promptctx

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dnnyngyen/phasecore/internal/types"
)

// Budget thresholds mirror a token-budget tracker's tiers, expressed here
// in characters of rendered context rather than tokens.
const (
	OptimalThreshold       = 0.40
	WarningThreshold       = 0.60
	SummarizationThreshold = 0.80

	// DefaultMaxChars bounds one phase_context render when the caller does
	// not specify a tighter budget.
	DefaultMaxChars = 4000
)

// Status mirrors the three-tier budget status used to decide whether a
// render needs truncation at all.
type Status string

const (
	StatusOptimal  Status = "OPTIMAL"
	StatusWarning  Status = "WARNING"
	StatusCritical Status = "CRITICAL"
)

// EstimateChars is the rough size, in characters, that v would contribute
// to a rendered context block.
func EstimateChars(v any) int {
	return len(fmt.Sprint(v))
}

// UsagePercent reports how much of maxChars the payload would consume if
// rendered unbounded.
func UsagePercent(p types.Payload, maxChars int) float64 {
	if maxChars <= 0 {
		return 1
	}
	total := 0
	for k, v := range p {
		total += len(k) + EstimateChars(v)
	}
	return float64(total) / float64(maxChars)
}

// StatusFor classifies usage against the three tiers.
func StatusFor(usage float64) Status {
	switch {
	case usage >= SummarizationThreshold:
		return StatusCritical
	case usage >= WarningThreshold:
		return StatusWarning
	default:
		return StatusOptimal
	}
}

// BuildPhaseContext renders payload into the phase_context(payload) text
// appended to every assembled prompt. Keys are rendered in sorted order
// for determinism; when the rendered size would exceed maxChars, the first
// line that does not fit is cut short with "..." (if enough budget is left
// for it), every later field is omitted, and a final sentinel line records
// how many fields were omitted.
func BuildPhaseContext(p types.Payload, maxChars int) string {
	if len(p) == 0 {
		return ""
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("Context:\n")
	budget := maxChars
	dropped := 0

	for _, k := range keys {
		line := fmt.Sprintf("- %s: %v\n", k, p[k])
		if len(line) > budget {
			if budget > len(k)+8 {
				truncated := line[:budget-3] + "...\n"
				b.WriteString(truncated)
				budget = 0
			} else {
				dropped++
			}
			continue
		}
		b.WriteString(line)
		budget -= len(line)
	}

	if dropped > 0 {
		fmt.Fprintf(&b, "(%d additional field(s) omitted to stay within budget)\n", dropped)
	}

	return b.String()
}
