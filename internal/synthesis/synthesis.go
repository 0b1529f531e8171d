// Package synthesis combines a batch of knowledge fetches into a single
// answer, flags contradictions between sources, and assigns a confidence
// score that never decreases as more fetches succeed (§4.5 Step C).
package synthesis

import (
	"fmt"
	"strings"

	"github.com/dnnyngyen/phasecore/internal/types"
)

// Options bounds the synthesizer's output.
type Options struct {
	MaxResponseSize int
}

// Synthesize combines results into a SynthesisResult. Confidence is
// monotone non-decreasing in the number of successful fetches: 0 successes
// yields confidence 0 and a fallback answer; each additional success can
// only raise it.
func Synthesize(results []types.FetchResult, opts Options) types.SynthesisResult {
	successes := make([]types.FetchResult, 0, len(results))
	for _, r := range results {
		if r.Success {
			successes = append(successes, r)
		}
	}

	if len(successes) == 0 {
		return types.SynthesisResult{
			Answer:     "No sources could be reached; manual tools required.",
			Confidence: 0,
		}
	}

	var b strings.Builder
	for i, r := range successes {
		if i > 0 {
			b.WriteString("\n\n")
		}
		name := strings.Join(r.Endpoint, " -> ")
		fmt.Fprintf(&b, "[%s] %s", name, r.Body)
	}

	answer := b.String()
	if opts.MaxResponseSize > 0 && len(answer) > opts.MaxResponseSize {
		answer = answer[:opts.MaxResponseSize] + "... [truncated]"
	}

	return types.SynthesisResult{
		Answer:         answer,
		Contradictions: detectContradictions(successes),
		Confidence:     confidence(len(successes), len(results)),
	}
}

// confidence grows with the successful fraction of fetches and the
// absolute count, capped at 1.0. It is strictly non-decreasing as
// successCount increases with totalCount held fixed.
func confidence(successCount, totalCount int) float64 {
	if totalCount == 0 {
		return 0
	}
	fraction := float64(successCount) / float64(totalCount)
	countBoost := 1 - 1/float64(successCount+1)
	c := 0.5*fraction + 0.5*countBoost
	if c > 1 {
		c = 1
	}
	return c
}

// detectContradictions flags a coarse signal: sources whose bodies disagree
// on the presence of common yes/no indicator words. This is a heuristic,
// not a semantic comparison; it surfaces candidates for a worker to review
// rather than asserting ground truth.
func detectContradictions(successes []types.FetchResult) []string {
	if len(successes) < 2 {
		return nil
	}

	var contradictions []string
	for i := 0; i < len(successes); i++ {
		for j := i + 1; j < len(successes); j++ {
			a, b := successes[i], successes[j]
			if (indicatesYes(a.Body) && indicatesNo(b.Body)) || (indicatesNo(a.Body) && indicatesYes(b.Body)) {
				contradictions = append(contradictions, fmt.Sprintf(
					"%s and %s disagree", strings.Join(a.Endpoint, "/"), strings.Join(b.Endpoint, "/")))
			}
		}
	}
	return contradictions
}

func indicatesYes(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "\"true\"") || strings.Contains(lower, ":true")
}

func indicatesNo(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "\"false\"") || strings.Contains(lower, ":false")
}
