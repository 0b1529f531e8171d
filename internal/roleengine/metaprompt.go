package roleengine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dnnyngyen/phasecore/internal/types"
)

// These patterns are non-greedy to the next literal ")", matching the
// source behavior this engine preserves: a PROMPT body containing an
// unescaped ")" is truncated at that character rather than at the final
// ")" of the enclosing group. Known limitation, not a bug; see
// ExtractMetaPrompt's doc comment.
var (
	roleMetaPattern   = regexp.MustCompile(`(?i)\(ROLE:\s*(.*?)\)`)
	contextMetaPattern = regexp.MustCompile(`(?i)\(CONTEXT:\s*(.*?)\)`)
	promptMetaPattern  = regexp.MustCompile(`(?i)\(PROMPT:\s*(.*?)\)`)
	outputMetaPattern  = regexp.MustCompile(`(?i)\(OUTPUT:\s*(.*?)\)`)

	slideTypeMetaPattern    = regexp.MustCompile(`(?i)\(SLIDE_TYPE:\s*(.*?)\)`)
	slideContentMetaPattern = regexp.MustCompile(`(?i)\(SLIDE_CONTENT:\s*(.*?)\)`)
)

// ExtractMetaPrompt applies the four meta-prompt regexes to content. It
// returns nil, false unless both ROLE and PROMPT match — CONTEXT and
// OUTPUT are optional.
//
// The regexes are non-greedy to the next literal ")". A PROMPT body that
// itself contains an unescaped ")" is truncated at that character; this
// mirrors an upstream limitation the grammar has not been upgraded to fix,
// and is preserved deliberately rather than silently patched.
func ExtractMetaPrompt(content string) (*types.MetaPrompt, bool) {
	roleMatch := roleMetaPattern.FindStringSubmatch(content)
	promptMatch := promptMetaPattern.FindStringSubmatch(content)
	if roleMatch == nil || promptMatch == nil {
		return nil, false
	}

	role := types.Role(strings.ToLower(strings.TrimSpace(roleMatch[1])))

	mp := &types.MetaPrompt{
		RoleSpecification: role,
		Context:           map[string]string{},
		Instruction:       strings.TrimSpace(promptMatch[1]),
	}

	if m := contextMetaPattern.FindStringSubmatch(content); m != nil {
		mp.Context["domain"] = strings.TrimSpace(m[1])
	}
	if m := outputMetaPattern.FindStringSubmatch(content); m != nil {
		mp.OutputRequirements = strings.TrimSpace(m[1])
	}

	return mp, true
}

// RenderMetaPrompt is the canonical inverse of ExtractMetaPrompt: it
// renders mp back to the "(ROLE:…)(CONTEXT:…)(PROMPT:…)(OUTPUT:…)" form
// such that ExtractMetaPrompt(RenderMetaPrompt(mp)) is equal to mp for any
// mp whose fields contain no unescaped ")" (the same constraint extraction
// itself is subject to).
func RenderMetaPrompt(mp *types.MetaPrompt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "(ROLE:%s)", mp.RoleSpecification)
	if domain, ok := mp.Context["domain"]; ok && domain != "" {
		fmt.Fprintf(&b, "(CONTEXT:%s)", domain)
	}
	fmt.Fprintf(&b, "(PROMPT:%s)", mp.Instruction)
	if mp.OutputRequirements != "" {
		fmt.Fprintf(&b, "(OUTPUT:%s)", mp.OutputRequirements)
	}
	return b.String()
}

// ExtractSlideSpec applies the sibling slide-shape regexes. It returns
// nil, false unless both SLIDE_TYPE and SLIDE_CONTENT match. Extraction is
// orthogonal to ExtractMetaPrompt — a todo's content may match both.
func ExtractSlideSpec(content string) (*types.SlideSpec, bool) {
	typeMatch := slideTypeMetaPattern.FindStringSubmatch(content)
	contentMatch := slideContentMetaPattern.FindStringSubmatch(content)
	if typeMatch == nil || contentMatch == nil {
		return nil, false
	}

	spec := &types.SlideSpec{
		SlideType:    strings.TrimSpace(typeMatch[1]),
		SlideContent: strings.TrimSpace(contentMatch[1]),
	}
	if m := outputMetaPattern.FindStringSubmatch(content); m != nil {
		spec.Output = strings.TrimSpace(m[1])
	}
	return spec, true
}

// RenderSlideSpec is the canonical inverse of ExtractSlideSpec.
func RenderSlideSpec(spec *types.SlideSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "(SLIDE_TYPE:%s)(SLIDE_CONTENT:%s)", spec.SlideType, spec.SlideContent)
	if spec.Output != "" {
		fmt.Fprintf(&b, "(OUTPUT:%s)", spec.Output)
	}
	return b.String()
}
