package roleengine

import (
	"embed"

	"github.com/dnnyngyen/phasecore/internal/types"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var basePhasePrompt = map[types.Phase]string{}

func init() {
	for phase, file := range map[types.Phase]string{
		types.PhaseInit:      "phase_init.tmpl",
		types.PhaseQuery:     "phase_query.tmpl",
		types.PhaseEnhance:   "phase_enhance.tmpl",
		types.PhaseKnowledge: "phase_knowledge.tmpl",
		types.PhasePlan:      "phase_plan.tmpl",
		types.PhaseExecute:   "phase_execute.tmpl",
		types.PhaseVerify:    "phase_verify.tmpl",
		types.PhaseDone:      "phase_done.tmpl",
	} {
		b, err := templateFS.ReadFile("templates/" + file)
		if err != nil {
			panic("roleengine: missing embedded template " + file + ": " + err.Error())
		}
		basePhasePrompt[phase] = string(b)
	}
}
