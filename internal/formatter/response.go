package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/dnnyngyen/phasecore/internal/types"
)

// responseOutput is the structure rendered for a ProcessState call,
// independent of the wire format chosen.
type responseOutput struct {
	NextPhase        types.Phase   `json:"next_phase" yaml:"next_phase"`
	Status           types.Status  `json:"status" yaml:"status"`
	Revision         int64         `json:"revision" yaml:"revision"`
	AllowedNextTools []string      `json:"allowed_next_tools" yaml:"allowed_next_tools"`
	SystemPrompt     string        `json:"system_prompt" yaml:"system_prompt"`
	Payload          types.Payload `json:"payload,omitempty" yaml:"payload,omitempty"`
}

func buildOutput(resp *types.Response) responseOutput {
	return responseOutput{
		NextPhase:        resp.NextPhase,
		Status:           resp.Status,
		Revision:         resp.Revision,
		AllowedNextTools: resp.AllowedNextTools,
		SystemPrompt:     resp.SystemPrompt,
		Payload:          resp.Payload,
	}
}

// WriteResponse renders resp to w in the given format ("json", "yaml", or
// "table"); an unrecognized format falls back to "table".
func WriteResponse(w io.Writer, resp *types.Response, format string) error {
	out := buildOutput(resp)

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)

	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(out)

	default:
		return writeResponseTable(w, out)
	}
}

func writeResponseTable(w io.Writer, out responseOutput) error {
	tbl := NewTable(w, "FIELD", "VALUE")
	tbl.SetMaxWidth(1, 100)

	tbl.AddRow("next_phase", string(out.NextPhase))
	tbl.AddRow("status", string(out.Status))
	tbl.AddRow("revision", fmt.Sprintf("%d", out.Revision))
	tbl.AddRow("allowed_next_tools", fmt.Sprint(out.AllowedNextTools))

	for _, k := range sortedPayloadKeys(out.Payload) {
		tbl.AddRow("payload."+k, fmt.Sprintf("%v", out.Payload[k]))
	}

	return tbl.Render()
}

// WriteErrorResponse renders an ErrorResponse the same way, so the CLI's
// error path goes through the same three formats.
func WriteErrorResponse(w io.Writer, errResp *types.ErrorResponse, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(errResp)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(errResp)
	default:
		tbl := NewTable(w, "FIELD", "VALUE")
		tbl.AddRow("error", string(errResp.Code))
		tbl.AddRow("message", errResp.Message)
		tbl.AddRow("phase", string(errResp.Phase))
		return tbl.Render()
	}
}

func sortedPayloadKeys(p types.Payload) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
