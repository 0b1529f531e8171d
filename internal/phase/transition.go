// Package phase implements the eight-phase transition function δ (§4.1):
// given a session's current phase, the phase the worker reports complete,
// and the completion payload, it computes the next phase, the payload
// merge, and the reasoning-effectiveness update, with no-op re-issue
// semantics for any (current, completed) pair the table does not name.
package phase

import (
	"encoding/json"

	"github.com/dnnyngyen/phasecore/internal/types"
	"github.com/dnnyngyen/phasecore/internal/verify"
)

// Capabilities is the fixed per-phase tool whitelist returned as
// allowed_next_tools. DONE's whitelist is empty.
var Capabilities = map[types.Phase][]string{
	types.PhaseInit:      {"jarvis", "task"},
	types.PhaseQuery:     {"jarvis", "task"},
	types.PhaseEnhance:   {"jarvis", "task", "web_search"},
	types.PhaseKnowledge: {"jarvis", "task", "web_search", "web_fetch"},
	types.PhasePlan:      {"jarvis", "task", "todo_write", "todo_read"},
	types.PhaseExecute:   {"jarvis", "task", "todo_write", "todo_read", "bash", "read", "write", "edit", "browser", "ide_exec"},
	types.PhaseVerify:    {"jarvis", "task", "todo_read"},
	types.PhaseDone:      {},
}

// Outcome is what one call to Transition computed.
type Outcome struct {
	Next               types.Phase
	Payload            types.Payload
	NoOp               bool
	EffectivenessDelta float64
}

// Transition computes δ(current, completed, payload) and the payload merge
// for one ProcessState call. It never mutates sess; callers persist the
// returned Outcome themselves.
func Transition(sess *types.Session, msg types.Message, th verify.Thresholds) (Outcome, error) {
	current := sess.CurrentPhase
	completed := msg.PhaseCompleted
	payload := sess.Payload.Merge(msg.Payload)

	switch current {
	case types.PhaseInit:
		if completed == "" {
			return Outcome{Next: types.PhaseQuery, Payload: payload}, nil
		}
		return noOp(current, payload), nil

	case types.PhaseQuery:
		if completed != types.PhaseQuery {
			return noOp(current, payload), nil
		}
		return Outcome{Next: types.PhaseEnhance, Payload: payload}, nil

	case types.PhaseEnhance:
		if completed != types.PhaseEnhance {
			return noOp(current, payload), nil
		}
		return Outcome{Next: types.PhaseKnowledge, Payload: payload}, nil

	case types.PhaseKnowledge:
		if completed != types.PhaseKnowledge {
			return noOp(current, payload), nil
		}
		return Outcome{Next: types.PhasePlan, Payload: payload}, nil

	case types.PhasePlan:
		if completed != types.PhasePlan || !payload.Bool("plan_created") {
			return noOp(current, payload), nil
		}
		return Outcome{Next: types.PhaseExecute, Payload: payload}, nil

	case types.PhaseExecute:
		if completed != types.PhaseExecute {
			return noOp(current, payload), nil
		}
		return transitionExecute(payload)

	case types.PhaseVerify:
		if completed != types.PhaseVerify {
			return noOp(current, payload), nil
		}
		return transitionVerify(sess, payload, th)

	case types.PhaseDone:
		return Outcome{Next: types.PhaseDone, Payload: payload}, nil

	default:
		return Outcome{}, types.ErrUnknownPhase
	}
}

func noOp(current types.Phase, payload types.Payload) Outcome {
	return Outcome{Next: current, Payload: payload, NoOp: true}
}

func transitionExecute(payload types.Payload) (Outcome, error) {
	todos, err := Todos(payload)
	if err != nil {
		return Outcome{}, err
	}

	index := payload.Int("current_task_index")
	morePending := payload.Bool("more_tasks_pending")
	success := payload.Bool("execution_success")

	delta := 0.10
	if isComplexExecution(todos, index) {
		delta = 0.15
	}
	if !success {
		delta = -delta
	}

	if morePending || index < len(todos)-1 {
		return Outcome{Next: types.PhaseExecute, Payload: payload, EffectivenessDelta: delta}, nil
	}
	return Outcome{Next: types.PhaseVerify, Payload: payload, EffectivenessDelta: delta}, nil
}

// isComplexExecution treats a todo carrying a meta-prompt (sub-agent
// delegation) as complex; everything else is simple.
func isComplexExecution(todos []types.Todo, index int) bool {
	if index < 0 || index >= len(todos) {
		return false
	}
	return todos[index].MetaPrompt != nil
}

func transitionVerify(sess *types.Session, payload types.Payload, th verify.Thresholds) (Outcome, error) {
	todos, err := Todos(payload)
	if err != nil {
		return Outcome{}, err
	}

	index := payload.Int("current_task_index")
	result := verify.Check(todos, sess.ReasoningEffectiveness, payload.Bool("verification_passed"), index, th)

	if result.Passed {
		return Outcome{Next: types.PhaseDone, Payload: payload}, nil
	}

	out := payload.Merge(types.Payload{
		"verification_failure_reason": result.FailureReason,
		"last_completion_percentage":  result.Metrics.CompletionPct,
		"current_task_index":          result.CurrentTaskIndex,
	})
	return Outcome{Next: result.NextPhase, Payload: out}, nil
}

// Todos coerces payload["current_todos"] into []types.Todo. The value is a
// native []types.Todo when set within the same process call, or a
// []interface{} of map[string]interface{} after a JSON round-trip through
// the session store; both are normalized via re-marshaling.
func Todos(payload types.Payload) ([]types.Todo, error) {
	raw, ok := payload["current_todos"]
	if !ok || raw == nil {
		return nil, nil
	}
	if todos, ok := raw.([]types.Todo); ok {
		return todos, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var todos []types.Todo
	if err := json.Unmarshal(data, &todos); err != nil {
		return nil, err
	}
	return todos, nil
}
