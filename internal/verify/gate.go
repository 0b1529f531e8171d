// Package verify implements the VERIFY-phase gate (§4.4): completion
// arithmetic over the current todo list, the six PASS rules, and the
// rollback-severity table applied on FAIL.
package verify

import (
	"math"

	"github.com/dnnyngyen/phasecore/internal/types"
)

// Thresholds parameterizes the gate from configuration.
type Thresholds struct {
	CompletionPercent    int
	ExecutionSuccessRate float64
}

// Metrics is the computed completion arithmetic over a todo list.
type Metrics struct {
	Total        int
	Completed    int
	InProgress   int
	Pending      int
	CompletionPct int
	CriticalTotal int
	CriticalDone  int
}

// Compute derives Metrics from todos.
func Compute(todos []types.Todo) Metrics {
	m := Metrics{Total: len(todos)}

	for _, t := range todos {
		switch t.Status {
		case types.TodoCompleted:
			m.Completed++
		case types.TodoInProgress:
			m.InProgress++
		case types.TodoPending:
			m.Pending++
		}
		if t.Critical() {
			m.CriticalTotal++
			if t.Status == types.TodoCompleted {
				m.CriticalDone++
			}
		}
	}

	if m.Total == 0 {
		m.CompletionPct = 100
	} else {
		m.CompletionPct = int(math.Round(100 * float64(m.Completed) / float64(m.Total)))
	}

	return m
}

// Result is the gate's verdict.
type Result struct {
	Passed           bool
	Metrics          Metrics
	FailureReason    string
	NextPhase        types.Phase
	CurrentTaskIndex int // only meaningful when Passed is false
}

// Check evaluates the six PASS rules from §4.4 against todos and the
// session's reasoning effectiveness, returning PASS with next phase
// DONE, or FAIL with the rollback target chosen by severity.
func Check(todos []types.Todo, effectiveness float64, workerAssertsPassed bool, currentTaskIndex int, th Thresholds) Result {
	m := Compute(todos)

	var reasons []string

	rule1 := m.CriticalDone == m.CriticalTotal
	if !rule1 {
		reasons = append(reasons, "not all critical tasks are complete")
	}

	rule2 := m.CompletionPct >= th.CompletionPercent
	if !rule2 {
		reasons = append(reasons, "completion percentage below threshold")
	}

	rule3 := !anyHighPriorityPending(todos)
	if !rule3 {
		reasons = append(reasons, "a high-priority todo is still pending")
	}

	rule4 := m.InProgress == 0
	if !rule4 {
		reasons = append(reasons, "a todo is still in progress")
	}

	rule5 := effectiveness >= th.ExecutionSuccessRate
	if !rule5 {
		reasons = append(reasons, "reasoning effectiveness below threshold")
	}

	// Rule 6: a worker-asserted pass is inconsistent (and therefore a FAIL)
	// if rules 1-5 do not all hold, or if it claims completion short of
	// 100% while critical tasks exist.
	rule6 := true
	if workerAssertsPassed {
		if !(rule1 && rule2 && rule3 && rule4 && rule5) {
			rule6 = false
		}
		if m.CompletionPct < 100 && m.CriticalTotal > 0 {
			rule6 = false
		}
		if !rule6 {
			reasons = append(reasons, "worker asserted verification_passed=true inconsistently with the computed metrics")
		}
	}

	passed := rule1 && rule2 && rule3 && rule4 && rule5 && rule6
	if passed {
		return Result{Passed: true, Metrics: m, NextPhase: types.PhaseDone}
	}

	reason := ""
	if len(reasons) > 0 {
		reason = reasons[0]
	}

	next, index := rollback(m.CompletionPct, currentTaskIndex)
	return Result{
		Passed:           false,
		Metrics:          m,
		FailureReason:    reason,
		NextPhase:        next,
		CurrentTaskIndex: index,
	}
}

// rollback applies the three-tier severity table.
func rollback(completionPct, currentTaskIndex int) (types.Phase, int) {
	switch {
	case completionPct < 50:
		return types.PhasePlan, 0
	case completionPct < 80:
		return types.PhaseExecute, currentTaskIndex
	default:
		idx := currentTaskIndex - 1
		if idx < 0 {
			idx = 0
		}
		return types.PhaseExecute, idx
	}
}

func anyHighPriorityPending(todos []types.Todo) bool {
	for _, t := range todos {
		if t.Priority == types.PriorityHigh && t.Status == types.TodoPending {
			return true
		}
	}
	return false
}
