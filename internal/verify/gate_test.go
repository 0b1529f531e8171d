package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dnnyngyen/phasecore/internal/types"
)

func defaultThresholds() Thresholds {
	return Thresholds{CompletionPercent: 95, ExecutionSuccessRate: 0.7}
}

func TestCheck_PassesAtEffectivenessThreshold(t *testing.T) {
	todos := []types.Todo{
		{ID: "t1", Status: types.TodoCompleted, Priority: types.PriorityLow},
		{ID: "t2", Status: types.TodoCompleted, Priority: types.PriorityHigh},
	}
	res := Check(todos, 0.7, false, 0, defaultThresholds())
	assert.True(t, res.Passed)
	assert.Equal(t, types.PhaseDone, res.NextPhase)
}

func TestCheck_FailsJustBelowEffectivenessThreshold(t *testing.T) {
	todos := []types.Todo{
		{ID: "t1", Status: types.TodoCompleted, Priority: types.PriorityLow},
		{ID: "t2", Status: types.TodoCompleted, Priority: types.PriorityHigh},
	}
	res := Check(todos, 0.69, false, 0, defaultThresholds())
	assert.False(t, res.Passed)
}

func TestCheck_FailsWhenCriticalTaskIncomplete(t *testing.T) {
	todos := []types.Todo{
		{ID: "t1", Status: types.TodoCompleted, Priority: types.PriorityLow},
		{ID: "t2", Status: types.TodoPending, Priority: types.PriorityHigh},
	}
	res := Check(todos, 0.9, false, 0, defaultThresholds())
	assert.False(t, res.Passed)
}

func TestCheck_FailsOnInProgressTodo(t *testing.T) {
	todos := []types.Todo{
		{ID: "t1", Status: types.TodoInProgress, Priority: types.PriorityLow},
	}
	res := Check(todos, 0.9, false, 0, defaultThresholds())
	assert.False(t, res.Passed)
}

func TestCheck_WorkerAssertedPassInconsistentWithCriticalIncompleteFails(t *testing.T) {
	todos := []types.Todo{
		{ID: "t1", Status: types.TodoCompleted, Priority: types.PriorityHigh},
		{ID: "t2", Status: types.TodoCompleted, Priority: types.PriorityHigh},
		{ID: "t3", Status: types.TodoPending, Priority: types.PriorityLow, Kind: types.KindTaskAgent,
			MetaPrompt: &types.MetaPrompt{RoleSpecification: types.RoleCoder, Instruction: "x"}},
	}
	res := Check(todos, 0.9, true, 0, defaultThresholds())
	assert.False(t, res.Passed)
}

func TestCheck_RollbackSevere(t *testing.T) {
	todos := []types.Todo{
		{ID: "t1", Status: types.TodoCompleted},
		{ID: "t2", Status: types.TodoPending},
		{ID: "t3", Status: types.TodoPending},
	}
	res := Check(todos, 0.9, false, 2, defaultThresholds())
	assert.False(t, res.Passed)
	assert.Equal(t, types.PhasePlan, res.NextPhase)
	assert.Equal(t, 0, res.CurrentTaskIndex)
	assert.Equal(t, 33, res.Metrics.CompletionPct)
}

func TestCheck_RollbackModerateKeepsIndex(t *testing.T) {
	todos := []types.Todo{
		{ID: "t1", Status: types.TodoCompleted},
		{ID: "t2", Status: types.TodoCompleted},
		{ID: "t3", Status: types.TodoCompleted},
		{ID: "t4", Status: types.TodoPending},
	}
	res := Check(todos, 0.9, false, 2, defaultThresholds())
	assert.Equal(t, types.PhaseExecute, res.NextPhase)
	assert.Equal(t, 2, res.CurrentTaskIndex)
	assert.Equal(t, 75, res.Metrics.CompletionPct)
}

func TestCheck_RollbackMildDecrementsIndex(t *testing.T) {
	todos := make([]types.Todo, 10)
	for i := range todos {
		todos[i] = types.Todo{ID: string(rune('a' + i)), Status: types.TodoCompleted}
	}
	todos[9].Status = types.TodoPending
	res := Check(todos, 0.9, false, 3, defaultThresholds())
	assert.Equal(t, types.PhaseExecute, res.NextPhase)
	assert.Equal(t, 2, res.CurrentTaskIndex)
	assert.Equal(t, 90, res.Metrics.CompletionPct)
}

func TestCompute_ZeroTotalIsFullCompletion(t *testing.T) {
	m := Compute(nil)
	assert.Equal(t, 100, m.CompletionPct)
}
