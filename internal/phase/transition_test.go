package phase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnnyngyen/phasecore/internal/types"
	"github.com/dnnyngyen/phasecore/internal/verify"
)

func defaultThresholds() verify.Thresholds {
	return verify.Thresholds{CompletionPercent: 95, ExecutionSuccessRate: 0.7}
}

func TestTransition_InitAdvancesToQueryOnFirstCall(t *testing.T) {
	sess := &types.Session{SessionID: "s1", CurrentPhase: types.PhaseInit}
	out, err := Transition(sess, types.Message{SessionID: "s1"}, defaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, types.PhaseQuery, out.Next)
	assert.False(t, out.NoOp)
}

func TestTransition_InitWithCompletedIsNoOp(t *testing.T) {
	sess := &types.Session{SessionID: "s1", CurrentPhase: types.PhaseInit}
	out, err := Transition(sess, types.Message{SessionID: "s1", PhaseCompleted: types.PhaseQuery}, defaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, types.PhaseInit, out.Next)
	assert.True(t, out.NoOp)
}

func TestTransition_QueryAdvancesToEnhance(t *testing.T) {
	sess := &types.Session{SessionID: "s1", CurrentPhase: types.PhaseQuery}
	out, err := Transition(sess, types.Message{
		SessionID:      "s1",
		PhaseCompleted: types.PhaseQuery,
		Payload:        types.Payload{"interpreted_goal": "build a widget"},
	}, defaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, types.PhaseEnhance, out.Next)
	assert.Equal(t, "build a widget", out.Payload.String("interpreted_goal"))
}

func TestTransition_MismatchedCompletedIsNoOp(t *testing.T) {
	sess := &types.Session{SessionID: "s1", CurrentPhase: types.PhaseQuery}
	out, err := Transition(sess, types.Message{SessionID: "s1", PhaseCompleted: types.PhaseEnhance}, defaultThresholds())
	require.NoError(t, err)
	assert.True(t, out.NoOp)
	assert.Equal(t, types.PhaseQuery, out.Next)
}

func TestTransition_PlanRequiresPlanCreatedFlag(t *testing.T) {
	sess := &types.Session{SessionID: "s1", CurrentPhase: types.PhasePlan}
	out, err := Transition(sess, types.Message{
		SessionID:      "s1",
		PhaseCompleted: types.PhasePlan,
		Payload:        types.Payload{"plan_created": false},
	}, defaultThresholds())
	require.NoError(t, err)
	assert.True(t, out.NoOp)
}

func TestTransition_PlanAdvancesToExecuteWhenCreated(t *testing.T) {
	sess := &types.Session{SessionID: "s1", CurrentPhase: types.PhasePlan}
	out, err := Transition(sess, types.Message{
		SessionID:      "s1",
		PhaseCompleted: types.PhasePlan,
		Payload:        types.Payload{"plan_created": true},
	}, defaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, types.PhaseExecute, out.Next)
}

func TestTransition_ExecuteStaysWhenMoreTasksPending(t *testing.T) {
	sess := &types.Session{SessionID: "s1", CurrentPhase: types.PhaseExecute}
	out, err := Transition(sess, types.Message{
		SessionID:      "s1",
		PhaseCompleted: types.PhaseExecute,
		Payload: types.Payload{
			"more_tasks_pending": true,
			"execution_success":  true,
			"current_todos":      []types.Todo{{ID: "a", Status: types.TodoCompleted}},
		},
	}, defaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, types.PhaseExecute, out.Next)
	assert.Equal(t, 0.10, out.EffectivenessDelta)
}

func TestTransition_ExecuteAdvancesToVerifyWhenLastTask(t *testing.T) {
	sess := &types.Session{SessionID: "s1", CurrentPhase: types.PhaseExecute}
	out, err := Transition(sess, types.Message{
		SessionID:      "s1",
		PhaseCompleted: types.PhaseExecute,
		Payload: types.Payload{
			"current_task_index": 0,
			"execution_success":  true,
			"current_todos":      []types.Todo{{ID: "a", Status: types.TodoCompleted}},
		},
	}, defaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, types.PhaseVerify, out.Next)
}

func TestTransition_ExecuteFailureYieldsNegativeDelta(t *testing.T) {
	sess := &types.Session{SessionID: "s1", CurrentPhase: types.PhaseExecute}
	out, err := Transition(sess, types.Message{
		SessionID:      "s1",
		PhaseCompleted: types.PhaseExecute,
		Payload: types.Payload{
			"current_task_index": 0,
			"execution_success":  false,
			"current_todos":      []types.Todo{{ID: "a", Status: types.TodoPending}},
		},
	}, defaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, -0.10, out.EffectivenessDelta)
}

func TestTransition_VerifyPassYieldsDone(t *testing.T) {
	sess := &types.Session{
		SessionID: "s1", CurrentPhase: types.PhaseVerify, ReasoningEffectiveness: 0.9,
	}
	out, err := Transition(sess, types.Message{
		SessionID:      "s1",
		PhaseCompleted: types.PhaseVerify,
		Payload: types.Payload{
			"current_todos": []types.Todo{
				{ID: "a", Status: types.TodoCompleted, Priority: types.PriorityHigh},
			},
		},
	}, defaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, types.PhaseDone, out.Next)
}

func TestTransition_VerifyFailRollsBackWithReason(t *testing.T) {
	sess := &types.Session{
		SessionID: "s1", CurrentPhase: types.PhaseVerify, ReasoningEffectiveness: 0.9,
	}
	out, err := Transition(sess, types.Message{
		SessionID:      "s1",
		PhaseCompleted: types.PhaseVerify,
		Payload: types.Payload{
			"current_task_index": 2,
			"current_todos": []types.Todo{
				{ID: "a", Status: types.TodoCompleted},
				{ID: "b", Status: types.TodoPending},
				{ID: "c", Status: types.TodoPending},
			},
		},
	}, defaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, types.PhasePlan, out.Next)
	assert.Equal(t, 0, out.Payload.Int("current_task_index"))
	assert.NotEmpty(t, out.Payload.String("verification_failure_reason"))
}

func TestTransition_DoneIsAlwaysIdempotent(t *testing.T) {
	sess := &types.Session{SessionID: "s1", CurrentPhase: types.PhaseDone}
	out, err := Transition(sess, types.Message{SessionID: "s1", PhaseCompleted: types.PhaseQuery}, defaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, types.PhaseDone, out.Next)
}

func TestTodos_CoercesJSONRoundTrippedValue(t *testing.T) {
	payload := types.Payload{
		"current_todos": []any{
			map[string]any{"id": "a", "status": "completed", "priority": "low", "kind": "direct_execution"},
		},
	}
	todos, err := Todos(payload)
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, "a", todos[0].ID)
	assert.Equal(t, types.TodoCompleted, todos[0].Status)
}

func TestCapabilities_DoneIsEmpty(t *testing.T) {
	assert.Empty(t, Capabilities[types.PhaseDone])
}

func TestCapabilities_ExecuteHasBroadestToolset(t *testing.T) {
	assert.Greater(t, len(Capabilities[types.PhaseExecute]), len(Capabilities[types.PhaseInit]))
}
