package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnnyngyen/phasecore/internal/config"
	"github.com/dnnyngyen/phasecore/internal/fetch"
	"github.com/dnnyngyen/phasecore/internal/ratelimit"
	"github.com/dnnyngyen/phasecore/internal/registry"
	"github.com/dnnyngyen/phasecore/internal/session"
	"github.com/dnnyngyen/phasecore/internal/ssrf"
	"github.com/dnnyngyen/phasecore/internal/types"
)

func newTestOrchestrator(t *testing.T, srv *httptest.Server) *Orchestrator {
	t.Helper()
	store, err := session.New(t.TempDir())
	require.NoError(t, err)

	entries := []types.APIEndpoint{}
	if srv != nil {
		entries = append(entries, types.APIEndpoint{
			Name: "test-source", URL: srv.URL, Category: "docs",
			Keywords: []string{"widget"}, Reliability: 0.9,
		})
	}
	catalog := registry.NewCatalog(entries)

	guard := ssrf.New(false, nil)
	limiter := ratelimit.New()

	var client *http.Client
	if srv != nil {
		client = srv.Client()
	}
	fetcher := fetch.New(client, guard, limiter, fetch.Options{
		MaxConcurrency: 2, Timeout: 2 * time.Second, MaxRetries: 0, MaxContentLength: 1 << 20,
	})

	cfg := config.Default()
	cfg.Knowledge.TopK = 3

	return New(store, catalog, fetcher, cfg, nil)
}

func TestProcessState_FirstCallRequiresInitialObjective(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	_, errResp, err := o.ProcessState(context.Background(), types.Message{SessionID: "s1"})
	require.NoError(t, err)
	require.NotNil(t, errResp)
	assert.Equal(t, types.ErrCodeMissingInitialObjective, errResp.Code)
}

func TestProcessState_FirstCallAdvancesInitToQuery(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	resp, errResp, err := o.ProcessState(context.Background(), types.Message{
		SessionID: "s1", InitialObjective: "build a widget dashboard",
	})
	require.NoError(t, err)
	require.Nil(t, errResp)
	assert.Equal(t, types.PhaseQuery, resp.NextPhase)
	assert.Equal(t, types.StatusInProgress, resp.Status)
	assert.NotEmpty(t, resp.SystemPrompt)
	assert.Equal(t, int64(2), resp.Revision)
}

func TestProcessState_InitialObjectiveForbiddenOnExistingSession(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	ctx := context.Background()
	_, _, err := o.ProcessState(ctx, types.Message{SessionID: "s1", InitialObjective: "first objective"})
	require.NoError(t, err)

	_, errResp, err := o.ProcessState(ctx, types.Message{SessionID: "s1", InitialObjective: "second objective"})
	require.NoError(t, err)
	require.NotNil(t, errResp)
	assert.Equal(t, types.ErrCodeMissingInitialObjective, errResp.Code)
}

func TestProcessState_StaleRevisionRejected(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	ctx := context.Background()
	_, _, err := o.ProcessState(ctx, types.Message{SessionID: "s1", InitialObjective: "build a widget"})
	require.NoError(t, err)

	_, errResp, err := o.ProcessState(ctx, types.Message{
		SessionID: "s1", PhaseCompleted: types.PhaseQuery,
		Payload: types.Payload{"expect_revision": int64(999), "interpreted_goal": "x"},
	})
	require.NoError(t, err)
	require.NotNil(t, errResp)
	assert.Equal(t, types.ErrCodeStaleRevision, errResp.Code)
}

func TestProcessState_FullHappyPathReachesDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	o := newTestOrchestrator(t, srv)
	ctx := context.Background()

	resp, errResp, err := o.ProcessState(ctx, types.Message{SessionID: "s1", InitialObjective: "build a widget dashboard"})
	require.NoError(t, err)
	require.Nil(t, errResp)
	require.Equal(t, types.PhaseQuery, resp.NextPhase)

	resp, errResp, err = o.ProcessState(ctx, types.Message{
		SessionID: "s1", PhaseCompleted: types.PhaseQuery,
		Payload: types.Payload{"interpreted_goal": "build a widget dashboard"},
	})
	require.NoError(t, err)
	require.Nil(t, errResp)
	require.Equal(t, types.PhaseEnhance, resp.NextPhase)

	resp, errResp, err = o.ProcessState(ctx, types.Message{
		SessionID: "s1", PhaseCompleted: types.PhaseEnhance,
		Payload: types.Payload{"enhanced_goal": "build a widget dashboard with live charts"},
	})
	require.NoError(t, err)
	require.Nil(t, errResp)
	require.Equal(t, types.PhaseKnowledge, resp.NextPhase)
	assert.Equal(t, true, resp.Payload["knowledge_gathered"])

	resp, errResp, err = o.ProcessState(ctx, types.Message{
		SessionID: "s1", PhaseCompleted: types.PhaseKnowledge,
	})
	require.NoError(t, err)
	require.Nil(t, errResp)
	require.Equal(t, types.PhasePlan, resp.NextPhase)

	resp, errResp, err = o.ProcessState(ctx, types.Message{
		SessionID: "s1", PhaseCompleted: types.PhasePlan,
		Payload: types.Payload{
			"plan_created": true,
			"current_todos": []types.Todo{
				{ID: "t1", Content: "do it", Status: types.TodoPending, Priority: types.PriorityHigh},
			},
		},
	})
	require.NoError(t, err)
	require.Nil(t, errResp)
	require.Equal(t, types.PhaseExecute, resp.NextPhase)

	resp, errResp, err = o.ProcessState(ctx, types.Message{
		SessionID: "s1", PhaseCompleted: types.PhaseExecute,
		Payload: types.Payload{
			"current_task_index": 0,
			"execution_success":  true,
			"current_todos": []types.Todo{
				{ID: "t1", Content: "do it", Status: types.TodoCompleted, Priority: types.PriorityHigh},
			},
		},
	})
	require.NoError(t, err)
	require.Nil(t, errResp)
	require.Equal(t, types.PhaseVerify, resp.NextPhase)

	resp, errResp, err = o.ProcessState(ctx, types.Message{
		SessionID: "s1", PhaseCompleted: types.PhaseVerify,
	})
	require.NoError(t, err)
	require.Nil(t, errResp)
	assert.Equal(t, types.PhaseDone, resp.NextPhase)
	assert.Equal(t, types.StatusDone, resp.Status)
	assert.Empty(t, resp.AllowedNextTools)
}

func TestProcessState_KnowledgeAutoConnectionFailureIsNonFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	o := newTestOrchestrator(t, srv)
	ctx := context.Background()

	_, _, err := o.ProcessState(ctx, types.Message{SessionID: "s1", InitialObjective: "research topic"})
	require.NoError(t, err)
	_, _, err = o.ProcessState(ctx, types.Message{SessionID: "s1", PhaseCompleted: types.PhaseQuery})
	require.NoError(t, err)

	resp, errResp, err := o.ProcessState(ctx, types.Message{SessionID: "s1", PhaseCompleted: types.PhaseEnhance})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, types.PhaseKnowledge, resp.NextPhase)
	assert.Equal(t, false, resp.Payload["auto_connection_successful"])
	if errResp != nil {
		assert.Equal(t, types.ErrCodeKnowledgeAutoConnFailed, errResp.Code)
	}
}

func TestProcessState_InvalidSessionIDRejected(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	_, errResp, err := o.ProcessState(context.Background(), types.Message{SessionID: "has a space"})
	require.NoError(t, err)
	require.NotNil(t, errResp)
	assert.Equal(t, types.ErrCodeInvalidSessionID, errResp.Code)
}
