// Package orchestrator implements ProcessState (§6, C10): the single
// boundary operation that loads a session, computes its next phase,
// triggers knowledge auto-connection when entering KNOWLEDGE, assembles
// the next prompt, and persists the result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dnnyngyen/phasecore/internal/config"
	"github.com/dnnyngyen/phasecore/internal/fetch"
	"github.com/dnnyngyen/phasecore/internal/obslog"
	"github.com/dnnyngyen/phasecore/internal/phase"
	"github.com/dnnyngyen/phasecore/internal/registry"
	"github.com/dnnyngyen/phasecore/internal/roleengine"
	"github.com/dnnyngyen/phasecore/internal/session"
	"github.com/dnnyngyen/phasecore/internal/synthesis"
	"github.com/dnnyngyen/phasecore/internal/types"
	"github.com/dnnyngyen/phasecore/internal/verify"
)

// Orchestrator wires the session store, knowledge pipeline, and
// role/prompt engine behind the single ProcessState operation.
type Orchestrator struct {
	store   *session.Store
	catalog *registry.Catalog
	fetcher *fetch.Fetcher
	cfg     *config.Config
	logger  *zap.Logger
}

// New builds an Orchestrator. logger may be nil, in which case a no-op
// logger is used.
func New(store *session.Store, catalog *registry.Catalog, fetcher *fetch.Fetcher, cfg *config.Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = obslog.Noop()
	}
	return &Orchestrator{store: store, catalog: catalog, fetcher: fetcher, cfg: cfg, logger: logger}
}

func (o *Orchestrator) thresholds() verify.Thresholds {
	return verify.Thresholds{
		CompletionPercent:    o.cfg.Verify.CompletionThreshold,
		ExecutionSuccessRate: o.cfg.Verify.ExecutionSuccessRate,
	}
}

// ProcessState is the module's single operation. The returned *types.ErrorResponse
// carries a mapped failure: for a knowledge auto-connection failure the
// session still advanced and resp is valid; for every other code (invalid
// session id, initial_objective misuse, stale revision, store error) resp is
// nil and the session did not advance. A non-nil error is a fatal invariant
// violation that left the session untouched at its pre-call revision.
func (o *Orchestrator) ProcessState(ctx context.Context, msg types.Message) (*types.Response, *types.ErrorResponse, error) {
	auditID := uuid.NewString()

	if !types.ValidSessionID(msg.SessionID) {
		return nil, &types.ErrorResponse{Code: types.ErrCodeInvalidSessionID, Message: "session_id failed validation"}, nil
	}

	if moved, err := o.store.MaybeSweep(session.DefaultArchiveAfter, session.DefaultSweepInterval); err == nil && len(moved) > 0 {
		o.logger.Info("archived inactive sessions", zap.Strings("session_ids", moved))
	}

	existing, getErr := o.store.Get(msg.SessionID)
	exists := getErr == nil

	if exists && msg.InitialObjective != "" {
		return nil, &types.ErrorResponse{
			Code: types.ErrCodeMissingInitialObjective, Message: "initial_objective is forbidden on an existing session",
			Phase: existing.CurrentPhase,
		}, nil
	}

	if !exists {
		if msg.InitialObjective == "" {
			return nil, &types.ErrorResponse{Code: types.ErrCodeMissingInitialObjective, Message: "initial_objective is required to start a new session"}, nil
		}

		fresh := &types.Session{
			SessionID:              msg.SessionID,
			CurrentPhase:           types.PhaseInit,
			InitialObjective:       msg.InitialObjective,
			DetectedRole:           roleengine.DetectRole(msg.InitialObjective),
			ReasoningEffectiveness: types.InitialReasoningEffectiveness,
			Payload:                types.Payload{},
			LastActivity:           time.Now(),
		}
		if err := o.store.Create(fresh); err != nil {
			return nil, &types.ErrorResponse{Code: types.ErrCodeInternalStoreError, Message: err.Error()}, nil
		}
		existing = fresh
	}

	expectedRevision := existing.Revision
	if raw, ok := msg.Payload["expect_revision"]; ok {
		expectedRevision = coerceRevision(raw)
	}

	var (
		assembledPrompt string
		allowedTools    []string
		autoConnFailed  bool
		autoConnErr     error
	)

	updated, err := o.store.Update(msg.SessionID, expectedRevision, func(sess *types.Session) error {
		if msg.Role != "" && msg.Role.Valid() &&
			sess.CurrentPhase == types.PhaseQuery && msg.PhaseCompleted == types.PhaseQuery {
			sess.DetectedRole = msg.Role
		}

		out, terr := phase.Transition(sess, msg, o.thresholds())
		if terr != nil {
			return terr
		}

		payload := out.Payload
		delete(payload, "expect_revision")

		if out.Next == types.PhaseKnowledge && !out.NoOp && o.cfg.Knowledge.AutoConnectionEnabled {
			merged, cerr := o.runAutoConnection(ctx, sess, payload)
			if cerr != nil {
				autoConnFailed = true
				autoConnErr = cerr
				payload = payload.Merge(types.Payload{"auto_connection_successful": false})
			} else {
				payload = merged
			}
		}

		payload = payload.Merge(types.Payload{"detected_role": sess.DetectedRole})

		sess.CurrentPhase = out.Next
		sess.Payload = payload
		sess.PhaseTransitionCount++
		if out.EffectivenessDelta != 0 {
			sess.ReasoningEffectiveness = types.ClampEffectiveness(sess.ReasoningEffectiveness + out.EffectivenessDelta)
		}

		assembledPrompt = roleengine.Assemble(sess.CurrentPhase, sess.DetectedRole, sess.InitialObjective, sess.SessionID, sess.Payload)
		allowedTools = phase.Capabilities[sess.CurrentPhase]

		return nil
	})

	if err != nil {
		if errors.Is(err, types.ErrStaleRevision) {
			return nil, &types.ErrorResponse{Code: types.ErrCodeStaleRevision, Message: err.Error()}, nil
		}
		if errors.Is(err, types.ErrUnknownPhase) || errors.Is(err, types.ErrInvariantViolation) {
			return nil, nil, err
		}
		return nil, &types.ErrorResponse{Code: types.ErrCodeInternalStoreError, Message: err.Error()}, nil
	}

	status := types.StatusInProgress
	if updated.CurrentPhase == types.PhaseDone {
		status = types.StatusDone
	}

	resp := &types.Response{
		NextPhase:        updated.CurrentPhase,
		SystemPrompt:     assembledPrompt,
		AllowedNextTools: allowedTools,
		Status:           status,
		Payload:          updated.Payload,
		Revision:         updated.Revision,
	}

	o.logger.Info("phase transition",
		zap.String("audit_id", auditID),
		zap.String("session_id", msg.SessionID),
		zap.String("phase", string(updated.CurrentPhase)),
		zap.Int64("revision", updated.Revision),
	)

	if autoConnFailed {
		o.logger.Warn("knowledge auto-connection failed", zap.String("session_id", msg.SessionID), zap.Error(autoConnErr))
		return resp, &types.ErrorResponse{
			Code: types.ErrCodeKnowledgeAutoConnFailed, Message: autoConnErr.Error(), Phase: updated.CurrentPhase,
		}, nil
	}
	return resp, nil, nil
}

// runAutoConnection performs §4.5's Steps A-C: select candidate endpoints,
// fetch them, and synthesize the results into the payload.
func (o *Orchestrator) runAutoConnection(ctx context.Context, sess *types.Session, payload types.Payload) (types.Payload, error) {
	objective := payload.String("enhanced_goal")
	if objective == "" {
		objective = sess.InitialObjective
	}

	scored := o.catalog.Select(objective, sess.DetectedRole, o.cfg.Knowledge.TopK)
	if len(scored) == 0 {
		return payload.Merge(types.Payload{
			"auto_connection_successful": true,
			"knowledge_gathered":         false,
		}), nil
	}

	targets := make([]fetch.Target, len(scored))
	for i, s := range scored {
		targets[i] = fetch.Target{Endpoint: s.Endpoint, Query: objective}
	}

	results, err := o.fetcher.FetchAll(ctx, targets)
	if err != nil {
		return payload, fmt.Errorf("fetch knowledge sources: %w", err)
	}

	synth := synthesis.Synthesize(results, synthesis.Options{MaxResponseSize: o.cfg.Knowledge.MaxResponseSize})

	reached := 0
	for _, r := range results {
		if r.Success {
			reached++
		}
	}

	return payload.Merge(types.Payload{
		"knowledge_gathered":         true,
		"synthesized_knowledge":      synth.Answer,
		"knowledge_confidence":       synth.Confidence,
		"knowledge_contradictions":   synth.Contradictions,
		"auto_connection_successful": reached > 0,
		"api_discovery_results":      len(scored),
		"api_usage_metrics":          map[string]any{"endpoints_selected": len(scored), "endpoints_reached": reached},
	}), nil
}

func coerceRevision(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
