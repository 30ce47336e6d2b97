// ABOUTME: The decide/act state machine that drives one run to completion.
// ABOUTME: Dispatches oracle-requested operations and folds every failure into results.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/oakmail/steward/internal/registry"
)

// DefaultMaxRounds caps decide/act cycles per run. The reference
// behavior is uncapped, which risks spinning forever on a stuck oracle.
const DefaultMaxRounds = 10

// DefaultCorrelationField is the argument name the repair step injects
// the run's correlation id into.
const DefaultCorrelationField = "message_id"

// ErrOracleFailed wraps unrecoverable oracle errors. There is no
// fallback decision-maker, so these are the one failure class that
// escapes a run.
var ErrOracleFailed = errors.New("oracle failed")

// Oracle decides the next step from a message history and the operation
// catalog. The loop owns message framing; the oracle owns reasoning.
type Oracle interface {
	Decide(ctx context.Context, history []Message, operations []registry.OperationDescriptor) (AssistantMessage, error)
}

// operationCaller dispatches one operation call to its owning backend.
type operationCaller interface {
	CallOperation(ctx context.Context, backendID, name string, arguments map[string]any) (string, error)
}

// transcriptRecorder receives every message the loop appends. Recording
// is best-effort; failures are logged and never affect the run.
type transcriptRecorder interface {
	SaveMessage(ctx context.Context, runID string, msg Message) error
}

// Loop executes runs against a fixed registry, oracle, and caller. One
// Loop serves many concurrent runs; all per-run state lives in State.
type Loop struct {
	oracle           Oracle
	registry         *registry.Registry
	caller           operationCaller
	recorder         transcriptRecorder
	logger           *slog.Logger
	maxRounds        int
	correlationField string
}

// Option configures a Loop.
type Option func(*Loop)

// WithMaxRounds overrides the decide/act round cap.
func WithMaxRounds(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxRounds = n
		}
	}
}

// WithCorrelationField overrides the argument name used by the
// correlation injection step.
func WithCorrelationField(name string) Option {
	return func(l *Loop) {
		if name != "" {
			l.correlationField = name
		}
	}
}

// WithRecorder attaches a transcript recorder.
func WithRecorder(r transcriptRecorder) Option {
	return func(l *Loop) {
		l.recorder = r
	}
}

// NewLoop creates a Loop. The registry must already be discovered; the
// loop never mutates it.
func NewLoop(oracle Oracle, reg *registry.Registry, caller operationCaller, logger *slog.Logger, opts ...Option) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loop{
		oracle:           oracle,
		registry:         reg,
		caller:           caller,
		logger:           logger.With("component", "orchestrator"),
		maxRounds:        DefaultMaxRounds,
		correlationField: DefaultCorrelationField,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run drives state through decide/act phases until the oracle produces
// a final answer, the round cap is reached, or ctx is cancelled. The
// returned message is the final answer. The only errors are context
// cancellation and ErrOracleFailed-wrapped oracle errors.
func (l *Loop) Run(ctx context.Context, state *State) (AssistantMessage, error) {
	logger := l.logger.With("run_id", state.RunID, "correlation_id", state.CorrelationID)

	for round := 1; round <= l.maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return AssistantMessage{}, err
		}

		// Decide.
		history := FilterHistory(state.Messages)
		decision, err := l.oracle.Decide(ctx, history, l.registry.List())
		if err != nil {
			return AssistantMessage{}, fmt.Errorf("%w: %v", ErrOracleFailed, err)
		}
		l.ensureCallIDs(&decision)

		state.Append(decision)
		l.record(ctx, state.RunID, decision)

		if len(decision.RequestedCalls) == 0 {
			logger.Info("run finished", "rounds", round)
			return decision, nil
		}
		logger.Info("oracle requested operations",
			"round", round,
			"count", len(decision.RequestedCalls),
			"operations", callNames(decision.RequestedCalls),
		)

		// Act.
		results := l.act(ctx, state, decision.RequestedCalls)
		for _, res := range results {
			state.Append(res)
			l.record(ctx, state.RunID, res)
		}
	}

	final := AssistantMessage{
		Text: fmt.Sprintf("Stopped after %d decide/act rounds without reaching a final answer.", l.maxRounds),
	}
	state.Append(final)
	l.record(ctx, state.RunID, final)
	logger.Warn("round cap reached", "max_rounds", l.maxRounds)
	return final, nil
}

// act executes every requested call and returns one result per call, in
// request order. Dispatch is concurrent; ordering is restored before
// anything reaches the history.
func (l *Loop) act(ctx context.Context, state *State, calls []OperationCall) []OperationResult {
	results := make([]OperationResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call OperationCall) {
			defer wg.Done()
			results[i] = l.execute(ctx, state, call)
		}(i, call)
	}
	wg.Wait()

	return results
}

// execute runs the validation/repair checks and dispatches one call.
// Every failure mode folds into the returned result's text.
func (l *Loop) execute(ctx context.Context, state *State, call OperationCall) OperationResult {
	logger := l.logger.With("run_id", state.RunID, "operation", call.Name)

	desc, ok := l.registry.Lookup(call.Name)
	if !ok {
		logger.Error("oracle requested unknown operation", "valid", l.registry.Names())
		return OperationResult{
			CallID:        call.ID,
			OperationName: call.Name,
			Text: fmt.Sprintf("ERROR: operation %q does not exist. Valid operations: %s. Use only operations from this list.",
				call.Name, strings.Join(l.registry.Names(), ", ")),
		}
	}

	args := call.Arguments
	if args == nil {
		args = make(map[string]any)
	}

	// Repair-by-injection: the one piece of implicit state the act phase
	// may use. Everything else missing is the backend's to reject.
	if desc.Requires(l.correlationField) && state.CorrelationID != "" {
		if current, _ := args[l.correlationField].(string); current == "" {
			args[l.correlationField] = state.CorrelationID
			logger.Info("injected correlation id into arguments", "field", l.correlationField)
		}
	}

	text, err := l.caller.CallOperation(ctx, desc.BackendID, call.Name, args)
	if err != nil {
		logger.Error("operation failed", "backend", desc.BackendID, "error", err)
		return OperationResult{
			CallID:        call.ID,
			OperationName: call.Name,
			Text:          fmt.Sprintf("Error executing operation %q: %v", call.Name, err),
		}
	}

	logger.Debug("operation succeeded", "backend", desc.BackendID, "result_len", len(text))
	return OperationResult{
		CallID:        call.ID,
		OperationName: call.Name,
		Text:          text,
	}
}

// ensureCallIDs assigns ids to requested calls that arrived without
// one, so results can always be correlated.
func (l *Loop) ensureCallIDs(msg *AssistantMessage) {
	for i := range msg.RequestedCalls {
		if msg.RequestedCalls[i].ID == "" {
			msg.RequestedCalls[i].ID = uuid.New().String()
		}
	}
}

func (l *Loop) record(ctx context.Context, runID string, msg Message) {
	if l.recorder == nil {
		return
	}
	if err := l.recorder.SaveMessage(ctx, runID, msg); err != nil {
		l.logger.Error("failed to record transcript message", "run_id", runID, "error", err)
	}
}

func callNames(calls []OperationCall) []string {
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.Name
	}
	return names
}
