package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/mikan/convo/internal/metrics"
	"github.com/mikan/convo/pkg/history"
	"github.com/mikan/convo/pkg/provider"
	"github.com/mikan/convo/pkg/tool"
)

// eventBuffer sizes the per-turn event channel. Deltas stream faster than
// most consumers drain, so give them headroom.
const eventBuffer = 256

// Turn is one user prompt submitted to the loop.
type Turn struct {
	SessionID string
	Prompt    string
}

// Loop drives the agent execution cycle for one provider and tool set:
// model call, tool dispatch, result feedback, repeat until the model
// settles on a final answer.
type Loop struct {
	provider provider.Provider
	registry *tool.Registry
	executor *tool.Executor
	store    history.Store
	config   Config
	logger   zerolog.Logger
}

// Options wires a Loop.
type Options struct {
	Provider provider.Provider
	Registry *tool.Registry
	Executor *tool.Executor
	Store    history.Store
	Config   Config
	Logger   zerolog.Logger
}

// New creates a Loop, failing fast on missing dependencies, invalid
// configuration or enabled tool names absent from the registry.
func New(opts Options) (*Loop, error) {
	metrics.EnsureRegistered()

	if opts.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if opts.Executor == nil {
		return nil, fmt.Errorf("tool executor is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("history store is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := opts.Registry.Describe(opts.Config.Tools); err != nil {
		return nil, err
	}

	return &Loop{
		provider: opts.Provider,
		registry: opts.Registry,
		executor: opts.Executor,
		store:    opts.Store,
		config:   opts.Config,
		logger:   opts.Logger,
	}, nil
}

// Run executes one turn. The returned channel carries the turn's events
// in order and is closed after exactly one terminal event.
func (l *Loop) Run(ctx context.Context, turn Turn) <-chan Event {
	events := make(chan Event, eventBuffer)

	go func() {
		defer close(events)
		l.runTurn(ctx, turn, events)
	}()

	return events
}

func (l *Loop) runTurn(ctx context.Context, turn Turn, events chan<- Event) {
	start := time.Now()
	turnID, _ := gonanoid.New()
	logger := l.logger.With().
		Str("session_id", turn.SessionID).
		Str("turn_id", turnID).
		Logger()

	metrics.TurnStarted()
	defer metrics.TurnFinished()

	if l.config.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.config.TurnTimeout)
		defer cancel()
	}

	outcome := l.execute(ctx, turn, turnID, start, logger, events)
	metrics.RecordTurn(l.provider.Name(), outcome.label, time.Since(start), outcome.rounds)
}

type turnOutcome struct {
	label  string
	rounds int
}

func (l *Loop) execute(ctx context.Context, turn Turn, turnID string, start time.Time, logger zerolog.Logger, events chan<- Event) turnOutcome {
	tools := l.registry.List()
	if len(l.config.Tools) > 0 {
		var err error
		tools, err = l.registry.Describe(l.config.Tools)
		if err != nil {
			l.fail(events, ErrorKindModelFatal, err)
			return turnOutcome{label: "error"}
		}
	}

	past, err := l.store.History(ctx, turn.SessionID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load session history")
		l.fail(events, ErrorKindModelFatal, fmt.Errorf("failed to load session history: %w", err))
		return turnOutcome{label: "error"}
	}

	userMsg := history.Message{
		Role:      history.RoleUser,
		Content:   turn.Prompt,
		Timestamp: time.Now().UTC(),
	}
	if err := l.store.Append(ctx, turn.SessionID, []history.Message{userMsg}); err != nil {
		logger.Error().Err(err).Msg("Failed to persist user message")
		l.fail(events, ErrorKindModelFatal, fmt.Errorf("failed to persist user message: %w", err))
		return turnOutcome{label: "error"}
	}

	messages := append(past, userMsg)

	var (
		totalRetries int
		usage        provider.Usage
		allToolCalls []history.ToolCall
	)

	maxRounds := l.config.maxRounds()

	for round := 1; ; round++ {
		if round > maxRounds {
			logger.Warn().Int("max_rounds", maxRounds).Msg("Round limit exceeded")
			l.fail(events, ErrorKindRoundLimit, fmt.Errorf("round limit of %d exceeded", maxRounds))
			return turnOutcome{label: "round_limit", rounds: round - 1}
		}

		if ctx.Err() != nil {
			l.cancelled(events, logger)
			return turnOutcome{label: "cancelled", rounds: round - 1}
		}

		response, retries, err := l.callModel(ctx, messages, tools, events)
		totalRetries += retries
		if err != nil {
			if ctx.Err() != nil {
				l.cancelled(events, logger)
				return turnOutcome{label: "cancelled", rounds: round - 1}
			}
			kind := ErrorKindModelFatal
			if errors.Is(err, errRetriesExhausted) {
				kind = ErrorKindRetryExhausted
			}
			logger.Error().Err(err).Str("kind", string(kind)).Msg("Model call failed")
			l.fail(events, kind, err)
			return turnOutcome{label: string(kind), rounds: round}
		}

		usage.InputTokens += response.Usage.InputTokens
		usage.OutputTokens += response.Usage.OutputTokens
		metrics.RecordTokens(l.provider.Name(), response.Usage.InputTokens, response.Usage.OutputTokens)

		assistantMsg := history.Message{
			Role:      history.RoleAssistant,
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
			Timestamp: time.Now().UTC(),
		}

		if len(response.ToolCalls) == 0 {
			if err := l.store.Append(ctx, turn.SessionID, []history.Message{assistantMsg}); err != nil {
				logger.Error().Err(err).Msg("Failed to persist assistant message")
				l.fail(events, ErrorKindModelFatal, fmt.Errorf("failed to persist assistant message: %w", err))
				return turnOutcome{label: "error", rounds: round}
			}

			l.send(events, Event{Type: EventTurnComplete, Result: &TurnResult{
				TurnID:    turnID,
				SessionID: turn.SessionID,
				Content:   response.Content,
				ToolCalls: allToolCalls,
				Rounds:    round,
				Retries:   totalRetries,
				Usage:     usage,
				Duration:  time.Since(start),
			}})
			logger.Info().Int("rounds", round).Int("retries", totalRetries).Msg("Turn complete")
			return turnOutcome{label: "success", rounds: round}
		}

		results := l.dispatchTools(ctx, response.ToolCalls, events)
		if ctx.Err() != nil {
			// Results of a cancelled round are discarded, not persisted.
			l.cancelled(events, logger)
			return turnOutcome{label: "cancelled", rounds: round}
		}

		toolMsgs := make([]history.Message, 0, len(results))
		for _, result := range results {
			content := result.Output
			if !result.Success {
				content = result.Error
			}
			toolMsgs = append(toolMsgs, history.Message{
				Role:       history.RoleTool,
				Content:    content,
				ToolCallID: result.CallID,
				Timestamp:  time.Now().UTC(),
				Metadata:   map[string]any{"success": result.Success, "tool": result.Tool},
			})
		}

		if err := l.store.Append(ctx, turn.SessionID, append([]history.Message{assistantMsg}, toolMsgs...)); err != nil {
			logger.Error().Err(err).Msg("Failed to persist tool round")
			l.fail(events, ErrorKindModelFatal, fmt.Errorf("failed to persist tool round: %w", err))
			return turnOutcome{label: "error", rounds: round}
		}

		for i := range results {
			result := results[i]
			l.send(events, Event{Type: EventToolCallResult, ToolResult: &result})
		}

		messages = append(messages, assistantMsg)
		messages = append(messages, toolMsgs...)
		allToolCalls = append(allToolCalls, response.ToolCalls...)
	}
}

// dispatchTools executes a round's tool calls concurrently and returns
// the results re-ordered to match the model's call order.
func (l *Loop) dispatchTools(ctx context.Context, calls []history.ToolCall, events chan<- Event) []tool.Result {
	for i := range calls {
		call := calls[i]
		l.send(events, Event{Type: EventToolCallStarted, ToolCall: &call})
	}

	results := make([]tool.Result, len(calls))

	var wg sync.WaitGroup
	for i := range calls {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			call := calls[i]
			result := l.executor.Execute(ctx, call.ID, call.Name, call.Args)
			metrics.RecordToolExecution(call.Name, result.Duration, result.Success)
			results[i] = result
		}(i)
	}
	wg.Wait()

	return results
}

// callModel streams one completion with bounded exponential backoff on
// transient failures. It returns how many retries were spent.
func (l *Loop) callModel(ctx context.Context, messages []history.Message, tools []tool.Descriptor, events chan<- Event) (*provider.Response, int, error) {
	req := provider.Request{
		Model:        l.config.Model,
		SystemPrompt: l.config.SystemPrompt,
		Messages:     messages,
		Tools:        tools,
		Temperature:  l.config.Temperature,
		MaxTokens:    l.config.MaxTokens,
	}

	deltas := 0
	onDelta := func(delta string) {
		deltas++
		l.send(events, Event{Type: EventContentDelta, Delta: delta})
	}

	maxRetries := l.config.maxRetries()
	backoff := l.config.retryBackoff()

	var lastErr error
	retries := 0

	for attempt := 0; attempt < maxRetries; attempt++ {
		deltas = 0
		response, err := l.provider.Stream(ctx, req, onDelta)
		if err == nil {
			return response, retries, nil
		}

		lastErr = err

		if ctx.Err() != nil {
			return nil, retries, ctx.Err()
		}
		if !provider.IsTransient(err) {
			return nil, retries, err
		}
		if deltas > 0 {
			// A retry would replay content the consumer already saw.
			return nil, retries, fmt.Errorf("model stream failed after partial output: %w", err)
		}

		if attempt == maxRetries-1 {
			break
		}

		retries++
		metrics.RecordRetry(l.provider.Name())
		l.logger.Warn().Err(err).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("Retrying model call")

		select {
		case <-ctx.Done():
			return nil, retries, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return nil, retries, fmt.Errorf("%w (%d attempts): %v", errRetriesExhausted, maxRetries, lastErr)
}

var errRetriesExhausted = errors.New("model call retries exhausted")

func (l *Loop) fail(events chan<- Event, kind ErrorKind, err error) {
	l.send(events, Event{
		Type:         EventError,
		ErrorKind:    kind,
		ErrorMessage: err.Error(),
	})
}

func (l *Loop) cancelled(events chan<- Event, logger zerolog.Logger) {
	logger.Info().Msg("Turn cancelled")
	l.send(events, Event{Type: EventCancelled})
}

// send delivers an event. Terminal events block until the consumer takes
// them, so a turn's stream always ends with one; a full buffer drops
// progress events instead of stalling the loop.
func (l *Loop) send(events chan<- Event, ev Event) {
	if ev.Terminal() {
		events <- ev
		return
	}
	select {
	case events <- ev:
	default:
		l.logger.Debug().Str("type", string(ev.Type)).Msg("Dropping event on full buffer")
	}
}
