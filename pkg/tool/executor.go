package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// ErrorKind classifies why a tool call failed.
type ErrorKind string

const (
	ErrorKindNone       ErrorKind = ""
	ErrorKindNotFound   ErrorKind = "not_found"
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindExecution  ErrorKind = "execution"
	ErrorKindTimeout    ErrorKind = "timeout"
)

// Result is the uniform outcome of one tool call. Failures are data, not
// errors: they flow back into the conversation so the model can correct
// itself, and never terminate the agent loop.
type Result struct {
	CallID   string        `json:"call_id"`
	Tool     string        `json:"tool"`
	Success  bool          `json:"success"`
	Output   string        `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Kind     ErrorKind     `json:"kind,omitempty"`
	Duration time.Duration `json:"-"`
}

// DefaultTimeout bounds a single tool call when the executor is not given
// an explicit timeout.
const DefaultTimeout = 30 * time.Second

const maxOutputBytes = 10 * 1024

// Executor resolves, validates and invokes tool calls against a Registry.
type Executor struct {
	registry *Registry
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewExecutor creates an executor. A non-positive timeout falls back to
// DefaultTimeout.
func NewExecutor(registry *Registry, timeout time.Duration, logger zerolog.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{
		registry: registry,
		timeout:  timeout,
		logger:   logger,
	}
}

// Execute runs one tool call and normalizes every outcome into a Result.
// Schema-invalid arguments, handler errors, handler panics and timeouts
// all produce Success=false results.
func (e *Executor) Execute(ctx context.Context, callID, name string, args map[string]any) Result {
	start := time.Now()
	logger := e.logger.With().Str("tool", name).Str("call_id", callID).Logger()

	t, err := e.registry.Get(name)
	if err != nil {
		logger.Warn().Msg("Tool not found")
		return Result{
			CallID:   callID,
			Tool:     name,
			Success:  false,
			Error:    err.Error(),
			Kind:     ErrorKindNotFound,
			Duration: time.Since(start),
		}
	}

	if err := e.validateArgs(name, args); err != nil {
		logger.Warn().Err(err).Msg("Tool argument validation failed")
		return Result{
			CallID:   callID,
			Tool:     name,
			Success:  false,
			Error:    err.Error(),
			Kind:     ErrorKindValidation,
			Duration: time.Since(start),
		}
	}

	logger.Debug().Msg("Executing tool")

	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		output any
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		output, err := t.Execute(execCtx, args)
		done <- outcome{output: output, err: err}
	}()

	select {
	case out := <-done:
		duration := time.Since(start)
		if out.err != nil {
			logger.Warn().Dur("duration", duration).Err(out.err).Msg("Tool execution failed")
			return Result{
				CallID:   callID,
				Tool:     name,
				Success:  false,
				Error:    out.err.Error(),
				Kind:     ErrorKindExecution,
				Duration: duration,
			}
		}

		logger.Debug().Dur("duration", duration).Msg("Tool execution completed")
		return Result{
			CallID:   callID,
			Tool:     name,
			Success:  true,
			Output:   truncateOutput(fmt.Sprintf("%v", out.output)),
			Duration: duration,
		}

	case <-execCtx.Done():
		duration := time.Since(start)
		if errors.Is(ctx.Err(), context.Canceled) {
			logger.Debug().Dur("duration", duration).Msg("Tool execution cancelled")
			return Result{
				CallID:   callID,
				Tool:     name,
				Success:  false,
				Error:    "tool execution cancelled",
				Kind:     ErrorKindExecution,
				Duration: duration,
			}
		}

		logger.Warn().Dur("duration", duration).Msg("Tool execution timeout")
		return Result{
			CallID:   callID,
			Tool:     name,
			Success:  false,
			Error:    fmt.Sprintf("tool execution timeout after %v", e.timeout),
			Kind:     ErrorKindTimeout,
			Duration: duration,
		}
	}
}

func (e *Executor) validateArgs(name string, args map[string]any) error {
	schema := e.registry.schema(name)
	if schema == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return fmt.Errorf("invalid arguments: %s", strings.Join(details, "; "))
	}
	return nil
}

func truncateOutput(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	return s[:maxOutputBytes] + "\n... [output truncated]"
}
