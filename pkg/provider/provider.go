package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/mikan/convo/pkg/history"
	"github.com/mikan/convo/pkg/tool"
)

// Request carries one completion request to a model provider.
type Request struct {
	Model        string
	SystemPrompt string
	Messages     []history.Message
	Tools        []tool.Descriptor
	Temperature  float64
	MaxTokens    int
}

// Usage tracks token consumption for one completion.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is a settled model response: final text plus any tool calls
// the model requested.
type Response struct {
	Content   string
	ToolCalls []history.ToolCall
	Usage     Usage
}

// Provider is a model API client. Stream forwards text deltas in
// generation order through onDelta and still returns the settled response.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
	Stream(ctx context.Context, req Request, onDelta func(delta string)) (*Response, error)
}

// Options configures a concrete provider.
type Options struct {
	Name    string // "anthropic" or "openai"
	APIKey  string
	BaseURL string
}

// New builds the provider selected by opts.Name.
func New(opts Options) (Provider, error) {
	switch opts.Name {
	case "anthropic":
		return NewAnthropic(opts.APIKey, opts.BaseURL), nil
	case "openai":
		return NewOpenAI(opts.APIKey, opts.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", opts.Name)
	}
}

// IsTransient reports whether a provider error is worth retrying:
// rate limits, server-side faults and network hiccups. Auth and request
// validation failures are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())

	for _, marker := range []string{
		"econnreset",
		"etimedout",
		"connection refused",
		"connection reset",
		"rate limit",
		"rate_limit",
		"overloaded",
		"429",
		"500",
		"502",
		"503",
		"504",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}
