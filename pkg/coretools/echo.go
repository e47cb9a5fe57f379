package coretools

import (
	"context"
	"fmt"

	"github.com/mikan/convo/pkg/tool"
)

// Echo returns its input unchanged. Handy for wiring checks and demos.
type Echo struct{}

func (e *Echo) Name() string { return "echo" }

func (e *Echo) Description() string {
	return "Returns the given text unchanged."
}

func (e *Echo) Params() []tool.Param {
	return []tool.Param{
		{
			Name:        "text",
			Type:        "string",
			Description: "The text to echo back",
			Required:    true,
		},
	}
}

func (e *Echo) Execute(ctx context.Context, args map[string]any) (any, error) {
	text, ok := args["text"].(string)
	if !ok {
		return nil, fmt.Errorf("text must be a string")
	}
	return text, nil
}
