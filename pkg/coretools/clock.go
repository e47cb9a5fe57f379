package coretools

import (
	"context"
	"time"

	"github.com/mikan/convo/pkg/tool"
)

// Clock reports the current time, optionally in a caller-supplied format.
type Clock struct {
	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time
}

func (c *Clock) Name() string { return "time" }

func (c *Clock) Description() string {
	return "Returns the current date and time, optionally formatted with a Go time layout."
}

func (c *Clock) Params() []tool.Param {
	return []tool.Param{
		{
			Name:        "format",
			Type:        "string",
			Description: "Optional Go time layout, e.g. \"2006-01-02\". Defaults to RFC 3339.",
		},
	}
}

func (c *Clock) Execute(ctx context.Context, args map[string]any) (any, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	layout := time.RFC3339
	if f, ok := args["format"].(string); ok && f != "" {
		layout = f
	}

	return now().Format(layout), nil
}
