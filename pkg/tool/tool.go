package tool

import "context"

// Param describes one input parameter of a tool.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // string, number, integer, boolean, object, array
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Descriptor is the model-facing description of a tool.
type Descriptor struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"parameters"`
}

// InputSchema renders the descriptor's parameters as a JSON Schema object,
// the shape providers send to the model.
func (d Descriptor) InputSchema() map[string]any {
	properties := make(map[string]any, len(d.Params))
	required := []string{}

	for _, p := range d.Params {
		properties[p.Name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Tool is a callable capability exposed to the model.
type Tool interface {
	Name() string
	Description() string
	Params() []Param

	// Execute runs the tool with arguments already validated against the
	// declared parameters. It must honor ctx cancellation.
	Execute(ctx context.Context, args map[string]any) (any, error)
}
