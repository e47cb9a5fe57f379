package tool

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTool struct {
	name        string
	description string
	params      []Param
	execute     func(ctx context.Context, args map[string]any) (any, error)
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return f.description }
func (f *fakeTool) Params() []Param     { return f.params }

func (f *fakeTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	if f.execute == nil {
		return "ok", nil
	}
	return f.execute(ctx, args)
}

func newFakeTool(name string) *fakeTool {
	return &fakeTool{
		name:        name,
		description: "a fake tool",
		params: []Param{
			{Name: "input", Type: "string", Description: "test input", Required: true},
		},
	}
}

func TestRegistryRegister(t *testing.T) {
	t.Run("should register a valid tool", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(newFakeTool("alpha")))
		assert.Equal(t, 1, r.Len())
		assert.True(t, r.Has("alpha"))
	})

	t.Run("should reject duplicate names", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(newFakeTool("alpha")))

		err := r.Register(newFakeTool("alpha"))
		assert.ErrorIs(t, err, ErrDuplicateTool)
	})

	t.Run("should reject re-registering the same instance", func(t *testing.T) {
		r := NewRegistry()
		tl := newFakeTool("alpha")
		require.NoError(t, r.Register(tl))

		err := r.Register(tl)
		assert.ErrorIs(t, err, ErrDuplicateTool)
	})

	t.Run("should reject empty name", func(t *testing.T) {
		r := NewRegistry()
		err := r.Register(newFakeTool(""))
		assert.Error(t, err)
	})

	t.Run("should reject empty description", func(t *testing.T) {
		r := NewRegistry()
		tl := newFakeTool("alpha")
		tl.description = ""
		err := r.Register(tl)
		assert.Error(t, err)
	})

	t.Run("should reject invalid parameter type", func(t *testing.T) {
		r := NewRegistry()
		tl := newFakeTool("alpha")
		tl.params = []Param{{Name: "x", Type: "float", Description: "bad type"}}
		err := r.Register(tl)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid parameter type")
	})
}

func TestRegistryGet(t *testing.T) {
	t.Run("should return registered tool", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(newFakeTool("alpha")))

		tl, err := r.Get("alpha")
		require.NoError(t, err)
		assert.Equal(t, "alpha", tl.Name())
	})

	t.Run("should fail for unknown tool", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Get("missing")
		assert.ErrorIs(t, err, ErrToolNotFound)
	})
}

func TestRegistryList(t *testing.T) {
	t.Run("should list in registration order", func(t *testing.T) {
		r := NewRegistry()
		for _, name := range []string{"zeta", "alpha", "mid"} {
			require.NoError(t, r.Register(newFakeTool(name)))
		}

		descriptors := r.List()
		require.Len(t, descriptors, 3)
		assert.Equal(t, "zeta", descriptors[0].Name)
		assert.Equal(t, "alpha", descriptors[1].Name)
		assert.Equal(t, "mid", descriptors[2].Name)
	})

	t.Run("should keep order stable across calls", func(t *testing.T) {
		r := NewRegistry()
		for i := 0; i < 10; i++ {
			require.NoError(t, r.Register(newFakeTool(fmt.Sprintf("tool-%d", i))))
		}

		first := r.List()
		second := r.List()
		assert.Equal(t, first, second)
	})
}

func TestRegistryDescribe(t *testing.T) {
	t.Run("should describe named tools in given order", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(newFakeTool("alpha")))
		require.NoError(t, r.Register(newFakeTool("beta")))

		descriptors, err := r.Describe([]string{"beta", "alpha"})
		require.NoError(t, err)
		require.Len(t, descriptors, 2)
		assert.Equal(t, "beta", descriptors[0].Name)
		assert.Equal(t, "alpha", descriptors[1].Name)
	})

	t.Run("should fail for unknown name", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Describe([]string{"nope"})
		assert.ErrorIs(t, err, ErrToolNotFound)
	})
}

func TestDescriptorInputSchema(t *testing.T) {
	t.Run("should include required fields", func(t *testing.T) {
		d := Descriptor{
			Name: "demo",
			Params: []Param{
				{Name: "a", Type: "string", Description: "first", Required: true},
				{Name: "b", Type: "number", Description: "second"},
			},
		}

		schema := d.InputSchema()
		assert.Equal(t, "object", schema["type"])
		assert.Equal(t, []string{"a"}, schema["required"])

		properties := schema["properties"].(map[string]any)
		assert.Contains(t, properties, "a")
		assert.Contains(t, properties, "b")
	})

	t.Run("should omit required when no params are required", func(t *testing.T) {
		d := Descriptor{Name: "demo", Params: []Param{{Name: "a", Type: "string", Description: "x"}}}
		schema := d.InputSchema()
		assert.NotContains(t, schema, "required")
	})
}
