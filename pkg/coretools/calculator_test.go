package coretools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikan/convo/pkg/tool"
)

func TestCalculator(t *testing.T) {
	ctx := context.Background()
	calc := &Calculator{}

	t.Run("should evaluate expressions", func(t *testing.T) {
		cases := []struct {
			expression string
			want       string
		}{
			{"15 * 27", "405"},
			{"1 + 2", "3"},
			{"10 - 4", "6"},
			{"8 / 2", "4"},
			{"2 + 3 * 4", "14"},
			{"(2 + 3) * 4", "20"},
			{"-5 + 3", "-2"},
			{"2 * (3 + (4 - 1))", "12"},
			{"7 / 2", "3.5"},
			{"2 * -3", "-6"},
			{"10 / -2", "-5"},
			{"3 - -2", "5"},
			{"-(2 + 3)", "-5"},
			{"--4", "4"},
		}

		for _, tc := range cases {
			result, err := calc.Execute(ctx, map[string]any{"expression": tc.expression})
			require.NoError(t, err, tc.expression)
			assert.Equal(t, tc.want, result, tc.expression)
		}
	})

	t.Run("should reject invalid expressions", func(t *testing.T) {
		for _, expression := range []string{
			"",
			"  ",
			"1 +",
			"(1 + 2",
			"1 + 2)",
			"foo",
			"1 ** 2",
			"5 / 0",
		} {
			_, err := calc.Execute(ctx, map[string]any{"expression": expression})
			assert.Error(t, err, expression)
		}
	})

	t.Run("should reject non-string expression", func(t *testing.T) {
		_, err := calc.Execute(ctx, map[string]any{"expression": 42})
		assert.Error(t, err)
	})
}

func TestClock(t *testing.T) {
	ctx := context.Background()

	t.Run("should format with default layout", func(t *testing.T) {
		fixed := time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)
		clock := &Clock{Now: func() time.Time { return fixed }}

		result, err := clock.Execute(ctx, map[string]any{})
		require.NoError(t, err)
		assert.Equal(t, "2024-06-01T12:30:00Z", result)
	})

	t.Run("should honor a custom layout", func(t *testing.T) {
		fixed := time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)
		clock := &Clock{Now: func() time.Time { return fixed }}

		result, err := clock.Execute(ctx, map[string]any{"format": "2006-01-02"})
		require.NoError(t, err)
		assert.Equal(t, "2024-06-01", result)
	})
}

func TestEcho(t *testing.T) {
	ctx := context.Background()
	echo := &Echo{}

	t.Run("should return input unchanged", func(t *testing.T) {
		result, err := echo.Execute(ctx, map[string]any{"text": "hello"})
		require.NoError(t, err)
		assert.Equal(t, "hello", result)
	})

	t.Run("should reject non-string input", func(t *testing.T) {
		_, err := echo.Execute(ctx, map[string]any{"text": 1})
		assert.Error(t, err)
	})
}

func TestRegisterAll(t *testing.T) {
	t.Run("should register all built-ins in stable order", func(t *testing.T) {
		registry := tool.NewRegistry()
		require.NoError(t, RegisterAll(registry))

		descriptors := registry.List()
		require.Len(t, descriptors, 3)
		assert.Equal(t, "calculator", descriptors[0].Name)
		assert.Equal(t, "time", descriptors[1].Name)
		assert.Equal(t, "echo", descriptors[2].Name)
	})

	t.Run("should fail on double registration", func(t *testing.T) {
		registry := tool.NewRegistry()
		require.NoError(t, RegisterAll(registry))
		assert.ErrorIs(t, RegisterAll(registry), tool.ErrDuplicateTool)
	})
}
