package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("should write to a log file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "convo.log")

		l, err := New(Config{Level: "info", File: path})
		require.NoError(t, err)

		lg := l.Zerolog()
		lg.Info().Str("component", "test").Msg("hello")
		require.NoError(t, l.Close())

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"component":"test"`)
		assert.Contains(t, string(raw), "hello")
	})

	t.Run("should drop entries below the level", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "convo.log")

		l, err := New(Config{Level: "warn", File: path})
		require.NoError(t, err)

		lg := l.Zerolog()
		lg.Info().Msg("quiet")
		lg.Warn().Msg("loud")
		require.NoError(t, l.Close())

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "quiet")
		assert.Contains(t, string(raw), "loud")
	})

	t.Run("should fall back to info on unknown levels", func(t *testing.T) {
		l, err := New(Config{Level: "shout"})
		require.NoError(t, err)
		defer l.Close()

		assert.Equal(t, "info", l.Zerolog().GetLevel().String())
	})

	t.Run("should change level at runtime", func(t *testing.T) {
		l, err := New(Config{Level: "info"})
		require.NoError(t, err)
		defer l.Close()

		require.NoError(t, l.SetLevel("debug"))
		assert.Equal(t, "debug", l.Zerolog().GetLevel().String())

		require.Error(t, l.SetLevel("shout"))
	})
}
