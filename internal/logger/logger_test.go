package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("create logger with console output", func(t *testing.T) {
		cfg := Config{
			Level:   "info",
			Console: true,
		}

		l, err := New(cfg)
		require.NoError(t, err)
		defer l.Close()

		assert.NotNil(t, l)
	})

	t.Run("create logger with file output", func(t *testing.T) {
		tmpDir := t.TempDir()
		logFile := filepath.Join(tmpDir, "sub", "deskmate.log")

		l, err := New(Config{Level: "debug", File: logFile})
		require.NoError(t, err)
		defer l.Close()

		zl := l.GetZerolog()
		zl.Info().Msg("written to file")

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), "written to file")
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		l, err := New(Config{Level: "nonsense", Console: true})
		require.NoError(t, err)
		defer l.Close()
	})
}

func TestRedactor(t *testing.T) {
	r := NewRedactor()

	t.Run("redacts API keys", func(t *testing.T) {
		out := r.Redact("key is sk-abcdefghijklmnopqrstuvwxyz123456")
		assert.NotContains(t, out, "sk-abcdefghijklmnopqrstuvwxyz123456")
		assert.Contains(t, out, "[REDACTED]")
	})

	t.Run("redacts generated passwords", func(t *testing.T) {
		out := r.Redact(`password: Xk29!aa91`)
		assert.NotContains(t, out, "Xk29!aa91")
	})

	t.Run("leaves ordinary text alone", func(t *testing.T) {
		in := "tool get_sap_account returned SHUBENKOVV"
		assert.Equal(t, in, r.Redact(in))
	})

	t.Run("custom pattern", func(t *testing.T) {
		require.NoError(t, r.AddPattern(`incident-[0-9]+`))
		assert.Equal(t, "[REDACTED]", r.Redact("incident-12345"))
	})
}
