package toolsession

import (
	"context"
	"os"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisconnectedSession(t *testing.T) {
	s := &Session{logger: zerolog.New(os.Stdout).Level(zerolog.ErrorLevel)}

	t.Run("list tools requires a connection", func(t *testing.T) {
		_, err := s.ListTools(context.Background())
		assert.ErrorIs(t, err, ErrNotConnected)
	})

	t.Run("call tool requires a connection", func(t *testing.T) {
		_, err := s.CallTool(context.Background(), "get_sap_account", nil)
		assert.ErrorIs(t, err, ErrNotConnected)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		assert.NoError(t, s.Close())
		assert.NoError(t, s.Close())
	})
}

func TestSchemaToMap(t *testing.T) {
	t.Run("nil schema becomes empty object schema", func(t *testing.T) {
		m, err := schemaToMap(nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"type": "object"}, m)
	})

	t.Run("map schema passes through", func(t *testing.T) {
		in := map[string]any{"type": "object", "properties": map[string]any{}}
		m, err := schemaToMap(in)
		require.NoError(t, err)
		assert.Equal(t, in, m)
	})

	t.Run("structured schema is round-tripped", func(t *testing.T) {
		type schema struct {
			Type string `json:"type"`
		}
		m, err := schemaToMap(schema{Type: "object"})
		require.NoError(t, err)
		assert.Equal(t, "object", m["type"])
	})
}

func TestTextFragments(t *testing.T) {
	content := []mcp.Content{
		&mcp.TextContent{Text: "first"},
		&mcp.TextContent{Text: ""},
		&mcp.TextContent{Text: "second"},
	}

	assert.Equal(t, []string{"first", "second"}, textFragments(content))
	assert.Nil(t, textFragments(nil))
}
