package toolserver

import (
	"os"
	"strings"
	"testing"

	"github.com/deskmate-ai/deskmate/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer() *Server {
	logger := zerolog.New(os.Stdout).Level(zerolog.ErrorLevel)
	return New(config.ToolServerConfig{}, logger)
}

func TestLookupAccount(t *testing.T) {
	s := testServer()

	t.Run("known email resolves", func(t *testing.T) {
		username, found := s.lookupAccount("shubenkov@example.com")
		require.True(t, found)
		assert.Equal(t, "SHUBENKOVV", username)
	})

	t.Run("case and whitespace are normalized", func(t *testing.T) {
		username, found := s.lookupAccount("  Shubenkov@Example.COM ")
		require.True(t, found)
		assert.Equal(t, "SHUBENKOVV", username)
	})

	t.Run("unknown email misses", func(t *testing.T) {
		_, found := s.lookupAccount("nobody@example.com")
		assert.False(t, found)
	})
}

func TestLookupEmployee(t *testing.T) {
	s := testServer()

	info, found := s.lookupEmployee("Evgeniy")
	require.True(t, found)
	assert.Contains(t, info, "smart-house")

	_, found = s.lookupEmployee("nobody")
	assert.False(t, found)
}

func TestResetPassword(t *testing.T) {
	s := testServer()

	first := s.resetPassword("SHUBENKOVV")
	second := s.resetPassword("SHUBENKOVV")

	assert.True(t, strings.HasPrefix(first, "Tmp-"))
	assert.NotEqual(t, first, second)
}

func TestTicketIdentifiers(t *testing.T) {
	s := testServer()

	invoice := s.createInvoice(`{"amount": 100}`)
	assert.True(t, strings.HasPrefix(invoice, "INV-"))
	assert.Len(t, invoice, len("INV-")+8)

	incident := s.createIncident("shubenkov@example.com", "password reset")
	assert.True(t, strings.HasPrefix(incident, "INC"))
	assert.Len(t, incident, len("INC")+7)
}

func TestBackendFor(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.ErrorLevel)
	s := New(config.ToolServerConfig{
		Systems: map[string]config.SystemConfig{
			"sap":  {BaseURL: "https://sap.example.com"},
			"snow": {},
		},
	}, logger)

	assert.Equal(t, "https://sap.example.com", s.backendFor("sap"))
	// Configured without a URL and not configured at all both stub.
	assert.Equal(t, "stub", s.backendFor("snow"))
	assert.Equal(t, "stub", s.backendFor("hr"))
}

func TestHandler(t *testing.T) {
	assert.NotNil(t, testServer().Handler())
}
