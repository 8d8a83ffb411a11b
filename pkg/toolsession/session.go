package toolsession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

// ErrNotConnected is returned by operations that require an active tool
// session when none exists.
var ErrNotConnected = errors.New("tool session is not connected")

// ToolDescriptor describes one remotely callable tool.
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Config holds tool session connection settings.
type Config struct {
	ServerURL string
	Timeout   time.Duration
}

// Session is a live connection to a remote MCP tool server.
type Session struct {
	mu      sync.Mutex
	session *mcp.ClientSession
	url     string
	logger  zerolog.Logger
}

// Connect opens a tool session against the configured MCP server.
func Connect(ctx context.Context, cfg Config, logger zerolog.Logger) (*Session, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("tool server URL is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	transport := &mcp.StreamableClientTransport{
		Endpoint:   cfg.ServerURL,
		HTTPClient: &http.Client{Timeout: timeout},
	}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "deskmate",
		Version: "0.1.0",
	}, &mcp.ClientOptions{
		KeepAlive: 30 * time.Second,
	})

	clientSession, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to tool server: %w", err)
	}

	logger.Info().Str("url", cfg.ServerURL).Msg("Tool session established")

	return &Session{
		session: clientSession,
		url:     cfg.ServerURL,
		logger:  logger,
	}, nil
}

// ListTools fetches the tool catalog from the remote server.
func (s *Session) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	cs, err := s.current()
	if err != nil {
		return nil, err
	}

	result, err := cs.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	descriptors := make([]ToolDescriptor, 0, len(result.Tools))
	for _, tool := range result.Tools {
		schema, err := schemaToMap(tool.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("failed to decode input schema for %s: %w", tool.Name, err)
		}
		descriptors = append(descriptors, ToolDescriptor{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}

	return descriptors, nil
}

// CallTool invokes a remote tool and returns the textual content fragments
// of the result in order.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) ([]string, error) {
	cs, err := s.current()
	if err != nil {
		return nil, err
	}

	result, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return nil, fmt.Errorf("tool %s failed: %w", name, err)
	}

	fragments := textFragments(result.Content)
	if result.IsError {
		detail := strings.Join(fragments, "\n")
		if detail == "" {
			detail = "no error detail"
		}
		return nil, fmt.Errorf("tool %s reported an error: %s", name, detail)
	}

	return fragments, nil
}

// Close terminates the session. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil
	}

	err := s.session.Close()
	s.session = nil

	if err != nil {
		return fmt.Errorf("failed to close tool session: %w", err)
	}

	s.logger.Info().Str("url", s.url).Msg("Tool session closed")
	return nil
}

func (s *Session) current() (*mcp.ClientSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, ErrNotConnected
	}
	return s.session, nil
}

// schemaToMap converts the SDK's schema representation into a plain map for
// conversion into model-specific tool formats.
func schemaToMap(schema any) (map[string]any, error) {
	if schema == nil {
		return map[string]any{"type": "object"}, nil
	}
	if m, ok := schema.(map[string]any); ok {
		return m, nil
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func textFragments(content []mcp.Content) []string {
	var fragments []string
	for _, item := range content {
		if text, ok := item.(*mcp.TextContent); ok && text.Text != "" {
			fragments = append(fragments, text.Text)
		}
	}
	return fragments
}
