package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/deskmate-ai/deskmate/pkg/commandqueue"
	"github.com/deskmate-ai/deskmate/pkg/session"
	"github.com/deskmate-ai/deskmate/pkg/toolsession"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel returns canned responses in order. Calls past the end of
// the script repeat the last response.
type scriptedModel struct {
	mu        sync.Mutex
	responses []*CompletionResponse
	errs      []error
	calls     int
	requests  []CompletionRequest
}

func (m *scriptedModel) Complete(ctx context.Context, request CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.calls
	m.calls++
	m.requests = append(m.requests, request)

	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	if idx < len(m.errs) && m.errs[idx] != nil {
		return nil, m.errs[idx]
	}
	return m.responses[idx], nil
}

func (m *scriptedModel) Provider() string { return "scripted" }

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// stubToolSession serves a fixed catalog and echoes tool calls.
type stubToolSession struct {
	mu         sync.Mutex
	tools      []toolsession.ToolDescriptor
	listErr    error
	callCounts map[string]int
	closeCount int
	closeErr   error
}

func newStubToolSession(names ...string) *stubToolSession {
	s := &stubToolSession{callCounts: make(map[string]int)}
	for _, name := range names {
		s.tools = append(s.tools, toolsession.ToolDescriptor{
			Name:        name,
			Description: name,
			InputSchema: map[string]interface{}{"type": "object"},
		})
	}
	return s
}

func (s *stubToolSession) ListTools(ctx context.Context) ([]toolsession.ToolDescriptor, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.tools, nil
}

func (s *stubToolSession) CallTool(ctx context.Context, name string, args map[string]interface{}) ([]string, error) {
	s.mu.Lock()
	s.callCounts[name]++
	s.mu.Unlock()
	return []string{fmt.Sprintf("%s result", name)}, nil
}

func (s *stubToolSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCount++
	return s.closeErr
}

func (s *stubToolSession) callCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCounts[name]
}

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stdout).Level(zerolog.ErrorLevel)
}

func answer(text string) *CompletionResponse {
	return &CompletionResponse{Content: text}
}

func toolRound(content string, requests ...session.ToolRequest) *CompletionResponse {
	return &CompletionResponse{Content: content, ToolRequests: requests}
}

func newTestClient(t *testing.T, model ModelClient, tools ToolSession) (*Client, *session.Store) {
	t.Helper()
	store := session.NewStore(testLogger())
	queue := commandqueue.New(testLogger())
	t.Cleanup(func() { queue.Close() })

	client, err := NewClient(Config{
		Store:  store,
		Tools:  tools,
		Model:  model,
		Queue:  queue,
		Logger: testLogger(),
	})
	require.NoError(t, err)
	return client, store
}

func TestProcessQuery(t *testing.T) {
	t.Run("plain answer without tools", func(t *testing.T) {
		model := &scriptedModel{responses: []*CompletionResponse{answer("4")}}
		client, store := newTestClient(t, model, newStubToolSession("calculator"))

		text, err := client.ProcessQuery(context.Background(), "What is 2+2?")
		require.NoError(t, err)
		assert.Equal(t, "4", text)
		assert.Equal(t, 1, model.callCount())

		state := store.GetOrCreate("default")
		require.Len(t, state.History, 2)
		assert.Equal(t, session.UserMessage{Content: "What is 2+2?"}, state.History[0])
		assert.Equal(t, session.AssistantMessage{Content: "4"}, state.History[1])
	})

	t.Run("tool round then answer", func(t *testing.T) {
		model := &scriptedModel{responses: []*CompletionResponse{
			toolRound("Looking that up.", session.ToolRequest{
				ID: "c1", Name: "get_sap_account", Arguments: `{"email":"shubenkov@example.com"}`,
			}),
			answer("Your SAP account is SHUBENKOVV."),
		}}
		tools := newStubToolSession("get_sap_account")
		client, _ := newTestClient(t, model, tools)

		text, err := client.ProcessQuery(context.Background(), "What is my SAP account?")
		require.NoError(t, err)
		assert.Equal(t, "Your SAP account is SHUBENKOVV.", text)
		assert.Equal(t, 1, tools.callCount("get_sap_account"))
		assert.Equal(t, 2, model.callCount())

		// The second model call must carry the assistant's tool requests
		// and the tool result in order.
		second := model.requests[1]
		require.GreaterOrEqual(t, len(second.Messages), 3)
		last := second.Messages[len(second.Messages)-1]
		toolMsg, ok := last.(session.ToolMessage)
		require.True(t, ok)
		assert.Equal(t, "c1", toolMsg.CallID)
		assert.Contains(t, toolMsg.Content, "get_sap_account result")
	})

	t.Run("round budget exhaustion returns fallback and persists turn", func(t *testing.T) {
		model := &scriptedModel{responses: []*CompletionResponse{
			toolRound("", session.ToolRequest{ID: "c1", Name: "spin", Arguments: `{}`}),
		}}
		client, store := newTestClient(t, model, newStubToolSession("spin"))

		text, err := client.ProcessQuery(context.Background(), "loop forever",
			WithSession("s1"), WithMaxRounds(3))
		require.NoError(t, err)
		assert.Equal(t, fallbackText, text)
		assert.Equal(t, 3, model.callCount())

		state := store.GetOrCreate("s1")
		require.Len(t, state.History, 2)
		assert.Equal(t, session.UserMessage{Content: "loop forever"}, state.History[0])
		assert.Equal(t, session.AssistantMessage{Content: fallbackText}, state.History[1])
	})

	t.Run("missing tool session is fatal", func(t *testing.T) {
		model := &scriptedModel{responses: []*CompletionResponse{answer("unused")}}
		tools := newStubToolSession()
		tools.listErr = toolsession.ErrNotConnected
		client, _ := newTestClient(t, model, tools)

		_, err := client.ProcessQuery(context.Background(), "hello")
		require.Error(t, err)
		assert.ErrorIs(t, err, toolsession.ErrNotConnected)
		assert.Equal(t, 0, model.callCount())
	})

	t.Run("sessions are isolated but share the tool cache", func(t *testing.T) {
		model := &scriptedModel{responses: []*CompletionResponse{
			toolRound("", session.ToolRequest{ID: "c1", Name: "lookup", Arguments: `{"q":"x"}`}),
			answer("done"),
			toolRound("", session.ToolRequest{ID: "c2", Name: "lookup", Arguments: `{"q":"x"}`}),
			answer("done again"),
		}}
		tools := newStubToolSession("lookup")
		client, store := newTestClient(t, model, tools)

		_, err := client.ProcessQuery(context.Background(), "first", WithSession("a"))
		require.NoError(t, err)
		_, err = client.ProcessQuery(context.Background(), "second", WithSession("b"))
		require.NoError(t, err)

		// Identical invocation from a different session is served from
		// the shared cache.
		assert.Equal(t, 1, tools.callCount("lookup"))
		assert.Len(t, store.GetOrCreate("a").History, 2)
		assert.Len(t, store.GetOrCreate("b").History, 2)
	})

	t.Run("model errors are not retried when permanent", func(t *testing.T) {
		model := &scriptedModel{
			responses: []*CompletionResponse{nil},
			errs:      []error{errors.New("invalid api key")},
		}
		client, _ := newTestClient(t, model, newStubToolSession("t"))

		_, err := client.ProcessQuery(context.Background(), "hello")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model call failed")
		assert.Equal(t, 1, model.callCount())
	})
}

func TestProcessQueryEvents(t *testing.T) {
	t.Run("events fire in plan, tool, final order", func(t *testing.T) {
		model := &scriptedModel{responses: []*CompletionResponse{
			toolRound("Checking two systems.",
				session.ToolRequest{ID: "c1", Name: "alpha", Arguments: `{}`},
				session.ToolRequest{ID: "c2", Name: "beta", Arguments: `{}`},
			),
			answer("All set."),
		}}
		client, _ := newTestClient(t, model, newStubToolSession("alpha", "beta"))

		var events []StepEvent
		_, err := client.ProcessQuery(context.Background(), "check everything",
			WithOnStep(func(event StepEvent) { events = append(events, event) }))
		require.NoError(t, err)

		var kinds []StepType
		for _, e := range events {
			kinds = append(kinds, e.Type)
		}
		assert.Equal(t, []StepType{
			StepPlan,
			StepToolCall, StepToolCall,
			StepToolResult, StepToolResult,
			StepFinal,
		}, kinds)

		assert.Equal(t, "Checking two systems.", events[0].Content)
		assert.Equal(t, "c1", events[1].ToolCallID)
		assert.Equal(t, "c2", events[2].ToolCallID)
		assert.Equal(t, "c1", events[3].ToolCallID)
		assert.False(t, events[3].ToolFailed)
		assert.Equal(t, "All set.", events[5].Content)
	})
}

func TestProcessQueryCompaction(t *testing.T) {
	t.Run("oversized history is compacted after the answer", func(t *testing.T) {
		model := &scriptedModel{responses: []*CompletionResponse{
			answer("final answer"),
			answer("a short summary"),
		}}
		store := session.NewStore(testLogger())
		queue := commandqueue.New(testLogger())
		defer queue.Close()

		client, err := NewClient(Config{
			Store:              store,
			Tools:              newStubToolSession("t"),
			Model:              model,
			Queue:              queue,
			Logger:             testLogger(),
			CompactionMaxChars: 50,
		})
		require.NoError(t, err)

		state := store.GetOrCreate("default")
		for i := 0; i < 10; i++ {
			state.History = append(state.History,
				session.UserMessage{Content: strings.Repeat("long question ", 10)})
		}

		text, err := client.ProcessQuery(context.Background(), "wrap it up")
		require.NoError(t, err)
		assert.Equal(t, "final answer", text)
		assert.Equal(t, "a short summary", state.Summary)
		assert.LessOrEqual(t, len(state.History), 6)
	})

	t.Run("summarization failure still delivers the answer", func(t *testing.T) {
		model := &scriptedModel{
			responses: []*CompletionResponse{answer("the answer"), nil},
			errs:      []error{nil, errors.New("summarizer unavailable")},
		}
		store := session.NewStore(testLogger())
		queue := commandqueue.New(testLogger())
		defer queue.Close()

		client, err := NewClient(Config{
			Store:              store,
			Tools:              newStubToolSession("t"),
			Model:              model,
			Queue:              queue,
			Logger:             testLogger(),
			CompactionMaxChars: 10,
		})
		require.NoError(t, err)

		state := store.GetOrCreate("default")
		state.History = append(state.History,
			session.UserMessage{Content: strings.Repeat("x", 100)})

		text, err := client.ProcessQuery(context.Background(), "hello")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "summarization failed")
		assert.Equal(t, "the answer", text)
	})
}

func TestCleanup(t *testing.T) {
	t.Run("idempotent", func(t *testing.T) {
		tools := newStubToolSession("t")
		model := &scriptedModel{responses: []*CompletionResponse{answer("ok")}}
		client, _ := newTestClient(t, model, tools)

		require.NoError(t, client.Cleanup())
		require.NoError(t, client.Cleanup())
		assert.Equal(t, 1, tools.closeCount)
	})

	t.Run("reports the first close error on every call", func(t *testing.T) {
		tools := newStubToolSession("t")
		tools.closeErr = errors.New("already gone")
		model := &scriptedModel{responses: []*CompletionResponse{answer("ok")}}
		client, _ := newTestClient(t, model, tools)

		assert.EqualError(t, client.Cleanup(), "already gone")
		assert.EqualError(t, client.Cleanup(), "already gone")
		assert.Equal(t, 1, tools.closeCount)
	})
}

func TestNewClientValidation(t *testing.T) {
	queue := commandqueue.New(testLogger())
	defer queue.Close()

	_, err := NewClient(Config{
		Tools:  newStubToolSession(),
		Model:  &scriptedModel{},
		Queue:  queue,
		Logger: testLogger(),
	})
	assert.ErrorContains(t, err, "session store")

	_, err = NewClient(Config{
		Store:  session.NewStore(testLogger()),
		Model:  &scriptedModel{},
		Queue:  queue,
		Logger: testLogger(),
	})
	assert.ErrorContains(t, err, "tool session")
}
