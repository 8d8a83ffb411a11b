package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deskmate-ai/deskmate/internal/observability"
	"github.com/deskmate-ai/deskmate/internal/tracing"
	"github.com/deskmate-ai/deskmate/pkg/catalog"
	"github.com/deskmate-ai/deskmate/pkg/commandqueue"
	"github.com/deskmate-ai/deskmate/pkg/compactor"
	"github.com/deskmate-ai/deskmate/pkg/dispatch"
	"github.com/deskmate-ai/deskmate/pkg/session"
	"github.com/deskmate-ai/deskmate/pkg/toolsession"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// DefaultMaxRounds caps tool rounds per turn.
	DefaultMaxRounds = 6
	// DefaultSessionID is used when the caller names no session.
	DefaultSessionID = "default"

	defaultHistoryWindow         = 10
	defaultCompactionMaxChars    = 8000
	defaultCompactionTargetChars = 1000
	defaultModelRetries          = 3

	// fallbackText is returned when a turn exhausts its round budget.
	fallbackText = "Sorry, I couldn't complete this in time. Please try again."

	defaultSystemPrompt = "You are a helpful assistant with access to tools. " +
		"Keep invoking tools until the user's request is fully complete; do not stop halfway. " +
		"If essential information is missing, ask the user for it instead of guessing."
)

// ToolSession is the remote tool boundary the client consumes: list the
// catalog, invoke a tool, release the connection.
type ToolSession interface {
	ListTools(ctx context.Context) ([]toolsession.ToolDescriptor, error)
	CallTool(ctx context.Context, name string, args map[string]interface{}) ([]string, error)
	Close() error
}

// Config holds client configuration
type Config struct {
	Store  *session.Store
	Tools  ToolSession
	Model  ModelClient
	Queue  *commandqueue.CommandQueue
	Logger zerolog.Logger

	// SystemPrompt overrides the built-in instruction when non-empty.
	SystemPrompt string
	// MaxRounds is the default per-turn round budget (DefaultMaxRounds
	// when zero). WithMaxRounds overrides it per call.
	MaxRounds int
	// HistoryWindow is how many trailing history messages each turn sees.
	HistoryWindow int
	// CachePolicy governs the shared tool result cache. Nil means the
	// default policy (enabled, no TTL, no exclusions).
	CachePolicy *dispatch.Policy
	// CompactionMaxChars triggers compaction once serialized history
	// reaches it; CompactionTargetChars is the summary's soft length cap.
	CompactionMaxChars    int
	CompactionTargetChars int
}

// Client runs conversational turns: it loops the model against the remote
// tool catalog until the model answers in plain text or the round budget
// runs out.
type Client struct {
	store      *session.Store
	tools      ToolSession
	model      ModelClient
	queue      *commandqueue.CommandQueue
	catalog    *catalog.Catalog
	dispatcher *dispatch.Dispatcher
	compactor  *compactor.Compactor
	logger     zerolog.Logger

	systemPrompt          string
	maxRounds             int
	historyWindow         int
	compactionMaxChars    int
	compactionTargetChars int

	closeOnce sync.Once
	closeErr  error
}

// NewClient creates an agent client
func NewClient(cfg Config) (*Client, error) {
	observability.EnsureRegistered()

	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("tool session is required")
	}
	if cfg.Model == nil {
		return nil, fmt.Errorf("model client is required")
	}
	if cfg.Queue == nil {
		return nil, fmt.Errorf("command queue is required")
	}

	policy := dispatch.DefaultPolicy()
	if cfg.CachePolicy != nil {
		policy = *cfg.CachePolicy
	}

	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	historyWindow := cfg.HistoryWindow
	if historyWindow <= 0 {
		historyWindow = defaultHistoryWindow
	}
	maxChars := cfg.CompactionMaxChars
	if maxChars <= 0 {
		maxChars = defaultCompactionMaxChars
	}
	targetChars := cfg.CompactionTargetChars
	if targetChars <= 0 {
		targetChars = defaultCompactionTargetChars
	}

	cat := catalog.New(cfg.Tools, cfg.Logger)

	return &Client{
		store:                 cfg.Store,
		tools:                 cfg.Tools,
		model:                 cfg.Model,
		queue:                 cfg.Queue,
		catalog:               cat,
		dispatcher:            dispatch.New(cfg.Tools, dispatch.NewResultCache(policy), cat, cfg.Logger),
		compactor:             compactor.New(modelSummarizer{model: cfg.Model}, cfg.Logger),
		logger:                cfg.Logger,
		systemPrompt:          systemPrompt,
		maxRounds:             maxRounds,
		historyWindow:         historyWindow,
		compactionMaxChars:    maxChars,
		compactionTargetChars: targetChars,
	}, nil
}

// QueryOption adjusts a single ProcessQuery call.
type QueryOption func(*queryOptions)

type queryOptions struct {
	sessionID string
	maxRounds int
	onStep    StepFunc
}

// WithSession routes the turn to the named session instead of "default".
func WithSession(sessionID string) QueryOption {
	return func(o *queryOptions) {
		if sessionID != "" {
			o.sessionID = sessionID
		}
	}
}

// WithMaxRounds overrides the round budget for this turn.
func WithMaxRounds(n int) QueryOption {
	return func(o *queryOptions) {
		if n > 0 {
			o.maxRounds = n
		}
	}
}

// WithOnStep registers a progress callback for this turn.
func WithOnStep(fn StepFunc) QueryOption {
	return func(o *queryOptions) {
		o.onStep = fn
	}
}

// ProcessQuery runs one conversational turn and returns the answer text.
// Overlapping calls for the same session are queued, not interleaved.
//
// A summarization failure after the answer was produced does not discard
// the answer: both the text and the error are returned, and the caller
// decides what to surface.
func (c *Client) ProcessQuery(ctx context.Context, query string, opts ...QueryOption) (string, error) {
	options := queryOptions{
		sessionID: DefaultSessionID,
		maxRounds: c.maxRounds,
	}
	for _, opt := range opts {
		opt(&options)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if tracing.GetTraceID(ctx) == "" {
		ctx = tracing.NewRequestContext(ctx)
	}
	ctx = tracing.WithSessionID(ctx, options.sessionID)
	ctx, span := tracing.StartSpan(
		ctx,
		"deskmate.agent",
		"agent.process_query",
		attribute.String("session_id", options.sessionID),
		attribute.Int("max_rounds", options.maxRounds),
	)
	defer span.End()

	lane := fmt.Sprintf("session-%s", options.sessionID)

	value, err := c.queue.Enqueue(ctx, lane, func(taskCtx context.Context) (interface{}, error) {
		return c.runTurn(taskCtx, query, options)
	})

	text, _ := value.(string)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return text, err
}

// Cleanup releases the tool-session connection. It is idempotent; repeated
// calls return the first call's result.
func (c *Client) Cleanup() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.tools.Close()
		if c.closeErr != nil {
			c.logger.Error().Err(c.closeErr).Msg("Failed to close tool session")
		} else {
			c.logger.Info().Msg("Tool session closed")
		}
	})
	return c.closeErr
}

// runTurn drives the round loop for one query. It runs on the session's
// lane, so it is the only mutator of the session state while it executes.
func (c *Client) runTurn(ctx context.Context, query string, options queryOptions) (string, error) {
	start := time.Now()
	logger := tracing.LoggerFromContext(ctx, c.logger)

	// Connection-not-ready is fatal; nothing is persisted.
	tools, err := c.catalog.Fetch(ctx)
	if err != nil {
		observability.RecordTurn("error", 0, time.Since(start))
		return "", fmt.Errorf("tool catalog unavailable: %w", err)
	}

	state := c.store.GetOrCreate(options.sessionID)

	system := c.systemPrompt
	if state.Summary != "" {
		system += "\n\nSummary of the conversation so far:\n" + state.Summary
	}

	window := state.Tail(c.historyWindow)
	messages := make([]session.Message, 0, len(window)+1)
	messages = append(messages, window...)
	messages = append(messages, session.UserMessage{Content: query})

	for round := 1; round <= options.maxRounds; round++ {
		response, err := c.completeWithRetry(ctx, CompletionRequest{
			System:   system,
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			observability.RecordTurn("error", round, time.Since(start))
			return "", fmt.Errorf("model call failed: %w", err)
		}

		if len(response.ToolRequests) == 0 {
			if options.onStep != nil {
				options.onStep(StepEvent{Type: StepFinal, Round: round, Content: response.Content})
			}
			observability.RecordTurn("final", round, time.Since(start))
			logger.Info().Int("rounds", round).Msg("Turn completed")
			return response.Content, c.finishTurn(ctx, state, query, response.Content)
		}

		if response.Content != "" && options.onStep != nil {
			options.onStep(StepEvent{Type: StepPlan, Round: round, Content: response.Content})
		}

		messages = append(messages, session.AssistantMessage{
			Content:      response.Content,
			ToolRequests: response.ToolRequests,
		})

		toolMessages := c.dispatcher.ExecuteRound(ctx, response.ToolRequests, c.roundHooks(round, options.onStep))
		for _, tm := range toolMessages {
			messages = append(messages, tm)
		}
	}

	// Round budget exhausted: a defined terminal outcome, not an error.
	logger.Warn().Int("maxRounds", options.maxRounds).Msg("Round budget exhausted, returning fallback")
	if options.onStep != nil {
		options.onStep(StepEvent{Type: StepFinal, Round: options.maxRounds, Content: fallbackText})
	}
	observability.RecordTurn("fallback", options.maxRounds, time.Since(start))
	return fallbackText, c.finishTurn(ctx, state, query, fallbackText)
}

// finishTurn persists the user/assistant pair and triggers compaction. The
// answer has already been produced when this runs; a compaction error is
// returned on its own, never at the answer's expense.
func (c *Client) finishTurn(ctx context.Context, state *session.State, query, answer string) error {
	state.History = append(state.History,
		session.UserMessage{Content: query},
		session.AssistantMessage{Content: answer},
	)

	if err := c.compactor.MaybeCompact(ctx, state, c.compactionMaxChars, c.compactionTargetChars); err != nil {
		logger := tracing.LoggerFromContext(ctx, c.logger)
		logger.Error().Err(err).Msg("Compaction failed")
		return err
	}
	return nil
}

func (c *Client) roundHooks(round int, onStep StepFunc) dispatch.Hooks {
	if onStep == nil {
		return dispatch.Hooks{}
	}
	return dispatch.Hooks{
		OnToolStart: func(req session.ToolRequest, args map[string]interface{}) {
			onStep(StepEvent{
				Type:          StepToolCall,
				Round:         round,
				ToolCallID:    req.ID,
				ToolName:      req.Name,
				ToolArguments: args,
			})
		},
		OnToolResult: func(req session.ToolRequest, result string, failed bool) {
			onStep(StepEvent{
				Type:       StepToolResult,
				Round:      round,
				ToolCallID: req.ID,
				ToolName:   req.Name,
				ToolResult: result,
				ToolFailed: failed,
			})
		},
	}
}

// completeWithRetry calls the model with exponential backoff retry
func (c *Client) completeWithRetry(ctx context.Context, request CompletionRequest) (*CompletionResponse, error) {
	var lastErr error

	for attempt := 0; attempt < defaultModelRetries; attempt++ {
		callStart := time.Now()
		response, err := c.model.Complete(ctx, request)
		observability.RecordModelCall(c.model.Provider(), time.Since(callStart), err == nil)
		if err == nil {
			return response, nil
		}

		lastErr = err

		if !IsRetryableError(err) {
			return nil, err
		}

		if attempt == defaultModelRetries-1 {
			break
		}

		// Exponential backoff: 1s, 2s, 4s
		delay := time.Duration(1<<attempt) * time.Second
		c.logger.Info().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Retrying model call after error")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", defaultModelRetries, lastErr)
}
