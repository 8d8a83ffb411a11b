package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/deskmate-ai/deskmate/internal/observability"
	"github.com/deskmate-ai/deskmate/internal/tracing"
	"github.com/deskmate-ai/deskmate/pkg/catalog"
	"github.com/deskmate-ai/deskmate/pkg/session"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
)

// Caller is the slice of the tool session the dispatcher consumes.
type Caller interface {
	CallTool(ctx context.Context, name string, args map[string]any) ([]string, error)
}

// Hooks carry optional per-call observers. They never affect control flow.
type Hooks struct {
	// OnToolStart fires once per request before the round fans out,
	// in request order.
	OnToolStart func(req session.ToolRequest, args map[string]any)
	// OnToolResult fires once per request after the round joins,
	// in request order.
	OnToolResult func(req session.ToolRequest, result string, failed bool)
}

// Dispatcher executes the tool requests of one round concurrently, caching
// deterministic results and preserving request order in its output.
type Dispatcher struct {
	caller  Caller
	cache   *ResultCache
	catalog *catalog.Catalog
	logger  zerolog.Logger
}

// New creates a dispatcher. catalog may be nil to skip argument schema
// validation.
func New(caller Caller, cache *ResultCache, cat *catalog.Catalog, logger zerolog.Logger) *Dispatcher {
	observability.EnsureRegistered()

	return &Dispatcher{
		caller:  caller,
		cache:   cache,
		catalog: cat,
		logger:  logger,
	}
}

// outcome is one request's resolution, placed at the request's index.
type outcome struct {
	result string
	failed bool
}

// ExecuteRound runs all requests of a round and returns one tool message per
// request, in request order. Individual failures become error-text results;
// they never abort sibling calls and are never cached.
func (d *Dispatcher) ExecuteRound(ctx context.Context, requests []session.ToolRequest, hooks Hooks) []session.ToolMessage {
	if len(requests) == 0 {
		return nil
	}

	ctx, span := tracing.StartSpan(
		ctx,
		"deskmate.dispatch",
		"dispatch.execute_round",
		attribute.Int("requests", len(requests)),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, d.logger)

	// Parse all argument payloads up front so start events fire in request
	// order and duplicate invocations can be grouped by cache key.
	parsed := make([]map[string]any, len(requests))
	parseOK := make([]bool, len(requests))
	for i, req := range requests {
		args, ok := parseArguments(req.Arguments)
		if !ok {
			logger.Warn().
				Str("tool", req.Name).
				Str("call_id", req.ID).
				Msg("Malformed tool arguments, dispatching with empty payload")
		}
		parsed[i] = args
		parseOK[i] = ok

		if hooks.OnToolStart != nil {
			hooks.OnToolStart(req, args)
		}
	}

	// Group identical cacheable invocations so one round issues at most one
	// remote call per distinct key.
	leader := make([]int, len(requests))
	firstByKey := make(map[string]int)
	for i, req := range requests {
		leader[i] = i
		if !d.cache.Cacheable(req.Name) {
			continue
		}
		key := Key(req.Name, parsed[i])
		if j, seen := firstByKey[key]; seen {
			leader[i] = j
		} else {
			firstByKey[key] = i
		}
	}

	outcomes := make([]outcome, len(requests))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := range requests {
		if leader[i] != i {
			continue
		}

		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			out := d.execute(ctx, requests[idx], parsed[idx], parseOK[idx])

			mu.Lock()
			outcomes[idx] = out
			mu.Unlock()
		}(i)
	}

	wg.Wait()

	messages := make([]session.ToolMessage, len(requests))
	for i, req := range requests {
		out := outcomes[leader[i]]
		messages[i] = session.ToolMessage{
			CallID:  req.ID,
			Name:    req.Name,
			Content: out.result,
		}

		if hooks.OnToolResult != nil {
			hooks.OnToolResult(req, out.result, out.failed)
		}
	}

	return messages
}

// execute resolves a single tool request.
func (d *Dispatcher) execute(ctx context.Context, req session.ToolRequest, args map[string]any, argsParsed bool) outcome {
	logger := tracing.LoggerFromContext(ctx, d.logger).With().
		Str("tool", req.Name).
		Str("call_id", req.ID).
		Logger()

	// Schema violations are reported back to the model instead of wasting a
	// remote call. Requests whose payload already fell back to empty skip
	// this; they must reach the tool with no arguments.
	if argsParsed {
		if err := d.validateArguments(req.Name, args); err != nil {
			logger.Warn().Err(err).Msg("Tool arguments rejected by schema")
			return outcome{result: err.Error(), failed: true}
		}
	}

	cacheable := d.cache.Cacheable(req.Name)
	key := Key(req.Name, args)

	if cacheable {
		if result, hit := d.cache.Get(key); hit {
			observability.RecordToolCacheHit()
			logger.Debug().Msg("Tool result served from cache")
			return outcome{result: result}
		}
		observability.RecordToolCacheMiss()
	}

	start := time.Now()
	fragments, err := d.caller.CallTool(ctx, req.Name, args)
	observability.RecordToolExecution(req.Name, time.Since(start), err == nil)

	if err != nil {
		logger.Error().Err(err).Msg("Tool execution failed")
		return outcome{result: fmt.Sprintf("error: %v", err), failed: true}
	}

	result := strings.Join(fragments, "\n")
	if cacheable {
		d.cache.Set(key, result)
	}

	logger.Debug().Int("fragments", len(fragments)).Msg("Tool executed")

	return outcome{result: result}
}

// validateArguments checks args against the tool's catalog schema, when both
// are available.
func (d *Dispatcher) validateArguments(tool string, args map[string]any) error {
	if d.catalog == nil {
		return nil
	}
	descriptor, ok := d.catalog.Lookup(tool)
	if !ok || descriptor.InputSchema == nil {
		return nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(descriptor.InputSchema),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		// An unloadable schema is a catalog problem, not the model's;
		// let the call proceed.
		return nil
	}
	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return fmt.Errorf("invalid arguments for %s: %s", tool, strings.Join(details, "; "))
}

// parseArguments decodes the model's argument text. Malformed payloads
// degrade to an empty argument set so a single bad call cannot abort the
// round.
func parseArguments(text string) (map[string]any, bool) {
	if strings.TrimSpace(text) == "" {
		return map[string]any{}, true
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(text), &args); err != nil || args == nil {
		return map[string]any{}, false
	}
	return args, true
}
