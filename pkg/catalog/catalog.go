package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/deskmate-ai/deskmate/pkg/toolsession"
	"github.com/rs/zerolog"
)

// Lister is the slice of the tool session the catalog consumes.
type Lister interface {
	ListTools(ctx context.Context) ([]toolsession.ToolDescriptor, error)
}

// Catalog fetches and caches the remote tool list. The first successful
// fetch is authoritative for the lifetime of the connection; tools added
// server-side afterwards are invisible until reconnect.
type Catalog struct {
	mu      sync.Mutex
	lister  Lister
	cached  []toolsession.ToolDescriptor
	byName  map[string]toolsession.ToolDescriptor
	fetched bool
	logger  zerolog.Logger
}

// New creates a catalog over the given tool session.
func New(lister Lister, logger zerolog.Logger) *Catalog {
	return &Catalog{
		lister: lister,
		logger: logger,
	}
}

// Fetch returns the tool descriptors, querying the remote server at most
// once. A failed fetch is not cached; the next call retries.
func (c *Catalog) Fetch(ctx context.Context) ([]toolsession.ToolDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fetched {
		return c.cached, nil
	}

	if c.lister == nil {
		return nil, toolsession.ErrNotConnected
	}

	descriptors, err := c.lister.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tool catalog: %w", err)
	}

	c.cached = descriptors
	c.byName = make(map[string]toolsession.ToolDescriptor, len(descriptors))
	for _, d := range descriptors {
		c.byName[d.Name] = d
	}
	c.fetched = true

	c.logger.Info().Int("tools", len(descriptors)).Msg("Tool catalog fetched")

	return c.cached, nil
}

// Lookup returns the descriptor for a tool name from the cached catalog.
func (c *Catalog) Lookup(name string) (toolsession.ToolDescriptor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.fetched {
		return toolsession.ToolDescriptor{}, false
	}
	d, ok := c.byName[name]
	return d, ok
}
