package backend

import (
	"context"
	"log/slog"
	"sync"
)

// Connector owns the one gateway of the process. The first Connect builds
// it; later calls return the same handle.
type Connector struct {
	factory Factory
	config  Config

	mu     sync.Mutex
	result *BackendResult
}

func NewConnector(factory Factory, config Config) *Connector {
	return &Connector{factory: factory, config: config}
}

// Connect returns the process gateway, creating it on first use. A failed
// attempt is not remembered, so a later call may retry.
func (c *Connector) Connect(ctx context.Context) (*BackendResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.result != nil {
		slog.DebugContext(ctx, "Backend already initialized", "component", "backend", "backend", c.result.Type.String())
		return c.result, nil
	}
	res, err := Connect(ctx, c.factory, c.config)
	if err != nil {
		return nil, err
	}
	c.result = res
	return res, nil
}

// Close releases the gateway if one was created.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.result == nil || c.result.Cleanup == nil {
		return nil
	}
	err := c.result.Cleanup()
	c.result = nil
	return err
}
