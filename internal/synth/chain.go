package synth

import (
	"errors"
	"sync"
)

var (
	// ErrEngineNotFound is returned when an engine is not registered.
	ErrEngineNotFound = errors.New("synthesis engine not found")
	// ErrEngineExists is returned when trying to register a duplicate engine.
	ErrEngineExists = errors.New("synthesis engine already registered")
)

// Chain is an ordered set of synthesis engines. Registration order is the
// fallback order: the first engine is the preferred primary, each subsequent
// engine is tried once when everything before it was unavailable or failed.
type Chain struct {
	mu      sync.RWMutex
	order   []string
	engines map[string]Engine
}

// NewChain creates an empty engine chain.
func NewChain() *Chain {
	return &Chain{
		engines: make(map[string]Engine),
	}
}

// Register appends an engine to the chain.
func (c *Chain) Register(engine Engine) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := engine.Name()
	if _, exists := c.engines[name]; exists {
		return ErrEngineExists
	}

	c.engines[name] = engine
	c.order = append(c.order, name)
	return nil
}

// Get retrieves an engine by name.
func (c *Chain) Get(name string) (Engine, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	engine, exists := c.engines[name]
	if !exists {
		return nil, ErrEngineNotFound
	}

	return engine, nil
}

// Engines returns the chain in fallback order.
func (c *Chain) Engines() []Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Engine, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.engines[name])
	}
	return out
}

// Names returns the registered engine names in fallback order.
func (c *Chain) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]string(nil), c.order...)
}

// Len returns the number of registered engines.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}
