// Package di provides a small dependency injection container with typed
// tokens. Services are registered as lazy factories and memoized on first
// resolution.
package di

import (
	"fmt"
	"sync"
)

// ServiceRegistry is the read side of the container.
type ServiceRegistry interface {
	// Get resolves a service by name, invoking its factory on first use.
	// It panics if the name is unknown; registration errors are programmer
	// errors and surface at startup.
	Get(name string) any
}

// Container is the write side of the container.
type Container interface {
	ServiceRegistry

	// Register stores a pre-built value under name.
	Register(name string, value any)

	// RegisterFactory stores a lazy constructor under name. The factory is
	// invoked at most once.
	RegisterFactory(name string, factory func(ServiceRegistry) any)
}

type container struct {
	mu        sync.Mutex
	values    map[string]any
	factories map[string]func(ServiceRegistry) any
	resolving map[string]bool
}

// NewContainer creates an empty container.
func NewContainer() Container {
	return &container{
		values:    make(map[string]any),
		factories: make(map[string]func(ServiceRegistry) any),
		resolving: make(map[string]bool),
	}
}

func (c *container) Register(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[name] = value
}

func (c *container) RegisterFactory(name string, factory func(ServiceRegistry) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[name] = factory
}

func (c *container) Get(name string) any {
	c.mu.Lock()

	if v, ok := c.values[name]; ok {
		c.mu.Unlock()
		return v
	}

	factory, ok := c.factories[name]
	if !ok {
		c.mu.Unlock()
		panic(fmt.Sprintf("di: service %q not registered", name))
	}
	if c.resolving[name] {
		c.mu.Unlock()
		panic(fmt.Sprintf("di: circular dependency resolving %q", name))
	}
	c.resolving[name] = true
	c.mu.Unlock()

	// Factory runs unlocked so it can resolve its own dependencies.
	v := factory(c)

	c.mu.Lock()
	c.values[name] = v
	delete(c.resolving, name)
	c.mu.Unlock()

	return v
}

// Token is a typed service name. The type parameter exists purely for
// compile-time checking at the registration and resolution sites.
type Token[T any] struct {
	name string
}

// NewToken creates a token for type T under the given unique name.
func NewToken[T any](name string) Token[T] {
	return Token[T]{name: name}
}

// Name returns the token's registry name.
func (t Token[T]) Name() string { return t.name }

// RegisterToken registers a typed factory for the token.
func RegisterToken[T any](c Container, token Token[T], factory func(ServiceRegistry) T) {
	c.RegisterFactory(token.name, func(sr ServiceRegistry) any {
		return factory(sr)
	})
}

// GetToken resolves a token to its typed service. It panics on a type
// mismatch, which indicates two tokens sharing a name.
func GetToken[T any](sr ServiceRegistry, token Token[T]) T {
	v := sr.Get(token.name)
	typed, ok := v.(T)
	if !ok {
		panic(fmt.Sprintf("di: service %q has type %T, want %s", token.name, v, token.name))
	}
	return typed
}
