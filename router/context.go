package router

import (
	"errors"
	"sync"

	"github.com/indigo-web/vireo/http"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	ErrHandlerAlreadySet = errors.New("handler is already set")
	ErrNilHandler        = errors.New("handler must not be nil")
)

// Context binds a path prefix of a protocol to a handler and the filters wrapping it.
type Context struct {
	path, protocol string

	mu            sync.RWMutex
	handler       http.Handler
	filters       []http.Filter
	systemFilters []http.Filter

	attributes *xsync.MapOf[string, any]
}

func newContext(protocol, path string, handler http.Handler) *Context {
	return &Context{
		path:       path,
		protocol:   protocol,
		handler:    handler,
		attributes: xsync.NewMapOf[string, any](),
	}
}

func (c *Context) Path() string {
	return c.path
}

func (c *Context) Protocol() string {
	return c.protocol
}

// Handler returns the handler of the context, or nil if none was set yet.
func (c *Context) Handler() http.Handler {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.handler
}

// SetHandler sets the handler. It can be done only once.
func (c *Context) SetHandler(handler http.Handler) error {
	if handler == nil {
		return ErrNilHandler
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handler != nil {
		return ErrHandlerAlreadySet
	}

	c.handler = handler
	return nil
}

// AddFilter appends a user filter. User filters are invoked in the order of addition.
func (c *Context) AddFilter(filter http.Filter) *Context {
	c.mu.Lock()
	c.filters = append(c.filters, filter)
	c.mu.Unlock()

	return c
}

// AddSystemFilter appends a system filter. System filters run before the user ones.
func (c *Context) AddSystemFilter(filter http.Filter) *Context {
	c.mu.Lock()
	c.systemFilters = append(c.systemFilters, filter)
	c.mu.Unlock()

	return c
}

// Filters returns a copy of user filters.
func (c *Context) Filters() []http.Filter {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]http.Filter(nil), c.filters...)
}

// SystemFilters returns a copy of system filters.
func (c *Context) SystemFilters() []http.Filter {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]http.Filter(nil), c.systemFilters...)
}

// Chain builds the chain for a single exchange: system filters, then user filters, then
// the handler.
func (c *Context) Chain() *http.Chain {
	c.mu.RLock()
	defer c.mu.RUnlock()

	user := http.NewChain(append([]http.Filter(nil), c.filters...), c.handler)
	return http.NewChain(append([]http.Filter(nil), c.systemFilters...), user.Then())
}

// Attribute returns a value, shared by all the exchanges of the context.
func (c *Context) Attribute(name string) (any, bool) {
	return c.attributes.Load(name)
}

// SetAttribute stores the value. Nil value removes the attribute.
func (c *Context) SetAttribute(name string, value any) {
	if value == nil {
		c.attributes.Delete(name)
		return
	}

	c.attributes.Store(name, value)
}
