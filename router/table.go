package router

import (
	"errors"
	"strings"
	"sync"

	"github.com/indigo-web/vireo/http"
)

var (
	ErrBadPath       = errors.New("context path must start with /")
	ErrBadProtocol   = errors.New("protocol must be either http or https")
	ErrDuplicate     = errors.New("context with the path already exists")
	ErrNoSuchContext = errors.New("no context found")
)

// Table resolves request paths to contexts by the longest matching prefix.
type Table struct {
	mu       sync.RWMutex
	contexts []*Context
}

func New() *Table {
	return new(Table)
}

// Create registers a new context. The handler may be nil and set later.
func (t *Table) Create(protocol, path string, handler http.Handler) (*Context, error) {
	if protocol != "http" && protocol != "https" {
		return nil, ErrBadProtocol
	}

	if len(path) == 0 || path[0] != '/' {
		return nil, ErrBadPath
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.exact(protocol, path) != -1 {
		return nil, ErrDuplicate
	}

	ctx := newContext(protocol, path, handler)
	t.contexts = append(t.contexts, ctx)

	return ctx, nil
}

// Find returns the context with the longest path being a prefix of the given path.
// Comparison is case-sensitive. Nil is returned if nothing matches.
func (t *Table) Find(protocol, path string) *Context {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var longest *Context

	for _, ctx := range t.contexts {
		if ctx.protocol != protocol || !strings.HasPrefix(path, ctx.path) {
			continue
		}

		if longest == nil || len(ctx.path) > len(longest.path) {
			longest = ctx
		}
	}

	return longest
}

// Remove deletes the context with exactly the path.
func (t *Table) Remove(protocol, path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.exact(protocol, path)
	if i == -1 {
		return ErrNoSuchContext
	}

	t.contexts = append(t.contexts[:i], t.contexts[i+1:]...)
	return nil
}

// RemoveContext deletes exactly the passed context.
func (t *Table) RemoveContext(ctx *Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, c := range t.contexts {
		if c == ctx {
			t.contexts = append(t.contexts[:i], t.contexts[i+1:]...)
			return nil
		}
	}

	return ErrNoSuchContext
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.contexts)
}

func (t *Table) exact(protocol, path string) int {
	for i, ctx := range t.contexts {
		if ctx.protocol == protocol && ctx.path == path {
			return i
		}
	}

	return -1
}
