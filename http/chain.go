package http

// Filter pre- or post-processes exchanges. The filter decides whether to pass the exchange
// further by calling next.Next.
type Filter interface {
	Filter(ex Exchange, next *Chain) error
	Description() string
}

type filterFunc struct {
	fn          func(ex Exchange, next *Chain) error
	description string
}

// FilterFunc builds a Filter out of a plain function.
func FilterFunc(description string, fn func(ex Exchange, next *Chain) error) Filter {
	return filterFunc{
		fn:          fn,
		description: description,
	}
}

func (f filterFunc) Filter(ex Exchange, next *Chain) error {
	return f.fn(ex, next)
}

func (f filterFunc) Description() string {
	return f.description
}

// Chain is a sequence of filters ending with a handler. Each filter is invoked at most once.
type Chain struct {
	filters []Filter
	handler Handler
}

func NewChain(filters []Filter, handler Handler) *Chain {
	return &Chain{
		filters: filters,
		handler: handler,
	}
}

// Next invokes the next filter or, if there are no filters left, the handler.
func (c *Chain) Next(ex Exchange) error {
	if len(c.filters) == 0 {
		if c.handler == nil {
			return nil
		}

		return c.handler.Handle(ex)
	}

	filter := c.filters[0]
	c.filters = c.filters[1:]

	return filter.Filter(ex, c)
}

// Then returns a handler, passing exchanges through the chain. It's used to link chains one
// to another: the linked chain runs once the outer chain reaches its end.
func (c *Chain) Then() Handler {
	return HandlerFunc(c.Next)
}
