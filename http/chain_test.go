package http

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func recordingFilter(name string, trace *[]string) Filter {
	return FilterFunc(name, func(ex Exchange, next *Chain) error {
		*trace = append(*trace, name+" in")
		err := next.Next(ex)
		*trace = append(*trace, name+" out")
		return err
	})
}

func TestChain(t *testing.T) {
	t.Run("order", func(t *testing.T) {
		var trace []string
		handler := HandlerFunc(func(Exchange) error {
			trace = append(trace, "handler")
			return nil
		})
		user := NewChain([]Filter{recordingFilter("user", &trace)}, handler)
		system := NewChain([]Filter{recordingFilter("system", &trace)}, user.Then())

		require.NoError(t, system.Next(nil))
		require.Equal(t, []string{
			"system in", "user in", "handler", "user out", "system out",
		}, trace)
	})

	t.Run("filter stops the chain", func(t *testing.T) {
		called := false
		handler := HandlerFunc(func(Exchange) error {
			called = true
			return nil
		})
		guard := FilterFunc("guard", func(Exchange, *Chain) error {
			return errors.New("denied")
		})

		err := NewChain([]Filter{guard}, handler).Next(nil)
		require.EqualError(t, err, "denied")
		require.False(t, called)
		require.Equal(t, "guard", guard.Description())
	})

	t.Run("handler error propagates", func(t *testing.T) {
		handler := HandlerFunc(func(Exchange) error {
			return errors.New("oops")
		})
		require.EqualError(t, NewChain(nil, handler).Next(nil), "oops")
	})
}
