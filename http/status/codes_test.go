package status

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test(t *testing.T) {
	t.Run("string codes", func(t *testing.T) {
		for _, code := range KnownCodes {
			require.Equal(t, strconv.Itoa(int(code)), StringCode(code))
		}

		require.Equal(t, "599", StringCode(599))
	})

	t.Run("texts", func(t *testing.T) {
		require.Equal(t, "OK", Text(OK))
		require.Equal(t, "Bad Request", Text(BadRequest))
		require.Equal(t, "Not Implemented", Text(NotImplemented))
		require.Equal(t, "Unknown Status Code", Text(599))
	})

	t.Run("errors carry codes", func(t *testing.T) {
		var herr HTTPError
		herr = ErrConflictingHeaders.(HTTPError)
		require.Equal(t, BadRequest, herr.Code)
		require.Equal(t, "Conflicting or malformed headers detected", herr.Error())
		require.Equal(t, NotImplemented, ErrUnsupportedTransferEncoding.(HTTPError).Code)
	})

	t.Run("informational", func(t *testing.T) {
		require.True(t, IsInformational(Continue))
		require.False(t, IsInformational(OK))
	})
}

func Benchmark(b *testing.B) {
	code := KnownCodes[rand.Intn(len(KnownCodes))]
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = StringCode(code)
	}
}
