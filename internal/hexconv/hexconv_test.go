package hexconv

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHalfbyte(t *testing.T) {
	for i := 0; i < 16; i++ {
		lower := strconv.FormatInt(int64(i), 16)
		require.Equal(t, byte(i), Halfbyte[lower[0]])
		require.Equal(t, byte(i), Halfbyte[strings.ToUpper(lower)[0]])
	}

	for _, c := range []byte("gG-; \r\nxz") {
		require.Equal(t, byte(0xFF), Halfbyte[c], string(c))
	}
}

func benchLocal(b *testing.B, str string) {
	b.SetBytes(int64(len(str)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		var result uint64

		for j := range str {
			result = (result << 4) | uint64(Halfbyte[str[j]])
		}
	}
}

func BenchmarkParse(b *testing.B) {
	b.Run("short", func(b *testing.B) {
		benchLocal(b, "123456789abcdef")
	})

	b.Run("long", func(b *testing.B) {
		benchLocal(b, strings.Repeat("123456789abcdef", 100))
	})
}
