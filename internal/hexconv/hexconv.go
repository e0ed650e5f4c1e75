package hexconv

// Halfbyte maps an ASCII character to the value of the hex digit it represents. Characters,
// which aren't hex digits, are mapped to 0xFF.
var Halfbyte = func() (table [256]byte) {
	for i := range table {
		table[i] = 0xFF
	}

	for c := '0'; c <= '9'; c++ {
		table[c] = byte(c - '0')
	}

	for c := 'a'; c <= 'f'; c++ {
		table[c] = byte(c-'a') + 0xa
		table[c-'a'+'A'] = byte(c-'a') + 0xa
	}

	return table
}()
