package headers

import (
	"github.com/indigo-web/utils/strcomp"
)

type Pair struct {
	Key, Value string
}

// Headers is an ordered multi-valued map with case-insensitive keys. Pairs are stored in
// the order of insertion and looked up linearly, which is cheaper than hashing on the usual
// amount of entries a message carries.
type Headers struct {
	pairs      []Pair
	uniqueBuff []string
}

func New() *Headers {
	return new(Headers)
}

// NewPrealloc returns an instance with pre-allocated underlying storage.
func NewPrealloc(n int) *Headers {
	return &Headers{
		pairs: make([]Pair, 0, n),
	}
}

// NewFromMap returns a new instance with already inserted values from given map.
// Note: as maps are unordered, resulting pairs will also be unordered.
func NewFromMap(m map[string][]string) *Headers {
	h := NewPrealloc(len(m))

	for key, values := range m {
		for _, value := range values {
			h.Add(key, value)
		}
	}

	return h
}

// Add appends a new pair of key and value.
func (h *Headers) Add(key, value string) *Headers {
	h.pairs = append(h.pairs, Pair{
		Key:   key,
		Value: value,
	})
	return h
}

// Set replaces all the values of the key with the single value. The position of the first
// existing entry is preserved.
func (h *Headers) Set(key, value string) *Headers {
	for i, pair := range h.pairs {
		if strcomp.EqualFold(key, pair.Key) {
			h.pairs[i].Value = value
			h.deleteFrom(i+1, key)
			return h
		}
	}

	return h.Add(key, value)
}

// Del removes all the entries of the key.
func (h *Headers) Del(key string) *Headers {
	h.deleteFrom(0, key)
	return h
}

func (h *Headers) deleteFrom(start int, key string) {
	kept := h.pairs[:start]

	for _, pair := range h.pairs[start:] {
		if !strcomp.EqualFold(key, pair.Key) {
			kept = append(kept, pair)
		}
	}

	h.pairs = kept
}

// Value returns the first value, corresponding to the key. Otherwise, empty string is returned
func (h *Headers) Value(key string) string {
	return h.ValueOr(key, "")
}

// ValueOr returns either the first value corresponding to the key or custom value, defined
// via the second parameter.
func (h *Headers) ValueOr(key, or string) string {
	value, found := h.Get(key)
	if !found {
		return or
	}

	return value
}

// Get returns a value and a bool, indicating whether the value was found.
func (h *Headers) Get(key string) (value string, found bool) {
	for _, pair := range h.pairs {
		if strcomp.EqualFold(key, pair.Key) {
			return pair.Value, true
		}
	}

	return "", false
}

// Values returns all values by the key in order of insertion. Returns nil if key doesn't exist.
func (h *Headers) Values(key string) (values []string) {
	for _, pair := range h.pairs {
		if strcomp.EqualFold(pair.Key, key) {
			values = append(values, pair.Value)
		}
	}

	return values
}

// Keys returns all unique presented keys.
//
// WARNING: calling it twice will override values, returned by the first call. Consider
// copying the returned slice for safe use.
func (h *Headers) Keys() []string {
	h.uniqueBuff = h.uniqueBuff[:0]

	for _, pair := range h.pairs {
		if contains(h.uniqueBuff, pair.Key) {
			continue
		}

		h.uniqueBuff = append(h.uniqueBuff, pair.Key)
	}

	return h.uniqueBuff
}

// Has indicates, whether there's an entry of the key.
func (h *Headers) Has(key string) bool {
	_, found := h.Get(key)
	return found
}

// Len returns a number of stored pairs.
func (h *Headers) Len() int {
	return len(h.pairs)
}

func (h *Headers) Empty() bool {
	return h.Len() == 0
}

// Clone creates a deep copy, which may be stored somewhere safely.
func (h *Headers) Clone() *Headers {
	return &Headers{
		pairs: append([]Pair(nil), h.pairs...),
	}
}

// Expose exposes the underlying pairs slice.
func (h *Headers) Expose() []Pair {
	return h.pairs
}

// Clear all the entries. However, all the allocated space won't be freed.
func (h *Headers) Clear() *Headers {
	h.pairs = h.pairs[:0]
	return h
}

func contains(collection []string, key string) bool {
	for _, element := range collection {
		if strcomp.EqualFold(element, key) {
			return true
		}
	}

	return false
}
