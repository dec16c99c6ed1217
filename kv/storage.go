package kv

import (
	"iter"

	"github.com/indigo-web/strand/internal/buffer"
	"github.com/indigo-web/utils/strcomp"
)

// Pair is a header entry. Neither the key nor the value own their memory: both are views
// into the storage buffer of the table.
type Pair struct {
	Key, Value buffer.View
}

// Table is an associative structure for headers. It acts as a map but uses linear search
// instead, which proves to be more efficient on relatively low amount of entries. All the
// bytes are owned by a single storage buffer, entries only refer to it.
//
// Strings returned by the table share memory with the storage and stay valid until the
// table is reset.
type Table struct {
	storage *buffer.Buffer
	pairs   []Pair
}

func NewTable(storage *buffer.Buffer) *Table {
	return &Table{
		storage: storage,
		pairs:   make([]Pair, 0, 8),
	}
}

// Storage returns the buffer owning all the bytes of the table.
func (t *Table) Storage() *buffer.Buffer {
	return t.storage
}

// Add copies both key and value into the storage and appends a new entry.
func (t *Table) Add(key, value string) error {
	k, err := t.storage.AppendString(key)
	if err != nil {
		return err
	}

	v, err := t.storage.AppendString(value)
	if err != nil {
		return err
	}

	t.Bind(k, v)
	return nil
}

// Bind appends an entry out of views already present in the storage.
func (t *Table) Bind(key, value buffer.View) {
	t.pairs = append(t.pairs, Pair{Key: key, Value: value})
}

// Value returns the first value, corresponding to the key. Otherwise, empty string is returned
func (t *Table) Value(key string) string {
	return t.ValueOr(key, "")
}

// ValueOr returns either the first value corresponding to the key or custom value, defined
// via the second parameter.
func (t *Table) ValueOr(key, or string) string {
	value, found := t.Get(key)
	if !found {
		return or
	}

	return value
}

// Get returns a value and a bool, indicating whether the value was found. Keys are compared
// case-insensitively.
func (t *Table) Get(key string) (value string, found bool) {
	for _, pair := range t.pairs {
		if strcomp.EqualFold(key, t.storage.String(pair.Key)) {
			return t.storage.String(pair.Value), true
		}
	}

	return "", false
}

// Has indicates, whether there's an entry of the key.
func (t *Table) Has(key string) bool {
	_, found := t.Get(key)
	return found
}

// Iter returns an iterator over the entries in their insertion order.
func (t *Table) Iter() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, pair := range t.pairs {
			if !yield(t.storage.String(pair.Key), t.storage.String(pair.Value)) {
				break
			}
		}
	}
}

// Len returns a number of stored pairs.
func (t *Table) Len() int {
	return len(t.pairs)
}

func (t *Table) Empty() bool {
	return t.Len() == 0
}

// Reset drops all the entries together with the bytes they refer to. The allocated space
// is kept.
func (t *Table) Reset() {
	t.pairs = t.pairs[:0]
	t.storage.Reset()
}
