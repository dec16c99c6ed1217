package kv

import (
	"iter"

	"github.com/indigo-web/strand/internal/buffer"
	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"
)

// Session is a per-connection key-value store. Like Table, it keeps all the bytes in a
// single buffer, however values can be overwritten. A value that fits into the old one is
// written in place, otherwise the old bytes are cut out of the storage, every entry behind
// them is re-based and the new value is appended to the end.
type Session struct {
	storage *buffer.Buffer
	pairs   []Pair
}

func NewSession(storage *buffer.Buffer) *Session {
	return &Session{storage: storage}
}

// Set inserts or updates the value by the key.
func (s *Session) Set(key, value string) error {
	i := s.index(key)
	if i == -1 {
		k, err := s.storage.AppendString(key)
		if err != nil {
			return err
		}

		v, err := s.storage.AppendString(value)
		if err != nil {
			s.storage.Cut(k)
			return err
		}

		s.pairs = append(s.pairs, Pair{Key: k, Value: v})
		return nil
	}

	old := s.pairs[i].Value
	if len(value) <= old.Length {
		s.storage.Overwrite(old.Offset, uf.S2B(value))
		s.pairs[i].Value.Length = len(value)
		return nil
	}

	s.storage.Cut(old)
	s.rebase(old)

	v, err := s.storage.AppendString(value)
	if err != nil {
		s.pairs[i].Value = buffer.View{Offset: s.storage.Len()}
		return err
	}

	s.pairs[i].Value = v
	return nil
}

// rebase shifts every view located behind the removed region.
func (s *Session) rebase(removed buffer.View) {
	for i := range s.pairs {
		if s.pairs[i].Key.Offset > removed.Offset {
			s.pairs[i].Key.Offset -= removed.Length
		}

		if s.pairs[i].Value.Offset > removed.Offset {
			s.pairs[i].Value.Offset -= removed.Length
		}
	}
}

// Get returns the value by the key. The value shares memory with the storage, so it may
// change after the next Set.
func (s *Session) Get(key string) (value string, found bool) {
	if i := s.index(key); i != -1 {
		return s.storage.String(s.pairs[i].Value), true
	}

	return "", false
}

// Value returns the value by the key or an empty string.
func (s *Session) Value(key string) string {
	value, _ := s.Get(key)
	return value
}

func (s *Session) index(key string) int {
	for i, pair := range s.pairs {
		if strcomp.EqualFold(key, s.storage.String(pair.Key)) {
			return i
		}
	}

	return -1
}

// Iter returns an iterator over the entries.
func (s *Session) Iter() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, pair := range s.pairs {
			if !yield(s.storage.String(pair.Key), s.storage.String(pair.Value)) {
				break
			}
		}
	}
}

func (s *Session) Len() int {
	return len(s.pairs)
}

// Reset drops every entry.
func (s *Session) Reset() {
	s.pairs = s.pairs[:0]
	s.storage.Reset()
}
