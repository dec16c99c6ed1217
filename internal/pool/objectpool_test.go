package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObjectPool(t *testing.T) {
	var created int
	p := NewObjectPool[*int](2, func() *int {
		created++
		return new(int)
	})

	a, b, c := p.Acquire(), p.Acquire(), p.Acquire()
	require.Equal(t, 3, created)

	p.Release(a)
	p.Release(b)
	p.Release(c)
	require.Equal(t, 2, p.Len())

	require.Same(t, b, p.Acquire())
	require.Same(t, a, p.Acquire())
	require.Equal(t, 3, created)
}
