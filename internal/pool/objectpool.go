package pool

// ObjectPool keeps a bounded stack of released objects for reuse. It is not thread-safe and
// is meant to be owned by a single connection.
type ObjectPool[T any] struct {
	queue []T
	fresh func() T
}

// NewObjectPool returns a pool holding at most size released objects. Acquire falls back to
// fresh when the pool is empty.
func NewObjectPool[T any](size int, fresh func() T) *ObjectPool[T] {
	return &ObjectPool[T]{
		queue: make([]T, 0, size),
		fresh: fresh,
	}
}

func (o *ObjectPool[T]) Acquire() (obj T) {
	if len(o.queue) == 0 {
		return o.fresh()
	}

	obj = o.queue[len(o.queue)-1]
	o.queue = o.queue[:len(o.queue)-1]

	return obj
}

// Release returns the object into the pool. Objects exceeding the capacity are dropped.
func (o *ObjectPool[T]) Release(obj T) {
	if len(o.queue) == cap(o.queue) {
		return
	}

	o.queue = append(o.queue, obj)
}

// Len returns the number of objects ready for reuse.
func (o *ObjectPool[T]) Len() int {
	return len(o.queue)
}
