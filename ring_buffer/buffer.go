package ring_buffer

// Buffer is a bounded FIFO. Adding to a full buffer evicts the oldest value.
type Buffer[T any] struct {
	buffer []T
	head   int
	size   int
}

func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}

	return &Buffer[T]{
		buffer: make([]T, capacity),
	}
}

func (r *Buffer[T]) Add(values ...T) {
	for _, v := range values {
		r.buffer[r.head] = v
		r.head = (r.head + 1) % len(r.buffer)

		if r.size < len(r.buffer) {
			r.size++
		}
	}
}

// Read returns the buffered values, oldest first.
func (r *Buffer[T]) Read() []T {
	values := make([]T, r.size)
	start := (r.head - r.size + len(r.buffer)) % len(r.buffer)

	for i := 0; i < r.size; i++ {
		values[i] = r.buffer[(start+i)%len(r.buffer)]
	}

	return values
}

// Every reports whether pred holds for every buffered value. It is true for
// an empty buffer.
func (r *Buffer[T]) Every(pred func(T) bool) bool {
	start := (r.head - r.size + len(r.buffer)) % len(r.buffer)

	for i := 0; i < r.size; i++ {
		if !pred(r.buffer[(start+i)%len(r.buffer)]) {
			return false
		}
	}

	return true
}

func (r *Buffer[T]) Len() int {
	return r.size
}

func (r *Buffer[T]) Cap() int {
	return len(r.buffer)
}

func (r *Buffer[T]) Full() bool {
	return r.size == len(r.buffer)
}

func (r *Buffer[T]) Clear() {
	var zero T

	for i := range r.buffer {
		r.buffer[i] = zero
	}

	r.head = 0
	r.size = 0
}
