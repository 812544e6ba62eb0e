package ring_buffer

import "testing"

func TestRingBuffer_Add(t *testing.T) {
	t.Run("fill ring buffer with digits until it loops, and test that it works", func(t *testing.T) {
		ringBuffer := New[int16](10)

		for i := 0; i < 20; i++ {
			ringBuffer.Add(int16(i))
		}

		expected := []int16{10, 11, 12, 13, 14, 15, 16, 17, 18, 19}
		actual := ringBuffer.Read()

		if len(actual) != len(expected) {
			t.Fatalf("expected %d values, got %d", len(expected), len(actual))
		}

		for i := 0; i < 10; i++ {
			if expected[i] != actual[i] {
				t.Errorf("expected %d, got %d", expected[i], actual[i])
			}
		}
	})

	t.Run("partially filled buffer only returns what was added", func(t *testing.T) {
		ringBuffer := New[float64](4)
		ringBuffer.Add(1.5, 2.5)

		if ringBuffer.Len() != 2 || ringBuffer.Full() {
			t.Fatalf("expected 2 values and not full, got len=%d full=%v", ringBuffer.Len(), ringBuffer.Full())
		}

		actual := ringBuffer.Read()
		if actual[0] != 1.5 || actual[1] != 2.5 {
			t.Errorf("unexpected contents %v", actual)
		}
	})

	t.Run("length never exceeds capacity", func(t *testing.T) {
		ringBuffer := New[int](3)

		for i := 0; i < 7; i++ {
			ringBuffer.Add(i)

			if ringBuffer.Len() > ringBuffer.Cap() {
				t.Fatalf("length %d exceeds capacity %d", ringBuffer.Len(), ringBuffer.Cap())
			}
		}

		if !ringBuffer.Full() {
			t.Errorf("expected buffer to be full")
		}
	})
}

func TestRingBuffer_Every(t *testing.T) {
	ringBuffer := New[int](3)

	below := func(v int) bool { return v < 5 }

	if !ringBuffer.Every(below) {
		t.Errorf("expected Every to hold on an empty buffer")
	}

	ringBuffer.Add(9, 1, 2)

	if ringBuffer.Every(below) {
		t.Errorf("expected Every to fail while 9 is buffered")
	}

	// evicts the 9
	ringBuffer.Add(3)

	if !ringBuffer.Every(below) {
		t.Errorf("expected Every to hold after eviction, buffer is %v", ringBuffer.Read())
	}
}

func TestRingBuffer_Clear(t *testing.T) {
	ringBuffer := New[int](2)
	ringBuffer.Add(1, 2)
	ringBuffer.Clear()

	if ringBuffer.Len() != 0 {
		t.Errorf("expected empty buffer after Clear, got %d values", ringBuffer.Len())
	}

	ringBuffer.Add(7)

	if got := ringBuffer.Read(); len(got) != 1 || got[0] != 7 {
		t.Errorf("expected [7], got %v", got)
	}
}

func TestRingBuffer_MinimumCapacity(t *testing.T) {
	ringBuffer := New[int](0)

	if ringBuffer.Cap() != 1 {
		t.Errorf("expected capacity 1, got %d", ringBuffer.Cap())
	}
}
