package ring_buffer

import "testing"

func TestRingBuffer_Add(t *testing.T) {
	t.Run("fill ring buffer with digits until it loops, and test that it works", func(t *testing.T) {
		ringBuffer := New(10)

		for i := 0; i < 20; i++ {
			ringBuffer.Add([]int16{int16(i)})
		}

		expected := []int16{10, 11, 12, 13, 14, 15, 16, 17, 18, 19}
		actual := ringBuffer.Read()

		for i := 0; i < 10; i++ {
			if expected[i] != actual[i] {
				t.Errorf("expected %d, got %d", expected[i], actual[i])
			}
		}
	})

	t.Run("a partially filled buffer reads back only what was written", func(t *testing.T) {
		ringBuffer := New(10)

		ringBuffer.Add([]int16{1, 2, 3})

		actual := ringBuffer.Read()
		if len(actual) != 3 {
			t.Fatalf("expected 3 samples, got %d", len(actual))
		}
		for i, want := range []int16{1, 2, 3} {
			if actual[i] != want {
				t.Errorf("expected %d, got %d", want, actual[i])
			}
		}
	})

	t.Run("clear empties the buffer", func(t *testing.T) {
		ringBuffer := New(4)

		ringBuffer.Add([]int16{1, 2, 3, 4, 5})
		ringBuffer.Clear()

		if ringBuffer.Len() != 0 {
			t.Errorf("expected empty buffer, got %d samples", ringBuffer.Len())
		}
	})
}
