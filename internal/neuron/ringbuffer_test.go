package neuron

import "testing"

func TestDelayBuffer_ScheduleAndRead(t *testing.T) {
	b := NewDelayBuffer(3)
	if b.Delay() != 3 || b.Len() != 4 {
		t.Fatalf("Delay() = %d, Len() = %d, want 3 and 4", b.Delay(), b.Len())
	}

	b.Schedule(10, 0.5)
	b.Schedule(10, 0.25)

	for step := 10; step < 13; step++ {
		if got := b.Read(step); got != 0 {
			t.Errorf("Read(%d) = %v, want 0", step, got)
		}
	}
	if got := b.Read(13); got != 0.75 {
		t.Errorf("Read(13) = %v, want 0.75", got)
	}

	b.Clear(13)
	if got := b.Read(17); got != 0 {
		t.Errorf("Read(17) after clear = %v, want 0", got)
	}
}

func TestDelayBuffer_WrapsAround(t *testing.T) {
	b := NewDelayBuffer(1)
	for step := range 10 {
		b.Schedule(step, float64(step))
		if got := b.Read(step + 1); got != float64(step) {
			t.Fatalf("Read(%d) = %v, want %v", step+1, got, float64(step))
		}
		b.Clear(step + 1)
	}
}

func TestDelayBuffer_NegativeDelayPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	NewDelayBuffer(-1)
}
