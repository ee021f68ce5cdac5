package random

import "testing"

func TestUniformStaysInRange(t *testing.T) {
	src := New()
	for i := 0; i < 1000; i++ {
		v := src.Uniform(-0.5, 0.1)
		if v < -0.5 || v > 0.1 {
			t.Fatalf("value %v out of range", v)
		}
	}
}

func TestSeededSourceIsDeterministic(t *testing.T) {
	a := NewSeeded(42)
	b := NewSeeded(42)
	for i := 0; i < 10; i++ {
		if a.Uniform(-0.1, 0.1) != b.Uniform(-0.1, 0.1) {
			t.Fatalf("seeded sources diverged at draw %d", i)
		}
	}
}
