package aggregate

import (
	"math"
	"math/rand"
	"testing"
)

func TestSum(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float64{3.5}, 3.5},
		{"mixed", []float64{5, -2}, 3},
		{"cancels", []float64{1, -1}, 0},
		{"compensated", []float64{1e16, 1, -1e16}, 1},
		{"overflow", []float64{math.MaxFloat64, math.MaxFloat64}, math.Inf(1)},
		{"negative overflow", []float64{-math.MaxFloat64, -math.MaxFloat64, 1}, math.Inf(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sum(tt.values); got != tt.want {
				t.Errorf("Sum(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestSum_DoesNotMutate(t *testing.T) {
	values := []float64{3, 1, 2}
	Sum(values)
	if values[0] != 3 || values[1] != 1 || values[2] != 2 {
		t.Errorf("Sum reordered its input: %v", values)
	}
}

func TestSum_PermutationInvariant(t *testing.T) {
	r := rand.New(rand.NewSource(99))
	values := make([]float64, 257)
	for i := range values {
		values[i] = (r.Float64() - 0.5) * math.Pow(10, float64(r.Intn(12)-4))
	}

	want := math.Float64bits(Sum(values))
	for i := 0; i < 50; i++ {
		r.Shuffle(len(values), func(a, b int) { values[a], values[b] = values[b], values[a] })
		if got := math.Float64bits(Sum(values)); got != want {
			t.Fatalf("permutation %d changed the sum", i)
		}
	}
}
