package approx

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/tokenshap/tokenshap-go/internal/game"
)

// dummyGame mirrors the classic interaction benchmark: the raw score of a
// coalition is |S|/n, plus 1.0 when both players of the given pair are
// present. The empty score is 0, so normalized worths equal raw scores.
func dummyGame(t *testing.T, n int, pair [2]int) *game.Game {
	t.Helper()
	tokens := make([]string, n)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("t%d", i)
	}
	sc := game.ScorerFunc(func(_ context.Context, inputs [][]string) ([]float64, error) {
		out := make([]float64, len(inputs))
		for i, input := range inputs {
			size := 0
			first, second := false, false
			for j, tok := range input {
				if tok == "[MASK]" {
					continue
				}
				size++
				if j == pair[0] {
					first = true
				}
				if j == pair[1] {
					second = true
				}
			}
			v := float64(size) / float64(n)
			if first && second {
				v += 1.0
			}
			out[i] = v
		}
		return out, nil
	})
	g, err := game.New(context.Background(), tokens, sc, game.MaskPerturber{Marker: "[MASK]"})
	if err != nil {
		t.Fatalf("game.New failed: %v", err)
	}
	return g
}

// tableGame builds a game whose raw score for each coalition bit mask comes
// from a fixed table of length 2^n.
func tableGame(t *testing.T, raw []float64) *game.Game {
	t.Helper()
	n := 0
	for 1<<uint(n) < len(raw) {
		n++
	}
	if 1<<uint(n) != len(raw) {
		t.Fatalf("table length %d is not a power of two", len(raw))
	}
	tokens := make([]string, n)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("t%d", i)
	}
	sc := game.ScorerFunc(func(_ context.Context, inputs [][]string) ([]float64, error) {
		out := make([]float64, len(inputs))
		for i, input := range inputs {
			mask := 0
			for j, tok := range input {
				if tok != "[MASK]" {
					mask |= 1 << uint(j)
				}
			}
			out[i] = raw[mask]
		}
		return out, nil
	})
	g, err := game.New(context.Background(), tokens, sc, game.MaskPerturber{Marker: "[MASK]"})
	if err != nil {
		t.Fatalf("game.New failed: %v", err)
	}
	return g
}

func TestExactSIIDummyGame(t *testing.T) {
	n := 4
	g := dummyGame(t, n, [2]int{1, 2})

	iv, err := Approximate(context.Background(), g, Request{
		Index:    IndexSII,
		MaxOrder: 2,
		Budget:   1 << uint(n),
	})
	if err != nil {
		t.Fatalf("Approximate failed: %v", err)
	}

	if iv.Estimated() {
		t.Error("full-powerset budget must produce exact values")
	}
	if iv.BudgetUsed() != 1<<uint(n) {
		t.Errorf("BudgetUsed = %d, want %d", iv.BudgetUsed(), 1<<uint(n))
	}

	const tol = 1e-12
	checks := []struct {
		players []int
		want    float64
	}{
		{[]int{0}, 0.25},
		{[]int{1}, 0.75},
		{[]int{2}, 0.75},
		{[]int{3}, 0.25},
		{[]int{1, 2}, 1.0},
		{[]int{0, 1}, 0.0},
		{[]int{0, 3}, 0.0},
	}
	for _, c := range checks {
		got, ok := iv.Get(c.players...)
		if !ok {
			t.Fatalf("subset %v missing from result", c.players)
		}
		if math.Abs(got-c.want) > tol {
			t.Errorf("SII%v = %v, want %v", c.players, got, c.want)
		}
	}
}

// Cross-check the Moebius-transform path against a direct evaluation of the
// discrete-derivative definition of SII on an arbitrary value table.
func TestExactSIIMatchesDefinition(t *testing.T) {
	raw := []float64{0.3, 1.1, -0.7, 0.9, 0.2, -1.4, 0.8, 2.5}
	n := 3
	g := tableGame(t, raw)

	iv, err := Approximate(context.Background(), g, Request{
		Index:    IndexSII,
		MaxOrder: 3,
		Budget:   1 << uint(n),
	})
	if err != nil {
		t.Fatalf("Approximate failed: %v", err)
	}

	// Normalized worths by bit mask.
	v := make([]float64, len(raw))
	for mask := range raw {
		v[mask] = raw[mask] - raw[0]
	}

	fact := []float64{1, 1, 2, 6, 24}
	factorial := func(k int) float64 { return fact[k] }
	popcount := func(m int) int {
		c := 0
		for ; m != 0; m &= m - 1 {
			c++
		}
		return c
	}

	for _, subset := range iv.Subsets() {
		s := len(subset)
		sMask := 0
		for _, p := range subset {
			sMask |= 1 << uint(p)
		}

		want := 0.0
		for w := 0; w < 1<<uint(n); w++ {
			if w&sMask != 0 {
				continue
			}
			// Discrete derivative of S at W.
			deriv := 0.0
			for l := sMask; ; l = (l - 1) & sMask {
				sign := 1.0
				if (s-popcount(l))%2 != 0 {
					sign = -1.0
				}
				deriv += sign * v[w|l]
				if l == 0 {
					break
				}
			}
			wSize := popcount(w)
			weight := factorial(wSize) * factorial(n-wSize-s) / factorial(n-s+1)
			want += weight * deriv
		}

		got, _ := iv.Get(subset...)
		if math.Abs(got-want) > 1e-10 {
			t.Errorf("SII%v = %v, definition gives %v", subset, got, want)
		}
	}
}

func TestExactShapleyEfficiency(t *testing.T) {
	n := 4
	g := dummyGame(t, n, [2]int{1, 2})

	iv, err := Approximate(context.Background(), g, Request{
		Index:  IndexSV,
		Budget: 1 << uint(n),
	})
	if err != nil {
		t.Fatalf("Approximate failed: %v", err)
	}
	if iv.MaxOrder() != 1 {
		t.Errorf("SV must be first order, got max order %d", iv.MaxOrder())
	}

	// Sum of Shapley values equals the normalized grand-coalition worth
	// n/n + 1 = 2.
	if got := iv.SumOfOrder(1); math.Abs(got-2.0) > 1e-12 {
		t.Errorf("sum of Shapley values = %v, want 2.0", got)
	}
}

func TestExactShapleyTwoTokenScenario(t *testing.T) {
	// Raw scores: 1.0 (empty), 0.6 ({0}), 0.4 ({1}), 0.0 (both).
	g := tableGame(t, []float64{1.0, 0.6, 0.4, 0.0})

	iv, err := Approximate(context.Background(), g, Request{Index: IndexSV, Budget: 4})
	if err != nil {
		t.Fatalf("Approximate failed: %v", err)
	}
	phi0, _ := iv.Get(0)
	phi1, _ := iv.Get(1)
	if math.Abs(phi0-(-0.4)) > 1e-12 {
		t.Errorf("phi(0) = %v, want -0.4", phi0)
	}
	if math.Abs(phi1-(-0.6)) > 1e-12 {
		t.Errorf("phi(1) = %v, want -0.6", phi1)
	}
	if math.Abs(phi0+phi1-(-1.0)) > 1e-12 {
		t.Errorf("phi(0)+phi(1) = %v, want -1.0", phi0+phi1)
	}
}

// With max order = n, k-SII reduces to the Moebius interactions of the game.
func TestExactKSIIFullOrderIsMoebius(t *testing.T) {
	n := 3
	g := dummyGame(t, n, [2]int{0, 1})

	iv, err := Approximate(context.Background(), g, Request{
		Index:    IndexKSII,
		MaxOrder: n,
		Budget:   1 << uint(n),
	})
	if err != nil {
		t.Fatalf("Approximate failed: %v", err)
	}

	const tol = 1e-12
	checks := []struct {
		players []int
		want    float64
	}{
		{[]int{0}, 1.0 / 3},
		{[]int{1}, 1.0 / 3},
		{[]int{2}, 1.0 / 3},
		{[]int{0, 1}, 1.0},
		{[]int{0, 2}, 0.0},
		{[]int{1, 2}, 0.0},
		{[]int{0, 1, 2}, 0.0},
	}
	for _, c := range checks {
		got, ok := iv.Get(c.players...)
		if !ok {
			t.Fatalf("subset %v missing", c.players)
		}
		if math.Abs(got-c.want) > tol {
			t.Errorf("k-SII%v = %v, want %v", c.players, got, c.want)
		}
	}
}

func TestKSIIFirstOrderKeepsEfficiency(t *testing.T) {
	n := 4
	g := dummyGame(t, n, [2]int{1, 2})

	iv, err := Approximate(context.Background(), g, Request{
		Index:    IndexKSII,
		MaxOrder: 2,
		Budget:   1 << uint(n),
	})
	if err != nil {
		t.Fatalf("Approximate failed: %v", err)
	}
	total := iv.SumOfOrder(1) + iv.SumOfOrder(2)
	if math.Abs(total-2.0) > 1e-10 {
		t.Errorf("sum over all k-SII values = %v, want v(N) = 2.0", total)
	}
}

func TestSinglePlayerClampsOrder(t *testing.T) {
	g := tableGame(t, []float64{0.0, 0.8})

	iv, err := Approximate(context.Background(), g, Request{
		Index:    IndexSII,
		MaxOrder: 3,
		Budget:   2,
	})
	if err != nil {
		t.Fatalf("Approximate failed: %v", err)
	}
	if iv.MaxOrder() != 1 || iv.Len() != 1 {
		t.Errorf("single-player game: max order %d, %d subsets; want 1 and 1", iv.MaxOrder(), iv.Len())
	}
	if got, _ := iv.Get(0); math.Abs(got-0.8) > 1e-12 {
		t.Errorf("phi(0) = %v, want 0.8", got)
	}
}

func TestApproximateValidation(t *testing.T) {
	g := dummyGame(t, 4, [2]int{1, 2})

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"unknown index", Request{Index: "STII", MaxOrder: 2, Budget: 16}, ErrConfig},
		{"order above n", Request{Index: IndexSII, MaxOrder: 5, Budget: 16}, ErrConfig},
		{"order zero", Request{Index: IndexSII, MaxOrder: 0, Budget: 16}, ErrConfig},
		{"budget zero", Request{Index: IndexSII, MaxOrder: 2, Budget: 0}, ErrConfig},
		{"budget below floor", Request{Index: IndexSII, MaxOrder: 2, Budget: 5}, ErrBudget},
		{"unknown estimator", Request{Index: IndexSII, MaxOrder: 2, Budget: 10, Estimator: "antithetic"}, ErrConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Approximate(context.Background(), g, tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestApproximateScorerErrorPropagates(t *testing.T) {
	boom := errors.New("scorer down")
	calls := 0
	sc := game.ScorerFunc(func(_ context.Context, inputs [][]string) ([]float64, error) {
		calls++
		if calls > 1 {
			return nil, boom
		}
		return make([]float64, len(inputs)), nil
	})
	g, err := game.New(context.Background(), []string{"a", "b", "c"}, sc, game.MaskPerturber{Marker: "_"})
	if err != nil {
		t.Fatal(err)
	}

	iv, err := Approximate(context.Background(), g, Request{Index: IndexSII, MaxOrder: 2, Budget: 8})
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want the scorer error", err)
	}
	if iv != nil {
		t.Error("failed approximation must not return a partial result")
	}
}

func TestBernoulliNumbers(t *testing.T) {
	b := bernoulliNumbers(4)
	want := []float64{1, -0.5, 1.0 / 6, 0, -1.0 / 30}
	for i := range want {
		if math.Abs(b[i]-want[i]) > 1e-12 {
			t.Errorf("B_%d = %v, want %v", i, b[i], want[i])
		}
	}
}
