package game

import (
	"context"
	"errors"
	"math"
	"testing"
)

// countingScorer records every batch it is asked to score. The score of a
// sequence is baseline plus a fixed delta per unmasked token, so expected
// coalition values are easy to state exactly.
type countingScorer struct {
	baseline float64
	delta    float64
	marker   string

	calls  int
	scored int
}

func (s *countingScorer) Score(_ context.Context, inputs [][]string) ([]float64, error) {
	s.calls++
	s.scored += len(inputs)
	out := make([]float64, len(inputs))
	for i, input := range inputs {
		v := s.baseline
		for _, tok := range input {
			if tok != s.marker {
				v += s.delta
			}
		}
		out[i] = v
	}
	return out, nil
}

func newTestGame(t *testing.T, n int, s Scorer) *Game {
	t.Helper()
	tokens := make([]string, n)
	for i := range tokens {
		tokens[i] = string(rune('a' + i))
	}
	g, err := New(context.Background(), tokens, s, MaskPerturber{Marker: "[MASK]"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return g
}

func TestGameBaselineNormalization(t *testing.T) {
	s := &countingScorer{baseline: 3.5, delta: 0.25, marker: "[MASK]"}
	g := newTestGame(t, 4, s)

	if g.BaselineValue() != 3.5 {
		t.Errorf("BaselineValue = %v, want 3.5", g.BaselineValue())
	}

	vals, err := g.Evaluate(context.Background(), []Coalition{
		EmptyCoalition(4),
		GrandCoalition(4),
	})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if vals[0] != 0 {
		t.Errorf("v(empty) = %v, want exactly 0", vals[0])
	}
	if math.Abs(vals[1]-1.0) > 1e-12 {
		t.Errorf("v(grand) = %v, want 1.0", vals[1])
	}
}

func TestGameDeduplication(t *testing.T) {
	s := &countingScorer{baseline: 1, delta: 1, marker: "[MASK]"}
	g := newTestGame(t, 3, s)
	scoredAfterNew := s.scored // the baseline call

	c, _ := FromMembers(3, []int{0, 2})
	vals, err := g.Evaluate(context.Background(), []Coalition{c, c.Clone(), c})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	for i, v := range vals {
		if v != 2 {
			t.Errorf("vals[%d] = %v, want 2", i, v)
		}
	}
	if got := s.scored - scoredAfterNew; got != 1 {
		t.Errorf("scorer saw %d inputs for 3 identical coalitions, want 1", got)
	}

	// Cached across calls: a repeat evaluation needs no scorer call at all.
	calls := s.calls
	if _, err := g.Evaluate(context.Background(), []Coalition{c}); err != nil {
		t.Fatal(err)
	}
	if s.calls != calls {
		t.Errorf("repeat evaluation invoked the scorer %d more times", s.calls-calls)
	}
}

func TestGameSingleBatchPerEvaluate(t *testing.T) {
	s := &countingScorer{baseline: 0, delta: 1, marker: "[MASK]"}
	g := newTestGame(t, 4, s)
	calls := s.calls

	coalitions := make([]Coalition, 0, 8)
	for mask := 0; mask < 8; mask++ {
		c := EmptyCoalition(4)
		for i := 0; i < 4; i++ {
			c[i] = mask&(1<<i) != 0
		}
		coalitions = append(coalitions, c)
	}
	if _, err := g.Evaluate(context.Background(), coalitions); err != nil {
		t.Fatal(err)
	}
	if s.calls != calls+1 {
		t.Errorf("Evaluate made %d scorer calls, want 1", s.calls-calls)
	}
}

func TestGameShapeError(t *testing.T) {
	s := &countingScorer{marker: "[MASK]"}
	g := newTestGame(t, 3, s)
	_, err := g.Evaluate(context.Background(), []Coalition{EmptyCoalition(4)})
	if !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape, got %v", err)
	}
}

func TestGameNoPlayers(t *testing.T) {
	s := &countingScorer{marker: "[MASK]"}
	_, err := New(context.Background(), nil, s, MaskPerturber{Marker: "[MASK]"})
	if !errors.Is(err, ErrNoPlayers) {
		t.Errorf("expected ErrNoPlayers, got %v", err)
	}
}

func TestGameScorerErrorPropagates(t *testing.T) {
	boom := errors.New("model offline")
	failAfterBaseline := false
	s := ScorerFunc(func(_ context.Context, inputs [][]string) ([]float64, error) {
		if failAfterBaseline {
			return nil, boom
		}
		return make([]float64, len(inputs)), nil
	})
	g := newTestGame(t, 3, s)
	failAfterBaseline = true

	_, err := g.Evaluate(context.Background(), []Coalition{GrandCoalition(3)})
	if !errors.Is(err, boom) {
		t.Errorf("expected scorer error to propagate unchanged, got %v", err)
	}
}

func TestGameScorerBatchMismatch(t *testing.T) {
	s := ScorerFunc(func(_ context.Context, inputs [][]string) ([]float64, error) {
		return make([]float64, len(inputs)+1), nil
	})
	_, err := New(context.Background(), []string{"a"}, s, MaskPerturber{Marker: "_"})
	if !errors.Is(err, ErrScorerBatch) {
		t.Errorf("expected ErrScorerBatch, got %v", err)
	}
}

// Two-token sentiment scenario: raw scores 1.0 (empty), 0.6 ({0}),
// 0.4 ({1}), 0.0 (both). Normalized worths subtract the 1.0 baseline.
func TestGameTwoTokenScenario(t *testing.T) {
	raw := map[string]float64{
		"[MASK] [MASK]": 1.0,
		"not [MASK]":    0.6,
		"[MASK] bad":    0.4,
		"not bad":       0.0,
	}
	s := ScorerFunc(func(_ context.Context, inputs [][]string) ([]float64, error) {
		out := make([]float64, len(inputs))
		for i, input := range inputs {
			out[i] = raw[input[0]+" "+input[1]]
		}
		return out, nil
	})

	g, err := New(context.Background(), []string{"not", "bad"}, s, MaskPerturber{Marker: "[MASK]"})
	if err != nil {
		t.Fatal(err)
	}
	if g.BaselineValue() != 1.0 {
		t.Fatalf("baseline = %v, want 1.0", g.BaselineValue())
	}

	c0, _ := FromMembers(2, []int{0})
	c1, _ := FromMembers(2, []int{1})
	vals, err := g.Evaluate(context.Background(), []Coalition{c0, c1, GrandCoalition(2)})
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{-0.4, -0.6, -1.0}
	for i := range want {
		if math.Abs(vals[i]-want[i]) > 1e-12 {
			t.Errorf("vals[%d] = %v, want %v", i, vals[i], want[i])
		}
	}
}
