// Package game turns a black-box sequence scorer into a normalized
// cooperative set function over its input tokens. A Game owns the baseline
// captured from the empty coalition and a per-game de-duplication cache, so
// repeated coalitions never cost a second scorer call.
package game

import (
	"context"
	"fmt"
	"sync"
)

// Scorer is the black-box model capability. It maps an ordered batch of
// token sequences to an ordered batch of real-valued scores, one per
// input. Repeated identical inputs must yield identical scores; the game's
// caching relies on that.
type Scorer interface {
	Score(ctx context.Context, inputs [][]string) ([]float64, error)
}

// ScorerFunc adapts a plain function to the Scorer interface.
type ScorerFunc func(ctx context.Context, inputs [][]string) ([]float64, error)

// Score implements Scorer.
func (f ScorerFunc) Score(ctx context.Context, inputs [][]string) ([]float64, error) {
	return f(ctx, inputs)
}

// Game is a normalized coalition value function v: 2^N -> R over the
// tokens of one input instance. Construction captures the empty-coalition
// score as the baseline; every later evaluation returns
// score(perturbed) - baseline, so v(empty) == 0 exactly.
//
// A Game is built per explained input and discarded afterwards. The cache
// is game-local state, never shared across games.
type Game struct {
	n         int
	tokens    []string
	scorer    Scorer
	perturber Perturber
	baseline  float64

	mu    sync.Mutex
	cache map[string]float64
}

// New constructs a game over the given token sequence. It performs one
// scorer call for the empty coalition to capture the baseline value.
func New(ctx context.Context, tokens []string, scorer Scorer, perturber Perturber) (*Game, error) {
	n := len(tokens)
	if n < 1 {
		return nil, ErrNoPlayers
	}

	owned := make([]string, n)
	copy(owned, tokens)

	g := &Game{
		n:         n,
		tokens:    owned,
		scorer:    scorer,
		perturber: perturber,
		cache:     make(map[string]float64),
	}

	empty := EmptyCoalition(n)
	perturbed, err := perturber.Perturb(owned, empty)
	if err != nil {
		return nil, err
	}
	scores, err := scorer.Score(ctx, [][]string{perturbed})
	if err != nil {
		return nil, err
	}
	if len(scores) != 1 {
		return nil, fmt.Errorf("%w: %d scores for 1 input", ErrScorerBatch, len(scores))
	}
	g.baseline = scores[0]
	g.cache[empty.Key()] = 0

	return g, nil
}

// NPlayers returns the number of maskable features of the input.
func (g *Game) NPlayers() int { return g.n }

// BaselineValue returns the raw scorer output on the empty coalition.
func (g *Game) BaselineValue() float64 { return g.baseline }

// Tokens returns a copy of the original feature sequence.
func (g *Game) Tokens() []string {
	out := make([]string, g.n)
	copy(out, g.tokens)
	return out
}

// Evaluate returns the normalized worth of each coalition, in input order.
// Coalitions repeated within the batch or already seen by this game are
// served from the cache; the scorer is invoked at most once per call, with
// exactly the distinct uncached coalitions.
func (g *Game) Evaluate(ctx context.Context, coalitions []Coalition) ([]float64, error) {
	for i, c := range coalitions {
		if len(c) != g.n {
			return nil, fmt.Errorf("%w: coalition %d has length %d, game has %d players", ErrShape, i, len(c), g.n)
		}
	}

	out := make([]float64, len(coalitions))

	g.mu.Lock()
	defer g.mu.Unlock()

	// Distinct uncached coalitions, first-seen order preserved.
	var pendingKeys []string
	var pendingInputs [][]string
	seen := make(map[string]bool)
	keys := make([]string, len(coalitions))
	for i, c := range coalitions {
		key := c.Key()
		keys[i] = key
		if _, ok := g.cache[key]; ok || seen[key] {
			continue
		}
		seen[key] = true
		perturbed, err := g.perturber.Perturb(g.tokens, c)
		if err != nil {
			return nil, err
		}
		pendingKeys = append(pendingKeys, key)
		pendingInputs = append(pendingInputs, perturbed)
	}

	if len(pendingInputs) > 0 {
		scores, err := g.scorer.Score(ctx, pendingInputs)
		if err != nil {
			return nil, err
		}
		if len(scores) != len(pendingInputs) {
			return nil, fmt.Errorf("%w: %d scores for %d inputs", ErrScorerBatch, len(scores), len(pendingInputs))
		}
		for i, key := range pendingKeys {
			g.cache[key] = scores[i] - g.baseline
		}
	}

	for i, key := range keys {
		out[i] = g.cache[key]
	}
	return out, nil
}
