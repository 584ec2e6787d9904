package approx

import (
	"encoding/json"

	"github.com/tokenshap/tokenshap-go/internal/game"
)

// InteractionValues is the terminal artifact of one approximation run: an
// immutable mapping from feature subsets to their interaction values plus
// the metadata describing how they were produced. Recomputation yields a
// new instance; an existing one is never mutated.
type InteractionValues struct {
	index      Index
	maxOrder   int
	minOrder   int
	nPlayers   int
	baseline   float64
	estimated  bool
	budgetUsed int

	subsets [][]int
	values  map[string]float64
}

func newInteractionValues(
	index Index,
	maxOrder, nPlayers int,
	baseline float64,
	estimated bool,
	budgetUsed int,
	subsets [][]int,
	values map[string]float64,
) *InteractionValues {
	return &InteractionValues{
		index:      index,
		maxOrder:   maxOrder,
		minOrder:   1,
		nPlayers:   nPlayers,
		baseline:   baseline,
		estimated:  estimated,
		budgetUsed: budgetUsed,
		subsets:    subsets,
		values:     values,
	}
}

// Index returns the interaction index variant the values belong to.
func (iv *InteractionValues) Index() Index { return iv.index }

// MaxOrder returns the highest subset size present.
func (iv *InteractionValues) MaxOrder() int { return iv.maxOrder }

// MinOrder returns the lowest subset size present.
func (iv *InteractionValues) MinOrder() int { return iv.minOrder }

// NPlayers returns the player count of the underlying game.
func (iv *InteractionValues) NPlayers() int { return iv.nPlayers }

// BaselineValue returns the raw empty-coalition score of the game.
func (iv *InteractionValues) BaselineValue() float64 { return iv.baseline }

// Estimated reports whether the values are estimates rather than the exact
// combinatorial computation.
func (iv *InteractionValues) Estimated() bool { return iv.estimated }

// BudgetUsed returns the number of distinct coalitions evaluated.
func (iv *InteractionValues) BudgetUsed() int { return iv.budgetUsed }

// Len returns the number of subsets present.
func (iv *InteractionValues) Len() int { return len(iv.subsets) }

// Get looks up the value of a subset given its player indices, in any
// order. The second return is false when the subset is not part of the
// result.
func (iv *InteractionValues) Get(players ...int) (float64, bool) {
	v, ok := iv.values[game.SubsetKey(players)]
	return v, ok
}

// Subsets returns the subsets present, ascending by size then
// lexicographically. The returned slices are copies.
func (iv *InteractionValues) Subsets() [][]int {
	out := make([][]int, len(iv.subsets))
	for i, s := range iv.subsets {
		c := make([]int, len(s))
		copy(c, s)
		out[i] = c
	}
	return out
}

// SumOfOrder returns the sum of all values of subsets of the given size.
// For first-order values of an exact run this is the efficiency total
// v(N) - v(empty).
func (iv *InteractionValues) SumOfOrder(order int) float64 {
	sum := 0.0
	for _, s := range iv.subsets {
		if len(s) == order {
			sum += iv.values[game.SubsetKey(s)]
		}
	}
	return sum
}

// MarshalJSON renders the values keyed by canonical subset key together
// with the metadata block.
func (iv *InteractionValues) MarshalJSON() ([]byte, error) {
	values := make(map[string]float64, len(iv.values))
	for k, v := range iv.values {
		values[k] = v
	}
	return json.Marshal(struct {
		Index      Index              `json:"index"`
		MaxOrder   int                `json:"max_order"`
		MinOrder   int                `json:"min_order"`
		NPlayers   int                `json:"n_players"`
		Baseline   float64            `json:"baseline_value"`
		Estimated  bool               `json:"estimated"`
		BudgetUsed int                `json:"budget_used"`
		Values     map[string]float64 `json:"values"`
	}{iv.index, iv.maxOrder, iv.minOrder, iv.nPlayers, iv.baseline, iv.estimated, iv.budgetUsed, values})
}
