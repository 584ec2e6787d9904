// Package approx estimates Shapley interaction values for a coalition game
// from a bounded budget of value-function evaluations. With a budget
// covering the full powerset it enumerates and computes exactly via the
// Moebius transform; below that it samples coalitions and combines them
// into unbiased estimates.
package approx

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/tokenshap/tokenshap-go/internal/game"
)

// Index selects the interaction index variant. The set is closed: a new
// variant adds a constant plus an aggregation branch, not a type.
type Index string

const (
	// IndexSV is the first-order Shapley value (singletons only).
	IndexSV Index = "SV"
	// IndexSII is the Shapley interaction index for all subsets up to the
	// requested order.
	IndexSII Index = "SII"
	// IndexKSII is the k-additive aggregation of SII values (n-Shapley
	// values via Bernoulli weighting).
	IndexKSII Index = "k-SII"
)

// Estimator selects the sampling strategy used below the exact budget.
type Estimator string

const (
	// EstimatorStratified samples coalition sizes with inverse size
	// weighting and enumerates border sizes exactly. Default.
	EstimatorStratified Estimator = "stratified"
	// EstimatorPermutation samples player permutations and averages
	// discrete derivatives over sliding windows.
	EstimatorPermutation Estimator = "permutation"
)

// Request describes one approximation run.
type Request struct {
	// Index is the interaction index variant to compute.
	Index Index
	// MaxOrder is the largest subset size to attribute values to.
	// Ignored for IndexSV, which is always first order.
	MaxOrder int
	// Budget bounds the number of distinct coalitions evaluated through
	// the game.
	Budget int
	// Estimator picks the sampling strategy in estimation mode. Empty
	// selects EstimatorStratified.
	Estimator Estimator
	// Seed fixes the sampling RNG. Zero seeds from entropy.
	Seed int64
}

// Approximate runs one atomic approximation: it either returns a complete
// InteractionValues or an error, never a partial result.
func Approximate(ctx context.Context, g *game.Game, req Request) (*InteractionValues, error) {
	n := g.NPlayers()

	maxOrder := req.MaxOrder
	if req.Index == IndexSV {
		maxOrder = 1
	}
	if n == 1 {
		// No interactions possible.
		maxOrder = 1
	}

	if err := validate(n, maxOrder, req); err != nil {
		return nil, err
	}

	// Exact mode when the budget covers the powerset. For n >= 63 the
	// powerset size overflows int and exact mode is unreachable.
	if n < 63 && req.Budget >= 1<<uint(n) {
		return exact(ctx, g, maxOrder, req.Index)
	}

	if req.Budget < n+2 {
		return nil, fmt.Errorf("%w: budget %d cannot cover %d singletons plus empty and full coalitions", ErrBudget, req.Budget, n)
	}

	rng := rand.New(rand.NewSource(req.Seed))
	if req.Seed == 0 {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	estimator := req.Estimator
	if estimator == "" {
		estimator = EstimatorStratified
	}
	switch estimator {
	case EstimatorStratified:
		return stratified(ctx, g, maxOrder, req.Index, req.Budget, rng)
	case EstimatorPermutation:
		return permutation(ctx, g, maxOrder, req.Index, req.Budget, rng)
	default:
		return nil, fmt.Errorf("%w: unknown estimator %q", ErrConfig, estimator)
	}
}

func validate(n, maxOrder int, req Request) error {
	switch req.Index {
	case IndexSV, IndexSII, IndexKSII:
	default:
		return fmt.Errorf("%w: unknown index variant %q", ErrConfig, req.Index)
	}
	if n < 1 {
		return fmt.Errorf("%w: game has %d players", ErrConfig, n)
	}
	if maxOrder < 1 || maxOrder > n {
		return fmt.Errorf("%w: max order %d outside [1, %d]", ErrConfig, maxOrder, n)
	}
	if req.Budget < 1 {
		return fmt.Errorf("%w: budget %d below 1", ErrConfig, req.Budget)
	}
	return nil
}

// evalBatchSize bounds how many coalitions go into one game call during
// powerset enumeration.
const evalBatchSize = 2048

// evaluateBatched runs coalitions through the game in chunks, keeping each
// scorer invocation bounded while still amortizing per-call overhead.
func evaluateBatched(ctx context.Context, g *game.Game, coalitions []game.Coalition) ([]float64, error) {
	values := make([]float64, 0, len(coalitions))
	for start := 0; start < len(coalitions); start += evalBatchSize {
		end := start + evalBatchSize
		if end > len(coalitions) {
			end = len(coalitions)
		}
		batch, err := g.Evaluate(ctx, coalitions[start:end])
		if err != nil {
			return nil, err
		}
		values = append(values, batch...)
	}
	return values, nil
}
