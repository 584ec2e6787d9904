package approx

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/tokenshap/tokenshap-go/internal/game"
)

// permutation is the permutation-sampling estimator. Each iteration draws
// one player ordering and, for every order s up to maxOrder, walks the
// n-s+1 contiguous windows of the ordering, evaluating the discrete
// derivative of the window's subset on top of the players preceding it.
// Interaction values are the means of those derivatives. One iteration
// costs sum over s of (n-s+1)*2^s evaluations.
func permutation(ctx context.Context, g *game.Game, maxOrder int, index Index, budget int, rng *rand.Rand) (*InteractionValues, error) {
	n := g.NPlayers()

	cost := iterationCost(n, maxOrder)
	if cost <= 0 || cost > budget {
		return nil, fmt.Errorf("%w: budget %d below one permutation iteration (%d evaluations) at order %d", ErrBudget, budget, cost, maxOrder)
	}
	iterations := budget / cost

	type update struct {
		key  string
		sign float64
	}

	var coalitions []game.Coalition
	var updates []update
	counts := make(map[string]int)

	for iter := 0; iter < iterations; iter++ {
		perm := rng.Perm(n)
		for s := 1; s <= maxOrder; s++ {
			for k := 0; k+s <= n; k++ {
				window := perm[k : k+s]
				previous := perm[:k]
				key := game.SubsetKey(window)
				counts[key]++

				// All 2^s sub-coalitions of the window on top of
				// the preceding players.
				for pick := 0; pick < 1<<uint(s); pick++ {
					members := make([]int, 0, k+s)
					members = append(members, previous...)
					picked := 0
					for j := 0; j < s; j++ {
						if pick&(1<<uint(j)) != 0 {
							members = append(members, window[j])
							picked++
						}
					}
					c, err := game.FromMembers(n, members)
					if err != nil {
						return nil, err
					}
					sign := 1.0
					if (s-picked)%2 != 0 {
						sign = -1.0
					}
					coalitions = append(coalitions, c)
					updates = append(updates, update{key: key, sign: sign})
				}
			}
		}
	}

	values, err := evaluateBatched(ctx, g, coalitions)
	if err != nil {
		return nil, err
	}

	sums := make(map[string]float64)
	for i, u := range updates {
		sums[u.key] += u.sign * values[i]
	}

	subsets := enumerateSubsets(n, maxOrder)
	sii := make(map[string]float64, len(subsets))
	for _, subset := range subsets {
		key := game.SubsetKey(subset)
		if c := counts[key]; c > 0 {
			sii[key] = sums[key] / float64(c)
		} else {
			// Subset never covered by a sampled window; the estimate
			// defaults to zero but the subset stays in the result.
			sii[key] = 0
		}
	}

	out := sii
	if index == IndexKSII {
		out = ksiiFromSII(subsets, sii)
	}

	used := distinctCount(coalitions)
	return newInteractionValues(index, maxOrder, n, g.BaselineValue(), true, used, subsets, out), nil
}

// iterationCost returns the evaluations one permutation iteration needs,
// or -1 when the count does not fit an int.
func iterationCost(n, maxOrder int) int {
	cost := 0
	for s := 1; s <= maxOrder; s++ {
		if s > 50 {
			return -1
		}
		term := (n - s + 1) << uint(s)
		if term < 0 || cost+term < 0 {
			return -1
		}
		cost += term
	}
	return cost
}
