package approx

import (
	"context"
	"math/bits"

	"gonum.org/v1/gonum/stat/combin"

	"github.com/tokenshap/tokenshap-go/internal/game"
)

// exact enumerates the full powerset and computes interaction values from
// the Moebius transform of the game. Only reachable when the budget covers
// all 2^n coalitions.
func exact(ctx context.Context, g *game.Game, maxOrder int, index Index) (*InteractionValues, error) {
	n := g.NPlayers()
	total := 1 << uint(n)

	coalitions := make([]game.Coalition, total)
	for mask := 0; mask < total; mask++ {
		c := make(game.Coalition, n)
		for i := 0; i < n; i++ {
			if mask&(1<<uint(i)) != 0 {
				c[i] = true
			}
		}
		coalitions[mask] = c
	}

	values, err := evaluateBatched(ctx, g, coalitions)
	if err != nil {
		return nil, err
	}

	moebius := moebiusTransform(values, n)

	subsets := enumerateSubsets(n, maxOrder)
	sii := make(map[string]float64, len(subsets))
	for _, subset := range subsets {
		s := len(subset)
		subsetMask := 0
		for _, p := range subset {
			subsetMask |= 1 << uint(p)
		}
		complement := (total - 1) &^ subsetMask

		// I_SII(S) = sum over supersets T of S of a(T) / (|T| - |S| + 1).
		sum := 0.0
		w := complement
		for {
			t := subsetMask | w
			sum += moebius[t] / float64(bits.OnesCount(uint(t))-s+1)
			if w == 0 {
				break
			}
			w = (w - 1) & complement
		}
		sii[game.SubsetKey(subset)] = sum
	}

	out := sii
	if index == IndexKSII {
		out = ksiiFromSII(subsets, sii)
	}

	return newInteractionValues(index, maxOrder, n, g.BaselineValue(), false, total, subsets, out), nil
}

// moebiusTransform converts powerset values indexed by bit mask into
// Moebius (Harsanyi dividend) coefficients:
// a(S) = sum over T subset of S of (-1)^(|S|-|T|) v(T).
func moebiusTransform(values []float64, n int) []float64 {
	a := make([]float64, len(values))
	copy(a, values)
	for i := 0; i < n; i++ {
		bit := 1 << uint(i)
		for mask := range a {
			if mask&bit != 0 {
				a[mask] -= a[mask^bit]
			}
		}
	}
	return a
}

// enumerateSubsets lists every subset of {0..n-1} of size 1..maxOrder,
// ascending by size then lexicographically.
func enumerateSubsets(n, maxOrder int) [][]int {
	var subsets [][]int
	for k := 1; k <= maxOrder; k++ {
		subsets = append(subsets, combin.Combinations(n, k)...)
	}
	return subsets
}

// ksiiFromSII aggregates SII values of orders 1..k into the k-additive
// decomposition (n-Shapley values):
// phi(S) = sum over supersets T of S with |T| <= k of B_{|T|-|S|} * SII(T)
// with B the Bernoulli numbers (B_1 = -1/2). With k = n this recovers the
// Moebius interactions; order-1 values keep the efficiency property.
func ksiiFromSII(subsets [][]int, sii map[string]float64) map[string]float64 {
	maxLen := 0
	for _, s := range subsets {
		if len(s) > maxLen {
			maxLen = len(s)
		}
	}
	bern := bernoulliNumbers(maxLen)

	out := make(map[string]float64, len(subsets))
	for _, s := range subsets {
		out[game.SubsetKey(s)] = 0
	}
	for _, t := range subsets {
		v := sii[game.SubsetKey(t)]
		for _, s := range subsets {
			if len(s) > len(t) {
				continue
			}
			if !containsSorted(t, s) {
				continue
			}
			out[game.SubsetKey(s)] += bern[len(t)-len(s)] * v
		}
	}
	return out
}

// bernoulliNumbers returns B_0..B_k with the B_1 = -1/2 convention,
// computed by the defining recurrence.
func bernoulliNumbers(k int) []float64 {
	b := make([]float64, k+1)
	b[0] = 1
	for m := 1; m <= k; m++ {
		sum := 0.0
		for j := 0; j < m; j++ {
			sum += float64(combin.Binomial(m+1, j)) * b[j]
		}
		b[m] = -sum / float64(m+1)
	}
	return b
}

// containsSorted reports whether sorted slice sub is a subset of sorted
// slice super.
func containsSorted(super, sub []int) bool {
	i := 0
	for _, want := range sub {
		for i < len(super) && super[i] < want {
			i++
		}
		if i >= len(super) || super[i] != want {
			return false
		}
		i++
	}
	return true
}
