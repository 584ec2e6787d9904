package approx

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat/combin"

	"github.com/tokenshap/tokenshap-go/internal/game"
)

// stratified is the size-stratified inverse-probability estimator. It
// rests on the identity
//
//	I_SII(S) = sum over all T of v(T) * (-1)^(|S|-|T cap S|) * w_s(|T \ S|)
//
// with w_s(l) = l! (n-l-s)! / (n-s+1)!. Border coalition sizes whose full
// stratum fits the remaining budget are enumerated exactly (cheapest
// strata first: size 0, n, 1, n-1, ...); the interior sizes are sampled
// with probability q(t) proportional to 1/(t(n-t)), which oversamples
// small and large coalitions where the weights concentrate. Sampled terms
// are reweighted by their inverse draw probability, so the estimator is
// unbiased for every interaction subset, and degrades to the exact sum
// once every size is enumerated.
//
// All weights are computed in log space; strata whose binomial exceeds
// the budget are simply never enumerated, so large n never materializes
// an overflowing binomial.
func stratified(ctx context.Context, g *game.Game, maxOrder int, index Index, budget int, rng *rand.Rand) (*InteractionValues, error) {
	n := g.NPlayers()

	// Promote border sizes to exact enumeration, cheapest stratum first.
	remaining := budget
	explicit := make(map[int]bool)
	for _, t := range borderOrder(n) {
		size := strataSize(n, t, remaining)
		if size > remaining {
			break
		}
		explicit[t] = true
		remaining -= size
	}

	var interior []int
	for t := 1; t < n; t++ {
		if !explicit[t] {
			interior = append(interior, t)
		}
	}

	// Interior size distribution q(t) ~ 1/(t(n-t)).
	probs := make([]float64, len(interior))
	norm := 0.0
	for i, t := range interior {
		probs[i] = 1.0 / (float64(t) * float64(n-t))
		norm += probs[i]
	}
	for i := range probs {
		probs[i] /= norm
	}

	// Enumerate the explicit strata.
	var expCoalitions []game.Coalition
	for _, t := range borderOrder(n) {
		if !explicit[t] {
			continue
		}
		switch t {
		case 0:
			expCoalitions = append(expCoalitions, game.EmptyCoalition(n))
		case n:
			expCoalitions = append(expCoalitions, game.GrandCoalition(n))
		default:
			for _, members := range combin.Combinations(n, t) {
				c, err := game.FromMembers(n, members)
				if err != nil {
					return nil, err
				}
				expCoalitions = append(expCoalitions, c)
			}
		}
	}
	expValues, err := evaluateBatched(ctx, g, expCoalitions)
	if err != nil {
		return nil, err
	}

	// Draw the sampled coalitions, with replacement. Duplicates are free
	// at the scorer (game cache) and keep the estimator unbiased.
	draws := remaining
	drawCoalitions := make([]game.Coalition, 0, draws)
	drawSizeIdx := make([]int, 0, draws)
	for m := 0; m < draws && len(interior) > 0; m++ {
		idx := sampleIndex(rng, probs)
		t := interior[idx]
		members := rng.Perm(n)[:t]
		sort.Ints(members)
		c, err := game.FromMembers(n, members)
		if err != nil {
			return nil, err
		}
		drawCoalitions = append(drawCoalitions, c)
		drawSizeIdx = append(drawSizeIdx, idx)
	}
	drawValues, err := evaluateBatched(ctx, g, drawCoalitions)
	if err != nil {
		return nil, err
	}

	subsets := enumerateSubsets(n, maxOrder)
	sii := make(map[string]float64, len(subsets))
	for _, subset := range subsets {
		s := len(subset)

		est := 0.0
		for i, c := range expCoalitions {
			est += expValues[i] * siiCoefficient(n, s, subset, c)
		}

		if len(drawCoalitions) > 0 {
			acc := 0.0
			for m, c := range drawCoalitions {
				t := interior[drawSizeIdx[m]]
				coeff := siiCoefficient(n, s, subset, c)
				// Inverse draw probability 1/p(T) = C(n,t)/q(t),
				// folded in log space against the coefficient.
				logInvP := logChoose(n, t) - math.Log(probs[drawSizeIdx[m]])
				acc += drawValues[m] * math.Copysign(math.Exp(math.Log(math.Abs(coeff))+logInvP), coeff)
			}
			est += acc / float64(len(drawCoalitions))
		}

		sii[game.SubsetKey(subset)] = est
	}

	out := sii
	if index == IndexKSII {
		out = ksiiFromSII(subsets, sii)
	}

	used := distinctCount(expCoalitions, drawCoalitions)
	return newInteractionValues(index, maxOrder, n, g.BaselineValue(), true, used, subsets, out), nil
}

// siiCoefficient returns (-1)^(s - |T cap S|) * w_s(|T \ S|) for subset S
// (given by its sorted members, size s) against coalition T.
func siiCoefficient(n, s int, subset []int, t game.Coalition) float64 {
	inter := 0
	for _, p := range subset {
		if t[p] {
			inter++
		}
	}
	outside := t.Size() - inter

	lw, _ := math.Lgamma(float64(outside + 1))
	lg, _ := math.Lgamma(float64(n - outside - s + 1))
	ld, _ := math.Lgamma(float64(n - s + 2))
	w := math.Exp(lw + lg - ld)
	if (s-inter)%2 != 0 {
		return -w
	}
	return w
}

// borderOrder lists coalition sizes from the cheapest strata inward:
// 0, n, 1, n-1, 2, n-2, ...
func borderOrder(n int) []int {
	order := make([]int, 0, n+1)
	lo, hi := 0, n
	for lo <= hi {
		order = append(order, lo)
		if hi != lo {
			order = append(order, hi)
		}
		lo++
		hi--
	}
	return order
}

// strataSize returns C(n, t), or limit+1 when the binomial cannot fit the
// limit, without ever overflowing.
func strataSize(n, t, limit int) int {
	if logChoose(n, t) > math.Log(float64(limit))+1e-9 {
		return limit + 1
	}
	return combin.Binomial(n, t)
}

func logChoose(n, t int) float64 {
	ln, _ := math.Lgamma(float64(n + 1))
	lt, _ := math.Lgamma(float64(t + 1))
	lr, _ := math.Lgamma(float64(n - t + 1))
	return ln - lt - lr
}

// sampleIndex draws an index from the given normalized distribution.
func sampleIndex(rng *rand.Rand, probs []float64) int {
	u := rng.Float64()
	acc := 0.0
	for i, p := range probs {
		acc += p
		if u < acc {
			return i
		}
	}
	return len(probs) - 1
}

// distinctCount counts distinct coalitions across both evaluation sets.
func distinctCount(groups ...[]game.Coalition) int {
	seen := make(map[string]bool)
	for _, group := range groups {
		for _, c := range group {
			seen[c.Key()] = true
		}
	}
	return len(seen)
}
