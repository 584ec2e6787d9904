package game

import "fmt"

// Perturber builds the model input representing "only the coalition's
// tokens are present". Implementations must be pure: the same (tokens,
// coalition) pair always yields the same output, and the original token
// slice is never mutated.
type Perturber interface {
	Perturb(tokens []string, c Coalition) ([]string, error)
}

// MaskPerturber replaces absent positions with a fixed neutral marker
// token and copies present positions unchanged.
type MaskPerturber struct {
	Marker string
}

// Perturb returns a new token slice of the same length where every
// position absent from the coalition holds the marker.
func (p MaskPerturber) Perturb(tokens []string, c Coalition) ([]string, error) {
	if len(c) != len(tokens) {
		return nil, fmt.Errorf("%w: coalition length %d, sequence length %d", ErrShape, len(c), len(tokens))
	}
	out := make([]string, len(tokens))
	for i, present := range c {
		if present {
			out[i] = tokens[i]
		} else {
			out[i] = p.Marker
		}
	}
	return out, nil
}
