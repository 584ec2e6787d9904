package game

import (
	"fmt"
	"sort"
)

// Coalition is a presence mask over the players of a game. Index i is true
// when player i is part of the coalition.
type Coalition []bool

// EmptyCoalition returns a coalition of n players with nobody present.
func EmptyCoalition(n int) Coalition {
	return make(Coalition, n)
}

// GrandCoalition returns a coalition of n players with everybody present.
func GrandCoalition(n int) Coalition {
	c := make(Coalition, n)
	for i := range c {
		c[i] = true
	}
	return c
}

// FromMembers builds a coalition of n players from a list of member indices.
func FromMembers(n int, members []int) (Coalition, error) {
	c := make(Coalition, n)
	for _, m := range members {
		if m < 0 || m >= n {
			return nil, fmt.Errorf("%w: player index %d out of range [0, %d)", ErrShape, m, n)
		}
		c[m] = true
	}
	return c, nil
}

// Members returns the indices of present players in ascending order.
func (c Coalition) Members() []int {
	members := make([]int, 0, len(c))
	for i, present := range c {
		if present {
			members = append(members, i)
		}
	}
	return members
}

// Size returns the number of present players.
func (c Coalition) Size() int {
	size := 0
	for _, present := range c {
		if present {
			size++
		}
	}
	return size
}

// Clone returns an independent copy of the coalition.
func (c Coalition) Clone() Coalition {
	out := make(Coalition, len(c))
	copy(out, c)
	return out
}

// Key returns the packed bit pattern of the coalition. Coalitions of the
// same game compare equal exactly when their keys compare equal, which is
// what the de-duplication cache hashes on.
func (c Coalition) Key() string {
	buf := make([]byte, (len(c)+7)/8)
	for i, present := range c {
		if present {
			buf[i/8] |= 1 << uint(i%8)
		}
	}
	return string(buf)
}

// SubsetKey renders a canonical text key for a set of player indices:
// ascending, de-duplicated, comma-separated. Used to address interaction
// values and to persist them.
func SubsetKey(players []int) string {
	sorted := make([]int, len(players))
	copy(sorted, players)
	sort.Ints(sorted)
	key := ""
	prev := -1
	for _, p := range sorted {
		if p == prev {
			continue
		}
		if key != "" {
			key += ","
		}
		key += fmt.Sprintf("%d", p)
		prev = p
	}
	return key
}
