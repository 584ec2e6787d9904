package game

import (
	"errors"
	"testing"
)

func TestCoalitionMembers(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		members []int
		size    int
	}{
		{"empty", 4, []int{}, 0},
		{"singleton", 4, []int{2}, 1},
		{"pair", 4, []int{0, 3}, 2},
		{"full", 3, []int{0, 1, 2}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := FromMembers(tt.n, tt.members)
			if err != nil {
				t.Fatalf("FromMembers failed: %v", err)
			}
			if c.Size() != tt.size {
				t.Errorf("Size() = %d, want %d", c.Size(), tt.size)
			}
			got := c.Members()
			if len(got) != len(tt.members) {
				t.Fatalf("Members() = %v, want %v", got, tt.members)
			}
			for i := range got {
				if got[i] != tt.members[i] {
					t.Errorf("Members() = %v, want %v", got, tt.members)
				}
			}
		})
	}
}

func TestFromMembersOutOfRange(t *testing.T) {
	if _, err := FromMembers(3, []int{3}); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape, got %v", err)
	}
	if _, err := FromMembers(3, []int{-1}); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape, got %v", err)
	}
}

func TestCoalitionKey(t *testing.T) {
	a, _ := FromMembers(10, []int{0, 9})
	b, _ := FromMembers(10, []int{9, 0})
	if a.Key() != b.Key() {
		t.Error("same bit pattern must yield the same key")
	}
	c, _ := FromMembers(10, []int{0, 8})
	if a.Key() == c.Key() {
		t.Error("different coalitions must yield different keys")
	}
	if EmptyCoalition(10).Key() == GrandCoalition(10).Key() {
		t.Error("empty and grand coalitions must differ")
	}
}

func TestSubsetKey(t *testing.T) {
	tests := []struct {
		players []int
		want    string
	}{
		{[]int{2}, "2"},
		{[]int{2, 0}, "0,2"},
		{[]int{5, 5, 1}, "1,5"},
		{[]int{}, ""},
	}
	for _, tt := range tests {
		if got := SubsetKey(tt.players); got != tt.want {
			t.Errorf("SubsetKey(%v) = %q, want %q", tt.players, got, tt.want)
		}
	}
}

func TestCloneIndependence(t *testing.T) {
	orig, _ := FromMembers(3, []int{1})
	clone := orig.Clone()
	clone[0] = true
	if orig[0] {
		t.Error("mutating a clone must not touch the original")
	}
}
