package game

import "errors"

var (
	// ErrShape indicates a coalition or input whose length does not match
	// the number of players of the game.
	ErrShape = errors.New("coalition shape mismatch")

	// ErrNoPlayers indicates a game constructed over an empty sequence.
	ErrNoPlayers = errors.New("game requires at least one player")

	// ErrScorerBatch indicates a scorer that returned a batch of the wrong
	// length. Scorer failures themselves are propagated unchanged.
	ErrScorerBatch = errors.New("scorer returned mismatched batch")
)
