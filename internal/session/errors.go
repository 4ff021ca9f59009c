package session

import (
	"errors"

	"github.com/statvalue/statvalue-companion/internal/positions"
	"github.com/statvalue/statvalue-companion/internal/selection"
	"github.com/statvalue/statvalue-companion/internal/session/slots"
)

var (
	// ErrNotFound is returned for an unknown session ID.
	ErrNotFound = errors.New("session not found")

	// ErrPlayerNotFound is returned when a name is not in the current list.
	ErrPlayerNotFound = errors.New("player not found")

	// ErrNotEnoughPlayers is returned by Compare with fewer than two players.
	ErrNotEnoughPlayers = errors.New("select at least 2 players to compare")

	// ErrNoReference is returned by FindSimilar with an empty selection.
	ErrNoReference = errors.New("select a player first to find similar players")

	// ErrPredictionInput is returned when a prediction request is incomplete
	// or its year is out of range.
	ErrPredictionInput = errors.New("select a player and a year")

	// ErrCapacity is returned when the selection is full.
	ErrCapacity = selection.ErrCapacity

	// ErrSuperseded is returned when a newer request replaced this one.
	ErrSuperseded = slots.ErrSuperseded
)

// IsValidation reports whether err is an input validation failure that the
// caller can fix.
func IsValidation(err error) bool {
	return errors.Is(err, ErrNotEnoughPlayers) ||
		errors.Is(err, ErrNoReference) ||
		errors.Is(err, ErrPredictionInput) ||
		errors.Is(err, ErrCapacity) ||
		errors.Is(err, positions.ErrUnknownPosition)
}
