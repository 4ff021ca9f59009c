// Package selection holds the ordered set of players chosen for comparison.
package selection

import (
	"errors"

	"github.com/statvalue/statvalue-companion/internal/normalize"
)

// Capacity is the maximum number of players that can be compared at once.
const Capacity = 4

// ErrCapacity is returned when adding to a full set.
var ErrCapacity = errors.New("you can compare at most 4 players")

// Entry is a selected player together with its insertion token and colour
// slot. Tokens increase monotonically for the life of the set; a slot is the
// lowest index in [0, Capacity) not held by another entry when added.
type Entry struct {
	Record normalize.PlayerRecord
	Token  uint64
	Slot   int
}

// Name returns the entry's player name.
func (e Entry) Name() string { return e.Record.Name() }

// Set is an insertion-ordered collection of at most Capacity players,
// unique by name. It is not safe for concurrent use.
type Set struct {
	entries []Entry
	next    uint64
}

// Add appends rec unless a player with the same name is already selected.
// It reports whether rec was added. A full set returns ErrCapacity and is
// left unchanged.
func (s *Set) Add(rec normalize.PlayerRecord) (bool, error) {
	if s.Contains(rec.Name()) {
		return false, nil
	}
	if len(s.entries) >= Capacity {
		return false, ErrCapacity
	}
	s.next++
	s.entries = append(s.entries, Entry{Record: rec, Token: s.next, Slot: s.freeSlot()})
	return true, nil
}

func (s *Set) freeSlot() int {
	used := make(map[int]bool, len(s.entries))
	for _, e := range s.entries {
		used[e.Slot] = true
	}
	for i := 0; i < Capacity; i++ {
		if !used[i] {
			return i
		}
	}
	return len(s.entries)
}

// Remove drops the player with the given name and reports whether it was
// present.
func (s *Set) Remove(name string) bool {
	for i, e := range s.entries {
		if e.Name() == name {
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Clear empties the set. Tokens keep increasing afterwards.
func (s *Set) Clear() { s.entries = nil }

// Len returns the number of selected players.
func (s *Set) Len() int { return len(s.entries) }

// Contains reports whether a player with the given name is selected.
func (s *Set) Contains(name string) bool {
	for _, e := range s.entries {
		if e.Name() == name {
			return true
		}
	}
	return false
}

// First returns the earliest selected player still in the set.
func (s *Set) First() (normalize.PlayerRecord, bool) {
	if len(s.entries) == 0 {
		return nil, false
	}
	return s.entries[0].Record, true
}

// Players returns the selected records in insertion order.
func (s *Set) Players() []normalize.PlayerRecord {
	out := make([]normalize.PlayerRecord, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Record
	}
	return out
}

// Names returns the selected player names in insertion order.
func (s *Set) Names() []string {
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Name()
	}
	return out
}

// Entries returns a copy of the entries in insertion order.
func (s *Set) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Slots maps each selected name to its colour slot.
func (s *Set) Slots() map[string]int {
	out := make(map[string]int, len(s.entries))
	for _, e := range s.entries {
		out[e.Name()] = e.Slot
	}
	return out
}
