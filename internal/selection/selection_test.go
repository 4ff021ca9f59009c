package selection

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statvalue/statvalue-companion/internal/normalize"
)

func rec(name string) normalize.PlayerRecord {
	return normalize.PlayerRecord{"name": name, "Nation": "eng ENG"}
}

func TestAdd_Deduplicates(t *testing.T) {
	var s Set

	added, err := s.Add(rec("A"))
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.Add(rec("A"))
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, s.Len())
}

func TestAdd_Capacity(t *testing.T) {
	var s Set
	for _, n := range []string{"A", "B", "C", "D"} {
		_, err := s.Add(rec(n))
		require.NoError(t, err)
	}

	added, err := s.Add(rec("E"))
	assert.False(t, added)
	assert.True(t, errors.Is(err, ErrCapacity))
	assert.Contains(t, err.Error(), "at most 4")
	assert.Equal(t, []string{"A", "B", "C", "D"}, s.Names())

	added, err = s.Add(rec("B"))
	assert.NoError(t, err, "duplicate on a full set is a no-op")
	assert.False(t, added)
}

func TestSequence_NeverExceedsCapacityOrDuplicates(t *testing.T) {
	var s Set
	ops := []struct {
		add  bool
		name string
	}{
		{true, "A"}, {true, "B"}, {true, "A"}, {true, "C"}, {false, "B"},
		{true, "D"}, {true, "E"}, {true, "F"}, {false, "Z"}, {true, "D"},
		{false, "A"}, {true, "G"}, {true, "H"},
	}

	for _, op := range ops {
		if op.add {
			_, _ = s.Add(rec(op.name))
		} else {
			s.Remove(op.name)
		}

		assert.LessOrEqual(t, s.Len(), Capacity)
		seen := map[string]bool{}
		for _, n := range s.Names() {
			assert.False(t, seen[n], "duplicate %s", n)
			seen[n] = true
		}
	}
}

func TestRemove(t *testing.T) {
	var s Set
	_, _ = s.Add(rec("A"))
	_, _ = s.Add(rec("B"))
	_, _ = s.Add(rec("C"))

	assert.True(t, s.Remove("B"))
	assert.False(t, s.Remove("B"))
	assert.Equal(t, []string{"A", "C"}, s.Names())

	first, ok := s.First()
	require.True(t, ok)
	assert.Equal(t, "A", first.Name())
}

func TestTokensAndSlots(t *testing.T) {
	var s Set
	_, _ = s.Add(rec("A"))
	_, _ = s.Add(rec("B"))
	_, _ = s.Add(rec("C"))
	s.Remove("A")
	_, _ = s.Add(rec("D"))

	entries := s.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, uint64(2), entries[0].Token)
	assert.Equal(t, uint64(4), entries[2].Token)

	slots := s.Slots()
	assert.Equal(t, 1, slots["B"])
	assert.Equal(t, 2, slots["C"])
	assert.Equal(t, 0, slots["D"], "D reuses the slot A released")
}

func TestClear(t *testing.T) {
	var s Set
	_, _ = s.Add(rec("A"))
	s.Clear()

	assert.Equal(t, 0, s.Len())
	_, ok := s.First()
	assert.False(t, ok)
	assert.Empty(t, s.Players())

	_, _ = s.Add(rec("B"))
	assert.Equal(t, uint64(2), s.Entries()[0].Token)
}

func TestPlayers_IsCopy(t *testing.T) {
	var s Set
	_, _ = s.Add(rec("A"))

	players := s.Players()
	players[0] = rec("X")

	assert.True(t, s.Contains("A"))
	assert.False(t, s.Contains("X"))
}
