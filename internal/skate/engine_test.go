// internal/skate/engine_test.go
package skate

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grindline/skate-service/internal/models"
)

func playersWithLetters(letters ...string) []models.MatchPlayer {
	ps := make([]models.MatchPlayer, len(letters))
	for i, l := range letters {
		ps[i] = models.MatchPlayer{ID: uuid.New(), Letters: l, Connected: true}
	}
	return ps
}

func TestIsEliminated(t *testing.T) {
	assert.False(t, IsEliminated(""))
	assert.False(t, IsEliminated("S"))
	assert.False(t, IsEliminated("SKAT"))
	assert.True(t, IsEliminated("SKATE"))
}

func TestApplyMiss(t *testing.T) {
	letters := ""
	expected := []string{"S", "K", "A", "T", "E"}
	for _, want := range expected {
		var gained string
		letters, gained = ApplyMiss(letters)
		assert.Equal(t, want, gained)
	}
	assert.Equal(t, "SKATE", letters)
	assert.True(t, IsEliminated(letters))

	// A full word must never grow further.
	after, gained := ApplyMiss(letters)
	assert.Equal(t, "SKATE", after)
	assert.Equal(t, "", gained)
}

func TestNextActiveIndexSkipsEliminated(t *testing.T) {
	ps := playersWithLetters("", "SKATE", "SK")

	// From the setter at index 0, index 1 is eliminated, so index 2 acts.
	next, ok := NextActiveIndex(ps, 0)
	require.True(t, ok)
	assert.Equal(t, 2, next)

	// Wraps around past the end.
	next, ok = NextActiveIndex(ps, 2)
	require.True(t, ok)
	assert.Equal(t, 0, next)
}

func TestNextActiveIndexNoOtherActive(t *testing.T) {
	ps := playersWithLetters("S", "SKATE", "SKATE")
	_, ok := NextActiveIndex(ps, 0)
	assert.False(t, ok, "sole survivor has nobody to rotate to")
}

func TestNextActiveIndexTerminatesAllEliminated(t *testing.T) {
	ps := playersWithLetters("SKATE", "SKATE")
	_, ok := NextActiveIndex(ps, 0)
	assert.False(t, ok)
}

func TestNextActiveIndexEmpty(t *testing.T) {
	_, ok := NextActiveIndex(nil, 0)
	assert.False(t, ok)
}

func TestRemainingActive(t *testing.T) {
	ps := playersWithLetters("", "SKATE", "SKAT", "SKATE")
	assert.Equal(t, 2, RemainingActive(ps))
}

func TestSoleSurvivorIndex(t *testing.T) {
	ps := playersWithLetters("SK", "SKATE", "SKATE")
	idx, ok := SoleSurvivorIndex(ps)
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	ps[0].Letters = "SKATE"
	_, ok = SoleSurvivorIndex(ps)
	assert.False(t, ok, "zero survivors is not a sole survivor")

	ps2 := playersWithLetters("", "S")
	_, ok = SoleSurvivorIndex(ps2)
	assert.False(t, ok, "two survivors is not a sole survivor")
}
