// internal/skate/engine.go
//
// Pure turn-rotation and elimination rules for S.K.A.T.E. No side effects,
// no storage: the game service feeds these functions the current player
// slice and writes back whatever they compute.
package skate

import "github.com/grindline/skate-service/internal/models"

// Word is the full penalty sequence. A player holding all five letters is
// eliminated.
const Word = "SKATE"

// IsEliminated reports whether a letter string eliminates its holder.
func IsEliminated(letters string) bool {
	return len(letters) >= len(Word)
}

// NextActiveIndex walks forward circularly from fromIndex+1, skipping
// eliminated players, wrapping at most once around the full list. The
// second return is false when no non-eliminated player other than the
// starting one exists, which is the end-of-game condition.
func NextActiveIndex(players []models.MatchPlayer, fromIndex int) (int, bool) {
	n := len(players)
	if n == 0 {
		return 0, false
	}
	// Bounded scan: at most n steps guarantees termination even when every
	// other player already holds SKATE.
	for step := 1; step <= n; step++ {
		idx := (fromIndex + step) % n
		if idx == fromIndex {
			break
		}
		if !IsEliminated(players[idx].Letters) {
			return idx, true
		}
	}
	return 0, false
}

// ApplyMiss appends the next letter of the word to the given prefix and
// returns the new prefix plus the letter gained. Callers must filter out
// already-eliminated players before awarding letters; feeding a full word
// here means turn rotation let an eliminated player act.
func ApplyMiss(letters string) (newLetters, gained string) {
	if IsEliminated(letters) {
		return letters, ""
	}
	gained = string(Word[len(letters)])
	return letters + gained, gained
}

// RemainingActive counts the non-eliminated players. When it drops to 1 the
// match is over and the sole survivor wins.
func RemainingActive(players []models.MatchPlayer) int {
	count := 0
	for i := range players {
		if !IsEliminated(players[i].Letters) {
			count++
		}
	}
	return count
}

// SoleSurvivorIndex returns the index of the only non-eliminated player.
// The second return is false unless exactly one player remains active.
func SoleSurvivorIndex(players []models.MatchPlayer) (int, bool) {
	idx, count := -1, 0
	for i := range players {
		if !IsEliminated(players[i].Letters) {
			idx = i
			count++
		}
	}
	if count != 1 {
		return -1, false
	}
	return idx, true
}
