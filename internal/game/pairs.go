// internal/game/pairs.go
package game

// ResolvePairs removes every matched-rank pair from hand.
//
// For a rank held c times, c/2 pairs are removed; when c is odd the first
// card of that rank (in hand order) survives. Jokers never pair and always
// stay. Retained cards keep their relative order. The input slice is not
// modified.
func ResolvePairs(hand []Card) ([]Card, int) {
	counts := make(map[Rank]int, len(hand))
	for _, c := range hand {
		if !c.Joker {
			counts[c.Rank]++
		}
	}

	pairs := 0
	for _, n := range counts {
		pairs += n / 2
	}

	kept := make([]Card, 0, len(hand)-2*pairs)
	seen := make(map[Rank]bool, len(counts))
	for _, c := range hand {
		if c.Joker {
			kept = append(kept, c)
			continue
		}
		if counts[c.Rank]%2 == 1 && !seen[c.Rank] {
			kept = append(kept, c)
		}
		seen[c.Rank] = true
	}
	return kept, pairs
}
