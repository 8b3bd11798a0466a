// internal/game/turn.go
package game

// NextPosition returns the seat that follows current among the active seats.
//
// active must be sorted ascending. When current is an active seat the next
// one is returned, wrapping from the largest to the smallest. When current
// is not active (its holder was just eliminated) the smallest active seat is
// returned. With fewer than two active seats there is no next turn and
// current is returned unchanged; callers finish the game before that.
func NextPosition(current int, active []int) int {
	if len(active) < 2 {
		return current
	}
	for i, pos := range active {
		if pos == current {
			return active[(i+1)%len(active)]
		}
	}
	return active[0]
}
