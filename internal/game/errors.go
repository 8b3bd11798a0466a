// internal/game/errors.go
package game

import "errors"

// Reason identifies why an action was rejected. Values are stable and sent
// to clients verbatim.
type Reason string

const (
	ReasonFull             Reason = "FULL"
	ReasonDuplicateName    Reason = "DUPLICATE_NAME"
	ReasonBadName          Reason = "BAD_NAME"
	ReasonBadRoomID        Reason = "BAD_ROOM_ID"
	ReasonNotEnoughPlayers Reason = "NOT_ENOUGH_PLAYERS"
	ReasonUnknownPlayer    Reason = "UNKNOWN_PLAYER"
	ReasonNotYourTurn      Reason = "NOT_YOUR_TURN"
	ReasonWrongSource      Reason = "WRONG_SOURCE"
	ReasonBadIndex         Reason = "BAD_INDEX"
	ReasonWrongPhase       Reason = "WRONG_PHASE"
	ReasonRoomNotFound     Reason = "ROOM_NOT_FOUND"
)

// RejectError is an expected, non-fatal refusal of an action. The room is
// left exactly as it was.
type RejectError struct {
	Reason  Reason
	Message string
}

func (e *RejectError) Error() string {
	return string(e.Reason) + ": " + e.Message
}

func reject(reason Reason, msg string) *RejectError {
	return &RejectError{Reason: reason, Message: msg}
}

var (
	ErrRoomFull         = reject(ReasonFull, "room is full (3 players max)")
	ErrDuplicateName    = reject(ReasonDuplicateName, "a player with that name is already in the room")
	ErrBadName          = reject(ReasonBadName, "name must be 2 to 20 characters")
	ErrBadRoomID        = reject(ReasonBadRoomID, "room id must be 1 to 10 characters")
	ErrNotEnoughPlayers = reject(ReasonNotEnoughPlayers, "exactly 3 players are needed to start")
	ErrUnknownPlayer    = reject(ReasonUnknownPlayer, "player is not in this room")
	ErrNotYourTurn      = reject(ReasonNotYourTurn, "it is not your turn")
	ErrWrongSource      = reject(ReasonWrongSource, "you must draw from the next player in turn order")
	ErrBadIndex         = reject(ReasonBadIndex, "no card at that index")
	ErrWrongPhase       = reject(ReasonWrongPhase, "action not allowed in the current phase")
	ErrRoomNotFound     = reject(ReasonRoomNotFound, "room does not exist")
)

// ErrInternal marks an invariant violation. The transition that detected it
// was rolled back.
var ErrInternal = errors.New("internal game error")

// ReasonOf extracts the rejection reason from err, if it is a rejection.
func ReasonOf(err error) (Reason, bool) {
	var re *RejectError
	if errors.As(err, &re) {
		return re.Reason, true
	}
	return "", false
}
