package handlers

import "github.com/jason-s-yu/babanuki/internal/game"

// Inbound message types.
const (
	MsgJoinGame     = "join_game"
	MsgStartGame    = "start_game"
	MsgDiscardPairs = "discard_pairs"
	MsgDrawCard     = "draw_card"
	MsgLeaveGame    = "leave_game"
	MsgPing         = "ping"
)

// Outbound message types.
const (
	MsgGameJoined       = "game_joined"
	MsgGameStateUpdated = "game_state_updated"
	MsgError            = "error"
	MsgRoomLeft         = "room_left"
	MsgPong             = "pong"
)

// Reasons the gateway reports on its own, next to the game's rejection reasons.
const (
	ReasonBadMessage = "BAD_MESSAGE"
	ReasonNotInRoom  = "NOT_IN_ROOM"
	ReasonInternal   = "INTERNAL"
)

// RoomMessage is any inbound client message.
type RoomMessage struct {
	Type         string `json:"type"`
	RoomID       string `json:"room_id,omitempty"`
	Name         string `json:"name,omitempty"`
	FromPosition *int   `json:"from_position,omitempty"`
	CardIndex    *int   `json:"card_index,omitempty"`
}

type joinedMessage struct {
	Type     string            `json:"type"`
	RoomID   string            `json:"room_id"`
	PlayerID string            `json:"player_id"`
	State    game.RoomSnapshot `json:"game_state"`
	Events   []game.Event      `json:"events,omitempty"`
}

type stateMessage struct {
	Type   string            `json:"type"`
	State  game.RoomSnapshot `json:"game_state"`
	Events []game.Event      `json:"events,omitempty"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type roomLeftMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

type pongMessage struct {
	Type string `json:"type"`
}
