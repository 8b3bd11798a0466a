// internal/game/events.go
package game

import (
	"time"

	"github.com/google/uuid"
)

// EventType names an entry in a room's activity log.
type EventType string

const (
	EventPlayerJoined     EventType = "player_joined"
	EventPlayerLeft       EventType = "player_left"
	EventGameStarted      EventType = "game_started"
	EventPairsDiscarded   EventType = "pairs_discarded"
	EventCardDrawn        EventType = "card_drawn"
	EventPlayerEliminated EventType = "player_eliminated"
	EventGameFinished     EventType = "game_finished"
	EventGameReset        EventType = "game_reset"
)

// Event is one entry of the append-only room history. Details never carry
// card faces so events can be shown to every player.
type Event struct {
	ID      uuid.UUID              `json:"id"`
	Seq     int                    `json:"seq"`
	Type    EventType              `json:"type"`
	GameID  uuid.UUID              `json:"game_id,omitempty"`
	Player  string                 `json:"player,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
	At      time.Time              `json:"at"`
}
