// internal/game/snapshot.go
package game

import (
	"time"

	"github.com/google/uuid"
)

// CardView is a fully revealed card. It only ever appears in its owner's snapshot.
type CardView struct {
	ID      uuid.UUID `json:"id"`
	Rank    Rank      `json:"rank,omitempty"`
	Suit    Suit      `json:"suit"`
	Joker   bool      `json:"joker"`
	Display string    `json:"display"`
}

// SelfView is the recipient's own seat, hand included.
type SelfView struct {
	PlayerID       string     `json:"player_id"`
	Name           string     `json:"name"`
	Hand           []CardView `json:"hand"`
	HandCount      int        `json:"hand_count"`
	Eliminated     bool       `json:"eliminated"`
	Position       int        `json:"position"`
	CardsDrawn     int        `json:"cards_drawn"`
	PairsDiscarded int        `json:"pairs_discarded"`
}

// OpponentView exposes another seat without its cards.
type OpponentView struct {
	Name       string `json:"name"`
	HandCount  int    `json:"hand_count"`
	Eliminated bool   `json:"eliminated"`
	Position   int    `json:"position"`
}

// RoomSnapshot is the state of a room as seen by one player.
type RoomSnapshot struct {
	RoomID           string         `json:"room_id"`
	Version          uint64         `json:"version"`
	GameID           uuid.UUID      `json:"game_id,omitempty"`
	Phase            Phase          `json:"game_phase"`
	CurrentTurn      int            `json:"current_player_position"`
	NextSource       *int           `json:"next_source_position,omitempty"`
	EliminationOrder []string       `json:"elimination_order"`
	Loser            string         `json:"loser,omitempty"`
	PlayerCount      int            `json:"player_count"`
	GameStartedAt    *time.Time     `json:"game_start_time,omitempty"`
	Me               SelfView       `json:"my_info"`
	Others           []OpponentView `json:"other_players"`
}

// snapshotFor builds the view for playerID. Caller holds r.mu.
func (r *Room) snapshotFor(playerID string) (RoomSnapshot, bool) {
	me, ok := r.players[playerID]
	if !ok {
		return RoomSnapshot{}, false
	}

	snap := RoomSnapshot{
		RoomID:           r.ID,
		Version:          r.version,
		GameID:           r.gameID,
		Phase:            r.phase,
		CurrentTurn:      r.currentTurn,
		EliminationOrder: append([]string{}, r.eliminationOrder...),
		Loser:            r.loser,
		PlayerCount:      len(r.order),
		Me: SelfView{
			PlayerID:       me.ID,
			Name:           me.Name,
			Hand:           make([]CardView, len(me.Hand)),
			HandCount:      len(me.Hand),
			Eliminated:     me.Eliminated,
			Position:       me.Position,
			CardsDrawn:     me.CardsDrawn,
			PairsDiscarded: me.PairsDiscarded,
		},
		Others: make([]OpponentView, 0, len(r.order)-1),
	}
	if !r.gameStartedAt.IsZero() {
		started := r.gameStartedAt
		snap.GameStartedAt = &started
	}
	if r.phase == PhaseDraw {
		next := NextPosition(r.currentTurn, r.activePositions())
		snap.NextSource = &next
	}

	for i, c := range me.Hand {
		snap.Me.Hand[i] = CardView{
			ID:      c.ID,
			Rank:    c.Rank,
			Suit:    c.Suit,
			Joker:   c.Joker,
			Display: c.String(),
		}
	}

	for _, id := range r.order {
		if id == playerID {
			continue
		}
		p := r.players[id]
		snap.Others = append(snap.Others, OpponentView{
			Name:       p.Name,
			HandCount:  len(p.Hand),
			Eliminated: p.Eliminated,
			Position:   p.Position,
		})
	}
	return snap, true
}

// snapshots builds one view per seated player. Caller holds r.mu.
func (r *Room) snapshots() map[string]RoomSnapshot {
	out := make(map[string]RoomSnapshot, len(r.order))
	for _, id := range r.order {
		if snap, ok := r.snapshotFor(id); ok {
			out[id] = snap
		}
	}
	return out
}

// Summary is the public, hand-free description of a room used for listings.
type Summary struct {
	RoomID         string    `json:"room_id"`
	Phase          Phase     `json:"game_phase"`
	PlayerCount    int       `json:"player_count"`
	Players        []string  `json:"players"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}
