// internal/game/room.go
package game

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Phase is the coarse state of a room.
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseDiscard  Phase = "discard"
	PhaseDraw     Phase = "draw"
	PhaseFinished Phase = "finished"
)

// MaxPlayers is the fixed table size.
const MaxPlayers = 3

// Player is one seat in a room.
type Player struct {
	ID             string
	Name           string
	Hand           []Card
	Position       int
	Eliminated     bool
	CardsDrawn     int
	PairsDiscarded int
	JoinedAt       time.Time
}

// Room holds the full state of one session. Every field below mu is guarded
// by it; the exported methods on RoomStore are the only writers.
type Room struct {
	ID string

	mu sync.Mutex

	// closed is set once the room has left the store; a closed room never
	// accepts another mutation.
	closed bool

	phase            Phase
	players          map[string]*Player
	order            []string // seat order, index == Position
	currentTurn      int
	eliminationOrder []string
	loser            string
	gameID           uuid.UUID

	createdAt      time.Time
	lastActivityAt time.Time
	gameStartedAt  time.Time

	// version counts successful transitions.
	version uint64
	history []Event
	pending []Event

	rng *rand.Rand
	now func() time.Time
}

func newRoom(id string, now func() time.Time, rng *rand.Rand) *Room {
	if now == nil {
		now = time.Now
	}
	if rng == nil {
		rng = newRand()
	}
	t := now()
	return &Room{
		ID:             id,
		phase:          PhaseWaiting,
		players:        make(map[string]*Player, MaxPlayers),
		order:          make([]string, 0, MaxPlayers),
		createdAt:      t,
		lastActivityAt: t,
		rng:            rng,
		now:            now,
	}
}

// Outcome is the result of a successful transition: one snapshot per seated
// player, captured in the same critical section as the mutation, plus the
// events it appended to the room history.
type Outcome struct {
	RoomID    string
	Version   uint64
	Snapshots map[string]RoomSnapshot
	Events    []Event
	// Actor is the player whose action caused the transition, if any.
	Actor string
	// Joined is set when Actor was seated by this transition.
	Joined bool
	// Closed reports that the room was removed from the store.
	Closed bool
}

// --- helpers, caller holds r.mu ---

func (r *Room) record(typ EventType, player string, details map[string]interface{}) {
	ev := Event{
		ID:      uuid.New(),
		Seq:     len(r.history) + 1,
		Type:    typ,
		GameID:  r.gameID,
		Player:  player,
		Details: details,
		At:      r.now(),
	}
	r.history = append(r.history, ev)
	r.pending = append(r.pending, ev)
}

func (r *Room) takeEvents() []Event {
	evs := r.pending
	r.pending = nil
	return evs
}

func (r *Room) outcome() *Outcome {
	return &Outcome{
		RoomID:    r.ID,
		Version:   r.version,
		Snapshots: r.snapshots(),
		Events:    r.takeEvents(),
	}
}

func (r *Room) playerAt(pos int) *Player {
	if pos < 0 || pos >= len(r.order) {
		return nil
	}
	return r.players[r.order[pos]]
}

// activePositions returns the sorted seats of non-eliminated players.
func (r *Room) activePositions() []int {
	active := make([]int, 0, len(r.order))
	for _, id := range r.order {
		if p := r.players[id]; !p.Eliminated {
			active = append(active, p.Position)
		}
	}
	sort.Ints(active)
	return active
}

func (r *Room) reseat() {
	for i, id := range r.order {
		r.players[id].Position = i
	}
}

func (r *Room) eliminate(p *Player, cause string) {
	p.Eliminated = true
	r.eliminationOrder = append(r.eliminationOrder, p.Name)
	r.record(EventPlayerEliminated, p.Name, map[string]interface{}{
		"cause": cause,
		"place": len(r.eliminationOrder),
	})
}

// finish ends the game. The last active player holds the joker and is
// reported as the loser, outside eliminationOrder.
func (r *Room) finish() {
	r.phase = PhaseFinished
	r.loser = ""
	for _, id := range r.order {
		if p := r.players[id]; !p.Eliminated {
			r.loser = p.Name
			break
		}
	}
	r.record(EventGameFinished, r.loser, map[string]interface{}{
		"elimination_order": append([]string{}, r.eliminationOrder...),
	})
}

// softReset drops any game in progress and returns the room to Waiting.
// The reset is only logged when a game was actually discarded.
func (r *Room) softReset(cause, by string) {
	idle := r.phase == PhaseWaiting
	r.phase = PhaseWaiting
	r.currentTurn = 0
	r.eliminationOrder = nil
	r.loser = ""
	r.gameID = uuid.Nil
	r.gameStartedAt = time.Time{}
	for _, p := range r.players {
		p.Hand = nil
		p.Eliminated = false
		p.CardsDrawn = 0
		p.PairsDiscarded = 0
	}
	if !idle {
		r.record(EventGameReset, by, map[string]interface{}{"cause": cause})
	}
}

// --- transitions, caller holds r.mu ---

func (r *Room) addPlayer(id, name string) error {
	if _, ok := r.players[id]; ok {
		// Same player joining again is a no-op; the caller gets a fresh snapshot.
		return nil
	}
	if len(r.order) >= MaxPlayers {
		return ErrRoomFull
	}
	for _, p := range r.players {
		if p.Name == name {
			return ErrDuplicateName
		}
	}
	if r.phase != PhaseWaiting {
		return ErrWrongPhase
	}

	r.players[id] = &Player{
		ID:       id,
		Name:     name,
		Position: len(r.order),
		JoinedAt: r.now(),
	}
	r.order = append(r.order, id)
	r.record(EventPlayerJoined, name, map[string]interface{}{"position": len(r.order) - 1})
	return nil
}

func (r *Room) removePlayer(id string) error {
	p, ok := r.players[id]
	if !ok {
		return ErrUnknownPlayer
	}

	delete(r.players, id)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	r.reseat()
	r.record(EventPlayerLeft, p.Name, nil)

	if len(r.order) == 0 {
		return nil
	}
	if r.phase == PhaseDiscard || r.phase == PhaseDraw || len(r.order) < MaxPlayers {
		r.softReset("player_left", p.Name)
	}
	return nil
}

func (r *Room) start(playerID string) error {
	p, ok := r.players[playerID]
	if !ok {
		return ErrUnknownPlayer
	}
	if r.phase == PhaseDiscard || r.phase == PhaseDraw {
		return ErrWrongPhase
	}
	if len(r.order) != MaxPlayers {
		return ErrNotEnoughPlayers
	}
	if r.phase == PhaseFinished {
		r.softReset("rematch", p.Name)
	}

	hands := Deal(NewDeck(r.rng), MaxPlayers)
	for i, id := range r.order {
		r.players[id].Hand = hands[i]
	}
	r.gameID = uuid.New()
	r.gameStartedAt = r.now()
	r.currentTurn = 0
	r.phase = PhaseDiscard
	r.record(EventGameStarted, p.Name, map[string]interface{}{
		"hand_counts": []int{len(hands[0]), len(hands[1]), len(hands[2])},
	})
	return nil
}

// discardPairs resolves every active hand at once. Outside the Discard
// phase it changes nothing.
func (r *Room) discardPairs() {
	if r.phase != PhaseDiscard {
		return
	}

	total := 0
	for _, id := range r.order {
		p := r.players[id]
		if p.Eliminated {
			continue
		}
		hand, n := ResolvePairs(p.Hand)
		p.Hand = hand
		p.PairsDiscarded += n
		total += n
	}
	r.record(EventPairsDiscarded, "", map[string]interface{}{"pairs": total})

	for _, id := range r.order {
		if p := r.players[id]; !p.Eliminated && len(p.Hand) == 0 {
			r.eliminate(p, "emptied_on_discard")
		}
	}

	r.phase = PhaseDraw
	active := r.activePositions()
	if len(active) <= 1 {
		r.finish()
		return
	}
	r.currentTurn = active[0]
}

func (r *Room) draw(playerID string, fromPosition, cardIndex int) error {
	actor, ok := r.players[playerID]
	if !ok {
		return ErrUnknownPlayer
	}
	if r.phase != PhaseDraw {
		return ErrWrongPhase
	}
	if actor.Position != r.currentTurn {
		return ErrNotYourTurn
	}
	if fromPosition != NextPosition(r.currentTurn, r.activePositions()) {
		return ErrWrongSource
	}
	source := r.playerAt(fromPosition)
	if source == nil || cardIndex < 0 || cardIndex >= len(source.Hand) {
		return ErrBadIndex
	}

	card := source.Hand[cardIndex]
	rest := make([]Card, 0, len(source.Hand)-1)
	rest = append(rest, source.Hand[:cardIndex]...)
	source.Hand = append(rest, source.Hand[cardIndex+1:]...)
	actor.Hand = append(actor.Hand, card)
	actor.CardsDrawn++

	hand, pairs := ResolvePairs(actor.Hand)
	actor.Hand = hand
	actor.PairsDiscarded += pairs
	r.record(EventCardDrawn, actor.Name, map[string]interface{}{
		"from":  source.Name,
		"pairs": pairs,
	})

	if len(source.Hand) == 0 {
		r.eliminate(source, "emptied_by_draw")
	}
	if len(actor.Hand) == 0 {
		r.eliminate(actor, "emptied_after_pairs")
	}

	active := r.activePositions()
	if len(active) <= 1 {
		r.finish()
		return nil
	}
	r.currentTurn = NextPosition(r.currentTurn, active)
	return nil
}

// --- all-or-nothing application ---

type roomState struct {
	phase            Phase
	players          map[string]Player
	order            []string
	currentTurn      int
	eliminationOrder []string
	loser            string
	gameID           uuid.UUID
	gameStartedAt    time.Time
	historyLen       int
	pendingLen       int
}

func (r *Room) save() roomState {
	s := roomState{
		phase:            r.phase,
		players:          make(map[string]Player, len(r.players)),
		order:            append([]string(nil), r.order...),
		currentTurn:      r.currentTurn,
		eliminationOrder: append([]string(nil), r.eliminationOrder...),
		loser:            r.loser,
		gameID:           r.gameID,
		gameStartedAt:    r.gameStartedAt,
		historyLen:       len(r.history),
		pendingLen:       len(r.pending),
	}
	for id, p := range r.players {
		cp := *p
		cp.Hand = append([]Card(nil), p.Hand...)
		s.players[id] = cp
	}
	return s
}

func (r *Room) restore(s roomState) {
	r.phase = s.phase
	r.players = make(map[string]*Player, len(s.players))
	for id, p := range s.players {
		cp := p
		r.players[id] = &cp
	}
	r.order = s.order
	r.currentTurn = s.currentTurn
	r.eliminationOrder = s.eliminationOrder
	r.loser = s.loser
	r.gameID = s.gameID
	r.gameStartedAt = s.gameStartedAt
	r.history = r.history[:s.historyLen]
	r.pending = r.pending[:s.pendingLen]
}

// apply runs fn as a single transition. Rejections and invariant
// violations leave the room exactly as it was before fn ran.
func (r *Room) apply(fn func() error) (err error) {
	saved := r.save()
	defer func() {
		if rec := recover(); rec != nil {
			r.restore(saved)
			err = fmt.Errorf("%w: panic: %v", ErrInternal, rec)
		}
	}()

	if err := fn(); err != nil {
		r.restore(saved)
		return err
	}
	if verr := r.verify(); verr != nil {
		r.restore(saved)
		return fmt.Errorf("%w: room %s: %v", ErrInternal, r.ID, verr)
	}
	r.version++
	r.lastActivityAt = r.now()
	return nil
}

// verify checks the room invariants. Caller holds r.mu.
func (r *Room) verify() error {
	if len(r.order) != len(r.players) {
		return fmt.Errorf("roster mismatch: %d seats, %d players", len(r.order), len(r.players))
	}
	names := make(map[string]bool, len(r.order))
	for i, id := range r.order {
		p, ok := r.players[id]
		if !ok {
			return fmt.Errorf("seat %d holds unknown player %q", i, id)
		}
		if p.Position != i {
			return fmt.Errorf("player %q at seat %d has position %d", p.Name, i, p.Position)
		}
		if names[p.Name] {
			return fmt.Errorf("duplicate name %q", p.Name)
		}
		names[p.Name] = true
	}

	if r.phase == PhaseWaiting {
		return nil
	}

	cards := 0
	for _, p := range r.players {
		cards += len(p.Hand) + 2*p.PairsDiscarded
	}
	if cards != DeckSize {
		return fmt.Errorf("card count %d, want %d", cards, DeckSize)
	}

	active := r.activePositions()
	switch r.phase {
	case PhaseDraw:
		if len(active) < 2 {
			return fmt.Errorf("draw phase with %d active players", len(active))
		}
		if p := r.playerAt(r.currentTurn); p == nil || p.Eliminated {
			return fmt.Errorf("turn at inactive seat %d", r.currentTurn)
		}
	case PhaseFinished:
		if len(active) != 1 {
			return fmt.Errorf("finished with %d active players", len(active))
		}
		if loser := r.playerAt(active[0]); loser.Name != r.loser {
			return fmt.Errorf("loser %q is not the last active player %q", r.loser, loser.Name)
		}
		for _, name := range r.eliminationOrder {
			if name == r.loser {
				return fmt.Errorf("loser %q listed in elimination order", r.loser)
			}
		}
	}
	return nil
}

// --- read-only accessors ---

// Snapshot returns the current view for playerID.
func (r *Room) Snapshot(playerID string) (RoomSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotFor(playerID)
}

// Summary returns a listing entry without any hand contents.
func (r *Room) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.order))
	for _, id := range r.order {
		names = append(names, r.players[id].Name)
	}
	return Summary{
		RoomID:         r.ID,
		Phase:          r.phase,
		PlayerCount:    len(r.order),
		Players:        names,
		CreatedAt:      r.createdAt,
		LastActivityAt: r.lastActivityAt,
	}
}

// History returns a copy of the activity log.
func (r *Room) History() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.history...)
}
