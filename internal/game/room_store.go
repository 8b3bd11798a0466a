// internal/game/room_store.go
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

const (
	DefaultIdleTimeout   = 30 * time.Minute
	DefaultSweepInterval = 30 * time.Minute
	DefaultSweepRetry    = 5 * time.Minute

	minNameLen   = 2
	maxNameLen   = 20
	maxRoomIDLen = 10
)

// StoreOptions configures a RoomStore. Zero values fall back to defaults.
type StoreOptions struct {
	Logger *logrus.Logger

	// IdleTimeout is how long a room may go without a successful action
	// before the sweeper removes it.
	IdleTimeout time.Duration
	// SweepInterval is the delay between two sweeps; SweepRetry replaces it
	// after a failed sweep.
	SweepInterval time.Duration
	SweepRetry    time.Duration

	// OnSweep, when set, is told the result of every background sweep.
	OnSweep func(removed int, err error)

	// Now and NewRand exist for tests.
	Now     func() time.Time
	NewRand func() *rand.Rand
}

// RoomStore owns every live room, keyed by room id. Lock order is
// store.mu before room.mu; nothing holds a room lock while taking store.mu.
type RoomStore struct {
	mu    sync.Mutex
	rooms map[string]*Room

	log  *logrus.Logger
	opts StoreOptions

	// BroadcastFn, when set, receives every successful transition while the
	// room is still locked, so a room's outcomes arrive in order. It must not
	// block or call back into the store. Set it before the store is shared.
	BroadcastFn func(out *Outcome)

	sweepFn func(time.Duration) (int, error)

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRoomStore returns an empty store and starts its inactivity sweeper.
// Call Close to stop the sweeper.
func NewRoomStore(opts StoreOptions) *RoomStore {
	s := newRoomStore(opts)
	s.startSweeper(s.SweepInactive)
	return s
}

func newRoomStore(opts StoreOptions) *RoomStore {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.SweepRetry <= 0 {
		opts.SweepRetry = DefaultSweepRetry
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewRand == nil {
		opts.NewRand = newRand
	}

	return &RoomStore{
		rooms: make(map[string]*Room),
		log:   opts.Logger,
		opts:  opts,
	}
}

func (s *RoomStore) startSweeper(sweep func(time.Duration) (int, error)) {
	ctx, cancel := context.WithCancel(context.Background())
	s.sweepFn = sweep
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.sweepLoop(ctx)
}

// Close stops the background sweeper and waits for it to exit.
func (s *RoomStore) Close() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// NormalizeRoomID trims and upper-cases a room id and checks its length.
func NormalizeRoomID(roomID string) (string, error) {
	id := strings.ToUpper(strings.TrimSpace(roomID))
	if n := utf8.RuneCountInString(id); n == 0 || n > maxRoomIDLen {
		return "", ErrBadRoomID
	}
	return id, nil
}

// NormalizeName trims a display name and checks its length.
func NormalizeName(name string) (string, error) {
	n := strings.TrimSpace(name)
	if l := utf8.RuneCountInString(n); l < minNameLen || l > maxNameLen {
		return "", ErrBadName
	}
	return n, nil
}

// lookup returns the live room for id. Room ids reaching here are already
// normalised.
func (s *RoomStore) lookup(id string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	return r, ok
}

// getOrCreate returns the room for id, replacing a closed one.
func (s *RoomStore) getOrCreate(id string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[id]; ok {
		r.mu.Lock()
		closed := r.closed
		r.mu.Unlock()
		if !closed {
			return r
		}
	}
	r := newRoom(id, s.opts.Now, s.opts.NewRand())
	s.rooms[id] = r
	s.log.WithField("room", id).Info("Room created")
	return r
}

// remove deletes r from the map if it is still the entry for its id.
func (s *RoomStore) remove(r *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.rooms[r.ID]; ok && cur == r {
		delete(s.rooms, r.ID)
	}
}

var errRoomClosed = errors.New("room closed")

// transition applies fn to r under its lock and broadcasts the outcome
// before unlocking. closed reports that r must leave the store.
func (s *RoomStore) transition(r *Room, actor string, joined bool, fn func() error) (out *Outcome, closed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, true, errRoomClosed
	}

	err = r.apply(fn)
	if len(r.order) == 0 {
		r.closed = true
	}
	if err != nil {
		return nil, r.closed, err
	}

	out = r.outcome()
	out.Actor = actor
	out.Joined = joined
	out.Closed = r.closed
	s.broadcast(out)
	return out, r.closed, nil
}

func (s *RoomStore) broadcast(out *Outcome) {
	if s.BroadcastFn == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			s.log.WithField("room", out.RoomID).Errorf("Broadcast panicked: %v", rec)
		}
	}()
	s.BroadcastFn(out)
}

// withRoom runs fn as one transition of the live room id.
func (s *RoomStore) withRoom(roomID, actor string, fn func(r *Room) error) (*Outcome, error) {
	id, err := NormalizeRoomID(roomID)
	if err != nil {
		return nil, err
	}
	r, ok := s.lookup(id)
	if !ok {
		return nil, ErrRoomNotFound
	}

	out, closed, err := s.transition(r, actor, false, func() error { return fn(r) })
	if closed {
		s.remove(r)
	}
	if errors.Is(err, errRoomClosed) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, s.fail(id, err)
	}
	if closed {
		s.log.WithField("room", id).Info("Empty room deleted")
	}
	s.logEvents(out)
	return out, nil
}

// fail logs unexpected faults; rejections pass through quietly.
func (s *RoomStore) fail(roomID string, err error) error {
	if errors.Is(err, ErrInternal) {
		s.log.WithField("room", roomID).WithError(err).Error("Room transition rolled back")
	} else {
		s.log.WithField("room", roomID).Debugf("Action rejected: %v", err)
	}
	return err
}

func (s *RoomStore) logEvents(out *Outcome) {
	for _, ev := range out.Events {
		s.log.WithFields(logrus.Fields{
			"room":   out.RoomID,
			"event":  ev.Type,
			"player": ev.Player,
		}).Info("Room event")
	}
}

// JoinRoom seats playerID under name in roomID, creating the room on first use.
func (s *RoomStore) JoinRoom(roomID, playerID, name string) (*Outcome, error) {
	id, err := NormalizeRoomID(roomID)
	if err != nil {
		return nil, err
	}
	name, err = NormalizeName(name)
	if err != nil {
		return nil, err
	}

	for {
		r := s.getOrCreate(id)
		out, closed, err := s.transition(r, playerID, true, func() error { return r.addPlayer(playerID, name) })
		if errors.Is(err, errRoomClosed) {
			// Swept or emptied between lookup and lock; try again with a fresh room.
			continue
		}
		if closed {
			s.remove(r)
		}
		if err != nil {
			return nil, s.fail(id, err)
		}
		s.logEvents(out)
		return out, nil
	}
}

// StartGame deals a new game. Exactly three players must be seated.
func (s *RoomStore) StartGame(roomID, playerID string) (*Outcome, error) {
	return s.withRoom(roomID, playerID, func(r *Room) error { return r.start(playerID) })
}

// DiscardPairs removes pairs from every active hand and opens the draw phase.
func (s *RoomStore) DiscardPairs(roomID string) (*Outcome, error) {
	return s.withRoom(roomID, "", func(r *Room) error {
		r.discardPairs()
		return nil
	})
}

// DrawCard moves the card at cardIndex from the seat at fromPosition into
// playerID's hand.
func (s *RoomStore) DrawCard(roomID, playerID string, fromPosition, cardIndex int) (*Outcome, error) {
	return s.withRoom(roomID, playerID, func(r *Room) error { return r.draw(playerID, fromPosition, cardIndex) })
}

// LeaveRoom removes playerID. The room is deleted once nobody is left, in
// which case the outcome is marked Closed.
func (s *RoomStore) LeaveRoom(roomID, playerID string) (*Outcome, error) {
	return s.withRoom(roomID, playerID, func(r *Room) error {
		return r.removePlayer(playerID)
	})
}

// Room returns the live room for roomID.
func (s *RoomStore) Room(roomID string) (*Room, bool) {
	id, err := NormalizeRoomID(roomID)
	if err != nil {
		return nil, false
	}
	return s.lookup(id)
}

// Len reports the number of live rooms.
func (s *RoomStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// Rooms lists every live room ordered by id.
func (s *RoomStore) Rooms() []Summary {
	s.mu.Lock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.Unlock()

	out := make([]Summary, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}

// SweepInactive removes every room whose last activity is older than
// threshold and returns how many were removed.
func (s *RoomStore) SweepInactive(threshold time.Duration) (removed int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("sweep panicked: %v", rec)
		}
	}()

	cutoff := s.opts.Now().Add(-threshold)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.rooms {
		if r.closeIfIdle(cutoff) {
			delete(s.rooms, id)
			removed++
			s.log.WithField("room", id).Info("Cleaning up inactive room")
		}
	}
	return removed, nil
}

// closeIfIdle marks r closed when its last activity is before cutoff.
func (r *Room) closeIfIdle(cutoff time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	stale := r.lastActivityAt.Before(cutoff)
	if stale {
		r.closed = true
	}
	return stale
}

// sweepLoop runs SweepInactive every SweepInterval until ctx is cancelled.
// A failed sweep is logged and retried after SweepRetry.
func (s *RoomStore) sweepLoop(ctx context.Context) {
	defer close(s.done)

	timer := time.NewTimer(s.opts.SweepInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		removed, err := s.sweepFn(s.opts.IdleTimeout)
		if s.opts.OnSweep != nil {
			s.opts.OnSweep(removed, err)
		}

		next := s.opts.SweepInterval
		if err != nil {
			s.log.WithError(err).Error("Periodic cleanup failed")
			next = s.opts.SweepRetry
		} else if removed > 0 {
			s.log.Infof("Periodic cleanup: removed %d inactive rooms", removed)
		}
		timer.Reset(next)
	}
}
