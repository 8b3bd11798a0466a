package game

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// newTestStore returns a store without a background sweeper.
func newTestStore(clock *fakeClock) *RoomStore {
	seed := int64(0)
	var mu sync.Mutex
	return newRoomStore(StoreOptions{
		Logger: quietLogger(),
		Now:    clock.Now,
		NewRand: func() *rand.Rand {
			mu.Lock()
			defer mu.Unlock()
			seed++
			return rand.New(rand.NewSource(seed))
		},
	})
}

func fillRoom(t *testing.T, s *RoomStore, roomID string) {
	t.Helper()
	for i, name := range []string{"Aki", "Ben", "Cho"} {
		_, err := s.JoinRoom(roomID, pid(i), name)
		require.NoError(t, err)
	}
}

func TestJoinRoomCreatesAndNormalises(t *testing.T) {
	s := newTestStore(&fakeClock{t: testEpoch})

	out, err := s.JoinRoom("  abc ", "p0", "  Aki ")
	require.NoError(t, err)
	assert.Equal(t, "ABC", out.RoomID)
	assert.Equal(t, 1, s.Len())

	snap, ok := out.Snapshots["p0"]
	require.True(t, ok)
	assert.Equal(t, "Aki", snap.Me.Name)
	assert.Equal(t, PhaseWaiting, snap.Phase)
	require.Len(t, out.Events, 1)
	assert.Equal(t, EventPlayerJoined, out.Events[0].Type)

	out, err = s.JoinRoom("Abc", "p1", "Ben")
	require.NoError(t, err)
	assert.Len(t, out.Snapshots, 2, "every seated player gets a snapshot")
	assert.Equal(t, 1, s.Len())
}

func TestJoinRoomDuplicateNameLeavesRoster(t *testing.T) {
	s := newTestStore(&fakeClock{t: testEpoch})
	_, err := s.JoinRoom("R1", "p0", "Aki")
	require.NoError(t, err)

	out, err := s.JoinRoom("R1", "p1", "Aki")
	assert.Nil(t, out)
	reason, ok := ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, ReasonDuplicateName, reason)

	r, ok := s.Room("r1")
	require.True(t, ok)
	assert.Equal(t, []string{"Aki"}, r.Summary().Players)
}

func TestJoinRoomValidatesInput(t *testing.T) {
	s := newTestStore(&fakeClock{t: testEpoch})

	tests := []struct {
		name   string
		roomID string
		player string
		want   error
	}{
		{"blank room", "   ", "Aki", ErrBadRoomID},
		{"long room", "ABCDEFGHIJK", "Aki", ErrBadRoomID},
		{"short name", "R1", " A ", ErrBadName},
		{"long name", "R1", "abcdefghijklmnopqrstu", ErrBadName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.JoinRoom(tt.roomID, "p0", tt.player)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Zero(t, s.Len(), "rejected joins must not leave rooms behind")
}

func TestJoinRoomFullDoesNotCreate(t *testing.T) {
	s := newTestStore(&fakeClock{t: testEpoch})
	fillRoom(t, s, "R1")

	_, err := s.JoinRoom("R1", "p9", "Dan")
	assert.ErrorIs(t, err, ErrRoomFull)
	assert.Equal(t, 1, s.Len())
}

func TestOperationsOnMissingRoom(t *testing.T) {
	s := newTestStore(&fakeClock{t: testEpoch})

	_, err := s.StartGame("NOPE", "p0")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, err = s.DiscardPairs("NOPE")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, err = s.DrawCard("NOPE", "p0", 1, 0)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, err = s.LeaveRoom("NOPE", "p0")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestLeaveRoomDeletesEmptyRoom(t *testing.T) {
	s := newTestStore(&fakeClock{t: testEpoch})
	_, err := s.JoinRoom("R1", "p0", "Aki")
	require.NoError(t, err)

	out, err := s.LeaveRoom("r1", "p0")
	require.NoError(t, err)
	assert.True(t, out.Closed)
	assert.Empty(t, out.Snapshots)
	assert.Zero(t, s.Len())

	_, ok := s.Room("R1")
	assert.False(t, ok)

	out, err = s.JoinRoom("R1", "p0", "Aki")
	require.NoError(t, err, "a deleted room id can be reused")
	assert.False(t, out.Closed)
}

func TestStoreGameFlow(t *testing.T) {
	s := newTestStore(&fakeClock{t: testEpoch})
	fillRoom(t, s, "R1")

	out, err := s.StartGame("R1", "p1")
	require.NoError(t, err)
	assert.Equal(t, PhaseDiscard, out.Snapshots["p0"].Phase)
	assert.Len(t, out.Snapshots["p2"].Me.Hand, 17)

	out, err = s.DiscardPairs("R1")
	require.NoError(t, err)
	snap := out.Snapshots["p0"]
	if snap.Phase == PhaseFinished {
		t.Skip("deal finished the game on discard")
	}
	require.Equal(t, PhaseDraw, snap.Phase)
	require.NotNil(t, snap.NextSource)

	turn := snap.CurrentTurn
	actor := pid(turn)
	_, err = s.DrawCard("R1", actor, *snap.NextSource, 0)
	require.NoError(t, err)

	_, err = s.DrawCard("R1", actor, *snap.NextSource, 0)
	assert.Error(t, err, "the same player cannot draw twice in a row")
}

func TestSweepInactive(t *testing.T) {
	clock := &fakeClock{t: testEpoch}
	s := newTestStore(clock)

	_, err := s.JoinRoom("OLD", "p0", "Aki")
	require.NoError(t, err)
	clock.Advance(20 * time.Minute)
	_, err = s.JoinRoom("NEW", "p1", "Ben")
	require.NoError(t, err)
	clock.Advance(15 * time.Minute)

	removed, err := s.SweepInactive(30 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, ok := s.Room("OLD")
	assert.False(t, ok)
	_, ok = s.Room("NEW")
	assert.True(t, ok)

	_, err = s.StartGame("OLD", "p0")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestSweepKeepsActiveRooms(t *testing.T) {
	clock := &fakeClock{t: testEpoch}
	s := newTestStore(clock)
	fillRoom(t, s, "R1")

	clock.Advance(25 * time.Minute)
	_, err := s.StartGame("R1", "p0")
	require.NoError(t, err)
	clock.Advance(25 * time.Minute)

	removed, err := s.SweepInactive(30 * time.Minute)
	require.NoError(t, err)
	assert.Zero(t, removed, "a successful action refreshes the activity clock")
}

func TestRejectedActionDoesNotRefreshActivity(t *testing.T) {
	clock := &fakeClock{t: testEpoch}
	s := newTestStore(clock)
	_, err := s.JoinRoom("R1", "p0", "Aki")
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	_, err = s.StartGame("R1", "p0")
	require.ErrorIs(t, err, ErrNotEnoughPlayers)

	r, _ := s.Room("R1")
	assert.Equal(t, testEpoch, r.Summary().LastActivityAt)
}

func TestSweepLoopRetriesAfterFailure(t *testing.T) {
	var (
		mu      sync.Mutex
		results []error
	)
	calls := 0
	s := newRoomStore(StoreOptions{
		Logger:        quietLogger(),
		IdleTimeout:   time.Minute,
		SweepInterval: 50 * time.Millisecond,
		SweepRetry:    5 * time.Millisecond,
		OnSweep: func(_ int, err error) {
			mu.Lock()
			results = append(results, err)
			mu.Unlock()
		},
	})
	s.startSweeper(func(threshold time.Duration) (int, error) {
		calls++
		assert.Equal(t, time.Minute, threshold)
		if calls == 1 {
			return 0, errors.New("boom")
		}
		return 0, nil
	})
	defer s.Close()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.EqualError(t, results[0], "boom")
	assert.NoError(t, results[1])
}

func TestCloseWithoutSweeper(t *testing.T) {
	s := newTestStore(&fakeClock{t: testEpoch})
	assert.NotPanics(t, s.Close)

	live := NewRoomStore(StoreOptions{Logger: quietLogger()})
	assert.NotPanics(t, live.Close)
}

func TestRoomsListing(t *testing.T) {
	s := newTestStore(&fakeClock{t: testEpoch})
	_, err := s.JoinRoom("B", "p0", "Aki")
	require.NoError(t, err)
	_, err = s.JoinRoom("A", "p1", "Ben")
	require.NoError(t, err)

	list := s.Rooms()
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].RoomID)
	assert.Equal(t, []string{"Ben"}, list[0].Players)
	assert.Equal(t, "B", list[1].RoomID)
}

func TestConcurrentJoinLeaveSweep(t *testing.T) {
	clock := &fakeClock{t: testEpoch}
	s := newTestStore(clock)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				room := fmt.Sprintf("R%d", i%3)
				player := fmt.Sprintf("w%d", w)
				if _, err := s.JoinRoom(room, player, player+"x"); err != nil {
					_, isReject := ReasonOf(err)
					assert.True(t, isReject, "unexpected error %v", err)
					continue
				}
				if _, err := s.LeaveRoom(room, player); err != nil {
					_, isReject := ReasonOf(err)
					assert.True(t, isReject, "unexpected error %v", err)
				}
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			clock.Advance(time.Minute)
			_, err := s.SweepInactive(30 * time.Second)
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	for _, sum := range s.Rooms() {
		assert.LessOrEqual(t, sum.PlayerCount, MaxPlayers)
		r, ok := s.Room(sum.RoomID)
		require.True(t, ok)
		r.mu.Lock()
		assert.NoError(t, r.verify())
		assert.False(t, r.closed)
		r.mu.Unlock()
	}
}

func TestSweepPanicReleasesLocks(t *testing.T) {
	s := newTestStore(&fakeClock{t: testEpoch})
	_, err := s.JoinRoom("R1", "p0", "Aki")
	require.NoError(t, err)

	s.mu.Lock()
	s.rooms["BROKEN"] = nil
	s.mu.Unlock()

	_, err = s.SweepInactive(time.Hour)
	require.Error(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := s.JoinRoom("R1", "p1", "Ben")
		assert.NoError(t, err)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("join blocked after a failed sweep")
	}
}

func TestBroadcastRunsUnderRoomLock(t *testing.T) {
	s := newTestStore(&fakeClock{t: testEpoch})
	_, err := s.JoinRoom("R1", "p0", "Aki")
	require.NoError(t, err)
	r, ok := s.Room("R1")
	require.True(t, ok)

	var got []*Outcome
	s.BroadcastFn = func(out *Outcome) {
		if r.mu.TryLock() {
			r.mu.Unlock()
			t.Error("room unlocked during broadcast")
		}
		got = append(got, out)
	}

	_, err = s.JoinRoom("R1", "p1", "Ben")
	require.NoError(t, err)
	_, err = s.JoinRoom("R1", "p2", "Cho")
	require.NoError(t, err)
	_, err = s.StartGame("R1", "p1")
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.True(t, got[0].Joined)
	assert.Equal(t, "p1", got[0].Actor)
	assert.False(t, got[2].Joined)
	assert.Equal(t, "p1", got[2].Actor)
	for i, out := range got {
		assert.Equal(t, uint64(i+2), out.Version)
		for _, snap := range out.Snapshots {
			assert.Equal(t, out.Version, snap.Version)
		}
	}
}

func TestRejectedActionIsNotBroadcast(t *testing.T) {
	s := newTestStore(&fakeClock{t: testEpoch})
	_, err := s.JoinRoom("R1", "p0", "Aki")
	require.NoError(t, err)

	calls := 0
	s.BroadcastFn = func(*Outcome) { calls++ }

	_, err = s.JoinRoom("R1", "p1", "Aki")
	require.ErrorIs(t, err, ErrDuplicateName)
	_, err = s.StartGame("R1", "p0")
	require.ErrorIs(t, err, ErrNotEnoughPlayers)
	assert.Zero(t, calls)

	snap, ok := mustRoom(t, s, "R1").Snapshot("p0")
	require.True(t, ok)
	assert.Equal(t, uint64(1), snap.Version, "rejections do not advance the version")
}

func TestBroadcastOrderMatchesTransitions(t *testing.T) {
	s := newTestStore(&fakeClock{t: testEpoch})
	_, err := s.JoinRoom("R1", "anchor", "Anchor")
	require.NoError(t, err)

	// BroadcastFn runs under the room lock, so appends are serialised.
	var versions []uint64
	s.BroadcastFn = func(out *Outcome) {
		versions = append(versions, out.Version)
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			player := fmt.Sprintf("w%d", w)
			for i := 0; i < 100; i++ {
				if _, err := s.JoinRoom("R1", player, player+"x"); err != nil {
					continue
				}
				_, err := s.LeaveRoom("R1", player)
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	require.NotEmpty(t, versions)
	for i := 1; i < len(versions); i++ {
		require.Equal(t, versions[i-1]+1, versions[i], "broadcast %d out of order", i)
	}
}

func mustRoom(t *testing.T, s *RoomStore, id string) *Room {
	t.Helper()
	r, ok := s.Room(id)
	require.True(t, ok)
	return r
}
