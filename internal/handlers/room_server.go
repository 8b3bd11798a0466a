// internal/handlers/room_server.go
package handlers

import (
	"errors"
	"time"

	"github.com/jason-s-yu/babanuki/internal/auth"
	"github.com/jason-s-yu/babanuki/internal/game"
	"github.com/jason-s-yu/babanuki/internal/metrics"
	"github.com/sirupsen/logrus"
)

// EventSink receives the events of every successful transition. Enqueue is
// called with the room locked and must not block.
type EventSink interface {
	Enqueue(roomID string, events []game.Event)
}

// RoomServer routes gateway messages to the room store and fans the
// resulting snapshots out to the seated players.
type RoomServer struct {
	Store   *game.RoomStore
	Hub     *Hub
	Issuer  *auth.Issuer
	Metrics *metrics.Metrics // optional
	Events  EventSink        // optional
	Logger  *logrus.Logger
}

// NewRoomServer wires the server as the store's broadcaster.
func NewRoomServer(store *game.RoomStore, issuer *auth.Issuer, logger *logrus.Logger) *RoomServer {
	s := &RoomServer{
		Store:  store,
		Hub:    NewHub(),
		Issuer: issuer,
		Logger: logger,
	}
	if store != nil {
		store.BroadcastFn = s.deliver
	}
	return s
}

// handleMessage processes one inbound message for c. A panic is confined
// to the message that caused it.
func (s *RoomServer) handleMessage(c *Client, msg RoomMessage) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			s.Logger.WithFields(logrus.Fields{
				"player": c.PlayerID,
				"type":   msg.Type,
			}).Errorf("Panic while handling message: %v", rec)
			c.Write(errorMessage{Type: MsgError, Reason: ReasonInternal, Message: "internal error"})
		}
		if s.Metrics != nil {
			s.Metrics.ObserveMessage(msg.Type, start)
		}
	}()

	switch msg.Type {
	case MsgJoinGame:
		s.join(c, msg)
	case MsgStartGame:
		s.inRoom(c, func(roomID string) (*game.Outcome, error) {
			return s.Store.StartGame(roomID, c.PlayerID)
		})
	case MsgDiscardPairs:
		s.inRoom(c, s.Store.DiscardPairs)
	case MsgDrawCard:
		from, idx := -1, -1
		if msg.FromPosition != nil {
			from = *msg.FromPosition
		}
		if msg.CardIndex != nil {
			idx = *msg.CardIndex
		}
		s.inRoom(c, func(roomID string) (*game.Outcome, error) {
			return s.Store.DrawCard(roomID, c.PlayerID, from, idx)
		})
	case MsgLeaveGame:
		s.leave(c, true)
	case MsgPing:
		c.Write(pongMessage{Type: MsgPong})
	default:
		c.Write(errorMessage{Type: MsgError, Reason: ReasonBadMessage, Message: "unknown message type: " + msg.Type})
	}
}

// join seats c in the requested room. A player already seated elsewhere
// only leaves the old room once the new join succeeded.
func (s *RoomServer) join(c *Client, msg RoomMessage) {
	out, err := s.Store.JoinRoom(msg.RoomID, c.PlayerID, msg.Name)
	if err != nil {
		s.reject(c, err)
		return
	}
	if c.roomID != "" && c.roomID != out.RoomID {
		s.leave(c, false)
	}
	c.roomID = out.RoomID
	s.roomsChanged()
}

func (s *RoomServer) inRoom(c *Client, op func(roomID string) (*game.Outcome, error)) {
	if c.roomID == "" {
		c.Write(errorMessage{Type: MsgError, Reason: ReasonNotInRoom, Message: "join a room first"})
		return
	}
	if _, err := op(c.roomID); err != nil {
		if errors.Is(err, game.ErrRoomNotFound) {
			c.roomID = ""
		}
		s.reject(c, err)
		return
	}
	s.roomsChanged()
}

// leave removes c from its room. notify sends room_left to c.
func (s *RoomServer) leave(c *Client, notify bool) {
	if c.roomID == "" {
		if notify {
			c.Write(errorMessage{Type: MsgError, Reason: ReasonNotInRoom, Message: "not in a room"})
		}
		return
	}
	roomID := c.roomID

	_, err := s.Store.LeaveRoom(roomID, c.PlayerID)
	switch {
	case err == nil:
		s.roomsChanged()
	case errors.Is(err, game.ErrRoomNotFound), errors.Is(err, game.ErrUnknownPlayer):
		// Swept, possibly replaced by a new room of the same id.
	default:
		if notify {
			s.reject(c, err)
		} else {
			s.Logger.WithError(err).WithFields(logrus.Fields{
				"player": c.PlayerID,
				"room":   roomID,
			}).Error("Failed to leave room")
		}
		return
	}

	c.roomID = ""
	if notify {
		c.Write(roomLeftMessage{Type: MsgRoomLeft, RoomID: roomID})
	}
}

// disconnect treats a closed connection as leaving its room.
func (s *RoomServer) disconnect(c *Client) {
	s.leave(c, false)
}

// deliver queues every seated player's snapshot and hands the events to
// the sink. It is the store's BroadcastFn and runs with the room locked.
func (s *RoomServer) deliver(out *game.Outcome) {
	for playerID, snap := range out.Snapshots {
		if out.Joined && playerID == out.Actor {
			s.Hub.Send(playerID, joinedMessage{
				Type:     MsgGameJoined,
				RoomID:   out.RoomID,
				PlayerID: playerID,
				State:    snap,
				Events:   out.Events,
			})
			continue
		}
		s.Hub.Send(playerID, stateMessage{Type: MsgGameStateUpdated, State: snap, Events: out.Events})
	}
	if s.Events != nil && len(out.Events) > 0 {
		s.Events.Enqueue(out.RoomID, out.Events)
	}
}

func (s *RoomServer) roomsChanged() {
	if s.Metrics != nil {
		s.Metrics.SetActiveRooms(s.Store.Len())
	}
}

// reject reports err to the caller only.
func (s *RoomServer) reject(c *Client, err error) {
	if reason, ok := game.ReasonOf(err); ok {
		if s.Metrics != nil {
			s.Metrics.Rejections.WithLabelValues(string(reason)).Inc()
		}
		var re *game.RejectError
		errors.As(err, &re)
		c.Write(errorMessage{Type: MsgError, Reason: string(reason), Message: re.Message})
		return
	}

	if s.Metrics != nil {
		s.Metrics.InternalErrors.Inc()
	}
	s.Logger.WithError(err).WithField("player", c.PlayerID).Error("Room action failed")
	c.Write(errorMessage{Type: MsgError, Reason: ReasonInternal, Message: "internal error"})
}
