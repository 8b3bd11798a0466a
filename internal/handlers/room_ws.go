// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/babanuki/internal/middleware"
	"github.com/sirupsen/logrus"
)

// Subprotocol is the WebSocket subprotocol clients must request.
const Subprotocol = "babanuki"

// RoomWSHandler upgrades the connection, resolves the player's identity and
// serves room messages until the client goes away. Closing the connection
// counts as leaving the room.
func RoomWSHandler(s *RoomServer) http.HandlerFunc {
	logger := s.Logger
	return func(w http.ResponseWriter, r *http.Request) {
		// The guest cookie must be set before the upgrade writes the header.
		playerID, idErr := EnsureGuestPlayer(w, r, s.Issuer)

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the babanuki subprotocol")
			return
		}
		if idErr != nil {
			logger.WithError(idErr).Error("Guest identity failed")
			c.Close(InvalidAuthTokenError, "could not issue identity")
			return
		}

		client := newClient(playerID, logger)
		if err := s.Hub.Register(client); err != nil {
			c.Close(DuplicateConnectionError, "player already connected")
			return
		}
		defer s.Hub.Unregister(client)

		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)
		if s.Metrics != nil {
			s.Metrics.OnlinePlayers.Inc()
			defer s.Metrics.OnlinePlayers.Dec()
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go writePump(ctx, c, client, logger)
		readErr := readPump(ctx, c, s, client)

		s.disconnect(client)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readPump decodes inbound messages until the connection fails. It returns
// nil on a normal close.
func readPump(ctx context.Context, c *websocket.Conn, s *RoomServer, client *Client) error {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		if typ != websocket.MessageText {
			s.Logger.WithField("player", client.PlayerID).Warnf("Ignoring non-text message type %d", typ)
			continue
		}

		var msg RoomMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			client.Write(errorMessage{Type: MsgError, Reason: ReasonBadMessage, Message: "invalid JSON format"})
			continue
		}
		s.Logger.WithFields(logrus.Fields{
			"player": client.PlayerID,
			"type":   msg.Type,
		}).Debug("Received message")

		s.handleMessage(client, msg)
	}
}

// writePump drains the client's OutChan onto the socket and keeps the
// connection alive with pings.
func writePump(ctx context.Context, c *websocket.Conn, client *Client, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-client.OutChan:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, c, msg)
			cancel()
			if err != nil {
				logger.Warnf("Failed to write to websocket for player %s: %v", client.PlayerID, err)
				c.Close(websocket.StatusGoingAway, "write failed")
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("Failed to ping player %s: %v. Assuming disconnect.", client.PlayerID, err)
				c.Close(websocket.StatusGoingAway, "ping failed")
				return
			}
		}
	}
}
