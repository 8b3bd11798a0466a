// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the room gateway.
const (
	BadSubprotocolError      websocket.StatusCode = 3000 // Client connected without the babanuki subprotocol.
	InvalidAuthTokenError    websocket.StatusCode = 3001 // A guest identity could not be issued.
	DuplicateConnectionError websocket.StatusCode = 3002 // The player already has an open connection.
)
