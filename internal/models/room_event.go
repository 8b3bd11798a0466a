package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomEventRecord is one room history entry as queued for the historian
// and stored in room_events.
type RoomEventRecord struct {
	ID        uuid.UUID              `json:"id"`
	RoomID    string                 `json:"room_id"`
	GameID    uuid.UUID              `json:"game_id"`
	Seq       int                    `json:"seq"`
	Action    string                 `json:"action"`
	Player    string                 `json:"player,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp int64                  `json:"timestamp"` // epoch millis
}

// CreatedAt returns the record timestamp as a time.
func (r RoomEventRecord) CreatedAt() time.Time {
	return time.UnixMilli(r.Timestamp).UTC()
}
