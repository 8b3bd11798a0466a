package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jason-s-yu/babanuki/internal/models"
)

// TxBeginner is satisfied by *pgxpool.Pool and *pgx.Conn.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS room_events (
		event_id   UUID        PRIMARY KEY,
		room_id    TEXT        NOT NULL,
		game_id    UUID,
		seq        INTEGER     NOT NULL,
		action     TEXT        NOT NULL,
		player     TEXT,
		details    JSONB,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS room_events_room_idx ON room_events (room_id, created_at, seq);
`

// EnsureSchema creates the room_events table if it is missing. event_id is
// the event's own uuid, so a retried batch does not store a row twice.
func EnsureSchema(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create room_events: %w", err)
	}
	return nil
}

const insertEventSQL = `
	INSERT INTO room_events (event_id, room_id, game_id, seq, action, player, details, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (event_id) DO NOTHING
`

// InsertRoomEvents stores recs in a single transaction. Either all rows
// are written or none.
func InsertRoomEvents(ctx context.Context, db TxBeginner, recs []models.RoomEventRecord) error {
	if len(recs) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range recs {
			if err := insertRoomEventTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("room %s seq %d: %w", rec.RoomID, rec.Seq, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx insert room events: %w", err)
	}
	return nil
}

func insertRoomEventTx(ctx context.Context, tx pgx.Tx, rec models.RoomEventRecord) error {
	var details []byte
	if rec.Details != nil {
		var err error
		if details, err = json.Marshal(rec.Details); err != nil {
			return err
		}
	}

	id := rec.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	var gameID any
	if rec.GameID != uuid.Nil {
		gameID = rec.GameID
	}
	var player any
	if rec.Player != "" {
		player = rec.Player
	}

	_, err := tx.Exec(ctx, insertEventSQL,
		id, rec.RoomID, gameID, rec.Seq, rec.Action, player, details, rec.CreatedAt(),
	)
	return err
}
