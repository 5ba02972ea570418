package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ito-server/internal/game"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS rooms (
	room_code  TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	room_data  JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rooms_status ON rooms(status);
`

// RoomStore persists rooms to Postgres, one JSONB document per room
// keyed by room code. The whole record is written on every save; the
// RoomManager's per-room lock serializes writers, so the store itself
// needs no row versioning.
type RoomStore struct {
	pool *pgxpool.Pool
}

// NewRoomStore connects to Postgres and ensures the rooms table exists.
// An empty databaseURL returns (nil, nil): persistence disabled, rooms
// live only in memory.
func NewRoomStore(ctx context.Context, databaseURL string) (*RoomStore, error) {
	if databaseURL == "" {
		return nil, nil
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create rooms table: %w", err)
	}

	return &RoomStore{pool: pool}, nil
}

func (s *RoomStore) Close() {
	s.pool.Close()
}

// SaveRoom upserts one room record.
func (s *RoomStore) SaveRoom(ctx context.Context, g *game.Game) error {
	roomData, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to serialize room %s: %w", g.RoomCode, err)
	}

	query := `
		INSERT INTO rooms (room_code, status, room_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room_code) DO UPDATE SET
			status = EXCLUDED.status,
			room_data = EXCLUDED.room_data,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.pool.Exec(ctx, query, g.RoomCode, string(g.Status), roomData, g.CreatedAt, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save room %s: %w", g.RoomCode, err)
	}

	return nil
}

// LoadRoom retrieves one room by code.
func (s *RoomStore) LoadRoom(ctx context.Context, roomCode string) (*game.Game, error) {
	var roomData []byte
	err := s.pool.QueryRow(ctx, `SELECT room_data FROM rooms WHERE room_code = $1`, roomCode).Scan(&roomData)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ROOM_NOT_FOUND: No stored room %s", roomCode)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load room %s: %w", roomCode, err)
	}

	var g game.Game
	if err := json.Unmarshal(roomData, &g); err != nil {
		return nil, fmt.Errorf("failed to deserialize room %s: %w", roomCode, err)
	}

	return &g, nil
}

// LoadAllRooms retrieves every stored room. Individual corrupt records
// are logged and skipped rather than failing the whole load; losing one
// room on startup beats refusing to start.
func (s *RoomStore) LoadAllRooms(ctx context.Context) (map[string]*game.Game, error) {
	rows, err := s.pool.Query(ctx, `SELECT room_data FROM rooms ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	defer rows.Close()

	rooms := make(map[string]*game.Game)
	for rows.Next() {
		var roomData []byte
		if err := rows.Scan(&roomData); err != nil {
			return nil, fmt.Errorf("failed to scan room row: %w", err)
		}

		var g game.Game
		if err := json.Unmarshal(roomData, &g); err != nil {
			log.Printf("Warning: skipping corrupt room record: %v", err)
			continue
		}

		rooms[g.RoomCode] = &g
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating room rows: %w", err)
	}

	return rooms, nil
}

// DeleteRoom removes a room record.
func (s *RoomStore) DeleteRoom(ctx context.Context, roomCode string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE room_code = $1`, roomCode)
	if err != nil {
		return fmt.Errorf("failed to delete room %s: %w", roomCode, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ROOM_NOT_FOUND: No stored room %s", roomCode)
	}
	return nil
}

// CleanupOldRooms deletes finished rooms not touched for olderThan and
// returns the codes it removed so the caller can free them in memory.
func (s *RoomStore) CleanupOldRooms(ctx context.Context, olderThan time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-olderThan)

	rows, err := s.pool.Query(ctx,
		`DELETE FROM rooms WHERE status = $1 AND updated_at < $2 RETURNING room_code`,
		string(game.StatusFinished), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to cleanup old rooms: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan deleted room code: %w", err)
		}
		codes = append(codes, code)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deleted rooms: %w", err)
	}

	return codes, nil
}
