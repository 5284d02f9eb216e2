package storage

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/TaelanSakay/PlayGround/domain/canvas"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS canvas_rooms (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	owner        TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	elements     JSONB NOT NULL DEFAULT '[]'::jsonb,
	participants JSONB NOT NULL DEFAULT '[]'::jsonb,
	version      BIGINT NOT NULL DEFAULT 1
)`

// PostgresStore keeps rooms in PostgreSQL with JSONB documents and a
// version column checked on every update.
type PostgresStore struct {
	url  string
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store that connects to databaseURL on Open.
func NewPostgresStore(databaseURL string) *PostgresStore {
	return &PostgresStore{url: databaseURL}
}

// NewPostgresStoreFromPool wraps an existing pool and ensures the schema.
func NewPostgresStoreFromPool(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Driver returns the backend name.
func (s *PostgresStore) Driver() string { return DriverPostgres }

// Open creates the connection pool and the schema.
func (s *PostgresStore) Open(ctx context.Context) error {
	pool, err := pgxpool.New(ctx, s.url)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}
	s.pool = pool
	return nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.pool == nil {
		return errors.New("database not initialized")
	}
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// CreateRoom inserts a room at version 1.
func (s *PostgresStore) CreateRoom(ctx context.Context, room *domain.Room) error {
	elements, participants, err := encodeColumns(room)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO canvas_rooms (id, name, owner, created_at, elements, participants, version)
		 VALUES ($1, $2, $3, $4, $5, $6, 1)`,
		room.ID, room.Name, room.Owner, room.CreatedAt, elements, participants,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrRoomExists
		}
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

// GetRoom returns the room and its version column.
func (s *PostgresStore) GetRoom(ctx context.Context, roomID string) (*domain.Room, uint64, error) {
	var (
		room                   domain.Room
		elements, participants []byte
		version                int64
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, owner, created_at, elements, participants, version
		 FROM canvas_rooms WHERE id = $1`,
		roomID,
	).Scan(&room.ID, &room.Name, &room.Owner, &room.CreatedAt, &elements, &participants, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, domain.ErrRoomNotFound
		}
		return nil, 0, fmt.Errorf("failed to get room: %w", err)
	}
	if err := decodeColumns(&room, elements, participants); err != nil {
		return nil, 0, err
	}
	return &room, uint64(version), nil
}

// SaveRoom updates the row only where the version still matches.
func (s *PostgresStore) SaveRoom(ctx context.Context, room *domain.Room, expectedVersion uint64) (uint64, error) {
	elements, participants, err := encodeColumns(room)
	if err != nil {
		return 0, err
	}

	var next int64
	err = s.pool.QueryRow(ctx,
		`UPDATE canvas_rooms
		 SET name = $2, owner = $3, elements = $4, participants = $5, version = version + 1
		 WHERE id = $1 AND version = $6
		 RETURNING version`,
		room.ID, room.Name, room.Owner, elements, participants, int64(expectedVersion),
	).Scan(&next)
	if err == nil {
		return uint64(next), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to save room: %w", err)
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM canvas_rooms WHERE id = $1)`, room.ID,
	).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to check room: %w", err)
	}
	if !exists {
		return 0, domain.ErrRoomNotFound
	}
	return 0, domain.ErrVersionConflict
}

// ListRooms returns every room ordered by creation time.
func (s *PostgresStore) ListRooms(ctx context.Context) ([]*domain.Room, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, owner, created_at, elements, participants
		 FROM canvas_rooms ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]*domain.Room, 0)
	for rows.Next() {
		var (
			room                   domain.Room
			elements, participants []byte
		)
		if err := rows.Scan(&room.ID, &room.Name, &room.Owner, &room.CreatedAt, &elements, &participants); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		if err := decodeColumns(&room, elements, participants); err != nil {
			return nil, err
		}
		rooms = append(rooms, &room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rooms: %w", err)
	}
	return rooms, nil
}
