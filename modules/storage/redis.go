package storage

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/TaelanSakay/PlayGround/domain/canvas"
	"github.com/redis/go-redis/v9"
)

const (
	redisRoomPrefix = "canvas:room:"
	redisRoomsKey   = "canvas:rooms"
)

// RedisStore keeps each room as a versioned JSON document. Writes run in
// a WATCH/MULTI transaction so a concurrent writer aborts the commit.
type RedisStore struct {
	opts   *redis.Options
	client *redis.Client
}

// NewRedisStore creates a store that connects with opts on Open.
func NewRedisStore(opts *redis.Options) *RedisStore {
	return &RedisStore{opts: opts}
}

// Driver returns the backend name.
func (s *RedisStore) Driver() string { return DriverRedis }

// Open connects to Redis and verifies the connection.
func (s *RedisStore) Open(ctx context.Context) error {
	client := redis.NewClient(s.opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	s.client = client
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if s.client == nil {
		return errors.New("redis client is not initialized")
	}
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func roomKey(roomID string) string {
	return redisRoomPrefix + roomID
}

// CreateRoom stores the room at version 1 unless the key exists.
func (s *RedisStore) CreateRoom(ctx context.Context, room *domain.Room) error {
	data, err := encodeDocument(1, room)
	if err != nil {
		return err
	}
	created, err := s.client.SetNX(ctx, roomKey(room.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	if !created {
		return domain.ErrRoomExists
	}
	if err := s.client.SAdd(ctx, redisRoomsKey, room.ID).Err(); err != nil {
		return fmt.Errorf("failed to index room: %w", err)
	}
	return nil
}

// GetRoom returns the room and the version stored alongside it.
func (s *RedisStore) GetRoom(ctx context.Context, roomID string) (*domain.Room, uint64, error) {
	data, err := s.client.Get(ctx, roomKey(roomID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, 0, domain.ErrRoomNotFound
		}
		return nil, 0, fmt.Errorf("failed to get room: %w", err)
	}
	return decodeDocument(data)
}

// SaveRoom writes the room at expectedVersion+1 if nobody else wrote it.
func (s *RedisStore) SaveRoom(ctx context.Context, room *domain.Room, expectedVersion uint64) (uint64, error) {
	key := roomKey(room.ID)
	next := expectedVersion + 1

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return domain.ErrRoomNotFound
			}
			return err
		}
		_, current, err := decodeDocument(data)
		if err != nil {
			return err
		}
		if current != expectedVersion {
			return domain.ErrVersionConflict
		}

		encoded, err := encodeDocument(next, room)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return next, nil
	case errors.Is(err, redis.TxFailedErr):
		return 0, domain.ErrVersionConflict
	case errors.Is(err, domain.ErrVersionConflict), errors.Is(err, domain.ErrRoomNotFound):
		return 0, err
	default:
		return 0, fmt.Errorf("failed to save room: %w", err)
	}
}

// ListRooms reads every indexed room.
func (s *RedisStore) ListRooms(ctx context.Context) ([]*domain.Room, error) {
	ids, err := s.client.SMembers(ctx, redisRoomsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	rooms := make([]*domain.Room, 0, len(ids))
	for _, id := range ids {
		room, _, err := s.GetRoom(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrRoomNotFound) {
				continue
			}
			return nil, err
		}
		rooms = append(rooms, room)
	}
	sortRooms(rooms)
	return rooms, nil
}
