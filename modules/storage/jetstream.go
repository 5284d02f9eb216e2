package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/TaelanSakay/PlayGround/domain/canvas"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// DefaultBucket is the JetStream KV bucket holding room documents.
const DefaultBucket = "canvas-rooms"

// JetStreamStore keeps one KV entry per room. The entry revision is the
// room version, so SaveRoom is a compare-and-set on the revision.
type JetStreamStore struct {
	url    string
	bucket string
	conn   *nats.Conn
	js     jetstream.JetStream
	kv     jetstream.KeyValue
}

// NewJetStreamStore creates a store that connects to natsURL on Open.
func NewJetStreamStore(natsURL, bucket string) *JetStreamStore {
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &JetStreamStore{url: natsURL, bucket: bucket}
}

// Driver returns the backend name.
func (s *JetStreamStore) Driver() string { return DriverJetStream }

// Open connects to NATS and creates the bucket if needed.
func (s *JetStreamStore) Open(ctx context.Context) error {
	conn, err := nats.Connect(s.url,
		nats.Name("canvas-document-store"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	kv, err := js.KeyValue(ctx, s.bucket)
	if err != nil {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      s.bucket,
			Description: "Collaborative canvas room documents",
			History:     1,
		})
		if err != nil {
			conn.Close()
			return fmt.Errorf("failed to create %s bucket: %w", s.bucket, err)
		}
	}

	s.conn, s.js, s.kv = conn, js, kv
	return nil
}

// Ping reports whether the NATS connection is usable.
func (s *JetStreamStore) Ping(_ context.Context) error {
	if s.conn == nil || !s.conn.IsConnected() {
		return errors.New("nats connection is not established")
	}
	return nil
}

// Close drains the NATS connection.
func (s *JetStreamStore) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}

// CreateRoom writes a room only if its key does not exist yet.
func (s *JetStreamStore) CreateRoom(ctx context.Context, room *domain.Room) error {
	if !validRoomID(room.ID) {
		return fmt.Errorf("invalid room id %q", room.ID)
	}
	data, err := encodeRoom(room)
	if err != nil {
		return err
	}
	if _, err := s.kv.Create(ctx, room.ID, data); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return domain.ErrRoomExists
		}
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

// GetRoom returns the room and its KV revision.
func (s *JetStreamStore) GetRoom(ctx context.Context, roomID string) (*domain.Room, uint64, error) {
	if !validRoomID(roomID) {
		return nil, 0, domain.ErrRoomNotFound
	}
	entry, err := s.kv.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, 0, domain.ErrRoomNotFound
		}
		return nil, 0, fmt.Errorf("failed to get room: %w", err)
	}
	room, err := decodeRoom(entry.Value())
	if err != nil {
		return nil, 0, err
	}
	return room, entry.Revision(), nil
}

// SaveRoom updates the room if the KV revision still matches.
func (s *JetStreamStore) SaveRoom(ctx context.Context, room *domain.Room, expectedVersion uint64) (uint64, error) {
	if !validRoomID(room.ID) {
		return 0, domain.ErrRoomNotFound
	}
	data, err := encodeRoom(room)
	if err != nil {
		return 0, err
	}
	revision, err := s.kv.Update(ctx, room.ID, data, expectedVersion)
	if err != nil {
		if isWrongSequence(err) {
			return 0, domain.ErrVersionConflict
		}
		return 0, fmt.Errorf("failed to save room: %w", err)
	}
	return revision, nil
}

// ListRooms reads every room in the bucket.
func (s *JetStreamStore) ListRooms(ctx context.Context) ([]*domain.Room, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return []*domain.Room{}, nil
		}
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer lister.Stop()

	rooms := make([]*domain.Room, 0)
	for key := range lister.Keys() {
		room, _, err := s.GetRoom(ctx, key)
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

func isWrongSequence(err error) bool {
	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
	}
	return errors.Is(err, jetstream.ErrKeyExists)
}
