package storage

import (
	"context"
	"sort"
	"sync"

	domain "github.com/TaelanSakay/PlayGround/domain/canvas"
)

type memoryEntry struct {
	room    *domain.Room
	version uint64
}

// MemoryStore keeps rooms in process memory with per-room versions.
type MemoryStore struct {
	rooms map[string]memoryEntry
	mu    sync.RWMutex
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]memoryEntry),
	}
}

// Driver returns the backend name.
func (s *MemoryStore) Driver() string { return DriverMemory }

// Open is a no-op for the memory store.
func (s *MemoryStore) Open(context.Context) error { return nil }

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }

// CreateRoom stores a new room at version 1.
func (s *MemoryStore) CreateRoom(_ context.Context, room *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.ID]; ok {
		return domain.ErrRoomExists
	}
	s.rooms[room.ID] = memoryEntry{room: normalize(room.Clone()), version: 1}
	return nil
}

// GetRoom returns a copy of the room and its version.
func (s *MemoryStore) GetRoom(_ context.Context, roomID string) (*domain.Room, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.rooms[roomID]
	if !ok {
		return nil, 0, domain.ErrRoomNotFound
	}
	return entry.room.Clone(), entry.version, nil
}

// SaveRoom replaces the room if its version still matches.
func (s *MemoryStore) SaveRoom(_ context.Context, room *domain.Room, expectedVersion uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.rooms[room.ID]
	if !ok {
		return 0, domain.ErrRoomNotFound
	}
	if entry.version != expectedVersion {
		return 0, domain.ErrVersionConflict
	}
	next := memoryEntry{room: normalize(room.Clone()), version: entry.version + 1}
	s.rooms[room.ID] = next
	return next.version, nil
}

// ListRooms returns copies of all rooms ordered by creation time.
func (s *MemoryStore) ListRooms(_ context.Context) ([]*domain.Room, error) {
	s.mu.RLock()
	rooms := make([]*domain.Room, 0, len(s.rooms))
	for _, entry := range s.rooms {
		rooms = append(rooms, entry.room.Clone())
	}
	s.mu.RUnlock()

	sortRooms(rooms)
	return rooms, nil
}

func sortRooms(rooms []*domain.Room) {
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
}

// normalize replaces nil slices so every backend returns the same shape.
func normalize(room *domain.Room) *domain.Room {
	if room.Elements == nil {
		room.Elements = []domain.Element{}
	}
	if room.Participants == nil {
		room.Participants = []string{}
	}
	return room
}
