package canvas

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	domain "github.com/TaelanSakay/PlayGround/domain/canvas"
	"github.com/TaelanSakay/PlayGround/modules/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails SaveRoom with saveErr for the first failures calls.
type flakyStore struct {
	*storage.MemoryStore

	mu       sync.Mutex
	failures int
	saveErr  error
	saves    int
}

func (s *flakyStore) SaveRoom(ctx context.Context, room *domain.Room, expectedVersion uint64) (uint64, error) {
	s.mu.Lock()
	s.saves++
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return 0, s.saveErr
	}
	s.mu.Unlock()
	return s.MemoryStore.SaveRoom(ctx, room, expectedVersion)
}

func newRoomStore(t *testing.T, roomID string) *storage.MemoryStore {
	t.Helper()
	store := storage.NewMemoryStore()
	require.NoError(t, store.CreateRoom(context.Background(), &domain.Room{
		ID:        roomID,
		Name:      "Test",
		Owner:     "tester",
		CreatedAt: time.Now().UTC(),
	}))
	return store
}

func draft(id string) domain.Element {
	return domain.Element{ID: id, Kind: domain.KindText, Text: id, StrokeColor: DefaultStrokeColor, StrokeWidth: DefaultStrokeWidth}
}

func TestDocuments_AppendElement(t *testing.T) {
	ctx := context.Background()
	docs := NewDocuments(newRoomStore(t, "r1"), fastPolicy(3))

	_, err := docs.AppendElement(ctx, "r1", draft("a"))
	require.NoError(t, err)
	room, err := docs.AppendElement(ctx, "r1", draft("b"))
	require.NoError(t, err)

	require.Len(t, room.Elements, 2)
	assert.Equal(t, "a", room.Elements[0].ID)
	assert.Equal(t, "b", room.Elements[1].ID)

	t.Run("resubmitted draft replaces in place", func(t *testing.T) {
		updated := draft("a")
		updated.Text = "changed"
		room, err := docs.AppendElement(ctx, "r1", updated)
		require.NoError(t, err)
		require.Len(t, room.Elements, 2)
		assert.Equal(t, "changed", room.Elements[0].Text)
	})

	t.Run("completed id is rejected", func(t *testing.T) {
		_, err := docs.UpdateElement(ctx, "r1", "b", func(cur domain.Element) (domain.Element, error) {
			cur.Complete = true
			return cur, nil
		})
		require.NoError(t, err)

		_, err = docs.AppendElement(ctx, "r1", draft("b"))
		var verr *ValidationError
		assert.True(t, errors.As(err, &verr))
	})

	t.Run("missing room", func(t *testing.T) {
		_, err := docs.AppendElement(ctx, "nope", draft("c"))
		assert.ErrorIs(t, err, domain.ErrRoomNotFound)
		var nerr *NotFoundError
		require.True(t, errors.As(err, &nerr))
		assert.Equal(t, "room", nerr.Resource)
	})
}

func TestDocuments_UpdateElementNotFound(t *testing.T) {
	docs := NewDocuments(newRoomStore(t, "r1"), fastPolicy(3))

	_, err := docs.UpdateElement(context.Background(), "r1", "ghost", func(cur domain.Element) (domain.Element, error) {
		return cur, nil
	})
	assert.ErrorIs(t, err, domain.ErrElementNotFound)
}

func TestDocuments_RemoveElementIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: newRoomStore(t, "r1")}
	docs := NewDocuments(store, fastPolicy(3))

	_, err := docs.AppendElement(ctx, "r1", draft("a"))
	require.NoError(t, err)

	room, err := docs.RemoveElement(ctx, "r1", "a")
	require.NoError(t, err)
	assert.Empty(t, room.Elements)

	saves := store.saves
	_, err = docs.RemoveElement(ctx, "r1", "a")
	require.NoError(t, err)
	assert.Equal(t, saves, store.saves, "removing a missing element must not write")
}

func TestDocuments_RetriesVersionConflicts(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{
		MemoryStore: newRoomStore(t, "r1"),
		failures:    2,
		saveErr:     domain.ErrVersionConflict,
	}
	docs := NewDocuments(store, fastPolicy(3))

	room, err := docs.AppendElement(ctx, "r1", draft("a"))
	require.NoError(t, err)
	assert.Len(t, room.Elements, 1)
	assert.Equal(t, 3, store.saves)
}

func TestDocuments_ExhaustedRetriesArePersistenceErrors(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{
		MemoryStore: newRoomStore(t, "r1"),
		failures:    10,
		saveErr:     domain.ErrVersionConflict,
	}
	docs := NewDocuments(store, fastPolicy(3))

	_, err := docs.AppendElement(ctx, "r1", draft("a"))
	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.ErrorIs(t, err, ErrRetriesExhausted)

	loaded, err := docs.LoadRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, loaded.Elements)
}

func TestDocuments_StoreFailureIsNotRetried(t *testing.T) {
	store := &flakyStore{
		MemoryStore: newRoomStore(t, "r1"),
		failures:    1,
		saveErr:     errors.New("connection refused"),
	}
	docs := NewDocuments(store, fastPolicy(3))

	_, err := docs.AppendElement(context.Background(), "r1", draft("a"))
	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 1, store.saves)
}

func TestDocuments_ConcurrentAppendsKeepEveryElement(t *testing.T) {
	ctx := context.Background()
	docs := NewDocuments(newRoomStore(t, "r1"), RetryPolicy{
		MaxAttempts: 100,
		Retryable:   IsVersionConflict,
	})

	const writers = 20
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := docs.AppendElement(ctx, "r1", draft(fmt.Sprintf("el-%d", i)))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	room, err := docs.LoadRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, room.Elements, writers)
}

func TestDocuments_ParticipantSet(t *testing.T) {
	ctx := context.Background()
	docs := NewDocuments(newRoomStore(t, "r1"), fastPolicy(3))

	_, err := docs.AddParticipantID(ctx, "r1", "c1")
	require.NoError(t, err)
	room, err := docs.AddParticipantID(ctx, "r1", "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, room.Participants)

	room, err = docs.RemoveParticipantID(ctx, "r1", "c1")
	require.NoError(t, err)
	assert.Empty(t, room.Participants)
}

func TestDocuments_ReplaceAllElements(t *testing.T) {
	ctx := context.Background()
	docs := NewDocuments(newRoomStore(t, "r1"), fastPolicy(3))

	_, err := docs.AppendElement(ctx, "r1", draft("a"))
	require.NoError(t, err)

	room, err := docs.ReplaceAllElements(ctx, "r1", []domain.Element{draft("x"), draft("y")})
	require.NoError(t, err)
	require.Len(t, room.Elements, 2)
	assert.Equal(t, "x", room.Elements[0].ID)

	room, err = docs.ReplaceAllElements(ctx, "r1", nil)
	require.NoError(t, err)
	assert.Empty(t, room.Elements)
}
