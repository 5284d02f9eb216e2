package canvas

import (
	"context"
	"errors"
	"slices"

	domain "github.com/TaelanSakay/PlayGround/domain/canvas"
)

// DocumentStore is the persistence port for rooms. Versions are opaque
// markers used for optimistic concurrency: SaveRoom must fail with
// domain.ErrVersionConflict when the stored version differs from
// expectedVersion.
type DocumentStore interface {
	CreateRoom(ctx context.Context, room *domain.Room) error
	GetRoom(ctx context.Context, roomID string) (*domain.Room, uint64, error)
	SaveRoom(ctx context.Context, room *domain.Room, expectedVersion uint64) (uint64, error)
	ListRooms(ctx context.Context) ([]*domain.Room, error)
}

// Documents provides retryable read-modify-write primitives over a
// DocumentStore. Every mutation reads a fresh copy of the room, applies
// a change, and writes it back under the version it read.
type Documents struct {
	store  DocumentStore
	policy RetryPolicy
}

// NewDocuments creates a Documents adapter.
func NewDocuments(store DocumentStore, policy RetryPolicy) *Documents {
	return &Documents{store: store, policy: policy}
}

// CreateRoom persists a new room.
func (d *Documents) CreateRoom(ctx context.Context, room *domain.Room) error {
	if err := d.store.CreateRoom(ctx, room); err != nil {
		if errors.Is(err, domain.ErrRoomExists) {
			return err
		}
		return &PersistenceError{Op: "create room", Err: err}
	}
	return nil
}

// ListRooms returns every stored room.
func (d *Documents) ListRooms(ctx context.Context) ([]*domain.Room, error) {
	rooms, err := d.store.ListRooms(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "list rooms", Err: err}
	}
	return rooms, nil
}

// LoadRoom returns the current room. A missing room yields *NotFoundError.
func (d *Documents) LoadRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	room, _, err := d.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, d.classify("load room", roomID, err)
	}
	return room, nil
}

// AppendElement adds el to the end of the document. Resubmitting a draft
// with an id already in the document replaces that draft in place; an id
// owned by a completed element is rejected.
func (d *Documents) AppendElement(ctx context.Context, roomID string, el domain.Element) (*domain.Room, error) {
	return d.mutate(ctx, "append element", roomID, func(room *domain.Room) (bool, error) {
		if i := room.IndexOf(el.ID); i >= 0 {
			if room.Elements[i].Complete {
				return false, invalid("id", "already belongs to a completed element")
			}
			room.Elements[i] = el.Clone()
			return true, nil
		}
		room.Elements = append(room.Elements, el.Clone())
		return true, nil
	})
}

// ReplaceElement swaps the element matching el.ID for el.
func (d *Documents) ReplaceElement(ctx context.Context, roomID string, el domain.Element) (*domain.Room, error) {
	return d.UpdateElement(ctx, roomID, el.ID, func(domain.Element) (domain.Element, error) {
		return el.Clone(), nil
	})
}

// UpdateElement replaces the element with the given id by the result of fn.
// fn receives the freshly read element and runs again on every retry.
func (d *Documents) UpdateElement(ctx context.Context, roomID, elementID string, fn func(current domain.Element) (domain.Element, error)) (*domain.Room, error) {
	return d.mutate(ctx, "update element", roomID, func(room *domain.Room) (bool, error) {
		i := room.IndexOf(elementID)
		if i < 0 {
			return false, &NotFoundError{Resource: "element", ID: elementID}
		}
		next, err := fn(room.Elements[i].Clone())
		if err != nil {
			return false, err
		}
		next.ID = elementID
		room.Elements[i] = next
		return true, nil
	})
}

// RemoveElement deletes the element with the given id. Removing an id that
// is not in the document succeeds without writing.
func (d *Documents) RemoveElement(ctx context.Context, roomID, elementID string) (*domain.Room, error) {
	return d.mutate(ctx, "remove element", roomID, func(room *domain.Room) (bool, error) {
		i := room.IndexOf(elementID)
		if i < 0 {
			return false, nil
		}
		room.Elements = slices.Delete(room.Elements, i, i+1)
		return true, nil
	})
}

// ReplaceAllElements overwrites the whole document.
func (d *Documents) ReplaceAllElements(ctx context.Context, roomID string, elements []domain.Element) (*domain.Room, error) {
	return d.mutate(ctx, "replace elements", roomID, func(room *domain.Room) (bool, error) {
		room.Elements = make([]domain.Element, len(elements))
		for i, el := range elements {
			room.Elements[i] = el.Clone()
		}
		return true, nil
	})
}

// AddParticipantID adds connID to the persisted participant set.
func (d *Documents) AddParticipantID(ctx context.Context, roomID, connID string) (*domain.Room, error) {
	return d.mutate(ctx, "add participant", roomID, func(room *domain.Room) (bool, error) {
		if room.HasParticipant(connID) {
			return false, nil
		}
		room.Participants = append(room.Participants, connID)
		return true, nil
	})
}

// RemoveParticipantID removes connID from the persisted participant set.
func (d *Documents) RemoveParticipantID(ctx context.Context, roomID, connID string) (*domain.Room, error) {
	return d.mutate(ctx, "remove participant", roomID, func(room *domain.Room) (bool, error) {
		i := slices.Index(room.Participants, connID)
		if i < 0 {
			return false, nil
		}
		room.Participants = slices.Delete(room.Participants, i, i+1)
		return true, nil
	})
}

func (d *Documents) mutate(ctx context.Context, op, roomID string, change func(room *domain.Room) (bool, error)) (*domain.Room, error) {
	room, err := Retry(ctx, d.policy, func(ctx context.Context) (*domain.Room, error) {
		room, version, err := d.store.GetRoom(ctx, roomID)
		if err != nil {
			return nil, err
		}
		changed, err := change(room)
		if err != nil || !changed {
			return room, err
		}
		if _, err := d.store.SaveRoom(ctx, room, version); err != nil {
			return nil, err
		}
		return room, nil
	})
	if err != nil {
		return nil, d.classify(op, roomID, err)
	}
	return room, nil
}

func (d *Documents) classify(op, roomID string, err error) error {
	var (
		verr *ValidationError
		nerr *NotFoundError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &nerr):
		return err
	case errors.Is(err, domain.ErrRoomNotFound):
		return &NotFoundError{Resource: "room", ID: roomID}
	default:
		return &PersistenceError{Op: op, Err: err}
	}
}
