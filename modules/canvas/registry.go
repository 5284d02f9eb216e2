package canvas

import (
	"sort"
	"sync"

	domain "github.com/TaelanSakay/PlayGround/domain/canvas"
)

// Registry maps live connections to their room presence. It is owned by
// whoever constructs it and lives as long as the process serves
// connections; nothing in it is persisted.
type Registry struct {
	participants map[string]domain.Participant
	mu           sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		participants: make(map[string]domain.Participant),
	}
}

// Put stores p under connID, replacing any previous entry.
func (r *Registry) Put(connID string, p domain.Participant) {
	p.ID = connID
	if p.CursorState == "" {
		p.CursorState = domain.CursorNone
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.participants[connID] = copyParticipant(p)
}

// Get returns the participant for connID.
func (r *Registry) Get(connID string) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[connID]
	return copyParticipant(p), ok
}

// Remove deletes and returns the participant for connID.
func (r *Registry) Remove(connID string) (domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[connID]
	delete(r.participants, connID)
	return p, ok
}

// ListByRoom returns the participants of a room ordered by join time.
func (r *Registry) ListByRoom(roomID string) []domain.Participant {
	r.mu.RLock()
	list := make([]domain.Participant, 0)
	for _, p := range r.participants {
		if p.RoomID == roomID {
			list = append(list, copyParticipant(p))
		}
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].JoinedAt.Equal(list[j].JoinedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].JoinedAt.Before(list[j].JoinedAt)
	})
	return list
}

// MoveCursor records the last known cursor position of connID.
func (r *Registry) MoveCursor(connID string, pos domain.Point) (domain.Participant, bool) {
	return r.update(connID, func(p *domain.Participant) {
		p.Cursor = &pos
		p.CursorState = domain.CursorActive
	})
}

// StopCursor clears the cursor of connID and marks it stopped.
func (r *Registry) StopCursor(connID string) (domain.Participant, bool) {
	return r.update(connID, func(p *domain.Participant) {
		p.Cursor = nil
		p.CursorState = domain.CursorStopped
	})
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

func (r *Registry) update(connID string, fn func(p *domain.Participant)) (domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[connID]
	if !ok {
		return domain.Participant{}, false
	}
	fn(&p)
	r.participants[connID] = p
	return copyParticipant(p), true
}

func copyParticipant(p domain.Participant) domain.Participant {
	if p.Cursor != nil {
		c := *p.Cursor
		p.Cursor = &c
	}
	return p
}
