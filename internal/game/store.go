package game

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Claim reserves an idempotency key for a user inside a room update.
type Claim struct {
	UserID string
	Key    string
	Action string
}

// Store persists rooms. UpdateRoom is the single writer for a room: fn sees
// the latest committed room and its changes are saved only if it returns nil.
type Store interface {
	CreateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, code string) (Room, error)
	UpdateRoom(ctx context.Context, code string, claim *Claim, fn func(*Room) error) (Room, error)
	ListRooms(ctx context.Context, status RoomStatus, idleBefore time.Time) ([]Room, error)
}

type MemoryStore struct {
	mu     sync.Mutex
	rooms  map[string]*memoryRoom
	claims map[[2]string]string
}

type memoryRoom struct {
	mu   sync.Mutex
	room Room
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:  make(map[string]*memoryRoom),
		claims: make(map[[2]string]string),
	}
}

func (m *MemoryStore) CreateRoom(_ context.Context, room Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.Code]; ok {
		return ErrDuplicateRoomCode
	}
	m.rooms[room.Code] = &memoryRoom{room: cloneRoom(room)}
	return nil
}

func (m *MemoryStore) GetRoom(_ context.Context, code string) (Room, error) {
	entry, err := m.entry(code)
	if err != nil {
		return Room{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return cloneRoom(entry.room), nil
}

func (m *MemoryStore) UpdateRoom(ctx context.Context, code string, claim *Claim, fn func(*Room) error) (Room, error) {
	entry, err := m.entry(code)
	if err != nil {
		return Room{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return Room{}, err
	}

	if claim != nil && m.claimed(*claim) {
		return Room{}, ErrDuplicateIdempotency
	}
	next := cloneRoom(entry.room)
	if err := fn(&next); err != nil {
		return Room{}, err
	}
	if claim != nil && !m.claim(*claim) {
		return Room{}, ErrDuplicateIdempotency
	}
	next.Version = entry.room.Version + 1
	entry.room = next
	return cloneRoom(next), nil
}

func (m *MemoryStore) ListRooms(_ context.Context, status RoomStatus, idleBefore time.Time) ([]Room, error) {
	m.mu.Lock()
	entries := make([]*memoryRoom, 0, len(m.rooms))
	for _, e := range m.rooms {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	var out []Room
	for _, e := range entries {
		e.mu.Lock()
		if e.room.Status == status && e.room.LastActionAt.Before(idleBefore) {
			out = append(out, cloneRoom(e.room))
		}
		e.mu.Unlock()
	}
	slices.SortFunc(out, func(a, b Room) int { return a.LastActionAt.Compare(b.LastActionAt) })
	return out, nil
}

func (m *MemoryStore) entry(code string) (*memoryRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return entry, nil
}

func (m *MemoryStore) claimed(c Claim) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.claims[[2]string{c.UserID, c.Key}]
	return ok
}

func (m *MemoryStore) claim(c Claim) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [2]string{c.UserID, c.Key}
	if _, ok := m.claims[k]; ok {
		return false
	}
	m.claims[k] = c.Action
	return true
}

func cloneRoom(r Room) Room {
	out := r
	out.Seats = slices.Clone(r.Seats)
	if r.RemindedAt != nil {
		t := *r.RemindedAt
		out.RemindedAt = &t
	}
	return out
}
