package registry

import (
	"sort"
	"sync"
	"time"

	"meetspot/internal/model"
)

// SessionRegistry is the process-wide map from live connection to
// participant identity and room membership. It is the sole owner of the
// session map; coordinators mutate sessions only through it.
type SessionRegistry interface {
	// Create registers a session for a connection. The session is flagged
	// owner iff the room currently has no other session.
	Create(connectionID, userID, name, roomID string) *model.Session
	Get(connectionID string) (*model.Session, bool)
	Remove(connectionID string) (*model.Session, bool)
	// ListByRoom returns the room's sessions ordered by join time
	// ascending, ties broken by creation sequence.
	ListByRoom(roomID string) []*model.Session
	FindByUserInRoom(roomID, userID string) (*model.Session, bool)
	Rename(connectionID, newName string) (*model.Session, bool)
	// TransferOwnership flips the owner flag from one user's session to
	// another's. Both sessions must exist in the room and the source must
	// currently hold ownership.
	TransferOwnership(roomID, fromUserID, toUserID string) bool
	// MakeOwner grants ownership to the given connection's session,
	// clearing any other owner flag in its room.
	MakeOwner(connectionID string) (*model.Session, bool)
	// PromoteEarliest makes the earliest-joined session in the room the
	// owner, clearing any other owner flags. Returns false for an empty
	// room.
	PromoteEarliest(roomID string) (*model.Session, bool)
}

type memoryRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session // connectionID -> session
	seq      uint64
}

// NewMemoryRegistry creates an in-memory session registry.
func NewMemoryRegistry() SessionRegistry {
	return &memoryRegistry{
		sessions: make(map[string]*model.Session),
	}
}

func (r *memoryRegistry) Create(connectionID, userID, name, roomID string) *model.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	hasOther := false
	for _, s := range r.sessions {
		if s.RoomID == roomID {
			hasOther = true
			break
		}
	}

	r.seq++
	sess := &model.Session{
		ConnectionID: connectionID,
		UserID:       userID,
		Name:         name,
		RoomID:       roomID,
		JoinedAt:     time.Now(),
		Seq:          r.seq,
		IsOwner:      !hasOther,
	}
	r.sessions[connectionID] = sess

	return copySession(sess)
}

func (r *memoryRegistry) Get(connectionID string) (*model.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[connectionID]
	if !ok {
		return nil, false
	}
	return copySession(sess), true
}

func (r *memoryRegistry) Remove(connectionID string) (*model.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[connectionID]
	if !ok {
		return nil, false
	}
	delete(r.sessions, connectionID)
	return copySession(sess), true
}

func (r *memoryRegistry) ListByRoom(roomID string) []*model.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.listByRoomLocked(roomID)
}

func (r *memoryRegistry) listByRoomLocked(roomID string) []*model.Session {
	var out []*model.Session
	for _, s := range r.sessions {
		if s.RoomID == roomID {
			out = append(out, copySession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

func (r *memoryRegistry) FindByUserInRoom(roomID, userID string) (*model.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions {
		if s.RoomID == roomID && s.UserID == userID {
			return copySession(s), true
		}
	}
	return nil, false
}

func (r *memoryRegistry) Rename(connectionID, newName string) (*model.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[connectionID]
	if !ok {
		return nil, false
	}
	sess.Name = newName
	return copySession(sess), true
}

func (r *memoryRegistry) TransferOwnership(roomID, fromUserID, toUserID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	var from, to *model.Session
	for _, s := range r.sessions {
		if s.RoomID != roomID {
			continue
		}
		if s.UserID == fromUserID {
			from = s
		}
		if s.UserID == toUserID {
			to = s
		}
	}
	if from == nil || to == nil || !from.IsOwner {
		return false
	}

	from.IsOwner = false
	to.IsOwner = true
	return true
}

func (r *memoryRegistry) MakeOwner(connectionID string) (*model.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.sessions[connectionID]
	if !ok {
		return nil, false
	}
	for _, s := range r.sessions {
		if s.RoomID == target.RoomID {
			s.IsOwner = false
		}
	}
	target.IsOwner = true
	return copySession(target), true
}

func (r *memoryRegistry) PromoteEarliest(roomID string) (*model.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var earliest *model.Session
	for _, s := range r.sessions {
		if s.RoomID != roomID {
			continue
		}
		s.IsOwner = false
		if earliest == nil {
			earliest = s
			continue
		}
		if s.JoinedAt.Before(earliest.JoinedAt) ||
			(s.JoinedAt.Equal(earliest.JoinedAt) && s.Seq < earliest.Seq) {
			earliest = s
		}
	}
	if earliest == nil {
		return nil, false
	}
	earliest.IsOwner = true
	return copySession(earliest), true
}

func copySession(s *model.Session) *model.Session {
	c := *s
	return &c
}
