package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"meetspot/internal/model"
	"meetspot/internal/registry"
	"meetspot/internal/store"
)

// VoteService orchestrates candidate registration, voting-phase
// transitions and vote casting for one (room, category) pairing at a
// time per connection. Mutations on the same vote key are serialized
// through the key lock; the backing vote session is torn down when the
// last subscribed connection departs.
type VoteService struct {
	votes    store.VoteStore
	registry registry.SessionRegistry
	activity *ActivityService
	locks    *KeyLock

	mu      sync.Mutex
	members map[model.VoteKey]map[string]struct{} // key -> connection ids
	byConn  map[string]model.VoteKey

	broadcaster Broadcaster
}

func NewVoteService(
	votes store.VoteStore,
	reg registry.SessionRegistry,
	activity *ActivityService,
	locks *KeyLock,
) *VoteService {
	return &VoteService{
		votes:    votes,
		registry: reg,
		activity: activity,
		locks:    locks,
		members:  make(map[model.VoteKey]map[string]struct{}),
		byConn:   make(map[string]model.VoteKey),
	}
}

func (s *VoteService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Join subscribes the connection to a vote session and replies with its
// full current state. A connection follows one vote session at a time;
// joining another one leaves the previous first.
func (s *VoteService) Join(ctx context.Context, connID, roomID, categoryID string) error {
	sess, ok := s.registry.Get(connID)
	if !ok {
		return newError(CodeNotInRoom, "connection has no session")
	}
	if sess.RoomID != roomID {
		return newError(CodeForbidden, "connection is not in room %q", roomID)
	}

	key := model.VoteKey{RoomID: roomID, CategoryID: categoryID}

	if prev, ok := s.currentKey(connID); ok && prev != key {
		s.leaveKey(connID, prev)
	}

	s.locks.Lock(key.String())
	defer s.locks.Unlock(key.String())

	s.mu.Lock()
	if s.members[key] == nil {
		s.members[key] = make(map[string]struct{})
	}
	s.members[key][connID] = struct{}{}
	s.byConn[connID] = key
	s.mu.Unlock()

	s.broadcaster.Subscribe(voteChannel(key), connID)
	s.broadcaster.EmitTo(connID, EventVoteState, s.votes.State(key, sess.UserID))
	s.activity.MarkActive(roomID)
	return nil
}

// Leave drops the connection from its current vote session. No-op when
// it follows none.
func (s *VoteService) Leave(ctx context.Context, connID string) error {
	if key, ok := s.currentKey(connID); ok {
		s.leaveKey(connID, key)
		s.activity.MarkActive(key.RoomID)
	}
	return nil
}

// Disconnect runs the same teardown as Leave when a connection drops.
func (s *VoteService) Disconnect(connID string) {
	if key, ok := s.currentKey(connID); ok {
		s.leaveKey(connID, key)
	}
}

func (s *VoteService) currentKey(connID string) (model.VoteKey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.byConn[connID]
	return key, ok
}

func (s *VoteService) leaveKey(connID string, key model.VoteKey) {
	s.locks.Lock(key.String())
	defer s.locks.Unlock(key.String())

	s.broadcaster.Unsubscribe(voteChannel(key), connID)

	s.mu.Lock()
	delete(s.byConn, connID)
	last := false
	if conns, ok := s.members[key]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(s.members, key)
			last = true
		}
	}
	s.mu.Unlock()

	if last {
		s.votes.Delete(key)
		slog.Info("vote session deleted", "room_id", key.RoomID, "category_id", key.CategoryID)
	}
}

// CloseKey tears the key's vote session down and evicts every
// subscribed connection, for when the category itself goes away.
func (s *VoteService) CloseKey(key model.VoteKey) {
	s.locks.Lock(key.String())
	defer s.locks.Unlock(key.String())

	s.mu.Lock()
	conns := s.members[key]
	delete(s.members, key)
	for connID := range conns {
		delete(s.byConn, connID)
	}
	s.mu.Unlock()

	for connID := range conns {
		s.broadcaster.Unsubscribe(voteChannel(key), connID)
	}
	s.votes.Delete(key)
	slog.Info("vote session closed", "room_id", key.RoomID, "category_id", key.CategoryID, "evicted", len(conns))
}

// AddCandidate registers a candidate place while the session is waiting.
func (s *VoteService) AddCandidate(ctx context.Context, connID string, candidate model.Candidate) error {
	sess, key, derr := s.resolve(connID)
	if derr != nil {
		return derr
	}
	if candidate.PlaceID == "" {
		return newError(CodeBadRequest, "candidate placeId is required")
	}

	s.locks.Lock(key.String())
	defer s.locks.Unlock(key.String())

	added, err := s.votes.AddCandidate(key, sess.UserID, candidate)
	if err != nil {
		return mapStoreError(err)
	}

	s.broadcaster.Emit(voteChannel(key), EventCandidateUpdated, CandidateUpdatedPayload{
		Action:    CandidateAdded,
		Candidate: added,
	})
	s.activity.MarkActive(key.RoomID)
	return nil
}

// RemoveCandidate drops a waiting-phase candidate and purges any votes
// referencing it.
func (s *VoteService) RemoveCandidate(ctx context.Context, connID, candidateID string) error {
	_, key, derr := s.resolve(connID)
	if derr != nil {
		return derr
	}

	s.locks.Lock(key.String())
	defer s.locks.Unlock(key.String())

	if err := s.votes.RemoveCandidate(key, candidateID); err != nil {
		return mapStoreError(err)
	}

	s.broadcaster.Emit(voteChannel(key), EventCandidateUpdated, CandidateUpdatedPayload{
		Action:      CandidateRemoved,
		CandidateID: candidateID,
	})
	s.activity.MarkActive(key.RoomID)
	return nil
}

// Start moves the session from waiting to in-progress.
func (s *VoteService) Start(ctx context.Context, connID string) error {
	_, key, derr := s.resolve(connID)
	if derr != nil {
		return derr
	}

	s.locks.Lock(key.String())
	defer s.locks.Unlock(key.String())

	if err := s.votes.Start(key); err != nil {
		return mapStoreError(err)
	}

	s.broadcaster.Emit(voteChannel(key), EventVoteStarted, VoteStartedPayload{
		Status: model.VoteInProgress,
	})
	s.activity.MarkActive(key.RoomID)
	return nil
}

// End completes the session and broadcasts final counts and winners.
func (s *VoteService) End(ctx context.Context, connID string) error {
	_, key, derr := s.resolve(connID)
	if derr != nil {
		return derr
	}

	s.locks.Lock(key.String())
	defer s.locks.Unlock(key.String())

	if err := s.votes.End(key); err != nil {
		return mapStoreError(err)
	}

	winners, err := s.votes.Winners(key)
	if err != nil {
		slog.Error("winner computation failed", "key", key.String(), "error", err)
		return newError(CodeInternal, "failed to compute winners")
	}
	state := s.votes.State(key, "")

	s.broadcaster.Emit(voteChannel(key), EventVoteEnded, VoteEndedPayload{
		Status:  model.VoteCompleted,
		Counts:  state.Counts,
		Winners: winners,
	})
	s.activity.MarkActive(key.RoomID)
	return nil
}

// Reset returns the session to waiting, keeping candidates and clearing
// all votes.
func (s *VoteService) Reset(ctx context.Context, connID string) error {
	_, key, derr := s.resolve(connID)
	if derr != nil {
		return derr
	}

	s.locks.Lock(key.String())
	defer s.locks.Unlock(key.String())

	s.votes.Reset(key)
	state := s.votes.State(key, "")

	s.broadcaster.Emit(voteChannel(key), EventVoteResetted, VoteResettedPayload{
		Status:     model.VoteWaiting,
		Candidates: state.Candidates,
		Counts:     state.Counts,
	})
	s.activity.MarkActive(key.RoomID)
	return nil
}

// Cast records the caller's vote for a candidate. Idempotent: a repeat
// cast changes nothing and broadcasts nothing.
func (s *VoteService) Cast(ctx context.Context, connID, candidateID string) error {
	sess, key, derr := s.resolve(connID)
	if derr != nil {
		return derr
	}

	s.locks.Lock(key.String())
	defer s.locks.Unlock(key.String())

	res, err := s.votes.Cast(key, sess.UserID, candidateID)
	if err != nil {
		return mapStoreError(err)
	}
	if res.Changed {
		s.emitCounts(key, candidateID, sess.UserID, res)
	}
	s.activity.MarkActive(key.RoomID)
	return nil
}

// Revoke withdraws the caller's vote. Idempotent like Cast.
func (s *VoteService) Revoke(ctx context.Context, connID, candidateID string) error {
	sess, key, derr := s.resolve(connID)
	if derr != nil {
		return derr
	}

	s.locks.Lock(key.String())
	defer s.locks.Unlock(key.String())

	res, err := s.votes.Revoke(key, sess.UserID, candidateID)
	if err != nil {
		return mapStoreError(err)
	}
	if res.Changed {
		s.emitCounts(key, candidateID, sess.UserID, res)
	}
	s.activity.MarkActive(key.RoomID)
	return nil
}

func (s *VoteService) emitCounts(key model.VoteKey, candidateID, userID string, res *store.CastResult) {
	s.broadcaster.Emit(voteChannel(key), EventVoteCounts, VoteCountsPayload{
		CandidateID: candidateID,
		Count:       res.Count,
		UserID:      userID,
		Voters:      res.Voters,
	})
}

// resolve maps a connection to its session identity and the vote key it
// currently follows.
func (s *VoteService) resolve(connID string) (*model.Session, model.VoteKey, *Error) {
	sess, ok := s.registry.Get(connID)
	if !ok {
		return nil, model.VoteKey{}, newError(CodeNotInRoom, "connection has no session")
	}
	key, ok := s.currentKey(connID)
	if !ok {
		return nil, model.VoteKey{}, newError(CodeBadRequest, "connection has not joined a vote session")
	}
	return sess, key, nil
}

func mapStoreError(err error) *Error {
	switch {
	case errors.Is(err, store.ErrDuplicated):
		return newError(CodeDuplicatedCandidate, "candidate already registered")
	case errors.Is(err, store.ErrNotFound):
		return newError(CodeNotFound, "candidate not found")
	case errors.Is(err, store.ErrNoCandidates):
		return newError(CodeNoCandidates, "vote session has no candidates")
	case errors.Is(err, store.ErrBadState):
		return newError(CodeBadRequest, "operation not allowed in current vote status")
	default:
		return newError(CodeInternal, "vote operation failed")
	}
}
