package service

import (
	"context"
	"log/slog"

	"meetspot/internal/model"
	"meetspot/internal/registry"
	"meetspot/internal/repository"
)

// User is the pre-established identity of a joining participant.
type User struct {
	ID   string
	Name string
}

// VoteDetacher drops a connection's vote-channel membership. Room
// transitions invalidate it, but only once the transition has passed
// validation.
type VoteDetacher interface {
	Disconnect(connectionID string)
}

// RoomService coordinates join/leave/rename/ownership-transfer for room
// presence. All mutating operations on the same room are serialized
// through the shared key lock, and every broadcast for one logical
// operation is emitted in causal order after all validation has passed.
type RoomService struct {
	registry     registry.SessionRegistry
	roomRepo     repository.RoomRepo
	categoryRepo repository.CategoryRepo
	activity     *ActivityService
	locks        *KeyLock
	broadcaster  Broadcaster
	voteDetacher VoteDetacher
}

func NewRoomService(
	reg registry.SessionRegistry,
	roomRepo repository.RoomRepo,
	categoryRepo repository.CategoryRepo,
	activity *ActivityService,
	locks *KeyLock,
) *RoomService {
	return &RoomService{
		registry:     reg,
		roomRepo:     roomRepo,
		categoryRepo: categoryRepo,
		activity:     activity,
		locks:        locks,
	}
}

// SetBroadcaster binds the transport fan-out once it is ready.
func (s *RoomService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// SetVoteDetacher binds the vote coordinator's teardown hook.
func (s *RoomService) SetVoteDetacher(d VoteDetacher) {
	s.voteDetacher = d
}

// Join resolves the room reference and registers the connection. A
// connection already in a room leaves it first; the old room's
// disconnect broadcasts complete before the new room's connect
// broadcast goes out.
func (s *RoomService) Join(ctx context.Context, connID, roomRef string, user User) error {
	room, err := s.roomRepo.Resolve(ctx, roomRef)
	if err != nil {
		slog.Error("room lookup failed", "room_ref", roomRef, "error", err)
		return newError(CodeInternal, "room lookup failed")
	}
	if room == nil {
		return newError(CodeNotFound, "room %q not found", roomRef)
	}

	// The destination room exists; only now does the old membership
	// start coming down, vote channel first.
	if s.voteDetacher != nil {
		s.voteDetacher.Disconnect(connID)
	}
	if prev, ok := s.registry.Get(connID); ok {
		s.locks.Lock(prev.RoomID)
		s.leaveLocked(prev)
		s.locks.Unlock(prev.RoomID)
	}

	s.locks.Lock(room.ID)
	defer s.locks.Unlock(room.ID)

	// Read the category list under the room lock, so a concurrent
	// category mutation cannot slip between this snapshot and the
	// subscription below. Nothing has been broadcast for this room yet,
	// so a lookup failure leaves it untouched.
	categories, err := s.categoryRepo.ListByRoom(ctx, room.ID)
	if err != nil {
		slog.Error("category lookup failed", "room_id", room.ID, "error", err)
		return newError(CodeInternal, "category lookup failed")
	}

	// A user reconnecting into the same room supersedes their stale
	// session. Ownership follows the user, so the stale session comes
	// down without promoting anyone.
	staleWasOwner := false
	if stale, ok := s.registry.FindByUserInRoom(room.ID, user.ID); ok {
		staleWasOwner = stale.IsOwner
		s.dropLocked(stale)
	}

	s.broadcaster.Subscribe(roomChannel(room.ID), connID)
	sess := s.registry.Create(connID, user.ID, user.Name, room.ID)
	if staleWasOwner && !sess.IsOwner {
		if owned, ok := s.registry.MakeOwner(connID); ok {
			sess = owned
		}
	}

	participants := s.registry.ListByRoom(room.ID)
	ownerID := ownerOf(participants)

	s.broadcaster.EmitTo(connID, EventRoomJoined, RoomJoinedPayload{
		RoomID:       room.ID,
		Participants: participants,
		Categories:   categories,
		OwnerID:      ownerID,
	})
	s.broadcaster.EmitExcept(roomChannel(room.ID), EventParticipantConnected, ParticipantConnectedPayload{
		ConnectionID: sess.ConnectionID,
		UserID:       sess.UserID,
		Name:         sess.Name,
	}, connID)

	s.activity.MarkActive(room.ID)
	slog.Info("participant joined", "room_id", room.ID, "user_id", user.ID, "conn_id", connID)
	return nil
}

// Leave removes the connection's session if it has one. No-op otherwise.
func (s *RoomService) Leave(ctx context.Context, connID string) error {
	sess, ok := s.registry.Get(connID)
	if !ok {
		return nil
	}

	if s.voteDetacher != nil {
		s.voteDetacher.Disconnect(connID)
	}

	s.locks.Lock(sess.RoomID)
	defer s.locks.Unlock(sess.RoomID)

	// Re-read under the lock; a concurrent leave may have won.
	sess, ok = s.registry.Get(connID)
	if !ok {
		return nil
	}
	s.leaveLocked(sess)
	s.activity.MarkActive(sess.RoomID)
	return nil
}

// leaveLocked tears one session down: channel unregistration, the
// disconnect broadcast to remaining members, session removal, then
// owner promotion. Callers hold the room lock.
func (s *RoomService) leaveLocked(sess *model.Session) {
	s.dropLocked(sess)

	if sess.IsOwner {
		if promoted, ok := s.registry.PromoteEarliest(sess.RoomID); ok {
			s.broadcaster.Emit(roomChannel(sess.RoomID), EventOwnerTransferred, OwnerTransferredPayload{
				PreviousOwnerID: sess.UserID,
				NewOwnerID:      promoted.UserID,
			})
		}
	}
}

// dropLocked removes one session and tells the room, leaving ownership
// untouched. Callers hold the room lock.
func (s *RoomService) dropLocked(sess *model.Session) {
	channel := roomChannel(sess.RoomID)
	s.broadcaster.Unsubscribe(channel, sess.ConnectionID)
	s.broadcaster.Emit(channel, EventParticipantDisconnected, ParticipantDisconnectedPayload{
		ConnectionID: sess.ConnectionID,
		UserID:       sess.UserID,
	})
	s.registry.Remove(sess.ConnectionID)
	slog.Info("participant left", "room_id", sess.RoomID, "user_id", sess.UserID, "conn_id", sess.ConnectionID)
}

// Rename updates the session display name and notifies the whole room,
// sender included.
func (s *RoomService) Rename(ctx context.Context, connID, newName string) error {
	sess, ok := s.registry.Get(connID)
	if !ok {
		return newError(CodeNotInRoom, "connection has no session")
	}

	s.locks.Lock(sess.RoomID)
	defer s.locks.Unlock(sess.RoomID)

	updated, ok := s.registry.Rename(connID, newName)
	if !ok {
		return newError(CodeNotInRoom, "connection has no session")
	}

	s.broadcaster.Emit(roomChannel(updated.RoomID), EventNameUpdated, NameUpdatedPayload{
		UserID: updated.UserID,
		Name:   updated.Name,
	})
	s.activity.MarkActive(updated.RoomID)
	return nil
}

// TransferOwner hands ownership from the calling session to another
// user's session in the same room.
func (s *RoomService) TransferOwner(ctx context.Context, connID, targetUserID string) error {
	sess, ok := s.registry.Get(connID)
	if !ok {
		return newError(CodeNotInRoom, "connection has no session")
	}

	s.locks.Lock(sess.RoomID)
	defer s.locks.Unlock(sess.RoomID)

	sess, ok = s.registry.Get(connID)
	if !ok {
		return newError(CodeNotInRoom, "connection has no session")
	}
	if !sess.IsOwner {
		return newError(CodeNotOwner, "caller does not own the room")
	}
	if _, ok := s.registry.FindByUserInRoom(sess.RoomID, targetUserID); !ok {
		return newError(CodeTargetNotFound, "user %q has no session in the room", targetUserID)
	}
	if !s.registry.TransferOwnership(sess.RoomID, sess.UserID, targetUserID) {
		slog.Error("ownership swap failed", "room_id", sess.RoomID, "from", sess.UserID, "to", targetUserID)
		return newError(CodeInternal, "ownership transfer failed")
	}

	s.broadcaster.Emit(roomChannel(sess.RoomID), EventOwnerTransferred, OwnerTransferredPayload{
		PreviousOwnerID: sess.UserID,
		NewOwnerID:      targetUserID,
	})
	s.activity.MarkActive(sess.RoomID)
	return nil
}

// ownerOf picks the flagged owner, falling back to the earliest-joined
// session. Sessions arrive already sorted by (joinedAt, seq).
func ownerOf(sessions []*model.Session) string {
	for _, s := range sessions {
		if s.IsOwner {
			return s.UserID
		}
	}
	if len(sessions) > 0 {
		return sessions[0].UserID
	}
	return ""
}
