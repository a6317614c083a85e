package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"meetspot/internal/model"
	"meetspot/internal/registry"
	"meetspot/internal/repository"
)

const (
	maxCategoriesPerRoom = 10
	minCategoriesPerRoom = 1
)

// VoteSessionCloser tears down the vote session for a key, evicting
// its members, when the category behind it is deleted.
type VoteSessionCloser interface {
	CloseKey(key model.VoteKey)
}

// CategoryService enforces the ordered, bounded category list per room.
// Count checks and writes span persistence calls, so each operation
// holds the room's lock end to end.
type CategoryService struct {
	registry     registry.SessionRegistry
	roomRepo     repository.RoomRepo
	categoryRepo repository.CategoryRepo
	votes        VoteSessionCloser
	activity     *ActivityService
	locks        *KeyLock
	broadcaster  Broadcaster
}

func NewCategoryService(
	reg registry.SessionRegistry,
	roomRepo repository.RoomRepo,
	categoryRepo repository.CategoryRepo,
	votes VoteSessionCloser,
	activity *ActivityService,
	locks *KeyLock,
) *CategoryService {
	return &CategoryService{
		registry:     reg,
		roomRepo:     roomRepo,
		categoryRepo: categoryRepo,
		votes:        votes,
		activity:     activity,
		locks:        locks,
	}
}

func (s *CategoryService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Create appends a category to the room. The new orderIndex is the
// running maximum plus one and is never reused.
func (s *CategoryService) Create(ctx context.Context, roomRef, title, callerID string) (*model.Category, error) {
	room, err := s.roomRepo.Resolve(ctx, roomRef)
	if err != nil {
		slog.Error("room lookup failed", "room_ref", roomRef, "error", err)
		return nil, newError(CodeInternal, "room lookup failed")
	}
	if room == nil {
		return nil, newError(CodeNotFound, "room %q not found", roomRef)
	}

	s.locks.Lock(room.ID)
	defer s.locks.Unlock(room.ID)

	if _, ok := s.registry.FindByUserInRoom(room.ID, callerID); !ok {
		return nil, newError(CodeForbidden, "caller has no active session in the room")
	}

	categories, err := s.categoryRepo.ListByRoom(ctx, room.ID)
	if err != nil {
		slog.Error("category lookup failed", "room_id", room.ID, "error", err)
		return nil, newError(CodeInternal, "category lookup failed")
	}
	if len(categories) >= maxCategoriesPerRoom {
		return nil, newError(CodeCategoryLimit, "room already has %d categories", maxCategoriesPerRoom)
	}

	orderIndex := 0
	for _, c := range categories {
		if c.OrderIndex >= orderIndex {
			orderIndex = c.OrderIndex + 1
		}
	}

	category := &model.Category{
		ID:         uuid.NewString(),
		RoomID:     room.ID,
		Title:      title,
		OrderIndex: orderIndex,
		CreatedAt:  time.Now(),
	}
	if err := s.categoryRepo.Insert(ctx, category); err != nil {
		slog.Error("category insert failed", "room_id", room.ID, "error", err)
		return nil, newError(CodeInternal, "failed to create category")
	}

	s.broadcaster.Emit(roomChannel(room.ID), EventCategoryCreated, CategoryCreatedPayload{
		CategoryID: category.ID,
		Name:       category.Title,
		OrderIndex: category.OrderIndex,
	})
	s.activity.MarkActive(room.ID)
	slog.Info("category created", "room_id", room.ID, "category_id", category.ID, "order_index", orderIndex)
	return category, nil
}

// Delete removes a category, refusing to drop the room's last one. Any
// vote session keyed to the category is torn down with it.
func (s *CategoryService) Delete(ctx context.Context, categoryID, roomRef, callerID string) error {
	room, err := s.roomRepo.Resolve(ctx, roomRef)
	if err != nil {
		slog.Error("room lookup failed", "room_ref", roomRef, "error", err)
		return newError(CodeInternal, "room lookup failed")
	}
	if room == nil {
		return newError(CodeNotFound, "room %q not found", roomRef)
	}

	s.locks.Lock(room.ID)
	defer s.locks.Unlock(room.ID)

	if _, ok := s.registry.FindByUserInRoom(room.ID, callerID); !ok {
		return newError(CodeForbidden, "caller has no active session in the room")
	}

	categories, err := s.categoryRepo.ListByRoom(ctx, room.ID)
	if err != nil {
		slog.Error("category lookup failed", "room_id", room.ID, "error", err)
		return newError(CodeInternal, "category lookup failed")
	}
	if len(categories) <= minCategoriesPerRoom {
		return newError(CodeCategoryMin, "room must keep at least %d category", minCategoriesPerRoom)
	}

	found := false
	for _, c := range categories {
		if c.ID == categoryID {
			found = true
			break
		}
	}
	if !found {
		return newError(CodeNotFound, "category %q not found", categoryID)
	}

	deleted, err := s.categoryRepo.Delete(ctx, categoryID)
	if err != nil {
		slog.Error("category delete failed", "category_id", categoryID, "error", err)
		return newError(CodeInternal, "failed to delete category")
	}
	if !deleted {
		return newError(CodeNotFound, "category %q not found", categoryID)
	}

	s.votes.CloseKey(model.VoteKey{RoomID: room.ID, CategoryID: categoryID})

	s.broadcaster.Emit(roomChannel(room.ID), EventCategoryDeleted, CategoryDeletedPayload{
		CategoryID: categoryID,
	})
	s.activity.MarkActive(room.ID)
	slog.Info("category deleted", "room_id", room.ID, "category_id", categoryID)
	return nil
}
