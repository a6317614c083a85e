package service

import (
	"context"
	"fmt"
	"testing"

	"meetspot/internal/model"
	"meetspot/internal/registry"
	"meetspot/internal/store"
)

func newTestCategoryService(rooms ...*model.Room) (*CategoryService, *fakeCategoryRepo, registry.SessionRegistry, *recordBroadcaster) {
	roomRepo := newFakeRoomRepo(rooms...)
	categoryRepo := newFakeCategoryRepo()
	reg := registry.NewMemoryRegistry()
	b := newRecordBroadcaster()
	activity := newTestActivity(roomRepo, categoryRepo)
	voteSvc := NewVoteService(store.NewMemoryVoteStore(), reg, activity, NewKeyLock())
	voteSvc.SetBroadcaster(b)
	svc := NewCategoryService(reg, roomRepo, categoryRepo, voteSvc, activity, NewKeyLock())
	svc.SetBroadcaster(b)
	return svc, categoryRepo, reg, b
}

func TestCategoryCreateRequiresSession(t *testing.T) {
	svc, _, _, _ := newTestCategoryService(testRoom("r1", ""))

	_, err := svc.Create(context.Background(), "r1", "Food", "u1")
	if derr, ok := AsError(err); !ok || derr.Code != CodeForbidden {
		t.Fatalf("create without session: err = %v, want FORBIDDEN", err)
	}

	_, err = svc.Create(context.Background(), "nope", "Food", "u1")
	if derr, ok := AsError(err); !ok || derr.Code != CodeNotFound {
		t.Fatalf("create in unknown room: err = %v, want NOT_FOUND", err)
	}
}

func TestCategoryOrderIndexNeverReused(t *testing.T) {
	svc, _, reg, _ := newTestCategoryService(testRoom("r1", ""))
	reg.Create("c1", "u1", "Alice", "r1")
	ctx := context.Background()

	// Scenario: empty room, create Food (0), Cafe (1), delete Food,
	// next create resumes past the high-water mark.
	food, err := svc.Create(ctx, "r1", "Food", "u1")
	if err != nil {
		t.Fatalf("create Food: %v", err)
	}
	if food.OrderIndex != 0 {
		t.Errorf("Food orderIndex = %d, want 0", food.OrderIndex)
	}

	cafe, err := svc.Create(ctx, "r1", "Cafe", "u1")
	if err != nil {
		t.Fatalf("create Cafe: %v", err)
	}
	if cafe.OrderIndex != 1 {
		t.Errorf("Cafe orderIndex = %d, want 1", cafe.OrderIndex)
	}

	if err := svc.Delete(ctx, food.ID, "r1", "u1"); err != nil {
		t.Fatalf("delete Food: %v", err)
	}

	// Only Cafe remains; deleting it is blocked.
	err = svc.Delete(ctx, cafe.ID, "r1", "u1")
	if derr, ok := AsError(err); !ok || derr.Code != CodeCategoryMin {
		t.Fatalf("delete sole category: err = %v, want CATEGORY_MIN", err)
	}

	bar, err := svc.Create(ctx, "r1", "Bar", "u1")
	if err != nil {
		t.Fatalf("create Bar: %v", err)
	}
	if bar.OrderIndex != 2 {
		t.Errorf("Bar orderIndex = %d, want 2 (max existing + 1)", bar.OrderIndex)
	}
}

func TestCategoryCapacityBoundaries(t *testing.T) {
	svc, repo, reg, _ := newTestCategoryService(testRoom("r1", ""))
	reg.Create("c1", "u1", "Alice", "r1")
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := svc.Create(ctx, "r1", fmt.Sprintf("Cat %d", i), "u1"); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	// The eleventh creation fails and the count stays at ten.
	_, err := svc.Create(ctx, "r1", "Overflow", "u1")
	if derr, ok := AsError(err); !ok || derr.Code != CodeCategoryLimit {
		t.Fatalf("11th create: err = %v, want CATEGORY_LIMIT", err)
	}
	categories, _ := repo.ListByRoom(ctx, "r1")
	if len(categories) != 10 {
		t.Errorf("count after rejected create = %d, want 10", len(categories))
	}

	// Drain to one, then the last delete is blocked.
	for len(categories) > 1 {
		if err := svc.Delete(ctx, categories[0].ID, "r1", "u1"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		categories, _ = repo.ListByRoom(ctx, "r1")
	}

	err = svc.Delete(ctx, categories[0].ID, "r1", "u1")
	if derr, ok := AsError(err); !ok || derr.Code != CodeCategoryMin {
		t.Fatalf("delete last category: err = %v, want CATEGORY_MIN", err)
	}
	categories, _ = repo.ListByRoom(ctx, "r1")
	if len(categories) != 1 {
		t.Errorf("count after rejected delete = %d, want 1", len(categories))
	}
}

func TestCategoryDeleteUnknownID(t *testing.T) {
	svc, _, reg, _ := newTestCategoryService(testRoom("r1", ""))
	reg.Create("c1", "u1", "Alice", "r1")
	ctx := context.Background()

	svc.Create(ctx, "r1", "Food", "u1")
	svc.Create(ctx, "r1", "Cafe", "u1")

	err := svc.Delete(ctx, "ghost", "r1", "u1")
	if derr, ok := AsError(err); !ok || derr.Code != CodeNotFound {
		t.Fatalf("delete unknown category: err = %v, want NOT_FOUND", err)
	}
}

func TestCategoryDeleteEvictsVoteMembers(t *testing.T) {
	roomRepo := newFakeRoomRepo(testRoom("r1", ""))
	categoryRepo := newFakeCategoryRepo()
	reg := registry.NewMemoryRegistry()
	b := newRecordBroadcaster()
	activity := newTestActivity(roomRepo, categoryRepo)
	votes := store.NewMemoryVoteStore()
	voteSvc := NewVoteService(votes, reg, activity, NewKeyLock())
	voteSvc.SetBroadcaster(b)
	svc := NewCategoryService(reg, roomRepo, categoryRepo, voteSvc, activity, NewKeyLock())
	svc.SetBroadcaster(b)

	ctx := context.Background()
	reg.Create("c1", "u1", "Alice", "r1")
	if _, err := svc.Create(ctx, "r1", "Food", "u1"); err != nil {
		t.Fatalf("create Food: %v", err)
	}
	doomed, err := svc.Create(ctx, "r1", "Cafe", "u1")
	if err != nil {
		t.Fatalf("create Cafe: %v", err)
	}

	if err := voteSvc.Join(ctx, "c1", "r1", doomed.ID); err != nil {
		t.Fatalf("vote join: %v", err)
	}
	voteSvc.AddCandidate(ctx, "c1", place("p1"))

	if err := svc.Delete(ctx, doomed.ID, "r1", "u1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	key := model.VoteKey{RoomID: "r1", CategoryID: doomed.ID}
	if state := votes.State(key, "u1"); len(state.Candidates) != 0 {
		t.Error("vote session survived its category")
	}
	if b.subscribed("vote:r1:"+doomed.ID, "c1") {
		t.Error("connection still subscribed to the dead vote channel")
	}

	// A follow-up vote op must not revive the session for the dead key.
	err = voteSvc.AddCandidate(ctx, "c1", place("p2"))
	if derr, ok := AsError(err); !ok || derr.Code != CodeBadRequest {
		t.Fatalf("op on deleted category: err = %v, want BAD_REQUEST", err)
	}
	if state := votes.State(key, "u1"); len(state.Candidates) != 0 {
		t.Error("deleted vote session was recreated")
	}
}

func TestCategoryEventsBroadcast(t *testing.T) {
	svc, _, reg, b := newTestCategoryService(testRoom("r1", ""))
	reg.Create("c1", "u1", "Alice", "r1")
	ctx := context.Background()

	created, err := svc.Create(ctx, "r1", "Food", "u1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(b.events) != 1 || b.events[0].Event != EventCategoryCreated {
		t.Fatalf("events = %v, want category.created", b.eventNames())
	}
	if p := b.events[0].Payload.(CategoryCreatedPayload); p.CategoryID != created.ID || p.Name != "Food" {
		t.Errorf("payload = %+v", p)
	}

	svc.Create(ctx, "r1", "Cafe", "u1")
	b.clear()
	if err := svc.Delete(ctx, created.ID, "r1", "u1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(b.events) != 1 || b.events[0].Event != EventCategoryDeleted {
		t.Fatalf("events = %v, want category.deleted", b.eventNames())
	}
}
