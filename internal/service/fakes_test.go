package service

import (
	"context"
	"sync"
	"time"

	"meetspot/internal/model"
)

// fakeRoomRepo resolves rooms from a static map by id or slug.
type fakeRoomRepo struct {
	mu    sync.Mutex
	rooms map[string]*model.Room // by id
}

func newFakeRoomRepo(rooms ...*model.Room) *fakeRoomRepo {
	r := &fakeRoomRepo{rooms: make(map[string]*model.Room)}
	for _, room := range rooms {
		r.rooms[room.ID] = room
	}
	return r
}

func (r *fakeRoomRepo) Create(ctx context.Context, room *model.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[room.ID] = room
	return nil
}

func (r *fakeRoomRepo) Resolve(ctx context.Context, ref string) (*model.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[ref]; ok {
		return room, nil
	}
	for _, room := range r.rooms {
		if room.Slug == ref {
			return room, nil
		}
	}
	return nil, nil
}

func (r *fakeRoomRepo) Delete(ctx context.Context, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, roomID)
	return nil
}

// fakeCategoryRepo keeps per-room category slices in memory. onList,
// when set, runs after a list snapshot is taken and before it is
// returned, so tests can interleave a concurrent writer at that point.
type fakeCategoryRepo struct {
	mu     sync.Mutex
	byRoom map[string][]model.Category
	onList func()
}

func newFakeCategoryRepo() *fakeCategoryRepo {
	return &fakeCategoryRepo{byRoom: make(map[string][]model.Category)}
}

func (r *fakeCategoryRepo) ListByRoom(ctx context.Context, roomID string) ([]model.Category, error) {
	r.mu.Lock()
	out := make([]model.Category, len(r.byRoom[roomID]))
	copy(out, r.byRoom[roomID])
	r.mu.Unlock()
	if r.onList != nil {
		r.onList()
	}
	return out, nil
}

func (r *fakeCategoryRepo) Insert(ctx context.Context, category *model.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byRoom[category.RoomID] = append(r.byRoom[category.RoomID], *category)
	return nil
}

func (r *fakeCategoryRepo) Delete(ctx context.Context, categoryID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for roomID, categories := range r.byRoom {
		for i, c := range categories {
			if c.ID == categoryID {
				r.byRoom[roomID] = append(categories[:i], categories[i+1:]...)
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *fakeCategoryRepo) DeleteByRoom(ctx context.Context, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byRoom, roomID)
	return nil
}

// emitted records one fan-out call in emission order.
type emitted struct {
	Channel string // empty for direct sends
	Event   string
	Payload interface{}
	Except  string
	To      string
}

// recordBroadcaster captures subscriptions and every emit in order.
type recordBroadcaster struct {
	mu     sync.Mutex
	events []emitted
	subs   map[string]map[string]bool // channel -> connID
}

func newRecordBroadcaster() *recordBroadcaster {
	return &recordBroadcaster{subs: make(map[string]map[string]bool)}
}

func (b *recordBroadcaster) Subscribe(channel, connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[string]bool)
	}
	b.subs[channel][connID] = true
}

func (b *recordBroadcaster) Unsubscribe(channel, connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[channel], connID)
}

func (b *recordBroadcaster) Emit(channel, event string, payload interface{}) {
	b.record(emitted{Channel: channel, Event: event, Payload: payload})
}

func (b *recordBroadcaster) EmitExcept(channel, event string, payload interface{}, exceptConnID string) {
	b.record(emitted{Channel: channel, Event: event, Payload: payload, Except: exceptConnID})
}

func (b *recordBroadcaster) EmitTo(connID, event string, payload interface{}) {
	b.record(emitted{Event: event, Payload: payload, To: connID})
}

func (b *recordBroadcaster) record(e emitted) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordBroadcaster) subscribed(channel, connID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subs[channel][connID]
}

func (b *recordBroadcaster) eventNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, len(b.events))
	for i, e := range b.events {
		names[i] = e.Event
	}
	return names
}

func (b *recordBroadcaster) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

// fakeActivityCache records flushes and serves a canned stale list.
type fakeActivityCache struct {
	mu      sync.Mutex
	flushed []map[string]time.Time
	stale   []string
	removed []string
	failAll bool
}

func (c *fakeActivityCache) Flush(ctx context.Context, marks map[string]time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll {
		return context.DeadlineExceeded
	}
	c.flushed = append(c.flushed, marks)
	return nil
}

func (c *fakeActivityCache) StaleRooms(ctx context.Context, cutoff time.Time) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stale, nil
}

func (c *fakeActivityCache) Remove(ctx context.Context, roomIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removed = append(c.removed, roomIDs...)
	return nil
}

func newTestActivity(roomRepo *fakeRoomRepo, categoryRepo *fakeCategoryRepo) *ActivityService {
	return NewActivityService(&fakeActivityCache{}, roomRepo, categoryRepo, time.Hour)
}
