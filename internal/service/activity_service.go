package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"meetspot/internal/cache"
	"meetspot/internal/repository"
)

// ActivityService batches MarkActive calls in memory, flushes them to
// the activity cache on a fixed interval, and reaps rooms inactive
// beyond the configured TTL.
type ActivityService struct {
	activity     cache.ActivityCache
	roomRepo     repository.RoomRepo
	categoryRepo repository.CategoryRepo
	ttl          time.Duration

	mu      sync.Mutex
	pending map[string]time.Time
}

func NewActivityService(
	activity cache.ActivityCache,
	roomRepo repository.RoomRepo,
	categoryRepo repository.CategoryRepo,
	ttl time.Duration,
) *ActivityService {
	return &ActivityService{
		activity:     activity,
		roomRepo:     roomRepo,
		categoryRepo: categoryRepo,
		ttl:          ttl,
		pending:      make(map[string]time.Time),
	}
}

// MarkActive records activity for a room. Cheap and non-blocking; the
// timestamp reaches the cache on the next flush.
func (s *ActivityService) MarkActive(roomID string) {
	s.mu.Lock()
	s.pending[roomID] = time.Now()
	s.mu.Unlock()
}

// Flush writes buffered timestamps to the cache. Marks are re-queued on
// failure so a transient cache outage loses nothing.
func (s *ActivityService) Flush(ctx context.Context) error {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := s.pending
	s.pending = make(map[string]time.Time)
	s.mu.Unlock()

	if err := s.activity.Flush(ctx, batch); err != nil {
		s.mu.Lock()
		for roomID, at := range batch {
			if _, ok := s.pending[roomID]; !ok {
				s.pending[roomID] = at
			}
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// ReapInactive deletes every room whose last activity is older than the
// TTL, along with its categories and activity record. Returns how many
// rooms were removed.
func (s *ActivityService) ReapInactive(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.ttl)
	stale, err := s.activity.StaleRooms(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, roomID := range stale {
		if err := s.categoryRepo.DeleteByRoom(ctx, roomID); err != nil {
			slog.Error("failed to delete categories of stale room", "room_id", roomID, "error", err)
			continue
		}
		if err := s.roomRepo.Delete(ctx, roomID); err != nil {
			slog.Error("failed to delete stale room", "room_id", roomID, "error", err)
			continue
		}
		if err := s.activity.Remove(ctx, roomID); err != nil {
			slog.Error("failed to drop activity record", "room_id", roomID, "error", err)
		}
		reaped++
	}
	return reaped, nil
}

// Run drives the flush and reap tickers until the context is canceled.
func (s *ActivityService) Run(ctx context.Context, flushEvery, reapEvery time.Duration) {
	flush := time.NewTicker(flushEvery)
	reap := time.NewTicker(reapEvery)
	defer flush.Stop()
	defer reap.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final flush so shutdown does not drop buffered marks.
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.Flush(flushCtx); err != nil {
				slog.Error("final activity flush failed", "error", err)
			}
			cancel()
			return
		case <-flush.C:
			if err := s.Flush(ctx); err != nil {
				slog.Error("activity flush failed", "error", err)
			}
		case <-reap.C:
			n, err := s.ReapInactive(ctx)
			if err != nil {
				slog.Error("stale room reap failed", "error", err)
			} else if n > 0 {
				slog.Info("reaped inactive rooms", "count", n)
			}
		}
	}
}
