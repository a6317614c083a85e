package store

import (
	"errors"
	"testing"

	"meetspot/internal/model"
)

var key = model.VoteKey{RoomID: "r1", CategoryID: "cat1"}

func candidate(placeID string) model.Candidate {
	return model.Candidate{PlaceID: placeID, Name: "Place " + placeID, Address: "somewhere"}
}

// assertCountsConsistent verifies totalCounts[c] == |{u : c ∈ votes(u)}|
// for every candidate, via the public state snapshot.
func assertCountsConsistent(t *testing.T, s VoteStore, k model.VoteKey) {
	t.Helper()

	state := s.State(k, "")
	for placeID, count := range state.Counts {
		if voters := len(state.Voters[placeID]); voters != count {
			t.Fatalf("count for %s = %d but %d voters recorded", placeID, count, voters)
		}
	}
}

func TestVoteLifecycle(t *testing.T) {
	s := NewMemoryVoteStore()

	if _, err := s.AddCandidate(key, "u1", candidate("p1")); err != nil {
		t.Fatalf("AddCandidate: %v", err)
	}
	state := s.State(key, "u1")
	if state.Status != model.VoteWaiting {
		t.Errorf("status = %s, want waiting", state.Status)
	}
	if len(state.Candidates) != 1 || state.Candidates[0].PlaceID != "p1" {
		t.Fatalf("candidates = %v, want [p1]", state.Candidates)
	}

	if err := s.Start(key); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := s.State(key, "u1").Status; got != model.VoteInProgress {
		t.Errorf("status = %s, want in_progress", got)
	}

	res, err := s.Cast(key, "u1", "p1")
	if err != nil || res.Count != 1 || !res.Changed {
		t.Fatalf("cast u1: res=%+v err=%v", res, err)
	}
	res, err = s.Cast(key, "u2", "p1")
	if err != nil || res.Count != 2 {
		t.Fatalf("cast u2: res=%+v err=%v", res, err)
	}
	assertCountsConsistent(t, s, key)

	res, err = s.Revoke(key, "u1", "p1")
	if err != nil || res.Count != 1 || !res.Changed {
		t.Fatalf("revoke u1: res=%+v err=%v", res, err)
	}
	assertCountsConsistent(t, s, key)

	if err := s.End(key); err != nil {
		t.Fatalf("End: %v", err)
	}
	winners, err := s.Winners(key)
	if err != nil {
		t.Fatalf("Winners: %v", err)
	}
	if len(winners) != 1 || winners[0].PlaceID != "p1" {
		t.Errorf("winners = %v, want [p1]", winners)
	}
}

func TestCastIsIdempotent(t *testing.T) {
	s := NewMemoryVoteStore()
	s.AddCandidate(key, "u1", candidate("p1"))
	s.Start(key)

	first, _ := s.Cast(key, "u1", "p1")
	second, _ := s.Cast(key, "u1", "p1")
	if !first.Changed {
		t.Error("first cast should report changed")
	}
	if second.Changed {
		t.Error("repeat cast should not report changed")
	}
	if second.Count != first.Count {
		t.Errorf("repeat cast moved count %d -> %d", first.Count, second.Count)
	}
}

func TestRevokeUncastVote(t *testing.T) {
	s := NewMemoryVoteStore()
	s.AddCandidate(key, "u1", candidate("p1"))
	s.Start(key)

	res, err := s.Revoke(key, "u1", "p1")
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if res.Changed {
		t.Error("revoking an uncast vote should not report changed")
	}
	if res.Count != 0 {
		t.Errorf("count = %d, want 0 (never negative)", res.Count)
	}
}

func TestAddCandidateRejectsDuplicates(t *testing.T) {
	s := NewMemoryVoteStore()
	s.AddCandidate(key, "u1", candidate("p1"))

	if _, err := s.AddCandidate(key, "u2", candidate("p1")); !errors.Is(err, ErrDuplicated) {
		t.Errorf("duplicate placeId: err = %v, want ErrDuplicated", err)
	}
}

func TestCandidateMutableOnlyWhileWaiting(t *testing.T) {
	s := NewMemoryVoteStore()
	s.AddCandidate(key, "u1", candidate("p1"))
	s.Start(key)

	if _, err := s.AddCandidate(key, "u1", candidate("p2")); !errors.Is(err, ErrBadState) {
		t.Errorf("add while in progress: err = %v, want ErrBadState", err)
	}
	if err := s.RemoveCandidate(key, "p1"); !errors.Is(err, ErrBadState) {
		t.Errorf("remove while in progress: err = %v, want ErrBadState", err)
	}
}

func TestRemoveCandidatePurgesVotes(t *testing.T) {
	s := NewMemoryVoteStore()
	s.AddCandidate(key, "u1", candidate("p1"))
	s.AddCandidate(key, "u1", candidate("p2"))
	s.Start(key)
	s.Cast(key, "u1", "p2")
	s.Cast(key, "u2", "p2")
	s.Reset(key)

	if err := s.RemoveCandidate(key, "p2"); err != nil {
		t.Fatalf("RemoveCandidate: %v", err)
	}

	state := s.State(key, "u1")
	if len(state.Candidates) != 1 || state.Candidates[0].PlaceID != "p1" {
		t.Fatalf("candidates = %v, want [p1]", state.Candidates)
	}
	if _, ok := state.Counts["p2"]; ok {
		t.Error("removed candidate still has a count entry")
	}
	if len(state.Voters["p2"]) != 0 {
		t.Error("removed candidate still has voter records")
	}
	assertCountsConsistent(t, s, key)
}

func TestRemoveCandidateRoundTrip(t *testing.T) {
	s := NewMemoryVoteStore()
	s.AddCandidate(key, "u1", candidate("p1"))

	before := s.State(key, "u1")
	s.AddCandidate(key, "u1", candidate("p2"))
	if err := s.RemoveCandidate(key, "p2"); err != nil {
		t.Fatalf("RemoveCandidate: %v", err)
	}
	after := s.State(key, "u1")

	if len(after.Candidates) != len(before.Candidates) {
		t.Errorf("candidate set changed: %d -> %d", len(before.Candidates), len(after.Candidates))
	}
}

func TestStartRequiresCandidates(t *testing.T) {
	s := NewMemoryVoteStore()

	if err := s.Start(key); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("start with no candidates: err = %v, want ErrNoCandidates", err)
	}

	s.AddCandidate(key, "u1", candidate("p1"))
	if err := s.Start(key); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(key); !errors.Is(err, ErrBadState) {
		t.Errorf("double start: err = %v, want ErrBadState", err)
	}
}

func TestEndRequiresInProgress(t *testing.T) {
	s := NewMemoryVoteStore()
	s.AddCandidate(key, "u1", candidate("p1"))

	if err := s.End(key); !errors.Is(err, ErrBadState) {
		t.Errorf("end while waiting: err = %v, want ErrBadState", err)
	}
}

func TestResetKeepsCandidatesDropsVotes(t *testing.T) {
	s := NewMemoryVoteStore()
	s.AddCandidate(key, "u1", candidate("p1"))
	s.Start(key)
	s.Cast(key, "u1", "p1")

	s.Reset(key)

	state := s.State(key, "u1")
	if state.Status != model.VoteWaiting {
		t.Errorf("status = %s, want waiting", state.Status)
	}
	if len(state.Candidates) != 1 {
		t.Errorf("candidates dropped on reset: %v", state.Candidates)
	}
	if state.Counts["p1"] != 0 {
		t.Errorf("count survived reset: %d", state.Counts["p1"])
	}
	if len(state.MyVotes) != 0 {
		t.Errorf("user votes survived reset: %v", state.MyVotes)
	}
}

func TestWinnersTiesAndEmpty(t *testing.T) {
	s := NewMemoryVoteStore()

	// Completed with zero votes: no winners.
	s.AddCandidate(key, "u1", candidate("p1"))
	s.Start(key)
	s.End(key)
	winners, err := s.Winners(key)
	if err != nil {
		t.Fatalf("Winners: %v", err)
	}
	if len(winners) != 0 {
		t.Errorf("winners with zero votes = %v, want none", winners)
	}

	// Two-way tie.
	tie := model.VoteKey{RoomID: "r1", CategoryID: "cat2"}
	s.AddCandidate(tie, "u1", candidate("p1"))
	s.AddCandidate(tie, "u1", candidate("p2"))
	s.AddCandidate(tie, "u1", candidate("p3"))
	s.Start(tie)
	s.Cast(tie, "u1", "p1")
	s.Cast(tie, "u2", "p2")
	s.End(tie)

	winners, err = s.Winners(tie)
	if err != nil {
		t.Fatalf("Winners: %v", err)
	}
	if len(winners) != 2 {
		t.Fatalf("tied winners = %v, want p1 and p2", winners)
	}

	// Winners is invalid before completion.
	open := model.VoteKey{RoomID: "r1", CategoryID: "cat3"}
	s.AddCandidate(open, "u1", candidate("p1"))
	if _, err := s.Winners(open); !errors.Is(err, ErrNotCompleted) {
		t.Errorf("winners while waiting: err = %v, want ErrNotCompleted", err)
	}
}

func TestStateShapesForUser(t *testing.T) {
	s := NewMemoryVoteStore()
	s.AddCandidate(key, "u1", candidate("p1"))
	s.AddCandidate(key, "u1", candidate("p2"))
	s.Start(key)
	s.Cast(key, "u1", "p1")
	s.Cast(key, "u2", "p1")
	s.Cast(key, "u2", "p2")

	state := s.State(key, "u1")
	if len(state.MyVotes) != 1 || state.MyVotes[0] != "p1" {
		t.Errorf("myVotes = %v, want [p1]", state.MyVotes)
	}
	if got := state.Voters["p1"]; len(got) != 2 {
		t.Errorf("voters[p1] = %v, want u1 and u2", got)
	}
	if state.Counts["p2"] != 1 {
		t.Errorf("counts[p2] = %d, want 1", state.Counts["p2"])
	}
}

func TestDeleteDropsSession(t *testing.T) {
	s := NewMemoryVoteStore()
	s.AddCandidate(key, "u1", candidate("p1"))
	s.Start(key)

	s.Delete(key)

	// A fresh access lazily re-initializes to waiting with nothing in it.
	state := s.State(key, "u1")
	if state.Status != model.VoteWaiting || len(state.Candidates) != 0 {
		t.Errorf("state after delete = %+v, want empty waiting session", state)
	}
}
