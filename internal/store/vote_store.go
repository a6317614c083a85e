package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"meetspot/internal/model"
)

var (
	ErrBadState     = errors.New("operation not allowed in current vote status")
	ErrNotFound     = errors.New("candidate not found")
	ErrDuplicated   = errors.New("candidate already registered")
	ErrNoCandidates = errors.New("vote session has no candidates")
	ErrNotCompleted = errors.New("vote session is not completed")
)

// CastResult reports the outcome of a cast or revoke.
type CastResult struct {
	Count   int
	Changed bool
	Voters  []string
}

// VoteStore holds the ephemeral vote state machine for every
// (room, category) pairing. Sessions initialize lazily on first access
// and live until Delete. The store is the sole owner of its map.
type VoteStore interface {
	AddCandidate(key model.VoteKey, userID string, c model.Candidate) (*model.Candidate, error)
	RemoveCandidate(key model.VoteKey, placeID string) error
	Start(key model.VoteKey) error
	End(key model.VoteKey) error
	Reset(key model.VoteKey)
	Cast(key model.VoteKey, userID, placeID string) (*CastResult, error)
	Revoke(key model.VoteKey, userID, placeID string) (*CastResult, error)
	State(key model.VoteKey, userID string) *model.VoteState
	// Winners returns every candidate tied for the maximum count, empty
	// when no votes were cast. Valid only once the session is completed.
	Winners(key model.VoteKey) ([]model.Candidate, error)
	Delete(key model.VoteKey)
}

type voteSession struct {
	status     model.VoteStatus
	candidates map[string]model.Candidate
	order      []string // placeIDs in registration order
	userVotes  map[string]map[string]struct{}
	counts     map[string]int
}

type memoryVoteStore struct {
	mu       sync.Mutex
	sessions map[model.VoteKey]*voteSession
}

// NewMemoryVoteStore creates an in-memory vote session store.
func NewMemoryVoteStore() VoteStore {
	return &memoryVoteStore{
		sessions: make(map[model.VoteKey]*voteSession),
	}
}

func (s *memoryVoteStore) getOrCreate(key model.VoteKey) *voteSession {
	vs, ok := s.sessions[key]
	if !ok {
		vs = &voteSession{
			status:     model.VoteWaiting,
			candidates: make(map[string]model.Candidate),
			userVotes:  make(map[string]map[string]struct{}),
			counts:     make(map[string]int),
		}
		s.sessions[key] = vs
	}
	return vs
}

func (s *memoryVoteStore) AddCandidate(key model.VoteKey, userID string, c model.Candidate) (*model.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs := s.getOrCreate(key)
	if vs.status != model.VoteWaiting {
		return nil, ErrBadState
	}
	if _, ok := vs.candidates[c.PlaceID]; ok {
		return nil, ErrDuplicated
	}

	c.CreatedBy = userID
	c.CreatedAt = time.Now()
	vs.candidates[c.PlaceID] = c
	vs.order = append(vs.order, c.PlaceID)
	return &c, nil
}

func (s *memoryVoteStore) RemoveCandidate(key model.VoteKey, placeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs := s.getOrCreate(key)
	if vs.status != model.VoteWaiting {
		return ErrBadState
	}
	if _, ok := vs.candidates[placeID]; !ok {
		return ErrNotFound
	}

	delete(vs.candidates, placeID)
	for i, id := range vs.order {
		if id == placeID {
			vs.order = append(vs.order[:i], vs.order[i+1:]...)
			break
		}
	}
	// Purge any vote records still referencing the candidate.
	for _, votes := range vs.userVotes {
		delete(votes, placeID)
	}
	delete(vs.counts, placeID)
	return nil
}

func (s *memoryVoteStore) Start(key model.VoteKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs := s.getOrCreate(key)
	if vs.status != model.VoteWaiting {
		return ErrBadState
	}
	if len(vs.candidates) == 0 {
		return ErrNoCandidates
	}
	vs.status = model.VoteInProgress
	return nil
}

func (s *memoryVoteStore) End(key model.VoteKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs := s.getOrCreate(key)
	if vs.status != model.VoteInProgress {
		return ErrBadState
	}
	vs.status = model.VoteCompleted
	return nil
}

func (s *memoryVoteStore) Reset(key model.VoteKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs := s.getOrCreate(key)
	vs.status = model.VoteWaiting
	vs.userVotes = make(map[string]map[string]struct{})
	vs.counts = make(map[string]int)
}

func (s *memoryVoteStore) Cast(key model.VoteKey, userID, placeID string) (*CastResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs := s.getOrCreate(key)
	if vs.status != model.VoteInProgress {
		return nil, ErrBadState
	}
	if _, ok := vs.candidates[placeID]; !ok {
		return nil, ErrNotFound
	}

	votes, ok := vs.userVotes[userID]
	if !ok {
		votes = make(map[string]struct{})
		vs.userVotes[userID] = votes
	}
	if _, voted := votes[placeID]; voted {
		return &CastResult{Count: vs.counts[placeID], Changed: false, Voters: vs.votersFor(placeID)}, nil
	}

	votes[placeID] = struct{}{}
	vs.counts[placeID]++
	return &CastResult{Count: vs.counts[placeID], Changed: true, Voters: vs.votersFor(placeID)}, nil
}

func (s *memoryVoteStore) Revoke(key model.VoteKey, userID, placeID string) (*CastResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs := s.getOrCreate(key)
	if vs.status != model.VoteInProgress {
		return nil, ErrBadState
	}
	if _, ok := vs.candidates[placeID]; !ok {
		return nil, ErrNotFound
	}

	votes := vs.userVotes[userID]
	if _, voted := votes[placeID]; !voted {
		return &CastResult{Count: vs.counts[placeID], Changed: false, Voters: vs.votersFor(placeID)}, nil
	}

	delete(votes, placeID)
	if vs.counts[placeID] > 0 {
		vs.counts[placeID]--
	}
	return &CastResult{Count: vs.counts[placeID], Changed: true, Voters: vs.votersFor(placeID)}, nil
}

func (s *memoryVoteStore) State(key model.VoteKey, userID string) *model.VoteState {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs := s.getOrCreate(key)

	state := &model.VoteState{
		Status:     vs.status,
		Candidates: make([]model.Candidate, 0, len(vs.order)),
		Counts:     make(map[string]int, len(vs.counts)),
		MyVotes:    []string{},
		Voters:     make(map[string][]string, len(vs.order)),
	}
	for _, placeID := range vs.order {
		state.Candidates = append(state.Candidates, vs.candidates[placeID])
		state.Counts[placeID] = vs.counts[placeID]
		state.Voters[placeID] = vs.votersFor(placeID)
		if _, voted := vs.userVotes[userID][placeID]; voted {
			state.MyVotes = append(state.MyVotes, placeID)
		}
	}
	return state
}

func (s *memoryVoteStore) Winners(key model.VoteKey) ([]model.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs := s.getOrCreate(key)
	if vs.status != model.VoteCompleted {
		return nil, ErrNotCompleted
	}

	max := 0
	for _, placeID := range vs.order {
		if vs.counts[placeID] > max {
			max = vs.counts[placeID]
		}
	}
	winners := []model.Candidate{}
	if max == 0 {
		return winners, nil
	}
	for _, placeID := range vs.order {
		if vs.counts[placeID] == max {
			winners = append(winners, vs.candidates[placeID])
		}
	}
	return winners, nil
}

func (s *memoryVoteStore) Delete(key model.VoteKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, key)
}

func (vs *voteSession) votersFor(placeID string) []string {
	voters := []string{}
	for userID, votes := range vs.userVotes {
		if _, ok := votes[placeID]; ok {
			voters = append(voters, userID)
		}
	}
	sort.Strings(voters)
	return voters
}
