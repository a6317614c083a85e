package model

import (
	"fmt"
	"time"
)

type VoteStatus string

const (
	VoteWaiting    VoteStatus = "waiting"
	VoteInProgress VoteStatus = "in_progress"
	VoteCompleted  VoteStatus = "completed"
)

// VoteKey identifies one vote session: a (room, category) pairing.
type VoteKey struct {
	RoomID     string
	CategoryID string
}

func (k VoteKey) String() string {
	return fmt.Sprintf("%s:%s", k.RoomID, k.CategoryID)
}

// Candidate is a proposed place registered for voting while the session
// is still waiting.
type Candidate struct {
	PlaceID   string            `json:"placeId"`
	Name      string            `json:"name"`
	Address   string            `json:"address"`
	Meta      map[string]string `json:"meta,omitempty"`
	CreatedBy string            `json:"createdBy"`
	CreatedAt time.Time         `json:"createdAt"`
}

// VoteState is a read-only snapshot of one vote session, shaped for the
// requesting user.
type VoteState struct {
	Status     VoteStatus          `json:"status"`
	Candidates []Candidate         `json:"candidates"`
	Counts     map[string]int      `json:"counts"`
	MyVotes    []string            `json:"myVotes"`
	Voters     map[string][]string `json:"voters"`
}
