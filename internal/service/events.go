package service

import "meetspot/internal/model"

// Outbound event names. Inbound message types live with the websocket
// handler that dispatches them.
const (
	EventRoomJoined              = "room.joined"
	EventParticipantConnected    = "participant.connected"
	EventParticipantDisconnected = "participant.disconnected"
	EventNameUpdated             = "participant.nameUpdated"
	EventOwnerTransferred        = "room.ownerTransferred"
	EventCategoryCreated         = "category.created"
	EventCategoryDeleted         = "category.deleted"
	EventVoteState               = "vote.state"
	EventCandidateUpdated        = "vote.candidate.updated"
	EventVoteStarted             = "vote.started"
	EventVoteEnded               = "vote.ended"
	EventVoteResetted            = "vote.resetted"
	EventVoteCounts              = "vote.counts.updated"
)

type RoomJoinedPayload struct {
	RoomID       string           `json:"roomId"`
	Participants []*model.Session `json:"participants"`
	Categories   []model.Category `json:"categories"`
	OwnerID      string           `json:"ownerId"`
}

type ParticipantConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
	Name         string `json:"name"`
}

type ParticipantDisconnectedPayload struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
}

type NameUpdatedPayload struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

type OwnerTransferredPayload struct {
	PreviousOwnerID string `json:"previousOwnerId"`
	NewOwnerID      string `json:"newOwnerId"`
}

type CategoryCreatedPayload struct {
	CategoryID string `json:"categoryId"`
	Name       string `json:"name"`
	OrderIndex int    `json:"orderIndex"`
}

type CategoryDeletedPayload struct {
	CategoryID string `json:"categoryId"`
}

const (
	CandidateAdded   = "added"
	CandidateRemoved = "removed"
)

type CandidateUpdatedPayload struct {
	Action      string           `json:"action"`
	Candidate   *model.Candidate `json:"candidate,omitempty"`
	CandidateID string           `json:"candidateId,omitempty"`
}

type VoteStartedPayload struct {
	Status model.VoteStatus `json:"status"`
}

type VoteEndedPayload struct {
	Status  model.VoteStatus  `json:"status"`
	Counts  map[string]int    `json:"counts"`
	Winners []model.Candidate `json:"winners"`
}

type VoteResettedPayload struct {
	Status     model.VoteStatus  `json:"status"`
	Candidates []model.Candidate `json:"candidates"`
	Counts     map[string]int    `json:"counts"`
}

type VoteCountsPayload struct {
	CandidateID string   `json:"candidateId"`
	Count       int      `json:"count"`
	UserID      string   `json:"userId"`
	Voters      []string `json:"voters"`
}
