package ws

import "meetspot/internal/model"

// Inbound message types.
const (
	MsgRoomJoin          = "room.join"
	MsgRoomLeave         = "room.leave"
	MsgRoomRename        = "room.rename"
	MsgRoomTransferOwner = "room.transferOwner"
	MsgCategoryCreate    = "category.create"
	MsgCategoryDelete    = "category.delete"
	MsgVoteJoin          = "vote.join"
	MsgVoteLeave         = "vote.leave"
	MsgCandidateAdd      = "vote.candidate.add"
	MsgCandidateRemove   = "vote.candidate.remove"
	MsgVoteStart         = "vote.start"
	MsgVoteEnd           = "vote.end"
	MsgVoteReset         = "vote.reset"
	MsgVoteCast          = "vote.cast"
	MsgVoteRevoke        = "vote.revoke"
)

// EventError is sent to the originating connection only, never broadcast.
const EventError = "error"

type JoinRoomPayload struct {
	RoomRef string `json:"roomRef"`
	User    struct {
		Name string `json:"name"`
	} `json:"user"`
}

type RenamePayload struct {
	Name string `json:"name"`
}

type TransferOwnerPayload struct {
	TargetUserID string `json:"targetUserId"`
}

type CategoryCreatePayload struct {
	RoomRef string `json:"roomRef"`
	Name    string `json:"name"`
}

type CategoryDeletePayload struct {
	CategoryID string `json:"categoryId"`
	RoomRef    string `json:"roomRef"`
}

type VoteJoinPayload struct {
	RoomID     string `json:"roomId"`
	CategoryID string `json:"categoryId"`
}

type CandidateAddPayload struct {
	PlaceID string            `json:"placeId"`
	Name    string            `json:"name"`
	Address string            `json:"address"`
	Meta    map[string]string `json:"meta,omitempty"`
}

func (p *CandidateAddPayload) toModel() model.Candidate {
	return model.Candidate{
		PlaceID: p.PlaceID,
		Name:    p.Name,
		Address: p.Address,
		Meta:    p.Meta,
	}
}

type CandidateRemovePayload struct {
	CandidateID string `json:"candidateId"`
}

type VoteCastPayload struct {
	CandidateID string `json:"candidateId"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
