package service

import "meetspot/internal/model"

// Broadcaster delivers events to connections grouped into named
// channels. The websocket hub implements it; keeping the interface here
// avoids a service→transport import cycle. Coordinators receive it via
// SetBroadcaster once the transport is ready.
type Broadcaster interface {
	Subscribe(channel, connectionID string)
	Unsubscribe(channel, connectionID string)
	Emit(channel, event string, payload interface{})
	EmitExcept(channel, event string, payload interface{}, exceptConnectionID string)
	EmitTo(connectionID, event string, payload interface{})
}

func roomChannel(roomID string) string {
	return "room:" + roomID
}

func voteChannel(key model.VoteKey) string {
	return "vote:" + key.String()
}
