package chat

import "encoding/json"

// Wire event names, shared with the client.
const (
	EventContactAdded = "contactAdded"   // new registration: online profile fact
	EventOnlineUsers  = "getOnlineUsers" // full snapshot of online user ids
	EventNewMessage   = "newMessage"     // persisted message pushed to its targets
	EventJoinGroup    = "joinGroup"      // client -> server: join a group's room
)

// Event is the envelope for every frame on the socket, both directions.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// inboundEvent defers data decoding until the event name is known.
type inboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ContactPayload is the online-profile fact broadcast when a user comes
// online, so viewers gain the contact without refetching.
type ContactPayload struct {
	ID         int64  `json:"id"`
	FullName   string `json:"fullName"`
	ProfilePic string `json:"profilePic"`
	Status     string `json:"status"`
}

func encodeEvent(name string, data any) []byte {
	// Marshal cannot fail for our payload types.
	b, _ := json.Marshal(Event{Event: name, Data: data})
	return b
}
