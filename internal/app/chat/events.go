/*
Package chat contains the core logic for relaying chat messages between
connected clients and the text-generation backend.

This file defines the outbound event shapes sent over the WebSocket, the
topic naming scheme of the broadcast fabric, and the notice texts published
when the server crosses its load thresholds.
*/
package chat

// EventType is the discriminator of an outbound WebSocket frame.
type EventType string

const (
	// EventSystem is the admission acknowledgment sent to a newly connected client.
	EventSystem EventType = "system"

	// EventUser is the echo of a validated inbound message, sent to the sending socket only.
	EventUser EventType = "user"

	// EventBot carries the generation result (or its synthesized error text)
	// to every socket of the originating identity.
	EventBot EventType = "bot"

	// EventBroadcast carries a load-state notice to every connected client.
	EventBroadcast EventType = "broadcast"
)

// Event is one outbound frame. All frames share the same two-field JSON shape.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
}

// BroadcastTopic is the shared topic every connection joins for system-wide notices.
const BroadcastTopic = "broadcast"

// PrivateTopic returns the topic joined by every connection of one identity,
// used to deliver generation results to all of that user's open sockets.
func PrivateTopic(identityID string) string {
	return "user:" + identityID
}

const (
	// OverloadNotice is broadcast when presence reaches the high-water mark.
	OverloadNotice = "Server overloaded: more than 4 users are chatting. Responses may be slower."

	// RecoveryNotice is broadcast when presence falls back to the low-water mark.
	RecoveryNotice = "Server load is back to normal."
)

// WsCloseCodeUnauthenticated is the custom WebSocket Close Code (4000-4999
// range) signaling that the connection attempt carried no valid identity.
// The client must re-authenticate out of band; no retry is implied.
const WsCloseCodeUnauthenticated = 4001
