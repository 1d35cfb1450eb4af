/*
Package user contains core data structures related to user identity.

It defines the basic representation of an authenticated chat participant
(the Identity struct), supplied by the authentication collaborator and
read-only for the chat core.
*/
package user

// Identity represents the authenticated identity attached to a connection.
// Fields use JSON tags for serialization in WebSocket messages.
type Identity struct {
	// ID is the stable, unique identifier for the user.
	ID string `json:"id"`

	// Nickname is the display name shown in chat acknowledgments.
	Nickname string `json:"nickname"`
}

// Valid reports whether the identity carries the minimum fields required
// for connection admission.
func (i Identity) Valid() bool {
	return i.ID != "" && i.Nickname != ""
}
