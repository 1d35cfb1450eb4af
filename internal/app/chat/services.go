/*
Package chat contains the core logic for relaying chat messages between
connected clients and the text-generation backend.

This file declares the collaborator interfaces the connection handler depends
on. Concrete implementations live in internal/app/presence, internal/app/store
and internal/app/genai; tests substitute in-memory fakes.
*/
package chat

import (
	"context"

	"chatrelay/internal/app/genai"
)

// PresenceStore tracks which identities currently have at least one open
// connection. Add and Remove count connections per identity, so an identity
// stays present while any of its connections remain. Implementations are safe
// for concurrent use from many connection handlers, potentially across processes.
type PresenceStore interface {
	Add(ctx context.Context, identityID string) error
	Remove(ctx context.Context, identityID string) error
	Count(ctx context.Context) (int, error)
}

// MessageStore persists message records. SetResponse must refuse to overwrite
// a response that has already been written.
type MessageStore interface {
	CreateMessage(ctx context.Context, userID, userMessage string) (string, error)
	SetResponse(ctx context.Context, id, response string) error
}

// GenerationSubmitter hands prompts to the generation worker pool and returns
// a single-use result channel. *genai.Pool satisfies it.
type GenerationSubmitter interface {
	Submit(ctx context.Context, prompt string) <-chan genai.Result
}

// Services bundles the collaborators handed to every Client.
type Services struct {
	Presence   PresenceStore
	Messages   MessageStore
	Generation GenerationSubmitter
}

// Settings holds the presence thresholds the connection handler evaluates.
// The marks are deliberately independent; see configs for the defaults.
type Settings struct {
	// HighWaterMark: an admission that finds presence at or above this count
	// publishes an overload notice.
	HighWaterMark int

	// LowWaterMark: a disconnect that leaves presence at or below this count
	// publishes a recovery notice.
	LowWaterMark int
}
