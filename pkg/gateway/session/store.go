// Package session holds the ephemeral state of a live capture session: the
// ordered audio chunk buffer and the attach metadata that authenticates a
// channel to its response.
package session

import (
	"context"
	"time"
)

// Default lifetimes. The chunk buffer expires sooner than the metadata so an
// abandoned session loses its audio before it loses its identity.
const (
	DefaultChunkTTL = time.Hour
	DefaultMetaTTL  = 2 * time.Hour
)

// Meta is the attach metadata recorded when a capture session is issued.
// ConnID is empty until a live channel attaches; a successful attach binds
// the channel's connection identifier here.
type Meta struct {
	InterviewID string
	ResponseID  string
	Token       string
	ConnID      string
	CreatedAt   time.Time
}

// Store is the ephemeral session state surface. All methods are safe for
// concurrent use. Implementations degrade gracefully: a store outage fails
// the audio path without corrupting interview state held elsewhere.
type Store interface {
	// Create resets the chunk buffer for a session. Any prior buffer
	// content under the same id is discarded.
	Create(ctx context.Context, sessionID string) error

	// AppendChunk appends one audio chunk in arrival order and slides the
	// buffer expiry forward.
	AppendChunk(ctx context.Context, sessionID string, chunk []byte) error

	// Chunks returns all buffered chunks in append order. A missing or
	// expired session yields an empty slice, not an error.
	Chunks(ctx context.Context, sessionID string) ([][]byte, error)

	// SetMeta records attach metadata for a session.
	SetMeta(ctx context.Context, sessionID string, meta Meta) error

	// Meta returns the attach metadata. ok is false when the session is
	// unknown or expired.
	Meta(ctx context.Context, sessionID string) (Meta, bool, error)

	// Destroy removes both the chunk buffer and the metadata.
	Destroy(ctx context.Context, sessionID string) error
}
