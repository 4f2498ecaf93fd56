package domain

import (
	"context"
	"time"
)

// SessionRegistry tracks which requesters have an active session.
// Acquire is an atomic check-and-set.
type SessionRegistry interface {
	// Acquire registers sessionID for requesterID; false means another session holds it
	Acquire(ctx context.Context, requesterID, sessionID string) (bool, error)

	// Refresh extends the registration's lifetime; false means sessionID no longer holds it
	Refresh(ctx context.Context, requesterID, sessionID string) (bool, error)

	// Release removes the registration if it is still held by sessionID
	Release(ctx context.Context, requesterID, sessionID string) error
}

// ProbeCache stores probe results keyed by URL
type ProbeCache interface {
	// Get returns a cached result younger than maxAge, or nil
	Get(url string, maxAge time.Duration) (*VideoMetadata, error)

	// Put stores a probe result
	Put(url string, meta *VideoMetadata) error
}
