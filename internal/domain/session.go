package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionStage represents where a download session currently is
type SessionStage string

const (
	StageQueued     SessionStage = "queued"
	StageProbing    SessionStage = "probing"
	StageFetching   SessionStage = "fetching"
	StageSplitting  SessionStage = "splitting"
	StageDelivering SessionStage = "delivering"
)

// Session is one in-flight retrieval on behalf of a requester
type Session struct {
	ID              string       `json:"id"`
	RequesterID     string       `json:"requester_id"`
	URL             string       `json:"url"`
	Source          string       `json:"source"`
	Stage           SessionStage `json:"stage"`
	CancelRequested bool         `json:"cancel_requested"`
	CreatedAt       time.Time    `json:"created_at"`
	StartedAt       *time.Time   `json:"started_at,omitempty"`
}

// NewSession creates a queued session with a time-sortable ID.
// The ID also namespaces every file the session writes.
func NewSession(requesterID, url, source string) *Session {
	return &Session{
		ID:          ulid.Make().String(),
		RequesterID: requesterID,
		URL:         url,
		Source:      source,
		Stage:       StageQueued,
		CreatedAt:   time.Now(),
	}
}

// MarkStage moves the session to the given stage
func (s *Session) MarkStage(stage SessionStage) {
	if s.StartedAt == nil && stage != StageQueued {
		now := time.Now()
		s.StartedAt = &now
	}
	s.Stage = stage
}

// DownloadRequest is the input of the fetch executor
type DownloadRequest struct {
	SessionID   string
	RequesterID string
	URL         string
	VideoID     string
	Source      string
	Candidates  []FormatCandidate
}

// OutcomeKind classifies the terminal event of a session
type OutcomeKind string

const (
	OutcomeDelivered OutcomeKind = "delivered"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeCancelled OutcomeKind = "cancelled"
)

// Outcome is the single terminal event of a session
type Outcome struct {
	SessionID   string           `json:"session_id"`
	RequesterID string           `json:"requester_id"`
	URL         string           `json:"url"`
	Kind        OutcomeKind      `json:"kind"`
	Files       []LocalMediaFile `json:"files,omitempty"`
	Reason      string           `json:"reason,omitempty"`
	Err         error            `json:"-"`
	FinishedAt  time.Time        `json:"finished_at"`
}

// NewDeliveredOutcome creates a success outcome carrying the deliverable files in order
func NewDeliveredOutcome(s *Session, files []LocalMediaFile) *Outcome {
	return &Outcome{
		SessionID:   s.ID,
		RequesterID: s.RequesterID,
		URL:         s.URL,
		Kind:        OutcomeDelivered,
		Files:       files,
		FinishedAt:  time.Now(),
	}
}

// NewFailedOutcome creates a failure outcome; cancellation errors become cancelled outcomes
func NewFailedOutcome(s *Session, err error) *Outcome {
	if errors.Is(err, ErrCancelled) {
		return NewCancelledOutcome(s)
	}
	return &Outcome{
		SessionID:   s.ID,
		RequesterID: s.RequesterID,
		URL:         s.URL,
		Kind:        OutcomeFailed,
		Reason:      UserMessage(err),
		Err:         err,
		FinishedAt:  time.Now(),
	}
}

// NewCancelledOutcome creates a cancellation outcome
func NewCancelledOutcome(s *Session) *Outcome {
	return &Outcome{
		SessionID:   s.ID,
		RequesterID: s.RequesterID,
		URL:         s.URL,
		Kind:        OutcomeCancelled,
		Reason:      UserMessage(ErrCancelled),
		Err:         ErrCancelled,
		FinishedAt:  time.Now(),
	}
}

// TotalSize returns the combined size of the delivered files
func (o *Outcome) TotalSize() int64 {
	var total int64
	for _, f := range o.Files {
		total += f.Size
	}
	return total
}

// Message returns a one-line human readable summary
func (o *Outcome) Message() string {
	switch o.Kind {
	case OutcomeDelivered:
		if len(o.Files) == 1 {
			return fmt.Sprintf("Delivered 1 file (%s)", FormatSize(o.Files[0].Size))
		}
		sizes := make([]string, len(o.Files))
		for i, f := range o.Files {
			sizes[i] = FormatSize(f.Size)
		}
		return fmt.Sprintf("Delivered %d parts (%s)", len(o.Files), strings.Join(sizes, ", "))
	default:
		return o.Reason
	}
}

// Reporter consumes the terminal outcome of a session.
// Reporters may move or upload the delivered files; whatever is left in the
// work directory afterwards is removed by the coordinator.
type Reporter interface {
	Report(ctx context.Context, outcome *Outcome) error
}

// ReporterFunc adapts a function to Reporter
type ReporterFunc func(ctx context.Context, outcome *Outcome) error

// Report calls f
func (f ReporterFunc) Report(ctx context.Context, outcome *Outcome) error {
	return f(ctx, outcome)
}
