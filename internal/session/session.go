// Package session holds the state of one review attempt: its clock, draft
// notes and outcome. A Review is owned by the caller and passed by
// reference; nothing here is global.
package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxNotesLength bounds the free-text notes a student can attach.
const MaxNotesLength = 2000

// ErrClosed is returned when a finished review is modified.
var ErrClosed = errors.New("review session already closed")

// Phase is the lifecycle position of a review attempt.
type Phase int

const (
	PhaseActive Phase = iota // Timer running, notes editable
	PhasePaused              // Timer stopped, resumable
	PhaseClosed              // Outcome captured
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhasePaused:
		return "paused"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Review is the client-ephemeral state of reviewing one queue item. Only the
// outcome produced by Close is durable.
type Review struct {
	mu sync.Mutex

	ID          string
	QueueItemID int64
	StudentID   string
	StartedAt   time.Time

	phase       Phase
	notes       string
	elapsed     time.Duration // accumulated while active, excluding the running stretch
	resumedAt   time.Time
	draftAnswer string
}

// Outcome is the captured result of a closed review.
type Outcome struct {
	SessionID        string
	QueueItemID      int64
	StudentID        string
	WasCorrect       bool
	SelfRating       string
	TimeSpentSeconds int
	Notes            *string
	ClosedAt         time.Time
}

// New starts a review of queueItemID at now.
func New(queueItemID int64, studentID string, now time.Time) *Review {
	return &Review{
		ID:          uuid.New().String(),
		QueueItemID: queueItemID,
		StudentID:   studentID,
		StartedAt:   now,
		phase:       PhaseActive,
		resumedAt:   now,
	}
}

// Phase returns the current phase.
func (r *Review) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// SetNotes replaces the draft notes. Notes longer than MaxNotesLength are
// truncated on a rune boundary.
func (r *Review) SetNotes(notes string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase == PhaseClosed {
		return ErrClosed
	}
	r.notes = truncate(notes, MaxNotesLength)
	return nil
}

// Notes returns the draft notes.
func (r *Review) Notes() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notes
}

// SetDraftAnswer stores the student's in-progress recall attempt.
func (r *Review) SetDraftAnswer(answer string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase == PhaseClosed {
		return ErrClosed
	}
	r.draftAnswer = answer
	return nil
}

// DraftAnswer returns the in-progress recall attempt.
func (r *Review) DraftAnswer() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draftAnswer
}

// Pause stops the timer.
func (r *Review) Pause(now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.phase {
	case PhaseClosed:
		return ErrClosed
	case PhasePaused:
		return nil
	}
	r.elapsed += nonNegative(now.Sub(r.resumedAt))
	r.phase = PhasePaused
	return nil
}

// Resume restarts a paused timer.
func (r *Review) Resume(now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.phase {
	case PhaseClosed:
		return ErrClosed
	case PhaseActive:
		return nil
	}
	r.resumedAt = now
	r.phase = PhaseActive
	return nil
}

// Elapsed returns the active time spent so far.
func (r *Review) Elapsed(now time.Time) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsedLocked(now)
}

func (r *Review) elapsedLocked(now time.Time) time.Duration {
	if r.phase == PhaseActive {
		return r.elapsed + nonNegative(now.Sub(r.resumedAt))
	}
	return r.elapsed
}

// Close captures the outcome and freezes the review. Closing twice returns
// ErrClosed; a client that wants to record again must open a new review.
func (r *Review) Close(wasCorrect bool, selfRating string, now time.Time) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase == PhaseClosed {
		return Outcome{}, ErrClosed
	}
	r.elapsed = r.elapsedLocked(now)
	r.phase = PhaseClosed

	out := Outcome{
		SessionID:        r.ID,
		QueueItemID:      r.QueueItemID,
		StudentID:        r.StudentID,
		WasCorrect:       wasCorrect,
		SelfRating:       selfRating,
		TimeSpentSeconds: int(r.elapsed.Round(time.Second) / time.Second),
		ClosedAt:         now,
	}
	if n := strings.TrimSpace(r.notes); n != "" {
		out.Notes = &n
	}
	return out, nil
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
