package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ClaimStore is the durable, subject-indexed home for claim records.
// Implementations own the records; callers only ever see snapshots.
type ClaimStore interface {
	// Put assigns an ID and stores the claim. It fails with a
	// duplicate-claim error when an identical (subject, body, creator)
	// triple was stored inside the configured de-duplication window.
	Put(ctx context.Context, c *Claim) error
	GetByID(ctx context.Context, id uuid.UUID) (*Claim, error)
	// GetBySubject returns the subject's claims in insertion order with
	// their contradiction sets populated. Confidence is returned as stored;
	// decay is applied by the caller at read time.
	GetBySubject(ctx context.Context, subjectID string) ([]Claim, error)
	// LinkContradiction records the symmetric contradiction between two
	// claims, atomically and idempotently.
	LinkContradiction(ctx context.Context, a, b uuid.UUID, detectedAt time.Time) error
	ListSubjects(ctx context.Context) ([]string, error)
	// UpdateConfidence persists a recomputed confidence and moves the decay
	// anchor to decayedAt. Only the explicit recompute operation calls this.
	UpdateConfidence(ctx context.Context, id uuid.UUID, confidence float64, decayedAt time.Time) error
}

// SubjectRegistry is the injected capability that answers whether a subject
// is known to the host's concept registry.
type SubjectRegistry interface {
	SubjectExists(ctx context.Context, subjectID string) (bool, error)
}

// SubjectStore is the host-side registry implementation behind
// SubjectRegistry.
type SubjectStore interface {
	SubjectRegistry
	Create(ctx context.Context, s *Subject) error
	GetByID(ctx context.Context, id string) (*Subject, error)
}

// Clock abstracts time so decay is deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
