package domain

import (
	"time"

	"github.com/google/uuid"
)

// Citation is a single piece of supporting evidence attached to a claim.
// Ref is an opaque reference into whatever citation registry the host keeps.
type Citation struct {
	Ref     string    `json:"ref"`
	AddedAt time.Time `json:"added_at,omitempty"`
}

// Claim is an assertion about a subject in the world model.
//
// Claims are append-mostly: once stored, only the contradiction set grows
// (via the symmetric link operation) and confidence may be rewritten by an
// explicit recompute. Everything handed out of the store is a snapshot.
type Claim struct {
	ID          uuid.UUID   `json:"id"`
	SubjectID   string      `json:"subject_id"`
	Body        string      `json:"body"`
	Evidence    []Citation  `json:"evidence,omitempty"`
	Confidence  float64     `json:"confidence"`
	AssertedAt  time.Time   `json:"asserted_at"`
	CreatedBy   string      `json:"created_by"`
	Contradicts []uuid.UUID `json:"contradicts,omitempty"`

	// DecayedAt is set only by the recompute operation. When present it
	// replaces AssertedAt as the decay anchor so a persisted recompute does
	// not double-decay on subsequent reads.
	DecayedAt *time.Time `json:"decayed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// DecayAnchor returns the timestamp decay is measured from.
func (c *Claim) DecayAnchor() time.Time {
	if c.DecayedAt != nil {
		return *c.DecayedAt
	}
	return c.AssertedAt
}

// Contradiction is one direction of a symmetric contradiction link between
// two claims on the same subject. The store always writes both directions.
type Contradiction struct {
	ID            uuid.UUID `json:"id"`
	ClaimID       uuid.UUID `json:"claim_id"`
	ContradictsID uuid.UUID `json:"contradicts_id"`
	DetectedAt    time.Time `json:"detected_at"`
}

// ResolutionPolicy selects how multiple claims on one subject collapse into
// a current belief.
type ResolutionPolicy string

const (
	PolicyHighestConfidence ResolutionPolicy = "highest_confidence"
	PolicyMostRecent        ResolutionPolicy = "most_recent"
	PolicyMerge             ResolutionPolicy = "merge"
)

func ValidResolutionPolicy(p string) bool {
	switch ResolutionPolicy(p) {
	case PolicyHighestConfidence, PolicyMostRecent, PolicyMerge:
		return true
	}
	return false
}

// ResolvedBelief is the outcome of applying a resolution policy to the
// claims of one subject. Empty is set when the subject has no claims at
// all; that is an ordinary result, not an error.
type ResolvedBelief struct {
	SubjectID  string           `json:"subject_id"`
	Empty      bool             `json:"empty,omitempty"`
	ClaimIDs   []uuid.UUID      `json:"claim_ids,omitempty"`
	Body       string           `json:"body,omitempty"`
	Evidence   []Citation       `json:"evidence,omitempty"`
	Confidence float64          `json:"confidence"`
	AssertedAt time.Time        `json:"asserted_at,omitempty"`
	Contested  bool             `json:"contested"`
	Policy     ResolutionPolicy `json:"policy"`
}

// Subject is an entry in the host's concept registry.
type Subject struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ConfidenceCategory buckets a confidence score for human-facing traces.
func ConfidenceCategory(c float64) string {
	switch {
	case c >= 0.9:
		return "very_high"
	case c >= 0.7:
		return "high"
	case c >= 0.5:
		return "moderate"
	case c >= 0.3:
		return "low"
	default:
		return "very_low"
	}
}
