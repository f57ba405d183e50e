package service

import (
	"math"
	"time"

	"github.com/coursegen/worldmodel/internal/domain"
)

const (
	// DefaultInitialConfidence is assigned when a caller supplies no
	// explicit confidence.
	DefaultInitialConfidence = 0.5
	// DefaultConfidenceFloor is the lowest value decay may produce, so a
	// claim's provenance is never fully erased.
	DefaultConfidenceFloor = 0.05
	// DefaultHalfLife controls how fast unrefreshed claims lose weight.
	DefaultHalfLife = 30 * 24 * time.Hour
	// maxEvidenceStrength caps the citation heuristic below certainty.
	maxEvidenceStrength = 0.9
)

// ClampConfidence forces a confidence into [0,1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// ConfidenceModel holds the pure scoring and decay rules. It carries no
// state beyond its configuration and is safe for concurrent use.
type ConfidenceModel struct {
	HalfLife time.Duration
	Floor    float64
}

func NewConfidenceModel(halfLife time.Duration, floor float64) ConfidenceModel {
	if halfLife <= 0 {
		halfLife = DefaultHalfLife
	}
	if floor <= 0 {
		floor = DefaultConfidenceFloor
	}
	return ConfidenceModel{HalfLife: halfLife, Floor: floor}
}

// Initial returns the starting confidence for a new claim: the default when
// nothing was supplied, otherwise the supplied value clamped into [0,1].
func (m ConfidenceModel) Initial(explicit *float64) float64 {
	if explicit == nil {
		return DefaultInitialConfidence
	}
	return ClampConfidence(*explicit)
}

// Decayed applies exponential half-life decay to a confidence asserted at
// assertedAt, evaluated at now. Future-dated assertions (clock skew) decay
// as if no time had passed. The result never drops below the floor.
func (m ConfidenceModel) Decayed(confidence float64, assertedAt, now time.Time) float64 {
	elapsed := now.Sub(assertedAt)
	if elapsed < 0 {
		elapsed = 0
	}

	halfLives := elapsed.Hours() / m.HalfLife.Hours()
	decayed := confidence * math.Pow(0.5, halfLives)

	if decayed < m.Floor {
		decayed = m.Floor
	}
	return decayed
}

// DecayedClaim evaluates a claim's confidence at now, honoring a moved
// decay anchor from a prior recompute.
func (m ConfidenceModel) DecayedClaim(c *domain.Claim, now time.Time) float64 {
	return m.Decayed(c.Confidence, c.DecayAnchor(), now)
}

// EvidenceStrength scores a citation list: no citations is weak support,
// each citation adds a diminishing amount, capped below certainty. Reported
// in traces only; it never feeds back into stored confidence.
func EvidenceStrength(evidence []domain.Citation) float64 {
	if len(evidence) == 0 {
		return 0.3
	}
	return math.Min(maxEvidenceStrength, 0.5+float64(len(evidence))*0.1)
}
