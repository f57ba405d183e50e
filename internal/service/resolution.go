package service

import (
	"sort"

	"github.com/coursegen/worldmodel/internal/domain"
	"github.com/google/uuid"
)

// DefaultMergeTopK is how many top claims the MERGE policy considers.
const DefaultMergeTopK = 3

// Resolver collapses the claims of one subject into a current belief.
// It is read-only: nothing it synthesizes is ever written back to the store.
type Resolver struct {
	Policy   domain.ResolutionPolicy
	TopK     int
	detector *Detector
}

func NewResolver(policy domain.ResolutionPolicy, topK int, detector *Detector) *Resolver {
	if topK <= 0 {
		topK = DefaultMergeTopK
	}
	return &Resolver{Policy: policy, TopK: topK, detector: detector}
}

// Resolve picks or synthesizes a belief from claims whose Confidence has
// already been decayed to the evaluation instant. Claims must be in
// insertion order; all tie-breaks fall back to that order, so the result is
// fully deterministic.
func (r *Resolver) Resolve(subjectID string, claims []domain.Claim) *domain.ResolvedBelief {
	if len(claims) == 0 {
		return &domain.ResolvedBelief{SubjectID: subjectID, Empty: true, Policy: r.Policy}
	}

	switch r.Policy {
	case domain.PolicyMostRecent:
		return r.single(subjectID, mostRecent(claims), false)
	case domain.PolicyMerge:
		return r.merge(subjectID, claims)
	default:
		return r.single(subjectID, highestConfidence(claims), false)
	}
}

func (r *Resolver) single(subjectID string, c *domain.Claim, contested bool) *domain.ResolvedBelief {
	return &domain.ResolvedBelief{
		SubjectID:  subjectID,
		ClaimIDs:   []uuid.UUID{c.ID},
		Body:       c.Body,
		Evidence:   append([]domain.Citation(nil), c.Evidence...),
		Confidence: c.Confidence,
		AssertedAt: c.AssertedAt,
		Contested:  contested,
		Policy:     r.Policy,
	}
}

// merge considers the top-K claims by decayed confidence. With no pairwise
// contradiction among them it synthesizes a composite; otherwise it falls
// back to highest-confidence over the subset and marks the result contested.
func (r *Resolver) merge(subjectID string, claims []domain.Claim) *domain.ResolvedBelief {
	top := topByConfidence(claims, r.TopK)

	for i := 0; i < len(top); i++ {
		for j := i + 1; j < len(top); j++ {
			if r.detector.Compare(&top[i], &top[j]) || contains(top[i].Contradicts, top[j].ID) {
				return r.single(subjectID, highestConfidence(top), true)
			}
		}
	}

	lead := highestConfidence(top)
	composite := &domain.ResolvedBelief{
		SubjectID:  subjectID,
		Body:       lead.Body,
		Confidence: lead.Confidence,
		AssertedAt: lead.AssertedAt,
		Policy:     r.Policy,
	}
	seen := make(map[string]struct{})
	for i := range top {
		composite.ClaimIDs = append(composite.ClaimIDs, top[i].ID)
		for _, cit := range top[i].Evidence {
			if _, dup := seen[cit.Ref]; dup {
				continue
			}
			seen[cit.Ref] = struct{}{}
			composite.Evidence = append(composite.Evidence, cit)
		}
		if top[i].AssertedAt.After(composite.AssertedAt) {
			composite.AssertedAt = top[i].AssertedAt
		}
	}
	return composite
}

// highestConfidence picks by decayed confidence, then latest assertion
// time, then earliest insertion. Strict comparisons keep the first claim on
// full ties.
func highestConfidence(claims []domain.Claim) *domain.Claim {
	best := &claims[0]
	for i := 1; i < len(claims); i++ {
		c := &claims[i]
		if c.Confidence > best.Confidence ||
			(c.Confidence == best.Confidence && c.AssertedAt.After(best.AssertedAt)) {
			best = c
		}
	}
	return best
}

// mostRecent picks by latest assertion time, then confidence, then earliest
// insertion.
func mostRecent(claims []domain.Claim) *domain.Claim {
	best := &claims[0]
	for i := 1; i < len(claims); i++ {
		c := &claims[i]
		if c.AssertedAt.After(best.AssertedAt) ||
			(c.AssertedAt.Equal(best.AssertedAt) && c.Confidence > best.Confidence) {
			best = c
		}
	}
	return best
}

// topByConfidence returns up to k claims sorted by confidence descending.
// The sort is stable so equal-confidence claims keep insertion order.
func topByConfidence(claims []domain.Claim, k int) []domain.Claim {
	sorted := append([]domain.Claim(nil), claims...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})
	if len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
