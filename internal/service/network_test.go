package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/coursegen/worldmodel/internal/domain"
	"github.com/coursegen/worldmodel/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeClock is a settable Clock for deterministic decay.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type networkFixture struct {
	clock    *fakeClock
	claims   *store.MemClaimStore
	subjects *store.MemSubjectStore
	network  *BeliefNetwork
}

func newNetworkFixture(t *testing.T, cfg NetworkConfig) *networkFixture {
	t.Helper()

	clock := newFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	claims := store.NewMemClaimStore(clock, 5*time.Minute)
	subjects := store.NewMemSubjectStore(clock)

	for _, id := range []string{"concurrency_control", "relational_model", "consensus"} {
		require.NoError(t, subjects.Create(context.Background(), &domain.Subject{ID: id}))
	}

	return &networkFixture{
		clock:    clock,
		claims:   claims,
		subjects: subjects,
		network:  NewBeliefNetwork(claims, subjects, clock, cfg, zap.NewNop()),
	}
}

func ptr(v float64) *float64 { return &v }

func TestBeliefNetwork_AddClaim_UnknownSubject(t *testing.T) {
	f := newNetworkFixture(t, NetworkConfig{})

	_, err := f.network.AddClaim(context.Background(), AddClaimInput{
		SubjectID: "ghost_subject",
		Body:      "Nothing is known about this",
	})
	assert.ErrorIs(t, err, ErrSubjectUnknown)
}

func TestBeliefNetwork_AddClaim_DefaultsCreator(t *testing.T) {
	f := newNetworkFixture(t, NetworkConfig{})

	result, err := f.network.AddClaim(context.Background(), AddClaimInput{
		SubjectID: "consensus",
		Body:      "Paxos tolerates minority failures",
	})
	require.NoError(t, err)
	assert.Equal(t, "tool", result.Claim.CreatedBy)
	assert.Equal(t, DefaultInitialConfidence, result.Claim.Confidence)
}

// Scenario: a confident claim followed by its negation. AddClaim reports
// the contradiction and HIGHEST_CONFIDENCE keeps the stronger original.
func TestBeliefNetwork_ContradictionScenario(t *testing.T) {
	f := newNetworkFixture(t, NetworkConfig{
		Policy:   domain.PolicyHighestConfidence,
		HalfLife: 720 * time.Hour,
	})
	ctx := context.Background()

	first, err := f.network.AddClaim(ctx, AddClaimInput{
		SubjectID:  "concurrency_control",
		Body:       "Two-phase locking guarantees serializability",
		Evidence:   []domain.Citation{{Ref: "paper:eswaran1976"}},
		CreatedBy:  "reading_curator",
		Confidence: ptr(0.8),
	})
	require.NoError(t, err)
	assert.Empty(t, first.Contradicts)

	f.clock.Advance(time.Hour)

	second, err := f.network.AddClaim(ctx, AddClaimInput{
		SubjectID: "concurrency_control",
		Body:      "Two-phase locking does not guarantee serializability",
		CreatedBy: "exercise_author",
	})
	require.NoError(t, err)
	require.Len(t, second.Contradicts, 1)
	assert.Equal(t, first.Claim.ID, second.Contradicts[0])

	// The symmetric link is visible from the first claim too.
	stored, err := f.claims.GetByID(ctx, first.Claim.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.Contradicts, second.Claim.ID)

	belief, err := f.network.CurrentBelief(ctx, "concurrency_control")
	require.NoError(t, err)
	assert.Equal(t, first.Claim.ID, belief.ClaimIDs[0])
	assert.Greater(t, belief.Confidence, 0.5)
}

// Scenario: three compatible claims under MERGE produce a composite with
// the maximum confidence and the union of evidence.
func TestBeliefNetwork_MergeScenario(t *testing.T) {
	f := newNetworkFixture(t, NetworkConfig{
		Policy:   domain.PolicyMerge,
		HalfLife: 720 * time.Hour,
	})
	ctx := context.Background()

	inputs := []struct {
		body       string
		confidence float64
		ref        string
	}{
		{"Relational algebra operates on sets of tuples", 0.6, "paper:codd1970"},
		{"Normalization reduces redundancy across relations", 0.7, "paper:codd1971"},
		{"Relations are unordered collections keyed by attributes", 0.9, "textbook:date"},
	}
	for _, in := range inputs {
		_, err := f.network.AddClaim(ctx, AddClaimInput{
			SubjectID:  "relational_model",
			Body:       in.body,
			Evidence:   []domain.Citation{{Ref: in.ref}},
			Confidence: ptr(in.confidence),
		})
		require.NoError(t, err)
	}

	belief, err := f.network.CurrentBelief(ctx, "relational_model")
	require.NoError(t, err)
	assert.False(t, belief.Contested)
	assert.InDelta(t, 0.9, belief.Confidence, 1e-9)
	assert.Len(t, belief.ClaimIDs, 3)
	assert.Len(t, belief.Evidence, 3)
}

// Scenario: two directly contradicting claims of equal confidence under
// MOST_RECENT — the later assertion wins.
func TestBeliefNetwork_MostRecentScenario(t *testing.T) {
	f := newNetworkFixture(t, NetworkConfig{
		Policy:   domain.PolicyMostRecent,
		HalfLife: 720 * time.Hour,
	})
	ctx := context.Background()

	_, err := f.network.AddClaim(ctx, AddClaimInput{
		SubjectID:  "consensus",
		Body:       "Consensus improves throughput under batching",
		Confidence: ptr(0.7),
	})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)

	later, err := f.network.AddClaim(ctx, AddClaimInput{
		SubjectID:  "consensus",
		Body:       "Consensus worsens throughput under batching",
		Confidence: ptr(0.7),
	})
	require.NoError(t, err)
	require.Len(t, later.Contradicts, 1)

	belief, err := f.network.CurrentBelief(ctx, "consensus")
	require.NoError(t, err)
	assert.Equal(t, later.Claim.ID, belief.ClaimIDs[0])
}

// Scenario: a subject with zero claims resolves to an explicit empty
// result, not an error.
func TestBeliefNetwork_EmptySubject(t *testing.T) {
	f := newNetworkFixture(t, NetworkConfig{})

	belief, err := f.network.CurrentBelief(context.Background(), "consensus")
	require.NoError(t, err)
	assert.True(t, belief.Empty)
	assert.Equal(t, "consensus", belief.SubjectID)
}

// Scenario: resubmitting an identical (subject, body, creator) triple
// inside the de-dup window fails and leaves exactly one stored claim.
func TestBeliefNetwork_DuplicateClaim(t *testing.T) {
	f := newNetworkFixture(t, NetworkConfig{})
	ctx := context.Background()

	in := AddClaimInput{
		SubjectID: "consensus",
		Body:      "Paxos tolerates minority failures",
		CreatedBy: "reading_curator",
	}

	_, err := f.network.AddClaim(ctx, in)
	require.NoError(t, err)

	_, err = f.network.AddClaim(ctx, in)
	assert.ErrorIs(t, err, ErrDuplicateClaim)

	claims, err := f.claims.GetBySubject(ctx, "consensus")
	require.NoError(t, err)
	assert.Len(t, claims, 1)
}

func TestBeliefNetwork_DuplicateAllowedPastWindow(t *testing.T) {
	f := newNetworkFixture(t, NetworkConfig{})
	ctx := context.Background()

	in := AddClaimInput{
		SubjectID: "consensus",
		Body:      "Paxos tolerates minority failures",
		CreatedBy: "reading_curator",
	}

	_, err := f.network.AddClaim(ctx, in)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)

	_, err = f.network.AddClaim(ctx, in)
	assert.NoError(t, err, "resubmission after the window is a fresh claim")
}

func TestBeliefNetwork_StrictConfidence(t *testing.T) {
	f := newNetworkFixture(t, NetworkConfig{Strict: true})

	_, err := f.network.AddClaim(context.Background(), AddClaimInput{
		SubjectID:  "consensus",
		Body:       "Paxos tolerates minority failures",
		Confidence: ptr(1.5),
	})
	assert.ErrorIs(t, err, ErrConfidenceOutOfRange)
}

func TestBeliefNetwork_LenientConfidenceClampsAndReports(t *testing.T) {
	f := newNetworkFixture(t, NetworkConfig{})

	var observedSupplied, observedClamped float64
	f.network.SetObserver(func(subjectID string, supplied, clamped float64) {
		observedSupplied, observedClamped = supplied, clamped
	})

	result, err := f.network.AddClaim(context.Background(), AddClaimInput{
		SubjectID:  "consensus",
		Body:       "Paxos tolerates minority failures",
		Confidence: ptr(1.5),
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Claim.Confidence)
	assert.Equal(t, 1.5, observedSupplied)
	assert.Equal(t, 1.0, observedClamped)
}

func TestBeliefNetwork_CurrentBeliefDeterministic(t *testing.T) {
	f := newNetworkFixture(t, NetworkConfig{Policy: domain.PolicyHighestConfidence})
	ctx := context.Background()

	for _, body := range []string{
		"Raft elects a leader per term",
		"Paxos tolerates minority failures",
	} {
		_, err := f.network.AddClaim(ctx, AddClaimInput{
			SubjectID:  "consensus",
			Body:       body,
			Confidence: ptr(0.7),
		})
		require.NoError(t, err)
	}

	first, err := f.network.CurrentBelief(ctx, "consensus")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := f.network.CurrentBelief(ctx, "consensus")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestBeliefNetwork_AgainstOverridesComparisonSet(t *testing.T) {
	f := newNetworkFixture(t, NetworkConfig{})
	ctx := context.Background()

	_, err := f.network.AddClaim(ctx, AddClaimInput{
		SubjectID:  "concurrency_control",
		Body:       "Two-phase locking guarantees serializability",
		Confidence: ptr(0.8),
	})
	require.NoError(t, err)

	// An explicitly empty override set suppresses comparison against the
	// stored claim.
	result, err := f.network.AddClaim(ctx, AddClaimInput{
		SubjectID: "concurrency_control",
		Body:      "Two-phase locking does not guarantee serializability",
		Against:   []domain.Claim{},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Contradicts)
}

func TestBeliefNetwork_Explain(t *testing.T) {
	f := newNetworkFixture(t, NetworkConfig{
		Policy:   domain.PolicyHighestConfidence,
		HalfLife: 720 * time.Hour,
	})
	ctx := context.Background()

	_, err := f.network.AddClaim(ctx, AddClaimInput{
		SubjectID:  "concurrency_control",
		Body:       "Two-phase locking guarantees serializability",
		Confidence: ptr(0.8),
	})
	require.NoError(t, err)

	_, err = f.network.AddClaim(ctx, AddClaimInput{
		SubjectID: "concurrency_control",
		Body:      "Two-phase locking does not guarantee serializability",
	})
	require.NoError(t, err)

	explanation, err := f.network.Explain(ctx, "concurrency_control")
	require.NoError(t, err)
	assert.Len(t, explanation.Claims, 2)
	assert.Len(t, explanation.Edges, 1, "symmetric links collapse to one edge")
	require.NotNil(t, explanation.Resolved)
	assert.False(t, explanation.Resolved.Empty)

	for _, trace := range explanation.Claims {
		assert.Equal(t, domain.ConfidenceCategory(trace.DecayedConfidence), trace.Category)
	}
}

func TestBeliefNetwork_RecomputeDecayPersists(t *testing.T) {
	f := newNetworkFixture(t, NetworkConfig{
		Policy:   domain.PolicyHighestConfidence,
		HalfLife: 24 * time.Hour,
	})
	ctx := context.Background()

	added, err := f.network.AddClaim(ctx, AddClaimInput{
		SubjectID:  "consensus",
		Body:       "Paxos tolerates minority failures",
		Confidence: ptr(0.8),
	})
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)

	result, err := f.network.RecomputeDecay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ClaimsUpdated)

	stored, err := f.claims.GetByID(ctx, added.Claim.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, stored.Confidence, 1e-9)
	require.NotNil(t, stored.DecayedAt)

	// Reading right after recompute must not decay a second time.
	belief, err := f.network.CurrentBelief(ctx, "consensus")
	require.NoError(t, err)
	assert.InDelta(t, 0.4, belief.Confidence, 1e-9)
}

func TestBeliefNetwork_Listings(t *testing.T) {
	f := newNetworkFixture(t, NetworkConfig{HalfLife: 720 * time.Hour})
	ctx := context.Background()

	_, err := f.network.AddClaim(ctx, AddClaimInput{
		SubjectID:  "consensus",
		Body:       "Paxos tolerates minority failures",
		Confidence: ptr(0.9),
	})
	require.NoError(t, err)

	_, err = f.network.AddClaim(ctx, AddClaimInput{
		SubjectID:  "relational_model",
		Body:       "Normalization reduces redundancy across relations",
		Confidence: ptr(0.3),
	})
	require.NoError(t, err)

	high, err := f.network.HighConfidenceClaims(ctx, 0.7)
	require.NoError(t, err)
	require.Len(t, high, 1)
	assert.Equal(t, "consensus", high[0].Claim.SubjectID)

	controversial, err := f.network.ControversialClaims(ctx, 0.6, 1)
	require.NoError(t, err)
	require.Len(t, controversial, 1)
	assert.Equal(t, "relational_model", controversial[0].Claim.SubjectID)
}

func TestBeliefNetwork_Export(t *testing.T) {
	f := newNetworkFixture(t, NetworkConfig{
		Policy:   domain.PolicyMerge,
		HalfLife: 720 * time.Hour,
	})
	ctx := context.Background()

	_, err := f.network.AddClaim(ctx, AddClaimInput{
		SubjectID:  "consensus",
		Body:       "Paxos tolerates minority failures",
		Confidence: ptr(0.9),
	})
	require.NoError(t, err)

	export, err := f.network.ExportBeliefs(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PolicyMerge, export.Config.Policy)
	assert.Equal(t, 1, export.Statistics.TotalClaims)
	assert.Equal(t, 1, export.Statistics.HighConfidence)
	assert.Contains(t, export.Subjects, "consensus")
}

func TestBeliefNetwork_ConcurrentSubjectsIndependent(t *testing.T) {
	f := newNetworkFixture(t, NetworkConfig{HalfLife: 720 * time.Hour})
	ctx := context.Background()

	var wg sync.WaitGroup
	subjects := []string{"concurrency_control", "relational_model", "consensus"}
	for _, subjectID := range subjects {
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(subjectID string, i int) {
				defer wg.Done()
				_, err := f.network.AddClaim(ctx, AddClaimInput{
					SubjectID: subjectID,
					Body:      "Concurrent claim body number " + string(rune('a'+i)),
					CreatedBy: "writer-" + string(rune('a'+i)),
				})
				assert.NoError(t, err)
			}(subjectID, i)
		}
	}
	wg.Wait()

	for _, subjectID := range subjects {
		claims, err := f.claims.GetBySubject(ctx, subjectID)
		require.NoError(t, err)
		assert.Len(t, claims, 10)
	}
}
