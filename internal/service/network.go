package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/coursegen/worldmodel/internal/domain"
	"github.com/coursegen/worldmodel/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSubjectUnknown       = errors.New("unknown subject")
	ErrSubjectMissing       = errors.New("subject_id is required")
	ErrBodyEmpty            = errors.New("claim body is required")
	ErrConfidenceOutOfRange = errors.New("confidence out of range")
)

// ErrDuplicateClaim re-exports the store sentinel so callers can match it
// without importing the store package.
var ErrDuplicateClaim = store.ErrDuplicateClaim

// defaultCreator attributes claims recorded without an explicit agent,
// matching what the ingestion tools have always written.
const defaultCreator = "tool"

// ObserverFunc is the observability hook invoked when lenient mode clamps
// an out-of-range confidence instead of failing the call.
type ObserverFunc func(subjectID string, supplied, clamped float64)

// NetworkConfig is the construction-time configuration of a BeliefNetwork.
// Zero values select the documented defaults.
type NetworkConfig struct {
	Policy                 domain.ResolutionPolicy
	HalfLife               time.Duration
	ConfidenceFloor        float64
	MergeTopK              int
	NegationTokenThreshold int
	Antonyms               map[string]string
	// Strict makes an explicit out-of-range confidence a hard error.
	// The default (lenient) mode clamps and reports via the observer.
	Strict bool
}

// BeliefNetwork coordinates the confidence model, contradiction detector,
// resolution policy and claim store behind the three operations collaborators
// consume: AddClaim, CurrentBelief and Explain.
//
// Writes to one subject are serialized through a per-subject lock so a
// contradiction scan never interleaves with another insert for the same
// subject; different subjects proceed concurrently.
type BeliefNetwork struct {
	claims   domain.ClaimStore
	registry domain.SubjectRegistry
	clock    domain.Clock
	model    ConfidenceModel
	detector *Detector
	resolver *Resolver
	strict   bool
	observer ObserverFunc
	logger   *zap.Logger

	mu          sync.Mutex
	subjectLock map[string]*sync.Mutex
}

func NewBeliefNetwork(claims domain.ClaimStore, registry domain.SubjectRegistry, clock domain.Clock, cfg NetworkConfig, logger *zap.Logger) *BeliefNetwork {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if cfg.Policy == "" {
		cfg.Policy = domain.PolicyHighestConfidence
	}
	detector := NewDetector(cfg.NegationTokenThreshold, cfg.Antonyms)
	return &BeliefNetwork{
		claims:      claims,
		registry:    registry,
		clock:       clock,
		model:       NewConfidenceModel(cfg.HalfLife, cfg.ConfidenceFloor),
		detector:    detector,
		resolver:    NewResolver(cfg.Policy, cfg.MergeTopK, detector),
		strict:      cfg.Strict,
		logger:      logger,
		subjectLock: make(map[string]*sync.Mutex),
	}
}

// SetObserver installs the lenient-mode clamp hook.
func (n *BeliefNetwork) SetObserver(fn ObserverFunc) {
	n.observer = fn
}

// Policy returns the resolution policy fixed for this instance.
func (n *BeliefNetwork) Policy() domain.ResolutionPolicy {
	return n.resolver.Policy
}

func (n *BeliefNetwork) lockSubject(subjectID string) *sync.Mutex {
	n.mu.Lock()
	defer n.mu.Unlock()
	l, ok := n.subjectLock[subjectID]
	if !ok {
		l = &sync.Mutex{}
		n.subjectLock[subjectID] = l
	}
	return l
}

// AddClaimInput carries one claim submission.
type AddClaimInput struct {
	SubjectID string
	Body      string
	Evidence  []domain.Citation
	CreatedBy string
	// Confidence is optional; nil selects the default initial confidence.
	Confidence *float64
	// AssertedAt is optional; nil uses the injected clock.
	AssertedAt *time.Time
	// Against overrides the comparison set for dry-run and testing. When
	// nil the store's current claims for the subject are used.
	Against []domain.Claim
}

// AddClaimResult is the stored claim plus the prior claims it contradicts.
type AddClaimResult struct {
	Claim       domain.Claim `json:"claim"`
	Contradicts []uuid.UUID  `json:"contradicts,omitempty"`
}

func (n *BeliefNetwork) AddClaim(ctx context.Context, in AddClaimInput) (*AddClaimResult, error) {
	if in.SubjectID == "" {
		return nil, ErrSubjectMissing
	}
	if in.Body == "" {
		return nil, ErrBodyEmpty
	}
	if in.CreatedBy == "" {
		in.CreatedBy = defaultCreator
	}

	confidence, err := n.initialConfidence(in.SubjectID, in.Confidence)
	if err != nil {
		return nil, err
	}

	ok, err := n.registry.SubjectExists(ctx, in.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("registry lookup: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSubjectUnknown, in.SubjectID)
	}

	lock := n.lockSubject(in.SubjectID)
	lock.Lock()
	defer lock.Unlock()

	existing := in.Against
	if existing == nil {
		existing, err = n.claims.GetBySubject(ctx, in.SubjectID)
		if err != nil {
			return nil, fmt.Errorf("load existing claims: %w", err)
		}
	}

	now := n.clock.Now()
	assertedAt := now
	if in.AssertedAt != nil {
		assertedAt = *in.AssertedAt
	}

	claim := domain.Claim{
		SubjectID:  in.SubjectID,
		Body:       in.Body,
		Evidence:   stampEvidence(in.Evidence, now),
		Confidence: confidence,
		AssertedAt: assertedAt,
		CreatedBy:  in.CreatedBy,
	}

	var contradicted []uuid.UUID
	for i := range existing {
		if n.detector.Compare(&claim, &existing[i]) {
			contradicted = append(contradicted, existing[i].ID)
		}
	}

	if err := n.claims.Put(ctx, &claim); err != nil {
		return nil, err
	}

	for _, id := range contradicted {
		if err := n.claims.LinkContradiction(ctx, claim.ID, id, now); err != nil {
			return nil, fmt.Errorf("link contradiction: %w", err)
		}
	}
	claim.Contradicts = contradicted

	if len(contradicted) > 0 {
		n.logger.Warn("claim contradicts existing claims",
			zap.String("subject_id", in.SubjectID),
			zap.String("claim_id", claim.ID.String()),
			zap.Int("contradictions", len(contradicted)))
	}

	return &AddClaimResult{Claim: claim, Contradicts: contradicted}, nil
}

// initialConfidence validates or defaults the supplied confidence. Strict
// mode rejects out-of-range values; lenient mode clamps and reports.
func (n *BeliefNetwork) initialConfidence(subjectID string, explicit *float64) (float64, error) {
	if explicit != nil && (*explicit < 0 || *explicit > 1) {
		if n.strict {
			return 0, fmt.Errorf("%w: %g", ErrConfidenceOutOfRange, *explicit)
		}
		clamped := ClampConfidence(*explicit)
		n.logger.Warn("clamped out-of-range confidence",
			zap.String("subject_id", subjectID),
			zap.Float64("supplied", *explicit),
			zap.Float64("clamped", clamped))
		if n.observer != nil {
			n.observer(subjectID, *explicit, clamped)
		}
		return clamped, nil
	}
	return n.model.Initial(explicit), nil
}

// CurrentBelief resolves the subject's claims under the configured policy.
// A subject with no claims yields an explicit empty result, not an error.
func (n *BeliefNetwork) CurrentBelief(ctx context.Context, subjectID string) (*domain.ResolvedBelief, error) {
	claims, err := n.claims.GetBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return n.resolver.Resolve(subjectID, n.decayAll(claims)), nil
}

// ClaimTrace is one claim as seen by Explain: stored record plus its
// read-time decayed confidence.
type ClaimTrace struct {
	Claim             domain.Claim `json:"claim"`
	DecayedConfidence float64      `json:"decayed_confidence"`
	Category          string       `json:"category"`
	EvidenceStrength  float64      `json:"evidence_strength"`
}

// Explanation is the structured debugging trace for one subject.
type Explanation struct {
	SubjectID string                 `json:"subject_id"`
	Claims    []ClaimTrace           `json:"claims"`
	Edges     [][2]uuid.UUID         `json:"contradiction_edges,omitempty"`
	Resolved  *domain.ResolvedBelief `json:"resolved"`
}

// Explain returns every claim for a subject with decayed confidences and
// the contradiction edges among them, plus the resolved belief.
func (n *BeliefNetwork) Explain(ctx context.Context, subjectID string) (*Explanation, error) {
	claims, err := n.claims.GetBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	decayed := n.decayAll(claims)
	out := &Explanation{SubjectID: subjectID}
	seen := make(map[[2]uuid.UUID]struct{})
	for i := range decayed {
		out.Claims = append(out.Claims, ClaimTrace{
			Claim:             decayed[i],
			DecayedConfidence: decayed[i].Confidence,
			Category:          domain.ConfidenceCategory(decayed[i].Confidence),
			EvidenceStrength:  EvidenceStrength(decayed[i].Evidence),
		})
		for _, other := range decayed[i].Contradicts {
			edge := orderEdge(decayed[i].ID, other)
			if _, dup := seen[edge]; dup {
				continue
			}
			seen[edge] = struct{}{}
			out.Edges = append(out.Edges, edge)
		}
	}
	out.Resolved = n.resolver.Resolve(subjectID, decayed)
	return out, nil
}

// decayAll returns snapshots with confidence evaluated at the current
// instant. The stored records are untouched.
func (n *BeliefNetwork) decayAll(claims []domain.Claim) []domain.Claim {
	now := n.clock.Now()
	out := make([]domain.Claim, len(claims))
	for i := range claims {
		out[i] = claims[i]
		out[i].Confidence = n.model.DecayedClaim(&claims[i], now)
	}
	return out
}

func orderEdge(a, b uuid.UUID) [2]uuid.UUID {
	if b.String() < a.String() {
		return [2]uuid.UUID{b, a}
	}
	return [2]uuid.UUID{a, b}
}

// RecomputeResult reports what an explicit decay recompute touched.
type RecomputeResult struct {
	Subjects      int `json:"subjects"`
	ClaimsUpdated int `json:"claims_updated"`
}

// RecomputeDecay persists the decayed confidence of every claim and moves
// its decay anchor to now. This is the only operation that rewrites stored
// confidence; ordinary reads always decay lazily.
func (n *BeliefNetwork) RecomputeDecay(ctx context.Context) (*RecomputeResult, error) {
	subjects, err := n.claims.ListSubjects(ctx)
	if err != nil {
		return nil, err
	}

	result := &RecomputeResult{Subjects: len(subjects)}
	for _, subjectID := range subjects {
		updated, err := n.recomputeSubject(ctx, subjectID)
		if err != nil {
			n.logger.Error("recompute failed for subject",
				zap.String("subject_id", subjectID),
				zap.Error(err))
			continue
		}
		result.ClaimsUpdated += updated
	}

	n.logger.Info("decay recompute complete",
		zap.Int("subjects", result.Subjects),
		zap.Int("claims_updated", result.ClaimsUpdated))
	return result, nil
}

func (n *BeliefNetwork) recomputeSubject(ctx context.Context, subjectID string) (int, error) {
	lock := n.lockSubject(subjectID)
	lock.Lock()
	defer lock.Unlock()

	claims, err := n.claims.GetBySubject(ctx, subjectID)
	if err != nil {
		return 0, err
	}

	now := n.clock.Now()
	updated := 0
	for i := range claims {
		decayed := n.model.DecayedClaim(&claims[i], now)
		if math.Abs(decayed-claims[i].Confidence) < 1e-9 {
			continue
		}
		if err := n.claims.UpdateConfidence(ctx, claims[i].ID, decayed, now); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// RankedClaim pairs a claim with its decayed confidence for listings.
type RankedClaim struct {
	Claim             domain.Claim `json:"claim"`
	DecayedConfidence float64      `json:"decayed_confidence"`
	Contradictions    int          `json:"contradictions"`
}

// HighConfidenceClaims lists claims across all subjects whose decayed
// confidence is at least min, strongest first.
func (n *BeliefNetwork) HighConfidenceClaims(ctx context.Context, min float64) ([]RankedClaim, error) {
	ranked, err := n.rankAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []RankedClaim
	for _, rc := range ranked {
		if rc.DecayedConfidence >= min {
			out = append(out, rc)
		}
	}
	sortRanked(out, true)
	return out, nil
}

// ControversialClaims lists claims that are weak or disputed: decayed
// confidence at or below maxConfidence, or at least minContradictions
// contradiction links. Weakest first.
func (n *BeliefNetwork) ControversialClaims(ctx context.Context, maxConfidence float64, minContradictions int) ([]RankedClaim, error) {
	ranked, err := n.rankAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []RankedClaim
	for _, rc := range ranked {
		if rc.DecayedConfidence <= maxConfidence || rc.Contradictions >= minContradictions {
			out = append(out, rc)
		}
	}
	sortRanked(out, false)
	return out, nil
}

func (n *BeliefNetwork) rankAll(ctx context.Context) ([]RankedClaim, error) {
	subjects, err := n.claims.ListSubjects(ctx)
	if err != nil {
		return nil, err
	}
	var out []RankedClaim
	for _, subjectID := range subjects {
		claims, err := n.claims.GetBySubject(ctx, subjectID)
		if err != nil {
			return nil, err
		}
		for _, c := range n.decayAll(claims) {
			out = append(out, RankedClaim{
				Claim:             c,
				DecayedConfidence: c.Confidence,
				Contradictions:    len(c.Contradicts),
			})
		}
	}
	return out, nil
}

// Export is a full snapshot of the network: per-subject traces, the active
// configuration and summary statistics.
type Export struct {
	Subjects   map[string]*Explanation `json:"subjects"`
	Config     ExportConfig            `json:"config"`
	Statistics ExportStatistics        `json:"statistics"`
}

type ExportConfig struct {
	Policy          domain.ResolutionPolicy `json:"policy"`
	HalfLife        string                  `json:"half_life"`
	ConfidenceFloor float64                 `json:"confidence_floor"`
	MergeTopK       int                     `json:"merge_top_k"`
	TokenThreshold  int                     `json:"negation_token_threshold"`
	Strict          bool                    `json:"strict"`
}

type ExportStatistics struct {
	TotalClaims        int `json:"total_claims"`
	HighConfidence     int `json:"high_confidence"`
	Controversial      int `json:"controversial"`
	WithContradictions int `json:"with_contradictions"`
}

// ExportBeliefs snapshots every subject. Thresholds for the statistics
// match the reference summary: high ≥ 0.7, controversial ≤ 0.6 or any
// contradiction.
func (n *BeliefNetwork) ExportBeliefs(ctx context.Context) (*Export, error) {
	subjects, err := n.claims.ListSubjects(ctx)
	if err != nil {
		return nil, err
	}

	out := &Export{
		Subjects: make(map[string]*Explanation, len(subjects)),
		Config: ExportConfig{
			Policy:          n.resolver.Policy,
			HalfLife:        n.model.HalfLife.String(),
			ConfidenceFloor: n.model.Floor,
			MergeTopK:       n.resolver.TopK,
			TokenThreshold:  n.detector.TokenThreshold,
			Strict:          n.strict,
		},
	}

	for _, subjectID := range subjects {
		expl, err := n.Explain(ctx, subjectID)
		if err != nil {
			return nil, err
		}
		out.Subjects[subjectID] = expl
		for _, tr := range expl.Claims {
			out.Statistics.TotalClaims++
			if tr.DecayedConfidence >= 0.7 {
				out.Statistics.HighConfidence++
			}
			if tr.DecayedConfidence <= 0.6 || len(tr.Claim.Contradicts) > 0 {
				out.Statistics.Controversial++
			}
			if len(tr.Claim.Contradicts) > 0 {
				out.Statistics.WithContradictions++
			}
		}
	}
	return out, nil
}

func stampEvidence(evidence []domain.Citation, now time.Time) []domain.Citation {
	out := make([]domain.Citation, len(evidence))
	for i, cit := range evidence {
		out[i] = cit
		if out[i].AddedAt.IsZero() {
			out[i].AddedAt = now
		}
	}
	return out
}

// sortRanked orders listings by decayed confidence; the stable sort keeps
// ties in subject/insertion order.
func sortRanked(ranked []RankedClaim, desc bool) {
	sort.SliceStable(ranked, func(i, j int) bool {
		if desc {
			return ranked[i].DecayedConfidence > ranked[j].DecayedConfidence
		}
		return ranked[i].DecayedConfidence < ranked[j].DecayedConfidence
	})
}
