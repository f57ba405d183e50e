package store

import (
	"context"
	"sync"
	"time"

	"github.com/coursegen/worldmodel/internal/domain"
	"github.com/google/uuid"
)

// MemClaimStore is an in-memory ClaimStore with the same semantics as the
// Postgres store: insertion-order reads, de-dup window on Put, symmetric
// idempotent contradiction links. Used in tests and for embedded callers
// that don't want a database.
type MemClaimStore struct {
	mu          sync.RWMutex
	clock       domain.Clock
	dedupWindow time.Duration
	claims      []domain.Claim
	index       map[uuid.UUID]int
	links       map[uuid.UUID][]uuid.UUID
}

func NewMemClaimStore(clock domain.Clock, dedupWindow time.Duration) *MemClaimStore {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &MemClaimStore{
		clock:       clock,
		dedupWindow: dedupWindow,
		index:       make(map[uuid.UUID]int),
		links:       make(map[uuid.UUID][]uuid.UUID),
	}
}

func (s *MemClaimStore) Put(ctx context.Context, c *domain.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if s.dedupWindow > 0 {
		cutoff := now.Add(-s.dedupWindow)
		for i := range s.claims {
			prior := &s.claims[i]
			if prior.SubjectID == c.SubjectID && prior.Body == c.Body &&
				prior.CreatedBy == c.CreatedBy && prior.CreatedAt.After(cutoff) {
				return ErrDuplicateClaim
			}
		}
	}

	c.ID = uuid.New()
	c.CreatedAt = now
	if c.Evidence == nil {
		c.Evidence = []domain.Citation{}
	}

	s.index[c.ID] = len(s.claims)
	stored := *c
	stored.Evidence = append([]domain.Citation(nil), c.Evidence...)
	s.claims = append(s.claims, stored)
	return nil
}

func (s *MemClaimStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := s.snapshot(i)
	return &c, nil
}

func (s *MemClaimStore) GetBySubject(ctx context.Context, subjectID string) ([]domain.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Claim
	for i := range s.claims {
		if s.claims[i].SubjectID == subjectID {
			out = append(out, s.snapshot(i))
		}
	}
	return out, nil
}

// snapshot copies a stored claim with its contradiction set; callers never
// see the store's own records. Hold at least the read lock.
func (s *MemClaimStore) snapshot(i int) domain.Claim {
	c := s.claims[i]
	c.Evidence = append([]domain.Citation(nil), s.claims[i].Evidence...)
	c.Contradicts = append([]uuid.UUID(nil), s.links[c.ID]...)
	return c
}

func (s *MemClaimStore) LinkContradiction(ctx context.Context, a, b uuid.UUID, detectedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[a]; !ok {
		return ErrNotFound
	}
	if _, ok := s.index[b]; !ok {
		return ErrNotFound
	}

	s.addLink(a, b)
	s.addLink(b, a)
	return nil
}

func (s *MemClaimStore) addLink(from, to uuid.UUID) {
	for _, existing := range s.links[from] {
		if existing == to {
			return
		}
	}
	s.links[from] = append(s.links[from], to)
}

func (s *MemClaimStore) ListSubjects(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string
	for i := range s.claims {
		id := s.claims[i].SubjectID
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func (s *MemClaimStore) UpdateConfidence(ctx context.Context, id uuid.UUID, confidence float64, decayedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return ErrNotFound
	}
	s.claims[i].Confidence = confidence
	at := decayedAt
	s.claims[i].DecayedAt = &at
	return nil
}

// MemSubjectStore is the in-memory concept registry counterpart.
type MemSubjectStore struct {
	mu       sync.RWMutex
	clock    domain.Clock
	subjects map[string]domain.Subject
}

func NewMemSubjectStore(clock domain.Clock) *MemSubjectStore {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &MemSubjectStore{clock: clock, subjects: make(map[string]domain.Subject)}
}

func (s *MemSubjectStore) Create(ctx context.Context, subj *domain.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.subjects[subj.ID]; ok {
		subj.CreatedAt = existing.CreatedAt
	} else {
		subj.CreatedAt = s.clock.Now()
	}
	s.subjects[subj.ID] = *subj
	return nil
}

func (s *MemSubjectStore) GetByID(ctx context.Context, id string) (*domain.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subj, ok := s.subjects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &subj, nil
}

func (s *MemSubjectStore) SubjectExists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.subjects[id]
	return ok, nil
}
