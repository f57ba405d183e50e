package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coursegen/worldmodel/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ClaimStore persists claims in Postgres. Insertion order is tracked by the
// seq column so GetBySubject can return claims in the order they arrived
// regardless of asserted_at skew.
type ClaimStore struct {
	db          *pgxpool.Pool
	dedupWindow time.Duration
}

func NewClaimStore(db *pgxpool.Pool, dedupWindow time.Duration) *ClaimStore {
	return &ClaimStore{db: db, dedupWindow: dedupWindow}
}

func (s *ClaimStore) Put(ctx context.Context, c *domain.Claim) error {
	if s.dedupWindow > 0 {
		var dup bool
		err := s.db.QueryRow(ctx,
			`SELECT EXISTS (
			   SELECT 1 FROM claims
			   WHERE subject_id = $1 AND body = $2 AND created_by = $3
			     AND created_at > NOW() - $4::interval
			 )`,
			c.SubjectID, c.Body, c.CreatedBy, s.dedupWindow,
		).Scan(&dup)
		if err != nil {
			return fmt.Errorf("dedup check: %w", err)
		}
		if dup {
			return ErrDuplicateClaim
		}
	}

	if c.Evidence == nil {
		c.Evidence = []domain.Citation{}
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO claims (subject_id, body, evidence, confidence, asserted_at, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		c.SubjectID, c.Body, c.Evidence, c.Confidence, c.AssertedAt, c.CreatedBy,
	).Scan(&c.ID, &c.CreatedAt)
}

func (s *ClaimStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Claim, error) {
	c := &domain.Claim{}
	err := s.db.QueryRow(ctx,
		`SELECT id, subject_id, body, evidence, confidence, asserted_at, decayed_at, created_by, created_at
		 FROM claims WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.SubjectID, &c.Body, &c.Evidence, &c.Confidence, &c.AssertedAt, &c.DecayedAt, &c.CreatedBy, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	links, err := s.contradictionsFor(ctx, []uuid.UUID{c.ID})
	if err != nil {
		return nil, err
	}
	c.Contradicts = links[c.ID]
	return c, nil
}

func (s *ClaimStore) GetBySubject(ctx context.Context, subjectID string) ([]domain.Claim, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, subject_id, body, evidence, confidence, asserted_at, decayed_at, created_by, created_at
		 FROM claims WHERE subject_id = $1
		 ORDER BY seq`,
		subjectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []domain.Claim
	var ids []uuid.UUID
	for rows.Next() {
		var c domain.Claim
		if err := rows.Scan(&c.ID, &c.SubjectID, &c.Body, &c.Evidence, &c.Confidence, &c.AssertedAt, &c.DecayedAt, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, err
		}
		claims = append(claims, c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(claims) == 0 {
		return claims, nil
	}

	links, err := s.contradictionsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range claims {
		claims[i].Contradicts = links[claims[i].ID]
	}
	return claims, nil
}

func (s *ClaimStore) contradictionsFor(ctx context.Context, claimIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	rows, err := s.db.Query(ctx,
		`SELECT claim_id, contradicts_id FROM claim_contradictions
		 WHERE claim_id = ANY($1)
		 ORDER BY detected_at, contradicts_id`,
		claimIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("load contradictions: %w", err)
	}
	defer rows.Close()

	links := make(map[uuid.UUID][]uuid.UUID)
	for rows.Next() {
		var from, to uuid.UUID
		if err := rows.Scan(&from, &to); err != nil {
			return nil, err
		}
		links[from] = append(links[from], to)
	}
	return links, rows.Err()
}

// LinkContradiction writes both directions of the contradiction in one
// transaction. ON CONFLICT DO NOTHING makes repeat calls no-ops.
func (s *ClaimStore) LinkContradiction(ctx context.Context, a, b uuid.UUID, detectedAt time.Time) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, pair := range [][2]uuid.UUID{{a, b}, {b, a}} {
		if _, err := tx.Exec(ctx,
			`INSERT INTO claim_contradictions (claim_id, contradicts_id, detected_at)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (claim_id, contradicts_id) DO NOTHING`,
			pair[0], pair[1], detectedAt,
		); err != nil {
			return fmt.Errorf("link contradiction: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *ClaimStore) ListSubjects(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT subject_id FROM claims ORDER BY subject_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subjects []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		subjects = append(subjects, id)
	}
	return subjects, rows.Err()
}

func (s *ClaimStore) UpdateConfidence(ctx context.Context, id uuid.UUID, confidence float64, decayedAt time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE claims SET confidence = $2, decayed_at = $3 WHERE id = $1`,
		id, confidence, decayedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
