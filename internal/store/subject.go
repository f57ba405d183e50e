package store

import (
	"context"
	"errors"

	"github.com/coursegen/worldmodel/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubjectStore is the host's concept registry. The belief network only uses
// it through the SubjectRegistry capability.
type SubjectStore struct {
	db *pgxpool.Pool
}

func NewSubjectStore(db *pgxpool.Pool) *SubjectStore {
	return &SubjectStore{db: db}
}

func (s *SubjectStore) Create(ctx context.Context, subj *domain.Subject) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO subjects (id, name) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
		 RETURNING created_at`,
		subj.ID, subj.Name,
	).Scan(&subj.CreatedAt)
}

func (s *SubjectStore) GetByID(ctx context.Context, id string) (*domain.Subject, error) {
	subj := &domain.Subject{}
	err := s.db.QueryRow(ctx,
		`SELECT id, name, created_at FROM subjects WHERE id = $1`,
		id,
	).Scan(&subj.ID, &subj.Name, &subj.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return subj, nil
}

func (s *SubjectStore) SubjectExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM subjects WHERE id = $1)`,
		id,
	).Scan(&exists)
	return exists, err
}
