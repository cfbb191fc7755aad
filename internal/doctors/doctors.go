// Package doctors exposes the provider directory the booking core reads.
// Ownership of doctor records (registration, profile edits) is external; this
// package only answers "does this doctor exist, are they available, and what
// is the fee".
package doctors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDoctorNotFound is returned when the id resolves to nothing.
var ErrDoctorNotFound = errors.New("doctors: not found")

// Doctor is the read-only view the booking core consumes.
type Doctor struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Speciality string `json:"speciality"`
	Fees       int64  `json:"fees"`
	Available  bool   `json:"available"`
}

// Repository looks up doctors and toggles availability.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Doctor, error)
	List(ctx context.Context) ([]*Doctor, error)
	SetAvailability(ctx context.Context, id string, available bool) error
}

// InMemoryRepository is a map-backed Repository for dev and tests.
type InMemoryRepository struct {
	mu      sync.RWMutex
	doctors map[string]*Doctor
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{doctors: make(map[string]*Doctor)}
}

// Put stores or replaces a doctor.
func (r *InMemoryRepository) Put(d *Doctor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.doctors[d.ID] = &cp
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Doctor, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *InMemoryRepository) List(ctx context.Context) ([]*Doctor, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Doctor, 0, len(r.doctors))
	for _, d := range r.doctors {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *InMemoryRepository) SetAvailability(ctx context.Context, id string, available bool) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return ErrDoctorNotFound
	}
	d.Available = available
	return nil
}

// PostgresRepository reads doctors from the relational database.
type PostgresRepository struct {
	db querier
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func NewPostgresRepository(db querier) *PostgresRepository {
	if db == nil {
		panic("doctors: pgx querier required")
	}
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Doctor, error) {
	query := `SELECT id, name, speciality, fees, available FROM doctors WHERE id = $1`
	var d Doctor
	err := r.db.QueryRow(ctx, query, id).Scan(&d.ID, &d.Name, &d.Speciality, &d.Fees, &d.Available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("doctors: select failed: %w", err)
	}
	return &d, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*Doctor, error) {
	query := `SELECT id, name, speciality, fees, available FROM doctors ORDER BY name`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("doctors: select failed: %w", err)
	}
	defer rows.Close()

	var out []*Doctor
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Speciality, &d.Fees, &d.Available); err != nil {
			return nil, fmt.Errorf("doctors: scan failed: %w", err)
		}
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("doctors: rows failed: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) SetAvailability(ctx context.Context, id string, available bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE doctors SET available = $2 WHERE id = $1`, id, available)
	if err != nil {
		return fmt.Errorf("doctors: update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}
