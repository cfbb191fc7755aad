// Package patients resolves caller identities for the booking core. Account
// registration and profile management live elsewhere; the orchestrator only
// needs lookup.
package patients

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrPatientNotFound is returned when the id resolves to nothing.
var ErrPatientNotFound = errors.New("patients: not found")

// Patient is the read-only view the booking core consumes.
type Patient struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository looks up patients by id.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Patient, error)
}

// InMemoryRepository is a map-backed Repository for dev and tests.
type InMemoryRepository struct {
	mu       sync.RWMutex
	patients map[string]*Patient
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{patients: make(map[string]*Patient)}
}

// Put stores or replaces a patient.
func (r *InMemoryRepository) Put(p *Patient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.patients[p.ID] = &cp
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Patient, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

// PostgresRepository reads patients from the relational database.
type PostgresRepository struct {
	db rowQuerier
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func NewPostgresRepository(db rowQuerier) *PostgresRepository {
	if db == nil {
		panic("patients: pgx querier required")
	}
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Patient, error) {
	query := `SELECT id, name, email, created_at FROM patients WHERE id = $1`
	var p Patient
	err := r.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("patients: select failed: %w", err)
	}
	return &p, nil
}
