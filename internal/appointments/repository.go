package appointments

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSlotTaken is returned when the atomic claim loses to a concurrent
	// booking for the same (doctor, date, time).
	ErrSlotTaken = errors.New("appointments: slot already booked")

	// ErrNotFound is returned when no appointment matches.
	ErrNotFound = errors.New("appointments: not found")
)

// Repository is the slot ledger contract. CreateProvisional must perform the
// uniqueness check and the write as one indivisible operation; callers never
// pre-read for correctness.
type Repository interface {
	CreateProvisional(ctx context.Context, appt *Appointment) error
	Confirm(ctx context.Context, id uuid.UUID, orderRef string) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetBySlot(ctx context.Context, key SlotKey) (*Appointment, error)
	ListByPatient(ctx context.Context, patientID string) ([]*Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID) error
}

// InMemoryRepository keeps the ledger in process memory. The mutex is the
// storage engine's own serialization, playing the role the unique index plays
// in Postgres; orchestrator code never takes a lock.
type InMemoryRepository struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*Appointment
	bySlot map[SlotKey]uuid.UUID
}

// NewInMemoryRepository creates an empty in-memory ledger.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byID:   make(map[uuid.UUID]*Appointment),
		bySlot: make(map[SlotKey]uuid.UUID),
	}
}

// CreateProvisional claims the slot or fails with ErrSlotTaken.
func (r *InMemoryRepository) CreateProvisional(ctx context.Context, appt *Appointment) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	key := appt.SlotKey()
	if existingID, ok := r.bySlot[key]; ok {
		if existing := r.byID[existingID]; existing != nil && !existing.Cancelled {
			return ErrSlotTaken
		}
	}
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	appt.Status = StatusProvisional
	appt.CreatedAt = time.Now().UTC()

	stored := *appt
	r.byID[appt.ID] = &stored
	r.bySlot[key] = appt.ID
	return nil
}

// Confirm attaches the payment order reference and promotes the row.
func (r *InMemoryRepository) Confirm(ctx context.Context, id uuid.UUID, orderRef string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	appt.PaymentOrderRef = orderRef
	appt.Status = StatusConfirmed
	return nil
}

// Delete removes the row entirely. Used by the compensation path.
func (r *InMemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	if current, ok := r.bySlot[appt.SlotKey()]; ok && current == id {
		delete(r.bySlot, appt.SlotKey())
	}
	return nil
}

// GetByID returns a copy of the stored appointment.
func (r *InMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *appt
	return &out, nil
}

// GetBySlot returns the non-cancelled appointment holding the slot, if any.
func (r *InMemoryRepository) GetBySlot(ctx context.Context, key SlotKey) (*Appointment, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.bySlot[key]
	if !ok {
		return nil, ErrNotFound
	}
	appt, ok := r.byID[id]
	if !ok || appt.Cancelled {
		return nil, ErrNotFound
	}
	out := *appt
	return &out, nil
}

// ListByPatient returns the patient's appointments, newest first.
func (r *InMemoryRepository) ListByPatient(ctx context.Context, patientID string) ([]*Appointment, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Appointment
	for _, appt := range r.byID {
		if appt.PatientID == patientID {
			cp := *appt
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Cancel flags the row cancelled, freeing the slot for new claims.
func (r *InMemoryRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	appt.Cancelled = true
	if current, ok := r.bySlot[appt.SlotKey()]; ok && current == id {
		delete(r.bySlot, appt.SlotKey())
	}
	return nil
}
