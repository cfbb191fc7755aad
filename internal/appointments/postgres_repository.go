package appointments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgUniqueViolation is the Postgres error code raised by the partial unique
// index on (doctor_id, slot_date, slot_time) WHERE NOT cancelled.
const pgUniqueViolation = "23505"

// querier is the subset of pgxpool.Pool the repository needs. pgxmock
// satisfies it in tests.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository stores appointments in the relational database.
type PostgresRepository struct {
	db querier
}

// NewPostgresRepository initializes a ledger backed by a pgx pool (or any
// compatible querier, which is how tests inject pgxmock).
func NewPostgresRepository(db querier) *PostgresRepository {
	if db == nil {
		panic("appointments: pgx querier required")
	}
	return &PostgresRepository{db: db}
}

// CreateProvisional inserts the row and relies on the unique index to reject
// a concurrent claim for the same slot. The index violation is the signal;
// there is no pre-read.
func (r *PostgresRepository) CreateProvisional(ctx context.Context, appt *Appointment) error {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	query := `
		INSERT INTO appointments
			(id, patient_id, doctor_id, slot_date, slot_time, amount, payment_method, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		appt.ID,
		appt.PatientID,
		appt.DoctorID,
		appt.SlotDate,
		appt.SlotTime,
		appt.Amount,
		appt.PaymentMethod,
		StatusProvisional,
	).Scan(&appt.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrSlotTaken
		}
		return fmt.Errorf("appointments: insert failed: %w", err)
	}
	appt.Status = StatusProvisional
	return nil
}

// Confirm attaches the payment order reference and promotes the row.
func (r *PostgresRepository) Confirm(ctx context.Context, id uuid.UUID, orderRef string) error {
	query := `
		UPDATE appointments
		SET payment_order_ref = $2, status = $3
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, orderRef, StatusConfirmed)
	if err != nil {
		return fmt.Errorf("appointments: confirm failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the row entirely (compensation path).
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("appointments: delete failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const apptColumns = `id, patient_id, doctor_id, slot_date, slot_time, amount,
	payment_method, COALESCE(payment_order_ref, ''), status, cancelled, completed, created_at`

// GetByID fetches one appointment.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := `SELECT ` + apptColumns + ` FROM appointments WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// GetBySlot fetches the live appointment holding a slot, if any.
func (r *PostgresRepository) GetBySlot(ctx context.Context, key SlotKey) (*Appointment, error) {
	query := `
		SELECT ` + apptColumns + `
		FROM appointments
		WHERE doctor_id = $1 AND slot_date = $2 AND slot_time = $3 AND NOT cancelled
	`
	return r.scanOne(r.db.QueryRow(ctx, query, key.DoctorID, key.SlotDate, key.SlotTime))
}

// ListByPatient returns the patient's appointments, newest first.
func (r *PostgresRepository) ListByPatient(ctx context.Context, patientID string) ([]*Appointment, error) {
	query := `
		SELECT ` + apptColumns + `
		FROM appointments
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("appointments: list failed: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		var appt Appointment
		if err := rows.Scan(
			&appt.ID, &appt.PatientID, &appt.DoctorID, &appt.SlotDate, &appt.SlotTime,
			&appt.Amount, &appt.PaymentMethod, &appt.PaymentOrderRef,
			&appt.Status, &appt.Cancelled, &appt.Completed, &appt.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("appointments: scan failed: %w", err)
		}
		out = append(out, &appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: rows: %w", err)
	}
	return out, nil
}

// Cancel flags the row cancelled. The partial unique index ignores cancelled
// rows, so the slot becomes claimable again.
func (r *PostgresRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE appointments SET cancelled = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("appointments: cancel failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) scanOne(row pgx.Row) (*Appointment, error) {
	var appt Appointment
	err := row.Scan(
		&appt.ID, &appt.PatientID, &appt.DoctorID, &appt.SlotDate, &appt.SlotTime,
		&appt.Amount, &appt.PaymentMethod, &appt.PaymentOrderRef,
		&appt.Status, &appt.Cancelled, &appt.Completed, &appt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: select failed: %w", err)
	}
	return &appt, nil
}
