// Package appointments is the slot ledger: the durable store of booked slots.
// Uniqueness of (doctor, slot_date, slot_time) is enforced here, at the
// storage boundary, not by any in-process lock.
package appointments

import (
	"time"

	"github.com/google/uuid"
)

// Appointment lifecycle status. A row is created provisional by the
// orchestrator's atomic claim and confirmed once a payment order is attached.
// A provisional row whose payment order could not be created is deleted, not
// flagged.
const (
	StatusProvisional = "provisional"
	StatusConfirmed   = "confirmed"
)

// Appointment represents one claimed slot. Amount is the charged amount in
// currency minor units.
type Appointment struct {
	ID              uuid.UUID `json:"id"`
	PatientID       string    `json:"patient_id"`
	DoctorID        string    `json:"doctor_id"`
	SlotDate        string    `json:"slot_date"`
	SlotTime        string    `json:"slot_time"`
	Amount          int64     `json:"amount"`
	PaymentMethod   string    `json:"payment_method"`
	PaymentOrderRef string    `json:"payment_order_ref,omitempty"`
	Status          string    `json:"status"`
	Cancelled       bool      `json:"cancelled"`
	Completed       bool      `json:"completed"`
	CreatedAt       time.Time `json:"created_at"`
}

// SlotKey identifies the contended resource.
type SlotKey struct {
	DoctorID string
	SlotDate string
	SlotTime string
}

func (a *Appointment) SlotKey() SlotKey {
	return SlotKey{DoctorID: a.DoctorID, SlotDate: a.SlotDate, SlotTime: a.SlotTime}
}
