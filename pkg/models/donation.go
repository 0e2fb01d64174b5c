package models

import (
	"strings"
	"time"
)

const (
	ResolutionStatusPending  = "pending"
	ResolutionStatusResolved = "resolved"
)

// Donation is an ingested transaction carrying a snapshot of the donor
// fields as entered. DonorID is nil until the donation is resolved.
type Donation struct {
	ID               int64     `db:"id" json:"id"`
	BatchID          int64     `db:"batch_id" json:"batchId"`
	AmountCents      int64     `db:"amount_cents" json:"amountCents"`
	DonorID          *int64    `db:"donor_id" json:"donorId"`
	ResolutionStatus string    `db:"resolution_status" json:"resolutionStatus"`
	FirstName        string    `db:"first_name" json:"firstName"`
	LastName         string    `db:"last_name" json:"lastName"`
	Email            string    `db:"email" json:"email"`
	Phone            string    `db:"phone" json:"phone"`
	Address          string    `db:"address" json:"address"`
	City             string    `db:"city" json:"city"`
	State            string    `db:"state" json:"state"`
	Zip              string    `db:"zip" json:"zip"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}

// IsResolved reports whether the donation is attributed to a donor.
func (d *Donation) IsResolved() bool {
	return d.DonorID != nil && d.ResolutionStatus == ResolutionStatusResolved
}

// HasUsableEmail reports whether the snapshot email is worth matching on.
func (d *Donation) HasUsableEmail() bool {
	return len(d.Email) > 5 && strings.Contains(d.Email, "@")
}
