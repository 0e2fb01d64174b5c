package models

import "time"

// Pledge is a recurring giving commitment attached to a donor.
type Pledge struct {
	ID          int64     `db:"id" json:"id"`
	DonorID     int64     `db:"donor_id" json:"donorId"`
	AmountCents int64     `db:"amount_cents" json:"amountCents"`
	Frequency   string    `db:"frequency" json:"frequency"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// DonorTask is a follow-up task attached to a donor.
type DonorTask struct {
	ID        int64     `db:"id" json:"id"`
	DonorID   int64     `db:"donor_id" json:"donorId"`
	Title     string    `db:"title" json:"title"`
	Status    string    `db:"status" json:"status"`
	DueAt     *time.Time `db:"due_at" json:"dueAt"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// DonorFile is a stored document attached to a donor.
type DonorFile struct {
	ID        int64     `db:"id" json:"id"`
	DonorID   int64     `db:"donor_id" json:"donorId"`
	FileName  string    `db:"file_name" json:"fileName"`
	FileKey   string    `db:"file_key" json:"fileKey"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
