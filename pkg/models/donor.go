package models

import "time"

// Donor is a canonical donor identity. Optional text fields are stored as
// empty strings rather than NULLs.
type Donor struct {
	ID        int64     `db:"id" json:"id"`
	FirstName string    `db:"first_name" json:"firstName"`
	LastName  string    `db:"last_name" json:"lastName"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	Address   string    `db:"address" json:"address"`
	City      string    `db:"city" json:"city"`
	State     string    `db:"state" json:"state"`
	Zip       string    `db:"zip" json:"zip"`
	Bio       string    `db:"bio" json:"bio"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// DisplayName returns the donor's name for review surfaces.
func (d *Donor) DisplayName() string {
	switch {
	case d.FirstName != "" && d.LastName != "":
		return d.FirstName + " " + d.LastName
	case d.LastName != "":
		return d.LastName
	case d.FirstName != "":
		return d.FirstName
	default:
		return d.Email
	}
}
