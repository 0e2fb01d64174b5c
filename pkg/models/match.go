package models

import "github.com/lib/pq"

// DonorMatch is a donor row paired with its trigram similarity score.
type DonorMatch struct {
	Donor
	Score float64 `db:"score"`
}

// DonorIDGroup is a set of donor ids sharing the same key value.
type DonorIDGroup struct {
	Value    string        `db:"value"`
	Count    int           `db:"count"`
	DonorIDs pq.Int64Array `db:"donor_ids"`
}
