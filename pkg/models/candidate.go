package models

import (
	"time"

	"github.com/givestack/donorid/pkg/database"
)

const (
	CandidateReasonFuzzyName    = "fuzzy_name"
	CandidateReasonFuzzyAddress = "fuzzy_address"
)

// CandidateDetails records the values that were compared when the
// candidate was staged, for the review surface.
type CandidateDetails struct {
	QueryValue   string `json:"queryValue,omitempty"`
	MatchedValue string `json:"matchedValue,omitempty"`
}

// NewCandidateDetails wraps the compared values for the details column.
func NewCandidateDetails(queryValue, matchedValue string) database.JSONB[CandidateDetails] {
	return database.JSONB[CandidateDetails]{Data: CandidateDetails{
		QueryValue:   queryValue,
		MatchedValue: matchedValue,
	}}
}

// ResolutionCandidate is a potential donor match staged for human review.
type ResolutionCandidate struct {
	ID         int64                            `db:"id" json:"id"`
	DonationID int64                            `db:"donation_id" json:"donationId"`
	DonorID    int64                            `db:"donor_id" json:"donorId"`
	Score      float64                          `db:"score" json:"score"`
	Reason     string                           `db:"reason" json:"reason"`
	Details    database.JSONB[CandidateDetails] `db:"details" json:"details"`
	CreatedAt  time.Time                        `db:"created_at" json:"createdAt"`
}
