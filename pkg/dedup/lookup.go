package dedup

import (
	"context"
	"sort"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/givestack/donorid/pkg/matching"
	"github.com/givestack/donorid/pkg/models"
	"github.com/givestack/donorid/pkg/tracing"
)

// lookupPoolFactor bounds the recall pool relative to the requested limit.
const lookupPoolFactor = 10

// LookupDonorStore narrows the donor table to a recall pool for ranking.
type LookupDonorStore interface {
	FindLookupPool(ctx context.Context, firstName, lastName, email, address string, limit int) ([]models.Donor, error)
}

// LookupQuery is an ad-hoc duplicate check for a donor about to be saved.
type LookupQuery struct {
	FirstName string
	LastName  string
	Email     string
	Address   string
	Limit     int
}

// LookupMatch is an existing donor ranked against the submitted fields.
type LookupMatch struct {
	Donor models.Donor `json:"donor"`
	Score float64      `json:"score"`
}

// Lookup ranks existing donors against submitted fields before a save.
type Lookup struct {
	donors       LookupDonorStore
	scorer       matching.Scorer
	defaultLimit int
	logger       ectologger.Logger
}

// NewLookup creates a new duplicate lookup. The scorer must rank with the
// same contract as the database-side trigram similarity.
func NewLookup(donors LookupDonorStore, scorer matching.Scorer, defaultLimit int, logger ectologger.Logger) *Lookup {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &Lookup{
		donors:       donors,
		scorer:       scorer,
		defaultLimit: defaultLimit,
		logger:       logger,
	}
}

// FindDuplicates fetches a recall pool from the database and ranks it with
// the injected scorer, best score first.
func (l *Lookup) FindDuplicates(ctx context.Context, query LookupQuery) ([]LookupMatch, error) {
	ctx, span := tracing.StartSpan(ctx, "dedup.Lookup.FindDuplicates")
	defer span.End()

	limit := query.Limit
	if limit <= 0 {
		limit = l.defaultLimit
	}

	pool, err := l.donors.FindLookupPool(ctx, query.FirstName, query.LastName, query.Email, query.Address, limit*lookupPoolFactor)
	if err != nil {
		return nil, err
	}

	matches := make([]LookupMatch, 0, len(pool))
	for _, donor := range pool {
		score := l.score(query, &donor)
		if score <= 0 {
			continue
		}
		matches = append(matches, LookupMatch{Donor: donor, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	l.logger.WithContext(ctx).WithFields(map[string]any{"matches": len(matches)}).Debug("Ranked duplicate lookup")
	return matches, nil
}

// score averages the similarity over the submitted fields so fuller
// agreement outranks a single matching field. An exact email match always
// ranks first.
func (l *Lookup) score(query LookupQuery, donor *models.Donor) float64 {
	if query.Email != "" && donor.Email != "" && strings.EqualFold(query.Email, donor.Email) {
		return 1.0
	}

	sum := 0.0
	fields := 0

	if query.FirstName != "" {
		sum += l.scorer.Similarity(query.FirstName, donor.FirstName)
		fields++
	}
	if query.LastName != "" {
		sum += l.scorer.Similarity(query.LastName, donor.LastName)
		fields++
	}
	if query.Email != "" {
		sum += l.scorer.Similarity(query.Email, donor.Email)
		fields++
	}
	if query.Address != "" {
		sum += l.scorer.Similarity(query.Address, donor.Address)
		fields++
	}

	if fields == 0 {
		return 0
	}
	return sum / float64(fields)
}
