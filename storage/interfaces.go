package storage

import (
	"context"
	"errors"

	"yacht-platform/models"
)

// ErrNotFound is returned when a listing lookup matches no row.
var ErrNotFound = errors.New("listing not found")

// ListingTx is the transactional handle handed to a batch run. Writes made
// through it become visible only if the enclosing WithTx commits.
type ListingTx interface {
	// FetchActiveListings returns every listing not flagged as a duplicate,
	// in insertion order.
	FetchActiveListings(ctx context.Context) ([]*models.Listing, error)
	// SaveMutations persists the score of each listing and sets is_duplicate
	// where the listing carries it. A stored flag is never cleared.
	SaveMutations(ctx context.Context, listings []*models.Listing) error
}

// ListingStore is the interface any listing storage backend must satisfy.
type ListingStore interface {
	// WithTx runs fn inside a transaction: committed when fn returns nil,
	// rolled back when it returns an error or panics.
	WithTx(ctx context.Context, fn func(ListingTx) error) error

	Insert(ctx context.Context, listings []*models.Listing) error
	Get(ctx context.Context, id int64) (*models.Listing, error)
	Query(ctx context.Context, f ListingFilter) ([]*models.Listing, int, error)
	ActiveListings(ctx context.Context) ([]*models.Listing, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// ListingFilter narrows a listing query. Zero values mean "no constraint".
type ListingFilter struct {
	Brand    string
	Location string
	MinPrice float64
	MaxPrice float64
	MinYear  int
	MaxYear  int
	Skip     int
	Limit    int
}

const (
	defaultLimit = 50
	maxLimit     = 200
)

func (f ListingFilter) limit() int {
	if f.Limit <= 0 {
		return defaultLimit
	}
	if f.Limit > maxLimit {
		return maxLimit
	}
	return f.Limit
}

// Stats holds listing counts.
type Stats struct {
	TotalListings     int `db:"total_listings" json:"total_listings"`
	ActiveListings    int `db:"active_listings" json:"active_listings"`
	DuplicateListings int `db:"duplicate_listings" json:"duplicate_listings"`
}
