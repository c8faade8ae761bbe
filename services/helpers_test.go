package services

import (
	"context"
	"io"

	"yacht-platform/config"
	"yacht-platform/models"
	"yacht-platform/storage"
	"yacht-platform/utils"
)

func newTestLogger() *utils.Logger { return utils.NewLoggerTo(io.Discard, "error") }

func newTestDeduplicator() *Deduplicator {
	return NewDeduplicator(config.DefaultRules().Matching, newTestLogger())
}

// memStore is an in-memory TxStore. Mutations saved inside WithTx are
// applied only when the callback succeeds.
type memStore struct {
	rows     []*models.Listing
	fetchErr error
	saveErr  error
	commits  int
}

func (m *memStore) WithTx(ctx context.Context, fn func(storage.ListingTx) error) error {
	tx := &memTx{store: m, staged: make(map[int64]models.Listing)}
	if err := fn(tx); err != nil {
		return err
	}
	for _, row := range m.rows {
		if l, ok := tx.staged[row.ID]; ok {
			row.IsDuplicate = l.IsDuplicate
			row.Score = l.Score
		}
	}
	m.commits++
	return nil
}

func (m *memStore) byID(id int64) *models.Listing {
	for _, row := range m.rows {
		if row.ID == id {
			return row
		}
	}
	return nil
}

type memTx struct {
	store  *memStore
	staged map[int64]models.Listing
}

func (t *memTx) FetchActiveListings(_ context.Context) ([]*models.Listing, error) {
	if t.store.fetchErr != nil {
		return nil, t.store.fetchErr
	}
	var out []*models.Listing
	for _, row := range t.store.rows {
		if !row.IsDuplicate {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (t *memTx) SaveMutations(_ context.Context, listings []*models.Listing) error {
	if t.store.saveErr != nil {
		return t.store.saveErr
	}
	for _, l := range listings {
		t.staged[l.ID] = *l
	}
	return nil
}
