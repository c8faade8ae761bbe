package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"yacht-platform/models"
	"yacht-platform/storage"
	"yacht-platform/utils"
)

// TxStore is the part of the listing store a batch run needs.
type TxStore interface {
	WithTx(ctx context.Context, fn func(storage.ListingTx) error) error
}

// Runner executes deduplication and scoring passes against the store. Each
// pass runs in one transaction, and passes never overlap.
type Runner struct {
	store   TxStore
	dedup   *Deduplicator
	scorer  *Scorer
	locker  Locker
	reports ReportCache
	logger  *utils.Logger
	now     func() time.Time
}

// NewRunner wires a Runner. A nil locker or report cache falls back to the
// in-process implementations.
func NewRunner(store TxStore, dedup *Deduplicator, scorer *Scorer, locker Locker, reports ReportCache, logger *utils.Logger) *Runner {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if reports == nil {
		reports = NewMemoryReportCache()
	}
	return &Runner{
		store:   store,
		dedup:   dedup,
		scorer:  scorer,
		locker:  locker,
		reports: reports,
		logger:  logger,
		now:     time.Now,
	}
}

// RunDeduplication flags duplicate listings among the active ones.
func (r *Runner) RunDeduplication(ctx context.Context) (DedupResult, error) {
	unlock, err := r.locker.Lock(ctx)
	if err != nil {
		return DedupResult{}, err
	}
	defer unlock()

	started := r.now()
	res, err := r.deduplicate(ctx)
	if err != nil {
		return DedupResult{}, err
	}
	r.saveReport(ctx, RunReport{Kind: RunDeduplication, StartedAt: started, Deduplication: &res})
	return res, nil
}

// RunScoring recomputes the score of every active listing.
func (r *Runner) RunScoring(ctx context.Context) (ScoreResult, error) {
	unlock, err := r.locker.Lock(ctx)
	if err != nil {
		return ScoreResult{}, err
	}
	defer unlock()

	started := r.now()
	res, err := r.score(ctx)
	if err != nil {
		return ScoreResult{}, err
	}
	r.saveReport(ctx, RunReport{Kind: RunScoring, StartedAt: started, Scoring: &res})
	return res, nil
}

// RunAll deduplicates, then scores the survivors. The two passes commit
// separately; if scoring fails the committed deduplication stays.
func (r *Runner) RunAll(ctx context.Context) (RunReport, error) {
	unlock, err := r.locker.Lock(ctx)
	if err != nil {
		return RunReport{}, err
	}
	defer unlock()

	report := RunReport{Kind: RunFull, StartedAt: r.now()}

	dedup, err := r.deduplicate(ctx)
	if err != nil {
		return RunReport{}, err
	}
	report.Deduplication = &dedup

	scoring, err := r.score(ctx)
	if err != nil {
		return RunReport{}, err
	}
	report.Scoring = &scoring

	return r.saveReport(ctx, report), nil
}

// LastReport returns the most recent completed run.
func (r *Runner) LastReport(ctx context.Context) (RunReport, bool, error) {
	return r.reports.Last(ctx)
}

func (r *Runner) deduplicate(ctx context.Context) (DedupResult, error) {
	var res DedupResult
	err := r.store.WithTx(ctx, func(tx storage.ListingTx) error {
		listings, err := tx.FetchActiveListings(ctx)
		if err != nil {
			return err
		}

		var groups [][]*models.Listing
		groups, res = r.dedup.Deduplicate(listings)

		var marked []*models.Listing
		for _, g := range groups {
			marked = append(marked, g[1:]...)
		}
		return tx.SaveMutations(ctx, marked)
	})
	if err != nil {
		r.logger.Error("[runner] deduplication rolled back: %v", err)
		return DedupResult{}, err
	}
	return res, nil
}

func (r *Runner) score(ctx context.Context) (ScoreResult, error) {
	var res ScoreResult
	err := r.store.WithTx(ctx, func(tx storage.ListingTx) error {
		listings, err := tx.FetchActiveListings(ctx)
		if err != nil {
			return err
		}
		res = r.scorer.ScoreAll(listings)
		return tx.SaveMutations(ctx, listings)
	})
	if err != nil {
		r.logger.Error("[runner] scoring rolled back: %v", err)
		return ScoreResult{}, err
	}
	return res, nil
}

// saveReport stamps and stores a report. The run's mutations are already
// committed, so a cache failure is only logged.
func (r *Runner) saveReport(ctx context.Context, report RunReport) RunReport {
	report.ID = uuid.NewString()
	report.FinishedAt = r.now()
	if err := r.reports.Save(ctx, report); err != nil {
		r.logger.Warn("[runner] could not cache run report %s: %v", report.ID, err)
	}
	return report
}
