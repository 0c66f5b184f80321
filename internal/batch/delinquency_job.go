package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"loan-engine/internal/domain/loan"
	"loan-engine/internal/infrastructure/monitoring"
	"loan-engine/internal/pkg/apperrors"

	"cloud.google.com/go/civil"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 8

// OpenLoanLister is the part of the loan repository the job reads from.
type OpenLoanLister interface {
	ListOpenLoanIDs(ctx context.Context) ([]int64, error)
}

type DelinquencyRefresher interface {
	RefreshDelinquency(ctx context.Context, loanID int64, asOf civil.Date) (*loan.DelinquencyChange, error)
}

// RunSummary counts what a single run did.
type RunSummary struct {
	AsOf      civil.Date
	Total     int
	Changed   int
	Unchanged int
	Skipped   int
	Errors    int
	ByStatus  map[loan.DelinquencyStatus]int
}

type UpdateDelinquencyJob struct {
	loans       OpenLoanLister
	refresher   DelinquencyRefresher
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

func NewUpdateDelinquencyJob(
	loans OpenLoanLister,
	refresher DelinquencyRefresher,
	concurrency int,
	logger *slog.Logger,
) *UpdateDelinquencyJob {
	if loans == nil || refresher == nil || logger == nil {
		panic("UpdateDelinquencyJob dependencies cannot be nil")
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &UpdateDelinquencyJob{
		loans:       loans,
		refresher:   refresher,
		concurrency: concurrency,
		logger:      logger.With("job", "UpdateDelinquency"),
		now:         time.Now,
	}
}

// Run reclassifies every open loan as of today.
func (j *UpdateDelinquencyJob) Run(ctx context.Context) error {
	_, err := j.RunAsOf(ctx, civil.DateOf(j.now()))
	return err
}

func (j *UpdateDelinquencyJob) RunAsOf(ctx context.Context, asOf civil.Date) (RunSummary, error) {
	startTime := time.Now()
	log := j.logger.With(slog.String("asOf", asOf.String()))
	log.InfoContext(ctx, "Starting delinquency update job.")

	summary := RunSummary{AsOf: asOf, ByStatus: make(map[loan.DelinquencyStatus]int, len(loan.DelinquencyStatuses))}
	for _, s := range loan.DelinquencyStatuses {
		summary.ByStatus[s] = 0
	}

	loanIDs, err := j.loans.ListOpenLoanIDs(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to get open loan IDs, aborting job.", slog.Any("error", err))
		return summary, fmt.Errorf("cannot run job, failed to get open loans: %w", err)
	}
	summary.Total = len(loanIDs)
	log.InfoContext(ctx, "Fetched open loan IDs.", slog.Int("count", len(loanIDs)))

	var (
		changed, unchanged, skipped, errCount atomic.Int32
		mu                                    sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)
	for _, loanID := range loanIDs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			logCtx := log.With(slog.Int64("loanID", loanID))

			change, err := j.refresher.RefreshDelinquency(gctx, loanID, asOf)
			if err != nil {
				if errors.Is(err, apperrors.ErrNotFound) {
					logCtx.WarnContext(gctx, "Loan disappeared before its delinquency could be refreshed", slog.Any("error", err))
					skipped.Add(1)
					return nil
				}
				logCtx.ErrorContext(gctx, "Failed to refresh loan delinquency", slog.Any("error", err))
				errCount.Add(1)
				return nil
			}

			if change.Changed() {
				changed.Add(1)
			} else {
				unchanged.Add(1)
			}
			mu.Lock()
			summary.ByStatus[change.Current.Status]++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	summary.Changed = int(changed.Load())
	summary.Unchanged = int(unchanged.Load())
	summary.Skipped = int(skipped.Load())
	summary.Errors = int(errCount.Load())

	gauge := make(map[string]int, len(summary.ByStatus))
	for status, n := range summary.ByStatus {
		gauge[string(status)] = n
	}
	monitoring.SetLoansByDelinquency(gauge)
	monitoring.RecordDelinquencyRefresh("changed", summary.Changed)
	monitoring.RecordDelinquencyRefresh("unchanged", summary.Unchanged)
	monitoring.RecordDelinquencyRefresh("skipped", summary.Skipped)
	monitoring.RecordDelinquencyRefresh("error", summary.Errors)

	summaryLog := log.With(
		slog.Duration("duration", time.Since(startTime)),
		slog.Int("total_open_loans", summary.Total),
		slog.Int("loans_changed", summary.Changed),
		slog.Int("loans_unchanged", summary.Unchanged),
		slog.Int("loans_skipped", summary.Skipped),
		slog.Int("errors_encountered", summary.Errors),
	)

	if err := ctx.Err(); err != nil {
		summaryLog.WarnContext(ctx, "Delinquency update job interrupted.", slog.Any("error", err))
		return summary, fmt.Errorf("job interrupted: %w", err)
	}
	if summary.Errors > 0 {
		summaryLog.WarnContext(ctx, "Delinquency update job finished with errors.")
		return summary, fmt.Errorf("job completed with %d errors", summary.Errors)
	}
	summaryLog.InfoContext(ctx, "Delinquency update job finished successfully.")
	return summary, nil
}
