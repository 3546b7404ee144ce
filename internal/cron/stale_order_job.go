package cron

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/adisaputra/tokoku-backend/internal/orders"
	"github.com/adisaputra/tokoku-backend/pkg/logger"
)

// StaleOrderJob cancels awaiting-payment orders whose window has lapsed.
// Deferred-payment orders never decremented stock, so cancellation leaves the
// physical counters alone.
type StaleOrderJob struct {
	tx   txRunner
	repo orders.Repository
	log  *logger.Logger
	ttl  time.Duration
	now  func() time.Time
}

func NewStaleOrderJob(tx txRunner, repo orders.Repository, log *logger.Logger, ttl time.Duration) (*StaleOrderJob, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("pending order ttl must be positive")
	}
	return &StaleOrderJob{tx: tx, repo: repo, log: log, ttl: ttl, now: time.Now}, nil
}

func (j *StaleOrderJob) Name() string { return "stale-order-cancel" }

func (j *StaleOrderJob) Run(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.ttl)
	var canceled int64
	err := j.tx.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.repo.WithTx(tx).CancelStalePendingBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		canceled = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	if canceled > 0 {
		j.log.Info(j.log.WithField(ctx, "canceled", strconv.FormatInt(canceled, 10)), "stale pending orders canceled")
	}
	return canceled, nil
}
