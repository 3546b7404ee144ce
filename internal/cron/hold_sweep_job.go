package cron

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/adisaputra/tokoku-backend/pkg/db/models"
	pkgerrors "github.com/adisaputra/tokoku-backend/pkg/errors"
	"github.com/adisaputra/tokoku-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// HoldSweepJob deletes expired stock holds across all holders. Availability
// reads already sweep lazily per unit; this job bounds table growth for units
// nobody is looking at.
type HoldSweepJob struct {
	tx  txRunner
	log *logger.Logger
	now func() time.Time
}

func NewHoldSweepJob(tx txRunner, log *logger.Logger) (*HoldSweepJob, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &HoldSweepJob{tx: tx, log: log, now: time.Now}, nil
}

func (j *HoldSweepJob) Name() string { return "stock-hold-sweep" }

func (j *HoldSweepJob) Run(ctx context.Context) (int64, error) {
	now := j.now().UTC()
	var swept int64
	err := j.tx.WithTx(ctx, func(tx *gorm.DB) error {
		res := tx.WithContext(ctx).
			Where("expires_at <= ?", now).
			Delete(&models.StockHold{})
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "sweep expired holds")
		}
		swept = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	j.log.Info(j.log.WithField(ctx, "swept", strconv.FormatInt(swept, 10)), "expired stock holds swept")
	return swept, nil
}
