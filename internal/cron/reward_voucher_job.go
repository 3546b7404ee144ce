package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adisaputra/tokoku-backend/internal/orders"
	"github.com/adisaputra/tokoku-backend/internal/vouchers"
	pkgerrors "github.com/adisaputra/tokoku-backend/pkg/errors"
	"github.com/adisaputra/tokoku-backend/pkg/logger"
)

// RewardVoucherJob grants the configured reward voucher to the biggest
// spender of the lookback window. Granting is idempotent per shopper: a
// shopper still holding an unredeemed reward does not get a second one.
type RewardVoucherJob struct {
	tx          txRunner
	orderRepo   orders.Repository
	voucherRepo vouchers.Repository
	log         *logger.Logger
	voucherCode string
	window      time.Duration
	now         func() time.Time
}

func NewRewardVoucherJob(tx txRunner, orderRepo orders.Repository, voucherRepo vouchers.Repository, log *logger.Logger, voucherCode string, window time.Duration) (*RewardVoucherJob, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if voucherRepo == nil {
		return nil, fmt.Errorf("voucher repository required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if window <= 0 {
		return nil, fmt.Errorf("lookback window must be positive")
	}
	return &RewardVoucherJob{
		tx:          tx,
		orderRepo:   orderRepo,
		voucherRepo: voucherRepo,
		log:         log,
		voucherCode: voucherCode,
		window:      window,
		now:         time.Now,
	}, nil
}

func (j *RewardVoucherJob) Name() string { return "top-spender-reward" }

func (j *RewardVoucherJob) Run(ctx context.Context) (int64, error) {
	if j.voucherCode == "" {
		return 0, nil
	}
	since := j.now().UTC().Add(-j.window)

	var granted int64
	err := j.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := j.orderRepo.WithTx(tx)
		voucherRepo := j.voucherRepo.WithTx(tx)

		userID, spent, err := orderRepo.TopSpenderSince(ctx, since)
		if err != nil {
			return err
		}
		if userID == uuid.Nil {
			return nil
		}

		voucher, err := voucherRepo.FindActiveByCode(ctx, j.voucherCode)
		if err != nil {
			if pkgerrors.As(err).Code() == pkgerrors.CodeNotFound {
				j.log.Warn(ctx, "reward voucher code not configured in catalog")
				return nil
			}
			return err
		}

		already, err := voucherRepo.HasAvailableUserVoucher(ctx, userID, voucher.ID)
		if err != nil {
			return err
		}
		if already {
			return nil
		}

		if err := voucherRepo.GrantUserVoucher(ctx, userID, voucher.ID); err != nil {
			return err
		}
		granted = 1
		grantedCtx := j.log.WithFields(ctx, map[string]any{
			"user_id": userID.String(),
			"voucher": voucher.Code,
			"spent":   spent.String(),
		})
		j.log.Info(grantedCtx, "reward voucher granted to top spender")
		return nil
	})
	if err != nil {
		return 0, err
	}
	return granted, nil
}
