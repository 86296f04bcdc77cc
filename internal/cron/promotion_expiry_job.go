package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/shopora/shopora-backend/pkg/logger"
)

type promotionExpirer interface {
	ExpirePromotions(ctx context.Context) (int64, error)
}

// PromotionExpiryJobParams configure the promotion expiry sweep.
type PromotionExpiryJobParams struct {
	Logger     *logger.Logger
	Promotions promotionExpirer
	Timeout    time.Duration
}

type promotionExpiryJob struct {
	logg       *logger.Logger
	promotions promotionExpirer
	timeout    time.Duration
}

// NewPromotionExpiryJob builds the job that deactivates finished promotions.
func NewPromotionExpiryJob(params PromotionExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Promotions == nil {
		return nil, fmt.Errorf("promotions service required")
	}
	return &promotionExpiryJob{
		logg:       params.Logger,
		promotions: params.Promotions,
		timeout:    params.Timeout,
	}, nil
}

func (j *promotionExpiryJob) Name() string { return "promotion-expiry" }

func (j *promotionExpiryJob) Run(ctx context.Context) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	flipped, err := j.promotions.ExpirePromotions(ctx)
	logCtx := j.logg.WithField(ctx, "deactivated", flipped)
	j.logg.Info(logCtx, "promotion expiry sweep complete")
	return err
}
