package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/shopora/shopora-backend/pkg/logger"
)

type paymentExpirer interface {
	CheckAndExpirePayments(ctx context.Context) (int, error)
}

// PaymentExpiryJobParams configure the payment expiry sweep.
type PaymentExpiryJobParams struct {
	Logger   *logger.Logger
	Payments paymentExpirer
	Timeout  time.Duration
}

type paymentExpiryJob struct {
	logg     *logger.Logger
	payments paymentExpirer
	timeout  time.Duration
}

// NewPaymentExpiryJob builds the job that expires overdue pending payments.
func NewPaymentExpiryJob(params PaymentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	return &paymentExpiryJob{
		logg:     params.Logger,
		payments: params.Payments,
		timeout:  params.Timeout,
	}, nil
}

func (j *paymentExpiryJob) Name() string { return "payment-expiry" }

func (j *paymentExpiryJob) Run(ctx context.Context) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	expired, err := j.payments.CheckAndExpirePayments(ctx)
	logCtx := j.logg.WithField(ctx, "expired", expired)
	j.logg.Info(logCtx, "payment expiry sweep complete")
	return err
}
