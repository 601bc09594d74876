package escrow

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/hotmess/hotmess-backend/pkg/errors"
	"github.com/hotmess/hotmess-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type releaseMetrics interface {
	Released(method string, sellerXP, feeXP int64)
	ReleaseRejected(reason string)
}

// Service is the buyer-facing manual release workflow.
type Service interface {
	Release(ctx context.Context, input ReleaseInput) (*ReleaseResult, error)
}

// ReleaseInput identifies the order and the caller asking to release it.
type ReleaseInput struct {
	OrderID    uuid.UUID
	CallerID   uuid.UUID
	BuyerEmail string
}

// ReleaseResult is returned to the buyer after a successful release.
type ReleaseResult struct {
	Success              bool      `json:"success"`
	OrderID              uuid.UUID `json:"order_id"`
	SellerReceivedAmount int64     `json:"seller_received_amount"`
	PlatformFee          int64     `json:"platform_fee"`
}

// ServiceParams wires the manual release service.
type ServiceParams struct {
	TransactionRunner txRunner
	Releaser          *Releaser
	Metrics           releaseMetrics
	Logger            *logger.Logger
}

type service struct {
	tx       txRunner
	releaser *Releaser
	metrics  releaseMetrics
	logg     *logger.Logger
}

// NewService builds the manual release service.
func NewService(params ServiceParams) (Service, error) {
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Releaser == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "releaser required")
	}
	return &service{
		tx:       params.TransactionRunner,
		releaser: params.Releaser,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

func (s *service) Release(ctx context.Context, input ReleaseInput) (*ReleaseResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order_id is required")
	}
	if input.CallerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if s.logg != nil {
		ctx = s.logg.WithOrderID(ctx, input.OrderID.String())
	}

	var outcome *Outcome
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.releaser.LockOrder(ctx, tx, input.OrderID)
		if err != nil {
			return err
		}
		if order.BuyerID != input.CallerID || !sameEmail(order.BuyerEmail, input.BuyerEmail) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can release this order")
		}
		if err := s.releaser.CheckReleasable(ctx, tx, order); err != nil {
			return err
		}
		outcome, err = s.releaser.Release(ctx, tx, order, input.CallerID, MethodManual)
		return err
	})
	if err != nil {
		if reason := pkgerrors.Reason(err); reason != "" && s.metrics != nil {
			s.metrics.ReleaseRejected(reason)
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.Released(outcome.Method, outcome.SellerReceivedXP, outcome.PlatformFeeXP)
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"seller_id":          outcome.SellerID.String(),
			"seller_received_xp": outcome.SellerReceivedXP,
			"platform_fee_xp":    outcome.PlatformFeeXP,
		}), "escrow released")
	}

	return &ReleaseResult{
		Success:              true,
		OrderID:              outcome.OrderID,
		SellerReceivedAmount: outcome.SellerReceivedXP,
		PlatformFee:          outcome.PlatformFeeXP,
	}, nil
}

func sameEmail(stored, provided string) bool {
	provided = strings.TrimSpace(provided)
	return provided != "" && strings.EqualFold(strings.TrimSpace(stored), provided)
}
