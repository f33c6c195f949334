package checkout

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/storefronthq/storefront-backend/internal/cart"
	"github.com/storefronthq/storefront-backend/internal/catalog"
	"github.com/storefronthq/storefront-backend/internal/checkout/reservation"
	"github.com/storefronthq/storefront-backend/internal/coupons"
	"github.com/storefronthq/storefront-backend/internal/orders"
	"github.com/storefronthq/storefront-backend/internal/pricing"
	"github.com/storefronthq/storefront-backend/pkg/config"
	"github.com/storefronthq/storefront-backend/pkg/db/models"
	pkgerrors "github.com/storefronthq/storefront-backend/pkg/errors"
	"github.com/storefronthq/storefront-backend/pkg/logger"
	"github.com/storefronthq/storefront-backend/pkg/metrics"
	"github.com/storefronthq/storefront-backend/pkg/pagination"
)

// Metric outcomes recorded per finalize attempt.
const (
	outcomeCommitted      = "committed"
	outcomeStockShortage  = "stock_shortage"
	outcomeCouponRejected = "coupon_rejected"
	outcomeFailed         = "failed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service turns a cart into an immutable order.
type Service interface {
	Finalize(ctx context.Context, ownerID string) (*models.Order, error)
	GetOrder(ctx context.Context, ownerID string, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, ownerID string, params pagination.Params) ([]models.Order, string, error)
}

type service struct {
	tx        txRunner
	cartRepo  cart.Repository
	catalog   catalog.Repository
	validator coupons.Validator
	orders    orders.Repository
	engine    *pricing.Engine
	cfg       config.CheckoutConfig
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds a checkout service backed by the provided stack.
func NewService(
	tx txRunner,
	cartRepo cart.Repository,
	catalogRepo catalog.Repository,
	validator coupons.Validator,
	ordersRepo orders.Repository,
	engine *pricing.Engine,
	cfg config.CheckoutConfig,
	checkoutMetrics *metrics.CheckoutMetrics,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if validator == nil {
		return nil, fmt.Errorf("coupon validator required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if engine == nil {
		return nil, fmt.Errorf("pricing engine required")
	}
	return &service{
		tx:        tx,
		cartRepo:  cartRepo,
		catalog:   catalogRepo,
		validator: validator,
		orders:    ordersRepo,
		engine:    engine,
		cfg:       cfg,
		metrics:   checkoutMetrics,
		logg:      logg,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Finalize runs the whole checkout in one transaction: reserve stock for every
// line, re-price the cart, consume the coupon, write the order, and empty the
// cart. Any failure rolls everything back; transient conflicts are retried
// with constant backoff before giving up.
func (s *service) Finalize(ctx context.Context, ownerID string) (*models.Order, error) {
	if ownerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}

	attemptCtx := ctx
	if s.cfg.AttemptWindow > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, s.cfg.AttemptWindow)
		defer cancel()
	}

	backoff := retry.WithMaxRetries(uint64(s.cfg.MaxRetries), retry.NewConstant(s.retryBackoff()))

	var order *models.Order
	err := retry.Do(attemptCtx, backoff, func(ctx context.Context) error {
		var attemptErr error
		order, attemptErr = s.finalizeOnce(ctx, ownerID)
		if attemptErr != nil && pkgerrors.Retryable(attemptErr) {
			return retry.RetryableError(attemptErr)
		}
		return attemptErr
	})

	s.recordOutcome(ctx, ownerID, err)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) finalizeOnce(ctx context.Context, ownerID string) (*models.Order, error) {
	var order *models.Order

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		catalogRepo := s.catalog.WithTx(tx)
		validator := s.validator.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)

		items, err := cartRepo.ListItems(ctx, ownerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load cart")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		ids := make([]uuid.UUID, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.ProductID)
		}
		snaps, err := catalogRepo.FindByIDs(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load catalog")
		}

		pricedItems := make([]pricing.Item, 0, len(items))
		requests := make([]reservation.InventoryReservationRequest, 0, len(items))
		for _, item := range items {
			snap := snaps[item.ProductID]
			pricedItems = append(pricedItems, pricing.Item{
				CartItemID: item.ID,
				Qty:        item.Qty,
				Attributes: item.Attributes,
				Product:    snap,
			})
			if snap != nil && snap.Active && snap.TrackStock {
				requests = append(requests, reservation.InventoryReservationRequest{
					CartItemID: item.ID,
					ProductID:  item.ProductID,
					Qty:        item.Qty,
				})
			}
		}

		// A cart with unpurchasable lines cannot be finalized; the buyer has
		// to remove them first rather than be silently charged for less.
		dry := s.engine.Price(pricedItems, nil)
		if len(dry.Skipped) > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart contains unavailable items").
				WithDetails(dry.Skipped)
		}

		if err := reservation.ReserveInventory(ctx, tx, requests); err != nil {
			return err
		}

		var applied *coupons.Applied
		record, err := cartRepo.GetRecord(ctx, ownerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load cart record")
		}
		if record != nil && record.CouponCode != nil {
			now := s.now()
			applied, err = validator.Validate(ctx, *record.CouponCode, dry.SubtotalCents, now)
			if err != nil {
				return err
			}
			if err := validator.ConsumeUse(ctx, applied.CouponID, now); err != nil {
				return err
			}
		}

		summary := s.engine.Price(pricedItems, applied)

		order = buildOrder(ownerID, summary)
		if _, err := ordersRepo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create order")
		}

		if err := cartRepo.DeleteItems(ctx, ownerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to empty cart")
		}
		if err := cartRepo.DeleteRecord(ctx, ownerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to drop cart record")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) GetOrder(ctx context.Context, ownerID string, orderID uuid.UUID) (*models.Order, error) {
	if ownerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	order, err := s.orders.FindByIDAndOwner(ctx, orderID, ownerID)
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load order")
	}
	return order, nil
}

func (s *service) ListOrders(ctx context.Context, ownerID string, params pagination.Params) ([]models.Order, string, error) {
	if ownerID == "" {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	list, nextCursor, err := s.orders.ListByOwner(ctx, ownerID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list orders")
	}
	return list, nextCursor, nil
}

func (s *service) retryBackoff() time.Duration {
	if s.cfg.RetryBackoff > 0 {
		return s.cfg.RetryBackoff
	}
	return 50 * time.Millisecond
}

func (s *service) recordOutcome(ctx context.Context, ownerID string, err error) {
	outcome := outcomeCommitted
	if err != nil {
		outcome = outcomeFailed
		if typed := pkgerrors.As(err); typed != nil {
			switch typed.Code() {
			case pkgerrors.CodeStockShortage:
				outcome = outcomeStockShortage
			case pkgerrors.CodeCouponReject:
				outcome = outcomeCouponRejected
			}
		}
	}
	s.metrics.IncOutcome(outcome)

	if s.logg == nil {
		return
	}
	ctx = s.logg.WithOwnerID(ctx, ownerID)
	if err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("checkout %s: %v", outcome, err))
		return
	}
	s.logg.Info(ctx, "checkout committed")
}

func buildOrder(ownerID string, summary pricing.Summary) *models.Order {
	order := &models.Order{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		SubtotalCents: summary.SubtotalCents,
		ShippingCents: summary.ShippingCents,
		DiscountCents: summary.DiscountCents,
		TotalCents:    summary.TotalCents,
	}
	if summary.Coupon != nil {
		couponID := summary.Coupon.CouponID
		code := summary.Coupon.Code
		order.CouponID = &couponID
		order.CouponCode = &code
	}
	for _, line := range summary.Lines {
		order.Lines = append(order.Lines, models.OrderLine{
			ProductID:      line.ProductID,
			SKU:            line.SKU,
			Name:           line.Name,
			Attributes:     line.Attributes,
			UnitPriceCents: line.UnitPriceCents,
			Qty:            line.Qty,
			LineTotalCents: line.LineTotalCents,
		})
	}
	return order
}
