package cart

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefronthq/storefront-backend/internal/catalog"
	"github.com/storefronthq/storefront-backend/internal/coupons"
	"github.com/storefronthq/storefront-backend/internal/pricing"
	"github.com/storefronthq/storefront-backend/pkg/db"
	"github.com/storefronthq/storefront-backend/pkg/db/models"
	pkgerrors "github.com/storefronthq/storefront-backend/pkg/errors"
	"github.com/storefronthq/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// MutationResult reports the stored line after an add or quantity change.
// Truncated is set when the requested quantity exceeded available stock and
// was clamped down rather than rejected.
type MutationResult struct {
	Item      *models.CartItem
	Truncated bool
}

// View is the priced cart returned to callers. When the pinned coupon no
// longer validates, the summary is priced without it and CouponRejection
// carries the reason; the code stays on the cart so checkout can hard-fail.
type View struct {
	OwnerID         string
	Summary         pricing.Summary
	CouponCode      *string
	CouponRejection *coupons.RejectDetails
}

// Service exposes the cart operations.
type Service interface {
	AddItem(ctx context.Context, ownerID string, productID uuid.UUID, attributes types.AttributeSet, qty int) (*MutationResult, error)
	SetQuantity(ctx context.Context, ownerID string, itemID uuid.UUID, qty int) (*MutationResult, error)
	RemoveItem(ctx context.Context, ownerID string, itemID uuid.UUID) error
	Clear(ctx context.Context, ownerID string) error
	ApplyCoupon(ctx context.Context, ownerID string, code string) (*View, error)
	RemoveCoupon(ctx context.Context, ownerID string) error
	MergeGuestIntoUser(ctx context.Context, guestID, userID string) error
	Get(ctx context.Context, ownerID string) (*View, error)
}

type service struct {
	repo      Repository
	catalog   catalog.Repository
	validator coupons.Validator
	engine    *pricing.Engine
	tx        txRunner
	now       func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, catalogRepo catalog.Repository, validator coupons.Validator, engine *pricing.Engine, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if validator == nil {
		return nil, fmt.Errorf("coupon validator required")
	}
	if engine == nil {
		return nil, fmt.Errorf("pricing engine required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:      repo,
		catalog:   catalogRepo,
		validator: validator,
		engine:    engine,
		tx:        tx,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// AddItem creates or increments the line keyed by (owner, product, attributes).
// Quantities are clamped to available stock up front so the cart never shows
// more than the buyer could actually check out with.
func (s *service) AddItem(ctx context.Context, ownerID string, productID uuid.UUID, attributes types.AttributeSet, qty int) (*MutationResult, error) {
	if ownerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if qty < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if err := attributes.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid attributes")
	}

	snap, err := s.loadPurchasable(ctx, productID)
	if err != nil {
		return nil, err
	}

	attributesKey := attributes.CanonicalKey()
	var result MutationResult

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, ferr := repo.FindItemByLine(ctx, ownerID, productID, attributesKey)
		if ferr != nil && !stdErrors.Is(ferr, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, ferr, "failed to load cart line")
		}

		current := 0
		if existing != nil {
			current = existing.Qty
		}

		desired, truncated, cerr := clampQty(snap, current, current+qty)
		if cerr != nil {
			return cerr
		}
		result.Truncated = truncated

		if existing != nil {
			if uerr := repo.UpdateItemQty(ctx, existing.ID, desired); uerr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, uerr, "failed to update cart line")
			}
			existing.Qty = desired
			result.Item = existing
			return nil
		}

		item := &models.CartItem{
			OwnerID:       ownerID,
			ProductID:     productID,
			Attributes:    attributes.Clone(),
			AttributesKey: attributesKey,
			Qty:           desired,
		}
		if cerr := repo.CreateItem(ctx, item); cerr != nil {
			// A concurrent add for the same line lost the insert race; the
			// retried request lands on the increment path.
			if db.IsUniqueViolation(cerr, "idx_cart_items_owner_product_attrs") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, cerr, "cart line was added concurrently, retry")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, cerr, "failed to create cart line")
		}
		result.Item = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SetQuantity replaces a line's quantity. Zero or negative removes the line;
// removing an already-missing line succeeds.
func (s *service) SetQuantity(ctx context.Context, ownerID string, itemID uuid.UUID, qty int) (*MutationResult, error) {
	if ownerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if qty <= 0 {
		if err := s.RemoveItem(ctx, ownerID, itemID); err != nil {
			return nil, err
		}
		return &MutationResult{}, nil
	}

	item, err := s.repo.FindItem(ctx, ownerID, itemID)
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load cart item")
	}

	snap, err := s.loadPurchasable(ctx, item.ProductID)
	if err != nil {
		return nil, err
	}

	desired, truncated, err := clampQty(snap, 0, qty)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateItemQty(ctx, item.ID, desired); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to update cart item")
	}
	item.Qty = desired
	return &MutationResult{Item: item, Truncated: truncated}, nil
}

func (s *service) RemoveItem(ctx context.Context, ownerID string, itemID uuid.UUID) error {
	if ownerID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if err := s.repo.DeleteItem(ctx, ownerID, itemID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to remove cart item")
	}
	return nil
}

func (s *service) Clear(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.DeleteItems(ctx, ownerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to clear cart items")
		}
		if err := repo.DeleteRecord(ctx, ownerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to clear cart record")
		}
		return nil
	})
}

// ApplyCoupon validates the code against the current subtotal and pins it to
// the cart. Validation runs again at checkout; a code that stops being valid
// in between fails the checkout rather than silently dropping off.
func (s *service) ApplyCoupon(ctx context.Context, ownerID string, code string) (*View, error) {
	if ownerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}

	_, summaryItems, err := s.loadPricedItems(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	base := s.engine.Price(summaryItems, nil)
	applied, err := s.validator.Validate(ctx, code, base.SubtotalCents, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.repo.SaveCouponCode(ctx, ownerID, applied.Code); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to save coupon")
	}

	summary := s.engine.Price(summaryItems, applied)
	return &View{OwnerID: ownerID, Summary: summary, CouponCode: &applied.Code}, nil
}

func (s *service) RemoveCoupon(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if err := s.repo.ClearCouponCode(ctx, ownerID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to remove coupon")
	}
	return nil
}

// MergeGuestIntoUser folds a guest cart into the signed-in user's cart in one
// transaction. Matching lines sum their quantities, other lines change owner,
// and the guest cart disappears. Merging an empty guest cart is a no-op, so
// replaying the call after login is safe.
func (s *service) MergeGuestIntoUser(ctx context.Context, guestID, userID string) error {
	if guestID == "" || userID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "guest and user ids are required")
	}
	if guestID == userID {
		return pkgerrors.New(pkgerrors.CodeValidation, "cannot merge a cart into itself")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		guestItems, err := repo.ListItems(ctx, guestID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list guest cart")
		}

		for i := range guestItems {
			guestItem := guestItems[i]
			userItem, ferr := repo.FindItemByLine(ctx, userID, guestItem.ProductID, guestItem.AttributesKey)
			if ferr != nil && !stdErrors.Is(ferr, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, ferr, "failed to match cart line")
			}

			if userItem == nil {
				if rerr := repo.ReassignItemOwner(ctx, guestItem.ID, userID); rerr != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, rerr, "failed to move cart line")
				}
				continue
			}

			if uerr := repo.UpdateItemQty(ctx, userItem.ID, userItem.Qty+guestItem.Qty); uerr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, uerr, "failed to merge cart line")
			}
			if derr := repo.DeleteItem(ctx, guestID, guestItem.ID); derr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, derr, "failed to drop merged line")
			}
		}

		guestRecord, err := repo.GetRecord(ctx, guestID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load guest cart record")
		}
		if guestRecord != nil && guestRecord.CouponCode != nil {
			userRecord, uerr := repo.GetRecord(ctx, userID)
			if uerr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, uerr, "failed to load user cart record")
			}
			if userRecord == nil || userRecord.CouponCode == nil {
				if serr := repo.SaveCouponCode(ctx, userID, *guestRecord.CouponCode); serr != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, serr, "failed to carry coupon over")
				}
			}
		}

		if err := repo.DeleteRecord(ctx, guestID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to drop guest cart record")
		}
		return nil
	})
}

// Get prices the cart as stored. A pinned coupon that no longer validates is
// reported, not applied.
func (s *service) Get(ctx context.Context, ownerID string) (*View, error) {
	if ownerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}

	_, summaryItems, err := s.loadPricedItems(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	view := &View{OwnerID: ownerID}
	record, err := s.repo.GetRecord(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load cart record")
	}

	base := s.engine.Price(summaryItems, nil)
	if record == nil || record.CouponCode == nil {
		view.Summary = base
		return view, nil
	}

	view.CouponCode = record.CouponCode
	applied, verr := s.validator.Validate(ctx, *record.CouponCode, base.SubtotalCents, s.now())
	if verr != nil {
		typed := pkgerrors.As(verr)
		if typed == nil || typed.Code() != pkgerrors.CodeCouponReject {
			return nil, verr
		}
		if details, ok := typed.Details().(coupons.RejectDetails); ok {
			view.CouponRejection = &details
		}
		view.Summary = base
		return view, nil
	}

	view.Summary = s.engine.Price(summaryItems, applied)
	return view, nil
}

// loadPricedItems loads the owner's cart lines joined to catalog snapshots.
func (s *service) loadPricedItems(ctx context.Context, ownerID string) ([]models.CartItem, []pricing.Item, error) {
	items, err := s.repo.ListItems(ctx, ownerID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list cart items")
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	snaps, err := s.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load catalog snapshots")
	}

	priced := make([]pricing.Item, 0, len(items))
	for _, item := range items {
		priced = append(priced, pricing.Item{
			CartItemID: item.ID,
			Qty:        item.Qty,
			Attributes: item.Attributes,
			Product:    snaps[item.ProductID],
		})
	}
	return items, priced, nil
}

func (s *service) loadPurchasable(ctx context.Context, productID uuid.UUID) (*catalog.ProductSnapshot, error) {
	snap, err := s.catalog.FindByID(ctx, productID)
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load product")
	}
	if !snap.Active {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not purchasable")
	}
	return snap, nil
}

// clampQty caps desired at available stock. current is the quantity already
// in the cart; if stock leaves no room beyond it, the request is rejected
// outright instead of silently keeping the old value.
func clampQty(snap *catalog.ProductSnapshot, current, desired int) (int, bool, error) {
	if !snap.TrackStock {
		return desired, false, nil
	}
	if snap.AvailableQty <= current {
		return 0, false, pkgerrors.New(pkgerrors.CodeStockShortage, "insufficient stock").
			WithDetails(map[string]any{
				"product_id": snap.ProductID,
				"available":  snap.AvailableQty,
			})
	}
	if desired > snap.AvailableQty {
		return snap.AvailableQty, true, nil
	}
	return desired, false, nil
}
