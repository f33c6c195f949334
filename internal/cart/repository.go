package cart

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefronthq/storefront-backend/internal/repo"
	"github.com/storefronthq/storefront-backend/pkg/db/models"
)

// Repository persists cart lines and the per-owner cart record. Lookups are
// always owner-scoped so one owner can never touch another's cart.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	ListItems(ctx context.Context, ownerID string) ([]models.CartItem, error)
	FindItem(ctx context.Context, ownerID string, itemID uuid.UUID) (*models.CartItem, error)
	FindItemByLine(ctx context.Context, ownerID string, productID uuid.UUID, attributesKey string) (*models.CartItem, error)
	CreateItem(ctx context.Context, item *models.CartItem) error
	UpdateItemQty(ctx context.Context, itemID uuid.UUID, qty int) error
	ReassignItemOwner(ctx context.Context, itemID uuid.UUID, ownerID string) error
	DeleteItem(ctx context.Context, ownerID string, itemID uuid.UUID) error
	DeleteItems(ctx context.Context, ownerID string) error

	GetRecord(ctx context.Context, ownerID string) (*models.CartRecord, error)
	SaveCouponCode(ctx context.Context, ownerID string, code string) error
	ClearCouponCode(ctx context.Context, ownerID string) error
	DeleteRecord(ctx context.Context, ownerID string) error
}

type repository struct {
	base repo.Base
}

// NewRepository builds a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.Rebind(tx)}
}

func (r *repository) ListItems(ctx context.Context, ownerID string) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.base.DB(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) FindItem(ctx context.Context, ownerID string, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.base.DB(ctx).
		Where("id = ? AND owner_id = ?", itemID, ownerID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindItemByLine(ctx context.Context, ownerID string, productID uuid.UUID, attributesKey string) (*models.CartItem, error) {
	var item models.CartItem
	err := r.base.DB(ctx).
		Where("owner_id = ? AND product_id = ? AND attributes_key = ?", ownerID, productID, attributesKey).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) CreateItem(ctx context.Context, item *models.CartItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return r.base.DB(ctx).Create(item).Error
}

func (r *repository) UpdateItemQty(ctx context.Context, itemID uuid.UUID, qty int) error {
	return r.base.DB(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Updates(map[string]any{"qty": qty, "updated_at": time.Now().UTC()}).Error
}

func (r *repository) ReassignItemOwner(ctx context.Context, itemID uuid.UUID, ownerID string) error {
	return r.base.DB(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Updates(map[string]any{"owner_id": ownerID, "updated_at": time.Now().UTC()}).Error
}

func (r *repository) DeleteItem(ctx context.Context, ownerID string, itemID uuid.UUID) error {
	return r.base.DB(ctx).
		Where("id = ? AND owner_id = ?", itemID, ownerID).
		Delete(&models.CartItem{}).Error
}

func (r *repository) DeleteItems(ctx context.Context, ownerID string) error {
	return r.base.DB(ctx).
		Where("owner_id = ?", ownerID).
		Delete(&models.CartItem{}).Error
}

func (r *repository) GetRecord(ctx context.Context, ownerID string) (*models.CartRecord, error) {
	var record models.CartRecord
	err := r.base.DB(ctx).Where("owner_id = ?", ownerID).First(&record).Error
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) SaveCouponCode(ctx context.Context, ownerID string, code string) error {
	record := models.CartRecord{OwnerID: ownerID, CouponCode: &code}
	db := r.base.DB(ctx)

	result := db.Model(&models.CartRecord{}).
		Where("owner_id = ?", ownerID).
		Updates(map[string]any{"coupon_code": code, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	return db.Create(&record).Error
}

func (r *repository) ClearCouponCode(ctx context.Context, ownerID string) error {
	return r.base.DB(ctx).
		Model(&models.CartRecord{}).
		Where("owner_id = ?", ownerID).
		Updates(map[string]any{"coupon_code": nil, "updated_at": time.Now().UTC()}).Error
}

func (r *repository) DeleteRecord(ctx context.Context, ownerID string) error {
	return r.base.DB(ctx).
		Where("owner_id = ?", ownerID).
		Delete(&models.CartRecord{}).Error
}
