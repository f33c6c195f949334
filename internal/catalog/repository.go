package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefronthq/storefront-backend/internal/repo"
	"github.com/storefronthq/storefront-backend/pkg/db/models"
)

// Repository exposes read-only access to product pricing and stock.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*ProductSnapshot, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*ProductSnapshot, error)
}

type repository struct {
	base repo.Base
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.Rebind(tx)}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*ProductSnapshot, error) {
	var product models.Product
	err := r.base.DB(ctx).
		Preload("Inventory").
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return newSnapshot(&product), nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*ProductSnapshot, error) {
	out := make(map[uuid.UUID]*ProductSnapshot, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var products []models.Product
	err := r.base.DB(ctx).
		Preload("Inventory").
		Where("id IN ?", ids).
		Find(&products).Error
	if err != nil {
		return nil, err
	}

	for i := range products {
		out[products[i].ID] = newSnapshot(&products[i])
	}
	return out, nil
}
