package repository

import (
	"context"
	"errors"
	"time"

	"github.com/S1njack/price-tracker-demo/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductRepository defines the data access contract for retailer listings.
type ProductRepository interface {
	// Upsert inserts p, or — when a row with the same URL already exists —
	// refreshes that row's metadata, price, and group link. The URL is the
	// identity of a listing.
	Upsert(ctx context.Context, p *model.Product) (*model.Product, error)

	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	List(ctx context.Context) ([]model.Product, error)
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]model.Product, error)
	Count(ctx context.Context) (int64, error)

	UpdatePrice(ctx context.Context, id uuid.UUID, price decimal.Decimal, checkedAt time.Time) error

	// Delete removes the product and its history, returning the group it
	// belonged to (nil when ungrouped) so callers can prune emptied groups.
	Delete(ctx context.Context, id uuid.UUID) (*uuid.UUID, error)
}

type productRepo struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepo{db: db} }

func (r *productRepo) Upsert(ctx context.Context, p *model.Product) (*model.Product, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Product
		err := tx.Where("url = ?", p.URL).First(&existing).Error
		switch {
		case err == nil:
			existing.Name = p.Name
			existing.NativeID = p.NativeID
			existing.Brand = p.Brand
			existing.Category = p.Category
			existing.CurrentPrice = p.CurrentPrice
			existing.LastChecked = p.LastChecked
			existing.GroupID = p.GroupID
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			*p = existing
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(p).Error
		default:
			return err
		}
	})
	return p, err
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).First(&p, id).Error
	return &p, err
}

func (r *productRepo) List(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).Preload("Group").Order("name ASC").Find(&products).Error
	return products, err
}

// ListByGroup returns a group's members ordered cheapest-first — the order the
// comparison view presents them in.
func (r *productRepo) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("current_price ASC").
		Find(&products).Error
	return products, err
}

func (r *productRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Product{}).Count(&n).Error
	return n, err
}

func (r *productRepo) UpdatePrice(ctx context.Context, id uuid.UUID, price decimal.Decimal, checkedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", id).Updates(map[string]interface{}{
		"current_price": price,
		"last_checked":  checkedAt,
	}).Error
}

func (r *productRepo) Delete(ctx context.Context, id uuid.UUID) (*uuid.UUID, error) {
	var groupID *uuid.UUID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Product
		if err := tx.First(&p, id).Error; err != nil {
			return err
		}
		groupID = p.GroupID

		if err := tx.Where("product_id = ?", id).Delete(&model.PriceHistoryPoint{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Product{}, id).Error
	})
	return groupID, err
}
