package repository

import (
	"context"
	"errors"

	"github.com/S1njack/price-tracker-demo/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GroupRepository defines the data access contract for product groups.
// Services depend on this interface, not on the concrete GORM implementation,
// enabling clean unit testing via stubs.
type GroupRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.ProductGroup, error)
	FindByModel(ctx context.Context, modelKey string) (*model.ProductGroup, error)

	// GetOrCreate returns the group keyed by g.Model if one exists, otherwise
	// inserts g. A concurrent insert racing on the unique model index is
	// resolved by re-reading — the conflict is never surfaced to callers.
	GetOrCreate(ctx context.Context, g *model.ProductGroup) (*model.ProductGroup, error)

	List(ctx context.Context) ([]GroupStats, error)
	Delete(ctx context.Context, id uuid.UUID) error
	PruneOrphans(ctx context.Context) (int64, error)
}

// GroupStats is a group row with aggregate price info over its members.
type GroupStats struct {
	model.ProductGroup
	RetailerCount int64    `gorm:"column:retailer_count"`
	MinPrice      *float64 `gorm:"column:min_price"`
	MaxPrice      *float64 `gorm:"column:max_price"`
	AvgPrice      *float64 `gorm:"column:avg_price"`
}

type groupRepo struct{ db *gorm.DB }

func NewGroupRepository(db *gorm.DB) GroupRepository { return &groupRepo{db: db} }

func (r *groupRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.ProductGroup, error) {
	var g model.ProductGroup
	err := r.db.WithContext(ctx).First(&g, id).Error
	return &g, err
}

func (r *groupRepo) FindByModel(ctx context.Context, modelKey string) (*model.ProductGroup, error) {
	var g model.ProductGroup
	err := r.db.WithContext(ctx).Where("model = ?", modelKey).First(&g).Error
	return &g, err
}

func (r *groupRepo) GetOrCreate(ctx context.Context, g *model.ProductGroup) (*model.ProductGroup, error) {
	if g.Model != nil {
		existing, err := r.FindByModel(ctx, *g.Model)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	if err := r.db.WithContext(ctx).Create(g).Error; err != nil {
		// Lost the race on the unique model index — reuse the winner's row.
		if g.Model != nil {
			if existing, readErr := r.FindByModel(ctx, *g.Model); readErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}
	return g, nil
}

func (r *groupRepo) List(ctx context.Context) ([]GroupStats, error) {
	var rows []GroupStats
	err := r.db.WithContext(ctx).
		Model(&model.ProductGroup{}).
		Select(`product_groups.*,
		        COUNT(products.id)          AS retailer_count,
		        MIN(products.current_price) AS min_price,
		        MAX(products.current_price) AS max_price,
		        AVG(products.current_price) AS avg_price`).
		Joins("LEFT JOIN products ON products.group_id = product_groups.id").
		Group("product_groups.id").
		Order("product_groups.name ASC").
		Find(&rows).Error
	return rows, err
}

// Delete removes the group and cascades to its products and their history,
// all inside one transaction.
func (r *groupRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id IN (?)",
			tx.Model(&model.Product{}).Select("id").Where("group_id = ?", id),
		).Delete(&model.PriceHistoryPoint{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", id).Delete(&model.Product{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.ProductGroup{}, id).Error
	})
}

// PruneOrphans lazily removes groups whose last member product is gone.
func (r *groupRepo) PruneOrphans(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id NOT IN (?)",
			r.db.Model(&model.Product{}).Select("group_id").Where("group_id IS NOT NULL"),
		).
		Delete(&model.ProductGroup{})
	return res.RowsAffected, res.Error
}

