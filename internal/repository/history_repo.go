package repository

import (
	"context"
	"time"

	"github.com/S1njack/price-tracker-demo/internal/history"
	"github.com/S1njack/price-tracker-demo/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// HistoryRepository owns the append-only price history table.
type HistoryRepository interface {
	Append(ctx context.Context, productID uuid.UUID, price decimal.Decimal, at time.Time) error
	ListByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]model.PriceHistoryPoint, error)

	// Backfill merges reconstructed historical points under the non-overlap
	// invariant: only points strictly before the earliest live measurement are
	// inserted, exact (timestamp, price) duplicates are skipped, and repeating
	// the same call inserts nothing. Returns the number of rows inserted.
	Backfill(ctx context.Context, productID uuid.UUID, points []history.PricePoint) (int, error)
}

type historyRepo struct{ db *gorm.DB }

func NewHistoryRepository(db *gorm.DB) HistoryRepository { return &historyRepo{db: db} }

func (r *historyRepo) Append(ctx context.Context, productID uuid.UUID, price decimal.Decimal, at time.Time) error {
	point := model.PriceHistoryPoint{
		ProductID: productID,
		Price:     price,
		Timestamp: at,
	}
	return r.db.WithContext(ctx).Create(&point).Error
}

// ListByProduct returns the newest points first (for charts the caller
// reverses; the wire shape mirrors natural read order).
func (r *historyRepo) ListByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]model.PriceHistoryPoint, error) {
	if limit < 1 || limit > 5000 {
		limit = 720
	}
	var rows []model.PriceHistoryPoint
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *historyRepo) Backfill(ctx context.Context, productID uuid.UUID, points []history.PricePoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	inserted := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stored []model.PriceHistoryPoint
		if err := tx.Where("product_id = ?", productID).Find(&stored).Error; err != nil {
			return err
		}

		var earliest *time.Time
		existing := make([]history.Existing, len(stored))
		for i, row := range stored {
			ts := row.Timestamp.UTC()
			existing[i] = history.Existing{Timestamp: ts, Price: row.Price}
			if earliest == nil || ts.Before(*earliest) {
				earliest = &ts
			}
		}

		plan := history.PlanBackfill(points, earliest, existing)
		if len(plan) == 0 {
			return nil
		}

		rows := make([]model.PriceHistoryPoint, len(plan))
		for i, p := range plan {
			rows[i] = model.PriceHistoryPoint{
				ProductID: productID,
				Price:     p.Price,
				Timestamp: p.Date,
			}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		inserted = len(rows)
		return nil
	})
	return inserted, err
}
