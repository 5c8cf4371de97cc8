package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceHistoryPoint is one observed (or backfilled) price for a product.
// Rows are append-only — never updated or reordered. Backfilled rows always
// carry a timestamp strictly earlier than the earliest live measurement.
type PriceHistoryPoint struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Timestamp time.Time       `gorm:"not null;index"`

	Product Product `gorm:"foreignKey:ProductID"`
}

func (PriceHistoryPoint) TableName() string { return "price_history" }
