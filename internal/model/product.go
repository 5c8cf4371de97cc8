package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is one retailer's listing of a tracked item. URL is the upsert key:
// re-adding the same listing updates price and metadata instead of duplicating
// the row. A product belongs to at most one group.
type Product struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	GroupID      *uuid.UUID `gorm:"type:uuid;index"`
	Name         string     `gorm:"index;not null"`
	NativeID     *string    // retailer SKU / model code, when the page exposes one
	Brand        *string
	Category     string
	URL          string          `gorm:"uniqueIndex;not null"`
	Retailer     string          `gorm:"not null"`
	CurrentPrice decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	LastChecked  time.Time

	Group *ProductGroup `gorm:"foreignKey:GroupID"`
}
