package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrackedProduct is one persisted retailer listing.
type TrackedProduct struct {
	ID           string          `json:"id"`
	GroupID      *string         `json:"group_id"`
	GroupModel   *string         `json:"group_model,omitempty"`
	Name         string          `json:"name"`
	Model        *string         `json:"model"`
	Brand        *string         `json:"brand"`
	Category     string          `json:"category"`
	URL          string          `json:"url"`
	Retailer     string          `json:"retailer"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	LastChecked  time.Time       `json:"last_checked"`
}

// GroupSummary is a group row with aggregate price stats across retailers.
type GroupSummary struct {
	ID            string    `json:"id"`
	Model         *string   `json:"model"`
	Name          string    `json:"name"`
	Brand         string    `json:"brand"`
	Category      string    `json:"category"`
	CreatedAt     time.Time `json:"created_at"`
	RetailerCount int64     `json:"retailer_count"`
	MinPrice      *float64  `json:"min_price"`
	MaxPrice      *float64  `json:"max_price"`
	AvgPrice      *float64  `json:"avg_price"`
}

// GroupComparison is the cross-retailer view for one group, members ordered
// cheapest-first.
type GroupComparison struct {
	Group         GroupSummary     `json:"group"`
	Products      []TrackedProduct `json:"products"`
	Cheapest      *TrackedProduct  `json:"cheapest"`
	MostExpensive *TrackedProduct  `json:"most_expensive"`
	PriceRange    decimal.Decimal  `json:"price_range"`
	RetailerCount int              `json:"retailer_count"`
}

// HistoryPoint is one price observation on the wire.
type HistoryPoint struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}
