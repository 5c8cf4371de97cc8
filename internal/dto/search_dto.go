package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// AddProductRequest drives the search-and-track flow: locate the product at
// every retailer, reconcile, persist the survivors as one group.
type AddProductRequest struct {
	Query    string `json:"query"    validate:"required,min=2,max=200"`
	Model    string `json:"model"    validate:"omitempty,max=500"`
	Category string `json:"category" validate:"required"`
}

// SearchPreviewRequest runs the same search without persisting anything.
type SearchPreviewRequest struct {
	Query    string `json:"query"    validate:"required,min=2,max=200"`
	Category string `json:"category" validate:"required"`
}

// SelectedProduct is one preview row the user chose to track.
type SelectedProduct struct {
	Retailer string          `json:"retailer" validate:"required"`
	URL      string          `json:"url"      validate:"required,url"`
	Name     string          `json:"name"     validate:"required,max=200"`
	Price    decimal.Decimal `json:"price"    validate:"required"`
	Brand    string          `json:"brand"`
	Model    string          `json:"model"`
}

type AddSelectedRequest struct {
	Products []SelectedProduct `json:"products" validate:"required,min=1,dive"`
	Category string            `json:"category" validate:"required"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type CandidateResponse struct {
	Retailer string          `json:"retailer"`
	URL      string          `json:"url"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Brand    string          `json:"brand"`
	Model    string          `json:"model"`
	Category string          `json:"category"`
}

type SearchPreviewResponse struct {
	Query    string              `json:"query"`
	Found    int                 `json:"found"`
	Products []CandidateResponse `json:"products"`
}

type AddProductResponse struct {
	Found         int               `json:"found"`
	GroupID       *string           `json:"group_id"`
	Products      []TrackedProduct  `json:"products"`
	Cheapest      *TrackedProduct   `json:"cheapest"`
	MostExpensive *TrackedProduct   `json:"most_expensive"`
	PriceRange    decimal.Decimal   `json:"price_range"`
}

type CheckPricesResponse struct {
	Checked int           `json:"checked"`
	Updated int           `json:"updated"`
	Changes []PriceChange `json:"changes"`
}

type PriceChange struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Retailer string          `json:"retailer"`
	OldPrice decimal.Decimal `json:"old_price"`
	NewPrice decimal.Decimal `json:"new_price"`
	Change   decimal.Decimal `json:"change"`
}
