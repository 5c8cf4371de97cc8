// Package search implements the multi-source search orchestration: a two-stage
// aggregator + direct-retailer lookup, browser-backed extraction of the
// resolved product pages, and the heuristic filtering that turns noisy search
// results into a clean one-listing-per-retailer comparison set.
package search

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Listing is the raw product data extracted from one retailer page.
type Listing struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	NativeID string          `json:"native_id,omitempty"` // SKU / model code, "" when the page has none
	Brand    string          `json:"brand,omitempty"`
}

// Candidate is a (retailer, URL, extracted listing) tuple pending filtering
// into the canonical comparison set. Product is nil when extraction failed.
type Candidate struct {
	Retailer string   `json:"retailer"`
	URL      string   `json:"url"`
	Product  *Listing `json:"product"`
}

// Aggregator is the cross-retailer comparison source (stage 1 of every
// search, and the origin of historical price series).
type Aggregator interface {
	// Search returns retailer name → offer URL for every configured retailer
	// the aggregator found an offer at. The map may be empty.
	Search(ctx context.Context, query string, retailers []string) (map[string]string, error)

	// ProductPage resolves a query to the aggregator's own product page
	// identifier, used later to fetch the embedded price history payload.
	ProductPage(ctx context.Context, query string) (string, error)

	// FetchHistory loads the aggregator product page and returns the raw
	// nested payload (decoded JSON state) that may embed a price series.
	FetchHistory(ctx context.Context, pageURL string) (any, error)
}

// Retailer searches one shop's own site. Results are ordered best-first.
type Retailer interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

// Extractor pulls a Listing out of a retailer product page. Implementations
// may share a single exclusive browsing session; the orchestrator serializes
// calls, so Extract is never invoked concurrently.
type Extractor interface {
	Extract(ctx context.Context, retailer, url string) (*Listing, error)
}

var (
	// ErrInvalidQuery rejects malformed queries before any I/O happens.
	ErrInvalidQuery = errors.New("invalid search query")
	// ErrAggregatorUnavailable marks a total stage-1 failure. It triggers the
	// all-retailers fallback path and is never returned to callers of Locate.
	ErrAggregatorUnavailable = errors.New("aggregator unavailable")
)
