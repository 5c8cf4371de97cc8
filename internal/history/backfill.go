package history

import (
	"time"

	"github.com/shopspring/decimal"
)

// Existing identifies one persisted (timestamp, price) pair for a product.
type Existing struct {
	Timestamp time.Time
	Price     decimal.Decimal
}

// PlanBackfill selects the candidate points that may be inserted for a
// product. earliest is the oldest persisted timestamp (nil when the product
// has no history yet); existing are the rows already stored.
//
// Rules: a candidate lands on its day-start UTC timestamp; it is skipped when
// earliest exists and the candidate is not strictly before it — live-measured
// data is never superseded by reconstructed data — and when an identical
// (timestamp, price) pair is already stored or already planned. Running the
// same plan twice against the post-insert state yields nothing, which makes
// the backfill idempotent.
func PlanBackfill(points []PricePoint, earliest *time.Time, existing []Existing) []PricePoint {
	type pair struct {
		ts    int64
		price string
	}
	seen := make(map[pair]bool, len(existing))
	for _, e := range existing {
		seen[pair{e.Timestamp.UTC().Unix(), e.Price.String()}] = true
	}

	var plan []PricePoint
	for _, p := range points {
		ts := dayStart(p.Date)
		if earliest != nil && !ts.Before(earliest.UTC()) {
			continue
		}
		key := pair{ts.Unix(), p.Price.String()}
		if seen[key] {
			continue
		}
		seen[key] = true
		plan = append(plan, PricePoint{Date: ts, Price: p.Price})
	}
	return plan
}
