// Package history extracts embedded price-time series from the arbitrary
// nested payloads an aggregator page carries (decoded API responses, hydration
// state) and plans their merge into persisted history.
//
// Third-party embedded schemas are undocumented and unstable, so the search is
// best-effort: depth-bounded, acceptance-thresholded, first match wins. That
// trades completeness for robustness against both short unrelated arrays and
// pathological nesting.
package history

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is one normalized historical observation: a day-granularity UTC
// date and a strictly positive price.
type PricePoint struct {
	Date  time.Time       `json:"date"`
	Price decimal.Decimal `json:"price"`
}

const (
	maxDepth  = 8
	minPoints = 3
)

// seriesKeys are checked in order at every object node. The list mirrors the
// key names seen in the wild across chart and statistics payloads.
var seriesKeys = []string{
	"priceHistory", "price_history", "chartData", "chart_data",
	"series", "data", "points", "prices", "history",
	"priceData", "price_data", "datasets", "values",
	"graphData", "graph_data", "statistics", "stats",
	"lowestPrices", "lowest_prices", "pricePoints",
}

var dateAliases = []string{"date", "x", "timestamp", "time", "t", "created", "day"}
var priceAliases = []string{"price", "y", "value", "v", "min", "lowest", "amount"}

// FindSeries searches a decoded payload for an embedded price series.
// Traversal is a depth-bounded walk over the closed node model
// {object, sequence, scalar}; a sequence of ≥3 elements that normalizes to ≥3
// valid points is accepted immediately. Returns nil when nothing qualifies.
// Output is sorted ascending by date.
func FindSeries(blob any) []PricePoint {
	return deepSearch(blob, 0)
}

func deepSearch(node any, depth int) []PricePoint {
	if depth > maxDepth {
		return nil
	}

	switch v := node.(type) {
	case map[string]any:
		// Known series-bearing keys first, in fixed order.
		for _, key := range seriesKeys {
			val, ok := v[key]
			if !ok {
				continue
			}
			switch inner := val.(type) {
			case []any:
				if len(inner) >= minPoints {
					if points := normalizePoints(inner); len(points) >= minPoints {
						sortAscending(points)
						return points
					}
				}
			case map[string]any:
				if points := deepSearch(inner, depth+1); points != nil {
					return points
				}
			}
		}
		// Then every nested container, in key order so sibling candidates
		// resolve to the same series on every run.
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			switch v[key].(type) {
			case map[string]any, []any:
				if points := deepSearch(v[key], depth+1); points != nil {
					return points
				}
			}
		}

	case []any:
		// A bare sequence may itself be the series.
		if len(v) >= minPoints {
			if points := normalizePoints(v); len(points) >= minPoints {
				sortAscending(points)
				return points
			}
		}
		for _, item := range v {
			switch item.(type) {
			case map[string]any, []any:
				if points := deepSearch(item, depth+1); points != nil {
					return points
				}
			}
		}
	}

	return nil
}

// normalizePoints converts a candidate sequence into clean points. Elements
// are either keyed records (date/price located via alias lists) or 2-element
// positional [date, price] pairs. An element failing either half is dropped,
// never the whole series.
func normalizePoints(raw []any) []PricePoint {
	points := make([]PricePoint, 0, len(raw))

	for _, el := range raw {
		var date time.Time
		var price decimal.Decimal
		var okDate, okPrice bool

		switch v := el.(type) {
		case map[string]any:
			for _, key := range dateAliases {
				if dv, ok := v[key]; ok {
					if d, ok := normalizeDate(dv); ok {
						date, okDate = d, true
						break
					}
				}
			}
			for _, key := range priceAliases {
				if pv, ok := v[key]; ok && pv != nil {
					if p, ok := normalizePrice(pv); ok {
						price, okPrice = p, true
						break
					}
				}
			}
		case []any:
			if len(v) >= 2 {
				date, okDate = normalizeDate(v[0])
				price, okPrice = normalizePrice(v[1])
			}
		}

		if okDate && okPrice {
			points = append(points, PricePoint{Date: date, Price: price})
		}
	}
	return points
}

var dateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z",
	time.RFC3339,
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05.999999Z",
}

// normalizeDate accepts unix seconds, unix milliseconds (magnitude ≥ 1e12),
// or one of several calendar layouts, and truncates to a UTC day.
func normalizeDate(val any) (time.Time, bool) {
	switch v := val.(type) {
	case float64:
		return dateFromUnix(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return dateFromUnix(f)
		}
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return dayStart(t), true
			}
		}
		// Unix timestamp serialized as a string.
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return dateFromUnix(f)
		}
	}
	return time.Time{}, false
}

func dateFromUnix(ts float64) (time.Time, bool) {
	if ts <= 0 {
		return time.Time{}, false
	}
	if ts >= 1e12 { // milliseconds
		ts /= 1000
	}
	return dayStart(time.Unix(int64(ts), 0)), true
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func normalizePrice(val any) (decimal.Decimal, bool) {
	var d decimal.Decimal
	switch v := val.(type) {
	case float64:
		d = decimal.NewFromFloat(v)
	case json.Number:
		parsed, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Decimal{}, false
		}
		d = parsed
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Decimal{}, false
		}
		d = parsed
	default:
		return decimal.Decimal{}, false
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, false
	}
	return d, true
}

func sortAscending(points []PricePoint) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
}
