package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/S1njack/price-tracker-demo/internal/model"
	"github.com/S1njack/price-tracker-demo/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAggregator struct {
	pageURL string
	blob    any
	err     error
}

func (a *stubAggregator) Search(context.Context, string, []string) (map[string]string, error) {
	return nil, errors.New("not used here")
}

func (a *stubAggregator) ProductPage(context.Context, string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	return a.pageURL, nil
}

func (a *stubAggregator) FetchHistory(context.Context, string) (any, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.blob, nil
}

func seriesBlob(points ...[2]any) map[string]any {
	raw := make([]any, len(points))
	for i, p := range points {
		raw[i] = map[string]any{"date": p[0], "price": p[1]}
	}
	return map[string]any{"props": map[string]any{"priceHistory": raw}}
}

func TestBackfillGroupMergesBehindStoredHistory(t *testing.T) {
	groups := newMemGroupRepo()
	products := newMemProductRepo()
	hist := &memHistoryRepo{}

	modelKey := "MW123"
	group, err := groups.GetOrCreate(context.Background(), &model.ProductGroup{
		Model:    &modelKey,
		Name:     "Apple MacBook Air M4 256GB",
		Brand:    "Apple",
		Category: "Laptops",
	})
	require.NoError(t, err)

	p := &model.Product{
		GroupID:      &group.ID,
		Name:         "Apple MacBook Air M4 256GB",
		Category:     "Laptops",
		URL:          "https://www.pbtech.co.nz/product/MW123/macbook-air",
		Retailer:     "PBTech",
		CurrentPrice: decimal.NewFromFloat(1999),
		LastChecked:  time.Now().UTC(),
	}
	_, err = products.Upsert(context.Background(), p)
	require.NoError(t, err)

	// Live measurement on June 1 — only points strictly before it may land.
	liveAt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, hist.Append(context.Background(), p.ID, decimal.NewFromFloat(1999), liveAt))

	agg := &stubAggregator{
		pageURL: "https://pricespy.co.nz/product.php?p=12345",
		blob: seriesBlob(
			[2]any{"2024-05-01", 2099.0},
			[2]any{"2024-05-15", 2049.0},
			[2]any{"2024-07-01", 1899.0}, // after the live point — must not land
		),
	}

	svc := service.NewBackfillService(agg, groups, products, hist)

	inserted, err := svc.BackfillGroup(context.Background(), group.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.Equal(t, 3, hist.countFor(p.ID))

	// Re-running the same backfill inserts nothing.
	inserted, err = svc.BackfillGroup(context.Background(), group.ID)
	require.NoError(t, err)
	assert.Zero(t, inserted)
	assert.Equal(t, 3, hist.countFor(p.ID))
}

func TestBackfillGroupNoMembersIsNoop(t *testing.T) {
	groups := newMemGroupRepo()
	modelKey := "MW123"
	group, err := groups.GetOrCreate(context.Background(), &model.ProductGroup{Model: &modelKey, Name: "x", Brand: "y", Category: "Laptops"})
	require.NoError(t, err)

	svc := service.NewBackfillService(&stubAggregator{}, groups, newMemProductRepo(), &memHistoryRepo{})

	inserted, err := svc.BackfillGroup(context.Background(), group.ID)
	require.NoError(t, err)
	assert.Zero(t, inserted)
}

func TestBackfillGroupUnknownGroup(t *testing.T) {
	svc := service.NewBackfillService(&stubAggregator{}, newMemGroupRepo(), newMemProductRepo(), &memHistoryRepo{})

	_, err := svc.BackfillGroup(context.Background(), uuid.New())
	assert.Error(t, err)
}

func TestBackfillGroupAggregatorFailure(t *testing.T) {
	groups := newMemGroupRepo()
	products := newMemProductRepo()

	modelKey := "MW123"
	group, err := groups.GetOrCreate(context.Background(), &model.ProductGroup{Model: &modelKey, Name: "x", Brand: "y", Category: "Laptops"})
	require.NoError(t, err)

	p := &model.Product{
		GroupID:      &group.ID,
		Name:         "x",
		Category:     "Laptops",
		URL:          "https://www.pbtech.co.nz/product/A/x",
		Retailer:     "PBTech",
		CurrentPrice: decimal.NewFromFloat(1),
		LastChecked:  time.Now().UTC(),
	}
	_, err = products.Upsert(context.Background(), p)
	require.NoError(t, err)

	svc := service.NewBackfillService(&stubAggregator{err: errors.New("aggregator down")}, groups, products, &memHistoryRepo{})

	_, err = svc.BackfillGroup(context.Background(), group.ID)
	assert.Error(t, err)
}
