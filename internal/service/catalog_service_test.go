package service_test

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/S1njack/price-tracker-demo/internal/dto"
	"github.com/S1njack/price-tracker-demo/internal/history"
	"github.com/S1njack/price-tracker-demo/internal/model"
	"github.com/S1njack/price-tracker-demo/internal/repository"
	"github.com/S1njack/price-tracker-demo/internal/search"
	"github.com/S1njack/price-tracker-demo/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── In-memory repository stubs ───────────────────────────────────────────────

type memGroupRepo struct {
	groups map[uuid.UUID]*model.ProductGroup
}

func newMemGroupRepo() *memGroupRepo {
	return &memGroupRepo{groups: make(map[uuid.UUID]*model.ProductGroup)}
}

func (r *memGroupRepo) FindByID(_ context.Context, id uuid.UUID) (*model.ProductGroup, error) {
	g, ok := r.groups[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return g, nil
}

func (r *memGroupRepo) FindByModel(_ context.Context, modelKey string) (*model.ProductGroup, error) {
	for _, g := range r.groups {
		if g.Model != nil && *g.Model == modelKey {
			return g, nil
		}
	}
	return nil, errors.New("record not found")
}

func (r *memGroupRepo) GetOrCreate(ctx context.Context, g *model.ProductGroup) (*model.ProductGroup, error) {
	if g.Model != nil {
		if existing, err := r.FindByModel(ctx, *g.Model); err == nil {
			return existing, nil
		}
	}
	g.ID = uuid.New()
	g.CreatedAt = time.Now().UTC()
	r.groups[g.ID] = g
	return g, nil
}

func (r *memGroupRepo) List(context.Context) ([]repository.GroupStats, error) {
	out := make([]repository.GroupStats, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, repository.GroupStats{ProductGroup: *g})
	}
	return out, nil
}

func (r *memGroupRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.groups, id)
	return nil
}

func (r *memGroupRepo) PruneOrphans(context.Context) (int64, error) { return 0, nil }

type memProductRepo struct {
	products map[uuid.UUID]*model.Product
}

func newMemProductRepo() *memProductRepo {
	return &memProductRepo{products: make(map[uuid.UUID]*model.Product)}
}

func (r *memProductRepo) Upsert(_ context.Context, p *model.Product) (*model.Product, error) {
	for _, existing := range r.products {
		if existing.URL == p.URL {
			existing.Name = p.Name
			existing.NativeID = p.NativeID
			existing.Brand = p.Brand
			existing.Category = p.Category
			existing.CurrentPrice = p.CurrentPrice
			existing.LastChecked = p.LastChecked
			existing.GroupID = p.GroupID
			*p = *existing
			return p, nil
		}
	}
	p.ID = uuid.New()
	cp := *p
	r.products[p.ID] = &cp
	return p, nil
}

func (r *memProductRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return p, nil
}

func (r *memProductRepo) List(context.Context) ([]model.Product, error) {
	out := make([]model.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memProductRepo) ListByGroup(_ context.Context, groupID uuid.UUID) ([]model.Product, error) {
	var out []model.Product
	for _, p := range r.products {
		if p.GroupID != nil && *p.GroupID == groupID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CurrentPrice.LessThan(out[j].CurrentPrice) })
	return out, nil
}

func (r *memProductRepo) Count(context.Context) (int64, error) {
	return int64(len(r.products)), nil
}

func (r *memProductRepo) UpdatePrice(_ context.Context, id uuid.UUID, price decimal.Decimal, checkedAt time.Time) error {
	p, ok := r.products[id]
	if !ok {
		return errors.New("record not found")
	}
	p.CurrentPrice = price
	p.LastChecked = checkedAt
	return nil
}

func (r *memProductRepo) Delete(_ context.Context, id uuid.UUID) (*uuid.UUID, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	delete(r.products, id)
	return p.GroupID, nil
}

type memHistoryRepo struct {
	rows []model.PriceHistoryPoint
}

func (r *memHistoryRepo) Append(_ context.Context, productID uuid.UUID, price decimal.Decimal, at time.Time) error {
	r.rows = append(r.rows, model.PriceHistoryPoint{
		ID:        uuid.New(),
		ProductID: productID,
		Price:     price,
		Timestamp: at,
	})
	return nil
}

func (r *memHistoryRepo) ListByProduct(_ context.Context, productID uuid.UUID, limit int) ([]model.PriceHistoryPoint, error) {
	var out []model.PriceHistoryPoint
	for _, row := range r.rows {
		if row.ProductID == productID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memHistoryRepo) Backfill(ctx context.Context, productID uuid.UUID, points []history.PricePoint) (int, error) {
	var earliest *time.Time
	var existing []history.Existing
	for _, row := range r.rows {
		if row.ProductID != productID {
			continue
		}
		ts := row.Timestamp
		if earliest == nil || ts.Before(*earliest) {
			earliest = &ts
		}
		existing = append(existing, history.Existing{Timestamp: row.Timestamp, Price: row.Price})
	}
	plan := history.PlanBackfill(points, earliest, existing)
	for _, p := range plan {
		_ = r.Append(ctx, productID, p.Price, p.Date)
	}
	return len(plan), nil
}

func (r *memHistoryRepo) countFor(productID uuid.UUID) int {
	n := 0
	for _, row := range r.rows {
		if row.ProductID == productID {
			n++
		}
	}
	return n
}

// ── Search pipeline stubs ────────────────────────────────────────────────────

type stubLocator struct {
	candidates []search.Candidate
	err        error
	calls      int
}

func (l *stubLocator) Locate(context.Context, string, string) ([]search.Candidate, error) {
	l.calls++
	return l.candidates, l.err
}

type stubExtractor struct {
	prices  map[string]decimal.Decimal // by URL
	failFor map[string]bool
}

func (e *stubExtractor) Extract(_ context.Context, _ string, url string) (*search.Listing, error) {
	if e.failFor[url] {
		return nil, errors.New("page gone")
	}
	price, ok := e.prices[url]
	if !ok {
		return nil, errors.New("no price for url")
	}
	return &search.Listing{Name: "stub", Price: price}, nil
}

type stubEnqueuer struct {
	enqueued []uuid.UUID
}

func (e *stubEnqueuer) EnqueueBackfill(_ context.Context, groupID uuid.UUID) error {
	e.enqueued = append(e.enqueued, groupID)
	return nil
}

// ── Fixtures ─────────────────────────────────────────────────────────────────

type fixture struct {
	groups   *memGroupRepo
	products *memProductRepo
	history  *memHistoryRepo
	locator  *stubLocator
	extract  *stubExtractor
	enqueuer *stubEnqueuer
	svc      service.CatalogService
}

func newFixture(locator *stubLocator, extract *stubExtractor) *fixture {
	f := &fixture{
		groups:   newMemGroupRepo(),
		products: newMemProductRepo(),
		history:  &memHistoryRepo{},
		locator:  locator,
		extract:  extract,
		enqueuer: &stubEnqueuer{},
	}
	f.svc = service.NewCatalogService(locator, extract, f.groups, f.products, f.history, f.enqueuer, 100)
	return f
}

func twoRetailerCandidates() []search.Candidate {
	return []search.Candidate{
		{
			Retailer: "PBTech",
			URL:      "https://www.pbtech.co.nz/product/MW123/macbook-air",
			Product: &search.Listing{
				Name:     "Apple MacBook Air M4 256GB",
				Price:    decimal.NewFromFloat(1999),
				NativeID: "MW123",
				Brand:    "Apple",
			},
		},
		{
			Retailer: "JB Hi-Fi",
			URL:      "https://www.jbhifi.co.nz/products/macbook-air-m4",
			Product: &search.Listing{
				Name:     "Apple MacBook Air M4 256GB",
				Price:    decimal.NewFromFloat(2049),
				NativeID: "MW123",
				Brand:    "Apple",
			},
		},
	}
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestAddFromSearchTracksReconciledCandidates(t *testing.T) {
	f := newFixture(&stubLocator{candidates: twoRetailerCandidates()}, &stubExtractor{})

	resp, err := f.svc.AddFromSearch(context.Background(), dto.AddProductRequest{
		Query:    "MacBook Air M4",
		Category: "Laptops",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Found)
	require.NotNil(t, resp.GroupID)
	require.Len(t, resp.Products, 2)

	// One group keyed by the first candidate's model id.
	require.Len(t, f.groups.groups, 1)
	groupID, _ := uuid.Parse(*resp.GroupID)
	group := f.groups.groups[groupID]
	require.NotNil(t, group.Model)
	assert.Equal(t, "MW123", *group.Model)
	assert.Equal(t, "Apple", group.Brand)
	assert.Equal(t, "Laptops", group.Category)

	// Every tracked listing opens its history with the observed price.
	assert.Len(t, f.history.rows, 2)

	// Price extremes and spread across retailers.
	require.NotNil(t, resp.Cheapest)
	require.NotNil(t, resp.MostExpensive)
	assert.Equal(t, "PBTech", resp.Cheapest.Retailer)
	assert.Equal(t, "JB Hi-Fi", resp.MostExpensive.Retailer)
	assert.Equal(t, "50", resp.PriceRange.String())

	// Backfill kicked off for the new group.
	require.Len(t, f.enqueuer.enqueued, 1)
	assert.Equal(t, groupID, f.enqueuer.enqueued[0])
}

func TestAddFromSearchInvalidCategory(t *testing.T) {
	loc := &stubLocator{candidates: twoRetailerCandidates()}
	f := newFixture(loc, &stubExtractor{})

	_, err := f.svc.AddFromSearch(context.Background(), dto.AddProductRequest{
		Query:    "MacBook Air M4",
		Category: "Groceries",
	})
	assert.ErrorIs(t, err, service.ErrInvalidCategory)
	assert.Zero(t, loc.calls)
}

func TestAddFromSearchNothingFound(t *testing.T) {
	f := newFixture(&stubLocator{}, &stubExtractor{})

	_, err := f.svc.AddFromSearch(context.Background(), dto.AddProductRequest{
		Query:    "MacBook Air M4",
		Category: "Laptops",
	})
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestAddFromSearchWithoutModelTracksUngrouped(t *testing.T) {
	candidates := twoRetailerCandidates()
	for i := range candidates {
		candidates[i].Product.NativeID = ""
	}
	f := newFixture(&stubLocator{candidates: candidates}, &stubExtractor{})

	resp, err := f.svc.AddFromSearch(context.Background(), dto.AddProductRequest{
		Query:    "MacBook Air M4",
		Category: "Laptops",
	})
	require.NoError(t, err)

	assert.Nil(t, resp.GroupID)
	assert.Empty(t, f.groups.groups)
	assert.Empty(t, f.enqueuer.enqueued)
	for _, p := range resp.Products {
		assert.Nil(t, p.GroupID)
	}
}

func TestAddSelectedSkipsSearch(t *testing.T) {
	loc := &stubLocator{}
	f := newFixture(loc, &stubExtractor{})

	resp, err := f.svc.AddSelected(context.Background(), dto.AddSelectedRequest{
		Category: "Laptops",
		Products: []dto.SelectedProduct{
			{
				Retailer: "PBTech",
				URL:      "https://www.pbtech.co.nz/product/MW123/macbook-air",
				Name:     "Apple MacBook Air M4",
				Price:    decimal.NewFromFloat(1999),
				Brand:    "Apple",
				Model:    "MW123",
			},
		},
	})
	require.NoError(t, err)

	assert.Zero(t, loc.calls)
	assert.Equal(t, 1, resp.Found)
	require.NotNil(t, resp.GroupID)
	assert.Len(t, f.enqueuer.enqueued, 1)
}

func TestAddFromSearchUpsertIsStable(t *testing.T) {
	f := newFixture(&stubLocator{candidates: twoRetailerCandidates()}, &stubExtractor{})

	req := dto.AddProductRequest{Query: "MacBook Air M4", Category: "Laptops"}
	_, err := f.svc.AddFromSearch(context.Background(), req)
	require.NoError(t, err)
	_, err = f.svc.AddFromSearch(context.Background(), req)
	require.NoError(t, err)

	// URL identity: re-adding refreshes rows instead of duplicating them.
	assert.Len(t, f.products.products, 2)
	assert.Len(t, f.groups.groups, 1)
}

func TestDeleteProductPrunesEmptiedGroup(t *testing.T) {
	f := newFixture(&stubLocator{candidates: twoRetailerCandidates()[:1]}, &stubExtractor{})

	resp, err := f.svc.AddFromSearch(context.Background(), dto.AddProductRequest{
		Query:    "MacBook Air M4",
		Category: "Laptops",
	})
	require.NoError(t, err)
	require.Len(t, resp.Products, 1)

	productID, _ := uuid.Parse(resp.Products[0].ID)
	require.NoError(t, f.svc.DeleteProduct(context.Background(), productID))

	assert.Empty(t, f.products.products)
	assert.Empty(t, f.groups.groups)
}

func TestGroupComparisonOrdersByPrice(t *testing.T) {
	f := newFixture(&stubLocator{candidates: twoRetailerCandidates()}, &stubExtractor{})

	resp, err := f.svc.AddFromSearch(context.Background(), dto.AddProductRequest{
		Query:    "MacBook Air M4",
		Category: "Laptops",
	})
	require.NoError(t, err)
	groupID, _ := uuid.Parse(*resp.GroupID)

	comp, err := f.svc.GroupComparison(context.Background(), groupID)
	require.NoError(t, err)

	require.Len(t, comp.Products, 2)
	assert.Equal(t, 2, comp.RetailerCount)
	assert.Equal(t, "PBTech", comp.Cheapest.Retailer)
	assert.Equal(t, "JB Hi-Fi", comp.MostExpensive.Retailer)
	assert.Equal(t, "50", comp.PriceRange.String())
}

func TestGroupComparisonUnknownGroup(t *testing.T) {
	f := newFixture(&stubLocator{}, &stubExtractor{})

	_, err := f.svc.GroupComparison(context.Background(), uuid.New())
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestCheckPricesRecordsOnlyChanges(t *testing.T) {
	ext := &stubExtractor{prices: map[string]decimal.Decimal{}, failFor: map[string]bool{}}
	f := newFixture(&stubLocator{candidates: twoRetailerCandidates()}, ext)

	resp, err := f.svc.AddFromSearch(context.Background(), dto.AddProductRequest{
		Query:    "MacBook Air M4",
		Category: "Laptops",
	})
	require.NoError(t, err)
	historyBefore := len(f.history.rows)

	// PBTech dropped its price; JB Hi-Fi held steady.
	ext.prices["https://www.pbtech.co.nz/product/MW123/macbook-air"] = decimal.NewFromFloat(1899)
	ext.prices["https://www.jbhifi.co.nz/products/macbook-air-m4"] = decimal.NewFromFloat(2049)

	check, err := f.svc.CheckPrices(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, check.Checked)
	assert.Equal(t, 1, check.Updated)
	require.Len(t, check.Changes, 1)
	assert.Equal(t, "PBTech", check.Changes[0].Retailer)
	assert.Equal(t, "-100", check.Changes[0].Change.String())

	// Exactly one new history point, for the changed product.
	assert.Len(t, f.history.rows, historyBefore+1)

	// The stored current price moved too.
	pbID, _ := uuid.Parse(resp.Cheapest.ID)
	p, err := f.products.FindByID(context.Background(), pbID)
	require.NoError(t, err)
	assert.Equal(t, "1899", p.CurrentPrice.String())
}

func TestCheckPricesSkipsFailedExtractions(t *testing.T) {
	ext := &stubExtractor{
		prices:  map[string]decimal.Decimal{"https://www.jbhifi.co.nz/products/macbook-air-m4": decimal.NewFromFloat(1999)},
		failFor: map[string]bool{"https://www.pbtech.co.nz/product/MW123/macbook-air": true},
	}
	f := newFixture(&stubLocator{candidates: twoRetailerCandidates()}, ext)

	_, err := f.svc.AddFromSearch(context.Background(), dto.AddProductRequest{
		Query:    "MacBook Air M4",
		Category: "Laptops",
	})
	require.NoError(t, err)

	check, err := f.svc.CheckPrices(context.Background())
	require.NoError(t, err)

	// The failed extraction is skipped; the batch still completes.
	assert.Equal(t, 2, check.Checked)
	assert.Equal(t, 1, check.Updated)
}

func TestCheckPricesEnforcesTrackedLimit(t *testing.T) {
	f := &fixture{
		groups:   newMemGroupRepo(),
		products: newMemProductRepo(),
		history:  &memHistoryRepo{},
		enqueuer: &stubEnqueuer{},
	}
	f.svc = service.NewCatalogService(&stubLocator{candidates: twoRetailerCandidates()}, &stubExtractor{}, f.groups, f.products, f.history, f.enqueuer, 1)

	_, err := f.svc.AddFromSearch(context.Background(), dto.AddProductRequest{
		Query:    "MacBook Air M4",
		Category: "Laptops",
	})
	require.NoError(t, err)

	_, err = f.svc.CheckPrices(context.Background())
	assert.ErrorIs(t, err, service.ErrTooManyProducts)
}

func TestProductHistoryLimitsWindow(t *testing.T) {
	f := newFixture(&stubLocator{candidates: twoRetailerCandidates()[:1]}, &stubExtractor{})

	resp, err := f.svc.AddFromSearch(context.Background(), dto.AddProductRequest{
		Query:    "MacBook Air M4",
		Category: "Laptops",
	})
	require.NoError(t, err)
	productID, _ := uuid.Parse(resp.Products[0].ID)

	points, err := f.svc.ProductHistory(context.Background(), productID, 30)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, f.history.countFor(productID), len(points))
}
