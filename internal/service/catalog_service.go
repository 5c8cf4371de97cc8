package service

import (
	"context"
	"time"

	"github.com/S1njack/price-tracker-demo/internal/dto"
	"github.com/S1njack/price-tracker-demo/internal/model"
	"github.com/S1njack/price-tracker-demo/internal/repository"
	"github.com/S1njack/price-tracker-demo/internal/search"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Locator resolves a query to candidate listings. Satisfied by
// search.Orchestrator; stubbed in tests.
type Locator interface {
	Locate(ctx context.Context, query, modelHint string) ([]search.Candidate, error)
}

// BackfillEnqueuer hands a group off for background history backfill.
// Satisfied by worker.Dispatcher.
type BackfillEnqueuer interface {
	EnqueueBackfill(ctx context.Context, groupID uuid.UUID) error
}

// CatalogService defines the business logic for tracked products and groups.
type CatalogService interface {
	AddFromSearch(ctx context.Context, req dto.AddProductRequest) (*dto.AddProductResponse, error)
	Preview(ctx context.Context, req dto.SearchPreviewRequest) (*dto.SearchPreviewResponse, error)
	AddSelected(ctx context.Context, req dto.AddSelectedRequest) (*dto.AddProductResponse, error)

	ListProducts(ctx context.Context) ([]dto.TrackedProduct, error)
	ProductHistory(ctx context.Context, id uuid.UUID, days int) ([]dto.HistoryPoint, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error

	ListGroups(ctx context.Context) ([]dto.GroupSummary, error)
	GroupComparison(ctx context.Context, id uuid.UUID) (*dto.GroupComparison, error)
	DeleteGroup(ctx context.Context, id uuid.UUID) error

	CheckPrices(ctx context.Context) (*dto.CheckPricesResponse, error)
}

type catalogService struct {
	locator    Locator
	extractor  search.Extractor
	groups     repository.GroupRepository
	products   repository.ProductRepository
	history    repository.HistoryRepository
	dispatcher BackfillEnqueuer
	maxTracked int
}

func NewCatalogService(
	locator Locator,
	extractor search.Extractor,
	groups repository.GroupRepository,
	products repository.ProductRepository,
	history repository.HistoryRepository,
	dispatcher BackfillEnqueuer,
	maxTracked int,
) CatalogService {
	if maxTracked <= 0 {
		maxTracked = 100
	}
	return &catalogService{
		locator:    locator,
		extractor:  extractor,
		groups:     groups,
		products:   products,
		history:    history,
		dispatcher: dispatcher,
		maxTracked: maxTracked,
	}
}

func (s *catalogService) AddFromSearch(ctx context.Context, req dto.AddProductRequest) (*dto.AddProductResponse, error) {
	if !validCategory(req.Category) {
		return nil, ErrInvalidCategory
	}

	candidates, err := s.locator.Locate(ctx, req.Query, req.Model)
	if err != nil {
		return nil, err
	}
	candidates = search.Reconcile(candidates, req.Query)
	if len(candidates) == 0 {
		return nil, ErrNotFound
	}

	return s.persistCandidates(ctx, candidates, req.Category)
}

func (s *catalogService) Preview(ctx context.Context, req dto.SearchPreviewRequest) (*dto.SearchPreviewResponse, error) {
	if !validCategory(req.Category) {
		return nil, ErrInvalidCategory
	}

	candidates, err := s.locator.Locate(ctx, req.Query, "")
	if err != nil {
		return nil, err
	}
	candidates = search.Reconcile(candidates, req.Query)
	if len(candidates) == 0 {
		return nil, ErrNotFound
	}

	resp := &dto.SearchPreviewResponse{Query: req.Query, Found: len(candidates)}
	for _, c := range candidates {
		resp.Products = append(resp.Products, dto.CandidateResponse{
			Retailer: c.Retailer,
			URL:      c.URL,
			Name:     truncate(c.Product.Name, 200),
			Price:    c.Product.Price,
			Brand:    c.Product.Brand,
			Model:    c.Product.NativeID,
			Category: req.Category,
		})
	}
	return resp, nil
}

func (s *catalogService) AddSelected(ctx context.Context, req dto.AddSelectedRequest) (*dto.AddProductResponse, error) {
	if !validCategory(req.Category) {
		return nil, ErrInvalidCategory
	}

	candidates := make([]search.Candidate, len(req.Products))
	for i, p := range req.Products {
		candidates[i] = search.Candidate{
			Retailer: p.Retailer,
			URL:      p.URL,
			Product: &search.Listing{
				Name:     p.Name,
				Price:    p.Price,
				NativeID: p.Model,
				Brand:    p.Brand,
			},
		}
	}
	return s.persistCandidates(ctx, candidates, req.Category)
}

// persistCandidates is the shared tail of both add flows: group get-or-create
// keyed by the first candidate's native model id, URL-keyed upserts, one
// history point per listing, then a detached backfill kick-off.
func (s *catalogService) persistCandidates(ctx context.Context, candidates []search.Candidate, category string) (*dto.AddProductResponse, error) {
	now := time.Now().UTC()

	var groupID *uuid.UUID
	if first := candidates[0].Product; first.NativeID != "" {
		modelKey := first.NativeID
		brand := first.Brand
		if brand == "" {
			brand = "Unknown"
		}
		group, err := s.groups.GetOrCreate(ctx, &model.ProductGroup{
			Model:    &modelKey,
			Name:     truncate(first.Name, 200),
			Brand:    truncate(brand, 100),
			Category: category,
		})
		if err != nil {
			return nil, err
		}
		groupID = &group.ID
	}

	resp := &dto.AddProductResponse{Found: len(candidates)}
	if groupID != nil {
		id := groupID.String()
		resp.GroupID = &id
	}

	for _, c := range candidates {
		p := &model.Product{
			GroupID:      groupID,
			Name:         c.Product.Name,
			Category:     category,
			URL:          c.URL,
			Retailer:     c.Retailer,
			CurrentPrice: c.Product.Price,
			LastChecked:  now,
		}
		if c.Product.NativeID != "" {
			nativeID := c.Product.NativeID
			p.NativeID = &nativeID
		}
		if c.Product.Brand != "" {
			brand := c.Product.Brand
			p.Brand = &brand
		}

		if _, err := s.products.Upsert(ctx, p); err != nil {
			return nil, err
		}
		if err := s.history.Append(ctx, p.ID, p.CurrentPrice, now); err != nil {
			return nil, err
		}
		resp.Products = append(resp.Products, toTrackedProduct(*p, nil))
	}

	cheapest, dearest := priceExtremes(resp.Products)
	resp.Cheapest = cheapest
	resp.MostExpensive = dearest
	if cheapest != nil && dearest != nil {
		resp.PriceRange = dearest.CurrentPrice.Sub(cheapest.CurrentPrice)
	}

	// Backfill runs detached: it must never block or fail this request.
	if groupID != nil && s.dispatcher != nil {
		if err := s.dispatcher.EnqueueBackfill(ctx, *groupID); err != nil {
			log.Error().Err(err).Str("group_id", groupID.String()).Msg("failed to enqueue history backfill")
		}
	}

	return resp, nil
}

func (s *catalogService) ListProducts(ctx context.Context) ([]dto.TrackedProduct, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.TrackedProduct, len(products))
	for i, p := range products {
		out[i] = toTrackedProduct(p, p.Group)
	}
	return out, nil
}

func (s *catalogService) ProductHistory(ctx context.Context, id uuid.UUID, days int) ([]dto.HistoryPoint, error) {
	if days < 1 {
		days = 30
	}
	rows, err := s.history.ListByProduct(ctx, id, days*24)
	if err != nil {
		return nil, err
	}
	out := make([]dto.HistoryPoint, len(rows))
	for i, r := range rows {
		out[i] = dto.HistoryPoint{
			ID:        r.ID.String(),
			ProductID: r.ProductID.String(),
			Price:     r.Price,
			Timestamp: r.Timestamp,
		}
	}
	return out, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	groupID, err := s.products.Delete(ctx, id)
	if err != nil {
		return err
	}
	// Prune the group lazily when its last member is gone.
	if groupID != nil {
		remaining, err := s.products.ListByGroup(ctx, *groupID)
		if err == nil && len(remaining) == 0 {
			if err := s.groups.Delete(ctx, *groupID); err != nil {
				log.Error().Err(err).Str("group_id", groupID.String()).Msg("failed to prune emptied group")
			}
		}
	}
	return nil
}

func (s *catalogService) ListGroups(ctx context.Context) ([]dto.GroupSummary, error) {
	if pruned, err := s.groups.PruneOrphans(ctx); err == nil && pruned > 0 {
		log.Info().Int64("pruned", pruned).Msg("removed orphaned product groups")
	}

	rows, err := s.groups.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.GroupSummary, len(rows))
	for i, g := range rows {
		out[i] = toGroupSummary(g)
	}
	return out, nil
}

func (s *catalogService) GroupComparison(ctx context.Context, id uuid.UUID) (*dto.GroupComparison, error) {
	group, err := s.groups.FindByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	products, err := s.products.ListByGroup(ctx, id)
	if err != nil {
		return nil, err
	}

	comp := &dto.GroupComparison{
		Group: dto.GroupSummary{
			ID:        group.ID.String(),
			Model:     group.Model,
			Name:      group.Name,
			Brand:     group.Brand,
			Category:  group.Category,
			CreatedAt: group.CreatedAt,
		},
		RetailerCount: len(products),
	}
	for _, p := range products {
		comp.Products = append(comp.Products, toTrackedProduct(p, nil))
	}
	if len(comp.Products) > 0 {
		// Members arrive cheapest-first from the repository.
		comp.Cheapest = &comp.Products[0]
		comp.MostExpensive = &comp.Products[len(comp.Products)-1]
		comp.PriceRange = comp.MostExpensive.CurrentPrice.Sub(comp.Cheapest.CurrentPrice)
	}
	return comp, nil
}

func (s *catalogService) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	if _, err := s.groups.FindByID(ctx, id); err != nil {
		return ErrNotFound
	}
	return s.groups.Delete(ctx, id)
}

// CheckPrices re-extracts every tracked listing and appends a history point
// when the price moved. Extraction failures skip the product — the batch
// always completes.
func (s *catalogService) CheckPrices(ctx context.Context) (*dto.CheckPricesResponse, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(products) > s.maxTracked {
		return nil, ErrTooManyProducts
	}

	resp := &dto.CheckPricesResponse{Checked: len(products), Changes: []dto.PriceChange{}}
	for _, p := range products {
		listing, err := s.extractor.Extract(ctx, p.Retailer, p.URL)
		if err != nil {
			log.Warn().Err(err).Str("retailer", p.Retailer).Str("url", p.URL).Msg("price check failed for product")
			continue
		}

		now := time.Now().UTC()
		if err := s.products.UpdatePrice(ctx, p.ID, listing.Price, now); err != nil {
			log.Error().Err(err).Str("product_id", p.ID.String()).Msg("failed to update current price")
			continue
		}

		if !listing.Price.Equal(p.CurrentPrice) {
			if err := s.history.Append(ctx, p.ID, listing.Price, now); err != nil {
				log.Error().Err(err).Str("product_id", p.ID.String()).Msg("failed to append history point")
				continue
			}
			resp.Updated++
			resp.Changes = append(resp.Changes, dto.PriceChange{
				ID:       p.ID.String(),
				Name:     p.Name,
				Retailer: p.Retailer,
				OldPrice: p.CurrentPrice,
				NewPrice: listing.Price,
				Change:   listing.Price.Sub(p.CurrentPrice),
			})
		}
	}
	return resp, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func toTrackedProduct(p model.Product, group *model.ProductGroup) dto.TrackedProduct {
	out := dto.TrackedProduct{
		ID:           p.ID.String(),
		Name:         p.Name,
		Model:        p.NativeID,
		Brand:        p.Brand,
		Category:     p.Category,
		URL:          p.URL,
		Retailer:     p.Retailer,
		CurrentPrice: p.CurrentPrice,
		LastChecked:  p.LastChecked,
	}
	if p.GroupID != nil {
		id := p.GroupID.String()
		out.GroupID = &id
	}
	if group != nil {
		out.GroupModel = group.Model
	}
	return out
}

func toGroupSummary(g repository.GroupStats) dto.GroupSummary {
	return dto.GroupSummary{
		ID:            g.ID.String(),
		Model:         g.Model,
		Name:          g.Name,
		Brand:         g.Brand,
		Category:      g.Category,
		CreatedAt:     g.CreatedAt,
		RetailerCount: g.RetailerCount,
		MinPrice:      g.MinPrice,
		MaxPrice:      g.MaxPrice,
		AvgPrice:      g.AvgPrice,
	}
}

func priceExtremes(products []dto.TrackedProduct) (cheapest, dearest *dto.TrackedProduct) {
	for i := range products {
		if cheapest == nil || products[i].CurrentPrice.LessThan(cheapest.CurrentPrice) {
			cheapest = &products[i]
		}
		if dearest == nil || products[i].CurrentPrice.GreaterThan(dearest.CurrentPrice) {
			dearest = &products[i]
		}
	}
	return cheapest, dearest
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
