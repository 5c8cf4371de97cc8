package service

import (
	"context"
	"fmt"

	"github.com/S1njack/price-tracker-demo/internal/history"
	"github.com/S1njack/price-tracker-demo/internal/repository"
	"github.com/S1njack/price-tracker-demo/internal/search"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// BackfillService pulls historical price series from the aggregator and
// merges them behind each tracked product's stored history.
type BackfillService interface {
	BackfillGroup(ctx context.Context, groupID uuid.UUID) (int, error)
}

type backfillService struct {
	aggregator search.Aggregator
	groups     repository.GroupRepository
	products   repository.ProductRepository
	history    repository.HistoryRepository
}

func NewBackfillService(
	aggregator search.Aggregator,
	groups repository.GroupRepository,
	products repository.ProductRepository,
	historyRepo repository.HistoryRepository,
) BackfillService {
	return &backfillService{
		aggregator: aggregator,
		groups:     groups,
		products:   products,
		history:    historyRepo,
	}
}

// BackfillGroup locates the group's product page on the aggregator, extracts
// the embedded price series and inserts only the points strictly older than
// each member's earliest stored observation. Returns the total inserted row
// count across members.
func (s *backfillService) BackfillGroup(ctx context.Context, groupID uuid.UUID) (int, error) {
	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		return 0, fmt.Errorf("backfill: load group: %w", err)
	}
	products, err := s.products.ListByGroup(ctx, groupID)
	if err != nil {
		return 0, fmt.Errorf("backfill: load group members: %w", err)
	}
	if len(products) == 0 {
		return 0, nil
	}

	query := search.NormalizeQuery(group.Name)
	if query == "" {
		query = group.Name
	}

	pageURL, err := s.aggregator.ProductPage(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("backfill: locate aggregator page: %w", err)
	}
	blob, err := s.aggregator.FetchHistory(ctx, pageURL)
	if err != nil {
		return 0, fmt.Errorf("backfill: fetch series: %w", err)
	}

	points := history.FindSeries(blob)
	if len(points) == 0 {
		log.Info().Str("group_id", groupID.String()).Str("query", query).Msg("no usable price series on aggregator page")
		return 0, nil
	}

	total := 0
	for _, p := range products {
		inserted, err := s.history.Backfill(ctx, p.ID, points)
		if err != nil {
			log.Error().Err(err).Str("product_id", p.ID.String()).Msg("backfill insert failed for product")
			continue
		}
		total += inserted
	}

	log.Info().
		Str("group_id", groupID.String()).
		Int("series_points", len(points)).
		Int("inserted", total).
		Msg("history backfill completed")
	return total, nil
}
