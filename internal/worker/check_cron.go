package worker

// check_cron.go
// Background goroutine that periodically re-checks the current price of every
// tracked product. Disabled when the interval is zero.

import (
	"context"
	"time"

	"github.com/S1njack/price-tracker-demo/internal/service"

	"github.com/rs/zerolog/log"
)

// StartCheckCron launches a goroutine running a full price check every
// interval. It respects the context for graceful shutdown.
func StartCheckCron(ctx context.Context, catalog service.CatalogService, interval time.Duration) {
	if interval <= 0 {
		log.Info().Msg("check_cron: disabled")
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info().Dur("interval", interval).Msg("check_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("check_cron: shutting down")
				return
			case <-ticker.C:
				runCheck(ctx, catalog)
			}
		}
	}()
}

func runCheck(ctx context.Context, catalog service.CatalogService) {
	resp, err := catalog.CheckPrices(ctx)
	if err != nil {
		log.Error().Err(err).Msg("check_cron: price check failed")
		return
	}
	for _, change := range resp.Changes {
		log.Info().
			Str("product", change.Name).
			Str("retailer", change.Retailer).
			Str("old", change.OldPrice.String()).
			Str("new", change.NewPrice.String()).
			Msg("check_cron: price changed")
	}
	log.Info().Int("checked", resp.Checked).Int("updated", resp.Updated).Msg("check_cron: tick complete")
}
