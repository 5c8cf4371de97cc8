package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/S1njack/price-tracker-demo/internal/infra"

	"github.com/rs/zerolog/log"
)

// Options tunes the orchestrator. Zero values fall back to safe defaults.
type Options struct {
	OpTimeout     time.Duration // deadline for a whole Locate call
	CallTimeout   time.Duration // deadline for each collaborator call
	Concurrency   int           // parallel retailer tasks
	FallbackLimit int           // URLs per retailer on the aggregator-down path
}

// Orchestrator coordinates the two-stage cross-retailer search.
//
// Stage 1 asks the aggregator which retailers carry the product; stage 2
// direct-searches any retailer the aggregator missed; stage 3 extracts every
// resolved product page. A total aggregator failure switches to direct search
// against every retailer with an extra keyword-relevance gate, since those
// matches were never validated by the aggregator.
//
// Retailer search tasks run concurrently under a bounded semaphore, but
// extraction shares one exclusive browsing session, so Extract calls are
// serialized through extractMu — the session handle is owned here, never
// global.
type Orchestrator struct {
	aggregator Aggregator
	retailers  []Retailer // configured order — preserved in the output
	extractor  Extractor
	cb         *infra.CircuitBreaker
	opts       Options

	extractMu sync.Mutex
}

func NewOrchestrator(agg Aggregator, retailers []Retailer, ext Extractor, cb *infra.CircuitBreaker, opts Options) *Orchestrator {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 3 * time.Minute
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 40 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.FallbackLimit <= 0 {
		opts.FallbackLimit = 5
	}
	return &Orchestrator{
		aggregator: agg,
		retailers:  retailers,
		extractor:  ext,
		cb:         cb,
		opts:       opts,
	}
}

// Locate resolves a query to candidate listings across all configured
// retailers. Individual retailer failures are logged and skipped — the only
// error Locate returns is ErrInvalidQuery, raised before any I/O. An empty
// result is a normal outcome, not an error.
func (o *Orchestrator) Locate(ctx context.Context, query, modelHint string) ([]Candidate, error) {
	if err := ValidateQuery(query); err != nil {
		return nil, err
	}
	hint := SanitizeHint(modelHint)

	ctx, cancel := context.WithTimeout(ctx, o.opts.OpTimeout)
	defer cancel()

	mapping, err := o.aggregatorSearch(ctx, query)
	if err != nil || len(mapping) == 0 {
		if err != nil {
			log.Warn().Err(err).Str("query", query).Msg("aggregator search failed, falling back to direct retailer search")
		} else {
			log.Info().Str("query", query).Msg("aggregator found no offers, falling back to direct retailer search")
		}
		return o.locateFallback(ctx, query, hint), nil
	}

	log.Info().Str("query", query).Int("offers", len(mapping)).Msg("aggregator resolved retailer offers")

	results := o.fanOut(ctx, func(ctx context.Context, r Retailer) []Candidate {
		url, found := mapping[r.Name()]
		if !found {
			// Stage 2: the aggregator missed this retailer — direct search,
			// first hit only (precision over recall).
			urls, err := o.directSearch(ctx, r, query, 1)
			if err != nil || len(urls) == 0 {
				if err != nil {
					log.Warn().Err(err).Str("retailer", r.Name()).Msg("direct search failed")
				}
				return nil
			}
			url = urls[0]
		}

		listing, err := o.extract(ctx, r.Name(), url)
		if err != nil {
			log.Warn().Err(err).Str("retailer", r.Name()).Str("url", url).Msg("extraction failed, candidate dropped")
			return nil
		}
		if !matchesHint(listing, hint) {
			log.Info().Str("retailer", r.Name()).Str("model", listing.NativeID).Msg("model hint mismatch, candidate dropped")
			return nil
		}
		return []Candidate{{Retailer: r.Name(), URL: url, Product: listing}}
	})

	return results, nil
}

// locateFallback is the total-aggregator-failure path: every retailer is
// direct-searched for up to FallbackLimit URLs, all of them extracted, and
// candidates additionally need keyword overlap with the query — unvalidated
// matches are riskier than aggregator-confirmed ones.
func (o *Orchestrator) locateFallback(ctx context.Context, query, hint string) []Candidate {
	return o.fanOut(ctx, func(ctx context.Context, r Retailer) []Candidate {
		urls, err := o.directSearch(ctx, r, query, o.opts.FallbackLimit)
		if err != nil {
			log.Warn().Err(err).Str("retailer", r.Name()).Msg("fallback search failed")
			return nil
		}

		var out []Candidate
		for _, url := range urls {
			listing, err := o.extract(ctx, r.Name(), url)
			if err != nil {
				log.Warn().Err(err).Str("retailer", r.Name()).Str("url", url).Msg("extraction failed, candidate dropped")
				continue
			}
			if !keywordOverlap(query, listing.Name) {
				log.Info().Str("retailer", r.Name()).Str("name", listing.Name).Msg("no keyword overlap with query, candidate dropped")
				continue
			}
			if !matchesHint(listing, hint) {
				continue
			}
			out = append(out, Candidate{Retailer: r.Name(), URL: url, Product: listing})
		}
		return out
	})
}

// fanOut runs one task per retailer under the concurrency bound and merges
// the per-retailer results back in configured retailer order. The merge is
// owned by this coordinating goroutine — workers only send.
func (o *Orchestrator) fanOut(ctx context.Context, task func(context.Context, Retailer) []Candidate) []Candidate {
	type slot struct {
		idx        int
		candidates []Candidate
	}

	sem := make(chan struct{}, o.opts.Concurrency)
	out := make(chan slot, len(o.retailers))
	var wg sync.WaitGroup

	for i, r := range o.retailers {
		wg.Add(1)
		go func(idx int, r Retailer) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			out <- slot{idx: idx, candidates: task(ctx, r)}
		}(i, r)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	byRetailer := make([][]Candidate, len(o.retailers))
	for s := range out {
		byRetailer[s.idx] = s.candidates
	}

	results := []Candidate{}
	for _, cs := range byRetailer {
		results = append(results, cs...)
	}
	return results
}

func (o *Orchestrator) aggregatorSearch(ctx context.Context, query string) (map[string]string, error) {
	names := make([]string, len(o.retailers))
	for i, r := range o.retailers {
		names[i] = r.Name()
	}

	var mapping map[string]string
	err := o.cb.Execute(func() error {
		cctx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
		defer cancel()
		m, err := o.aggregator.Search(cctx, query, names)
		if err != nil {
			return err
		}
		mapping = m
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAggregatorUnavailable, err)
	}
	return mapping, nil
}

func (o *Orchestrator) directSearch(ctx context.Context, r Retailer, query string, limit int) ([]string, error) {
	cctx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
	defer cancel()
	return r.Search(cctx, query, limit)
}

// extract serializes access to the shared browsing session. Search calls keep
// running concurrently while one extraction is in flight.
func (o *Orchestrator) extract(ctx context.Context, retailer, url string) (*Listing, error) {
	o.extractMu.Lock()
	defer o.extractMu.Unlock()
	cctx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
	defer cancel()
	return o.extractor.Extract(cctx, retailer, url)
}

// matchesHint drops a listing only when both sides carry a model id and they
// differ case-insensitively. A listing without a native id always passes.
func matchesHint(l *Listing, hint string) bool {
	if hint == "" || l.NativeID == "" {
		return true
	}
	return strings.EqualFold(l.NativeID, hint)
}

// keywordOverlap reports whether at least one query word appears in the
// extracted product name.
func keywordOverlap(query, name string) bool {
	nameWords := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(name)) {
		nameWords[w] = true
	}
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if nameWords[w] {
			return true
		}
	}
	return false
}
