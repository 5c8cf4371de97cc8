package search_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/S1njack/price-tracker-demo/internal/infra"
	"github.com/S1njack/price-tracker-demo/internal/search"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Stubs ────────────────────────────────────────────────────────────────────

type stubAggregator struct {
	mapping map[string]string
	err     error
	calls   atomic.Int32
}

func (a *stubAggregator) Search(_ context.Context, _ string, _ []string) (map[string]string, error) {
	a.calls.Add(1)
	return a.mapping, a.err
}

func (a *stubAggregator) ProductPage(context.Context, string) (string, error) {
	return "", errors.New("not implemented")
}

func (a *stubAggregator) FetchHistory(context.Context, string) (any, error) {
	return nil, errors.New("not implemented")
}

type stubRetailer struct {
	name      string
	urls      []string
	err       error
	calls     atomic.Int32
	lastLimit atomic.Int32
}

func (r *stubRetailer) Name() string { return r.name }

func (r *stubRetailer) Search(_ context.Context, _ string, limit int) ([]string, error) {
	r.calls.Add(1)
	r.lastLimit.Store(int32(limit))
	if r.err != nil {
		return nil, r.err
	}
	if len(r.urls) > limit {
		return r.urls[:limit], nil
	}
	return r.urls, nil
}

type stubExtractor struct {
	listings map[string]*search.Listing // by URL
	failFor  map[string]bool
	calls    atomic.Int32
}

func (e *stubExtractor) Extract(_ context.Context, _ string, url string) (*search.Listing, error) {
	e.calls.Add(1)
	if e.failFor[url] {
		return nil, errors.New("extraction blew up")
	}
	l, ok := e.listings[url]
	if !ok {
		return nil, errors.New("no listing for url")
	}
	return l, nil
}

func listing(name, nativeID string, price float64) *search.Listing {
	return &search.Listing{Name: name, NativeID: nativeID, Price: decimal.NewFromFloat(price)}
}

func newTestOrchestrator(agg *stubAggregator, ext *stubExtractor, retailers ...search.Retailer) *search.Orchestrator {
	return search.NewOrchestrator(agg, retailers, ext, infra.NewCircuitBreaker(infra.DefaultCBConfig()), search.Options{
		OpTimeout:   5 * time.Second,
		CallTimeout: time.Second,
	})
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestLocateRejectsInvalidQueryBeforeAnyIO(t *testing.T) {
	agg := &stubAggregator{}
	ret := &stubRetailer{name: "PBTech"}
	ext := &stubExtractor{}
	o := newTestOrchestrator(agg, ext, ret)

	_, err := o.Locate(context.Background(), "<script>", "")
	assert.ErrorIs(t, err, search.ErrInvalidQuery)
	assert.Zero(t, agg.calls.Load())
	assert.Zero(t, ret.calls.Load())
	assert.Zero(t, ext.calls.Load())
}

func TestLocateUsesAggregatorMappingAndFillsGapsDirectly(t *testing.T) {
	agg := &stubAggregator{mapping: map[string]string{
		"PBTech": "https://www.pbtech.co.nz/product/A1/macbook",
	}}
	pb := &stubRetailer{name: "PBTech"}
	jb := &stubRetailer{name: "JB Hi-Fi", urls: []string{"https://www.jbhifi.co.nz/products/macbook"}}
	ext := &stubExtractor{listings: map[string]*search.Listing{
		"https://www.pbtech.co.nz/product/A1/macbook":  listing("MacBook Air M4", "MW123", 1999),
		"https://www.jbhifi.co.nz/products/macbook":    listing("MacBook Air M4", "MW123", 2049),
	}}
	o := newTestOrchestrator(agg, ext, pb, jb)

	out, err := o.Locate(context.Background(), "MacBook Air M4", "")
	require.NoError(t, err)
	require.Len(t, out, 2)

	// Output preserves configured retailer order regardless of completion order.
	assert.Equal(t, "PBTech", out[0].Retailer)
	assert.Equal(t, "JB Hi-Fi", out[1].Retailer)

	// The mapped retailer was never direct-searched; the missed one was, with
	// a single-result limit.
	assert.Zero(t, pb.calls.Load())
	assert.Equal(t, int32(1), jb.calls.Load())
	assert.Equal(t, int32(1), jb.lastLimit.Load())
}

func TestLocateFallsBackWhenAggregatorFails(t *testing.T) {
	agg := &stubAggregator{err: errors.New("aggregator down")}
	pb := &stubRetailer{name: "PBTech", urls: []string{
		"https://www.pbtech.co.nz/product/A1/macbook",
		"https://www.pbtech.co.nz/product/A2/unrelated",
	}}
	ext := &stubExtractor{listings: map[string]*search.Listing{
		"https://www.pbtech.co.nz/product/A1/macbook":   listing("Apple MacBook Air M4", "MW123", 1999),
		"https://www.pbtech.co.nz/product/A2/unrelated": listing("HP DeskJet Printer", "HP01", 149),
	}}
	o := newTestOrchestrator(agg, ext, pb)

	out, err := o.Locate(context.Background(), "MacBook Air", "")
	require.NoError(t, err)

	// The unrelated listing fails the keyword-overlap gate.
	require.Len(t, out, 1)
	assert.Equal(t, "Apple MacBook Air M4", out[0].Product.Name)

	// Fallback asks for the full result budget, not a single hit.
	assert.Equal(t, int32(5), pb.lastLimit.Load())
}

func TestLocateFallsBackWhenAggregatorFindsNothing(t *testing.T) {
	agg := &stubAggregator{mapping: map[string]string{}}
	pb := &stubRetailer{name: "PBTech", urls: []string{"https://www.pbtech.co.nz/product/A1/macbook"}}
	ext := &stubExtractor{listings: map[string]*search.Listing{
		"https://www.pbtech.co.nz/product/A1/macbook": listing("Apple MacBook Air M4", "", 1999),
	}}
	o := newTestOrchestrator(agg, ext, pb)

	out, err := o.Locate(context.Background(), "MacBook Air", "")
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestLocateIsolatesExtractionFailures(t *testing.T) {
	agg := &stubAggregator{mapping: map[string]string{
		"PBTech":   "https://www.pbtech.co.nz/product/A1/macbook",
		"JB Hi-Fi": "https://www.jbhifi.co.nz/products/macbook",
	}}
	pb := &stubRetailer{name: "PBTech"}
	jb := &stubRetailer{name: "JB Hi-Fi"}
	ext := &stubExtractor{
		listings: map[string]*search.Listing{
			"https://www.jbhifi.co.nz/products/macbook": listing("MacBook Air M4", "MW123", 2049),
		},
		failFor: map[string]bool{"https://www.pbtech.co.nz/product/A1/macbook": true},
	}
	o := newTestOrchestrator(agg, ext, pb, jb)

	out, err := o.Locate(context.Background(), "MacBook Air M4", "")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "JB Hi-Fi", out[0].Retailer)
}

func TestLocateModelHintFilter(t *testing.T) {
	agg := &stubAggregator{mapping: map[string]string{
		"PBTech":   "https://www.pbtech.co.nz/product/A1/macbook",
		"JB Hi-Fi": "https://www.jbhifi.co.nz/products/macbook",
	}}
	pb := &stubRetailer{name: "PBTech"}
	jb := &stubRetailer{name: "JB Hi-Fi"}
	ext := &stubExtractor{listings: map[string]*search.Listing{
		// Wrong model id — dropped. Missing model id — passes.
		"https://www.pbtech.co.nz/product/A1/macbook": listing("MacBook Air M4", "OTHER99", 1999),
		"https://www.jbhifi.co.nz/products/macbook":   listing("MacBook Air M4", "", 2049),
	}}
	o := newTestOrchestrator(agg, ext, pb, jb)

	out, err := o.Locate(context.Background(), "MacBook Air M4", "mw123")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "JB Hi-Fi", out[0].Retailer)
}

func TestLocateEmptyResultIsNotAnError(t *testing.T) {
	agg := &stubAggregator{err: errors.New("down")}
	pb := &stubRetailer{name: "PBTech", err: errors.New("also down")}
	ext := &stubExtractor{}
	o := newTestOrchestrator(agg, ext, pb)

	out, err := o.Locate(context.Background(), "MacBook Air", "")
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}
