package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/S1njack/price-tracker-demo/internal/search"

	"github.com/go-rod/rod"
	"github.com/rs/zerolog/log"
)

// Retailer names as stored against tracked products.
const (
	PBTech      = "PBTech"
	NoelLeeming = "Noel Leeming"
	JBHiFi      = "JB Hi-Fi"
	Acquire     = "Acquire"
)

// site captures everything retailer-specific about finding and reading a
// product: search URL shape, how product links look in the result markup and
// which selectors carry the price.
type site struct {
	name       string
	domain     string
	searchURL  string // %s is the plus-joined query
	base       string
	linkRe     *regexp.Regexp
	stripQuery bool // product identity lives in the path, not the query string
}

var sites = []site{
	{
		name:       PBTech,
		domain:     "pbtech.co.nz",
		searchURL:  "https://www.pbtech.co.nz/search?sf=%s&search_type=",
		base:       "https://www.pbtech.co.nz",
		linkRe:     regexp.MustCompile(`href="(/product/[A-Z][A-Z0-9]+/[^"]+)"`),
		stripQuery: true,
	},
	{
		name:       NoelLeeming,
		domain:     "noelleeming.co.nz",
		searchURL:  "https://www.noelleeming.co.nz/search?q=%s",
		base:       "https://www.noelleeming.co.nz",
		linkRe:     regexp.MustCompile(`href="(/p/[^"]+)"`),
		stripQuery: true,
	},
	{
		name:       JBHiFi,
		domain:     "jbhifi.co.nz",
		searchURL:  "https://www.jbhifi.co.nz/search?query=%s",
		base:       "https://www.jbhifi.co.nz",
		linkRe:     regexp.MustCompile(`href="(/products/[^"]+)"`),
		stripQuery: true,
	},
	{
		// Acquire's product identity is the av= query parameter, so the
		// query string survives dedup here.
		name:      Acquire,
		domain:    "acquire.co.nz",
		searchURL: "https://acquire.co.nz/p/?q=%s",
		base:      "https://acquire.co.nz",
		linkRe:    regexp.MustCompile(`href="(/p/\?[^"]*av=[^"]*)"`),
	},
}

// siteSearcher adapts one retailer site to the search.Retailer interface.
type siteSearcher struct {
	session *Session
	site    site
}

// Retailers returns a searcher per supported retailer, sharing one session.
func Retailers(session *Session) []search.Retailer {
	out := make([]search.Retailer, len(sites))
	for i, st := range sites {
		out[i] = &siteSearcher{session: session, site: st}
	}
	return out
}

func (s *siteSearcher) Name() string { return s.site.name }

// Search loads the retailer's result page for query and harvests product URLs
// from the rendered markup, deduplicated in page order.
func (s *siteSearcher) Search(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 5
	}

	target := fmt.Sprintf(s.site.searchURL, plusJoin(query))
	var urls []string

	err := s.session.withPage(ctx, func(p *rod.Page) error {
		if err := p.Navigate(target); err != nil {
			return fmt.Errorf("navigate %s search: %w", s.site.name, err)
		}
		if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
			log.Debug().Err(err).Str("retailer", s.site.name).Msg("DOM did not settle, reading current markup")
		}

		html, err := p.HTML()
		if err != nil {
			return fmt.Errorf("read %s results: %w", s.site.name, err)
		}

		urls = s.harvest(html, limit)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug().Str("retailer", s.site.name).Str("query", query).Int("found", len(urls)).Msg("retailer search done")
	return urls, nil
}

func (s *siteSearcher) harvest(html string, limit int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range s.site.linkRe.FindAllStringSubmatch(html, -1) {
		path := m[1]
		if s.site.stripQuery {
			if i := strings.IndexByte(path, '?'); i >= 0 {
				path = path[:i]
			}
		}
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}

		if strings.HasPrefix(path, "http") {
			out = append(out, path)
		} else {
			out = append(out, s.site.base+path)
		}
		if len(out) >= limit {
			break
		}
	}
	return out
}

func plusJoin(query string) string {
	return strings.ReplaceAll(strings.TrimSpace(query), " ", "+")
}

func siteFor(retailer string) (site, bool) {
	for _, st := range sites {
		if strings.EqualFold(st.name, retailer) {
			return st, true
		}
	}
	return site{}, false
}
