package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/rs/zerolog/log"
)

const priceSpyBase = "https://pricespy.co.nz"

var productPageRe = regexp.MustCompile(`href="((?:https?://pricespy\.co\.nz)?/?product\.php[^"]*)"`)

// productPathMarkers identify a retailer URL as a product page rather than a
// landing or campaign page.
var productPathMarkers = []string{"/product/", "/p/", "/products/"}

// scriptVars are the client-state globals aggregator pages hide their price
// series in, checked in order.
var scriptVars = []string{
	"window.__NEXT_DATA__",
	"window.INITIAL_STATE",
	"window.__INITIAL_STATE__",
	"window.__data",
	"window.__PRELOADED_STATE__",
}

// PriceSpy implements the aggregator search against pricespy.co.nz: one
// query resolves to a product page whose offer list links out to every
// retailer carrying the product.
type PriceSpy struct {
	session *Session
}

func NewPriceSpy(session *Session) *PriceSpy {
	return &PriceSpy{session: session}
}

type offer struct {
	href string
	text string
}

// Search maps each requested retailer to its product URL by following the
// aggregator's redirect links off the first matching product page. Retailers
// without a verified product link are simply absent from the result.
func (a *PriceSpy) Search(ctx context.Context, query string, retailers []string) (map[string]string, error) {
	productURL, err := a.ProductPage(ctx, query)
	if err != nil {
		return nil, err
	}

	offers, err := a.collectOffers(ctx, productURL)
	if err != nil {
		return nil, err
	}
	if len(offers) == 0 {
		return map[string]string{}, nil
	}

	results := make(map[string]string)
	for _, retailer := range retailers {
		st, ok := siteFor(retailer)
		if !ok {
			continue
		}
		for _, o := range offers {
			if !offerMatches(o, st) {
				continue
			}
			finalURL, err := a.followRedirect(ctx, absPriceSpy(o.href))
			if err != nil {
				log.Debug().Err(err).Str("retailer", retailer).Msg("failed to follow aggregator offer link")
				continue
			}
			if strings.Contains(finalURL, st.domain) && isProductPath(finalURL) {
				results[retailer] = finalURL
				break
			}
		}
	}

	log.Info().Str("query", query).Int("mapped", len(results)).Msg("aggregator search done")
	return results, nil
}

// ProductPage searches the aggregator and returns its own page URL for the
// first matching product.
func (a *PriceSpy) ProductPage(ctx context.Context, query string) (string, error) {
	searchURL := priceSpyBase + "/search?search=" + plusJoin(query)

	var productURL string
	err := a.session.withPage(ctx, func(p *rod.Page) error {
		if err := p.Navigate(searchURL); err != nil {
			return fmt.Errorf("navigate aggregator search: %w", err)
		}
		if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
			log.Debug().Err(err).Msg("aggregator search DOM did not settle")
		}

		html, err := p.HTML()
		if err != nil {
			return fmt.Errorf("read aggregator results: %w", err)
		}
		if m := productPageRe.FindStringSubmatch(html); m != nil {
			productURL = absPriceSpy(m[1])
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if productURL == "" {
		return "", fmt.Errorf("no aggregator product for query %q", query)
	}
	return productURL, nil
}

// FetchHistory loads the product page's statistics view and returns the first
// populated client-state blob, unparsed. The caller digs the series out.
func (a *PriceSpy) FetchHistory(ctx context.Context, pageURL string) (any, error) {
	target := pageURL
	if !strings.Contains(target, "#statistics") {
		target += "#statistics"
	}

	var blob any
	err := a.session.withPage(ctx, func(p *rod.Page) error {
		if err := p.Navigate(target); err != nil {
			return fmt.Errorf("navigate aggregator product page: %w", err)
		}
		if err := p.WaitDOMStable(500*time.Millisecond, 0.1); err != nil {
			log.Debug().Err(err).Msg("aggregator history DOM did not settle")
		}

		// Clicking the statistics tab triggers the history data load on
		// pages that lazy-render the chart.
		_, _ = p.Eval(`() => {
			const tab = document.querySelector('a[href*="statistics"]') || document.querySelector('a[href*="history"]');
			if (tab) tab.click();
		}`)
		_ = p.WaitDOMStable(500*time.Millisecond, 0.1)

		for _, v := range scriptVars {
			res, err := p.Eval(`() => { try { return ` + v + `; } catch (e) { return null; } }`)
			if err != nil {
				continue
			}
			if val := res.Value.Val(); val != nil {
				blob = val
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if blob == nil {
		return nil, fmt.Errorf("no price history data on %s", pageURL)
	}
	return blob, nil
}

// collectOffers reads every outbound retailer link plus its surrounding text
// so offers can be attributed to retailers without following each one.
func (a *PriceSpy) collectOffers(ctx context.Context, productURL string) ([]offer, error) {
	var offers []offer
	err := a.session.withPage(ctx, func(p *rod.Page) error {
		if err := p.Navigate(productURL); err != nil {
			return fmt.Errorf("navigate aggregator product page: %w", err)
		}
		if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
			log.Debug().Err(err).Msg("aggregator product DOM did not settle")
		}

		res, err := p.Eval(`() => {
			const out = [];
			for (const a of document.querySelectorAll('a[href*="/click/"]')) {
				let container = a;
				if (a.parentElement && a.parentElement.parentElement) {
					container = a.parentElement.parentElement;
				}
				out.push({
					href: a.getAttribute('href') || "",
					text: (container.innerText || "").toLowerCase(),
				});
			}
			return out;
		}`)
		if err != nil {
			return fmt.Errorf("read aggregator offers: %w", err)
		}

		for _, item := range res.Value.Arr() {
			offers = append(offers, offer{
				href: item.Get("href").Str(),
				text: item.Get("text").Str(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return offers, nil
}

// followRedirect opens the aggregator's tracking link and reports where it
// landed.
func (a *PriceSpy) followRedirect(ctx context.Context, clickURL string) (string, error) {
	var finalURL string
	err := a.session.withPage(ctx, func(p *rod.Page) error {
		if err := p.Navigate(clickURL); err != nil {
			return fmt.Errorf("follow offer link: %w", err)
		}
		if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
			log.Debug().Err(err).Msg("offer redirect DOM did not settle")
		}

		res, err := p.Eval(`() => window.location.href`)
		if err != nil {
			return fmt.Errorf("read landing URL: %w", err)
		}
		finalURL = res.Value.Str()
		return nil
	})
	if err != nil {
		return "", err
	}
	return finalURL, nil
}

func offerMatches(o offer, st site) bool {
	domainWord := strings.SplitN(st.domain, ".", 2)[0]
	return strings.Contains(o.text, domainWord) || strings.Contains(o.text, strings.ToLower(st.name))
}

func isProductPath(url string) bool {
	for _, marker := range productPathMarkers {
		if strings.Contains(url, marker) {
			return true
		}
	}
	return false
}

func absPriceSpy(href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return priceSpyBase + href
}
