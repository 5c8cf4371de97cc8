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
	"github.com/shopspring/decimal"
)

var pbtechCodeRe = regexp.MustCompile(`/product/([A-Z0-9]+)/`)
var noelSlugRe = regexp.MustCompile(`/([^/]+)\.html`)

// Extractor reads a live product page and turns it into a Listing. One
// implementation covers all four retailers; the selector chains differ.
type Extractor struct {
	session *Session
}

func NewExtractor(session *Session) *Extractor {
	return &Extractor{session: session}
}

func (e *Extractor) Extract(ctx context.Context, retailer, url string) (*search.Listing, error) {
	st, ok := siteFor(retailer)
	if !ok {
		return nil, fmt.Errorf("scraper: unknown retailer %q", retailer)
	}

	var listing *search.Listing
	err := e.session.withPage(ctx, func(p *rod.Page) error {
		if err := p.Navigate(url); err != nil {
			return fmt.Errorf("navigate %s product page: %w", retailer, err)
		}
		if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
			log.Debug().Err(err).Str("retailer", retailer).Msg("DOM did not settle, reading current state")
		}

		price, err := e.readPrice(p, st.name)
		if err != nil {
			return fmt.Errorf("extract price from %s: %w", url, err)
		}

		name := strings.TrimSpace(selText(p, "h1"))
		if name == "" {
			name = "Unknown"
		}

		listing = &search.Listing{
			Name:     name,
			Price:    price,
			NativeID: e.readNativeID(p, st.name, url),
			Brand:    e.readBrand(p, st.name, name),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// readPrice walks the retailer's selector chain, most reliable source first.
func (e *Extractor) readPrice(p *rod.Page, retailer string) (decimal.Decimal, error) {
	switch retailer {
	case PBTech:
		return parsePrice(selText(p, ".js-customer-price"))

	case NoelLeeming:
		// data-price attribute is machine-readable; the split
		// dollars/cents spans are the display fallback.
		if raw := selAttr(p, "[data-price]", "data-price"); raw != "" {
			if price, err := parsePrice(raw); err == nil {
				return price, nil
			}
		}
		dollars := strings.TrimSpace(selText(p, ".price_dollars"))
		cents := strings.TrimSpace(selText(p, ".price_cents"))
		if dollars != "" && cents != "" {
			return parsePrice(dollars + "." + cents)
		}
		return decimal.Zero, errNoPrice

	case JBHiFi:
		return parsePrice(selText(p, `[data-testid="ticket-price"]`))

	case Acquire:
		// Tax-inclusive price first, tax-exclusive as fallback.
		if price, err := parsePrice(selText(p, ".price-actual.tax1")); err == nil {
			return price, nil
		}
		return parsePrice(selText(p, ".price-actual.tax0"))
	}
	return decimal.Zero, errNoPrice
}

func (e *Extractor) readNativeID(p *rod.Page, retailer, url string) string {
	switch retailer {
	case PBTech:
		// Product code is embedded in the URL path.
		if m := pbtechCodeRe.FindStringSubmatch(url); m != nil {
			return m[1]
		}

	case NoelLeeming:
		if sku := extractSKU(bodyText(p)); sku != "" {
			return sku
		}
		if v := selAttr(p, "[data-model]", "data-model"); v != "" {
			return v
		}
		if v := selAttr(p, "[data-sku]", "data-sku"); v != "" {
			return v
		}
		if v := jsonLDField(p, "sku"); v != "" {
			return v
		}
		if v := jsonLDField(p, "mpn"); v != "" {
			return v
		}
		if m := noelSlugRe.FindStringSubmatch(url); m != nil {
			return m[1]
		}

	case JBHiFi:
		return extractSKU(bodyText(p))
	}
	return ""
}

func (e *Extractor) readBrand(p *rod.Page, retailer, name string) string {
	if retailer == NoelLeeming {
		if brand := jsonLDField(p, "brand"); brand != "" {
			return brand
		}
		if brand := selAttr(p, `meta[property="product:brand"]`, "content"); brand != "" {
			return brand
		}
	}
	if retailer == PBTech {
		return ""
	}
	return guessBrand(name)
}

// ─── Page eval helpers ───────────────────────────────────────────────────────

func selText(p *rod.Page, sel string) string {
	res, err := p.Eval(`(sel) => {
		const el = document.querySelector(sel);
		return el ? el.innerText : "";
	}`, sel)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

func selAttr(p *rod.Page, sel, attr string) string {
	res, err := p.Eval(`(sel, attr) => {
		const el = document.querySelector(sel);
		return el ? (el.getAttribute(attr) || "") : "";
	}`, sel, attr)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

func bodyText(p *rod.Page) string {
	res, err := p.Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// jsonLDField pulls one field from the first schema.org Product block on the
// page. The brand field may be a nested object with a name.
func jsonLDField(p *rod.Page, field string) string {
	res, err := p.Eval(`(field) => {
		for (const script of document.querySelectorAll('script[type="application/ld+json"]')) {
			try {
				let data = JSON.parse(script.innerText);
				if (!Array.isArray(data)) data = [data];
				for (const item of data) {
					if (item && item['@type'] === 'Product' && item[field]) {
						const v = item[field];
						if (typeof v === 'object' && v.name) return String(v.name);
						return String(v);
					}
				}
			} catch (e) {}
		}
		return "";
	}`, field)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}
