package scraper

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var errNoPrice = errors.New("scraper: no price in text")

var (
	priceDigits = regexp.MustCompile(`(\d+)\.?(\d{2})?`)
	brandWord   = regexp.MustCompile(`^([A-Za-z]+)`)

	// Model/SKU labels as they appear in retailer page body text. Compound
	// labels come first so "Model Code: X" yields X, not "Code".
	skuPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Model\s+Code[:\s]+([A-Z0-9-_]+)`),
		regexp.MustCompile(`(?i)Product[:\s]?Code[:\s]+([A-Z0-9-_]+)`),
		regexp.MustCompile(`(?i)Item[:\s]?Code[:\s]+([A-Z0-9-_]+)`),
		regexp.MustCompile(`(?i)Part[:\s]?#[:\s]+([A-Z0-9-_]+)`),
		regexp.MustCompile(`(?i)Model[:\s]+([A-Z0-9-_]+)`),
		regexp.MustCompile(`(?i)SKU[:\s]+([A-Z0-9-_]+)`),
	}
)

// parsePrice extracts a dollars.cents amount from display text such as
// "$2,499.00 Including GST". Missing cents read as .00.
func parsePrice(text string) (decimal.Decimal, error) {
	cleaned := text
	for _, junk := range []string{"Excluding GST", "Including GST", "$", ","} {
		cleaned = strings.ReplaceAll(cleaned, junk, "")
	}
	cleaned = strings.TrimSpace(cleaned)

	m := priceDigits.FindStringSubmatch(cleaned)
	if m == nil {
		return decimal.Zero, errNoPrice
	}
	cents := m[2]
	if cents == "" {
		cents = "00"
	}
	price, err := decimal.NewFromString(m[1] + "." + cents)
	if err != nil {
		return decimal.Zero, errNoPrice
	}
	return price, nil
}

// extractSKU scans page body text for a labelled model or SKU code.
func extractSKU(bodyText string) string {
	for _, p := range skuPatterns {
		if m := p.FindStringSubmatch(bodyText); m != nil {
			return m[1]
		}
	}
	return ""
}

// guessBrand takes the leading word of a product name, the convention all
// four retailers follow for title formatting.
func guessBrand(name string) string {
	if m := brandWord.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return ""
}
