package search

import (
	"regexp"
	"strings"
)

// accessoryWords flags listings that are add-ons rather than the product
// itself (cases, chargers, warranties, ...). Tuned heuristic — revisable.
var accessoryWords = []string{
	"case", "cover", "protector", "screen protector", "tempered glass",
	"charger", "charging", "cable", "adapter", "dock", "docking",
	"stand", "mount", "holder", "sleeve", "pouch", "bag", "backpack",
	"strap", "band", "keyboard", "mouse", "stylus", "pen",
	"film", "skin", "decal", "sticker", "folio",
	"earbuds", "earphones", "headset", "speaker",
	"hub", "dongle", "memory card", "sd card", "usb",
	"insurance", "applecare", "warranty", "protection plan",
	"refurbished", "renewed", "pre-owned",
}

var storageToken = regexp.MustCompile(`(?i)(\d+)\s*[gt]b`)

// Reconcile filters a candidate listing set into the canonical comparison
// set. Pure and deterministic: no I/O, relative order preserved, idempotent.
//
// Pipeline:
//  1. drop candidates with no extracted product
//  2. dedupe by URL (query string and trailing slash stripped, first wins)
//  3. drop accessories — unless the query itself asks for one
//  4. drop storage-capacity mismatches when the query names a capacity
//  5. keep at most one survivor per retailer (first in arrival order)
func Reconcile(candidates []Candidate, query string) []Candidate {
	queryLower := strings.ToLower(query)
	queryIsAccessory := containsAccessoryWord(queryLower)

	var queryStorage string
	if m := storageToken.FindStringSubmatch(queryLower); m != nil {
		queryStorage = m[1]
	}

	seenURLs := make(map[string]bool)
	seenRetailers := make(map[string]bool)
	filtered := make([]Candidate, 0, len(candidates))

	for _, c := range candidates {
		if c.Product == nil {
			continue
		}

		cleanURL := normalizeURL(c.URL)
		if seenURLs[cleanURL] {
			continue
		}
		seenURLs[cleanURL] = true

		nameLower := strings.ToLower(c.Product.Name)

		if !queryIsAccessory && containsAccessoryWord(nameLower) {
			continue
		}

		if queryStorage != "" {
			if sizes := storageSizes(nameLower); len(sizes) > 0 && !sizes[queryStorage] {
				continue
			}
		}

		if seenRetailers[c.Retailer] {
			continue
		}
		seenRetailers[c.Retailer] = true

		filtered = append(filtered, c)
	}
	return filtered
}

// normalizeURL strips the query string and any trailing slash so that
// tracking-parameter variants of the same listing collapse together.
func normalizeURL(url string) string {
	if i := strings.Index(url, "?"); i >= 0 {
		url = url[:i]
	}
	return strings.TrimRight(url, "/")
}

func containsAccessoryWord(s string) bool {
	for _, w := range accessoryWords {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func storageSizes(name string) map[string]bool {
	matches := storageToken.FindAllStringSubmatch(name, -1)
	if len(matches) == 0 {
		return nil
	}
	sizes := make(map[string]bool, len(matches))
	for _, m := range matches {
		sizes[m[1]] = true
	}
	return sizes
}
