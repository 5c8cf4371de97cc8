package service

import "errors"

var (
	// ErrNotFound reports a search that resolved zero candidates, or a lookup
	// of a missing product/group. A normal reportable outcome, never fatal.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCategory rejects categories outside the whitelist.
	ErrInvalidCategory = errors.New("invalid category")

	// ErrTooManyProducts guards the batch price check against unbounded runs.
	ErrTooManyProducts = errors.New("too many products to check")
)

// allowedCategories is the category whitelist for tracked products.
var allowedCategories = map[string]bool{
	"Electronics": true, "Laptops": true, "Tablets": true, "Monitors": true,
	"Peripherals": true, "Components": true, "Storage": true, "Networking": true,
}

func validCategory(c string) bool { return allowedCategories[c] }
