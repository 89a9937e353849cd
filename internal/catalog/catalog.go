// Package catalog holds the static product table for the storefront.
// There is exactly one product today; the table keeps the handlers and
// payment adapter from hardcoding it.
package catalog

import "errors"

var ErrUnknownProduct = errors.New("unknown product")

type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	PriceCents  int64  `json:"price_cents"`
	Currency    string `json:"currency"`
	// Files maps download format to the artifact filename under the
	// configured files directory.
	Files map[string]string `json:"-"`
}

// DefaultFormat is the format served when the download request names none.
const DefaultFormat = "epub"

var products = map[string]Product{
	"ebook": {
		ID:          "ebook",
		Name:        "Curls & Contemplation (eBook)",
		Description: "Digital edition with interactive worksheets and resources",
		Type:        "ebook",
		PriceCents:  1999,
		Currency:    "usd",
		Files: map[string]string{
			"epub": "curls-and-contemplation.epub",
			"pdf":  "curls-and-contemplation.pdf",
		},
	},
}

// Get returns the product with the given id.
func Get(id string) (Product, error) {
	p, ok := products[id]
	if !ok {
		return Product{}, ErrUnknownProduct
	}
	return p, nil
}

// ByType returns the product whose type matches, used when resolving an
// order row back to its deliverable files.
func ByType(productType string) (Product, error) {
	for _, p := range products {
		if p.Type == productType {
			return p, nil
		}
	}
	return Product{}, ErrUnknownProduct
}

// All returns every product, for the public products endpoint.
func All() []Product {
	out := make([]Product, 0, len(products))
	for _, p := range products {
		out = append(out, p)
	}
	return out
}

// ApplyCoupon discounts an amount by a percentage or fixed amount (only
// one is expected to be set) and clamps the result at zero.
func ApplyCoupon(amountCents int64, percentOff float64, amountOffCents int64) int64 {
	discounted := amountCents
	if percentOff > 0 {
		discounted = int64(float64(amountCents) * (100.0 - percentOff) / 100.0)
	}
	if amountOffCents > 0 {
		discounted -= amountOffCents
	}
	if discounted < 0 {
		return 0
	}
	return discounted
}
