// Package filter derives the visible product list from the catalog and the
// current category, search text and sort mode.
package filter

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/xenking/storefront/internal/catalog"
)

// SortMode selects the ordering of the filtered list.
type SortMode string

const (
	SortNone      SortMode = ""
	SortNameAsc   SortMode = "nome-asc"
	SortNameDesc  SortMode = "nome-desc"
	SortPriceAsc  SortMode = "preco-asc"
	SortPriceDesc SortMode = "preco-desc"
)

var aliases = map[string]SortMode{
	"nome-asc":   SortNameAsc,
	"nome-desc":  SortNameDesc,
	"preco-asc":  SortPriceAsc,
	"preco-desc": SortPriceDesc,
	"name-asc":   SortNameAsc,
	"name-desc":  SortNameDesc,
	"price-asc":  SortPriceAsc,
	"price-desc": SortPriceDesc,
}

// ParseSortMode maps a sort selector value to a mode. Unknown values yield
// SortNone, which keeps catalog order.
func ParseSortMode(s string) SortMode {
	return aliases[strings.ToLower(strings.TrimSpace(s))]
}

// Criteria is the filter input.
type Criteria struct {
	// Category matches case-insensitively. Empty matches every category.
	Category string
	// Search is a case-insensitive substring of name and description.
	Search string
	Sort   SortMode
}

// Collation is the locale used to order names.
var Collation = language.BrazilianPortuguese

// Apply returns the products matching c in the requested order. The input is
// not modified; equal keys keep their input order.
func Apply(products []catalog.Product, c Criteria) []catalog.Product {
	fold := cases.Fold()
	category := fold.String(strings.TrimSpace(c.Category))
	search := fold.String(strings.TrimSpace(c.Search))

	out := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		if category != "" && fold.String(p.Category) != category {
			continue
		}
		if search != "" && !strings.Contains(fold.String(p.Name+" "+p.Description), search) {
			continue
		}
		out = append(out, p)
	}

	switch c.Sort {
	case SortNameAsc, SortNameDesc:
		col := collate.New(Collation)
		desc := c.Sort == SortNameDesc
		slices.SortStableFunc(out, func(a, b catalog.Product) int {
			if desc {
				return col.CompareString(b.Name, a.Name)
			}
			return col.CompareString(a.Name, b.Name)
		})
	case SortPriceAsc:
		slices.SortStableFunc(out, func(a, b catalog.Product) int {
			return a.Price.Cmp(b.Price)
		})
	case SortPriceDesc:
		slices.SortStableFunc(out, func(a, b catalog.Product) int {
			return b.Price.Cmp(a.Price)
		})
	}
	return out
}

// Categories returns the distinct non-empty categories in first-seen order.
func Categories(products []catalog.Product) []string {
	fold := cases.Fold()
	seen := make(map[string]struct{})
	var out []string
	for _, p := range products {
		if p.Category == "" {
			continue
		}
		k := fold.String(p.Category)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}
