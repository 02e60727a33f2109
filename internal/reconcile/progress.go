package reconcile

import (
	"slices"

	"github.com/roach88/conteo/internal/ir"
)

// ItemProgress is the completion state of one expected item.
// Counted is Scanned capped at Expected.
type ItemProgress struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Brand       string `json:"brand"`
	Expected    int64  `json:"expected"`
	Scanned     int64  `json:"scanned"`
	Counted     int64  `json:"counted"`
	Percent     int    `json:"percent"`
	Pending     bool   `json:"pending"`
}

// BrandProgress is the capped completion of the items sharing a brand,
// plus the items of that brand nobody has scanned yet.
type BrandProgress struct {
	Brand    string         `json:"brand"`
	Expected int64          `json:"expected"`
	Scanned  int64          `json:"scanned"`
	Counted  int64          `json:"counted"`
	Percent  int            `json:"percent"`
	Pending  []ItemProgress `json:"pending"`
}

// ProgressSummary is the completion of a whole count.
type ProgressSummary struct {
	Items        []ItemProgress  `json:"items"`
	Brands       []BrandProgress `json:"brands"`
	Expected     int64           `json:"expected"`
	Scanned      int64           `json:"scanned"`
	Counted      int64           `json:"counted"`
	Overall      int             `json:"overall"`
	PendingCount int             `json:"pending_count"`
}

// Progress computes completion of items against per-code scanned totals.
//
// Items keep the expectation order. Brands are sorted alphabetically with
// OtherBrands last. Over-scanning an item never adds more than its expected
// quantity to any numerator.
func Progress(items []ir.ExpectedItem, totals map[string]int64) ProgressSummary {
	summary := ProgressSummary{
		Items:  make([]ItemProgress, 0, len(items)),
		Brands: []BrandProgress{},
	}
	byBrand := make(map[string]*BrandProgress)

	for _, it := range items {
		scanned := max(totals[it.Code], 0)
		p := ItemProgress{
			Code:        it.Code,
			Description: it.Description,
			Brand:       BrandOf(it.Brand, it.Description),
			Expected:    it.Expected,
			Scanned:     scanned,
			Counted:     min(scanned, it.Expected),
			Pending:     scanned == 0 && it.Expected > 0,
		}
		p.Percent = percent(p.Counted, p.Expected)
		summary.Items = append(summary.Items, p)

		summary.Expected = addCapped(summary.Expected, p.Expected)
		summary.Scanned = addCapped(summary.Scanned, p.Scanned)
		summary.Counted = addCapped(summary.Counted, p.Counted)

		b, ok := byBrand[p.Brand]
		if !ok {
			b = &BrandProgress{Brand: p.Brand, Pending: []ItemProgress{}}
			byBrand[p.Brand] = b
		}
		b.Expected = addCapped(b.Expected, p.Expected)
		b.Scanned = addCapped(b.Scanned, p.Scanned)
		b.Counted = addCapped(b.Counted, p.Counted)
		if p.Pending {
			b.Pending = append(b.Pending, p)
			summary.PendingCount++
		}
	}

	for _, b := range byBrand {
		b.Percent = percent(b.Counted, b.Expected)
		summary.Brands = append(summary.Brands, *b)
	}
	slices.SortFunc(summary.Brands, func(a, b BrandProgress) int {
		return compareBrands(a.Brand, b.Brand)
	})

	summary.Overall = percent(summary.Counted, summary.Expected)
	return summary
}
