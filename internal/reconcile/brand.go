package reconcile

import (
	"cmp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// OtherBrands groups items whose brand cannot be derived.
const OtherBrands = "OTRAS MARCAS"

// minBrandRunes is the shortest description token accepted as a brand.
const minBrandRunes = 4

// BrandOf returns the display brand of an item.
//
// An explicit brand wins. Otherwise the first word of the description is
// used, unless it is too short to be a brand name, in which case the item
// falls into OtherBrands.
func BrandOf(brand, description string) string {
	if b := strings.TrimSpace(brand); b != "" {
		return upper(b)
	}

	fields := strings.Fields(description)
	if len(fields) == 0 {
		return OtherBrands
	}
	if utf8.RuneCountInString(fields[0]) < minBrandRunes {
		return OtherBrands
	}
	return upper(fields[0])
}

// upper uppercases s. A Caser is stateful, so one is built per call.
func upper(s string) string {
	return cases.Upper(language.Und).String(s)
}

// compareBrands orders brands alphabetically with OtherBrands last.
func compareBrands(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == OtherBrands:
		return 1
	case b == OtherBrands:
		return -1
	}
	return cmp.Compare(a, b)
}
