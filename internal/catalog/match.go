package catalog

import "strings"

// MatchVariant resolves a variant by display color: exact match first, then
// case-insensitive, then substring. A substring query hitting more than one
// variant is an error instead of a silent first match.
func MatchVariant(variants []Variant, color string) (Variant, error) {
	for _, v := range variants {
		if v.Color == color {
			return v, nil
		}
	}
	lc := strings.ToLower(color)
	for _, v := range variants {
		if strings.ToLower(v.Color) == lc {
			return v, nil
		}
	}
	var hits []Variant
	for _, v := range variants {
		if strings.Contains(strings.ToLower(v.Color), lc) {
			hits = append(hits, v)
		}
	}
	switch len(hits) {
	case 0:
		return Variant{}, ErrVariantNotFound
	case 1:
		return hits[0], nil
	default:
		return Variant{}, ErrVariantAmbiguous
	}
}
