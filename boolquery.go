package nexus

import "github.com/RoaringBitmap/roaring"

// ═══════════════════════════════════════════════════════════════════════════════
// BOOLEAN QUERY EVALUATION (supplement — see SPEC_FULL.md section C)
// ═══════════════════════════════════════════════════════════════════════════════
// CombineBoolean folds a set of per-term candidate document bitmaps into one
// result set honoring the +/-/! operators QueryProcessor extracts:
//   - required (+term): every required term's documents must all be present
//     (AND); if any required terms exist they alone define the candidate
//     floor, normal terms only contribute to ranking from there.
//   - normal terms: any one is enough to qualify a document (OR), when no
//     required term is present.
//   - excluded/negated (-term, !term): removed from the result regardless
//     (AND NOT), applied last.
//
// Adapted from Zeeeepa-blaze/query.go's fluent QueryBuilder, whose
// AllOf/AnyOf/TermExcluding helpers implement exactly this AND/OR/NOT-via-
// roaring-bitmap technique; renamed here to the operator vocabulary
// QueryProcessor produces instead of the teacher's method-chaining API.
// ═══════════════════════════════════════════════════════════════════════════════

// TermMatch pairs a classified query term with the document ordinals it
// matched (already resolved against a field's trie/invertedmap).
type TermMatch struct {
	Term QueryTerm
	Docs *roaring.Bitmap
}

// CombineBoolean applies the required/normal/excluded algebra described
// above and returns the resulting candidate set.
func CombineBoolean(matches []TermMatch) *roaring.Bitmap {
	var required, excluded, normal []*roaring.Bitmap
	for _, m := range matches {
		if m.Docs == nil {
			continue
		}
		switch m.Term.Operator {
		case OpRequired:
			required = append(required, m.Docs)
		case OpExcluded, OpNegated:
			excluded = append(excluded, m.Docs)
		default:
			normal = append(normal, m.Docs)
		}
	}

	var result *roaring.Bitmap
	switch {
	case len(required) > 0:
		result = required[0].Clone()
		for _, r := range required[1:] {
			result.And(r)
		}
	case len(normal) > 0:
		result = roaring.New()
		for _, n := range normal {
			result.Or(n)
		}
	default:
		result = roaring.New()
	}

	for _, e := range excluded {
		result.AndNot(e)
	}
	return result
}

// AnyRequired reports whether matches contains at least one required term,
// which callers use to decide whether an empty result means "nothing
// matched any term" versus "a required term had no matches at all."
func AnyRequired(matches []TermMatch) bool {
	for _, m := range matches {
		if m.Term.Operator == OpRequired {
			return true
		}
	}
	return false
}
