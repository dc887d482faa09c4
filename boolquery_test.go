package nexus

import (
	"testing"

	"github.com/RoaringBitmap/roaring"
)

func bitmapOf(ids ...uint32) *roaring.Bitmap {
	bm := roaring.New()
	bm.AddMany(ids)
	return bm
}

func TestCombineBoolean_OrByDefault(t *testing.T) {
	matches := []TermMatch{
		{Term: QueryTerm{Text: "a"}, Docs: bitmapOf(1, 2)},
		{Term: QueryTerm{Text: "b"}, Docs: bitmapOf(2, 3)},
	}
	result := CombineBoolean(matches)
	if result.GetCardinality() != 3 {
		t.Fatalf("expected union of 3 docs, got %d", result.GetCardinality())
	}
}

func TestCombineBoolean_RequiredNarrowsToIntersection(t *testing.T) {
	matches := []TermMatch{
		{Term: QueryTerm{Text: "a", Operator: OpRequired}, Docs: bitmapOf(1, 2, 3)},
		{Term: QueryTerm{Text: "b", Operator: OpRequired}, Docs: bitmapOf(2, 3, 4)},
		{Term: QueryTerm{Text: "c"}, Docs: bitmapOf(9)}, // normal term ignored once required present
	}
	result := CombineBoolean(matches)
	if result.GetCardinality() != 2 || !result.Contains(2) || !result.Contains(3) {
		t.Fatalf("expected {2,3}, got %v", result.ToArray())
	}
}

func TestCombineBoolean_ExcludedRemoves(t *testing.T) {
	matches := []TermMatch{
		{Term: QueryTerm{Text: "a"}, Docs: bitmapOf(1, 2, 3)},
		{Term: QueryTerm{Text: "b", Operator: OpExcluded}, Docs: bitmapOf(2)},
		{Term: QueryTerm{Text: "c", Operator: OpNegated}, Docs: bitmapOf(3)},
	}
	result := CombineBoolean(matches)
	if result.GetCardinality() != 1 || !result.Contains(1) {
		t.Fatalf("expected only doc 1, got %v", result.ToArray())
	}
}

func TestAnyRequired(t *testing.T) {
	if AnyRequired([]TermMatch{{Term: QueryTerm{Operator: OpNone}}}) {
		t.Fatalf("expected false with no required terms")
	}
	if !AnyRequired([]TermMatch{{Term: QueryTerm{Operator: OpRequired}}}) {
		t.Fatalf("expected true with a required term")
	}
}
