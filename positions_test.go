package nexus

import "testing"

func TestPositionIndex_TermFrequency(t *testing.T) {
	p := NewPositionIndex()
	p.Add("fox", 1, 0)
	p.Add("jumps", 1, 1)
	p.Add("fox", 1, 5)

	if got := p.TermFrequency("fox", 1); got != 2 {
		t.Fatalf("expected term frequency 2, got %d", got)
	}
}

func TestPositionIndex_MatchPhraseRequiresAdjacency(t *testing.T) {
	p := NewPositionIndex()
	// doc 1: "quick brown fox" -> quick@0 brown@1 fox@2
	p.Add("quick", 1, 0)
	p.Add("brown", 1, 1)
	p.Add("fox", 1, 2)
	// doc 2: "quick" and "fox" present but not adjacent
	p.Add("quick", 2, 0)
	p.Add("fox", 2, 9)

	candidates := bitmapOf(1, 2)
	matched := p.MatchPhrase([]string{"quick", "fox"}, candidates)
	if matched.GetCardinality() != 0 {
		t.Fatalf("expected no match for non-adjacent 'quick fox', got %v", matched.ToArray())
	}

	matched = p.MatchPhrase([]string{"brown", "fox"}, candidates)
	if matched.GetCardinality() != 1 || !matched.Contains(1) {
		t.Fatalf("expected doc 1 to match adjacent phrase 'brown fox', got %v", matched.ToArray())
	}
}

func TestPositionIndex_RemoveDoc(t *testing.T) {
	p := NewPositionIndex()
	p.Add("term", 1, 0)
	p.RemoveDoc("term", 1)
	if p.TermFrequency("term", 1) != 0 {
		t.Fatalf("expected 0 occurrences after removal")
	}
}
