package nexus

import "testing"

func TestTokenTrie_InsertAndExact(t *testing.T) {
	trie := NewTokenTrie()
	trie.Insert("search", 1, 1.0, 1000)
	trie.Insert("search", 2, 1.0, 1000)

	match, ok := trie.Exact("search", 3, 1000)
	if !ok {
		t.Fatalf("expected exact match for 'search'")
	}
	if match.DocRefs.GetCardinality() != 2 {
		t.Fatalf("expected 2 doc refs, got %d", match.DocRefs.GetCardinality())
	}
	if match.Score <= 0 {
		t.Fatalf("expected positive score, got %f", match.Score)
	}
}

func TestTokenTrie_ExactMissing(t *testing.T) {
	trie := NewTokenTrie()
	trie.Insert("engine", 1, 1.0, 1000)
	if _, ok := trie.Exact("missing", 1, 1000); ok {
		t.Fatalf("expected no match for unindexed token")
	}
}

func TestTokenTrie_RemoveDocPrunesDeadBranch(t *testing.T) {
	trie := NewTokenTrie()
	trie.Insert("cats", 1, 1.0, 1000)
	trie.RemoveDoc("cats", 1)

	if _, ok := trie.Exact("cats", 1, 1000); ok {
		t.Fatalf("expected 'cats' to be gone after removing its only doc")
	}
	if len(trie.root.children) != 0 {
		t.Fatalf("expected root to have no children after full prune, got %d", len(trie.root.children))
	}
}

func TestTokenTrie_RemoveDocKeepsSharedPrefix(t *testing.T) {
	trie := NewTokenTrie()
	trie.Insert("cat", 1, 1.0, 1000)
	trie.Insert("cats", 2, 1.0, 1000)
	trie.RemoveDoc("cats", 2)

	if _, ok := trie.Exact("cat", 1, 1000); !ok {
		t.Fatalf("expected 'cat' to survive removal of 'cats'")
	}
	if _, ok := trie.Exact("cats", 1, 1000); ok {
		t.Fatalf("expected 'cats' to be gone")
	}
}

func TestTokenTrie_Prefix(t *testing.T) {
	trie := NewTokenTrie()
	trie.Insert("search", 1, 1.0, 1000)
	trie.Insert("season", 2, 1.0, 1000)
	trie.Insert("seat", 3, 1.0, 1000)
	trie.Insert("table", 4, 1.0, 1000)

	matches := trie.Prefix("sea", 4, 1000, 0)
	if len(matches) != 3 {
		t.Fatalf("expected 3 prefix matches, got %d", len(matches))
	}
}

func TestTokenTrie_PrefixSupersetOfExact(t *testing.T) {
	trie := NewTokenTrie()
	trie.Insert("run", 1, 1.0, 1000)
	trie.Insert("running", 2, 1.0, 1000)

	exact, ok := trie.Exact("run", 2, 1000)
	if !ok {
		t.Fatalf("expected exact match for 'run'")
	}
	prefixMatches := trie.Prefix("run", 2, 1000, 0)
	found := false
	for _, m := range prefixMatches {
		if m.Token == exact.Token {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected prefix('run') results to include exact('run')")
	}
}

func TestTokenTrie_FuzzyFindsOneEditAway(t *testing.T) {
	trie := NewTokenTrie()
	trie.Insert("kitten", 1, 1.0, 1000)

	matches := trie.Fuzzy("sitten", 2, 1, 1000, 0)
	if len(matches) == 0 {
		t.Fatalf("expected a fuzzy match for 'sitten' ~ 'kitten'")
	}
	if matches[0].Token != "kitten" {
		t.Fatalf("expected 'kitten', got %q", matches[0].Token)
	}
	if matches[0].Distance != 1 {
		t.Fatalf("expected edit distance 1, got %d", matches[0].Distance)
	}
}

func TestTokenTrie_FuzzyMonotonicDecreasesWithDistance(t *testing.T) {
	trie := NewTokenTrie()
	trie.Insert("kitten", 1, 1.0, 1000)
	trie.Insert("kittens", 2, 1.0, 1000)

	matches := trie.Fuzzy("kitten", 2, 2, 1000, 0)
	scoreByToken := make(map[string]float64, len(matches))
	for _, m := range matches {
		scoreByToken[m.Token] = m.Score
	}
	if scoreByToken["kitten"] <= scoreByToken["kittens"] {
		t.Fatalf("expected exact 'kitten' (distance 0) to outscore 'kittens' (distance 1): %v", scoreByToken)
	}
}

func TestTokenTrie_TerminalPrefixCountCoversItsOwnDocRefs(t *testing.T) {
	trie := NewTokenTrie()
	trie.Insert("cats", 1, 1.0, 1000)
	trie.Insert("cats", 2, 1.0, 1000)

	node := trie.walk("cats")
	if node == nil || !node.terminal {
		t.Fatalf("expected 'cats' to be a terminal node")
	}
	if uint64(node.prefixCount) < node.docRefs.GetCardinality() {
		t.Fatalf("expected prefixCount (%d) >= |docRefs| (%d)", node.prefixCount, node.docRefs.GetCardinality())
	}

	trie.RemoveDoc("cats", 2)
	node = trie.walk("cats")
	if node == nil || !node.terminal {
		t.Fatalf("expected 'cats' to remain terminal after removing one of two docs")
	}
	if uint64(node.prefixCount) < node.docRefs.GetCardinality() {
		t.Fatalf("expected prefixCount (%d) >= |docRefs| (%d) after removal", node.prefixCount, node.docRefs.GetCardinality())
	}
}

func TestComputeRecencyDecaysOverTime(t *testing.T) {
	now := int64(1_700_000_000_000)
	fresh := computeRecency(now, now)
	dayOld := computeRecency(now-24*3600*1000, now)
	if !(fresh > dayOld) {
		t.Fatalf("expected fresher access to score higher recency: fresh=%f dayOld=%f", fresh, dayOld)
	}
	if dayOld <= 0 || dayOld >= 1 {
		t.Fatalf("expected 24h-old recency in (0,1), got %f", dayOld)
	}
}
