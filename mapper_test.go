package nexus

import "testing"

func newTestMapper() *IndexMapper {
	return NewIndexMapper(IndexMapperConfig{
		Fields: []FieldConfig{
			{Path: "content", Weight: 1.0, MaxWordLength: 64},
			{Path: "title", Weight: 2.0, MaxWordLength: 64},
		},
		QueryProc: DefaultQueryProcessorConfig(),
	})
}

func TestIndexMapper_TokenizeAppliesStemAndStopwords(t *testing.T) {
	m := newTestMapper()
	tokens := m.Tokenize("content", "The cats are running in the garden")
	for _, tok := range tokens {
		if tok == "the" {
			t.Fatalf("expected stopword 'the' to be filtered out")
		}
	}
	found := false
	for _, tok := range tokens {
		if tok == "cat" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected stemmed token 'cat' in %v", tokens)
	}
}

func TestIndexMapper_SearchFindsIndexedDoc(t *testing.T) {
	m := newTestMapper()
	tokens := m.Tokenize("content", "the quick brown fox")
	m.IndexTokens("content", tokens, 1, 1000)

	terms := []QueryTerm{{Stem: "fox"}}
	results := m.Search(terms, SearchOptions{TotalDocs: 1, Now: 1000, MaxResults: 10})
	if len(results) != 1 || results[0].DocOrdinal != 1 {
		t.Fatalf("expected doc 1 to match 'fox', got %+v", results)
	}
}

func TestIndexMapper_FieldRestriction(t *testing.T) {
	m := newTestMapper()
	m.IndexTokens("content", m.Tokenize("content", "golang programming"), 1, 1000)
	m.IndexTokens("title", m.Tokenize("title", "golang basics"), 2, 1000)

	terms := []QueryTerm{{Stem: "golang", Field: "title"}}
	results := m.Search(terms, SearchOptions{TotalDocs: 2, Now: 1000, MaxResults: 10})
	if len(results) != 1 || results[0].DocOrdinal != 2 {
		t.Fatalf("expected only doc 2 (title field) to match, got %+v", results)
	}
}

func TestIndexMapper_RemoveTokensDeindexes(t *testing.T) {
	m := newTestMapper()
	tokens := m.Tokenize("content", "unique keyword here")
	m.IndexTokens("content", tokens, 1, 1000)
	m.RemoveTokens("content", tokens, 1)

	terms := []QueryTerm{{Stem: "unique"}}
	results := m.Search(terms, SearchOptions{TotalDocs: 0, Now: 1000, MaxResults: 10})
	if len(results) != 0 {
		t.Fatalf("expected no results after removal, got %+v", results)
	}
}
