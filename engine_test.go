package nexus

import (
	"context"
	"testing"
)

func newTestEngine(t *testing.T) *SearchEngine {
	t.Helper()
	cfg := DefaultEngineConfig("test")
	cfg.Store = NewMemoryStore()
	e := NewSearchEngine(cfg)
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e
}

func TestSearchEngine_InitializeReachesReady(t *testing.T) {
	e := newTestEngine(t)
	if e.state != StateReady {
		t.Fatalf("expected state Ready after Initialize, got %s", e.state)
	}
}

func TestSearchEngine_InitializeTwiceFails(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Initialize(context.Background()); err == nil {
		t.Fatalf("expected a second Initialize to fail")
	}
}

func TestSearchEngine_CloseIsTerminal(t *testing.T) {
	cfg := DefaultEngineConfig("test")
	cfg.Store = NewMemoryStore()
	e := NewSearchEngine(cfg)
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := e.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if e.state != StateClosed {
		t.Fatalf("expected state Closed, got %s", e.state)
	}
	if _, err := e.AddDocuments(context.Background(), []*Document{{Fields: map[string]any{"content": "x"}}}); err == nil {
		t.Fatalf("expected AddDocuments to fail once closed")
	}
	if _, err := e.Search(context.Background(), SearchRequest{Query: "x"}); err == nil {
		t.Fatalf("expected Search to fail once closed")
	}
}

func TestSearchEngine_AddDocumentsThenSearch(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	ids, err := e.AddDocuments(ctx, []*Document{
		{Fields: map[string]any{"content": "the quick brown fox jumps"}},
		{Fields: map[string]any{"content": "lazy dogs sleep all day"}},
	})
	if err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 assigned IDs, got %d", len(ids))
	}
	if e.state != StateReady {
		t.Fatalf("expected state to return to Ready after mutation, got %s", e.state)
	}

	hits, err := e.Search(ctx, SearchRequest{Query: "fox", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit for 'fox', got %+v", hits)
	}
	if hits[0].Score != 1 {
		t.Fatalf("expected the only hit's score normalized to 1, got %f", hits[0].Score)
	}
}

func TestSearchEngine_UpdateAndRemoveDocument(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	ids, err := e.AddDocuments(ctx, []*Document{{ID: "doc1", Fields: map[string]any{"content": "original content"}}})
	if err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	id := ids[0]

	if err := e.UpdateDocument(ctx, id, map[string]any{"content": "revised wording"}, "author"); err != nil {
		t.Fatalf("UpdateDocument: %v", err)
	}
	hits, err := e.Search(ctx, SearchRequest{Query: "revised", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected updated content to be searchable, got %+v", hits)
	}

	if err := e.RemoveDocument(ctx, id); err != nil {
		t.Fatalf("RemoveDocument: %v", err)
	}
	hits, err = e.Search(ctx, SearchRequest{Query: "revised", Limit: 10})
	if err != nil {
		t.Fatalf("Search after remove: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits after removal, got %+v", hits)
	}
}

func TestSearchEngine_SearchCacheHitMatchesMiss(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.AddDocuments(ctx, []*Document{{Fields: map[string]any{"content": "caching behavior under test"}}}); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}

	first, err := e.Search(ctx, SearchRequest{Query: "caching", Limit: 10})
	if err != nil {
		t.Fatalf("Search (miss): %v", err)
	}
	second, err := e.Search(ctx, SearchRequest{Query: "caching", Limit: 10})
	if err != nil {
		t.Fatalf("Search (hit): %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("expected cached search to return the same result set, got %+v vs %+v", first, second)
	}
}

func TestSearchEngine_ThresholdFiltersResults(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.AddDocuments(ctx, []*Document{
		{Fields: map[string]any{"content": "apple apple apple"}},
		{Fields: map[string]any{"content": "apple banana"}},
	}); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	hits, err := e.Search(ctx, SearchRequest{Query: "apple", Threshold: 0.99, Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, h := range hits {
		if h.Score < 0.99 {
			t.Fatalf("expected every surviving hit to score >= 0.99, got %+v", h)
		}
	}
}

func TestSearchEngine_PaginationOffsetAndLimit(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	docs := make([]*Document, 0, 5)
	for i := 0; i < 5; i++ {
		docs = append(docs, &Document{Fields: map[string]any{"content": "paginated result document"}})
	}
	if _, err := e.AddDocuments(ctx, docs); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	all, err := e.Search(ctx, SearchRequest{Query: "paginated", Limit: 100})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 total hits, got %d", len(all))
	}
	page, err := e.Search(ctx, SearchRequest{Query: "paginated", Offset: 2, Limit: 2})
	if err != nil {
		t.Fatalf("Search with pagination: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected a page of 2 hits, got %d", len(page))
	}
}

func TestSearchEngine_RegexSearchMatchesEndToEnd(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.AddDocuments(ctx, []*Document{
		{ID: "a", Fields: map[string]any{"content": "apple"}},
		{ID: "b", Fields: map[string]any{"content": "banana"}},
		{ID: "c", Fields: map[string]any{"content": "appliance12"}},
		{ID: "d", Fields: map[string]any{"content": "abracadabra3"}},
	}); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}

	hits, err := e.Search(ctx, SearchRequest{Regex: "^a.*3$", Threshold: -1, Limit: 10})
	if err != nil {
		t.Fatalf("Search (regex): %v", err)
	}
	if len(hits) != 1 || hits[0].DocID != "d" {
		t.Fatalf("expected only 'd' to match ^a.*3$, got %+v", hits)
	}
}

func TestSearchEngine_FieldsRestrictsSearch(t *testing.T) {
	cfg := DefaultEngineConfig("test")
	cfg.Store = NewMemoryStore()
	cfg.Fields = []FieldConfig{
		{Path: "title", Weight: 1.0, MaxWordLength: 64},
		{Path: "body", Weight: 1.0, MaxWordLength: 64},
	}
	e := NewSearchEngine(cfg)
	ctx := context.Background()
	if err := e.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { _ = e.Close(ctx) })

	if _, err := e.AddDocuments(ctx, []*Document{
		{ID: "x", Fields: map[string]any{"title": "zebra", "body": "giraffe"}},
	}); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}

	hits, err := e.Search(ctx, SearchRequest{Query: "giraffe", Fields: []string{"title"}, Threshold: -1, Limit: 10})
	if err != nil {
		t.Fatalf("Search restricted to title: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits when 'giraffe' only appears in body, got %+v", hits)
	}

	hits, err = e.Search(ctx, SearchRequest{Query: "giraffe", Fields: []string{"body"}, Threshold: -1, Limit: 10})
	if err != nil {
		t.Fatalf("Search restricted to body: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit when body is searched, got %+v", hits)
	}
}

func TestSearchEngine_PageAndPageSizeMatchOffsetLimit(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	docs := make([]*Document, 0, 5)
	for i := 0; i < 5; i++ {
		docs = append(docs, &Document{Fields: map[string]any{"content": "paginated result document"}})
	}
	if _, err := e.AddDocuments(ctx, docs); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	byOffset, err := e.Search(ctx, SearchRequest{Query: "paginated", Offset: 2, Limit: 2})
	if err != nil {
		t.Fatalf("Search by offset/limit: %v", err)
	}
	byPage, err := e.Search(ctx, SearchRequest{Query: "paginated", Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("Search by page/pageSize: %v", err)
	}
	if len(byOffset) != len(byPage) {
		t.Fatalf("expected page/pageSize to match the equivalent offset/limit: %+v vs %+v", byOffset, byPage)
	}
}

func TestSearchEngine_IncludeMatchesPopulatesHitMatches(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.AddDocuments(ctx, []*Document{{Fields: map[string]any{"content": "hunting foxes"}}}); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	hits, err := e.Search(ctx, SearchRequest{Query: "foxes", IncludeMatches: true, Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || len(hits[0].Matches) == 0 {
		t.Fatalf("expected IncludeMatches to populate the matched terms, got %+v", hits)
	}
}

func TestSearchEngine_RestartReloadsSnapshot(t *testing.T) {
	store := NewMemoryStore()
	cfg := DefaultEngineConfig("persisted")
	cfg.Store = store
	e1 := NewSearchEngine(cfg)
	ctx := context.Background()
	if err := e1.Initialize(ctx); err != nil {
		t.Fatalf("Initialize e1: %v", err)
	}
	if _, err := e1.AddDocuments(ctx, []*Document{{ID: "persisted-doc", Fields: map[string]any{"content": "durable content"}}}); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	if err := e1.Close(ctx); err != nil {
		t.Fatalf("Close e1: %v", err)
	}

	cfg2 := DefaultEngineConfig("persisted")
	cfg2.Store = store
	e2 := NewSearchEngine(cfg2)
	if err := e2.Initialize(ctx); err != nil {
		t.Fatalf("Initialize e2: %v", err)
	}
	t.Cleanup(func() { _ = e2.Close(ctx) })

	hits, err := e2.Search(ctx, SearchRequest{Query: "durable", Limit: 10})
	if err != nil {
		t.Fatalf("Search after restart: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected the persisted document to survive a restart, got %+v", hits)
	}
}
