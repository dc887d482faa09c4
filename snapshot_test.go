package nexus

import (
	"context"
	"strings"
	"testing"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()
	if _, err := mgr.AddDocument(ctx, &Document{ID: "d1", Fields: map[string]any{"content": "search engines index text"}}, 1000); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if _, err := mgr.AddDocument(ctx, &Document{ID: "d2", Fields: map[string]any{"content": "another indexed document"}}, 1000); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	snap := ExportSnapshot(mgr, "test", 1)
	payload, err := marshalSnapshot(snap)
	if err != nil {
		t.Fatalf("marshalSnapshot: %v", err)
	}
	decoded, err := unmarshalSnapshot(payload)
	if err != nil {
		t.Fatalf("unmarshalSnapshot: %v", err)
	}
	if len(decoded.Documents) != 2 {
		t.Fatalf("expected 2 documents in round-tripped snapshot, got %d", len(decoded.Documents))
	}

	restored, err := ImportSnapshot(decoded,
		ManagerConfig{IndexName: "test", MaxVersions: 3},
		IndexMapperConfig{
			Fields:    []FieldConfig{{Path: "content", Weight: 1.0, MaxWordLength: 64}},
			QueryProc: DefaultQueryProcessorConfig(),
		},
		2000,
	)
	if err != nil {
		t.Fatalf("ImportSnapshot: %v", err)
	}
	t.Cleanup(restored.Close)

	if restored.TotalDocs() != 2 {
		t.Fatalf("expected 2 live documents after import, got %d", restored.TotalDocs())
	}
	hits := restored.Search([]QueryTerm{{Stem: "index"}}, SearchOptions{Now: 2000, MaxResults: 10})
	if len(hits) != 2 {
		t.Fatalf("expected both documents to match 'index' after restore, got %+v", hits)
	}
}

func TestSnapshot_ConfigFieldsRoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	snap := ExportSnapshot(mgr, "myindex", 7)
	if snap.Config.Name != "myindex" || snap.Config.Version != 7 {
		t.Fatalf("expected config name/version to round-trip, got %+v", snap.Config)
	}
	if len(snap.Config.Fields) != 1 || snap.Config.Fields[0] != "content" {
		t.Fatalf("expected fields=[content], got %v", snap.Config.Fields)
	}
}

func TestSnapshot_SingleFieldUsesDocumentedWireShape(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()
	if _, err := mgr.AddDocument(ctx, &Document{ID: "d1", Fields: map[string]any{"content": "alpha"}}, 1000); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	snap := ExportSnapshot(mgr, "test", 1)
	payload, err := marshalSnapshot(snap)
	if err != nil {
		t.Fatalf("marshalSnapshot: %v", err)
	}
	body := string(payload)
	if !strings.Contains(body, `"trie"`) || !strings.Contains(body, `"dataMap"`) {
		t.Fatalf("expected the bit-exact single-field shape (trie/dataMap), got %s", body)
	}
	if strings.Contains(body, `"tries"`) || strings.Contains(body, `"dataMaps"`) {
		t.Fatalf("expected no multi-field keys for a single-field index, got %s", body)
	}
}

func TestSnapshot_DocumentOrderIsInsertionOrder(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()
	ids := []string{"z-doc", "a-doc", "m-doc"}
	for _, id := range ids {
		if _, err := mgr.AddDocument(ctx, &Document{ID: id, Fields: map[string]any{"content": "x"}}, 1000); err != nil {
			t.Fatalf("AddDocument(%s): %v", id, err)
		}
	}
	snap := ExportSnapshot(mgr, "test", 1)
	if len(snap.Documents) != len(ids) {
		t.Fatalf("expected %d documents, got %d", len(ids), len(snap.Documents))
	}
	for i, id := range ids {
		if snap.Documents[i].Key != id {
			t.Fatalf("expected insertion order %v, got %v at index %d (full: %+v)", ids, snap.Documents[i].Key, i, snap.Documents)
		}
	}
}

func TestUnmarshalSnapshot_RejectsMissingTopLevelKey(t *testing.T) {
	if _, err := unmarshalSnapshot([]byte(`{"documents":[],"config":{}}`)); err == nil {
		t.Fatalf("expected an error for a snapshot missing 'indexState'")
	}
}

func TestUnmarshalSnapshot_RejectsNonObjectTopLevel(t *testing.T) {
	if _, err := unmarshalSnapshot([]byte(`[1,2,3]`)); err == nil {
		t.Fatalf("expected an error for a non-object snapshot")
	}
}

func TestUnmarshalSnapshot_RejectsIndexStateMissingTrieAndDataMap(t *testing.T) {
	raw := `{"documents":[],"indexState":{},"config":{"name":"x","version":1,"fields":["content"]}}`
	if _, err := unmarshalSnapshot([]byte(raw)); err == nil {
		t.Fatalf("expected an error for indexState missing trie/dataMap and tries/dataMaps")
	}
}

func TestUnmarshalSnapshot_AcceptsWellFormedMinimalSnapshot(t *testing.T) {
	raw := `{"documents":[],"indexState":{"trie":{"terminal":false,"docRefs":null,"weight":0,"prefixCount":0,"depth":0,"children":null},"dataMap":{}},"config":{"name":"x","version":1,"fields":["content"]}}`
	snap, err := unmarshalSnapshot([]byte(raw))
	if err != nil {
		t.Fatalf("unmarshalSnapshot: %v", err)
	}
	if len(snap.Documents) != 0 {
		t.Fatalf("expected 0 documents, got %d", len(snap.Documents))
	}
}
