package nexus

import (
	"github.com/RoaringBitmap/roaring"
	json "github.com/goccy/go-json"
)

func docRefsBitmap(ids_ []string, ids *idTable) *roaring.Bitmap {
	bm := roaring.New()
	for _, id := range ids_ {
		bm.Add(ids.intern(id))
	}
	return bm
}

// ═══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT (§4.4 / §6)
// ═══════════════════════════════════════════════════════════════════════════════
// Snapshot is the bit-exact JSON-shaped external representation of an index:
// every live document body, the trie/inverted-map index state per field, and
// the index's own config. This is the payload stored/retrieved through
// ExternalStore.
//
// Grounded on Zeeeepa-blaze/serialization.go's phased encode/decode
// structure (header -> stats -> payload, reconstructed through an explicit
// decoder that rebuilds pointer structure from flat indices) but the wire
// format itself is JSON via goccy/go-json rather than the teacher's custom
// binary tower format, since §6 mandates a JSON-shaped snapshot.
// IndexState.MarshalJSON/UnmarshalJSON emit §6's literal
// `{"trie": SerializedNode, "dataMap": {...}}` shape whenever the index has
// exactly one configured field (the common case, and the only case §6
// documents); a multi-field index - this implementation's supplement, see
// SPEC_FULL.md section C - falls back to the `{"tries": {...}, "dataMaps":
// {...}}` extension, keyed by field path.
//
// Phrase-position postings (positions.go) are not part of the external
// snapshot contract and are not persisted. In a restored index a quoted
// phrase of two or more words matches no document, and the term-frequency
// multiplier is 1, until that document is indexed again.
// ═══════════════════════════════════════════════════════════════════════════════

// SerializedNode is one trie node in wire form. Frequency and lastAccessed
// are intentionally absent - they are not part of the external contract -
// and are reconstructed heuristically on import (see deserializeNode).
type SerializedNode struct {
	Terminal    bool                       `json:"terminal"`
	DocRefs     []string                   `json:"docRefs"`
	Weight      float64                    `json:"weight"`
	PrefixCount int                        `json:"prefixCount"`
	Depth       int                        `json:"depth"`
	Children    map[string]*SerializedNode `json:"children"`
}

// IndexState is the per-field trie/dataMap pair. A single configured field
// (the common case, and the only case §6 documents) round-trips through the
// bit-exact `{"trie": SerializedNode, "dataMap": {...}}` wire shape; more
// than one field is this implementation's multi-field supplement (see
// SPEC_FULL.md section C) and falls back to `{"tries": {...}, "dataMaps":
// {...}}`, keyed by field path.
type IndexState struct {
	Tries    map[string]*SerializedNode
	DataMaps map[string]map[string][]string
}

// singleFieldKey is the placeholder under which a single-field wire shape's
// anonymous trie/dataMap is stashed until ImportSnapshot can rename it to
// the snapshot's one configured field.
const singleFieldKey = "\x00single-field"

type indexStateSingleWire struct {
	Trie    *SerializedNode      `json:"trie"`
	DataMap map[string][]string `json:"dataMap"`
}

type indexStateMultiWire struct {
	Tries    map[string]*SerializedNode     `json:"tries"`
	DataMaps map[string]map[string][]string `json:"dataMaps"`
}

func (s IndexState) MarshalJSON() ([]byte, error) {
	if len(s.Tries) == 1 {
		wire := indexStateSingleWire{}
		for _, trie := range s.Tries {
			wire.Trie = trie
		}
		for _, dataMap := range s.DataMaps {
			wire.DataMap = dataMap
		}
		return json.Marshal(wire)
	}
	return json.Marshal(indexStateMultiWire{Tries: s.Tries, DataMaps: s.DataMaps})
}

func (s *IndexState) UnmarshalJSON(data []byte) error {
	var multi indexStateMultiWire
	if err := json.Unmarshal(data, &multi); err != nil {
		return err
	}
	if multi.Tries != nil || multi.DataMaps != nil {
		s.Tries = multi.Tries
		s.DataMaps = multi.DataMaps
		return nil
	}
	var single indexStateSingleWire
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	s.Tries = map[string]*SerializedNode{singleFieldKey: single.Trie}
	s.DataMaps = map[string]map[string][]string{singleFieldKey: single.DataMap}
	return nil
}

// SnapshotDocument is one exported document keyed by its string ID.
type SnapshotDocument struct {
	Key   string    `json:"key"`
	Value *Document `json:"value"`
}

// SnapshotConfig is the index's own configuration, exported for round-trip
// fidelity and for a caller inspecting a snapshot without the live engine.
type SnapshotConfig struct {
	Name    string   `json:"name"`
	Version int      `json:"version"`
	Fields  []string `json:"fields"`
}

// Snapshot is the full external representation of one index.
type Snapshot struct {
	Documents  []SnapshotDocument `json:"documents"`
	IndexState IndexState         `json:"indexState"`
	Config     SnapshotConfig     `json:"config"`
}

// ExportSnapshot serializes manager's live documents and field indexes into
// a Snapshot.
func ExportSnapshot(manager *IndexManager, name string, version int) *Snapshot {
	manager.mu.RLock()
	defer manager.mu.RUnlock()

	// Walk byOrdinal (insertion order), not the live set (a Go map, iterated
	// in randomized order) - §3 requires insertion-ordered, deterministic
	// iteration, and the tie-break in §4.3 step 5 depends on it surviving a
	// snapshot round-trip.
	docs := make([]SnapshotDocument, 0, len(manager.live))
	for ord := uint32(0); int(ord) < len(manager.ids.byOrdinal); ord++ {
		if _, alive := manager.live[ord]; !alive {
			continue
		}
		id, _ := manager.ids.id(ord)
		docs = append(docs, SnapshotDocument{Key: id, Value: manager.docs[ord]})
	}

	tries := make(map[string]*SerializedNode, len(manager.mapper.fields))
	dataMaps := make(map[string]map[string][]string, len(manager.mapper.fields))
	fields := make([]string, 0, len(manager.mapper.fields))
	for path, fi := range manager.mapper.fields {
		fields = append(fields, path)
		tries[path] = serializeNode(fi.trie.root, manager.ids)
		dataMaps[path] = serializeDataMap(fi.invMap, manager.ids)
	}

	return &Snapshot{
		Documents: docs,
		IndexState: IndexState{
			Tries:    tries,
			DataMaps: dataMaps,
		},
		Config: SnapshotConfig{Name: name, Version: version, Fields: fields},
	}
}

func serializeNode(n *TrieNode, ids *idTable) *SerializedNode {
	sn := &SerializedNode{
		Terminal:    n.terminal,
		Weight:      n.weight,
		PrefixCount: n.prefixCount,
		Depth:       n.depth,
	}
	if n.docRefs != nil && !n.docRefs.IsEmpty() {
		sn.DocRefs = make([]string, 0, n.docRefs.GetCardinality())
		it := n.docRefs.Iterator()
		for it.HasNext() {
			if id, ok := ids.id(it.Next()); ok {
				sn.DocRefs = append(sn.DocRefs, id)
			}
		}
	}
	if len(n.children) > 0 {
		sn.Children = make(map[string]*SerializedNode, len(n.children))
		for r, child := range n.children {
			sn.Children[string(r)] = serializeNode(child, ids)
		}
	}
	return sn
}

func serializeDataMap(invMap *InvertedMap, ids *idTable) map[string][]string {
	invMap.mu.RLock()
	defer invMap.mu.RUnlock()
	out := make(map[string][]string, len(invMap.data))
	for token, bm := range invMap.data {
		list := make([]string, 0, bm.GetCardinality())
		it := bm.Iterator()
		for it.HasNext() {
			if id, ok := ids.id(it.Next()); ok {
				list = append(list, id)
			}
		}
		out[token] = list
	}
	return out
}

// resolveSingleFieldKey renames the sentinel key a single-field wire shape
// decodes under (UnmarshalJSON has no access to Config.Fields) to the
// snapshot's one configured field path.
func resolveSingleFieldKey(snap *Snapshot) error {
	_, sentinelTrie := snap.IndexState.Tries[singleFieldKey]
	_, sentinelDataMap := snap.IndexState.DataMaps[singleFieldKey]
	if !sentinelTrie && !sentinelDataMap {
		return nil
	}
	if len(snap.Config.Fields) != 1 {
		return newIndexError("single-field indexState shape requires exactly one config field")
	}
	path := snap.Config.Fields[0]
	if sentinelTrie {
		snap.IndexState.Tries[path] = snap.IndexState.Tries[singleFieldKey]
		delete(snap.IndexState.Tries, singleFieldKey)
	}
	if sentinelDataMap {
		snap.IndexState.DataMaps[path] = snap.IndexState.DataMaps[singleFieldKey]
		delete(snap.IndexState.DataMaps, singleFieldKey)
	}
	return nil
}

// ImportSnapshot rebuilds a fresh IndexManager from snap. The manager's
// tokenizer/query-processing configuration (mapperCfg) must list the same
// fields the snapshot was exported with; fields present in the snapshot but
// absent from mapperCfg are skipped.
func ImportSnapshot(snap *Snapshot, managerCfg ManagerConfig, mapperCfg IndexMapperConfig, now int64) (*IndexManager, error) {
	if err := resolveSingleFieldKey(snap); err != nil {
		return nil, err
	}

	manager, err := NewIndexManager(managerCfg, mapperCfg)
	if err != nil {
		return nil, err
	}

	for _, d := range snap.Documents {
		ord := manager.ids.intern(d.Key)
		manager.docs[ord] = d.Value
		manager.live[ord] = struct{}{}
		if d.Value != nil {
			manager.fieldTokens[ord] = manager.tokenizeFields(d.Value)
		}
	}

	for path, root := range snap.IndexState.Tries {
		fi, ok := manager.mapper.fields[path]
		if !ok {
			continue
		}
		fi.trie.root = deserializeNode(root, manager.ids, now, &fi.trie.nodeCount)
	}
	for path, dataMap := range snap.IndexState.DataMaps {
		fi, ok := manager.mapper.fields[path]
		if !ok {
			continue
		}
		for token, docIDs := range dataMap {
			for _, id := range docIDs {
				ord := manager.ids.intern(id)
				fi.invMap.Add(token, ord)
			}
		}
	}

	return manager, nil
}

func deserializeNode(sn *SerializedNode, ids *idTable, now int64, nodeCount *uint32) *TrieNode {
	if sn == nil {
		node := newTrieNode(0, *nodeCount)
		*nodeCount++
		return node
	}
	node := newTrieNode(sn.Depth, *nodeCount)
	*nodeCount++
	node.terminal = sn.Terminal
	node.weight = sn.Weight
	node.prefixCount = sn.PrefixCount
	if len(sn.DocRefs) > 0 {
		node.docRefs = docRefsBitmap(sn.DocRefs, ids)
		// frequency/lastAccessed are not part of the external contract;
		// reconstruct frequency as one occurrence per referencing document
		// and treat the node as freshly accessed at import time.
		node.frequency = len(sn.DocRefs)
		node.lastAccessed = now
	}
	for r, child := range sn.Children {
		runes := []rune(r)
		if len(runes) != 1 {
			continue
		}
		node.children[runes[0]] = deserializeNode(child, ids, now, nodeCount)
	}
	return node
}

// marshalSnapshot / unmarshalSnapshot expose the bit-exact JSON encode/decode
// entry points used by ExternalStore callers.
func marshalSnapshot(snap *Snapshot) ([]byte, error) {
	b, err := json.Marshal(snap)
	if err != nil {
		return nil, newStorageError("marshal snapshot", err)
	}
	return b, nil
}

// requiredSnapshotKeys are the top-level keys §6 mandates; any snapshot
// missing one of these, or whose value is the wrong JSON type, is rejected
// rather than silently zero-filled.
var requiredSnapshotKeys = []string{"documents", "indexState", "config"}

func unmarshalSnapshot(data []byte) (*Snapshot, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, newIndexError("snapshot is not a JSON object: " + err.Error())
	}
	for _, key := range requiredSnapshotKeys {
		if _, ok := top[key]; !ok {
			return nil, newIndexError("snapshot missing required key: " + key)
		}
	}

	var indexState map[string]json.RawMessage
	if err := json.Unmarshal(top["indexState"], &indexState); err != nil {
		return nil, newIndexError("indexState is not a JSON object: " + err.Error())
	}
	present := func(key string) bool {
		raw, ok := indexState[key]
		return ok && string(raw) != "null"
	}
	hasSingle := present("trie") && present("dataMap")
	hasMulti := present("tries") && present("dataMaps")
	if !hasSingle && !hasMulti {
		return nil, newIndexError("indexState must carry trie+dataMap or tries+dataMaps")
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, newIndexError("snapshot shape invalid: " + err.Error())
	}
	return &snap, nil
}
