package nexus

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════════
// DOCUMENT DATA MODEL
// ═══════════════════════════════════════════════════════════════════════════════
// A Document is an opaque caller payload: a required ID and a map of field
// name to value, where a value is a primitive, an ordered list of primitives,
// or a nested map (recursively). See ValueKind below for the tagged-variant
// model used to normalise these heterogeneous values to indexable text.
// ═══════════════════════════════════════════════════════════════════════════════

// Document is a single indexable record.
type Document struct {
	ID        string
	Fields    map[string]any
	Metadata  *DocMetadata
	Versions  []DocVersion
	Relations []DocRelation
}

// DocMetadata carries bookkeeping the caller may attach to a document.
type DocMetadata struct {
	Indexed      int64 // epoch-ms
	LastModified int64 // epoch-ms
	Checksum     string
	Permissions  string
	Workflow     string
}

// DocVersion is a single prior revision retained when versioning is enabled.
type DocVersion struct {
	Version  int
	Content  any
	Modified time.Time
	Author   string
}

// RelationType enumerates the kinds of relation between two documents.
type RelationType string

const (
	RelationReference RelationType = "reference"
	RelationParent     RelationType = "parent"
	RelationChild      RelationType = "child"
	RelationRelated    RelationType = "related"
)

// DocRelation is a directed edge between two documents.
type DocRelation struct {
	SourceID string
	TargetID string
	Type     RelationType
}

// ═══════════════════════════════════════════════════════════════════════════════
// TAGGED-VARIANT FIELD VALUES
// ═══════════════════════════════════════════════════════════════════════════════
// Caller field values arrive as `any` (typically produced by decoding JSON or
// assembled by hand). ValueKind/Value normalise that into a small closed set
// so tokenization has one place to reason about shape, per spec.md's Design
// Notes ("model with a tagged-variant value and a normaliser").
// ═══════════════════════════════════════════════════════════════════════════════

// ValueKind tags the shape of a normalised field Value.
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueBool
	ValueInt
	ValueFloat
	ValueString
	ValueList
	ValueMap
)

// Value is a normalised field value.
type Value struct {
	Kind ValueKind
	B    bool
	I    int64
	F    float64
	S    string
	List []Value
	Map  map[string]Value
}

// NormaliseValue reduces an arbitrary caller-supplied field value into the
// tagged-variant Value model.
func NormaliseValue(v any) Value {
	switch t := v.(type) {
	case nil:
		return Value{Kind: ValueNull}
	case bool:
		return Value{Kind: ValueBool, B: t}
	case string:
		return Value{Kind: ValueString, S: t}
	case int:
		return Value{Kind: ValueInt, I: int64(t)}
	case int32:
		return Value{Kind: ValueInt, I: int64(t)}
	case int64:
		return Value{Kind: ValueInt, I: t}
	case float32:
		return Value{Kind: ValueFloat, F: float64(t)}
	case float64:
		return Value{Kind: ValueFloat, F: t}
	case []any:
		list := make([]Value, len(t))
		for i, e := range t {
			list[i] = NormaliseValue(e)
		}
		return Value{Kind: ValueList, List: list}
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			m[k] = NormaliseValue(e)
		}
		return Value{Kind: ValueMap, Map: m}
	default:
		return Value{Kind: ValueString, S: fmt.Sprintf("%v", t)}
	}
}

// Stringify flattens a Value to the text fed to the tokenizer. Strings pass
// through, lists join by space, nested maps join their values recursively
// (keys sorted for determinism), other scalars stringify. Per spec.md §4.3.
func (v Value) Stringify() string {
	switch v.Kind {
	case ValueNull:
		return ""
	case ValueBool:
		if v.B {
			return "true"
		}
		return "false"
	case ValueInt:
		return fmt.Sprintf("%d", v.I)
	case ValueFloat:
		return fmt.Sprintf("%g", v.F)
	case ValueString:
		return v.S
	case ValueList:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = e.Stringify()
		}
		return strings.Join(parts, " ")
	case ValueMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, v.Map[k].Stringify())
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}

// FieldAtPath resolves a dot-notation path into a document's Fields,
// returning the normalised Value at that path, or false if absent.
func FieldAtPath(doc *Document, path string) (Value, bool) {
	cur := NormaliseValue(doc.Fields)
	for _, segment := range strings.Split(path, ".") {
		if cur.Kind != ValueMap {
			return Value{}, false
		}
		next, ok := cur.Map[segment]
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	return cur, true
}

// ═══════════════════════════════════════════════════════════════════════════════
// DOCUMENT-ID INTERNING
// ═══════════════════════════════════════════════════════════════════════════════
// Caller-visible document IDs are opaque strings, but the trie's docRefs and
// InvertedMap's sets are backed by *roaring.Bitmap (see trie.go,
// invertedmap.go), which requires dense uint32 keys. idTable interns each
// string ID into a stable ordinal the bitmaps can hold, adapting
// Zeeeepa-blaze/index.go's int-keyed DocBitmaps to string document IDs.
// Ordinals are never reused, even after a document is removed, so a stale
// bitmap entry can never resurrect as a different document.
// ═══════════════════════════════════════════════════════════════════════════════
type idTable struct {
	mu        sync.RWMutex
	byOrdinal []string
	byID      map[string]uint32
}

func newIDTable() *idTable {
	return &idTable{byID: make(map[string]uint32)}
}

// intern returns the ordinal for id, allocating a new one if unseen.
func (t *idTable) intern(id string) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ord, ok := t.byID[id]; ok {
		return ord
	}
	ord := uint32(len(t.byOrdinal))
	t.byOrdinal = append(t.byOrdinal, id)
	t.byID[id] = ord
	return ord
}

// ordinal looks up the ordinal for an existing id.
func (t *idTable) ordinal(id string) (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ord, ok := t.byID[id]
	return ord, ok
}

// id resolves an ordinal back to its string document ID.
func (t *idTable) id(ordinal uint32) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(ordinal) >= len(t.byOrdinal) {
		return "", false
	}
	return t.byOrdinal[ordinal], true
}

// GenerateDocID produces an auto-assigned ID of the form
// "{indexName}-{ordinal}-{epoch-ms}", per spec.md §3.
func GenerateDocID(indexName string, ordinal int, nowMillis int64) string {
	return fmt.Sprintf("%s-%d-%d", indexName, ordinal, nowMillis)
}
