package nexus

import (
	"sync"

	"github.com/RoaringBitmap/roaring"
)

// ═══════════════════════════════════════════════════════════════════════════════
// INVERTED MAP
// ═══════════════════════════════════════════════════════════════════════════════
// InvertedMap is a plain token -> document-ordinal bitmap multimap, layered
// over TokenTrie so an exact-term membership test never needs a trie walk.
// It is kept in lock-step with the trie by IndexManager: every insert/remove
// against the trie is mirrored here in the same call.
//
// Adapted directly from Zeeeepa-blaze/index.go's
// InvertedIndex.DocBitmaps map[string]*roaring.Bitmap and its mutex-guarded
// update pattern.
// ═══════════════════════════════════════════════════════════════════════════════

// InvertedMap maps a token to the set of document ordinals containing it.
type InvertedMap struct {
	mu   sync.RWMutex
	data map[string]*roaring.Bitmap
}

// NewInvertedMap constructs an empty map.
func NewInvertedMap() *InvertedMap {
	return &InvertedMap{data: make(map[string]*roaring.Bitmap)}
}

// Add records that docOrdinal contains token.
func (m *InvertedMap) Add(token string, docOrdinal uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bm, ok := m.data[token]
	if !ok {
		bm = roaring.New()
		m.data[token] = bm
	}
	bm.Add(docOrdinal)
}

// Remove drops docOrdinal's membership in token, deleting the token's entry
// entirely once its bitmap is empty.
func (m *InvertedMap) Remove(token string, docOrdinal uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bm, ok := m.data[token]
	if !ok {
		return
	}
	bm.Remove(docOrdinal)
	if bm.IsEmpty() {
		delete(m.data, token)
	}
}

// Get returns the bitmap of document ordinals containing token, or nil if
// the token is unindexed.
func (m *InvertedMap) Get(token string) *roaring.Bitmap {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bm, ok := m.data[token]
	if !ok {
		return nil
	}
	return bm.Clone()
}

// Contains reports whether token has at least one living reference.
func (m *InvertedMap) Contains(token string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bm, ok := m.data[token]
	return ok && !bm.IsEmpty()
}

// Len reports the number of distinct indexed tokens.
func (m *InvertedMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Tokens returns a snapshot of every currently indexed token, unordered.
func (m *InvertedMap) Tokens() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.data))
	for tok := range m.data {
		out = append(out, tok)
	}
	return out
}
