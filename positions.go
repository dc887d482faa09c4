package nexus

import (
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PHRASE POSITION POSTINGS (supplement — see SPEC_FULL.md section C)
// ═══════════════════════════════════════════════════════════════════════════════
// PositionIndex tracks, per token, the sorted token-offsets at which it
// occurs within each document's tokenized field text. This is what lets
// quoted-phrase queries require exact adjacency rather than mere
// co-occurrence, and gives termFrequencyInDoc (§4.3 step 3) an exact count
// instead of an estimate from the trie's aggregate frequency.
//
// Adapted from Zeeeepa-blaze/skiplist.go's Position/SkipList and
// search.go's NextPhrase/findPhraseStart/findPhraseEnd walk, which locate
// the next in-order match of a phrase across a position-ordered skip list.
// The teacher's structure is a general ordered skip list sized for the whole
// corpus; this supplement narrows it to per-(token, document) offset slices,
// which is all exact-phrase matching needs once candidate documents are
// already known from InvertedMap/TokenTrie.
// ═══════════════════════════════════════════════════════════════════════════════

// PositionIndex maps token -> docOrdinal -> sorted token offsets.
type PositionIndex struct {
	mu   sync.RWMutex
	data map[string]map[uint32][]int
}

// NewPositionIndex constructs an empty position index.
func NewPositionIndex() *PositionIndex {
	return &PositionIndex{data: make(map[string]map[uint32][]int)}
}

// Add records that token occurs at offset within docOrdinal.
func (p *PositionIndex) Add(token string, docOrdinal uint32, offset int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	byDoc, ok := p.data[token]
	if !ok {
		byDoc = make(map[uint32][]int)
		p.data[token] = byDoc
	}
	byDoc[docOrdinal] = append(byDoc[docOrdinal], offset)
}

// RemoveDoc drops every position recorded for docOrdinal under token.
func (p *PositionIndex) RemoveDoc(token string, docOrdinal uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	byDoc, ok := p.data[token]
	if !ok {
		return
	}
	delete(byDoc, docOrdinal)
	if len(byDoc) == 0 {
		delete(p.data, token)
	}
}

// Offsets returns the sorted offsets of token within docOrdinal.
func (p *PositionIndex) Offsets(token string, docOrdinal uint32) []int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	byDoc, ok := p.data[token]
	if !ok {
		return nil
	}
	offs := byDoc[docOrdinal]
	out := make([]int, len(offs))
	copy(out, offs)
	sort.Ints(out)
	return out
}

// TermFrequency returns the exact occurrence count of token within
// docOrdinal, per §4.3 step 3.
func (p *PositionIndex) TermFrequency(token string, docOrdinal uint32) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	byDoc, ok := p.data[token]
	if !ok {
		return 0
	}
	return len(byDoc[docOrdinal])
}

// MatchPhrase narrows candidates to documents where terms occur as a
// contiguous, in-order run of offsets: term[i+1] must occur at
// offset(term[i])+1 somewhere in the document. Returns the subset of
// candidates satisfying the phrase, or candidates unchanged if terms has
// fewer than two entries (a single term is trivially "a phrase").
func (p *PositionIndex) MatchPhrase(terms []string, candidates *roaring.Bitmap) *roaring.Bitmap {
	if len(terms) < 2 || candidates == nil {
		return candidates
	}
	out := roaring.New()
	it := candidates.Iterator()
	for it.HasNext() {
		doc := it.Next()
		if p.docHasPhrase(terms, doc) {
			out.Add(doc)
		}
	}
	return out
}

func (p *PositionIndex) docHasPhrase(terms []string, doc uint32) bool {
	firstOffsets := p.Offsets(terms[0], doc)
	for _, start := range firstOffsets {
		ok := true
		for i := 1; i < len(terms); i++ {
			want := start + i
			offs := p.Offsets(terms[i], doc)
			if !containsInt(offs, want) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func containsInt(xs []int, v int) bool {
	// offsets are sorted and typically short; linear scan is adequate and
	// avoids importing sort.Search bookkeeping for tiny slices.
	for _, x := range xs {
		if x == v {
			return true
		}
		if x > v {
			return false
		}
	}
	return false
}
