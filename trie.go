package nexus

import (
	"math"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/agnivade/levenshtein"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TOKEN TRIE
// ═══════════════════════════════════════════════════════════════════════════════
// TokenTrie is a weighted character trie. Each terminal node carries a
// roaring.Bitmap of interned document ordinals referencing that token, plus
// the frequency/weight/recency/depth signals the §4.1.2 scoring formula
// consumes. Non-terminal nodes only carry prefixCount, which is kept up to
// date and serialized into snapshots; no scoring or ordering reads it.
//
// Adapted from Zeeeepa-blaze/index.go's InvertedIndex.DocBitmaps, which maps
// whole tokens straight to a *roaring.Bitmap; here the trie additionally
// indexes by character so exact/prefix/fuzzy all share one structure.
// ═══════════════════════════════════════════════════════════════════════════════

const recencyHalfLifeHours = 24.0

// TrieNode is one character position in the trie.
type TrieNode struct {
	children     map[rune]*TrieNode
	terminal     bool
	docRefs      *roaring.Bitmap
	weight       float64
	frequency    int
	lastAccessed int64 // epoch-ms
	depth        int
	prefixCount  int
	handle       uint32
}

func newTrieNode(depth int, handle uint32) *TrieNode {
	return &TrieNode{
		children: make(map[rune]*TrieNode),
		depth:    depth,
		handle:   handle,
	}
}

// TokenTrie is the root structure, safe for concurrent readers with a single
// writer at a time (the engine serializes mutation per §5).
type TokenTrie struct {
	mu        sync.RWMutex
	root      *TrieNode
	nodeCount uint32
}

// NewTokenTrie constructs an empty trie.
func NewTokenTrie() *TokenTrie {
	t := &TokenTrie{}
	t.root = newTrieNode(0, 0)
	t.nodeCount = 1
	return t
}

// ScoredMatch is a single token match carrying its score and document set.
type ScoredMatch struct {
	Token    string
	DocRefs  *roaring.Bitmap
	Score    float64
	Distance int // 0 for exact/prefix matches, edit distance for fuzzy
}

// Insert records one occurrence of token in docOrdinal with the given field
// weight, at wall-clock now (epoch-ms).
func (t *TokenTrie) Insert(token string, docOrdinal uint32, weight float64, now int64) {
	if token == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	node := t.root
	depth := 0
	for _, r := range token {
		child, ok := node.children[r]
		if !ok {
			depth = node.depth + 1
			child = newTrieNode(depth, t.nodeCount)
			t.nodeCount++
			node.children[r] = child
		}
		node.prefixCount++
		node = child
	}
	node.prefixCount++ // terminal node counts itself too: prefixCount >= |docRefs| (§3)
	node.terminal = true
	node.frequency++
	node.lastAccessed = now
	if weight > node.weight {
		node.weight = weight
	}
	if node.docRefs == nil {
		node.docRefs = roaring.New()
	}
	node.docRefs.Add(docOrdinal)
}

// RemoveDoc drops docOrdinal's reference to token, pruning any node left
// with no terminal status, no children, and no document references.
func (t *TokenTrie) RemoveDoc(token string, docOrdinal uint32) {
	if token == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	path := make([]*TrieNode, 0, len(token)+1)
	path = append(path, t.root)
	node := t.root
	for _, r := range token {
		child, ok := node.children[r]
		if !ok {
			return // token not present
		}
		path = append(path, child)
		node = child
	}
	if !node.terminal {
		return
	}
	if node.docRefs != nil {
		node.docRefs.Remove(docOrdinal)
	}
	node.prefixCount-- // symmetric with Insert's terminal-node increment
	if node.docRefs == nil || node.docRefs.IsEmpty() {
		node.terminal = false
		node.frequency = 0
	}

	// Post-order prune: walk back up, decrementing prefixCount and removing
	// any now-dead leaf.
	runes := []rune(token)
	for i := len(path) - 1; i > 0; i-- {
		parent := path[i-1]
		cur := path[i]
		parent.prefixCount--
		if !cur.terminal && len(cur.children) == 0 {
			delete(parent.children, runes[i-1])
		}
	}
}

// Exact returns the scored match for token if it is a terminal node with at
// least one live document reference.
func (t *TokenTrie) Exact(token string, totalDocs int, now int64) (ScoredMatch, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	node := t.walk(token)
	if node == nil || !node.terminal || node.docRefs == nil || node.docRefs.IsEmpty() {
		return ScoredMatch{}, false
	}
	return ScoredMatch{
		Token:   token,
		DocRefs: node.docRefs.Clone(),
		Score:   scoreNode(node, len(token), totalDocs, now),
	}, true
}

// Prefix returns every terminal descendant of prefix, ordered by score
// descending, capped at limit (0 means unlimited).
func (t *TokenTrie) Prefix(prefix string, totalDocs int, now int64, limit int) []ScoredMatch {
	t.mu.RLock()
	defer t.mu.RUnlock()
	node := t.walk(prefix)
	if node == nil {
		return nil
	}
	var out []ScoredMatch
	var walk func(n *TrieNode, suffix []rune)
	walk = func(n *TrieNode, suffix []rune) {
		if n.terminal && n.docRefs != nil && !n.docRefs.IsEmpty() {
			tok := prefix + string(suffix)
			out = append(out, ScoredMatch{
				Token:   tok,
				DocRefs: n.docRefs.Clone(),
				Score:   scoreNode(n, len(tok), totalDocs, now),
			})
		}
		for r, child := range n.children {
			walk(child, append(append([]rune{}, suffix...), r))
		}
	}
	walk(node, nil)
	sortMatchesByScore(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Fuzzy returns every terminal node within maxDistance edits of token, via a
// bounded Levenshtein trie walk (§4.1.1): a running DP row is carried down
// each branch and the branch is abandoned once every entry in the row
// exceeds maxDistance, since no extension can recover.
func (t *TokenTrie) Fuzzy(token string, maxDistance int, totalDocs int, now int64, limit int) []ScoredMatch {
	t.mu.RLock()
	defer t.mu.RUnlock()

	target := []rune(token)
	row := make([]int, len(target)+1)
	for i := range row {
		row[i] = i
	}

	var out []ScoredMatch
	var walk func(n *TrieNode, prevRow []int, built []rune)
	walk = func(n *TrieNode, prevRow []int, built []rune) {
		for r, child := range n.children {
			curRow := make([]int, len(target)+1)
			curRow[0] = prevRow[0] + 1
			for i := 1; i <= len(target); i++ {
				insertCost := prevRow[i] + 1
				deleteCost := curRow[i-1] + 1
				substituteCost := prevRow[i-1]
				if target[i-1] != r {
					substituteCost++
				}
				curRow[i] = minOf3(insertCost, deleteCost, substituteCost)
			}

			if minOfSlice(curRow) > maxDistance {
				continue // no extension of this branch can come back under budget
			}

			nextBuilt := append(append([]rune{}, built...), r)
			if child.terminal && child.docRefs != nil && !child.docRefs.IsEmpty() {
				distance := curRow[len(target)]
				if distance > maxDistance {
					// row minimum is in budget but the full-length distance isn't;
					// curRow[len(target)] already is the edit distance between
					// target and nextBuilt, so the library recomputes the same value
					// and the terminal stays out of budget.
					distance = levenshtein.ComputeDistance(token, string(nextBuilt))
				}
				if distance <= maxDistance {
					tok := string(nextBuilt)
					out = append(out, ScoredMatch{
						Token:    tok,
						DocRefs:  child.docRefs.Clone(),
						Score:    scoreNode(child, len(tok), totalDocs, now) * math.Exp(-float64(distance)),
						Distance: distance,
					})
				}
			}
			walk(child, curRow, nextBuilt)
		}
	}
	walk(t.root, row, nil)
	sortMatchesByScore(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// walk descends the trie along token's runes, returning the node at its end
// or nil if the path does not exist. Caller holds the read lock.
func (t *TokenTrie) walk(token string) *TrieNode {
	node := t.root
	for _, r := range token {
		child, ok := node.children[r]
		if !ok {
			return nil
		}
		node = child
	}
	return node
}

// ═══════════════════════════════════════════════════════════════════════════════
// SCORING (§4.1.2)
// ═══════════════════════════════════════════════════════════════════════════════
//   baseScore     = (weight · frequency · recency) / (depth+1)
//   tfidf         = (frequency/D) · ln(D / |docRefs|)
//   positionBoost = 1 / (depth+1)
//   lengthNorm    = 1 / sqrt(|t|)
//   score(n,t)    = baseScore · tfidf · positionBoost · lengthNorm
// recency is a 24h-half-life exponential decay of lastAccessed against now.
// ═══════════════════════════════════════════════════════════════════════════════

func computeRecency(lastAccessed, now int64) float64 {
	ageHours := float64(now-lastAccessed) / 3600000.0
	if ageHours < 0 {
		ageHours = 0
	}
	return math.Exp(-math.Ln2 * ageHours / recencyHalfLifeHours)
}

func scoreNode(n *TrieNode, tokenLen int, totalDocs int, now int64) float64 {
	if totalDocs <= 0 || n.docRefs == nil || n.docRefs.IsEmpty() || tokenLen == 0 {
		return 0
	}
	D := float64(totalDocs)
	docCount := float64(n.docRefs.GetCardinality())
	recency := computeRecency(n.lastAccessed, now)
	baseScore := (n.weight * float64(n.frequency) * recency) / float64(n.depth+1)
	tfidf := (float64(n.frequency) / D) * math.Log(D/docCount)
	positionBoost := 1.0 / float64(n.depth+1)
	lengthNorm := 1.0 / math.Sqrt(float64(tokenLen))
	return baseScore * tfidf * positionBoost * lengthNorm
}

func sortMatchesByScore(matches []ScoredMatch) {
	// simple insertion sort: result sets here are small (bounded by fan-out
	// under one trie prefix/fuzzy budget), and stability keeps ties in
	// discovery order, matching the teacher's sortMatchesByScore in search.go.
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].Score > matches[j-1].Score; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
}

func minOf3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func minOfSlice(xs []int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}
