package nexus

import (
	"regexp"
	"strings"
	"time"

	"github.com/bits-and-blooms/bitset"
)

// ═══════════════════════════════════════════════════════════════════════════════
// REGEX WALKER (§4.6)
// ═══════════════════════════════════════════════════════════════════════════════
// RegexWalker traverses a TokenTrie under a compiled regular expression,
// choosing a breadth-first or depth-first walk depending on whether the
// pattern is classified "simple" or "complex": a pattern containing any of
// `{+*?|(?[` or longer than 20 characters is complex and gets the DFS
// walk; everything else gets the level-order BFS walk, which reaches
// shorter tokens first. Neither walk prunes branches by the pattern: both
// visit nodes up to MaxDepth and stop early only when MaxResults matches
// are collected or the time budget runs out.
//
// Grounded directly on spec.md §4.6 and §9's Design Notes suggestion of an
// "arena with integer handles": every TrieNode already carries a monotonic
// handle (see trie.go), and the walker marks visited handles in a
// bits-and-blooms/bitset rather than a map, avoiding a hash allocation per
// node on every walk.
// ═══════════════════════════════════════════════════════════════════════════════

// RegexBudget bounds a single walk.
type RegexBudget struct {
	MaxDepth   int
	TimeoutMs  int
	MaxResults int
}

func (b RegexBudget) normalized() RegexBudget {
	if b.MaxDepth <= 0 {
		b.MaxDepth = 50
	}
	if b.TimeoutMs <= 0 {
		b.TimeoutMs = 5000
	}
	if b.MaxResults <= 0 {
		b.MaxResults = 100
	}
	return b
}

// RegexWalkResult is the outcome of one walk.
type RegexWalkResult struct {
	Matches   []ScoredMatch
	Truncated bool
	Reason    string // "depth", "time", or "results", empty if not truncated
}

// isComplexPattern classifies a regex pattern per §4.6: presence of any
// quantifier/group/class metacharacter, or raw length over 20, selects the
// DFS walk instead of the level-order BFS.
func isComplexPattern(pattern string) bool {
	if len(pattern) > 20 {
		return true
	}
	return strings.ContainsAny(pattern, "{+*?|(?[")
}

type walkFrame struct {
	node  *TrieNode
	built string
}

// WalkRegex compiles pattern and traverses trie for every token it matches,
// honoring budget's depth/time/result limits. Raw per-token scores come from
// the same §4.1.2 formula exact/prefix/fuzzy matches use; callers normalize
// the returned scores into [0,1] across the full result set (see
// NormalizeScores) before applying any threshold.
func WalkRegex(trie *TokenTrie, pattern string, budget RegexBudget, totalDocs int, now int64) (RegexWalkResult, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return RegexWalkResult{}, newValidationError("pattern", err.Error())
	}
	budget = budget.normalized()
	deadline := time.Now().Add(time.Duration(budget.TimeoutMs) * time.Millisecond)

	trie.mu.RLock()
	defer trie.mu.RUnlock()

	visited := bitset.New(uint(trie.nodeCount))
	var result RegexWalkResult

	emit := func(n *TrieNode, tok string) bool {
		if n.terminal && n.docRefs != nil && !n.docRefs.IsEmpty() && re.MatchString(tok) {
			result.Matches = append(result.Matches, ScoredMatch{
				Token:   tok,
				DocRefs: n.docRefs.Clone(),
				Score:   scoreNode(n, len(tok), totalDocs, now),
			})
		}
		return len(result.Matches) >= budget.MaxResults
	}

	checkTime := func() bool { return time.Now().After(deadline) }

	if isComplexPattern(pattern) {
		// DFS: a complex pattern's match cannot be predicted from a prefix
		// alone, so no branch is skipped; only the budgets end the walk.
		stack := []walkFrame{{node: trie.root, built: ""}}
		for len(stack) > 0 {
			if checkTime() {
				result.Truncated = true
				result.Reason = "time"
				break
			}
			frame := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if visited.Test(uint(frame.node.handle)) {
				continue
			}
			visited.Set(uint(frame.node.handle))

			if frame.node.depth > budget.MaxDepth {
				result.Truncated = true
				result.Reason = "depth"
				continue
			}
			if frame.built != "" && emit(frame.node, frame.built) {
				result.Truncated = true
				result.Reason = "results"
				break
			}
			for r, child := range frame.node.children {
				stack = append(stack, walkFrame{node: child, built: frame.built + string(r)})
			}
		}
	} else {
		// Level-order BFS: shorter tokens are reached first, so when
		// MaxResults ends the walk (possibly mid-level) the matches kept
		// are the shortest ones.
		queue := []walkFrame{{node: trie.root, built: ""}}
		for len(queue) > 0 {
			if checkTime() {
				result.Truncated = true
				result.Reason = "time"
				break
			}
			frame := queue[0]
			queue = queue[1:]

			if visited.Test(uint(frame.node.handle)) {
				continue
			}
			visited.Set(uint(frame.node.handle))

			if frame.node.depth > budget.MaxDepth {
				result.Truncated = true
				result.Reason = "depth"
				continue
			}
			if frame.built != "" && emit(frame.node, frame.built) {
				result.Truncated = true
				result.Reason = "results"
				break
			}
			for r, child := range frame.node.children {
				queue = append(queue, walkFrame{node: child, built: frame.built + string(r)})
			}
		}
	}

	sortMatchesByScore(result.Matches)
	return result, nil
}

// NormalizeScores rescales matches' scores into [0,1] by dividing by the
// maximum raw score present, resolving §9's "regex path scoring scale" open
// question the same way for every caller.
func NormalizeScores(matches []ScoredMatch) {
	if len(matches) == 0 {
		return
	}
	max := matches[0].Score
	for _, m := range matches[1:] {
		if m.Score > max {
			max = m.Score
		}
	}
	if max <= 0 {
		return
	}
	for i := range matches {
		matches[i].Score /= max
	}
}
