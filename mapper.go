package nexus

import (
	"regexp"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring"
)

// ═══════════════════════════════════════════════════════════════════════════════
// INDEX MAPPER (§4.3)
// ═══════════════════════════════════════════════════════════════════════════════
// IndexMapper owns one TokenTrie + InvertedMap + PositionIndex per indexable
// field, tokenizes field text into normalized terms, and aggregates
// multi-term query scores across fields.
//
// Grounded on Zeeeepa-blaze/index.go's InvertedIndex.Index/indexToken (the
// "tokenize a document's text, then feed each token into the index
// structures" shape) and analyzer.go's filter chain, generalized from one
// whole-document string field to a configurable set of field paths, each
// with its own weight, per §4.3.
// ═══════════════════════════════════════════════════════════════════════════════

// wordPattern mirrors the `[\w]+`-equivalent boundary spec.md §4.3 calls
// for: Unicode letters, digits, and underscore.
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// FieldConfig describes one indexable field: its dot-path into document
// content, its scoring weight, and the maximum token length retained.
type FieldConfig struct {
	Path          string
	Weight        float64
	MaxWordLength int
}

// IndexMapperConfig lists the fields to index and the query-processing
// options applied to both indexing and querying.
type IndexMapperConfig struct {
	Fields    []FieldConfig
	QueryProc QueryProcessorConfig
}

// fieldIndex bundles one field's trie/map/positions trio.
type fieldIndex struct {
	cfg       FieldConfig
	trie      *TokenTrie
	invMap    *InvertedMap
	positions *PositionIndex
}

// IndexMapper is the per-index collection of field indexes.
type IndexMapper struct {
	cfg    IndexMapperConfig
	fields map[string]*fieldIndex
	qp     *QueryProcessor
}

// NewIndexMapper constructs a mapper with one empty field index per
// configured field.
func NewIndexMapper(cfg IndexMapperConfig) *IndexMapper {
	m := &IndexMapper{
		cfg:    cfg,
		fields: make(map[string]*fieldIndex, len(cfg.Fields)),
		qp:     NewQueryProcessor(cfg.QueryProc),
	}
	for _, f := range cfg.Fields {
		if f.Weight == 0 {
			f.Weight = 1.0
		}
		if f.MaxWordLength == 0 {
			f.MaxWordLength = 64
		}
		m.fields[f.Path] = &fieldIndex{
			cfg:       f,
			trie:      NewTokenTrie(),
			invMap:    NewInvertedMap(),
			positions: NewPositionIndex(),
		}
	}
	return m
}

// Tokenize reduces text to the normalized token sequence indexed for field,
// applying word-boundary splitting, lowercasing, length filtering,
// configurable stopword removal, and the §4.5 stemmer - the same
// normalization a query term undergoes, so indexed tokens and query stems
// agree.
func (m *IndexMapper) Tokenize(field, text string) []string {
	fi, ok := m.fields[field]
	maxLen := 64
	if ok {
		maxLen = fi.cfg.MaxWordLength
	}
	raw := wordPattern.FindAllString(text, -1)
	out := make([]string, 0, len(raw))
	for _, w := range raw {
		lower := strings.ToLower(w)
		if len(lower) > maxLen {
			continue
		}
		if m.cfg.QueryProc.EnableStopwords && isStopword(lower) {
			continue
		}
		if m.cfg.QueryProc.EnableStemming {
			lower = stem(lower)
		}
		if lower == "" {
			continue
		}
		out = append(out, lower)
	}
	return out
}

// IndexTokens records tokens (already produced by Tokenize) as occurring, in
// order, within docOrdinal's field at wall-clock now.
func (m *IndexMapper) IndexTokens(field string, tokens []string, docOrdinal uint32, now int64) {
	fi, ok := m.fields[field]
	if !ok {
		return
	}
	for pos, tok := range tokens {
		fi.trie.Insert(tok, docOrdinal, fi.cfg.Weight, now)
		fi.invMap.Add(tok, docOrdinal)
		fi.positions.Add(tok, docOrdinal, pos)
	}
}

// RemoveTokens reverses IndexTokens for docOrdinal.
func (m *IndexMapper) RemoveTokens(field string, tokens []string, docOrdinal uint32) {
	fi, ok := m.fields[field]
	if !ok {
		return
	}
	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		if _, done := seen[tok]; done {
			continue
		}
		seen[tok] = struct{}{}
		fi.trie.RemoveDoc(tok, docOrdinal)
		fi.invMap.Remove(tok, docOrdinal)
		fi.positions.RemoveDoc(tok, docOrdinal)
	}
}

// Fields returns the configured field paths, in configuration order.
func (m *IndexMapper) Fields() []string {
	out := make([]string, len(m.cfg.Fields))
	for i, f := range m.cfg.Fields {
		out[i] = f.Path
	}
	return out
}

// ═══════════════════════════════════════════════════════════════════════════════
// QUERY-TIME SCORING AGGREGATION (§4.3 steps)
// ═══════════════════════════════════════════════════════════════════════════════

// SearchOptions controls a single IndexMapper.Search call.
type SearchOptions struct {
	Fuzzy         bool
	FuzzyDistance int
	MaxResults    int
	TotalDocs     int
	Now           int64

	// AllowedFields restricts the search to this subset of configured
	// fields; empty means every configured field is eligible. A term's own
	// field restriction (QueryTerm.Field) is intersected with this set.
	AllowedFields []string

	// FieldBoosts multiplies a field's contribution to the aggregate score
	// by the given factor; a field absent from the map gets 1.0.
	FieldBoosts map[string]float64

	// TrackMatches, when set, has Search populate each ScoredDoc's Matches
	// with the distinct stems/phrases that matched.
	TrackMatches bool
}

// ScoredDoc is one document's aggregate score across every matched term and
// field.
type ScoredDoc struct {
	DocOrdinal uint32
	Score      float64
	Matches    []string
}

// Search resolves terms against every applicable field, combines them per
// the +/-/! operator algebra, restricts phrase terms to exact adjacency, and
// returns documents ranked by summed per-term, per-field score.
func (m *IndexMapper) Search(terms []QueryTerm, opts SearchOptions) []ScoredDoc {
	if opts.MaxResults == 0 {
		opts.MaxResults = 50
	}

	var boolMatches []TermMatch
	scores := make(map[uint32]float64)
	var matches map[uint32][]string
	if opts.TrackMatches {
		matches = make(map[uint32][]string)
	}

	for _, term := range terms {
		targetFields := m.targetFields(term.Field, opts.AllowedFields)
		var union *roaring.Bitmap
		for _, fieldPath := range targetFields {
			fi := m.fields[fieldPath]
			if fi == nil {
				continue
			}
			boost := opts.FieldBoosts[fieldPath]
			if boost <= 0 {
				boost = 1.0
			}
			var fieldMatches []ScoredMatch
			if term.Phrase {
				fieldMatches = m.resolvePhrase(fi, term, opts)
			} else {
				fieldMatches = m.resolveTerm(fi, term.Stem, opts)
			}
			for _, sm := range fieldMatches {
				sm.Score *= boost
				accumulateScores(scores, matches, sm, fi.positions)
				if union == nil {
					union = sm.DocRefs.Clone()
				} else {
					union.Or(sm.DocRefs)
				}
			}
		}
		if union == nil {
			union = roaring.New()
		}
		boolMatches = append(boolMatches, TermMatch{Term: term, Docs: union})
	}

	candidates := CombineBoolean(boolMatches)
	out := make([]ScoredDoc, 0, candidates.GetCardinality())
	it := candidates.Iterator()
	for it.HasNext() {
		doc := it.Next()
		out = append(out, ScoredDoc{DocOrdinal: doc, Score: scores[doc], Matches: matches[doc]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > opts.MaxResults {
		out = out[:opts.MaxResults]
	}
	return out
}

// targetFields resolves which fields a term searches: restrict (from the
// term's own "field:" prefix, if any) intersected with allowed (the
// request-level field restriction, if any).
func (m *IndexMapper) targetFields(restrict string, allowed []string) []string {
	if restrict != "" {
		if _, ok := m.fields[restrict]; !ok {
			return nil
		}
		if len(allowed) == 0 || containsField(allowed, restrict) {
			return []string{restrict}
		}
		return nil
	}
	if len(allowed) == 0 {
		return m.Fields()
	}
	out := make([]string, 0, len(allowed))
	for _, f := range allowed {
		if _, ok := m.fields[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

func containsField(fields []string, field string) bool {
	for _, f := range fields {
		if f == field {
			return true
		}
	}
	return false
}

func (m *IndexMapper) resolveTerm(fi *fieldIndex, stemmed string, opts SearchOptions) []ScoredMatch {
	if sm, ok := fi.trie.Exact(stemmed, opts.TotalDocs, opts.Now); ok {
		return []ScoredMatch{sm}
	}
	if opts.Fuzzy {
		dist := opts.FuzzyDistance
		if dist <= 0 {
			dist = 2
		}
		return fi.trie.Fuzzy(stemmed, dist, opts.TotalDocs, opts.Now, opts.MaxResults)
	}
	return nil
}

func (m *IndexMapper) resolvePhrase(fi *fieldIndex, term QueryTerm, opts SearchOptions) []ScoredMatch {
	if len(term.PhraseStems) == 0 {
		return nil
	}
	var union *roaring.Bitmap
	var best ScoredMatch
	for i, stemmed := range term.PhraseStems {
		sm, ok := fi.trie.Exact(stemmed, opts.TotalDocs, opts.Now)
		if !ok {
			return nil // every word of the phrase must exist
		}
		if union == nil {
			union = sm.DocRefs.Clone()
		} else {
			union.And(sm.DocRefs)
		}
		if i == 0 || sm.Score > best.Score {
			best = sm
		}
	}
	matched := fi.positions.MatchPhrase(term.PhraseStems, union)
	if matched.IsEmpty() {
		return nil
	}
	return []ScoredMatch{{Token: term.Text, DocRefs: matched, Score: best.Score}}
}

// accumulateScores adds each matched document's contribution per §4.3 step
// 3: score(n,t)·(1+termFrequencyInDoc), so a token occurring repeatedly in a
// document outranks a single incidental occurrence. When matches is
// non-nil, it also records which token matched each document (deduplicated).
func accumulateScores(scores map[uint32]float64, matches map[uint32][]string, sm ScoredMatch, positions *PositionIndex) {
	it := sm.DocRefs.Iterator()
	for it.HasNext() {
		doc := it.Next()
		tf := positions.TermFrequency(sm.Token, doc)
		scores[doc] += sm.Score * float64(1+tf)
		if matches != nil && !containsField(matches[doc], sm.Token) {
			matches[doc] = append(matches[doc], sm.Token)
		}
	}
}
