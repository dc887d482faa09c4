package nexus

import (
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════════
// QUERY PROCESSOR (§4.5)
// ═══════════════════════════════════════════════════════════════════════════════
// Pipeline, in order:
//  1. Extract quoted phrases: complete "..." pairs, and a trailing
//     unterminated `"..` is still treated as a phrase running to end of
//     input (so a dropped closing quote degrades gracefully).
//  2. Split what remains on whitespace.
//  3. Classify each token's leading operator (+ required, - excluded,
//     ! negated) and an optional `field:value` modifier.
//  4. Drop stopwords (configurable; phrases are exempt, since an exact
//     phrase is defined by the caller's literal words).
//  5. Stem remaining words with the fixed suffix-rule stemmer below
//     (configurable; phrases are stemmed word-by-word for trie lookups
//     but keep their original text for scenario-level echo of the query).
//
// Grounded on Zeeeepa-blaze/analyzer.go's filter-chain shape (tokenize ->
// lowercase -> stopword -> length -> stem), generalized from a single
// document-analysis pipeline into one that also threads operators, field
// modifiers, and phrase boundaries through to query evaluation
// (boolquery.go) - concerns the teacher's document analyzer never needed.
// ═══════════════════════════════════════════════════════════════════════════════

// Operator is a leading query-term modifier.
type Operator int

const (
	OpNone Operator = iota
	OpRequired       // +term
	OpExcluded       // -term
	OpNegated        // !term
)

// QueryTerm is one classified, stemmed unit of a processed query.
type QueryTerm struct {
	Text        string   // original surface text (without operator/field prefix)
	Stem        string   // stemmed form used for trie/invertedmap lookups
	Operator    Operator
	Field       string   // empty unless a field:value modifier was present
	Phrase      bool
	PhraseStems []string // stemmed sub-words, only set when Phrase is true
}

// QueryProcessorConfig toggles the optional stages of the pipeline.
type QueryProcessorConfig struct {
	EnableStopwords bool
	EnableStemming  bool
}

// DefaultQueryProcessorConfig enables both optional stages.
func DefaultQueryProcessorConfig() QueryProcessorConfig {
	return QueryProcessorConfig{EnableStopwords: true, EnableStemming: true}
}

// QueryProcessor turns raw query text into classified, stemmed QueryTerms.
type QueryProcessor struct {
	cfg QueryProcessorConfig
}

// NewQueryProcessor constructs a processor with the given configuration.
func NewQueryProcessor(cfg QueryProcessorConfig) *QueryProcessor {
	return &QueryProcessor{cfg: cfg}
}

// Process runs the full §4.5 pipeline over raw query text.
func (qp *QueryProcessor) Process(raw string) []QueryTerm {
	phrases, remainder := extractPhrases(raw)

	var terms []QueryTerm
	for _, ph := range phrases {
		terms = append(terms, qp.classifyPhrase(ph))
	}
	for _, word := range strings.Fields(remainder) {
		if t, ok := qp.classifyWord(word); ok {
			terms = append(terms, t)
		}
	}
	return terms
}

// extractPhrases pulls every quoted span out of raw, returning the phrase
// bodies (without quotes) in order of appearance and the remaining text with
// each phrase span blanked to a single space so word boundaries survive.
func extractPhrases(raw string) (phrases []string, remainder string) {
	var out strings.Builder
	runes := []rune(raw)
	i := 0
	for i < len(runes) {
		if runes[i] == '"' {
			j := i + 1
			for j < len(runes) && runes[j] != '"' {
				j++
			}
			// runes[i+1:j] is the phrase body whether or not a closing quote
			// was found; an unterminated phrase simply runs to end of input.
			phrases = append(phrases, string(runes[i+1:j]))
			out.WriteByte(' ')
			if j < len(runes) {
				j++ // skip the closing quote
			}
			i = j
			continue
		}
		out.WriteRune(runes[i])
		i++
	}
	return phrases, out.String()
}

func (qp *QueryProcessor) classifyPhrase(body string) QueryTerm {
	words := strings.Fields(body)
	stems := make([]string, 0, len(words))
	for _, w := range words {
		stems = append(stems, qp.normalizeWord(strings.ToLower(w)))
	}
	return QueryTerm{
		Text:        body,
		Phrase:      true,
		PhraseStems: stems,
	}
}

func (qp *QueryProcessor) classifyWord(word string) (QueryTerm, bool) {
	op := OpNone
	switch {
	case strings.HasPrefix(word, "+"):
		op = OpRequired
		word = word[1:]
	case strings.HasPrefix(word, "-"):
		op = OpExcluded
		word = word[1:]
	case strings.HasPrefix(word, "!"):
		op = OpNegated
		word = word[1:]
	}
	if word == "" {
		return QueryTerm{}, false
	}

	field := ""
	if idx := strings.IndexByte(word, ':'); idx > 0 && idx < len(word)-1 {
		field = word[:idx]
		word = word[idx+1:]
	}

	lower := strings.ToLower(word)
	if qp.cfg.EnableStopwords && op == OpNone && field == "" && isStopword(lower) {
		return QueryTerm{}, false
	}

	stem := qp.normalizeWord(lower)
	return QueryTerm{
		Text:     word,
		Stem:     stem,
		Operator: op,
		Field:    field,
	}, true
}

func (qp *QueryProcessor) normalizeWord(lower string) string {
	if !qp.cfg.EnableStemming {
		return lower
	}
	return stem(lower)
}

// ═══════════════════════════════════════════════════════════════════════════════
// STEMMER (§4.5 step 5 — fixed custom suffix rules, not Porter/Snowball)
// ═══════════════════════════════════════════════════════════════════════════════
// Words of length <= 3, and the fixed exception list, are returned unchanged.
// Otherwise, in order:
//   - "ying" suffix becomes "y"
//   - else "ing" suffix is stripped; if the stem ends in two consonants
//     (a doubled final consonant from the gerund, e.g. "hopping"), the
//     doubled consonant collapses to one ("hopping" -> "hop")
//   - "ies" suffix becomes "y"
//   - else a trailing "s" is stripped, unless the word ends "ss" (preserved)
//   - a trailing "ed" is stripped after the above
// ═══════════════════════════════════════════════════════════════════════════════
func stem(word string) string {
	if len(word) <= 3 {
		return word
	}
	if _, ok := stemExceptions[word]; ok {
		return word
	}

	out := word
	switch {
	case strings.HasSuffix(out, "ying"):
		out = strings.TrimSuffix(out, "ying") + "y"
	case strings.HasSuffix(out, "ing"):
		root := strings.TrimSuffix(out, "ing")
		if len(root) >= 2 && isConsonant(root[len(root)-1]) && isConsonant(root[len(root)-2]) && root[len(root)-1] == root[len(root)-2] {
			root = root[:len(root)-1]
		}
		out = root
	}

	switch {
	case strings.HasSuffix(out, "ies"):
		out = strings.TrimSuffix(out, "ies") + "y"
	case strings.HasSuffix(out, "ss"):
		// preserved
	case strings.HasSuffix(out, "s"):
		out = strings.TrimSuffix(out, "s")
	}

	out = strings.TrimSuffix(out, "ed")
	return out
}

func isConsonant(b byte) bool {
	switch b {
	case 'a', 'e', 'i', 'o', 'u':
		return false
	default:
		return b >= 'a' && b <= 'z'
	}
}
