// ═══════════════════════════════════════════════════════════════════════════════
// PACKAGE OVERVIEW
// ═══════════════════════════════════════════════════════════════════════════════
// Package nexus is an embeddable full-text search engine core. It indexes
// semi-structured documents in memory and answers ranked queries with exact,
// prefix, fuzzy, and regex matching.
//
// FOUR COOPERATING SUBSYSTEMS:
// ----------------------------
//  1. TokenTrie   - a weighted character trie holding per-node document
//                    reference sets plus frequency/recency/depth signals.
//  2. InvertedMap - a token->document-id multimap layered over the trie for
//                    O(1) exact-term membership tests.
//  3. IndexManager/IndexMapper - the document store, field extractor, and
//                    orchestrator that answers multi-term queries.
//  4. QueryProcessor - tokenization, stop-word removal, stemming, quoted
//                    phrase preservation, and operator parsing.
//
// DATA FLOW FOR A SEARCH:
//
//	query -> QueryProcessor -> search terms -> IndexMapper consults TokenTrie
//	-> per-doc score accumulation -> IndexManager resolves doc bodies ->
//	SearchEngine normalizes scores, ResultCache stores -> SearchEngine
//	applies threshold/sort/pagination and returns.
//
// InvertedMap is kept in step with TokenTrie and written into snapshots;
// the search path does not read it, and exact matches get no extra boost.
//
// DATA FLOW FOR AN INSERT:
//
//	document -> IndexManager assigns id, persists body -> IndexMapper
//	tokenizes each configured field -> TokenTrie.insert + InvertedMap.map ->
//	cache invalidated -> snapshot stored via external store.
//
// ═══════════════════════════════════════════════════════════════════════════════
package nexus
