package nexus

import (
	"context"
	"sync"
	"time"

	ants "github.com/panjf2000/ants/v2"
)

func epochMillisToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// ═══════════════════════════════════════════════════════════════════════════════
// INDEX MANAGER (§4.4)
// ═══════════════════════════════════════════════════════════════════════════════
// IndexManager is the document store: it allocates/interns document IDs,
// owns the canonical Document bodies and their version history, and
// orchestrates IndexMapper so every mutation keeps the trie/invertedmap/
// position indexes in lock-step with what is actually stored.
//
// Grounded on Zeeeepa-blaze/index.go's InvertedIndex lifecycle
// (NewInvertedIndex, mutex-guarded Index) generalized from "index one
// string" to the full document lifecycle (store, version, update, remove,
// snapshot) spec.md §3/§4.4 describe. Batch indexing tokenizes documents in
// parallel via panjf2000/ants/v2 before mutating the shared trie/invertedmap
// structures serially, matching §5's "internal mutations run to completion
// without yielding" concurrency model: only the read-only tokenization step
// is parallelized, never the structural mutation.
// ═══════════════════════════════════════════════════════════════════════════════

// tokenizeWorkerPoolSize bounds the concurrent batch-tokenization workers;
// tokenization is CPU-bound text scanning, so a modest fixed pool avoids
// over-subscribing small containers while still parallelizing large batches.
const tokenizeWorkerPoolSize = 16

// ManagerConfig configures document ID namespacing and version retention.
type ManagerConfig struct {
	IndexName   string
	MaxVersions int // 0 disables version retention
}

// IndexManager owns the document store and its field indexes.
type IndexManager struct {
	cfg    ManagerConfig
	mapper *IndexMapper
	ids    *idTable
	pool   *ants.Pool

	mu          sync.RWMutex
	docs        map[uint32]*Document
	fieldTokens map[uint32]map[string][]string
	live        map[uint32]struct{} // ordinals currently present (not removed)
}

// NewIndexManager constructs a manager backed by a fresh IndexMapper.
func NewIndexManager(cfg ManagerConfig, mapperCfg IndexMapperConfig) (*IndexManager, error) {
	pool, err := ants.NewPool(tokenizeWorkerPoolSize, ants.WithNonblocking(false))
	if err != nil {
		return nil, newIndexError("failed to start tokenization pool: " + err.Error())
	}
	return &IndexManager{
		cfg:         cfg,
		mapper:      NewIndexMapper(mapperCfg),
		ids:         newIDTable(),
		pool:        pool,
		docs:        make(map[uint32]*Document),
		fieldTokens: make(map[uint32]map[string][]string),
		live:        make(map[uint32]struct{}),
	}, nil
}

// Close releases the tokenization worker pool.
func (m *IndexManager) Close() {
	m.pool.Release()
}

// TotalDocs returns the number of live (non-removed) documents, the D term
// in the §4.1.2 scoring formula.
func (m *IndexManager) TotalDocs() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.live)
}

// Get returns the stored document for id, if present and not removed.
func (m *IndexManager) Get(id string) (*Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ord, ok := m.ids.ordinal(id)
	if !ok {
		return nil, false
	}
	if _, alive := m.live[ord]; !alive {
		return nil, false
	}
	return m.docs[ord], true
}

// tokenizeFields computes the token sequence for every configured field of
// doc; pure and safe to run off the manager's lock.
func (m *IndexManager) tokenizeFields(doc *Document) map[string][]string {
	out := make(map[string][]string, len(m.mapper.cfg.Fields))
	for _, f := range m.mapper.cfg.Fields {
		val, ok := FieldAtPath(doc, f.Path)
		if !ok {
			out[f.Path] = nil
			continue
		}
		out[f.Path] = m.mapper.Tokenize(f.Path, val.Stringify())
	}
	return out
}

// AddDocument assigns doc an ID if it has none, indexes every configured
// field, and stores the document body.
func (m *IndexManager) AddDocument(ctx context.Context, doc *Document, now int64) (string, error) {
	if doc == nil {
		return "", newValidationError("document", "must not be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if doc.ID == "" {
		doc.ID = GenerateDocID(m.cfg.IndexName, len(m.ids.byOrdinal), now)
	}
	if _, exists := m.ids.ordinal(doc.ID); exists {
		return "", newValidationError("id", "document already exists: "+doc.ID)
	}

	ord := m.ids.intern(doc.ID)
	tokens := m.tokenizeFields(doc)
	for field, toks := range tokens {
		m.mapper.IndexTokens(field, toks, ord, now)
	}
	if doc.Metadata == nil {
		doc.Metadata = &DocMetadata{Indexed: now, LastModified: now}
	}
	m.docs[ord] = doc
	m.fieldTokens[ord] = tokens
	m.live[ord] = struct{}{}
	return doc.ID, nil
}

// AddDocuments indexes a batch, tokenizing every document's fields
// concurrently across the worker pool before mutating the shared index
// structures one document at a time.
func (m *IndexManager) AddDocuments(ctx context.Context, docs []*Document, now int64) ([]string, error) {
	tokenSets := make([]map[string][]string, len(docs))
	var wg sync.WaitGroup
	errs := make([]error, len(docs))
	for i, doc := range docs {
		i, doc := i, doc
		wg.Add(1)
		submitErr := m.pool.Submit(func() {
			defer wg.Done()
			if doc == nil {
				errs[i] = newValidationError("document", "must not be nil")
				return
			}
			tokenSets[i] = m.tokenizeFields(doc)
		})
		if submitErr != nil {
			wg.Done()
			errs[i] = newStorageError("submit tokenization task", submitErr)
		}
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(docs))
	for i, doc := range docs {
		if doc.ID == "" {
			doc.ID = GenerateDocID(m.cfg.IndexName, len(m.ids.byOrdinal), now)
		}
		ord := m.ids.intern(doc.ID)
		for field, toks := range tokenSets[i] {
			m.mapper.IndexTokens(field, toks, ord, now)
		}
		if doc.Metadata == nil {
			doc.Metadata = &DocMetadata{Indexed: now, LastModified: now}
		}
		m.docs[ord] = doc
		m.fieldTokens[ord] = tokenSets[i]
		m.live[ord] = struct{}{}
		ids[i] = doc.ID
	}
	return ids, nil
}

// UpdateDocument replaces an existing document's content, retiring the
// previous content into its version history (FIFO-capped at
// cfg.MaxVersions) before re-indexing the new content.
func (m *IndexManager) UpdateDocument(ctx context.Context, id string, fields map[string]any, author string, now int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ord, ok := m.ids.ordinal(id)
	if !ok {
		return newNotFoundError("document", id)
	}
	if _, alive := m.live[ord]; !alive {
		return newNotFoundError("document", id)
	}
	doc := m.docs[ord]

	if oldTokens, ok := m.fieldTokens[ord]; ok {
		for field, toks := range oldTokens {
			m.mapper.RemoveTokens(field, toks, ord)
		}
	}

	if m.cfg.MaxVersions > 0 {
		doc.Versions = append(doc.Versions, DocVersion{
			Version:  len(doc.Versions) + 1,
			Content:  doc.Fields["content"],
			Modified: epochMillisToTime(now),
			Author:   author,
		})
		if len(doc.Versions) > m.cfg.MaxVersions {
			doc.Versions = doc.Versions[len(doc.Versions)-m.cfg.MaxVersions:]
		}
	}

	doc.Fields = fields
	if doc.Metadata == nil {
		doc.Metadata = &DocMetadata{}
	}
	doc.Metadata.LastModified = now

	newTokens := m.tokenizeFields(doc)
	for field, toks := range newTokens {
		m.mapper.IndexTokens(field, toks, ord, now)
	}
	m.fieldTokens[ord] = newTokens
	return nil
}

// RemoveDocument deindexes every field of id and drops it from the live
// set; the document's ordinal is never reused.
func (m *IndexManager) RemoveDocument(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ord, ok := m.ids.ordinal(id)
	if !ok {
		return newNotFoundError("document", id)
	}
	if _, alive := m.live[ord]; !alive {
		return newNotFoundError("document", id)
	}
	if tokens, ok := m.fieldTokens[ord]; ok {
		for field, toks := range tokens {
			m.mapper.RemoveTokens(field, toks, ord)
		}
	}
	delete(m.live, ord)
	delete(m.fieldTokens, ord)
	return nil
}

// Search resolves terms against the mapper and joins the results back to
// their document IDs and bodies.
func (m *IndexManager) Search(terms []QueryTerm, opts SearchOptions) []SearchHit {
	m.mu.RLock()
	defer m.mu.RUnlock()
	opts.TotalDocs = len(m.live)
	scored := m.mapper.Search(terms, opts)
	out := make([]SearchHit, 0, len(scored))
	for _, sd := range scored {
		if _, alive := m.live[sd.DocOrdinal]; !alive {
			continue
		}
		id, _ := m.ids.id(sd.DocOrdinal)
		out = append(out, SearchHit{
			DocID:    id,
			Score:    sd.Score,
			Document: m.docs[sd.DocOrdinal],
			Matches:  sd.Matches,
		})
	}
	return out
}

// SearchRegex walks every field's trie (or the fields in allowedFields, if
// non-empty) under pattern, merging per-field matches into one ranked hit
// set the same way Search does for ordinary terms (§4.6/§4.8: the regex
// path is an alternative to, not a variant of, the standard term path).
func (m *IndexManager) SearchRegex(pattern string, allowedFields []string, budget RegexBudget, trackMatches bool) ([]SearchHit, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	totalDocs := len(m.live)
	fields := m.mapper.Fields()
	if len(allowedFields) > 0 {
		fields = allowedFields
	}

	scores := make(map[uint32]float64)
	var matches map[uint32][]string
	if trackMatches {
		matches = make(map[uint32][]string)
	}
	truncated := false

	for _, fieldPath := range fields {
		fi := m.mapper.fields[fieldPath]
		if fi == nil {
			continue
		}
		result, err := WalkRegex(fi.trie, pattern, budget, totalDocs, nowMillis())
		if err != nil {
			return nil, false, err
		}
		if result.Truncated {
			truncated = true
		}
		NormalizeScores(result.Matches)
		for _, sm := range result.Matches {
			accumulateScores(scores, matches, sm, fi.positions)
		}
	}

	out := make([]SearchHit, 0, len(scores))
	for ord, score := range scores {
		if _, alive := m.live[ord]; !alive {
			continue
		}
		id, _ := m.ids.id(ord)
		out = append(out, SearchHit{
			DocID:    id,
			Score:    score,
			Document: m.docs[ord],
			Matches:  matches[ord],
		})
	}
	return out, truncated, nil
}

// SearchHit is a single ranked result joined back to its document.
type SearchHit struct {
	DocID    string
	Score    float64
	Document *Document
	Matches  []string // populated only when the request asked to track matches
}
