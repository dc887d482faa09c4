package nexus

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SEARCH ENGINE FAÇADE (§4.8)
// ═══════════════════════════════════════════════════════════════════════════════
// SearchEngine is the single entry point every caller goes through. It is an
// explicit state machine:
//
//	Uninitialized -> Initializing -> Ready <-> Mutating -> Closed
//
// Closed is terminal; every operation after Close returns NotReadyError.
// Mutating operations (add/update/remove) briefly leave Ready, persist a
// fresh snapshot through the configured ExternalStore, invalidate the
// result cache, and return to Ready - per §5, mutation runs to completion
// without yielding, so a concurrent search either observes the mutation
// fully applied or not at all.
//
// Grounded on Zeeeepa-blaze/index.go's InvertedIndex as "the one object
// every operation goes through," generalized into the explicit state
// machine spec.md §4.8 requires (the teacher has no lifecycle states at
// all - everything is legal the moment the zero-value index exists).
// ═══════════════════════════════════════════════════════════════════════════════

// EngineState is one of the SearchEngine lifecycle states.
type EngineState int

const (
	StateUninitialized EngineState = iota
	StateInitializing
	StateReady
	StateMutating
	StateClosed
)

func (s EngineState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateMutating:
		return "mutating"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// EngineConfig configures a SearchEngine's fields, query processing, cache,
// persistence, and logging.
type EngineConfig struct {
	IndexName   string
	Fields      []FieldConfig
	QueryProc   QueryProcessorConfig
	Cache       CacheConfig
	MaxVersions int
	Store       ExternalStore // nil defaults to NewMemoryStore()
	Logger      *log.Logger   // nil defaults to log.Default()
}

// SearchEngine is the façade over IndexManager, ResultCache, ExternalStore,
// and EventBus.
type SearchEngine struct {
	mu              sync.RWMutex
	state           EngineState
	cfg             EngineConfig
	manager         *IndexManager
	cache           *ResultCache
	store           ExternalStore
	events          *EventBus
	logger          *log.Logger
	snapshotVersion int
}

// NewSearchEngine constructs an engine in StateUninitialized; call
// Initialize before any other method.
func NewSearchEngine(cfg EngineConfig) *SearchEngine {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &SearchEngine{
		state:  StateUninitialized,
		cfg:    cfg,
		events: NewEventBus(),
		logger: logger,
	}
}

// Events returns a subscription channel and unsubscribe function for engine
// lifecycle/operation events.
func (e *SearchEngine) Events(buffer int) (<-chan Event, func()) {
	return e.events.Subscribe(buffer)
}

// Initialize brings the engine from Uninitialized to Ready: it opens the
// configured (or default in-memory) store, attempts to load an existing
// snapshot for cfg.IndexName, and falls back to a fresh index if none
// exists. A store that fails to initialize is closed, reported as a storage
// error event, and replaced by an in-memory store.
func (e *SearchEngine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateClosed {
		return newNotReadyError(e.state)
	}
	if e.state != StateUninitialized {
		return newValidationError("state", "Initialize called outside Uninitialized")
	}
	e.state = StateInitializing

	store := e.cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	if err := store.Initialize(ctx); err != nil {
		e.events.Emit(Event{Type: EventStorageError, Payload: err, AtMs: nowMillis()})
		e.logger.Warn("store initialize failed; using in-memory store", "error", err)
		_ = store.Close()
		store = NewMemoryStore()
		if err := store.Initialize(ctx); err != nil {
			e.state = StateUninitialized
			return newStorageError("initialize store", err)
		}
	}
	e.store = store
	e.cache = NewResultCache(e.cfg.Cache)

	mapperCfg := IndexMapperConfig{Fields: e.cfg.Fields, QueryProc: e.cfg.QueryProc}
	managerCfg := ManagerConfig{IndexName: e.cfg.IndexName, MaxVersions: e.cfg.MaxVersions}

	if raw, err := store.GetIndex(ctx, e.cfg.IndexName); err == nil {
		snap, decodeErr := unmarshalSnapshot(raw)
		if decodeErr == nil {
			manager, importErr := ImportSnapshot(snap, managerCfg, mapperCfg, nowMillis())
			if importErr == nil {
				e.manager = manager
				e.snapshotVersion = snap.Config.Version
			}
		}
	}
	if e.manager == nil {
		manager, err := NewIndexManager(managerCfg, mapperCfg)
		if err != nil {
			e.state = StateUninitialized
			return err
		}
		e.manager = manager
	}

	e.state = StateReady
	e.events.Emit(Event{Type: EventEngineInitialized, AtMs: nowMillis()})
	e.logger.Info("engine initialized", "index", e.cfg.IndexName)
	return nil
}

// Close transitions the engine to Closed, releasing the store and the
// tokenization worker pool. Every operation after Close returns
// NotReadyError.
func (e *SearchEngine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateClosed {
		return newNotReadyError(e.state)
	}
	if e.manager != nil {
		e.manager.Close()
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			return newStorageError("close store", err)
		}
	}
	e.state = StateClosed
	e.events.Emit(Event{Type: EventEngineClosed, AtMs: nowMillis()})
	e.logger.Info("engine closed", "index", e.cfg.IndexName)
	return nil
}

func (e *SearchEngine) beginMutation() error {
	if e.state != StateReady {
		return newNotReadyError(e.state)
	}
	e.state = StateMutating
	return nil
}

func (e *SearchEngine) endMutation(ctx context.Context) error {
	defer func() { e.state = StateReady }()
	e.cache = NewResultCache(e.cfg.Cache) // invalidate: simplest correct policy
	e.snapshotVersion++
	snap := ExportSnapshot(e.manager, e.cfg.IndexName, e.snapshotVersion)
	payload, err := marshalSnapshot(snap)
	if err != nil {
		return err
	}
	if err := e.store.StoreIndex(ctx, e.cfg.IndexName, payload); err != nil {
		e.events.Emit(Event{Type: EventStorageError, Payload: err, AtMs: nowMillis()})
		return err
	}
	meta := IndexMetadata{
		Name:      e.cfg.IndexName,
		Version:   e.snapshotVersion,
		Fields:    e.manager.mapper.Fields(),
		UpdatedAt: nowMillis(),
	}
	if err := e.store.UpdateMetadata(ctx, e.cfg.IndexName, meta); err != nil {
		e.events.Emit(Event{Type: EventStorageError, Payload: err, AtMs: nowMillis()})
		return err
	}
	return nil
}

// AddDocuments indexes docs and persists the resulting snapshot.
func (e *SearchEngine) AddDocuments(ctx context.Context, docs []*Document) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.beginMutation(); err != nil {
		return nil, err
	}
	e.events.Emit(Event{Type: EventIndexStart, Payload: len(docs), AtMs: nowMillis()})

	ids, err := e.manager.AddDocuments(ctx, docs, nowMillis())
	if err != nil {
		e.state = StateReady
		e.events.Emit(Event{Type: EventIndexError, Payload: err, AtMs: nowMillis()})
		return nil, err
	}
	if err := e.endMutation(ctx); err != nil {
		return nil, err
	}
	if len(docs) > 1 {
		e.events.Emit(Event{Type: EventBulkUpdateComplete, Payload: len(docs), AtMs: nowMillis()})
	}
	e.events.Emit(Event{Type: EventIndexComplete, Payload: ids, AtMs: nowMillis()})
	return ids, nil
}

// UpdateDocument replaces id's content and persists the resulting snapshot.
func (e *SearchEngine) UpdateDocument(ctx context.Context, id string, fields map[string]any, author string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.beginMutation(); err != nil {
		return err
	}
	if err := e.manager.UpdateDocument(ctx, id, fields, author, nowMillis()); err != nil {
		e.state = StateReady
		e.events.Emit(Event{Type: EventIndexError, Payload: err, AtMs: nowMillis()})
		return err
	}
	if err := e.endMutation(ctx); err != nil {
		return err
	}
	e.events.Emit(Event{Type: EventIndexComplete, Payload: id, AtMs: nowMillis()})
	return nil
}

// RemoveDocument deindexes id and persists the resulting snapshot.
func (e *SearchEngine) RemoveDocument(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.beginMutation(); err != nil {
		return err
	}
	if err := e.manager.RemoveDocument(ctx, id); err != nil {
		e.state = StateReady
		e.events.Emit(Event{Type: EventRemoveError, Payload: err, AtMs: nowMillis()})
		return err
	}
	if err := e.endMutation(ctx); err != nil {
		return err
	}
	e.events.Emit(Event{Type: EventRemoveComplete, Payload: id, AtMs: nowMillis()})
	return nil
}

// Optimize compacts every field's trie document bitmaps (the InvertedMap's
// bitmaps are left as they are) and re-persists the
// snapshot. Safe to call at any time while Ready; it performs no logical
// change, only storage-level compaction.
func (e *SearchEngine) Optimize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.beginMutation(); err != nil {
		return err
	}
	for _, fi := range e.manager.mapper.fields {
		optimizeTrie(fi.trie.root)
	}
	if err := e.endMutation(ctx); err != nil {
		return err
	}
	e.events.Emit(Event{Type: EventOptimizeComplete, AtMs: nowMillis()})
	return nil
}

func optimizeTrie(n *TrieNode) {
	if n.docRefs != nil {
		n.docRefs.RunOptimize()
	}
	for _, child := range n.children {
		optimizeTrie(child)
	}
}

// SearchRequest is a single query plus its execution options, per the §6
// search-options contract.
type SearchRequest struct {
	Query         string
	Fuzzy         bool
	FuzzyDistance int

	// Regex, when non-empty, takes the §4.6/§4.8 regex path instead of the
	// standard term path: Query, Fuzzy, and FuzzyDistance are ignored.
	Regex       string
	RegexBudget RegexBudget

	// Threshold is the minimum normalized score ([0,1]) a hit must reach to
	// survive; 0 is treated as "unset" and defaults to 0.5 (§4.8's
	// threshold-filter step).
	Threshold float64

	// Boost multiplies a field's contribution to a document's score;
	// a field absent from the map is left at its configured weight.
	Boost map[string]float64

	// Fields restricts the search to this subset of configured fields;
	// empty means every configured field is eligible.
	Fields []string

	// Offset/Limit are the raw pagination controls. Page/PageSize, when
	// PageSize > 0, are translated into Offset/Limit before execution and
	// take precedence.
	Offset   int
	Limit    int
	Page     int
	PageSize int

	// SortOrder is "relevance" (default, descending score), "asc", or
	// "desc"; unrecognized values fall back to relevance order.
	SortOrder string

	// IncludeMatches, when set, populates each SearchHit.Matches with the
	// distinct terms that matched it.
	IncludeMatches bool
}

func (r SearchRequest) resolvedOffsetLimit() (offset, limit int) {
	if r.PageSize > 0 {
		page := r.Page
		if page <= 0 {
			page = 1
		}
		return (page - 1) * r.PageSize, r.PageSize
	}
	return r.Offset, r.Limit
}

func (r SearchRequest) resolvedThreshold() float64 {
	if r.Threshold == 0 {
		return 0.5
	}
	return r.Threshold
}

// Search processes req.Query through the query processor, consults the
// result cache, and falls back to IndexManager.Search on a miss, applying
// threshold/offset/limit after normalizing every hit's score into [0,1]
// (§9 open-question resolution, applied uniformly to every query path).
// A non-empty req.Regex takes the regex path (§4.6) instead.
func (e *SearchEngine) Search(ctx context.Context, req SearchRequest) ([]SearchHit, error) {
	e.mu.RLock()
	if e.state != StateReady && e.state != StateMutating {
		e.mu.RUnlock()
		return nil, newNotReadyError(e.state)
	}
	manager, cache := e.manager, e.cache
	e.mu.RUnlock()

	if req.Regex != "" {
		return e.searchRegex(manager, req)
	}

	e.events.Emit(Event{Type: EventSearchStart, Payload: req.Query, AtMs: nowMillis()})

	offset, limit := req.resolvedOffsetLimit()
	opts := SearchOptions{
		Fuzzy:         req.Fuzzy,
		FuzzyDistance: req.FuzzyDistance,
		MaxResults:    limit + offset,
		AllowedFields: req.Fields,
		FieldBoosts:   req.Boost,
		TrackMatches:  req.IncludeMatches,
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 50
	}

	// The cache holds normalized hits before threshold and sort order, which
	// are not part of the cache key; both are applied per request to a copy.
	now := time.Now()
	hits, ok := cache.Get(e.cfg.IndexName, req.Query, opts, now)
	if !ok {
		terms := manager.mapper.qp.Process(req.Query)
		hits = manager.Search(terms, opts)
		normalizeHitScores(hits)
		cache.Set(e.cfg.IndexName, req.Query, opts, hits, now)
	}
	hits = filterByThreshold(append([]SearchHit(nil), hits...), req.resolvedThreshold())
	sortHits(hits, req.SortOrder)

	e.events.Emit(Event{Type: EventSearchComplete, Payload: len(hits), AtMs: nowMillis()})
	return paginate(hits, offset, limit), nil
}

// searchRegex executes the §4.6 regex path end-to-end: walk every eligible
// field's trie under req.Regex, merge matches into ranked hits, apply the
// same threshold/sort/paginate steps the standard path applies, and surface
// a budget event if any field's walk truncated.
func (e *SearchEngine) searchRegex(manager *IndexManager, req SearchRequest) ([]SearchHit, error) {
	e.events.Emit(Event{Type: EventSearchStart, Payload: req.Regex, AtMs: nowMillis()})

	hits, truncated, err := manager.SearchRegex(req.Regex, req.Fields, req.RegexBudget, req.IncludeMatches)
	if err != nil {
		e.events.Emit(Event{Type: EventIndexError, Payload: err, AtMs: nowMillis()})
		return nil, err
	}
	if truncated {
		e.events.Emit(Event{Type: EventBudgetExceeded, Payload: req.Regex, AtMs: nowMillis()})
	}

	normalizeHitScores(hits)
	hits = filterByThreshold(hits, req.resolvedThreshold())
	sortHits(hits, req.SortOrder)

	e.events.Emit(Event{Type: EventSearchComplete, Payload: len(hits), AtMs: nowMillis()})
	offset, limit := req.resolvedOffsetLimit()
	return paginate(hits, offset, limit), nil
}

func filterByThreshold(hits []SearchHit, threshold float64) []SearchHit {
	if threshold <= 0 {
		return hits
	}
	filtered := hits[:0:0]
	for _, h := range hits {
		if h.Score >= threshold {
			filtered = append(filtered, h)
		}
	}
	return filtered
}

func sortHits(hits []SearchHit, sortOrder string) {
	switch sortOrder {
	case "asc":
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score < hits[j].Score })
	default:
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	}
}

func normalizeHitScores(hits []SearchHit) {
	if len(hits) == 0 {
		return
	}
	max := hits[0].Score
	for _, h := range hits[1:] {
		if h.Score > max {
			max = h.Score
		}
	}
	if max <= 0 {
		// every hit ties with the maximum (e.g. a term present in every live
		// document scores 0 raw), so each normalizes to 1
		for i := range hits {
			hits[i].Score = 1
		}
		return
	}
	for i := range hits {
		hits[i].Score /= max
	}
}

func paginate(hits []SearchHit, offset, limit int) []SearchHit {
	if offset >= len(hits) {
		return nil
	}
	if offset < 0 {
		offset = 0
	}
	end := len(hits)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return hits[offset:end]
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
