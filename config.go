package nexus

// ═══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION DEFAULTS
// ═══════════════════════════════════════════════════════════════════════════════
// Configuration flows through constructor options only - EngineConfig,
// IndexMapperConfig, ManagerConfig, CacheConfig - there is no global mutable
// config object, matching Zeeeepa-blaze's NewInvertedIndex/AnalyzerConfig
// constructor-option idiom (see DESIGN.md, Ambient Stack).
// ═══════════════════════════════════════════════════════════════════════════════

// DefaultEngineConfig returns an EngineConfig indexing a single "content"
// field with stemming and stopword removal enabled and the default cache
// policy, matching spec.md's stated defaults (cache capacity 1000, TTL 5m).
func DefaultEngineConfig(indexName string) EngineConfig {
	return EngineConfig{
		IndexName: indexName,
		Fields: []FieldConfig{
			{Path: "content", Weight: 1.0, MaxWordLength: 64},
		},
		QueryProc:   DefaultQueryProcessorConfig(),
		Cache:       DefaultCacheConfig(),
		MaxVersions: 10,
	}
}
