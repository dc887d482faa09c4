package nexus

import (
	"context"
	"sync"

	json "github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"
)

// ═══════════════════════════════════════════════════════════════════════════════
// EXTERNAL STORE (§6)
// ═══════════════════════════════════════════════════════════════════════════════
// ExternalStore is the persistence boundary a SearchEngine is built against:
// snapshot bytes in, snapshot bytes out, plus a parallel metadata channel.
// Two implementations are provided: MemoryStore (the in-process fallback
// used when no persistence is configured) and BoltStore (the "embedded
// indexed database" deployment).
// ═══════════════════════════════════════════════════════════════════════════════

// IndexMetadata is the out-of-band bookkeeping record kept alongside an
// index's snapshot bytes.
type IndexMetadata struct {
	Name      string
	Version   int
	Fields    []string
	UpdatedAt int64
}

// ExternalStore is the persistence contract SearchEngine depends on.
type ExternalStore interface {
	Initialize(ctx context.Context) error
	StoreIndex(ctx context.Context, name string, snapshot []byte) error
	GetIndex(ctx context.Context, name string) ([]byte, error)
	UpdateMetadata(ctx context.Context, name string, meta IndexMetadata) error
	GetMetadata(ctx context.Context, name string) (IndexMetadata, error)
	ClearIndices(ctx context.Context) error
	DeleteIndex(ctx context.Context, name string) error
	Close() error
}

// ═══════════════════════════════════════════════════════════════════════════════
// MemoryStore - in-process fallback
// ═══════════════════════════════════════════════════════════════════════════════

// MemoryStore implements ExternalStore entirely in a guarded map, used when
// the caller configures no persistent backing.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
	metadata  map[string]IndexMetadata
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string][]byte),
		metadata:  make(map[string]IndexMetadata),
	}
}

func (s *MemoryStore) Initialize(ctx context.Context) error { return nil }

func (s *MemoryStore) StoreIndex(ctx context.Context, name string, snapshot []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(snapshot))
	copy(cp, snapshot)
	s.snapshots[name] = cp
	return nil
}

func (s *MemoryStore) GetIndex(ctx context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[name]
	if !ok {
		return nil, newNotFoundError("index", name)
	}
	cp := make([]byte, len(snap))
	copy(cp, snap)
	return cp, nil
}

func (s *MemoryStore) UpdateMetadata(ctx context.Context, name string, meta IndexMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[name] = meta
	return nil
}

func (s *MemoryStore) GetMetadata(ctx context.Context, name string) (IndexMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.metadata[name]
	if !ok {
		return IndexMetadata{}, newNotFoundError("metadata", name)
	}
	return meta, nil
}

func (s *MemoryStore) ClearIndices(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = make(map[string][]byte)
	s.metadata = make(map[string]IndexMetadata)
	return nil
}

func (s *MemoryStore) DeleteIndex(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, name)
	delete(s.metadata, name)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// ═══════════════════════════════════════════════════════════════════════════════
// BoltStore - embedded indexed database deployment
// ═══════════════════════════════════════════════════════════════════════════════
// Grounded on javanhut-Poxy/pkg/snapshot/snapshot.go's bucket-per-concern
// bbolt pattern: one bucket for snapshot bytes, one for metadata, each
// mutated inside its own db.Update/db.View transaction with JSON-marshaled
// payloads. This is that same two-bucket shape, renamed to the index-name
// keying and metadata separation §6 specifies.
// ═══════════════════════════════════════════════════════════════════════════════

var (
	snapshotsBucket = []byte("snapshots")
	metadataBucket  = []byte("metadata")
)

// BoltStore persists snapshots and metadata in a single bbolt database file.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (creating if absent) a bbolt database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, newStorageError("open bbolt database", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Initialize(ctx context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(snapshotsBucket); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(metadataBucket); err != nil {
			return err
		}
		return nil
	})
}

func (s *BoltStore) StoreIndex(ctx context.Context, name string, snapshot []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(snapshotsBucket).Put([]byte(name), snapshot)
	})
	if err != nil {
		return newStorageError("store index", err)
	}
	return nil
}

func (s *BoltStore) GetIndex(ctx context.Context, name string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(snapshotsBucket).Get([]byte(name))
		if v == nil {
			return newNotFoundError("index", name)
		}
		out = make([]byte, len(v))
		copy(out, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) UpdateMetadata(ctx context.Context, name string, meta IndexMetadata) error {
	payload, err := json.Marshal(meta)
	if err != nil {
		return newStorageError("marshal metadata", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metadataBucket).Put([]byte(name), payload)
	})
	if err != nil {
		return newStorageError("update metadata", err)
	}
	return nil
}

func (s *BoltStore) GetMetadata(ctx context.Context, name string) (IndexMetadata, error) {
	var meta IndexMetadata
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(metadataBucket).Get([]byte(name))
		if v == nil {
			return newNotFoundError("metadata", name)
		}
		return json.Unmarshal(v, &meta)
	})
	if err != nil {
		return IndexMetadata{}, err
	}
	return meta, nil
}

func (s *BoltStore) ClearIndices(ctx context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(snapshotsBucket); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		if err := tx.DeleteBucket(metadataBucket); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(snapshotsBucket); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(metadataBucket); err != nil {
			return err
		}
		return nil
	})
}

func (s *BoltStore) DeleteIndex(ctx context.Context, name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(snapshotsBucket).Delete([]byte(name)); err != nil {
			return err
		}
		return tx.Bucket(metadataBucket).Delete([]byte(name))
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
