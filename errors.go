package nexus

import (
	"errors"
	"fmt"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ERROR KINDS
// ═══════════════════════════════════════════════════════════════════════════════
// The engine distinguishes error kinds (not concrete type names) so callers can
// branch on errors.Is against one of the sentinels below. Each sentinel is
// wrapped with context via the matching constructor.
// ═══════════════════════════════════════════════════════════════════════════════
var (
	// ErrValidation marks a bad option or configuration value.
	ErrValidation = errors.New("nexus: validation error")

	// ErrStorage marks an external-store failure. A store that fails to
	// initialize is replaced by an in-memory store; a failed snapshot or
	// metadata write is emitted as a storage error event and returned to the
	// caller, while the in-memory index keeps the mutation and no fallback
	// store takes over.
	ErrStorage = errors.New("nexus: storage error")

	// ErrIndex marks a structurally invalid snapshot or an impossible node
	// lookup in the trie.
	ErrIndex = errors.New("nexus: index error")

	// ErrNotFound marks a mutate-or-restore on an absent document or version.
	ErrNotFound = errors.New("nexus: not found")

	// ErrNotReady marks an operation attempted before initialize or after close.
	ErrNotReady = errors.New("nexus: not ready")

	// ErrBudget marks a regex walk that hit its depth or time budget. Not
	// surfaced to callers as an error - it is carried as a warning event
	// alongside a truncated result set.
	ErrBudget = errors.New("nexus: budget exceeded")
)

// ValidationError wraps ErrValidation with the offending field and reason.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("nexus: validation error: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func newValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// StorageError wraps ErrStorage with the store operation that failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("nexus: storage error: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return ErrStorage }

func newStorageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// IndexError wraps ErrIndex with the structural complaint.
type IndexError struct {
	Reason string
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("nexus: index error: %s", e.Reason)
}

func (e *IndexError) Unwrap() error { return ErrIndex }

func newIndexError(reason string) error {
	return &IndexError{Reason: reason}
}

// NotFoundError wraps ErrNotFound with the missing identifier.
type NotFoundError struct {
	Kind string // "document" or "version"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("nexus: %s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func newNotFoundError(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// NotReadyError wraps ErrNotReady with the engine's current state.
type NotReadyError struct {
	State EngineState
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("nexus: engine not ready (state=%s)", e.State)
}

func (e *NotReadyError) Unwrap() error { return ErrNotReady }

func newNotReadyError(state EngineState) error {
	return &NotReadyError{State: state}
}

// BudgetError wraps ErrBudget with which budget was exceeded.
type BudgetError struct {
	Budget string // "depth", "time", or "results"
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("nexus: regex walk exceeded %s budget", e.Budget)
}

func (e *BudgetError) Unwrap() error { return ErrBudget }

func newBudgetError(budget string) error {
	return &BudgetError{Budget: budget}
}
