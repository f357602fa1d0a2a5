// Package errs defines the stable error taxonomy shared by every
// memory-engine component (spec.md §7). Components wrap these sentinels
// with fmt.Errorf("%w: ...", ErrX) so callers can errors.Is/As against
// the kind rather than parsing messages.
package errs

import "errors"

var (
	// ErrInvalidConfiguration is returned by configuration construction;
	// it stops startup.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidContent is a caller error: empty or invalid memory content.
	ErrInvalidContent = errors.New("invalid content")

	// ErrInvalidQuery is a caller error: empty or invalid recall query.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrNotInitialised is returned when an operation is called before setup.
	ErrNotInitialised = errors.New("not initialised")

	// ErrAdapterNotInitialised is returned by storage/vector backends that
	// are stubbed out (e.g. the external DB adapter).
	ErrAdapterNotInitialised = errors.New("adapter not initialised")

	// ErrAdapterFailure wraps a storage or vector back-end error.
	ErrAdapterFailure = errors.New("adapter failure")

	// ErrEmbeddingFailed wraps an embedding provider failure; recoverable
	// by tier fallback.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrTimeout is returned when an operation exceeds its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrPermissionDenied is returned by sharing access control.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when an id/share_id/conflict_id is absent.
	ErrNotFound = errors.New("not found")

	// ErrConflictAlreadyResolved is returned when resolving an already
	// terminal conflict.
	ErrConflictAlreadyResolved = errors.New("conflict already resolved")

	// ErrResolutionFailed is returned when a resolution strategy fails;
	// the conflict transitions to escalated.
	ErrResolutionFailed = errors.New("conflict resolution failed")

	// ErrApprovalRequired is returned when a conflict at or above the
	// approval threshold has no registered approvers: it cannot be
	// voted on, and therefore cannot self-resolve, until SetApprovers
	// registers at least one.
	ErrApprovalRequired = errors.New("conflict requires registered approvers")

	// ErrFallbackExhausted is returned when the tier fallback chain is
	// exhausted without a successful operation.
	ErrFallbackExhausted = errors.New("fallback chain exhausted")

	// ErrInternal indicates an invariant violation; never returned for
	// caller mistakes.
	ErrInternal = errors.New("internal error")
)
