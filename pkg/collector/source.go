package collector

import "context"

// PaginatedSource is a lazily loaded, virtualized list of accounts.
// Implementations own all markup and navigation details; the collector only
// drives these four operations. A source is single-use at a time and must
// not be shared between concurrent collections.
type PaginatedSource interface {
	// LoadMore triggers one increment of lazy loading and reports how many
	// distinct items are visible afterwards. Safe to call repeatedly.
	LoadMore(ctx context.Context) (int, error)

	// ResetPosition returns the view to its start.
	ResetPosition(ctx context.Context) error

	// ExtractIdentifiers reads the identifiers currently rendered, skipping
	// self-referential "following" control links. Duplicates are allowed.
	ExtractIdentifiers(ctx context.Context) ([]string, error)

	// JumpToEnd forces a full-height scroll to flush remaining lazy content.
	JumpToEnd(ctx context.Context) error
}
