// Package catalog defines the capabilities the scheduler needs from a remote
// media catalog. Implementations live elsewhere (see package plex); the
// engine only consumes these interfaces.
package catalog

import "context"

// Client opens sessions against a catalog server.
type Client interface {
	// Connect establishes an authenticated session. Fails with *ConnectionError.
	Connect(ctx context.Context) (Session, error)
}

// Session is a live connection to one catalog server.
type Session interface {
	// Resolve locates exactly one item within a section.
	// Fails with *NotFoundError when nothing (or more than one item) matches.
	Resolve(ctx context.Context, section, selector string) (Item, error)
}

// Item is one resolved catalog entry.
type Item interface {
	// Key is the catalog's identifier for the item.
	Key() string

	// Title is the display title.
	Title() string

	// Watched reports whether the item is fully watched.
	Watched() bool

	// MarkUnwatched clears the item's watched state. Fails with
	// *RemoteOperationError.
	MarkUnwatched(ctx context.Context) error
}

// Series is an Item with episodes (a show).
type Series interface {
	Item

	// Episodes returns the show's episodes in season/episode order.
	Episodes(ctx context.Context) ([]Item, error)
}

// UnwatchedReporter is implemented by sessions that can measure how much
// unwatched content a section holds.
type UnwatchedReporter interface {
	UnwatchedHours(ctx context.Context, section string) (float64, error)
}
