package registry

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Store that has no definition for an
// identifier. The registry then asks the next store.
var ErrNotFound = errors.New("definition not found")

// Definition is the WKT text a store holds for an identifier. ID is the
// canonical identifier it is filed under, which differs from the requested
// one for aliases.
type Definition struct {
	ID  Identifier
	WKT string
}

// Store is a source of CRS definitions. Init is called once before the
// first Definition call; an Init error disables the store for the life of
// the registry.
type Store interface {
	Name() string
	Init(ctx context.Context) error
	Definition(ctx context.Context, id Identifier) (Definition, error)
	// Codes lists the canonical identifiers the store can resolve without
	// I/O. Remote stores return nil.
	Codes() []string
	Close() error
}
