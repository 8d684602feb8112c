// Package kvstore provides the small key/value backends the state holder persists through.
package kvstore

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("kvstore: key not found")

// Backend stores opaque values by key.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

type Options struct {
	Driver string
	Dir    string // file driver
	DSN    string // sqlite driver
}

// Open builds the backend selected by opts.Driver.
func Open(opts Options) (Backend, error) {
	switch opts.Driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverFile, "":
		return NewFile(opts.Dir)
	case DriverSQLite:
		return NewGorm(opts.DSN)
	default:
		return nil, errors.Errorf("kvstore: unknown driver %q", opts.Driver)
	}
}
