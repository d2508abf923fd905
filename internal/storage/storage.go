// Package storage is the persistence layer underneath the virtual filesystem:
// one collection of documents keyed by absolute path, read by point lookup or
// by key range, and written through explicit transactions.
package storage

import (
	"context"
	"errors"
	"unicode/utf8"
)

// Collection is the name of the single document collection.
const Collection = "vol_0"

// MaxSentinel is appended to a key prefix to form the exclusive upper bound of
// a prefix range. Keys compare bytewise, so this is the largest rune rather
// than U+FFFF: runes outside the BMP encode above EF BF BF.
const MaxSentinel = string(utf8.MaxRune)

var (
	// ErrDuplicate is returned by Tx.Add when the key is already present.
	ErrDuplicate = errors.New("storage: duplicate key")
	// ErrMissing is returned by Tx.Update when the key is absent.
	ErrMissing = errors.New("storage: missing key")
	// ErrClosed is returned by every operation on a closed store.
	ErrClosed = errors.New("storage: closed")
	// ErrTxDone is returned when a finished transaction is used again.
	ErrTxDone = errors.New("storage: transaction already committed or rolled back")
)

// Record is one stored document.
type Record struct {
	Key string
	UID string
	Doc []byte
}

// Store is an asynchronous key-value document store. Every call may block on
// I/O; callers must not hold other locks across them.
type Store interface {
	// Get returns the record stored under key; ok is false when absent.
	Get(ctx context.Context, key string) (rec Record, ok bool, err error)
	// Range returns all records with lo <= key < hi ordered by key.
	Range(ctx context.Context, lo, hi string) ([]Record, error)
	// Begin opens a read-write transaction.
	Begin(ctx context.Context) (Tx, error)
	Close() error
}

// Tx is a read-write transaction. Writes become visible on Commit.
type Tx interface {
	Add(ctx context.Context, rec Record) error
	Update(ctx context.Context, rec Record) error
	Commit() error
	Rollback() error
}

// PrefixRange returns the [lo, hi) bounds covering every key that starts with
// prefix and does not continue with MaxSentinel itself.
func PrefixRange(prefix string) (string, string) {
	return prefix, prefix + MaxSentinel
}
