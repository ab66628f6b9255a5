// Package errs defines the sentinel error causes shared across the
// storage and execution engine. Components wrap these with
// github.com/juju/errors (Annotate/Trace) so callers can recover the
// underlying cause with errors.Cause while still getting a stack-
// annotated message for logs.
package errs

import "errors"

var (
	// Storage I/O
	ErrDiskIO = errors.New("disk i/o failure")

	// Page
	ErrInvalidPageID       = errors.New("invalid page id")
	ErrPageNotAllocated    = errors.New("page not allocated")
	ErrMaxPagesExceeded    = errors.New("max pages exceeded")

	// Buffer pool
	ErrInvalidCapacity = errors.New("invalid buffer pool capacity")
	ErrEntryNotPresent = errors.New("entry not present in cache")

	// Serialization
	ErrUnknownType     = errors.New("unknown column type")
	ErrLengthOverflow  = errors.New("encoded length overflow")
	ErrRecordTooLarge  = errors.New("record larger than page capacity")

	// Catalog
	ErrTableNotFound   = errors.New("table not found")
	ErrTableExists     = errors.New("table already exists")
	ErrIndexNotFound   = errors.New("index not found")
	ErrIndexExists     = errors.New("index already exists")
	ErrInvalidSchema   = errors.New("invalid schema")

	// Lock
	ErrLockTimeout = errors.New("lock acquisition timed out")

	// Transaction
	ErrTxnNotActive   = errors.New("transaction not active")
	ErrCommitFailed   = errors.New("commit failed")
	ErrIsolationViolation = errors.New("isolation violation")

	// WAL
	ErrCorruptRecord = errors.New("corrupt wal record")
	ErrSyncFailed    = errors.New("wal sync failed")

	// SQL
	ErrUnknownColumn      = errors.New("unknown column")
	ErrTypeMismatch       = errors.New("type mismatch")
	ErrUnsupportedOperator = errors.New("unsupported operator")
)
