// Package storage defines the persistence interfaces the scan pipeline relies
// on. It abstracts document storage and transaction management so that
// different backends (e.g. PostgreSQL) can provide concrete implementations.
package storage

import "context"

// AllStorage is a composite interface bundling every storage capability the
// application needs. Implementations typically embed the narrower interfaces
// such as ScanStorage and JobStorage.
type AllStorage interface {
	ScanStorage
	JobStorage
}

// TxStorage describes a storage handle bound to an open database transaction.
// It exposes the same capabilities as AllStorage plus committing or rolling
// back the ongoing transaction. Implementations should become unusable after
// Commit or Rollback is called.
type TxStorage interface {
	AllStorage

	// Commit finalizes the transaction, persisting all changes.
	Commit() error
	// Rollback aborts the transaction, discarding all uncommitted changes.
	Rollback() error
}

// Storage describes a non-transactional storage handle with the ability to
// start transactions and manage the lifecycle of the underlying backend.
type Storage interface {
	AllStorage

	// Close releases any resources held by the storage implementation (e.g. the
	// underlying connection pool). After Close, the instance should not be used.
	Close() error

	// Begin starts a new transaction and returns a TxStorage scoped to it.
	Begin(ctx context.Context) (TxStorage, error)
	// WithTx begins a transaction, invokes the callback with a handle scoped to
	// it, and then commits on success or rolls back when the callback errors.
	WithTx(ctx context.Context, cb func(storage AllStorage) error) error
}
