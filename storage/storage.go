// Package storage persists verification outcomes locally, giving repeated
// runs a skip-already-verified fast path and operators an audit trail of
// what was submitted where.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNotFound is returned when no record exists for a key.
	ErrNotFound = errors.New("record not found")

	// ErrClosed is returned on access to a closed store.
	ErrClosed = errors.New("storage is closed")

	// ErrReadOnly is returned on writes to a read-only store.
	ErrReadOnly = errors.New("storage is read-only")
)

// VerificationRecord is one finished verification run against one explorer
// back-end.
type VerificationRecord struct {
	// Network is the chain the contract is deployed on.
	Network string
	// Address is the contract address.
	Address common.Address
	// Explorer names the back-end the source was submitted to.
	Explorer string
	// ContractName is the fully qualified name of the verified contract.
	ContractName string
	// CompilerVersion is the long version tag the submission used.
	CompilerVersion string
	// Success indicates whether the back-end accepted the source.
	Success bool
	// AlreadyVerified indicates the contract was verified before this run.
	AlreadyVerified bool
	// Message is the back-end's final status message.
	Message string
	// URL points at the contract's code page, when known.
	URL string
	// UndetectableLibraries lists library addresses that were trusted
	// rather than validated against the runtime bytecode.
	UndetectableLibraries []string
	// VerifiedAt is when the run finished.
	VerifiedAt time.Time
}

// RecordReader provides read access to verification records.
type RecordReader interface {
	// GetRecord returns the record for one contract on one back-end.
	GetRecord(ctx context.Context, network string, address common.Address, explorer string) (*VerificationRecord, error)

	// HasSuccessfulRecord reports whether the contract was verified on the
	// back-end in an earlier run.
	HasSuccessfulRecord(ctx context.Context, network string, address common.Address, explorer string) (bool, error)

	// ListRecords returns every record of a network, ordered by key.
	ListRecords(ctx context.Context, network string) ([]*VerificationRecord, error)
}

// RecordWriter provides write access to verification records.
type RecordWriter interface {
	// SetRecord stores a record, replacing any previous one for the same
	// contract and back-end.
	SetRecord(ctx context.Context, record *VerificationRecord) error

	// DeleteRecord removes a record. Deleting a missing record is not an
	// error.
	DeleteRecord(ctx context.Context, network string, address common.Address, explorer string) error
}

// RecordStore combines record access with lifecycle management.
type RecordStore interface {
	RecordReader
	RecordWriter
	Close() error
}
