package persistence

import "errors"

// Store level errors that can be checked with errors.Is()
var (
	// ErrNoResult is returned by SingleResult when no row matched
	ErrNoResult = errors.New("persistence: no result")

	// ErrNonUniqueResult is returned by SingleResult when more than one row matched
	ErrNonUniqueResult = errors.New("persistence: non unique result")

	// ErrTransactionRequired is returned when a write is attempted outside a transaction
	ErrTransactionRequired = errors.New("persistence: transaction required")

	// ErrDuplicate is returned when a write violates a unique or primary key constraint
	ErrDuplicate = errors.New("persistence: duplicate key")

	// ErrInvalidParameter is returned when query parameters do not match the placeholders
	ErrInvalidParameter = errors.New("persistence: invalid query parameter")

	// ErrMissingIdentity is returned when an operation needs an identity the entity does not carry
	ErrMissingIdentity = errors.New("persistence: entity has no identity")

	// ErrInvalidMapping is returned when a Mapping is missing required pieces
	ErrInvalidMapping = errors.New("persistence: invalid mapping")
)
