package arena

import "errors"

var (
	// ErrAllocationTooLarge is the panic value (wrapped) when a request
	// exceeds MaxAllocationSize. It is not recoverable.
	ErrAllocationTooLarge = errors.New("arena: allocation exceeds maximum size")

	// ErrUnknownAllocation is the panic value (wrapped) when Release is
	// given an allocation this arena does not own or already released.
	ErrUnknownAllocation = errors.New("arena: unknown or released allocation")
)
