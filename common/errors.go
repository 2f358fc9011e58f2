package common

import (
	"errors"
	"fmt"
)

// Error kinds shared by every component. Concrete errors wrap one of these with fmt.Errorf and %w
// so callers can classify them with errors.Is.
//
// ErrTransientIO and ErrOutOfMemory complete the taxonomy clients and tooling classify against.
// Readers block instead of polling, so no data is never an error, and Go aborts the process
// rather than returning allocation failures.
var (
	// ErrTransientIO means no data was available. It is never fatal.
	ErrTransientIO = errors.New("transient io")

	// ErrProtocolViolation covers malformed or unknown opcodes, truncated payloads, bad path lengths
	// and assets that decode to nothing drawable.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrResourceConflict is returned when creating a resource under an ID that is already in use.
	ErrResourceConflict = errors.New("resource conflict")

	// ErrResourceNotFound is returned when a command names a mesh, texture or light that does not exist.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrBackendFailure wraps GPU allocation failures. The command fails and only its scene is
	// torn down.
	ErrBackendFailure = errors.New("backend failure")

	// ErrBackendLost wraps failures of the device itself: initialisation, surface configuration,
	// frame submission and fence waits. It also matches ErrBackendFailure.
	ErrBackendLost = fmt.Errorf("%w: device lost", ErrBackendFailure)

	// ErrOutOfMemory means a resource could not be allocated while growing.
	ErrOutOfMemory = errors.New("out of memory")
)

// IsFatal reports whether err should stop the whole server rather than a single scene.
func IsFatal(err error) bool {
	return errors.Is(err, ErrBackendLost)
}
