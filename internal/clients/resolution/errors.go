package resolution

import (
	"errors"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/domain"
)

var (
	// ErrConcurrentCreateConflict is returned when a create lost a race on an
	// identity key and the re-match still found no client. Retrying the whole
	// call is safe.
	ErrConcurrentCreateConflict = errors.New("concurrent client creation conflict")

	// ErrRepositoryUnavailable wraps any I/O failure of the client store.
	ErrRepositoryUnavailable = errors.New("client repository unavailable")

	// ErrInvariantViolation is returned when a client is observed with more
	// than one active billing-default contact.
	ErrInvariantViolation = domain.ErrBillingDefaultInvariant

	// ErrInvalidIdentity is returned for an Identity whose Kind and payload disagree.
	ErrInvalidIdentity = errors.New("identity must carry exactly one lead or client")
)
