package domain

import "errors"

var (
	ErrInvalidClientType     = errors.New("client type must be company or individual")
	ErrEmptyClientName       = errors.New("client name must not be empty")
	ErrCompanyWithoutName    = errors.New("company client requires a company name")
	ErrCompanyWithPersonName = errors.New("company client must not carry a personal first or last name")
	ErrIndividualWithSiret   = errors.New("individual client must not carry a siret")

	// ErrBillingDefaultInvariant signals more than one active billing-default
	// contact on a client. It points at a storage bug and is never repaired silently.
	ErrBillingDefaultInvariant = errors.New("client has more than one active billing-default contact")
)
