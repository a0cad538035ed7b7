package repository

import "errors"

var (
	// ErrIdentityKeyTaken reports a unique identity key owned by another client.
	ErrIdentityKeyTaken = errors.New("identity key already owned by another client")

	// ErrBillingDefaultTaken reports a write that would leave two active
	// billing-default contacts on one client.
	ErrBillingDefaultTaken = errors.New("another active contact is already billing default")
)

const (
	clientNotFoundMessage  = "client not found"
	contactNotFoundMessage = "contact not found"
	leadNotFoundMessage    = "lead not found"
)
