package domain

import "errors"

// Domain errors. The API layer maps these to HTTP statuses and to the
// error_kind field of failure responses; nothing below this layer knows
// about HTTP.
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrRecipientNotFound   = errors.New("recipient not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrConflict            = errors.New("concurrent update conflict")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrSameAccount         = errors.New("transfer to same account")
)

// ErrorKind returns the wire-level kind for a domain error, or empty if the
// error is not part of the client-facing taxonomy.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrSameAccount):
		return "InvalidAmount"
	case errors.Is(err, ErrInsufficientFunds):
		return "InsufficientFunds"
	case errors.Is(err, ErrRecipientNotFound):
		return "RecipientNotFound"
	case errors.Is(err, ErrConflict):
		return "Conflict"
	case errors.Is(err, ErrAccountNotFound):
		return "AccountNotFound"
	case errors.Is(err, ErrStoreUnavailable):
		return "StoreUnavailable"
	}
	return ""
}
