package ledger

import "errors"

// Business errors reject a request before any mutation happens. The handler
// layer maps them to HTTP statuses; callers can recover by correcting input.
// ErrStorageFault is the one infrastructure kind: the atomic unit failed to
// commit and the identical request may be retried.
var (
	ErrInvalidRequest      = errors.New("missing required field")
	ErrInvalidAmount       = errors.New("amount must be a number greater than zero")
	ErrSelfTransfer        = errors.New("cannot transfer to the same account")
	ErrAccountNotFound     = errors.New("account not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrDuplicateIdentifier = errors.New("identifier already exists")
	ErrStorageFault        = errors.New("storage fault")
)

var businessErrors = []error{
	ErrInvalidRequest,
	ErrInvalidAmount,
	ErrSelfTransfer,
	ErrAccountNotFound,
	ErrInsufficientFunds,
	ErrDuplicateIdentifier,
}

// IsBusiness reports whether err is a request rejection rather than an
// infrastructure failure.
func IsBusiness(err error) bool {
	for _, kind := range businessErrors {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// Kind returns the wire-level error kind for err.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "InvalidRequest"
	case errors.Is(err, ErrInvalidAmount):
		return "InvalidAmount"
	case errors.Is(err, ErrSelfTransfer):
		return "SelfTransferNotAllowed"
	case errors.Is(err, ErrAccountNotFound):
		return "AccountNotFound"
	case errors.Is(err, ErrInsufficientFunds):
		return "InsufficientFunds"
	case errors.Is(err, ErrDuplicateIdentifier):
		return "DuplicateIdentifier"
	default:
		return "StorageFault"
	}
}
