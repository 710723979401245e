package posting

import (
    "errors"
    "fmt"
)

var (
    ErrNotFound          = errors.New("not found")
    ErrInactive          = errors.New("inactive")
    ErrLimitExceeded     = errors.New("limit exceeded")
    ErrInsufficientFunds = errors.New("insufficient funds")
    ErrInvalidRequest    = errors.New("invalid request")
    ErrUnauthorized      = errors.New("unauthorized")
    ErrStorage           = errors.New("storage failure")

    // ErrDuplicateTransaction is returned by LedgerWriter when the transaction
    // id is already taken.
    ErrDuplicateTransaction = errors.New("duplicate transaction id")
)

var (
    ErrAccountNotFound       = fmt.Errorf("account %w", ErrNotFound)
    ErrAccountInactive       = fmt.Errorf("account %w", ErrInactive)
    ErrCardNotFound          = fmt.Errorf("card %w", ErrNotFound)
    ErrCardInactive          = fmt.Errorf("card %w", ErrInactive)
    ErrTellerUnavailable     = fmt.Errorf("teller unavailable: %w", ErrNotFound)
    ErrReceiptRequiresTeller = fmt.Errorf("%w: receipt requires cajero_id", ErrInvalidRequest)
    ErrCardRequired          = fmt.Errorf("%w: card withdrawal requires tarjeta_id", ErrInvalidRequest)
    ErrTellerRequired        = fmt.Errorf("%w: card withdrawal requires cajero_id", ErrInvalidRequest)
    ErrInvalidAmount         = fmt.Errorf("%w: amount must be positive with at most two decimals", ErrInvalidRequest)
    ErrInvalidPhone          = fmt.Errorf("%w: beneficiary phone needs at least 10 digits", ErrInvalidRequest)
)

// IsDomain reports whether err belongs to the validation taxonomy, as opposed
// to a failure of the underlying store.
func IsDomain(err error) bool {
    for _, kind := range []error{
        ErrNotFound,
        ErrInactive,
        ErrLimitExceeded,
        ErrInsufficientFunds,
        ErrInvalidRequest,
        ErrUnauthorized,
    } {
        if errors.Is(err, kind) {
            return true
        }
    }
    return false
}
