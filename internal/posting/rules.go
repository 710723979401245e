package posting

import (
    "context"
    "errors"
    "fmt"
    "regexp"

    "github.com/shopspring/decimal"
)

var phonePattern = regexp.MustCompile(`^\d{10,}$`)

// validAmount accepts positive amounts with at most two decimals.
func validAmount(a decimal.Decimal) bool {
    return a.IsPositive() && a.Equal(a.Round(2))
}

func checkDepositRequest(req DepositRequest) error {
    if !validAmount(req.Amount) {
        return ErrInvalidAmount
    }
    if req.WantReceipt && req.TellerID == "" {
        return ErrReceiptRequiresTeller
    }
    return nil
}

func checkWithdrawalRequest(req WithdrawalRequest) error {
    if !validAmount(req.Amount) {
        return ErrInvalidAmount
    }
    if req.UseCard {
        if req.CardID == "" {
            return ErrCardRequired
        }
        if req.TellerID == "" {
            return ErrTellerRequired
        }
    } else if !phonePattern.MatchString(req.BeneficiaryPhone) {
        return ErrInvalidPhone
    }
    if req.WantReceipt && req.TellerID == "" {
        return ErrReceiptRequiresTeller
    }
    if req.CodeValidity < 0 {
        return fmt.Errorf("%w: negative code validity", ErrInvalidRequest)
    }
    return nil
}

func checkAccount(acc Account, clientID string) error {
    if acc.Status != StatusActive {
        return ErrAccountInactive
    }
    if clientID != "" && acc.ClientID != clientID {
        return fmt.Errorf("%w: account %s", ErrUnauthorized, acc.ID)
    }
    return nil
}

func checkCard(card Card, accountID string) error {
    if card.AccountID != accountID {
        return ErrCardNotFound
    }
    if card.Status != StatusActive {
        return ErrCardInactive
    }
    return nil
}

func checkTeller(t Teller) error {
    if t.Status != StatusActive {
        return fmt.Errorf("%w: %s", ErrTellerUnavailable, t.ID)
    }
    return nil
}

// checkLimit accepts amounts equal to the limit.
func checkLimit(amount, limit decimal.Decimal, channel string) error {
    if amount.GreaterThan(limit) {
        return fmt.Errorf("%w: %s over %s limit %s", ErrLimitExceeded, amount.StringFixed(2), channel, limit.StringFixed(2))
    }
    return nil
}

func checkFunds(balance, debit decimal.Decimal) error {
    if debit.GreaterThan(balance) {
        return fmt.Errorf("%w: balance %s, debit %s", ErrInsufficientFunds, balance.StringFixed(2), debit.StringFixed(2))
    }
    return nil
}

func loadAccount(ctx context.Context, tx Tx, id, clientID string) (Account, error) {
    acc, err := tx.FindAccount(ctx, id)
    if err != nil {
        if errors.Is(err, ErrNotFound) {
            return Account{}, ErrAccountNotFound
        }
        return Account{}, err
    }
    if err := checkAccount(acc, clientID); err != nil {
        return Account{}, err
    }
    return acc, nil
}

func loadCard(ctx context.Context, tx Tx, id, accountID string) (Card, error) {
    card, err := tx.FindCard(ctx, id, accountID)
    if err != nil {
        if errors.Is(err, ErrNotFound) {
            return Card{}, ErrCardNotFound
        }
        return Card{}, err
    }
    if err := checkCard(card, accountID); err != nil {
        return Card{}, err
    }
    return card, nil
}

func loadTeller(ctx context.Context, tx Tx, id string) (Teller, error) {
    t, err := tx.FindTeller(ctx, id)
    if err != nil {
        if errors.Is(err, ErrNotFound) {
            return Teller{}, fmt.Errorf("%w: %s", ErrTellerUnavailable, id)
        }
        return Teller{}, err
    }
    if err := checkTeller(t); err != nil {
        return Teller{}, err
    }
    return t, nil
}
