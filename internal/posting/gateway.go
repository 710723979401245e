package posting

import (
    "context"

    "github.com/shopspring/decimal"
)

// AccountGateway reads and mutates accounts. Inside a unit of work FindAccount
// must hold the account against concurrent balance changes until commit.
type AccountGateway interface {
    FindAccount(ctx context.Context, id string) (Account, error)
    AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) error
}

type InstrumentGateway interface {
    // FindCard returns ErrNotFound when the card is absent or belongs to
    // another account.
    FindCard(ctx context.Context, id, accountID string) (Card, error)
    FindTeller(ctx context.Context, id string) (Teller, error)
}

type LedgerWriter interface {
    AppendTransaction(ctx context.Context, tx Transaction) error
    AppendDetail(ctx context.Context, d Detail) error
    AppendReceipt(ctx context.Context, r Receipt) error
}

// Tx is the view of the store available inside one unit of work.
type Tx interface {
    AccountGateway
    InstrumentGateway
    LedgerWriter
}

// UnitOfWork runs fn atomically: every write made through the Tx is committed
// when fn returns nil and rolled back otherwise.
type UnitOfWork interface {
    WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Ledger is the read side used by the HTTP layer.
type Ledger interface {
    FindAccount(ctx context.Context, id string) (Account, error)
    GetTransaction(ctx context.Context, id string) (Transaction, error)
    ListTransactions(ctx context.Context, accountID string, limit int) ([]Transaction, error)
}
