package posting

import (
    "time"

    "github.com/shopspring/decimal"
)

type Status string

const (
    StatusActive   Status = "ACTIVE"
    StatusInactive Status = "INACTIVE"
)

type Kind string

const (
    KindDeposit            Kind = "DEPOSIT"
    KindWithdrawalCard     Kind = "WITHDRAWAL_CARD"
    KindWithdrawalCardless Kind = "WITHDRAWAL_CARDLESS"
)

type Account struct {
    ID          string
    ClientID    string
    Name        string
    Balance     decimal.Decimal
    OpenedAt    time.Time
    Status      Status
    WebLimit    decimal.Decimal
    MobileLimit decimal.Decimal
}

// Card carries PIN and CVV for the stores' sake; posting never reads them.
type Card struct {
    ID        string
    AccountID string
    Status    Status
    PIN       string
    CVV       string
}

type Teller struct {
    ID       string
    Status   Status
    Location string
    Type     string
}

type Transaction struct {
    ID        string
    AccountID string
    Kind      Kind
    Amount    decimal.Decimal
    Cost      decimal.Decimal
    CreatedAt time.Time
    Receipt   bool
}

type Receipt struct {
    TransactionID string
    TellerID      string
    Cost          decimal.Decimal
    IssuedAt      time.Time
}

// Detail is the kind-specific record written next to every Transaction.
type Detail interface {
    Kind() Kind
    TxID() string
}

type DepositDetail struct {
    TransactionID string
    AccountID     string
    Amount        decimal.Decimal
}

func (d DepositDetail) Kind() Kind   { return KindDeposit }
func (d DepositDetail) TxID() string { return d.TransactionID }

type CardWithdrawalDetail struct {
    TransactionID string
    AccountID     string
    CardID        string
    Amount        decimal.Decimal
    MaxAmount     decimal.Decimal
    AID           string
    P22           string
    P38           string
    InterbankCost decimal.Decimal
}

func (d CardWithdrawalDetail) Kind() Kind   { return KindWithdrawalCard }
func (d CardWithdrawalDetail) TxID() string { return d.TransactionID }

type CardlessWithdrawalDetail struct {
    TransactionID    string
    AccountID        string
    Amount           decimal.Decimal
    BeneficiaryPhone string
    AccessCode       string
    CodeExpiresAt    time.Time
}

func (d CardlessWithdrawalDetail) Kind() Kind   { return KindWithdrawalCardless }
func (d CardlessWithdrawalDetail) TxID() string { return d.TransactionID }

type DepositRequest struct {
    AccountID   string
    ClientID    string
    Amount      decimal.Decimal
    WantReceipt bool
    TellerID    string
}

type WithdrawalRequest struct {
    AccountID        string
    ClientID         string
    Amount           decimal.Decimal
    UseCard          bool
    CardID           string
    WantReceipt      bool
    TellerID         string
    BeneficiaryPhone string
    AccessCode       string
    // CodeValidity overrides Config.CardlessCodeValidity when positive.
    CodeValidity time.Duration
}

type Result struct {
    TransactionID string
    Kind          Kind
    Receipt       *Receipt
    AccessCode    string
}
