package posting

import (
    "errors"
    "time"

    "github.com/shopspring/decimal"
)

type Fees struct {
    Deposit            decimal.Decimal
    CardWithdrawal     decimal.Decimal
    CardlessWithdrawal decimal.Decimal
    Receipt            decimal.Decimal
}

// CardNetwork holds the routing and authorization values recorded on every
// card withdrawal detail.
type CardNetwork struct {
    MaxWithdrawal decimal.Decimal
    AID           string
    P22           string
    P38           string
    InterbankCost decimal.Decimal
}

type Config struct {
    Fees        Fees
    CardNetwork CardNetwork
    // ChargeFees debits the recorded fees from the balance. Off by default:
    // fees are recorded on the transaction and receipt only.
    ChargeFees           bool
    CardlessCodeValidity time.Duration
}

func DefaultConfig() Config {
    return Config{
        Fees: Fees{
            Deposit:            decimal.RequireFromString("0.50"),
            CardWithdrawal:     decimal.RequireFromString("1.00"),
            CardlessWithdrawal: decimal.RequireFromString("0.50"),
            Receipt:            decimal.RequireFromString("0.25"),
        },
        CardNetwork: CardNetwork{
            MaxWithdrawal: decimal.NewFromInt(1000),
            AID:           "A0000000041010",
            P22:           "123",
            P38:           "123456",
            InterbankCost: decimal.RequireFromString("0.10"),
        },
        CardlessCodeValidity: 30 * time.Minute,
    }
}

func (c Config) Validate() error {
    fees := []decimal.Decimal{c.Fees.Deposit, c.Fees.CardWithdrawal, c.Fees.CardlessWithdrawal, c.Fees.Receipt}
    for _, f := range fees {
        if f.IsNegative() {
            return errors.New("fees must not be negative")
        }
    }
    if !c.Fees.CardWithdrawal.GreaterThan(c.Fees.CardlessWithdrawal) {
        return errors.New("card withdrawal fee must exceed cardless withdrawal fee")
    }
    if c.CardlessCodeValidity <= 0 {
        return errors.New("cardless code validity must be positive")
    }
    if c.CardNetwork.AID == "" {
        return errors.New("card network AID is required")
    }
    return nil
}
