package memory

import (
    "context"
    "errors"
    "os"
    "path/filepath"
    "testing"
    "time"

    "github.com/shopspring/decimal"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "bankpost/internal/posting"
)

func TestWithinTxCommitsBufferedWrites(t *testing.T) {
    ctx := context.Background()
    s := New()
    s.PutAccount(posting.Account{ID: "1001", Balance: decimal.NewFromInt(100), Status: posting.StatusActive})

    err := s.WithinTx(ctx, func(ctx context.Context, tx posting.Tx) error {
        require.NoError(t, tx.AppendTransaction(ctx, posting.Transaction{ID: "T1", AccountID: "1001", Kind: posting.KindDeposit}))
        require.NoError(t, tx.AppendDetail(ctx, posting.DepositDetail{TransactionID: "T1", AccountID: "1001"}))
        require.NoError(t, tx.AdjustBalance(ctx, "1001", decimal.NewFromInt(25)))

        acc, err := tx.FindAccount(ctx, "1001")
        require.NoError(t, err)
        assert.True(t, acc.Balance.Equal(decimal.NewFromInt(125)), "tx sees its own balance change")

        outside, err := s.FindAccount(ctx, "1001")
        require.NoError(t, err)
        assert.True(t, outside.Balance.Equal(decimal.NewFromInt(100)), "uncommitted change leaked")
        return nil
    })
    require.NoError(t, err)

    acc, err := s.FindAccount(ctx, "1001")
    require.NoError(t, err)
    assert.True(t, acc.Balance.Equal(decimal.NewFromInt(125)))
    txs, details, receipts := s.Counts()
    assert.Equal(t, 1, txs)
    assert.Equal(t, 1, details)
    assert.Equal(t, 0, receipts)
}

func TestWithinTxDiscardsOnError(t *testing.T) {
    ctx := context.Background()
    s := New()
    s.PutAccount(posting.Account{ID: "1001", Balance: decimal.NewFromInt(100), Status: posting.StatusActive})

    boom := errors.New("boom")
    err := s.WithinTx(ctx, func(ctx context.Context, tx posting.Tx) error {
        require.NoError(t, tx.AppendTransaction(ctx, posting.Transaction{ID: "T1", AccountID: "1001"}))
        require.NoError(t, tx.AdjustBalance(ctx, "1001", decimal.NewFromInt(-40)))
        return boom
    })
    require.ErrorIs(t, err, boom)

    acc, _ := s.FindAccount(ctx, "1001")
    assert.True(t, acc.Balance.Equal(decimal.NewFromInt(100)))
    txs, _, _ := s.Counts()
    assert.Zero(t, txs)
}

func TestAdjustBalanceRefusesNegative(t *testing.T) {
    ctx := context.Background()
    s := New()
    s.PutAccount(posting.Account{ID: "1001", Balance: decimal.NewFromInt(10), Status: posting.StatusActive})

    err := s.WithinTx(ctx, func(ctx context.Context, tx posting.Tx) error {
        return tx.AdjustBalance(ctx, "1001", decimal.NewFromInt(-11))
    })
    require.ErrorIs(t, err, posting.ErrInsufficientFunds)
}

func TestFindCardHidesOtherAccountsCards(t *testing.T) {
    ctx := context.Background()
    s := New()
    s.PutCard(posting.Card{ID: "C1", AccountID: "2002", Status: posting.StatusActive})

    err := s.WithinTx(ctx, func(ctx context.Context, tx posting.Tx) error {
        _, err := tx.FindCard(ctx, "C1", "1001")
        return err
    })
    require.ErrorIs(t, err, posting.ErrNotFound)
}

func TestListTransactionsNewestFirst(t *testing.T) {
    ctx := context.Background()
    s := New()
    s.PutAccount(posting.Account{ID: "1001", Balance: decimal.NewFromInt(10), Status: posting.StatusActive})
    base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

    require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx posting.Tx) error {
        for i, id := range []string{"A", "B", "C"} {
            if err := tx.AppendTransaction(ctx, posting.Transaction{ID: id, AccountID: "1001", CreatedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
                return err
            }
        }
        return tx.AppendTransaction(ctx, posting.Transaction{ID: "X", AccountID: "9999", CreatedAt: base})
    }))

    got, err := s.ListTransactions(ctx, "1001", 2)
    require.NoError(t, err)
    require.Len(t, got, 2)
    assert.Equal(t, "C", got[0].ID)
    assert.Equal(t, "B", got[1].ID)
}

func TestLoadSeed(t *testing.T) {
    path := filepath.Join(t.TempDir(), "seed.json")
    seed := `{
        "cuentas": [{"cuenta_id":"1001","cliente_id":"C001","cuenta_nombre":"Ahorros","cuenta_saldo":"100.00",
            "cuenta_apertura":"2024-01-02T00:00:00Z","cuenta_estado":"ACTIVE",
            "cuenta_limite_trans_web":500,"cuenta_limite_trans_movil":"80.00"}],
        "tarjetas": [{"tarjeta_id":"T01","cuenta_id":"1001","tarjeta_estado":"ACTIVE"}],
        "cajeros": [{"cajero_id":"ATM1","cajero_estado":"ACTIVE","cajero_ubicacion":"Quito","cajero_tipo":"ATM"}]
    }`
    require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))

    s := New()
    require.NoError(t, s.LoadSeed(path))

    acc, err := s.FindAccount(context.Background(), "1001")
    require.NoError(t, err)
    assert.Equal(t, "C001", acc.ClientID)
    assert.Equal(t, posting.StatusActive, acc.Status)
    assert.Equal(t, "500.00", acc.WebLimit.StringFixed(2))
    assert.Equal(t, "80.00", acc.MobileLimit.StringFixed(2))

    err = s.WithinTx(context.Background(), func(ctx context.Context, tx posting.Tx) error {
        if _, err := tx.FindCard(ctx, "T01", "1001"); err != nil {
            return err
        }
        _, err := tx.FindTeller(ctx, "ATM1")
        return err
    })
    require.NoError(t, err)
}
