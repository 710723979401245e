package store

import (
    "context"
    "errors"
    "fmt"

    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgconn"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/shopspring/decimal"

    "bankpost/internal/posting"
)

type Store struct {
    pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
    return &Store{pool: pool}
}

type querier interface {
    Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
    Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
    QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) Ping(ctx context.Context) error {
    return s.pool.Ping(ctx)
}

// WithinTx runs fn inside one database transaction. The account rows read
// through the Tx stay locked until commit or rollback.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx posting.Tx) error) error {
    tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
    if err != nil {
        return fmt.Errorf("begin tx: %w", err)
    }
    defer func() {
        _ = tx.Rollback(ctx)
    }()

    if err := fn(ctx, &pgTx{tx: tx}); err != nil {
        return err
    }

    if err := tx.Commit(ctx); err != nil {
        return fmt.Errorf("commit: %w", err)
    }
    return nil
}

func (s *Store) FindAccount(ctx context.Context, id string) (posting.Account, error) {
    return findAccount(ctx, s.pool, id, false)
}

func (s *Store) GetTransaction(ctx context.Context, id string) (posting.Transaction, error) {
    row := s.pool.QueryRow(ctx, `
        SELECT `+transactionColumns+`
        FROM transaccion
        WHERE transaccion_id = $1
    `, id)
    t, err := scanTransaction(row)
    if err != nil {
        if errors.Is(err, pgx.ErrNoRows) {
            return posting.Transaction{}, fmt.Errorf("transaction %s: %w", id, posting.ErrNotFound)
        }
        return posting.Transaction{}, fmt.Errorf("get transaction: %w", err)
    }
    return t, nil
}

// ListTransactions returns the account's transactions, newest first. A
// non-positive limit returns all of them.
func (s *Store) ListTransactions(ctx context.Context, accountID string, limit int) ([]posting.Transaction, error) {
    rows, err := s.pool.Query(ctx, `
        SELECT `+transactionColumns+`
        FROM transaccion
        WHERE cuenta_id = $1
        ORDER BY transaccion_fecha DESC, transaccion_id DESC
        LIMIT NULLIF($2::int, 0)
    `, accountID, max(limit, 0))
    if err != nil {
        return nil, fmt.Errorf("list transactions: %w", err)
    }
    defer rows.Close()

    var out []posting.Transaction
    for rows.Next() {
        t, err := scanTransaction(rows)
        if err != nil {
            return nil, fmt.Errorf("scan transaction: %w", err)
        }
        out = append(out, t)
    }
    if err := rows.Err(); err != nil {
        return nil, fmt.Errorf("list transactions: %w", err)
    }
    return out, nil
}

type pgTx struct {
    tx pgx.Tx
}

func (t *pgTx) FindAccount(ctx context.Context, id string) (posting.Account, error) {
    return findAccount(ctx, t.tx, id, true)
}

func (t *pgTx) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) error {
    tag, err := t.tx.Exec(ctx, "UPDATE cuenta SET cuenta_saldo = cuenta_saldo + $1 WHERE cuenta_id = $2", delta, id)
    if err != nil {
        if isCheckViolation(err) {
            return fmt.Errorf("adjust balance %s: %w", id, posting.ErrInsufficientFunds)
        }
        return fmt.Errorf("adjust balance %s: %w", id, err)
    }
    if tag.RowsAffected() == 0 {
        return fmt.Errorf("account %s: %w", id, posting.ErrNotFound)
    }
    return nil
}

func (t *pgTx) FindCard(ctx context.Context, id, accountID string) (posting.Card, error) {
    var c posting.Card
    err := t.tx.QueryRow(ctx, `
        SELECT tarjeta_id, cuenta_id, tarjeta_estado, tarjeta_pin_seguridad, tarjeta_cvv
        FROM tarjeta
        WHERE tarjeta_id = $1 AND cuenta_id = $2
    `, id, accountID).Scan(
        &c.ID,
        &c.AccountID,
        &c.Status,
        &c.PIN,
        &c.CVV,
    )
    if err != nil {
        if errors.Is(err, pgx.ErrNoRows) {
            return posting.Card{}, fmt.Errorf("card %s: %w", id, posting.ErrNotFound)
        }
        return posting.Card{}, fmt.Errorf("find card: %w", err)
    }
    return c, nil
}

func (t *pgTx) FindTeller(ctx context.Context, id string) (posting.Teller, error) {
    var teller posting.Teller
    err := t.tx.QueryRow(ctx, `
        SELECT cajero_id, cajero_estado, cajero_ubicacion, cajero_tipo
        FROM cajero
        WHERE cajero_id = $1
    `, id).Scan(
        &teller.ID,
        &teller.Status,
        &teller.Location,
        &teller.Type,
    )
    if err != nil {
        if errors.Is(err, pgx.ErrNoRows) {
            return posting.Teller{}, fmt.Errorf("teller %s: %w", id, posting.ErrNotFound)
        }
        return posting.Teller{}, fmt.Errorf("find teller: %w", err)
    }
    return teller, nil
}

func (t *pgTx) AppendTransaction(ctx context.Context, tr posting.Transaction) error {
    _, err := t.tx.Exec(ctx, `
        INSERT INTO transaccion (transaccion_id, cuenta_id, transaccion_tipo, transaccion_monto, transaccion_costo, transaccion_fecha, transaccion_recibo)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `,
        tr.ID,
        tr.AccountID,
        string(tr.Kind),
        tr.Amount,
        tr.Cost,
        tr.CreatedAt,
        tr.Receipt,
    )
    if err != nil {
        if isUniqueViolation(err) {
            return fmt.Errorf("insert transaction %s: %w", tr.ID, posting.ErrDuplicateTransaction)
        }
        return fmt.Errorf("insert transaction: %w", err)
    }
    return nil
}

func (t *pgTx) AppendDetail(ctx context.Context, d posting.Detail) error {
    var err error
    switch d := d.(type) {
    case posting.DepositDetail:
        _, err = t.tx.Exec(ctx, `
            INSERT INTO deposito (transaccion_id, cuenta_id, deposito_monto)
            VALUES ($1, $2, $3)
        `, d.TransactionID, d.AccountID, d.Amount)
    case posting.CardWithdrawalDetail:
        _, err = t.tx.Exec(ctx, `
            INSERT INTO retiro_con_tarjeta (transaccion_id, cuenta_id, retiroct_tarjeta, retiro_monto, retiro_monto_max,
                retiroct_aid, retiroct_p22, retiroct_p38, retiroct_costo_interbancario)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        `,
            d.TransactionID,
            d.AccountID,
            d.CardID,
            d.Amount,
            d.MaxAmount,
            d.AID,
            d.P22,
            d.P38,
            d.InterbankCost,
        )
    case posting.CardlessWithdrawalDetail:
        _, err = t.tx.Exec(ctx, `
            INSERT INTO retiro_sin_tarjeta (transaccion_id, cuenta_id, retiro_monto, retirost_celular_beneficiario, retirost_codigo, retirost_expira)
            VALUES ($1, $2, $3, $4, $5, $6)
        `,
            d.TransactionID,
            d.AccountID,
            d.Amount,
            d.BeneficiaryPhone,
            d.AccessCode,
            d.CodeExpiresAt,
        )
    default:
        return fmt.Errorf("insert detail: unsupported kind %T", d)
    }
    if err != nil {
        return fmt.Errorf("insert %s detail: %w", d.Kind(), err)
    }
    return nil
}

func (t *pgTx) AppendReceipt(ctx context.Context, r posting.Receipt) error {
    _, err := t.tx.Exec(ctx, `
        INSERT INTO recibo (transaccion_id, cajero_id, recibo_costo, recibo_fecha)
        VALUES ($1, $2, $3, $4)
    `, r.TransactionID, r.TellerID, r.Cost, r.IssuedAt)
    if err != nil {
        return fmt.Errorf("insert receipt: %w", err)
    }
    return nil
}

func findAccount(ctx context.Context, q querier, id string, forUpdate bool) (posting.Account, error) {
    query := `
        SELECT ` + accountColumns + `
        FROM cuenta
        WHERE cuenta_id = $1`
    if forUpdate {
        query += " FOR UPDATE"
    }
    a, err := scanAccount(q.QueryRow(ctx, query, id))
    if err != nil {
        if errors.Is(err, pgx.ErrNoRows) {
            return posting.Account{}, fmt.Errorf("account %s: %w", id, posting.ErrNotFound)
        }
        return posting.Account{}, fmt.Errorf("find account: %w", err)
    }
    return a, nil
}
