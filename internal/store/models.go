package store

import (
    "github.com/jackc/pgx/v5"

    "bankpost/internal/posting"
)

const accountColumns = `cuenta_id, cliente_id, cuenta_nombre, cuenta_saldo, cuenta_apertura,
            cuenta_estado, cuenta_limite_trans_web, cuenta_limite_trans_movil`

const transactionColumns = `transaccion_id, cuenta_id, transaccion_tipo, transaccion_monto,
            transaccion_costo, transaccion_fecha, transaccion_recibo`

func scanAccount(row pgx.Row) (posting.Account, error) {
    var a posting.Account
    err := row.Scan(
        &a.ID,
        &a.ClientID,
        &a.Name,
        &a.Balance,
        &a.OpenedAt,
        &a.Status,
        &a.WebLimit,
        &a.MobileLimit,
    )
    return a, err
}

func scanTransaction(row pgx.Row) (posting.Transaction, error) {
    var t posting.Transaction
    err := row.Scan(
        &t.ID,
        &t.AccountID,
        &t.Kind,
        &t.Amount,
        &t.Cost,
        &t.CreatedAt,
        &t.Receipt,
    )
    if err != nil {
        return posting.Transaction{}, err
    }
    t.CreatedAt = t.CreatedAt.UTC()
    return t, nil
}
