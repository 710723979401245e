package store

import (
    "errors"

    "github.com/jackc/pgx/v5/pgconn"
)

func isUniqueViolation(err error) bool {
    return pgCode(err) == "23505"
}

func isCheckViolation(err error) bool {
    return pgCode(err) == "23514"
}

func pgCode(err error) string {
    var pgErr *pgconn.PgError
    if !errors.As(err, &pgErr) {
        return ""
    }
    return pgErr.Code
}
