package api_test

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "strings"
    "testing"
    "time"

    "github.com/golang-jwt/jwt/v5"

    "bankpost/internal/posting"
)

func TestDepositSuccess(t *testing.T) {
    env := setupTest(t)
    defer env.close()

    resp := env.doRequest(t, http.MethodPost, "/transacciones/deposito", `{"cuenta_id":"1001","monto":"50.00"}`)
    defer resp.Body.Close()

    if resp.StatusCode != http.StatusCreated {
        t.Fatalf("expected %d, got %d", http.StatusCreated, resp.StatusCode)
    }

    var got postingResponse
    if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
        t.Fatalf("decode response: %v", err)
    }
    if got.Tipo != string(posting.KindDeposit) || got.Monto.StringFixed(2) != "50.00" {
        t.Fatalf("unexpected response: %+v", got)
    }
    if got.Recibo != nil || got.CodigoVerificacion != "" {
        t.Fatalf("deposit without receipt returned %+v", got)
    }
    if len(got.TransaccionID) != 8 {
        t.Fatalf("unexpected transaction id %q", got.TransaccionID)
    }

    if b := env.balance(t, "1001"); b != "150.00" {
        t.Fatalf("expected balance 150.00, got %s", b)
    }
    txs, details, receipts := env.store.Counts()
    if txs != 1 || details != 1 || receipts != 0 {
        t.Fatalf("expected 1/1/0 rows, got %d/%d/%d", txs, details, receipts)
    }
}

func TestDepositWithReceipt(t *testing.T) {
    env := setupTest(t)
    defer env.close()

    resp := env.doRequest(t, http.MethodPost, "/transacciones/deposito",
        `{"cuenta_id":"1001","monto":10.5,"generar_recibo":true,"cajero_id":"ATM1"}`)
    defer resp.Body.Close()

    if resp.StatusCode != http.StatusCreated {
        t.Fatalf("expected %d, got %d", http.StatusCreated, resp.StatusCode)
    }

    var got postingResponse
    if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
        t.Fatalf("decode response: %v", err)
    }
    if got.Recibo == nil {
        t.Fatalf("expected a receipt")
    }
    if got.Recibo.CajeroID != "ATM1" || got.Recibo.TransaccionID != got.TransaccionID {
        t.Fatalf("unexpected receipt: %+v", got.Recibo)
    }
    if got.Recibo.ReciboCosto.StringFixed(2) != posting.DefaultConfig().Fees.Receipt.StringFixed(2) {
        t.Fatalf("unexpected receipt cost %s", got.Recibo.ReciboCosto)
    }
    if b := env.balance(t, "1001"); b != "110.50" {
        t.Fatalf("expected balance 110.50, got %s", b)
    }
}

func TestDepositAtWebLimit(t *testing.T) {
    env := setupTest(t)
    defer env.close()

    resp := env.doRequest(t, http.MethodPost, "/transacciones/deposito", `{"cuenta_id":"1001","monto":500}`)
    defer resp.Body.Close()

    if resp.StatusCode != http.StatusCreated {
        t.Fatalf("expected %d, got %d", http.StatusCreated, resp.StatusCode)
    }
    if b := env.balance(t, "1001"); b != "600.00" {
        t.Fatalf("expected balance 600.00, got %s", b)
    }
}

func TestDepositRejections(t *testing.T) {
    tests := []struct {
        name   string
        body   string
        status int
        code   string
    }{
        {"over web limit", `{"cuenta_id":"1001","monto":"500.01"}`, http.StatusBadRequest, "limit_exceeded"},
        {"unknown account", `{"cuenta_id":"9999","monto":10}`, http.StatusNotFound, "not_found"},
        {"inactive account", `{"cuenta_id":"3003","monto":10}`, http.StatusNotFound, "inactive"},
        {"other client's account", `{"cuenta_id":"2002","monto":10}`, http.StatusForbidden, "forbidden"},
        {"receipt without teller", `{"cuenta_id":"1001","monto":10,"generar_recibo":true}`, http.StatusBadRequest, "invalid_request"},
        {"receipt at inactive teller", `{"cuenta_id":"1001","monto":10,"generar_recibo":true,"cajero_id":"ATM2"}`, http.StatusNotFound, "not_found"},
        {"negative amount", `{"cuenta_id":"1001","monto":-5}`, http.StatusBadRequest, "invalid_request"},
        {"three decimals", `{"cuenta_id":"1001","monto":"10.555"}`, http.StatusBadRequest, "invalid_request"},
        {"missing account", `{"monto":10}`, http.StatusBadRequest, "invalid_request"},
        {"malformed json", `{"cuenta_id":"1001","monto":`, http.StatusBadRequest, "invalid_request"},
        {"unknown field", `{"cuenta_id":"1001","monto":10,"usar_tarjeta":true}`, http.StatusBadRequest, "invalid_request"},
    }

    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            env := setupTest(t)
            defer env.close()

            resp := env.doRequest(t, http.MethodPost, "/transacciones/deposito", tt.body)
            defer resp.Body.Close()

            expectError(t, resp, tt.status, tt.code)
            if b := env.balance(t, "1001"); b != "100.00" {
                t.Fatalf("expected balance 100.00, got %s", b)
            }
            if n := env.transactionCount(t); n != 0 {
                t.Fatalf("expected 0 transactions, got %d", n)
            }
        })
    }
}

func TestDepositAuth(t *testing.T) {
    env := setupTest(t)
    defer env.close()

    body := `{"cuenta_id":"1001","monto":10}`

    resp := env.doRequestWithToken(t, "", http.MethodPost, "/transacciones/deposito", body)
    expectError(t, resp, http.StatusUnauthorized, "unauthorized")
    resp.Body.Close()

    resp = env.doRequestWithToken(t, "not-a-jwt", http.MethodPost, "/transacciones/deposito", body)
    expectError(t, resp, http.StatusUnauthorized, "unauthorized")
    resp.Body.Close()

    forged := env.authToken[:strings.LastIndex(env.authToken, ".")+1] + "c2lnbmF0dXJl"
    resp = env.doRequestWithToken(t, forged, http.MethodPost, "/transacciones/deposito", body)
    expectError(t, resp, http.StatusUnauthorized, "unauthorized")
    resp.Body.Close()

    resp = env.doRequestWithToken(t, signToken(t, ""), http.MethodPost, "/transacciones/deposito", body)
    expectError(t, resp, http.StatusUnauthorized, "unauthorized")
    resp.Body.Close()

    resp = env.doRequestWithToken(t, signClaims(t, jwt.RegisteredClaims{Subject: "C001"}), http.MethodPost, "/transacciones/deposito", body)
    expectError(t, resp, http.StatusUnauthorized, "unauthorized")
    resp.Body.Close()

    expired := jwt.RegisteredClaims{Subject: "C001", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}
    resp = env.doRequestWithToken(t, signClaims(t, expired), http.MethodPost, "/transacciones/deposito", body)
    expectError(t, resp, http.StatusUnauthorized, "unauthorized")
    resp.Body.Close()

    if n := env.transactionCount(t); n != 0 {
        t.Fatalf("expected 0 transactions, got %d", n)
    }
}

type failingPoster struct {
    err error
}

func (p failingPoster) PostDeposit(context.Context, posting.DepositRequest) (posting.Result, error) {
    return posting.Result{}, p.err
}

func (p failingPoster) PostWithdrawal(context.Context, posting.WithdrawalRequest) (posting.Result, error) {
    return posting.Result{}, p.err
}

func TestDepositStorageFailureHidesCause(t *testing.T) {
    cause := errors.New("connection reset by peer")
    env := setupTestWithPoster(t, failingPoster{err: fmt.Errorf("%w: %w", posting.ErrStorage, cause)})
    defer env.close()

    resp := env.doRequest(t, http.MethodPost, "/transacciones/deposito", `{"cuenta_id":"1001","monto":10}`)
    defer resp.Body.Close()

    if resp.StatusCode != http.StatusInternalServerError {
        t.Fatalf("expected %d, got %d", http.StatusInternalServerError, resp.StatusCode)
    }
    raw, err := io.ReadAll(resp.Body)
    if err != nil {
        t.Fatalf("read body: %v", err)
    }
    if strings.TrimSpace(string(raw)) != `{"error":"internal_error"}` {
        t.Fatalf("unexpected body %s", raw)
    }
}
