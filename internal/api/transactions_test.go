package api_test

import (
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "strings"
    "testing"
    "time"

    "github.com/shopspring/decimal"

    "bankpost/internal/posting"
)

type transactionResponse struct {
    TransaccionID          string          `json:"transaccion_id"`
    CuentaID               string          `json:"cuenta_id"`
    TransaccionTipo        string          `json:"transaccion_tipo"`
    TransaccionDescripcion string          `json:"transaccion_descripcion"`
    TransaccionMonto       decimal.Decimal `json:"transaccion_monto"`
    TransaccionCosto       decimal.Decimal `json:"transaccion_costo"`
    TransaccionFecha       time.Time       `json:"transaccion_fecha"`
    TransaccionRecibo      bool            `json:"transaccion_recibo"`
}

func (e *testEnv) post(t *testing.T, path, body string) postingResponse {
    t.Helper()

    resp := e.doRequest(t, http.MethodPost, path, body)
    defer resp.Body.Close()

    if resp.StatusCode != http.StatusCreated {
        t.Fatalf("post %s: expected %d, got %d", path, http.StatusCreated, resp.StatusCode)
    }
    var got postingResponse
    if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
        t.Fatalf("decode response: %v", err)
    }
    return got
}

func TestGetTransaction(t *testing.T) {
    env := setupTest(t)
    defer env.close()

    posted := env.post(t, "/transacciones/deposito", `{"cuenta_id":"1001","monto":"25.00","generar_recibo":true,"cajero_id":"ATM1"}`)

    resp := env.doRequest(t, http.MethodGet, "/transacciones/"+posted.TransaccionID, "")
    defer resp.Body.Close()

    if resp.StatusCode != http.StatusOK {
        t.Fatalf("expected %d, got %d", http.StatusOK, resp.StatusCode)
    }
    var got transactionResponse
    if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
        t.Fatalf("decode response: %v", err)
    }
    if got.TransaccionID != posted.TransaccionID || got.CuentaID != "1001" || got.TransaccionTipo != string(posting.KindDeposit) {
        t.Fatalf("unexpected transaction: %+v", got)
    }
    if got.TransaccionMonto.StringFixed(2) != "25.00" || !got.TransaccionRecibo || got.TransaccionDescripcion != "deposito" {
        t.Fatalf("unexpected transaction: %+v", got)
    }
    if !got.TransaccionCosto.Equal(posting.DefaultConfig().Fees.Deposit) {
        t.Fatalf("unexpected cost %s", got.TransaccionCosto)
    }
    if got.TransaccionFecha.IsZero() {
        t.Fatalf("missing fecha")
    }
}

func TestGetTransactionErrors(t *testing.T) {
    env := setupTest(t)
    defer env.close()

    posted := env.post(t, "/transacciones/deposito", `{"cuenta_id":"1001","monto":5}`)

    resp := env.doRequest(t, http.MethodGet, "/transacciones/NOPE0000", "")
    expectError(t, resp, http.StatusNotFound, "not_found")
    resp.Body.Close()

    other := signToken(t, "C002")
    resp = env.doRequestWithToken(t, other, http.MethodGet, "/transacciones/"+posted.TransaccionID, "")
    expectError(t, resp, http.StatusForbidden, "forbidden")
    resp.Body.Close()

    resp = env.doRequest(t, http.MethodDelete, "/transacciones/"+posted.TransaccionID, "")
    expectError(t, resp, http.StatusMethodNotAllowed, "method_not_allowed")
    resp.Body.Close()
}

func TestListAccountTransactions(t *testing.T) {
    env := setupTest(t)
    defer env.close()

    for i := 1; i <= 3; i++ {
        env.post(t, "/transacciones/deposito", fmt.Sprintf(`{"cuenta_id":"1001","monto":%d}`, i))
    }
    env.post(t, "/transacciones/retiro", `{"cuenta_id":"1001","monto":4,"celular_beneficiario":"0991234567"}`)

    resp := env.doRequest(t, http.MethodGet, "/cuentas/1001/transacciones", "")
    defer resp.Body.Close()

    if resp.StatusCode != http.StatusOK {
        t.Fatalf("expected %d, got %d", http.StatusOK, resp.StatusCode)
    }
    var list []transactionResponse
    if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
        t.Fatalf("decode response: %v", err)
    }
    if len(list) != 4 {
        t.Fatalf("expected 4 transactions for 1001, got %d", len(list))
    }
    if list[0].TransaccionTipo != string(posting.KindWithdrawalCardless) || list[0].TransaccionDescripcion != "retiro" {
        t.Fatalf("expected newest first, got %+v", list[0])
    }
    for i, tr := range list {
        if tr.CuentaID != "1001" {
            t.Fatalf("transaction %d belongs to %s", i, tr.CuentaID)
        }
        if i > 0 && tr.TransaccionFecha.After(list[i-1].TransaccionFecha) {
            t.Fatalf("transactions out of order at %d", i)
        }
    }

    limited := env.doRequest(t, http.MethodGet, "/cuentas/1001/transacciones?limite=2", "")
    defer limited.Body.Close()
    list = nil
    if err := json.NewDecoder(limited.Body).Decode(&list); err != nil {
        t.Fatalf("decode response: %v", err)
    }
    if len(list) != 2 {
        t.Fatalf("expected 2 transactions, got %d", len(list))
    }
}

func TestListAccountTransactionsErrors(t *testing.T) {
    env := setupTest(t)
    defer env.close()

    tests := []struct {
        name   string
        path   string
        status int
        code   string
    }{
        {"zero limit", "/cuentas/1001/transacciones?limite=0", http.StatusBadRequest, "invalid_limit"},
        {"limit too large", "/cuentas/1001/transacciones?limite=501", http.StatusBadRequest, "invalid_limit"},
        {"limit not a number", "/cuentas/1001/transacciones?limite=all", http.StatusBadRequest, "invalid_limit"},
        {"other client's account", "/cuentas/2002/transacciones", http.StatusForbidden, "forbidden"},
        {"unknown account", "/cuentas/9999/transacciones", http.StatusNotFound, "not_found"},
        {"unknown subresource", "/cuentas/1001/tarjetas", http.StatusNotFound, "not_found"},
    }

    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            resp := env.doRequest(t, http.MethodGet, tt.path, "")
            defer resp.Body.Close()
            expectError(t, resp, tt.status, tt.code)
        })
    }
}

func TestHealthz(t *testing.T) {
    env := setupTest(t)
    defer env.close()

    resp := env.doRequestWithToken(t, "", http.MethodGet, "/healthz", "")
    defer resp.Body.Close()

    if resp.StatusCode != http.StatusOK {
        t.Fatalf("expected %d, got %d", http.StatusOK, resp.StatusCode)
    }
    if resp.Header.Get("X-Request-Id") == "" {
        t.Fatalf("expected a generated request id")
    }
}

func TestRequestIDIsEchoed(t *testing.T) {
    env := setupTest(t)
    defer env.close()

    req, err := http.NewRequest(http.MethodGet, env.server.URL+"/healthz", nil)
    if err != nil {
        t.Fatalf("new request: %v", err)
    }
    req.Header.Set("X-Request-Id", "req-42")

    resp, err := env.client.Do(req)
    if err != nil {
        t.Fatalf("do request: %v", err)
    }
    defer resp.Body.Close()

    if got := resp.Header.Get("X-Request-Id"); got != "req-42" {
        t.Fatalf("expected request id req-42, got %q", got)
    }
}

func TestMetricsEndpoint(t *testing.T) {
    env := setupTest(t)
    defer env.close()

    env.post(t, "/transacciones/deposito", `{"cuenta_id":"1001","monto":5}`)
    resp := env.doRequest(t, http.MethodPost, "/transacciones/retiro", `{"cuenta_id":"1001","monto":500,"celular_beneficiario":"0991234567"}`)
    resp.Body.Close()

    resp = env.doRequestWithToken(t, "", http.MethodGet, "/metrics", "")
    defer resp.Body.Close()

    if resp.StatusCode != http.StatusOK {
        t.Fatalf("expected %d, got %d", http.StatusOK, resp.StatusCode)
    }
    raw, err := io.ReadAll(resp.Body)
    if err != nil {
        t.Fatalf("read body: %v", err)
    }
    body := string(raw)

    for _, want := range []string{
        `bankpost_postings_total{kind="DEPOSIT",outcome="posted"} 1`,
        `bankpost_postings_total{kind="WITHDRAWAL_CARDLESS",outcome="rejected"} 1`,
        `bankpost_http_requests_total{code="201",route="/transacciones/deposito"} 1`,
        `bankpost_http_requests_total{code="400",route="/transacciones/retiro"} 1`,
    } {
        if !strings.Contains(body, want) {
            t.Fatalf("metrics output missing %q", want)
        }
    }
}
