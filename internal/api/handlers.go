package api

import (
    "context"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/shopspring/decimal"
    "go.uber.org/zap"

    "bankpost/internal/metrics"
    "bankpost/internal/posting"
)

const (
    defaultListLimit = 50
    maxListLimit     = 500
)

type depositRequest struct {
    CuentaID      string          `json:"cuenta_id" validate:"required,max=10"`
    Monto         decimal.Decimal `json:"monto" validate:"positive_decimal"`
    GenerarRecibo bool            `json:"generar_recibo"`
    CajeroID      string          `json:"cajero_id" validate:"max=10"`
}

type withdrawalRequest struct {
    CuentaID            string          `json:"cuenta_id" validate:"required,max=10"`
    Monto               decimal.Decimal `json:"monto" validate:"positive_decimal"`
    GenerarRecibo       bool            `json:"generar_recibo"`
    CajeroID            string          `json:"cajero_id" validate:"max=10"`
    UsarTarjeta         bool            `json:"usar_tarjeta"`
    TarjetaID           string          `json:"tarjeta_id" validate:"max=16"`
    CelularBeneficiario string          `json:"celular_beneficiario" validate:"omitempty,numeric,max=16"`
    CodigoAcceso        string          `json:"codigo_acceso" validate:"omitempty,numeric,len=6"`
    VigenciaMinutos     int             `json:"vigencia_minutos" validate:"gte=0,lte=1440"`
}

type receiptResponse struct {
    TransaccionID    string          `json:"transaccion_id"`
    CajeroID         string          `json:"cajero_id"`
    ReciboCosto      decimal.Decimal `json:"recibo_costo"`
    TransaccionFecha time.Time       `json:"transaccion_fecha"`
}

type postingResponse struct {
    TransaccionID      string           `json:"transaccion_id"`
    Tipo               string           `json:"tipo"`
    Monto              decimal.Decimal  `json:"monto"`
    Recibo             *receiptResponse `json:"recibo,omitempty"`
    CodigoVerificacion string           `json:"codigo_verificacion,omitempty"`
}

// transactionResponse uses the column names of the transaccion table, which is
// what the account history view reads.
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

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
        return
    }
    if p, ok := s.ledger.(pinger); ok {
        ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
        defer cancel()
        if err := p.Ping(ctx); err != nil {
            s.logFailure(r.Context(), "health_check_failed", "internal_error", err)
            writeError(w, http.StatusServiceUnavailable, "unavailable")
            return
        }
    }
    writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
        return
    }

    var req depositRequest
    if err := decodeJSON(r.Body, &req); err != nil {
        s.logFailure(r.Context(), "deposit_failed", "invalid_request", err)
        writeError(w, http.StatusBadRequest, "invalid_request")
        return
    }
    if err := s.validate.Struct(req); err != nil {
        s.logFailure(r.Context(), "deposit_failed", "invalid_request", err, zap.String("account_id", req.CuentaID))
        writeError(w, http.StatusBadRequest, "invalid_request")
        return
    }

    start := time.Now()
    res, err := s.poster.PostDeposit(r.Context(), posting.DepositRequest{
        AccountID:   strings.TrimSpace(req.CuentaID),
        ClientID:    clientIDFrom(r.Context()),
        Amount:      req.Monto,
        WantReceipt: req.GenerarRecibo,
        TellerID:    strings.TrimSpace(req.CajeroID),
    })
    s.recordPosting(posting.KindDeposit, start, req.GenerarRecibo, err)
    if err != nil {
        status, code := statusFor(err)
        s.logFailure(r.Context(), "deposit_failed", code, err,
            zap.String("account_id", req.CuentaID),
            zap.String("amount", req.Monto.StringFixed(2)))
        writeError(w, status, code)
        return
    }

    s.logEvent(r.Context(), "deposit_posted",
        zap.String("transaction_id", res.TransactionID),
        zap.String("account_id", req.CuentaID),
        zap.String("amount", req.Monto.StringFixed(2)),
        zap.Bool("receipt", res.Receipt != nil))
    writeJSON(w, http.StatusCreated, toPostingResponse(res, req.Monto))
}

func (s *Server) handleWithdrawal(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
        return
    }

    var req withdrawalRequest
    if err := decodeJSON(r.Body, &req); err != nil {
        s.logFailure(r.Context(), "withdrawal_failed", "invalid_request", err)
        writeError(w, http.StatusBadRequest, "invalid_request")
        return
    }
    if err := s.validate.Struct(req); err != nil {
        s.logFailure(r.Context(), "withdrawal_failed", "invalid_request", err, zap.String("account_id", req.CuentaID))
        writeError(w, http.StatusBadRequest, "invalid_request")
        return
    }

    kind := posting.KindWithdrawalCardless
    if req.UsarTarjeta {
        kind = posting.KindWithdrawalCard
    }

    start := time.Now()
    res, err := s.poster.PostWithdrawal(r.Context(), posting.WithdrawalRequest{
        AccountID:        strings.TrimSpace(req.CuentaID),
        ClientID:         clientIDFrom(r.Context()),
        Amount:           req.Monto,
        UseCard:          req.UsarTarjeta,
        CardID:           strings.TrimSpace(req.TarjetaID),
        WantReceipt:      req.GenerarRecibo,
        TellerID:         strings.TrimSpace(req.CajeroID),
        BeneficiaryPhone: strings.TrimSpace(req.CelularBeneficiario),
        AccessCode:       req.CodigoAcceso,
        CodeValidity:     time.Duration(req.VigenciaMinutos) * time.Minute,
    })
    s.recordPosting(kind, start, req.GenerarRecibo, err)
    if err != nil {
        status, code := statusFor(err)
        s.logFailure(r.Context(), "withdrawal_failed", code, err,
            zap.String("account_id", req.CuentaID),
            zap.String("kind", string(kind)),
            zap.String("amount", req.Monto.StringFixed(2)))
        writeError(w, status, code)
        return
    }

    s.logEvent(r.Context(), "withdrawal_posted",
        zap.String("transaction_id", res.TransactionID),
        zap.String("account_id", req.CuentaID),
        zap.String("kind", string(res.Kind)),
        zap.String("amount", req.Monto.StringFixed(2)),
        zap.Bool("receipt", res.Receipt != nil))
    writeJSON(w, http.StatusCreated, toPostingResponse(res, req.Monto))
}

func (s *Server) handleTransactionByID(w http.ResponseWriter, r *http.Request) {
    id := strings.TrimPrefix(r.URL.Path, "/transacciones/")
    if id == "" || strings.Contains(id, "/") {
        writeError(w, http.StatusNotFound, "not_found")
        return
    }
    if r.Method != http.MethodGet {
        writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
        return
    }

    t, err := s.ledger.GetTransaction(r.Context(), id)
    if err != nil {
        s.writeReadError(w, r, "transaction_get_failed", err, zap.String("transaction_id", id))
        return
    }
    if _, err := s.ownedAccount(r.Context(), t.AccountID); err != nil {
        s.writeReadError(w, r, "transaction_get_failed", err, zap.String("transaction_id", id))
        return
    }

    writeJSON(w, http.StatusOK, toTransactionResponse(t))
}

func (s *Server) handleAccountTransactions(w http.ResponseWriter, r *http.Request) {
    parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/cuentas/"), "/")
    if len(parts) != 2 || parts[0] == "" || parts[1] != "transacciones" {
        writeError(w, http.StatusNotFound, "not_found")
        return
    }
    if r.Method != http.MethodGet {
        writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
        return
    }
    accountID := parts[0]

    limit := defaultListLimit
    if raw := r.URL.Query().Get("limite"); raw != "" {
        n, err := strconv.Atoi(raw)
        if err != nil || n <= 0 || n > maxListLimit {
            writeError(w, http.StatusBadRequest, "invalid_limit")
            return
        }
        limit = n
    }

    if _, err := s.ownedAccount(r.Context(), accountID); err != nil {
        s.writeReadError(w, r, "transaction_list_failed", err, zap.String("account_id", accountID))
        return
    }

    txs, err := s.ledger.ListTransactions(r.Context(), accountID, limit)
    if err != nil {
        s.writeReadError(w, r, "transaction_list_failed", err, zap.String("account_id", accountID))
        return
    }

    out := make([]transactionResponse, 0, len(txs))
    for _, t := range txs {
        out = append(out, toTransactionResponse(t))
    }
    writeJSON(w, http.StatusOK, out)
}

func (s *Server) ownedAccount(ctx context.Context, id string) (posting.Account, error) {
    acc, err := s.ledger.FindAccount(ctx, id)
    if err != nil {
        return posting.Account{}, err
    }
    if acc.ClientID != clientIDFrom(ctx) {
        return posting.Account{}, posting.ErrUnauthorized
    }
    return acc, nil
}

func (s *Server) writeReadError(w http.ResponseWriter, r *http.Request, event string, err error, fields ...zap.Field) {
    status, code := statusFor(err)
    s.logFailure(r.Context(), event, code, err, fields...)
    writeError(w, status, code)
}

func (s *Server) recordPosting(kind posting.Kind, start time.Time, receipt bool, err error) {
    outcome := metrics.OutcomePosted
    if err != nil {
        outcome = metrics.OutcomeFailed
        if posting.IsDomain(err) {
            outcome = metrics.OutcomeRejected
        }
    }
    s.metrics.RecordPosting(string(kind), outcome, time.Since(start), receipt)
}

func toPostingResponse(res posting.Result, amount decimal.Decimal) postingResponse {
    out := postingResponse{
        TransaccionID:      res.TransactionID,
        Tipo:               string(res.Kind),
        Monto:              amount.Round(2),
        CodigoVerificacion: res.AccessCode,
    }
    if res.Receipt != nil {
        out.Recibo = &receiptResponse{
            TransaccionID:    res.Receipt.TransactionID,
            CajeroID:         res.Receipt.TellerID,
            ReciboCosto:      res.Receipt.Cost,
            TransaccionFecha: res.Receipt.IssuedAt,
        }
    }
    return out
}

func toTransactionResponse(t posting.Transaction) transactionResponse {
    return transactionResponse{
        TransaccionID:          t.ID,
        CuentaID:               t.AccountID,
        TransaccionTipo:        string(t.Kind),
        TransaccionDescripcion: description(t.Kind),
        TransaccionMonto:       t.Amount,
        TransaccionCosto:       t.Cost,
        TransaccionFecha:       t.CreatedAt,
        TransaccionRecibo:      t.Receipt,
    }
}

func description(k posting.Kind) string {
    if k == posting.KindDeposit {
        return "deposito"
    }
    return "retiro"
}
