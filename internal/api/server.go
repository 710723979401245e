package api

import (
    "context"
    "net/http"
    "strings"

    "github.com/go-playground/validator/v10"
    "github.com/golang-jwt/jwt/v5"
    "github.com/google/uuid"
    "go.uber.org/zap"

    "bankpost/internal/metrics"
    "bankpost/internal/posting"
)

type Poster interface {
    PostDeposit(ctx context.Context, req posting.DepositRequest) (posting.Result, error)
    PostWithdrawal(ctx context.Context, req posting.WithdrawalRequest) (posting.Result, error)
}

type pinger interface {
    Ping(ctx context.Context) error
}

type Server struct {
    poster    Poster
    ledger    posting.Ledger
    metrics   *metrics.Collector
    jwtSecret []byte
    logger    *zap.Logger
    validate  *validator.Validate
}

func NewServer(poster Poster, ledger posting.Ledger, collector *metrics.Collector, jwtSecret string, logger *zap.Logger) (*Server, error) {
    if logger == nil {
        logger = zap.NewNop()
    }
    if collector == nil {
        collector = metrics.NewCollector()
    }
    vld, err := newValidator()
    if err != nil {
        return nil, err
    }
    return &Server{
        poster:    poster,
        ledger:    ledger,
        metrics:   collector,
        jwtSecret: []byte(jwtSecret),
        logger:    logger,
        validate:  vld,
    }, nil
}

func (s *Server) Routes() http.Handler {
    mux := http.NewServeMux()
    mux.Handle("/healthz", s.instrument("/healthz", http.HandlerFunc(s.handleHealth)))
    mux.Handle("/metrics", s.metrics.Handler())
    mux.Handle("/transacciones/deposito", s.instrument("/transacciones/deposito", s.authMiddleware(http.HandlerFunc(s.handleDeposit))))
    mux.Handle("/transacciones/retiro", s.instrument("/transacciones/retiro", s.authMiddleware(http.HandlerFunc(s.handleWithdrawal))))
    mux.Handle("/transacciones/", s.instrument("/transacciones/{id}", s.authMiddleware(http.HandlerFunc(s.handleTransactionByID))))
    mux.Handle("/cuentas/", s.instrument("/cuentas/{id}/transacciones", s.authMiddleware(http.HandlerFunc(s.handleAccountTransactions))))
    return s.requestIDMiddleware(mux)
}

type ctxKey int

const (
    clientIDKey ctxKey = iota
    requestIDKey
)

func clientIDFrom(ctx context.Context) string {
    id, _ := ctx.Value(clientIDKey).(string)
    return id
}

func requestIDFrom(ctx context.Context) string {
    id, _ := ctx.Value(requestIDKey).(string)
    return id
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        id := strings.TrimSpace(r.Header.Get("X-Request-Id"))
        if id == "" || len(id) > 64 {
            id = uuid.NewString()
        }
        w.Header().Set("X-Request-Id", id)
        next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
    })
}

// authMiddleware accepts expiring HS256 bearer tokens signed with the server
// secret and puts the subject (the client id) on the request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        raw := extractBearerToken(r.Header.Get("Authorization"))
        if raw == "" {
            writeError(w, http.StatusUnauthorized, "unauthorized")
            return
        }

        claims := &jwt.RegisteredClaims{}
        _, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
            return s.jwtSecret, nil
        }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
        if err != nil || strings.TrimSpace(claims.Subject) == "" {
            s.logEvent(r.Context(), "auth_rejected", zap.NamedError("reason", err))
            writeError(w, http.StatusUnauthorized, "unauthorized")
            return
        }

        ctx := context.WithValue(r.Context(), clientIDKey, claims.Subject)
        next.ServeHTTP(w, r.WithContext(ctx))
    })
}

func extractBearerToken(header string) string {
    if header == "" {
        return ""
    }
    parts := strings.SplitN(header, " ", 2)
    if len(parts) != 2 {
        return ""
    }
    if !strings.EqualFold(parts[0], "Bearer") {
        return ""
    }
    return strings.TrimSpace(parts[1])
}

type statusRecorder struct {
    http.ResponseWriter
    status int
}

func (r *statusRecorder) WriteHeader(code int) {
    r.status = code
    r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(route string, next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
        next.ServeHTTP(rec, r)
        s.metrics.RecordRequest(route, rec.status)
    })
}
