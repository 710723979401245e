package posting

import (
    "context"
    "crypto/rand"
    "errors"
    "fmt"
    "math/big"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/shopspring/decimal"
    "go.opentelemetry.io/otel"
    "go.opentelemetry.io/otel/attribute"
    "go.opentelemetry.io/otel/codes"
    "go.opentelemetry.io/otel/trace"
    "go.uber.org/zap"
)

// Poster validates and executes deposits and withdrawals. Each posting runs
// under the account's lock and inside a single unit of work.
type Poster struct {
    uow     UnitOfWork
    cfg     Config
    locker  Locker
    now     func() time.Time
    newID   func() string
    newCode func() (string, error)
    logger  *zap.Logger
    tracer  trace.Tracer
}

const maxIDAttempts = 5

type Option func(*Poster)

func WithLocker(l Locker) Option {
    return func(p *Poster) { p.locker = l }
}

func WithClock(now func() time.Time) Option {
    return func(p *Poster) { p.now = now }
}

func WithIDGenerator(fn func() string) Option {
    return func(p *Poster) { p.newID = fn }
}

func WithCodeGenerator(fn func() (string, error)) Option {
    return func(p *Poster) { p.newCode = fn }
}

func WithLogger(l *zap.Logger) Option {
    return func(p *Poster) { p.logger = l }
}

func WithTracer(t trace.Tracer) Option {
    return func(p *Poster) { p.tracer = t }
}

func New(uow UnitOfWork, cfg Config, opts ...Option) (*Poster, error) {
    if err := cfg.Validate(); err != nil {
        return nil, fmt.Errorf("posting config: %w", err)
    }
    p := &Poster{
        uow:     uow,
        cfg:     cfg,
        locker:  NewKeyedLocker(),
        now:     time.Now,
        newID:   NewTransactionID,
        newCode: newAccessCode,
        logger:  zap.NewNop(),
        tracer:  otel.Tracer("bankpost/posting"),
    }
    for _, opt := range opts {
        opt(p)
    }
    return p, nil
}

// NewTransactionID returns 8 uppercase hex characters taken from a random UUID.
func NewTransactionID() string {
    return strings.ToUpper(uuid.NewString()[:8])
}

func newAccessCode() (string, error) {
    n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
    if err != nil {
        return "", err
    }
    return fmt.Sprintf("%06d", n.Int64()), nil
}

func (p *Poster) PostDeposit(ctx context.Context, req DepositRequest) (Result, error) {
    ctx, span := p.tracer.Start(ctx, "posting.deposit", trace.WithAttributes(
        attribute.String("account.id", req.AccountID),
        attribute.Bool("receipt", req.WantReceipt),
    ))
    defer span.End()

    if err := checkDepositRequest(req); err != nil {
        return Result{}, p.fail(span, err)
    }

    var res Result
    err := p.withAccountLock(ctx, req.AccountID, func(ctx context.Context) error {
        return p.withinTx(ctx, func(ctx context.Context, tx Tx) error {
            acc, err := loadAccount(ctx, tx, req.AccountID, req.ClientID)
            if err != nil {
                return err
            }
            if err := checkLimit(req.Amount, acc.WebLimit, "web"); err != nil {
                return err
            }
            if req.WantReceipt {
                if _, err := loadTeller(ctx, tx, req.TellerID); err != nil {
                    return err
                }
            }

            delta := req.Amount
            if p.cfg.ChargeFees {
                delta = delta.Sub(p.fees(p.cfg.Fees.Deposit, req.WantReceipt))
                if acc.Balance.Add(delta).IsNegative() {
                    return fmt.Errorf("%w: fees exceed deposit and balance", ErrInsufficientFunds)
                }
            }

            t := Transaction{
                ID:        p.newID(),
                AccountID: acc.ID,
                Kind:      KindDeposit,
                Amount:    req.Amount,
                Cost:      p.cfg.Fees.Deposit,
                CreatedAt: p.now().UTC(),
                Receipt:   req.WantReceipt,
            }
            detail := DepositDetail{
                TransactionID: t.ID,
                AccountID:     acc.ID,
                Amount:        req.Amount,
            }
            receipt, err := p.write(ctx, tx, t, detail, delta, req.TellerID)
            if err != nil {
                return err
            }
            res = Result{TransactionID: t.ID, Kind: t.Kind, Receipt: receipt}
            return nil
        })
    })
    if err != nil {
        return Result{}, p.fail(span, err)
    }

    span.SetAttributes(attribute.String("transaction.id", res.TransactionID))
    p.logger.Debug("deposit posted",
        zap.String("transaction_id", res.TransactionID),
        zap.String("account_id", req.AccountID),
        zap.String("amount", req.Amount.StringFixed(2)))
    return res, nil
}

func (p *Poster) PostWithdrawal(ctx context.Context, req WithdrawalRequest) (Result, error) {
    ctx, span := p.tracer.Start(ctx, "posting.withdrawal", trace.WithAttributes(
        attribute.String("account.id", req.AccountID),
        attribute.Bool("card", req.UseCard),
        attribute.Bool("receipt", req.WantReceipt),
    ))
    defer span.End()

    if err := checkWithdrawalRequest(req); err != nil {
        return Result{}, p.fail(span, err)
    }

    kind, fee := KindWithdrawalCardless, p.cfg.Fees.CardlessWithdrawal
    if req.UseCard {
        kind, fee = KindWithdrawalCard, p.cfg.Fees.CardWithdrawal
    }

    var res Result
    err := p.withAccountLock(ctx, req.AccountID, func(ctx context.Context) error {
        return p.withinTx(ctx, func(ctx context.Context, tx Tx) error {
            acc, err := loadAccount(ctx, tx, req.AccountID, req.ClientID)
            if err != nil {
                return err
            }
            if req.UseCard {
                if _, err := loadCard(ctx, tx, req.CardID, acc.ID); err != nil {
                    return err
                }
            }
            if req.UseCard || req.WantReceipt {
                if _, err := loadTeller(ctx, tx, req.TellerID); err != nil {
                    return err
                }
            }
            if req.UseCard {
                if err := checkLimit(req.Amount, acc.MobileLimit, "mobile"); err != nil {
                    return err
                }
            }

            debit := req.Amount
            if p.cfg.ChargeFees {
                debit = debit.Add(p.fees(fee, req.WantReceipt))
            }
            if err := checkFunds(acc.Balance, debit); err != nil {
                return err
            }

            t := Transaction{
                ID:        p.newID(),
                AccountID: acc.ID,
                Kind:      kind,
                Amount:    req.Amount,
                Cost:      fee,
                CreatedAt: p.now().UTC(),
                Receipt:   req.WantReceipt,
            }

            var detail Detail
            var code string
            if req.UseCard {
                network := p.cfg.CardNetwork
                detail = CardWithdrawalDetail{
                    TransactionID: t.ID,
                    AccountID:     acc.ID,
                    CardID:        req.CardID,
                    Amount:        req.Amount,
                    MaxAmount:     network.MaxWithdrawal,
                    AID:           network.AID,
                    P22:           network.P22,
                    P38:           network.P38,
                    InterbankCost: network.InterbankCost,
                }
            } else {
                code = req.AccessCode
                if code == "" {
                    if code, err = p.newCode(); err != nil {
                        return fmt.Errorf("generate access code: %w", err)
                    }
                }
                validity := req.CodeValidity
                if validity == 0 {
                    validity = p.cfg.CardlessCodeValidity
                }
                detail = CardlessWithdrawalDetail{
                    TransactionID:    t.ID,
                    AccountID:        acc.ID,
                    Amount:           req.Amount,
                    BeneficiaryPhone: req.BeneficiaryPhone,
                    AccessCode:       code,
                    CodeExpiresAt:    t.CreatedAt.Add(validity),
                }
            }

            receipt, err := p.write(ctx, tx, t, detail, debit.Neg(), req.TellerID)
            if err != nil {
                return err
            }
            res = Result{TransactionID: t.ID, Kind: kind, Receipt: receipt, AccessCode: code}
            return nil
        })
    })
    if err != nil {
        return Result{}, p.fail(span, err)
    }

    span.SetAttributes(attribute.String("transaction.id", res.TransactionID))
    p.logger.Debug("withdrawal posted",
        zap.String("transaction_id", res.TransactionID),
        zap.String("account_id", req.AccountID),
        zap.String("kind", string(kind)),
        zap.String("amount", req.Amount.StringFixed(2)))
    return res, nil
}

// write appends the transaction, its detail, the balance change and the
// optional receipt, in that order.
func (p *Poster) write(ctx context.Context, tx Tx, t Transaction, d Detail, delta decimal.Decimal, tellerID string) (*Receipt, error) {
    if err := tx.AppendTransaction(ctx, t); err != nil {
        return nil, err
    }
    if err := tx.AppendDetail(ctx, d); err != nil {
        return nil, err
    }
    if err := tx.AdjustBalance(ctx, t.AccountID, delta); err != nil {
        return nil, err
    }
    if !t.Receipt {
        return nil, nil
    }
    r := Receipt{
        TransactionID: t.ID,
        TellerID:      tellerID,
        Cost:          p.cfg.Fees.Receipt,
        IssuedAt:      t.CreatedAt,
    }
    if err := tx.AppendReceipt(ctx, r); err != nil {
        return nil, err
    }
    return &r, nil
}

func (p *Poster) fees(base decimal.Decimal, receipt bool) decimal.Decimal {
    if receipt {
        return base.Add(p.cfg.Fees.Receipt)
    }
    return base
}

// withinTx reruns fn in a fresh unit of work while the generated transaction
// id collides with an existing one.
func (p *Poster) withinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
    var err error
    for attempt := 1; attempt <= maxIDAttempts; attempt++ {
        err = p.uow.WithinTx(ctx, fn)
        if !errors.Is(err, ErrDuplicateTransaction) {
            return err
        }
        p.logger.Warn("transaction id collision", zap.Int("attempt", attempt))
    }
    return err
}

func (p *Poster) withAccountLock(ctx context.Context, accountID string, fn func(ctx context.Context) error) error {
    release, err := p.locker.Lock(ctx, accountLockKey(accountID))
    if err != nil {
        return fmt.Errorf("lock account %s: %w", accountID, err)
    }
    defer release()
    return fn(ctx)
}

// fail records err on the span. Anything outside the validation taxonomy is
// reported as ErrStorage; the cause stays in the chain for logging.
func (p *Poster) fail(span trace.Span, err error) error {
    span.RecordError(err)
    if IsDomain(err) {
        span.SetStatus(codes.Error, "rejected")
        return err
    }
    span.SetStatus(codes.Error, "storage failure")
    p.logger.Error("posting rolled back", zap.Error(err))
    return fmt.Errorf("%w: %w", ErrStorage, err)
}
