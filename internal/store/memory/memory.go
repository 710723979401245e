package memory

import (
    "context"
    "fmt"
    "sort"
    "sync"

    "github.com/shopspring/decimal"

    "bankpost/internal/posting"
)

// Store keeps accounts, instruments and the ledger in process. Writes made
// inside WithinTx are buffered and applied together on commit.
type Store struct {
    mu           sync.RWMutex
    accounts     map[string]posting.Account
    cards        map[string]posting.Card
    tellers      map[string]posting.Teller
    transactions map[string]posting.Transaction
    details      map[string]posting.Detail
    receipts     map[string]posting.Receipt
}

func New() *Store {
    return &Store{
        accounts:     make(map[string]posting.Account),
        cards:        make(map[string]posting.Card),
        tellers:      make(map[string]posting.Teller),
        transactions: make(map[string]posting.Transaction),
        details:      make(map[string]posting.Detail),
        receipts:     make(map[string]posting.Receipt),
    }
}

func (s *Store) PutAccount(a posting.Account) {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.accounts[a.ID] = a
}

func (s *Store) PutCard(c posting.Card) {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.cards[c.ID] = c
}

func (s *Store) PutTeller(t posting.Teller) {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.tellers[t.ID] = t
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx posting.Tx) error) error {
    tx := &memTx{
        store:  s,
        deltas: make(map[string]decimal.Decimal),
    }
    if err := fn(ctx, tx); err != nil {
        return err
    }
    if err := ctx.Err(); err != nil {
        return err
    }
    return s.commit(tx)
}

func (s *Store) commit(tx *memTx) error {
    s.mu.Lock()
    defer s.mu.Unlock()

    for id, delta := range tx.deltas {
        acc, ok := s.accounts[id]
        if !ok {
            return fmt.Errorf("commit: account %s: %w", id, posting.ErrNotFound)
        }
        if acc.Balance.Add(delta).IsNegative() {
            return fmt.Errorf("commit: account %s: %w", id, posting.ErrInsufficientFunds)
        }
    }
    for _, t := range tx.transactions {
        if _, exists := s.transactions[t.ID]; exists {
            return fmt.Errorf("commit: transaction %s: %w", t.ID, posting.ErrDuplicateTransaction)
        }
    }

    for id, delta := range tx.deltas {
        acc := s.accounts[id]
        acc.Balance = acc.Balance.Add(delta)
        s.accounts[id] = acc
    }
    for _, t := range tx.transactions {
        s.transactions[t.ID] = t
    }
    for _, d := range tx.details {
        s.details[d.TxID()] = d
    }
    for _, r := range tx.receipts {
        s.receipts[r.TransactionID] = r
    }
    return nil
}

func (s *Store) FindAccount(ctx context.Context, id string) (posting.Account, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()

    acc, ok := s.accounts[id]
    if !ok {
        return posting.Account{}, fmt.Errorf("account %s: %w", id, posting.ErrNotFound)
    }
    return acc, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (posting.Transaction, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()

    t, ok := s.transactions[id]
    if !ok {
        return posting.Transaction{}, fmt.Errorf("transaction %s: %w", id, posting.ErrNotFound)
    }
    return t, nil
}

func (s *Store) ListTransactions(ctx context.Context, accountID string, limit int) ([]posting.Transaction, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()

    var out []posting.Transaction
    for _, t := range s.transactions {
        if t.AccountID == accountID {
            out = append(out, t)
        }
    }
    sort.Slice(out, func(i, j int) bool {
        if out[i].CreatedAt.Equal(out[j].CreatedAt) {
            return out[i].ID > out[j].ID
        }
        return out[i].CreatedAt.After(out[j].CreatedAt)
    })
    if limit > 0 && len(out) > limit {
        out = out[:limit]
    }
    return out, nil
}

func (s *Store) Detail(transactionID string) (posting.Detail, bool) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    d, ok := s.details[transactionID]
    return d, ok
}

func (s *Store) Receipt(transactionID string) (posting.Receipt, bool) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    r, ok := s.receipts[transactionID]
    return r, ok
}

// Counts returns the number of committed transaction, detail and receipt rows.
func (s *Store) Counts() (transactions, details, receipts int) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return len(s.transactions), len(s.details), len(s.receipts)
}

type memTx struct {
    store        *Store
    deltas       map[string]decimal.Decimal
    transactions []posting.Transaction
    details      []posting.Detail
    receipts     []posting.Receipt
}

func (t *memTx) FindAccount(ctx context.Context, id string) (posting.Account, error) {
    acc, err := t.store.FindAccount(ctx, id)
    if err != nil {
        return posting.Account{}, err
    }
    if delta, ok := t.deltas[id]; ok {
        acc.Balance = acc.Balance.Add(delta)
    }
    return acc, nil
}

func (t *memTx) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) error {
    acc, err := t.FindAccount(ctx, id)
    if err != nil {
        return err
    }
    if acc.Balance.Add(delta).IsNegative() {
        return fmt.Errorf("adjust balance %s: %w", id, posting.ErrInsufficientFunds)
    }
    t.deltas[id] = t.deltas[id].Add(delta)
    return nil
}

func (t *memTx) FindCard(ctx context.Context, id, accountID string) (posting.Card, error) {
    t.store.mu.RLock()
    defer t.store.mu.RUnlock()

    c, ok := t.store.cards[id]
    if !ok || c.AccountID != accountID {
        return posting.Card{}, fmt.Errorf("card %s: %w", id, posting.ErrNotFound)
    }
    return c, nil
}

func (t *memTx) FindTeller(ctx context.Context, id string) (posting.Teller, error) {
    t.store.mu.RLock()
    defer t.store.mu.RUnlock()

    teller, ok := t.store.tellers[id]
    if !ok {
        return posting.Teller{}, fmt.Errorf("teller %s: %w", id, posting.ErrNotFound)
    }
    return teller, nil
}

func (t *memTx) AppendTransaction(ctx context.Context, tx posting.Transaction) error {
    t.transactions = append(t.transactions, tx)
    return nil
}

func (t *memTx) AppendDetail(ctx context.Context, d posting.Detail) error {
    t.details = append(t.details, d)
    return nil
}

func (t *memTx) AppendReceipt(ctx context.Context, r posting.Receipt) error {
    t.receipts = append(t.receipts, r)
    return nil
}
