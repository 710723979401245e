package memory

import (
    "encoding/json"
    "fmt"
    "os"
    "time"

    "github.com/shopspring/decimal"

    "bankpost/internal/posting"
)

type Seed struct {
    Accounts []SeedAccount `json:"cuentas"`
    Cards    []SeedCard    `json:"tarjetas"`
    Tellers  []SeedTeller  `json:"cajeros"`
}

type SeedAccount struct {
    ID          string          `json:"cuenta_id"`
    ClientID    string          `json:"cliente_id"`
    Name        string          `json:"cuenta_nombre"`
    Balance     decimal.Decimal `json:"cuenta_saldo"`
    OpenedAt    time.Time       `json:"cuenta_apertura"`
    Status      string          `json:"cuenta_estado"`
    WebLimit    decimal.Decimal `json:"cuenta_limite_trans_web"`
    MobileLimit decimal.Decimal `json:"cuenta_limite_trans_movil"`
}

type SeedCard struct {
    ID        string `json:"tarjeta_id"`
    AccountID string `json:"cuenta_id"`
    Status    string `json:"tarjeta_estado"`
}

type SeedTeller struct {
    ID       string `json:"cajero_id"`
    Status   string `json:"cajero_estado"`
    Location string `json:"cajero_ubicacion"`
    Type     string `json:"cajero_tipo"`
}

// LoadSeed reads a JSON seed file into the store.
func (s *Store) LoadSeed(path string) error {
    data, err := os.ReadFile(path)
    if err != nil {
        return err
    }
    var seed Seed
    if err := json.Unmarshal(data, &seed); err != nil {
        return fmt.Errorf("decode seed %s: %w", path, err)
    }
    s.Apply(seed)
    return nil
}

func (s *Store) Apply(seed Seed) {
    for _, a := range seed.Accounts {
        s.PutAccount(posting.Account{
            ID:          a.ID,
            ClientID:    a.ClientID,
            Name:        a.Name,
            Balance:     a.Balance.Round(2),
            OpenedAt:    a.OpenedAt,
            Status:      posting.Status(a.Status),
            WebLimit:    a.WebLimit.Round(2),
            MobileLimit: a.MobileLimit.Round(2),
        })
    }
    for _, c := range seed.Cards {
        s.PutCard(posting.Card{ID: c.ID, AccountID: c.AccountID, Status: posting.Status(c.Status)})
    }
    for _, t := range seed.Tellers {
        s.PutTeller(posting.Teller{ID: t.ID, Status: posting.Status(t.Status), Location: t.Location, Type: t.Type})
    }
}
