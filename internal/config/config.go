package config

import (
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/shopspring/decimal"
    "github.com/spf13/viper"

    "bankpost/internal/posting"
    "bankpost/internal/telemetry"
)

const (
    StorePostgres = "postgres"
    StoreMemory   = "memory"
)

// Config is read from the environment, optionally layered over the YAML file
// named by CONFIG_FILE. Keys in the file use the lower-case env names.
type Config struct {
    Port     string `mapstructure:"port"`
    Store    string `mapstructure:"store"`
    SeedFile string `mapstructure:"seed_file"`
    LogLevel string `mapstructure:"log_level"`

    DatabaseURL string `mapstructure:"database_url"`
    DBHost      string `mapstructure:"db_host"`
    DBPort      string `mapstructure:"db_port"`
    DBUser      string `mapstructure:"db_user"`
    DBPassword  string `mapstructure:"db_password"`
    DBName      string `mapstructure:"db_name"`
    DBSSLMode   string `mapstructure:"db_sslmode"`

    JWTSecret string        `mapstructure:"jwt_secret"`
    RedisAddr string        `mapstructure:"redis_addr"`
    LockTTL   time.Duration `mapstructure:"lock_ttl"`

    ServiceName   string `mapstructure:"service_name"`
    TraceExporter string `mapstructure:"trace_exporter"`
    OTLPEndpoint  string `mapstructure:"otlp_endpoint"`

    FeeDeposit            string `mapstructure:"fee_deposit"`
    FeeWithdrawalCard     string `mapstructure:"fee_withdrawal_card"`
    FeeWithdrawalCardless string `mapstructure:"fee_withdrawal_cardless"`
    FeeReceipt            string `mapstructure:"fee_receipt"`
    ChargeFees            bool   `mapstructure:"charge_fees"`

    CardMaxWithdrawal string        `mapstructure:"card_max_withdrawal"`
    CardAID           string        `mapstructure:"card_aid"`
    CardP22           string        `mapstructure:"card_p22"`
    CardP38           string        `mapstructure:"card_p38"`
    CardInterbankCost string        `mapstructure:"card_interbank_cost"`
    CardlessCodeTTL   time.Duration `mapstructure:"cardless_code_ttl"`
}

func setDefaults(v *viper.Viper) {
    d := posting.DefaultConfig()

    v.SetDefault("port", "8080")
    v.SetDefault("store", StorePostgres)
    v.SetDefault("seed_file", "")
    v.SetDefault("log_level", "info")

    v.SetDefault("database_url", "")
    v.SetDefault("db_host", "localhost")
    v.SetDefault("db_port", "5432")
    v.SetDefault("db_user", "")
    v.SetDefault("db_password", "")
    v.SetDefault("db_name", "")
    v.SetDefault("db_sslmode", "disable")

    v.SetDefault("jwt_secret", "")
    v.SetDefault("redis_addr", "")
    v.SetDefault("lock_ttl", "10s")

    v.SetDefault("service_name", "bankpost")
    v.SetDefault("trace_exporter", telemetry.ExporterNone)
    v.SetDefault("otlp_endpoint", "localhost:4317")

    v.SetDefault("fee_deposit", d.Fees.Deposit.StringFixed(2))
    v.SetDefault("fee_withdrawal_card", d.Fees.CardWithdrawal.StringFixed(2))
    v.SetDefault("fee_withdrawal_cardless", d.Fees.CardlessWithdrawal.StringFixed(2))
    v.SetDefault("fee_receipt", d.Fees.Receipt.StringFixed(2))
    v.SetDefault("charge_fees", d.ChargeFees)

    v.SetDefault("card_max_withdrawal", d.CardNetwork.MaxWithdrawal.StringFixed(2))
    v.SetDefault("card_aid", d.CardNetwork.AID)
    v.SetDefault("card_p22", d.CardNetwork.P22)
    v.SetDefault("card_p38", d.CardNetwork.P38)
    v.SetDefault("card_interbank_cost", d.CardNetwork.InterbankCost.StringFixed(2))
    v.SetDefault("cardless_code_ttl", d.CardlessCodeValidity.String())
}

// Load reads configuration from the environment. When CONFIG_FILE is set the
// YAML file it names is read first and the environment overrides it.
func Load() (Config, error) {
    v := viper.New()
    setDefaults(v)
    v.AutomaticEnv()

    if path := strings.TrimSpace(v.GetString("config_file")); path != "" {
        v.SetConfigFile(path)
        v.SetConfigType("yaml")
        if err := v.ReadInConfig(); err != nil {
            return Config{}, fmt.Errorf("read config %s: %w", path, err)
        }
    }

    var cfg Config
    if err := v.Unmarshal(&cfg); err != nil {
        return Config{}, fmt.Errorf("decode config: %w", err)
    }
    if err := cfg.resolve(); err != nil {
        return Config{}, err
    }
    return cfg, nil
}

func (c *Config) resolve() error {
    c.Port = strings.TrimSpace(c.Port)
    c.JWTSecret = strings.TrimSpace(c.JWTSecret)
    if c.JWTSecret == "" {
        return errors.New("JWT_SECRET is required")
    }

    c.TraceExporter = strings.ToLower(strings.TrimSpace(c.TraceExporter))
    switch c.TraceExporter {
    case telemetry.ExporterNone:
    case telemetry.ExporterOTLP:
        if strings.TrimSpace(c.OTLPEndpoint) == "" {
            return errors.New("OTLP_ENDPOINT is required when TRACE_EXPORTER is otlp")
        }
    default:
        return fmt.Errorf("TRACE_EXPORTER must be %q or %q, got %q", telemetry.ExporterNone, telemetry.ExporterOTLP, c.TraceExporter)
    }

    switch c.Store {
    case StoreMemory:
        return nil
    case StorePostgres:
    default:
        return fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
    }

    c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
    if c.DatabaseURL != "" {
        return nil
    }
    if c.DBUser == "" || c.DBPassword == "" || c.DBName == "" {
        return errors.New("DATABASE_URL or DB_USER/DB_PASSWORD/DB_NAME are required")
    }
    c.DatabaseURL = fmt.Sprintf(
        "host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
        c.DBHost,
        c.DBPort,
        c.DBUser,
        c.DBPassword,
        c.DBName,
        c.DBSSLMode,
    )
    return nil
}

type decimalField struct {
    key string
    raw string
    dst *decimal.Decimal
}

// PostingConfig converts the fee and card network settings and validates them.
func (c Config) PostingConfig() (posting.Config, error) {
    pc := posting.Config{
        CardNetwork: posting.CardNetwork{
            AID: c.CardAID,
            P22: c.CardP22,
            P38: c.CardP38,
        },
        ChargeFees:           c.ChargeFees,
        CardlessCodeValidity: c.CardlessCodeTTL,
    }

    fields := []decimalField{
        {"FEE_DEPOSIT", c.FeeDeposit, &pc.Fees.Deposit},
        {"FEE_WITHDRAWAL_CARD", c.FeeWithdrawalCard, &pc.Fees.CardWithdrawal},
        {"FEE_WITHDRAWAL_CARDLESS", c.FeeWithdrawalCardless, &pc.Fees.CardlessWithdrawal},
        {"FEE_RECEIPT", c.FeeReceipt, &pc.Fees.Receipt},
        {"CARD_MAX_WITHDRAWAL", c.CardMaxWithdrawal, &pc.CardNetwork.MaxWithdrawal},
        {"CARD_INTERBANK_COST", c.CardInterbankCost, &pc.CardNetwork.InterbankCost},
    }
    for _, f := range fields {
        d, err := decimal.NewFromString(strings.TrimSpace(f.raw))
        if err != nil {
            return posting.Config{}, fmt.Errorf("%s: %w", f.key, err)
        }
        *f.dst = d.Round(2)
    }

    if err := pc.Validate(); err != nil {
        return posting.Config{}, err
    }
    return pc, nil
}

func (c Config) TelemetryOptions() telemetry.Options {
    return telemetry.Options{
        ServiceName: c.ServiceName,
        Exporter:    c.TraceExporter,
        Endpoint:    c.OTLPEndpoint,
    }
}
