package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	LLM         LLMConfig         `mapstructure:"llm"`
	PriceFeed   PriceFeedConfig   `mapstructure:"price_feed"`
	Retriever   RetrieverConfig   `mapstructure:"retriever"`
	Anomaly     AnomalyConfig     `mapstructure:"anomaly"`
	Attestation AttestationConfig `mapstructure:"attestation"`
	Trade       TradeConfig       `mapstructure:"trade"`
	Chain       ChainConfig       `mapstructure:"chain"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Audit       AuditConfig       `mapstructure:"audit"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ServerConfig holds the listen ports of the four services. Only the one
// started by the current command is used.
type ServerConfig struct {
	AttestPort  string        `mapstructure:"attest_port"`
	TradePort   string        `mapstructure:"trade_port"`
	StorePort   string        `mapstructure:"store_port"`
	SinkPort    string        `mapstructure:"sink_port"`
	ShutdownTTL time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins []string      `mapstructure:"cors_origins"`
}

type AuthConfig struct {
	AdminKey string `mapstructure:"admin_key"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	ImportBatchSize int           `mapstructure:"import_batch_size"`
}

type RedisConfig struct {
	Addr           string        `mapstructure:"addr"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	ThresholdsKey  string        `mapstructure:"thresholds_key"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
	AuditListKey   string        `mapstructure:"audit_list_key"`
	AuditListMax   int           `mapstructure:"audit_list_max"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LLMConfig struct {
	Provider        string        `mapstructure:"provider"`
	Model           string        `mapstructure:"model"`
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type PriceFeedConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	QuoteAsset string        `mapstructure:"quote_asset"`
	Timeout    time.Duration `mapstructure:"timeout"`
	// Stream keeps a websocket ticker cache for the listed symbols and falls
	// back to REST when the cached price is stale.
	Stream        bool          `mapstructure:"stream"`
	StreamURL     string        `mapstructure:"stream_url"`
	StreamSymbols []string      `mapstructure:"stream_symbols"`
	StaleAfter    time.Duration `mapstructure:"stale_after"`
}

type RetrieverConfig struct {
	// StoreURL points the agents at a remote trade store. Empty means the
	// agents query the database (or memory) directly.
	StoreURL     string        `mapstructure:"store_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	WindowRadius int           `mapstructure:"window_radius"`
	Limit        int           `mapstructure:"limit"`
}

type AnomalyConfig struct {
	Rules             []string      `mapstructure:"rules"`
	DynamicThresholds bool          `mapstructure:"dynamic_thresholds"`
	TradeAmount       float64       `mapstructure:"trade_amount"`
	PriceDeviation    float64       `mapstructure:"price_deviation"`
	TradeFrequency    float64       `mapstructure:"trade_frequency"`
	Volatility        float64       `mapstructure:"volatility_threshold"`
	HistoryWindow     time.Duration `mapstructure:"history_window"`
	DeriveFrequency   bool          `mapstructure:"derive_frequency"`
}

type AttestationConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
	AgentID  string        `mapstructure:"agent_id"`
}

type TradeConfig struct {
	AgentID       string  `mapstructure:"agent_id"`
	HistorySymbol string  `mapstructure:"history_symbol"`
	MaxNotional   float64 `mapstructure:"max_notional"`
}

type ChainConfig struct {
	RPCURL      string        `mapstructure:"rpc_url"`
	ChainID     int64         `mapstructure:"chain_id"`
	PrivateKey  string        `mapstructure:"private_key"`
	EASAddress  string        `mapstructure:"eas_address"`
	SchemaUID   string        `mapstructure:"schema_uid"`
	Recipient   string        `mapstructure:"recipient"`
	Timeout     time.Duration `mapstructure:"timeout"`
	ReceiptPoll time.Duration `mapstructure:"receipt_poll"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type AuditConfig struct {
	LogDir string `mapstructure:"log_dir"`
}

// Load reads configuration from an optional YAML file, a .env file and
// ATTESTGATE_* environment variables.
// e.g. ATTESTGATE_LLM_API_KEY, ATTESTGATE_DATABASE_DSN
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	v := viper.New()
	v.SetEnvPrefix("attestgate")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("server.attest_port", "5000")
	v.SetDefault("server.trade_port", "5001")
	v.SetDefault("server.store_port", "6000")
	v.SetDefault("server.sink_port", "3000")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("auth.admin_key", "")

	// Keys without a meaningful default are still registered so that
	// AutomaticEnv can populate them during Unmarshal.
	v.SetDefault("database.dsn", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_output_tokens", 0)
	v.SetDefault("retriever.store_url", "")
	v.SetDefault("price_feed.stream_symbols", []string{})
	v.SetDefault("chain.rpc_url", "")
	v.SetDefault("chain.private_key", "")
	v.SetDefault("chain.recipient", "")

	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.import_batch_size", 1000)

	v.SetDefault("redis.thresholds_key", "attestgate:thresholds")
	v.SetDefault("redis.idempotency_ttl", "24h")
	v.SetDefault("redis.audit_list_key", "audit_logs")
	v.SetDefault("redis.audit_list_max", 10000)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", "30s")

	v.SetDefault("price_feed.base_url", "https://api.binance.com")
	v.SetDefault("price_feed.quote_asset", "USDC")
	v.SetDefault("price_feed.timeout", "5s")
	v.SetDefault("price_feed.stream", false)
	v.SetDefault("price_feed.stream_url", "wss://stream.binance.com:9443/ws")
	v.SetDefault("price_feed.stale_after", "10s")

	v.SetDefault("retriever.timeout", "10s")
	v.SetDefault("retriever.window_radius", 200)
	v.SetDefault("retriever.limit", 100)

	v.SetDefault("anomaly.rules", []string{"trade_amount", "price_deviation", "trade_frequency", "volatility"})
	v.SetDefault("anomaly.dynamic_thresholds", true)
	v.SetDefault("anomaly.trade_amount", 100000.0)
	v.SetDefault("anomaly.price_deviation", 0.2)
	v.SetDefault("anomaly.trade_frequency", 10.0)
	v.SetDefault("anomaly.volatility_threshold", 0.5)
	v.SetDefault("anomaly.history_window", "24h")
	v.SetDefault("anomaly.derive_frequency", false)

	v.SetDefault("attestation.endpoint", "http://localhost:3000/attest")
	v.SetDefault("attestation.timeout", "10s")
	v.SetDefault("attestation.agent_id", "attestation_agent")

	v.SetDefault("trade.agent_id", "emulated_agent_1")
	v.SetDefault("trade.history_symbol", "ETH")
	v.SetDefault("trade.max_notional", 1500.0)

	// Sepolia EAS deployment and the registered agent schema.
	v.SetDefault("chain.chain_id", 11155111)
	v.SetDefault("chain.eas_address", "0xC2679fBD37d54388Ce493F1DB75320D236e1815e")
	v.SetDefault("chain.schema_uid", "0x417e7ac933ef1ac79862fa06044e1cdbb65ebd62e5f2ab5816899dad06edf459")
	v.SetDefault("chain.timeout", "2m")
	v.SetDefault("chain.receipt_poll", "2s")

	v.SetDefault("rate_limit.rps", 20.0)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("audit.log_dir", "./logs")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

var knownRules = map[string]bool{
	"trade_amount":    true,
	"price_deviation": true,
	"trade_frequency": true,
	"volatility":      true,
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Retriever.WindowRadius < 0 {
		return fmt.Errorf("retriever.window_radius cannot be negative")
	}
	if c.Retriever.Limit <= 0 {
		return fmt.Errorf("retriever.limit must be greater than zero")
	}
	if c.Anomaly.TradeAmount < 0 || c.Anomaly.PriceDeviation < 0 ||
		c.Anomaly.TradeFrequency < 0 || c.Anomaly.Volatility < 0 {
		return fmt.Errorf("anomaly thresholds cannot be negative")
	}
	for _, rule := range c.Anomaly.Rules {
		if !knownRules[strings.TrimSpace(rule)] {
			return fmt.Errorf("anomaly.rules: unknown rule %q", rule)
		}
	}
	if c.Trade.MaxNotional <= 0 {
		return fmt.Errorf("trade.max_notional must be greater than zero")
	}
	if c.Database.ImportBatchSize <= 0 {
		return fmt.Errorf("database.import_batch_size must be greater than zero")
	}
	return nil
}
