package config

import (
	"time"
)

type DB struct {
	Url             string        `envconfig:"URL"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS" default:"25"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"1h"`
	AutoMigrate     bool          `envconfig:"AUTO_MIGRATE" default:"true"`
}

type Redis struct {
	URL          string        `envconfig:"URL"`
	KeyPrefix    string        `envconfig:"KEY_PREFIX" default:"ledger:rates:"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
}

type RateLimit struct {
	MaxRequests int           `envconfig:"MAX_REQUESTS" default:"100"`
	Window      time.Duration `envconfig:"WINDOW" default:"1m"`
}

type Fee struct {
	CommissionRate float64 `envconfig:"COMMISSION_RATE" default:"0.01"`
}

// Retry configures the transaction and plain retry wrappers.
type Retry struct {
	TxMaxAttempts  int           `envconfig:"TX_MAX_ATTEMPTS" default:"3"`
	TxBaseDelay    time.Duration `envconfig:"TX_BASE_DELAY" default:"200ms"`
	TxMaxDelay     time.Duration `envconfig:"TX_MAX_DELAY" default:"10s"`
	MaxAttempts    int           `envconfig:"MAX_ATTEMPTS" default:"5"`
	BaseDelay      time.Duration `envconfig:"BASE_DELAY" default:"500ms"`
	MaxDelay       time.Duration `envconfig:"MAX_DELAY" default:"30s"`
	Jitter         time.Duration `envconfig:"JITTER" default:"1s"`
	AttemptTimeout time.Duration `envconfig:"ATTEMPT_TIMEOUT" default:"15s"`
}

// Rates configures the exchange-rate feeds and the snapshot refresh job.
type Rates struct {
	FiatURL         string        `envconfig:"FIAT_URL" default:"https://api.privatbank.ua/p24api/pubinfo?exchange&json&coursid=11"`
	CryptoURL       string        `envconfig:"CRYPTO_URL" default:"https://api.coingecko.com/api/v3/simple/price?ids=bitcoin,ethereum&vs_currencies=usd"`
	HTTPTimeout     time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"10m"`
	CacheTTL        time.Duration `envconfig:"CACHE_TTL" default:"15m"`
	DefaultUsdToUah string        `envconfig:"DEFAULT_USD_UAH" default:"41.0"`
	DefaultBtcToUsd string        `envconfig:"DEFAULT_BTC_USD" default:"60000"`
	DefaultEthToUsd string        `envconfig:"DEFAULT_ETH_USD" default:"3000"`
}

//revive:disable
type Blockchain struct {
	ApiUrl          string        `envconfig:"API_URL"`
	ApiKey          string        `envconfig:"API_KEY"`
	Timeout         time.Duration `envconfig:"TIMEOUT" default:"20s"`
	HotWalletBTC    string        `envconfig:"HOT_WALLET_BTC"`
	HotWalletETH    string        `envconfig:"HOT_WALLET_ETH"`
	BTCConfirmation int           `envconfig:"BTC_CONFIRMATIONS" default:"3"`
	ETHConfirmation int           `envconfig:"ETH_CONFIRMATIONS" default:"12"`
}

//revive:enable

// Settlement configures the deferred status check after a real blockchain send.
type Settlement struct {
	CheckDelay   time.Duration `envconfig:"CHECK_DELAY" default:"5s"`
	MaxChecks    int           `envconfig:"MAX_CHECKS" default:"1"`
	ResumeWindow time.Duration `envconfig:"RESUME_WINDOW" default:"24h"`
}

// Events selects where committed ledger events are published. An empty
// driver disables the feed.
type Events struct {
	Driver        string `envconfig:"DRIVER"`
	RedisURL      string `envconfig:"REDIS_URL"`
	RedisStream   string `envconfig:"REDIS_STREAM" default:"ledger:events"`
	RedisGroup    string `envconfig:"REDIS_GROUP" default:"ledger"`
	KafkaBrokers  string `envconfig:"KAFKA_BROKERS"`
	KafkaGroupID  string `envconfig:"KAFKA_GROUP_ID" default:"ledger"`
	TopicPrefix   string `envconfig:"TOPIC_PREFIX" default:"ledger.events"`
	SASLUsername  string `envconfig:"SASL_USERNAME"`
	SASLPassword  string `envconfig:"SASL_PASSWORD"`
	TLSEnabled    bool   `envconfig:"TLS_ENABLED"`
	TLSCAFile     string `envconfig:"TLS_CA_FILE"`
	TLSCertFile   string `envconfig:"TLS_CERT_FILE"`
	TLSKeyFile    string `envconfig:"TLS_KEY_FILE"`
	TLSSkipVerify bool   `envconfig:"TLS_SKIP_VERIFY"`
}

type Regulator struct {
	Username string `envconfig:"USERNAME" default:"regulator"`
	Password string `envconfig:"PASSWORD"`
}

type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"json"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[ledger]"`
}

type Server struct {
	Scheme          string        `envconfig:"SCHEME" default:"http"`
	Host            string        `envconfig:"HOST" default:"localhost"`
	Port            int           `envconfig:"PORT" default:"3000"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

type App struct {
	Env        string      `envconfig:"APP_ENV" default:"development"`
	Server     *Server     `envconfig:"SERVER"`
	Log        *Log        `envconfig:"LOG"`
	DB         *DB         `envconfig:"DATABASE"`
	Redis      *Redis      `envconfig:"REDIS"`
	RateLimit  *RateLimit  `envconfig:"RATE_LIMIT"`
	Fee        *Fee        `envconfig:"FEE"`
	Retry      *Retry      `envconfig:"RETRY"`
	Rates      *Rates      `envconfig:"RATES"`
	Blockchain *Blockchain `envconfig:"BLOCKCHAIN"`
	Settlement *Settlement `envconfig:"SETTLEMENT"`
	Regulator  *Regulator  `envconfig:"REGULATOR"`
	Events     *Events     `envconfig:"EVENTS"`
}
