package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Tenancy      TenancyConfig
	Redis        RedisConfig
	Cart         CartConfig
	Session      SessionConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	Gateway      GatewayConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Kafka        KafkaConfig
	Storage      StorageConfig
	Reconcile    ReconcileConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if cfg.Tenancy.DatabaseBase == "" {
		cfg.Tenancy.DatabaseBase = cfg.DB.DatabaseName()
	}
	return &cfg, nil
}

type AppConfig struct {
	Env            string `envconfig:"CARDAPY_APP_ENV" required:"true"`
	Port           string `envconfig:"CARDAPY_APP_PORT" required:"true"`
	LogLevel       string `envconfig:"CARDAPY_LOG_LEVEL" default:"info"`
	LogWarnStack   bool   `envconfig:"CARDAPY_LOG_WARN_STACK" default:"false"`
	PlatformDomain string `envconfig:"CARDAPY_PLATFORM_DOMAIN" default:"cardapy.local"`
	PublicScheme   string `envconfig:"CARDAPY_PUBLIC_SCHEME" default:"https"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "prod")
}

// PlatformURL returns the absolute URL of a platform-scoped path (webhooks, API domain).
func (a AppConfig) PlatformURL(path string) string {
	return fmt.Sprintf("%s://api.%s%s", a.scheme(), a.PlatformDomain, path)
}

// TenantURL returns the absolute URL of a path under the tenant's subdomain.
func (a AppConfig) TenantURL(subdomain, path string) string {
	return fmt.Sprintf("%s://%s.%s%s", a.scheme(), subdomain, a.PlatformDomain, path)
}

func (a AppConfig) scheme() string {
	if s := strings.TrimSpace(a.PublicScheme); s != "" {
		return s
	}
	return "https"
}

type DBConfig struct {
	DSN    string `envconfig:"CARDAPY_DB_DSN"`
	Driver string `envconfig:"CARDAPY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CARDAPY_DB_HOST"`
	LegacyPort     int    `envconfig:"CARDAPY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CARDAPY_DB_USER"`
	LegacyPassword string `envconfig:"CARDAPY_DB_PASSWORD"`
	LegacyName     string `envconfig:"CARDAPY_DB_NAME"`
	LegacySSLMode  string `envconfig:"CARDAPY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CARDAPY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CARDAPY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CARDAPY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CARDAPY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// DatabaseName extracts the database name from the DSN path.
func (db DBConfig) DatabaseName() string {
	if db.LegacyName != "" {
		return db.LegacyName
	}
	u, err := url.Parse(db.DSN)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

// WithDatabase returns a copy of the DSN pointing at another database on the same server.
func (db DBConfig) WithDatabase(name string) (string, error) {
	u, err := url.Parse(db.DSN)
	if err != nil {
		return "", fmt.Errorf("parsing dsn: %w", err)
	}
	if u.Scheme == "" {
		return "", fmt.Errorf("dsn must be a url")
	}
	u.Path = "/" + name
	return u.String(), nil
}

// TenancyConfig drives per-tenant resource isolation.
type TenancyConfig struct {
	DatabaseBase     string        `envconfig:"CARDAPY_TENANT_DB_BASE"`
	ConnectTimeout   time.Duration `envconfig:"CARDAPY_TENANT_CONNECT_TIMEOUT" default:"3s"`
	ProvisionTimeout time.Duration `envconfig:"CARDAPY_TENANT_PROVISION_TIMEOUT" default:"30s"`
	ShardMaxOpen     int           `envconfig:"CARDAPY_TENANT_DB_MAX_OPEN_CONNS" default:"5"`
	ShardMaxIdle     int           `envconfig:"CARDAPY_TENANT_DB_MAX_IDLE_CONNS" default:"2"`
	SQLiteDir        string        `envconfig:"CARDAPY_TENANT_SQLITE_DIR" default:"data"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CARDAPY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CARDAPY_REDIS_ADDR"`
	Password     string        `envconfig:"CARDAPY_REDIS_PASSWORD"`
	DB           int           `envconfig:"CARDAPY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CARDAPY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CARDAPY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CARDAPY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CARDAPY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CARDAPY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type CartConfig struct {
	TTL         time.Duration `envconfig:"CARDAPY_CART_TTL" default:"72h"`
	MaxQuantity int           `envconfig:"CARDAPY_CART_MAX_QUANTITY" default:"10"`
	UseMemory   bool          `envconfig:"CARDAPY_CART_IN_MEMORY" default:"false"`
}

type SessionConfig struct {
	Secret     string        `envconfig:"CARDAPY_SESSION_SECRET" required:"true"`
	Issuer     string        `envconfig:"CARDAPY_SESSION_ISSUER" default:"cardapy"`
	TTL        time.Duration `envconfig:"CARDAPY_SESSION_TTL" default:"720h"`
	CookieName string        `envconfig:"CARDAPY_SESSION_COOKIE" default:"cardapy_session"`
	Secure     bool          `envconfig:"CARDAPY_SESSION_COOKIE_SECURE" default:"true"`
}

// PasswordConfig tunes the Argon2id hashing of staff tokens.
type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"CARDAPY_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"CARDAPY_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"CARDAPY_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"CARDAPY_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"CARDAPY_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CARDAPY_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CARDAPY_AUTO_MIGRATE" default:"false"`
}

type GatewayConfig struct {
	BaseURL          string        `envconfig:"CARDAPY_GATEWAY_BASE_URL" default:"https://api.mercadopago.com"`
	Timeout          time.Duration `envconfig:"CARDAPY_GATEWAY_TIMEOUT" default:"10s"`
	PreferenceExpiry time.Duration `envconfig:"CARDAPY_GATEWAY_PREFERENCE_EXPIRY" default:"24h"`
	Currency         string        `envconfig:"CARDAPY_GATEWAY_CURRENCY" default:"BRL"`
	MaxInstallments  int           `envconfig:"CARDAPY_GATEWAY_MAX_INSTALLMENTS" default:"12"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CARDAPY_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CARDAPY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CARDAPY_GOOGLE_APPLICATION_CREDENTIALS"`
}

// PubSubConfig names the search-index topic. An empty topic disables the sink.
type PubSubConfig struct {
	SearchTopic string `envconfig:"CARDAPY_PUBSUB_SEARCH_TOPIC"`
}

type KafkaConfig struct {
	Brokers      []string      `envconfig:"CARDAPY_KAFKA_BROKERS"`
	OrderTopic   string        `envconfig:"CARDAPY_KAFKA_ORDER_EVENTS_TOPIC" default:"cardapy.order-events"`
	WriteTimeout time.Duration `envconfig:"CARDAPY_KAFKA_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether order events should be published.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && strings.TrimSpace(k.OrderTopic) != ""
}

type StorageConfig struct {
	BaseDir       string `envconfig:"CARDAPY_STORAGE_BASE_DIR" default:"storage/app/public"`
	PublicURLBase string `envconfig:"CARDAPY_STORAGE_PUBLIC_URL" default:"/storage"`
}

type ReconcileConfig struct {
	StaleAfter time.Duration `envconfig:"CARDAPY_RECONCILE_STALE_AFTER" default:"15m"`
	Interval   time.Duration `envconfig:"CARDAPY_RECONCILE_INTERVAL" default:"5m"`
	BatchSize  int           `envconfig:"CARDAPY_RECONCILE_BATCH_SIZE" default:"50"`
	LockTTL    time.Duration `envconfig:"CARDAPY_RECONCILE_LOCK_TTL" default:"4m"`
}

// RateLimitConfig bounds order placement and review submission per window.
type RateLimitConfig struct {
	Window               time.Duration `envconfig:"CARDAPY_RATE_LIMIT_WINDOW" default:"1m"`
	CheckoutIPLimit      int           `envconfig:"CARDAPY_RATE_LIMIT_CHECKOUT_IP" default:"20"`
	CheckoutSessionLimit int           `envconfig:"CARDAPY_RATE_LIMIT_CHECKOUT_SESSION" default:"5"`
	ReviewIPLimit        int           `envconfig:"CARDAPY_RATE_LIMIT_REVIEW_IP" default:"10"`
	ReviewSessionLimit   int           `envconfig:"CARDAPY_RATE_LIMIT_REVIEW_SESSION" default:"3"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"CARDAPY_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
