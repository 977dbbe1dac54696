package config

// EnvPrefix is handed to envconfig; every field carries its full variable name.
const EnvPrefix = "CARDAPY"

const (
	AppEnvDev     = "dev"
	AppEnvStaging = "staging"
	AppEnvProd    = "production"
)

const (
	EnvAppEnv         = "CARDAPY_APP_ENV"
	EnvPort           = "CARDAPY_APP_PORT"
	EnvPlatformDomain = "CARDAPY_PLATFORM_DOMAIN"

	EnvDBDSN          = "CARDAPY_DB_DSN"
	EnvDBHost         = "CARDAPY_DB_HOST"
	EnvDBUser         = "CARDAPY_DB_USER"
	EnvDBName         = "CARDAPY_DB_NAME"
	EnvTenantDBPrefix = "CARDAPY_TENANT_DB_BASE"

	EnvRedisURL = "CARDAPY_REDIS_URL"

	EnvSessionSecret = "CARDAPY_SESSION_SECRET"

	EnvGatewayBaseURL = "CARDAPY_GATEWAY_BASE_URL"

	EnvGCPProjectID       = "CARDAPY_GCP_PROJECT_ID"
	EnvPubSubSearchTopic  = "CARDAPY_PUBSUB_SEARCH_TOPIC"
	EnvKafkaBrokers       = "CARDAPY_KAFKA_BROKERS"
	EnvKafkaOrderTopic    = "CARDAPY_KAFKA_ORDER_EVENTS_TOPIC"
	EnvReconcileThreshold = "CARDAPY_RECONCILE_STALE_AFTER"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
