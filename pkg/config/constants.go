package config

// EnvPrefix is passed to envconfig. Tagged fields resolve through the bare tag
// name fallback, so the tags below are the real variable names.
const EnvPrefix = "WALLETCORE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "WALLETCORE_APP_ENV"
	EnvPort     = "WALLETCORE_APP_PORT"
	EnvLogLevel = "WALLETCORE_LOG_LEVEL"

	EnvDBDSN  = "WALLETCORE_DB_DSN"
	EnvDBHost = "WALLETCORE_DB_HOST"
	EnvDBUser = "WALLETCORE_DB_USER"
	EnvDBName = "WALLETCORE_DB_NAME"

	EnvRedisURL = "WALLETCORE_REDIS_URL"

	EnvJWTSecret = "WALLETCORE_JWT_SECRET"
	EnvJWTIssuer = "WALLETCORE_JWT_ISSUER"

	EnvGCPProjectID           = "WALLETCORE_GCP_PROJECT_ID"
	EnvPubSubLedgerExportSub  = "WALLETCORE_PUBSUB_LEDGER_EXPORT_SUBSCRIPTION"
	EnvMarketplaceCommission  = "WALLETCORE_MARKETPLACE_COMMISSION_BPS"
	EnvReconLowThreshold      = "WALLETCORE_RECON_LOW_THRESHOLD"
	EnvReconMediumThreshold   = "WALLETCORE_RECON_MEDIUM_THRESHOLD"
	EnvWalletMaxAttempts      = "WALLETCORE_WALLET_MAX_ATTEMPTS"
	EnvMarketplacePlatformUID = "WALLETCORE_MARKETPLACE_PLATFORM_USER_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
