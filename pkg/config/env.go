package config

const (
	EnvPrefix = "HOTMESS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv    = "HOTMESS_APP_ENV"
	EnvPort      = "HOTMESS_APP_PORT"
	EnvLogLevel  = "HOTMESS_LOG_LEVEL"
	EnvLogFormat = "HOTMESS_LOG_FORMAT"

	EnvDBDSN  = "HOTMESS_DB_DSN"
	EnvDBHost = "HOTMESS_DB_HOST"
	EnvDBUser = "HOTMESS_DB_USER"
	EnvDBName = "HOTMESS_DB_NAME"

	EnvRedisURL = "HOTMESS_REDIS_URL"

	EnvJWTSecret = "HOTMESS_JWT_SECRET"
	EnvJWTIssuer = "HOTMESS_JWT_ISSUER"

	EnvStripeAPIKey        = "HOTMESS_STRIPE_API_KEY"
	EnvStripeWebhookSecret = "HOTMESS_STRIPE_WEBHOOK_SECRET"

	EnvPlatformFeeRate    = "HOTMESS_PLATFORM_FEE_RATE"
	EnvXPPerMinorUnit     = "HOTMESS_XP_PER_MINOR_UNIT"
	EnvCreditPriceCents   = "HOTMESS_CREDIT_PRICE_CENTS"
	EnvPickupRadiusMeters = "HOTMESS_PICKUP_RADIUS_METERS"
	EnvPlatformAccountID  = "HOTMESS_PLATFORM_ACCOUNT_ID"

	EnvGCPProjectID = "HOTMESS_GCP_PROJECT_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
