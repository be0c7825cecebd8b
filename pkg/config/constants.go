package config

// EnvPrefix is applied by envconfig when resolving configuration values.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "REGENMARKET_DB_DSN"
	EnvDBHost = "REGENMARKET_DB_HOST"
	EnvDBUser = "REGENMARKET_DB_USER"
	EnvDBName = "REGENMARKET_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
