package config

// EnvPrefix scopes all environment variables for this service.
const EnvPrefix = "TOKOKU"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "TOKOKU_DB_DSN"
	EnvDBHost = "TOKOKU_DB_HOST"
	EnvDBUser = "TOKOKU_DB_USER"
	EnvDBName = "TOKOKU_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
