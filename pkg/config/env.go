package config

// EnvPrefix is passed to envconfig; individual fields carry the fully
// prefixed variable names so the prefix stays empty here.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "TIENDLY_DB_DSN"
	EnvDBHost = "TIENDLY_DB_HOST"
	EnvDBUser = "TIENDLY_DB_USER"
	EnvDBName = "TIENDLY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
