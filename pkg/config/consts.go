package config

// EnvPrefix is passed to envconfig; individual fields carry the full names.
const EnvPrefix = "MALLHIVE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "MALLHIVE_DB_DSN"
	EnvDBHost = "MALLHIVE_DB_HOST"
	EnvDBUser = "MALLHIVE_DB_USER"
	EnvDBName = "MALLHIVE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
