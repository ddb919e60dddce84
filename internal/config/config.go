package config

import (
	"time"
)

// Config is the root application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Identity IdentityConfig `yaml:"identity"`
	Chat     ChatConfig     `yaml:"chat"`
	Import   ImportConfig   `yaml:"import"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"                env-required:"true"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"5"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"1"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
	CallTimeout     time.Duration `yaml:"call_timeout"       env:"DATABASE_CALL_TIMEOUT"       env-default:"0s"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// IdentityConfig holds the Keycloak admin API settings.
type IdentityConfig struct {
	BaseURL       string        `yaml:"base_url"        env:"IDENTITY_BASE_URL"        env-required:"true"`
	Realm         string        `yaml:"realm"           env:"IDENTITY_REALM"           env-default:"online-beratung"`
	AdminRealm    string        `yaml:"admin_realm"     env:"IDENTITY_ADMIN_REALM"     env-default:"master"`
	AdminClientID string        `yaml:"admin_client_id" env:"IDENTITY_ADMIN_CLIENT_ID" env-default:"admin-cli"`
	AdminUsername string        `yaml:"admin_username"  env:"IDENTITY_ADMIN_USERNAME"  env-required:"true"`
	AdminPassword string        `yaml:"admin_password"  env:"IDENTITY_ADMIN_PASSWORD"  env-required:"true"`
	DefaultRole   string        `yaml:"default_role"    env:"IDENTITY_DEFAULT_ROLE"    env-default:"user"`
	CallTimeout   time.Duration `yaml:"call_timeout"    env:"IDENTITY_CALL_TIMEOUT"    env-default:"0s"`
}

// ChatConfig holds the Rocket.Chat settings. The technical user manages
// rooms; the system user posts welcome messages and is a member of every
// asker room.
type ChatConfig struct {
	BaseURL           string        `yaml:"base_url"           env:"CHAT_BASE_URL"           env-required:"true"`
	TechnicalUsername string        `yaml:"technical_username" env:"CHAT_TECHNICAL_USERNAME" env-required:"true"`
	TechnicalPassword string        `yaml:"technical_password" env:"CHAT_TECHNICAL_PASSWORD" env-required:"true"`
	SystemUsername    string        `yaml:"system_username"    env:"CHAT_SYSTEM_USERNAME"    env-required:"true"`
	SystemPassword    string        `yaml:"system_password"    env:"CHAT_SYSTEM_PASSWORD"    env-required:"true"`
	PurgeWindow       time.Duration `yaml:"purge_window"       env:"CHAT_PURGE_WINDOW"       env-default:"24h"`
	CallTimeout       time.Duration `yaml:"call_timeout"       env:"CHAT_CALL_TIMEOUT"       env-default:"0s"`
}

// ImportConfig holds the batch import settings.
type ImportConfig struct {
	ProtocolPath         string `yaml:"protocol_path"           env:"IMPORT_PROTOCOL_PATH"           env-default:"./import-protocol.log"`
	ConsultingTypesDir   string `yaml:"consulting_types_dir"    env:"IMPORT_CONSULTING_TYPES_DIR"    env-default:"./consulting-types"`
	Charset              string `yaml:"charset"                 env:"IMPORT_CHARSET"                 env-default:"utf-8"`
	Delimiter            string `yaml:"delimiter"               env:"IMPORT_DELIMITER"               env-default:","`
	SkipHeader           bool   `yaml:"skip_header"             env:"IMPORT_SKIP_HEADER"             env-default:"false"`
	AgencyRoleDelimiter  string `yaml:"agency_role_delimiter"   env:"IMPORT_AGENCY_ROLE_DELIMITER"   env-default:","`
	AgencyRoleInnerDelim string `yaml:"agency_role_inner_delim" env:"IMPORT_AGENCY_ROLE_INNER_DELIM" env-default:";"`
	PasswordLength       int    `yaml:"password_length"         env:"IMPORT_PASSWORD_LENGTH"         env-default:"9"`
	MetricsTextfile      string `yaml:"metrics_textfile"        env:"IMPORT_METRICS_TEXTFILE"`
	DryRun               bool   `yaml:"dry_run"                 env:"IMPORT_DRY_RUN"                 env-default:"false"`
}
