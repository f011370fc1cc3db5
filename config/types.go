package config

// DatabaseConfig points the ledger core at its Postgres instance.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_sec"`
}

// LedgerConfig holds the configuration from ledger.yml
type LedgerConfig struct {
	Database DatabaseConfig `yaml:"database"`
}

// ConfigFile is the top-level structure for ledger.yml
type ConfigFile struct {
	Config LedgerConfig `yaml:"config"`
}
