package config

import (
	"os"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// LoadLedgerConfig reads and parses the ledger.yml file
func LoadLedgerConfig(path string) (*LedgerConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var cfgFile ConfigFile
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfgFile); err != nil {
		return nil, err
	}
	return &cfgFile.Config, nil
}

// DatabaseTuning carries the retry knobs for the Postgres layer.
type DatabaseTuning struct {
	ConnectRetries      int `ini:"connect_retries"`
	ConnectRetryDelayMs int `ini:"connect_retry_delay_ms"`
	TxRetries           int `ini:"tx_retries"`
}

// DefaultDatabaseTuning matches the values used when no tuning file is given.
func DefaultDatabaseTuning() *DatabaseTuning {
	return &DatabaseTuning{
		ConnectRetries:      5,
		ConnectRetryDelayMs: 3000,
		TxRetries:           10,
	}
}

// LoadDatabaseTuning reads the [database] section from an .ini file
func LoadDatabaseTuning(path string) (*DatabaseTuning, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	dbSection := cfg.Section("database")
	tuning := DefaultDatabaseTuning()
	err = dbSection.MapTo(tuning)
	if err != nil {
		return nil, err
	}
	return tuning, nil
}
