package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// ConfigStruct is the glue for all configuration sections
type ConfigStruct struct {
	Common  CommonConf  `toml:"common"`
	Email   EmailConf   `toml:"email"`
	Payment PaymentConf `toml:"payment"`
}

// CommonConf is the data required for all services
type CommonConf struct {
	LogDir string `toml:"log_dir"`
	Debug  bool   `toml:"debug"`

	Host string `toml:"host"`
	Port int    `toml:"port"`

	DBDSN string `toml:"db_dsn"`

	// FlagsPath points at the JSON file the runtime flag registry is
	// persisted into.
	FlagsPath string `toml:"flags_path"`
}

type EmailConf struct {
	Enabled  bool   `toml:"enabled"`
	Host     string `toml:"host"`
	Username string `toml:"username"`
	Password string `toml:"password"`

	// NotifyAddress receives operational mails: campaign completions,
	// transfer discrepancies flagged for manual review, paused subscriptions.
	NotifyAddress string `toml:"notify_address"`
}

type PaymentConf struct {
	Provider string `toml:"provider"`
	Endpoint string `toml:"endpoint"`
	APIKey   string `toml:"api_key"`

	TimeoutSeconds int `toml:"timeout_seconds"`
}

var (
	Common  CommonConf
	Email   EmailConf
	Payment PaymentConf
)

func (c CommonConf) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads the TOML config into the package-level sections.
func Load(path string) error {
	var conf ConfigStruct
	if _, err := toml.DecodeFile(path, &conf); err != nil {
		return fmt.Errorf("couldn't decode config file: %w", err)
	}

	Common = conf.Common
	Email = conf.Email
	Payment = conf.Payment
	return nil
}

// Save rewrites the config file, normalizing formatting.
func Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(ConfigStruct{Common: Common, Email: Email, Payment: Payment})
}
