// Package config loads the application configuration from config.yaml with
// FRADIAVOLO_* environment overrides.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/cache"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/notify"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/rowstore"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/search"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/tracing"
)

// Config holds all application configuration.
type Config struct {
	Environment   string        `mapstructure:"environment"`
	ServerAddress string        `mapstructure:"server.address"`
	ServerTimeout time.Duration `mapstructure:"server.timeout"`
	LogLevel      string        `mapstructure:"logging.level"`

	ArtifactDir      string        `mapstructure:"artifact.dir"`
	StrictQuantities bool          `mapstructure:"ddt.strict_quantities"`
	RefreshInterval  time.Duration `mapstructure:"directory.refresh_interval"`

	Sheets   rowstore.SheetsConfig
	Redis    cache.Config
	Notifier notify.ServiceBusConfig
	Elastic  search.Config
	Tracing  tracing.Config
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (Config, error) {
	v := viper.New()

	setDefaults(v)

	v.AddConfigPath(path)
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		// Missing file is fine: env vars and defaults carry the config.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, errors.Wrap(err, "error reading config file")
		}
	}

	v.SetEnvPrefix("FRADIAVOLO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, errors.Wrap(err, "unable to unmarshal config")
	}

	if err := v.Unmarshal(&config.Sheets); err != nil {
		return Config{}, errors.Wrap(err, "unable to unmarshal sheets config")
	}
	if err := v.Unmarshal(&config.Redis); err != nil {
		return Config{}, errors.Wrap(err, "unable to unmarshal redis config")
	}
	if err := v.Unmarshal(&config.Notifier); err != nil {
		return Config{}, errors.Wrap(err, "unable to unmarshal notifier config")
	}
	if err := v.Unmarshal(&config.Elastic); err != nil {
		return Config{}, errors.Wrap(err, "unable to unmarshal elastic config")
	}
	if err := v.Unmarshal(&config.Tracing); err != nil {
		return Config{}, errors.Wrap(err, "unable to unmarshal tracing config")
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("server.address", "0.0.0.0:8080")
	v.SetDefault("server.timeout", "30s")
	v.SetDefault("logging.level", "info")

	v.SetDefault("artifact.dir", "./artifacts")
	v.SetDefault("ddt.strict_quantities", false)
	v.SetDefault("directory.refresh_interval", "15m")

	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.credentials_file", "./credentials.json")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.enabled", false)

	v.SetDefault("notifier.connection_string", "")
	v.SetDefault("notifier.queue_name", "delivery-discrepancies")

	v.SetDefault("elastic.url", "http://localhost:9200")
	v.SetDefault("elastic.username", "")
	v.SetDefault("elastic.password", "")
	v.SetDefault("elastic.index", "fradiavolo-invoices")

	v.SetDefault("tracing.license_key", "")
	v.SetDefault("tracing.app_name", "fradiavolo-backend")
	v.SetDefault("tracing.log_enabled", false)
	v.SetDefault("tracing.distributed_tracing_enabled", true)
}
