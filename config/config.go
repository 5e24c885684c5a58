package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/collabflow/collabflow-cli/pkg/validation"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "COLLABFLOW"

	KeyAPIURL         = "api_url"
	KeyDBPath         = "db_path"
	KeyRequestTimeout = "request_timeout"
	KeyRefreshTimeout = "refresh_timeout"
	KeyRateLimit      = "rate_limit"
	KeyRefreshCookie  = "refresh_cookie"
	KeyWorkers        = "workers"
)

// Config holds the settings the CLI runs with.
type Config struct {
	APIURL         string        `mapstructure:"api_url"`
	DBPath         string        `mapstructure:"db_path"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RefreshTimeout time.Duration `mapstructure:"refresh_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RefreshCookie  string        `mapstructure:"refresh_cookie"`
	Workers        int           `mapstructure:"workers"`
}

// New returns a viper instance with defaults, the config file search path and
// COLLABFLOW_* environment overrides set up. An explicit configFile wins over
// the search path.
func New(configFile string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, dir := range searchPaths() {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyAPIURL, "http://localhost:9090/api")
	v.SetDefault(KeyDBPath, "")
	v.SetDefault(KeyRequestTimeout, 30*time.Second)
	v.SetDefault(KeyRefreshTimeout, 15*time.Second)
	v.SetDefault(KeyRateLimit, 0.0)
	v.SetDefault(KeyRefreshCookie, "refreshToken")
	v.SetDefault(KeyWorkers, 4)
}

func searchPaths() []string {
	var dirs []string
	if home := os.Getenv("COLLABFLOW_HOME"); home != "" {
		dirs = append(dirs, home)
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".collabflow"))
	}
	return append(dirs, ".")
}

// Load reads the config file if there is one and decodes the merged settings.
// A missing file is not an error; defaults and the environment still apply.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Debug().Msg("No config file found, using defaults and environment")
	} else {
		log.Debug().Str("file", v.ConfigFileUsed()).Msg("Loaded config file")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings for values the client cannot work with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid %s %q: must be an http(s) URL", KeyAPIURL, c.APIURL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s must be positive, got %s", KeyRequestTimeout, c.RequestTimeout)
	}
	if c.RefreshTimeout <= 0 {
		return fmt.Errorf("%s must be positive, got %s", KeyRefreshTimeout, c.RefreshTimeout)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%s cannot be negative, got %v", KeyRateLimit, c.RateLimit)
	}
	if err := validation.ValidateNonEmptyString(KeyRefreshCookie, c.RefreshCookie); err != nil {
		return err
	}
	return validation.ValidateWorkerCount(c.Workers)
}
