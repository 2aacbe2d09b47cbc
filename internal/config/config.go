package config

import (
	"couchtransfer/internal/chunk"
	"couchtransfer/internal/common"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultProtocol = "http"
	DefaultPort     = 5984
	HTTPSPort       = 443

	DefaultMetricsAddr = ":2112"

	envPrefix     = "COUCHTRANSFER"
	configDirName = ".couchtransfer"
)

// flagKeys maps configuration keys to the command line flags that may override them.
var flagKeys = map[string]string{
	"protocol":        "protocol",
	"host":            "host",
	"port":            "port",
	"user":            "user",
	"password":        "password",
	"database":        "database",
	"file":            "file",
	"create":          "create",
	"concurrency":     "concurrency",
	"page_size":       "page-size",
	"batch_size":      "batch-size",
	"max_retries":     "max-retries",
	"timeout":         "timeout",
	"metrics_addr":    "metrics-addr",
	"metrics_enabled": "metrics-enabled",
	"no_progress":     "no-progress",
	"auto_approve":    "auto-approve",
	"log_level":       "log-level",
	"log_file":        "log-file",
}

// Config holds all configuration for one import or export run.
type Config struct {
	// Document store connection.
	Protocol string
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// Local file.
	File string

	// Transfer behaviour.
	Create      bool
	Concurrency int
	PageSize    int
	BatchSize   int
	MaxRetries  int
	Timeout     time.Duration

	// Application configuration.
	MetricsEnabled bool
	MetricsAddr    string
	NoProgress     bool
	AutoApprove    bool
	LogLevel       string
	LogFile        string
}

// Load resolves the configuration from flags, environment variables and the config file,
// in that order of precedence. Flags that were not set on the command line only act as defaults.
func (c *Config) Load(fs *pflag.FlagSet) error {
	v := viper.New()

	// Set default values.
	v.SetDefault("protocol", DefaultProtocol)
	v.SetDefault("port", DefaultPort)
	v.SetDefault("page_size", chunk.DefaultPageSize)
	v.SetDefault("batch_size", chunk.DefaultBatchSize)
	v.SetDefault("max_retries", 0)
	v.SetDefault("timeout", time.Duration(0))
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_addr", DefaultMetricsAddr)

	// Read from environment variables.
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	// Read from config file if it exists.
	home, err := os.UserHomeDir()
	if err != nil {
		return &common.FileIOError{Op: "get user home dir", Reason: err.Error(), Err: err}
	}
	v.AddConfigPath(filepath.Join(home, configDirName))
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		// Ignore error if config file doesn't exist, but wrap other errors.
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(err, &notFoundErr) {
			return &common.FileIOError{Op: "read config file", Reason: err.Error(), Err: err}
		}
	}

	if fs != nil {
		for key, name := range flagKeys {
			flag := fs.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return &common.ConfigError{Op: "bind flag", Reason: err.Error(), Err: err}
			}
		}
	}

	c.Protocol = strings.ToLower(v.GetString("protocol"))
	c.Host = v.GetString("host")
	c.Port = v.GetInt("port")
	c.User = v.GetString("user")
	c.Password = v.GetString("password")
	c.Database = v.GetString("database")
	c.File = v.GetString("file")
	c.Create = v.GetBool("create")
	c.Concurrency = v.GetInt("concurrency")
	c.PageSize = v.GetInt("page_size")
	c.BatchSize = v.GetInt("batch_size")
	c.MaxRetries = v.GetInt("max_retries")
	c.Timeout = v.GetDuration("timeout")
	c.MetricsEnabled = v.GetBool("metrics_enabled")
	c.MetricsAddr = v.GetString("metrics_addr")
	c.NoProgress = v.GetBool("no_progress")
	c.AutoApprove = v.GetBool("auto_approve")
	c.LogLevel = v.GetString("log_level")
	c.LogFile = v.GetString("log_file")

	// The concurrency default depends on the command and comes from its flag.
	if c.Concurrency == 0 {
		c.Concurrency = 1
	}

	// Port 443 always speaks TLS.
	if c.Port == HTTPSPort {
		c.Protocol = "https"
	}

	return nil
}

// Validate checks if all required fields are set.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"host", c.Host},
		{"user", c.User},
		{"password", c.Password},
		{"database", c.Database},
		{"file", c.File},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &common.ConfigError{Op: "validate", Reason: fmt.Sprintf("%s field is required", r.key)}
		}
	}

	if c.Protocol != "http" && c.Protocol != "https" {
		return &common.ConfigError{Op: "validate", Reason: fmt.Sprintf("protocol must be http or https, got %q", c.Protocol)}
	}
	if c.Port <= 0 || c.Port > 65535 {
		return &common.ConfigError{Op: "validate", Reason: fmt.Sprintf("port must be between 1 and 65535, got %d", c.Port)}
	}
	if c.Concurrency <= 0 {
		return &common.ConfigError{Op: "validate", Reason: "concurrency must be greater than 0"}
	}
	if c.PageSize <= 0 {
		return &common.ConfigError{Op: "validate", Reason: "page_size must be greater than 0"}
	}
	if c.BatchSize <= 0 {
		return &common.ConfigError{Op: "validate", Reason: "batch_size must be greater than 0"}
	}
	if c.MaxRetries < 0 {
		return &common.ConfigError{Op: "validate", Reason: "max_retries must not be negative"}
	}
	if c.Timeout < 0 {
		return &common.ConfigError{Op: "validate", Reason: "timeout must not be negative"}
	}

	return nil
}

// GetBaseURL returns the document store root URL, e.g. http://localhost:5984.
func (c *Config) GetBaseURL() string {
	return fmt.Sprintf("%s://%s", c.Protocol, net.JoinHostPort(c.Host, strconv.Itoa(c.Port)))
}

func (c *Config) GetUser() string {
	return c.User
}

func (c *Config) GetPassword() string {
	return c.Password
}

func (c *Config) GetDatabase() string {
	return c.Database
}
