package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/shakram02/go-sql-browser/data"
)

// AppFs is the filesystem used to look for .env files.
var AppFs = afero.NewOsFs()

// EnvPrefix prefixes every environment variable: query_timeout is read
// from MCP_QUERY_TIMEOUT and mysql.host from MCP_MYSQL_HOST.
const EnvPrefix = "MCP"

// Configuration keys.
const (
	keyProvider          = "provider"
	keyName              = "name"
	keyConnectionString  = "connection_string"
	keyReadOnly          = "read_only"
	keyQueryTimeout      = "query_timeout"
	keyConnectionTimeout = "connection_timeout"
	keyMaxRows           = "max_rows"
	keyMaxOpenConns      = "max_open_conns"
	keyMaxIdleConns      = "max_idle_conns"
	keyLogLevel          = "log_level"
)

// Default result row limit (overridable via MCP_MAX_ROWS)
const DefaultMaxRows = 10000

// Config holds the resolved application configuration
type Config struct {
	Provider          string
	Name              string
	ConnectionString  string
	ReadOnly          bool
	QueryTimeout      time.Duration
	ConnectionTimeout time.Duration
	MaxRows           int
	MaxOpenConns      int
	MaxIdleConns      int
	LogLevel          string
	Settings          data.Settings
}

// newViper returns a viper instance reading .sql-browser.yaml from the
// working directory or the home directory, or configFile when given, and
// the MCP_* environment.
func newViper(configFile string) (*viper.Viper, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return nil, err
		}
		v.SetConfigName(".sql-browser")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(home)
		v.AddConfigPath(filepath.Join(home, ".config", "sql-browser"))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(keyProvider, "mysql")
	v.SetDefault(keyReadOnly, true)
	v.SetDefault(keyQueryTimeout, data.DefaultQueryTimeout.String())
	v.SetDefault(keyConnectionTimeout, data.DefaultConnectionTimeout.String())
	v.SetDefault(keyMaxRows, DefaultMaxRows)
	v.SetDefault(keyMaxOpenConns, data.DefaultMaxOpenConns)
	v.SetDefault(keyMaxIdleConns, data.DefaultMaxIdleConns)
	v.SetDefault(keyLogLevel, "info")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; a broken or explicitly named one is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

// loadDotEnv loads .env and then .env.local, which overrides it. Variables
// already set in the environment win over .env.
func loadDotEnv(fs afero.Fs) error {
	if _, err := fs.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}
	}
	if _, err := fs.Stat(".env.local"); err == nil {
		if err := godotenv.Overload(".env.local"); err != nil {
			return fmt.Errorf("failed to load .env.local: %w", err)
		}
	}
	return nil
}

// LoadConfig resolves the configuration from v.
func LoadConfig(v *viper.Viper) (*Config, error) {
	queryTimeout, err := parseTimeout(v.GetString(keyQueryTimeout))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", keyQueryTimeout, err)
	}
	connTimeout, err := parseTimeout(v.GetString(keyConnectionTimeout))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", keyConnectionTimeout, err)
	}
	maxRows, err := strconv.Atoi(v.GetString(keyMaxRows))
	if err != nil || maxRows < 0 {
		return nil, fmt.Errorf("invalid %s: %q", keyMaxRows, v.GetString(keyMaxRows))
	}

	cfg := &Config{
		Provider:          strings.ToLower(v.GetString(keyProvider)),
		Name:              v.GetString(keyName),
		ConnectionString:  v.GetString(keyConnectionString),
		ReadOnly:          v.GetBool(keyReadOnly),
		QueryTimeout:      queryTimeout,
		ConnectionTimeout: connTimeout,
		MaxRows:           maxRows,
		MaxOpenConns:      v.GetInt(keyMaxOpenConns),
		MaxIdleConns:      v.GetInt(keyMaxIdleConns),
		LogLevel:          v.GetString(keyLogLevel),
	}

	p, err := data.Lookup(cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("%w (available: %s)", err, strings.Join(data.Providers(), ", "))
	}
	section := p.SettingsKey() + "."
	cfg.Settings = data.Settings{
		Host:     v.GetString(section + "host"),
		Port:     v.GetString(section + "port"),
		Database: v.GetString(section + "db"),
		User:     v.GetString(section + "user"),
		Password: v.GetString(section + "password"),
		SSLMode:  v.GetString(section + "sslmode"),
		Path:     v.GetString(section + "path"),
	}
	return cfg, nil
}

// parseTimeout accepts a Go duration ("45s") or a plain number of seconds.
func parseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.Atoi(s); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("negative timeout %d", secs)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative timeout %s", d)
	}
	return d, nil
}

// Open builds the Database described by the configuration. An explicit
// connection string wins over the provider's discrete settings.
func (c *Config) Open(opts ...data.Option) (*data.Database, error) {
	p, err := data.Lookup(c.Provider)
	if err != nil {
		return nil, err
	}

	connStr := c.ConnectionString
	if connStr == "" {
		connStr, err = p.ConnectionString(c.Settings)
		if err != nil {
			return nil, fmt.Errorf("%s connection: %w (set %s or %s_%s_*)",
				p.Name(), err, envName(keyConnectionString), EnvPrefix, strings.ToUpper(p.SettingsKey()))
		}
	}

	name := c.Name
	if name == "" {
		name = p.DatabaseName(connStr)
	}
	if name == "" {
		name = p.Name()
	}

	base := []data.Option{
		data.WithReadOnly(c.ReadOnly),
		data.WithMaxRows(c.MaxRows),
		data.WithQueryTimeout(c.QueryTimeout),
		data.WithConnectionTimeout(c.ConnectionTimeout),
		data.WithPool(c.MaxOpenConns, c.MaxIdleConns),
	}
	return data.New(p, name, connStr, append(base, opts...)...), nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
