package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	FLAG_NAME_WORKERS         = "workers"
	FLAG_NAME_DATABASES       = "databases"
	FLAG_NAME_LAZY_USER_DEL   = "lazyfree-lazy-user-del"
	FLAG_NAME_LAZY_USER_FLUSH = "lazyfree-lazy-user-flush"
	FLAG_NAME_LAZY_SERVER_DEL = "lazyfree-lazy-server-del"
	FLAG_NAME_LAZY_EVICTION   = "lazyfree-lazy-eviction"
	FLAG_NAME_LAZY_EXPIRE     = "lazyfree-lazy-expire"
	FLAG_NAME_METRICS_PORT    = "metrics-port"
	FLAG_NAME_PRETTY_LOG      = "pretty-log"
)

var (
	ErrInvalidWorkers   = errors.New("worker count must be at least 1")
	ErrInvalidDatabases = errors.New("database count must be at least 1")
	ErrInvalidPort      = errors.New("metrics port is out of range")
)

// Config holds the process level settings of the store.
type Config struct {
	Workers       int
	Databases     int
	LazyUserDel   bool
	LazyUserFlush bool
	// LazyServerDel applies to values replaced by an overwrite.
	LazyServerDel bool
	LazyEviction  bool
	LazyExpire    bool
	MetricsPort   int
	PrettyLog     bool
}

func Default() Config {
	return Config{
		Workers:   1,
		Databases: 16,
	}
}

// RegisterFlags declares the settings on cmd and binds them to config.
// Environment variables prefixed with LAZYFREE_ take precedence over
// defaults, so LAZYFREE_LAZYFREE_LAZY_USER_DEL=true sets LazyUserDel.
func RegisterFlags(cmd *cobra.Command, config *viper.Viper) {
	defaults := Default()
	cmd.Flags().IntP(FLAG_NAME_WORKERS, "w", defaults.Workers, "Number of background reclamation workers")
	config.BindPFlag(FLAG_NAME_WORKERS, cmd.Flags().Lookup(FLAG_NAME_WORKERS))

	cmd.Flags().IntP(FLAG_NAME_DATABASES, "d", defaults.Databases, "Number of logical databases")
	config.BindPFlag(FLAG_NAME_DATABASES, cmd.Flags().Lookup(FLAG_NAME_DATABASES))

	cmd.Flags().BoolP(FLAG_NAME_LAZY_USER_DEL, "", defaults.LazyUserDel, "Make DEL behave like UNLINK")
	config.BindPFlag(FLAG_NAME_LAZY_USER_DEL, cmd.Flags().Lookup(FLAG_NAME_LAZY_USER_DEL))

	cmd.Flags().BoolP(FLAG_NAME_LAZY_USER_FLUSH, "", defaults.LazyUserFlush, "Make FLUSHDB and FLUSHALL asynchronous by default")
	config.BindPFlag(FLAG_NAME_LAZY_USER_FLUSH, cmd.Flags().Lookup(FLAG_NAME_LAZY_USER_FLUSH))

	cmd.Flags().BoolP(FLAG_NAME_LAZY_SERVER_DEL, "", defaults.LazyServerDel, "Release values replaced by an overwrite in the background")
	config.BindPFlag(FLAG_NAME_LAZY_SERVER_DEL, cmd.Flags().Lookup(FLAG_NAME_LAZY_SERVER_DEL))

	cmd.Flags().BoolP(FLAG_NAME_LAZY_EVICTION, "", defaults.LazyEviction, "Release evicted keys in the background")
	config.BindPFlag(FLAG_NAME_LAZY_EVICTION, cmd.Flags().Lookup(FLAG_NAME_LAZY_EVICTION))

	cmd.Flags().BoolP(FLAG_NAME_LAZY_EXPIRE, "", defaults.LazyExpire, "Release expired keys in the background")
	config.BindPFlag(FLAG_NAME_LAZY_EXPIRE, cmd.Flags().Lookup(FLAG_NAME_LAZY_EXPIRE))

	cmd.Flags().IntP(FLAG_NAME_METRICS_PORT, "", defaults.MetricsPort, "Serve prometheus metrics on this port. Specify 0 to disable the endpoint")
	config.BindPFlag(FLAG_NAME_METRICS_PORT, cmd.Flags().Lookup(FLAG_NAME_METRICS_PORT))

	cmd.Flags().BoolP(FLAG_NAME_PRETTY_LOG, "", defaults.PrettyLog, "Use a human friendly log output")
	config.BindPFlag(FLAG_NAME_PRETTY_LOG, cmd.Flags().Lookup(FLAG_NAME_PRETTY_LOG))

	bindEnv(config)
}

func bindEnv(config *viper.Viper) {
	config.SetEnvPrefix("lazyfree")
	config.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	config.AutomaticEnv()
}

// Load reads the settings from config and validates them.
func Load(config *viper.Viper) (Config, error) {
	defaults := Default()
	config.SetDefault(FLAG_NAME_WORKERS, defaults.Workers)
	config.SetDefault(FLAG_NAME_DATABASES, defaults.Databases)
	bindEnv(config)

	c := Config{
		Workers:       config.GetInt(FLAG_NAME_WORKERS),
		Databases:     config.GetInt(FLAG_NAME_DATABASES),
		LazyUserDel:   config.GetBool(FLAG_NAME_LAZY_USER_DEL),
		LazyUserFlush: config.GetBool(FLAG_NAME_LAZY_USER_FLUSH),
		LazyServerDel: config.GetBool(FLAG_NAME_LAZY_SERVER_DEL),
		LazyEviction:  config.GetBool(FLAG_NAME_LAZY_EVICTION),
		LazyExpire:    config.GetBool(FLAG_NAME_LAZY_EXPIRE),
		MetricsPort:   config.GetInt(FLAG_NAME_METRICS_PORT),
		PrettyLog:     config.GetBool(FLAG_NAME_PRETTY_LOG),
	}
	if err := c.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "invalid configuration")
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.Workers < 1 {
		return errors.Wrapf(ErrInvalidWorkers, "got %d", c.Workers)
	}
	if c.Databases < 1 {
		return errors.Wrapf(ErrInvalidDatabases, "got %d", c.Databases)
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		return errors.Wrapf(ErrInvalidPort, "got %d", c.MetricsPort)
	}
	return nil
}
