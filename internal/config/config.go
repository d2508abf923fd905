// Package config loads and validates rosh configuration. Sources are applied
// in order: built-in defaults, an optional TOML file, a .env file, the process
// environment (ROSH_* variables). Command-line flags are applied last by the
// caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"rosh/internal/storage"
)

const EnvPrefix = "ROSH_"

type Config struct {
	// Scheduler.
	TickInterval   time.Duration `toml:"tick_interval"`
	MaxTasks       int           `toml:"max_tasks"`
	DeliveryBudget int           `toml:"delivery_budget"`
	DemoLifetime   int           `toml:"demo_lifetime"`

	// Storage. Driver is one of sqlite3, mysql, postgres or memory.
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
	// StoreLatency delays every call to the memory store.
	StoreLatency time.Duration `toml:"store_latency"`

	// ControlAddr enables the HTTP control plane when set, e.g. "127.0.0.1:8080".
	ControlAddr string `toml:"control_addr"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogFile   string `toml:"log_file"`
}

func Default() Config {
	return Config{
		TickInterval:   16 * time.Millisecond,
		MaxTasks:       64,
		DeliveryBudget: 4096,
		DemoLifetime:   120,
		Driver:         storage.DriverSQLite,
		DSN:            "file:rosh.db?_foreign_keys=on",
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Load builds a Config from defaults, the TOML file at path (skipped when
// empty) and the environment. envFiles are read with godotenv; missing files
// are ignored. Variables already in the process environment win over .env
// values.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return Config{}, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}

	dotenv, err := readDotenv(envFiles...)
	if err != nil {
		return Config{}, err
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readDotenv(files ...string) (map[string]string, error) {
	out := map[string]string{}
	for _, f := range files {
		data, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", f, err)
		}
		for k, v := range data {
			out[k] = v
		}
	}
	return out, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	var err error

	c.TickInterval, err = envDuration(lookup, EnvPrefix+"TICK_INTERVAL", c.TickInterval)
	collect(err)
	c.MaxTasks, err = envInt(lookup, EnvPrefix+"MAX_TASKS", c.MaxTasks)
	collect(err)
	c.DeliveryBudget, err = envInt(lookup, EnvPrefix+"DELIVERY_BUDGET", c.DeliveryBudget)
	collect(err)
	c.DemoLifetime, err = envInt(lookup, EnvPrefix+"DEMO_LIFETIME", c.DemoLifetime)
	collect(err)
	c.StoreLatency, err = envDuration(lookup, EnvPrefix+"STORE_LATENCY", c.StoreLatency)
	collect(err)

	c.Driver = envStr(lookup, EnvPrefix+"DRIVER", c.Driver)
	c.DSN = envStr(lookup, EnvPrefix+"DSN", c.DSN)
	c.ControlAddr = envStr(lookup, EnvPrefix+"CONTROL_ADDR", c.ControlAddr)
	c.LogLevel = envStr(lookup, EnvPrefix+"LOG_LEVEL", c.LogLevel)
	c.LogFormat = envStr(lookup, EnvPrefix+"LOG_FORMAT", c.LogFormat)
	c.LogFile = envStr(lookup, EnvPrefix+"LOG_FILE", c.LogFile)

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

var drivers = []string{storage.DriverSQLite, storage.DriverMySQL, storage.DriverPostgres, storage.DriverMemory}

// Validate checks that the configuration can start a kernel.
func (c Config) Validate() error {
	var errs []error
	if c.TickInterval <= 0 {
		errs = append(errs, errors.New("tick interval must be positive"))
	}
	if c.MaxTasks <= 0 {
		errs = append(errs, errors.New("max tasks must be positive"))
	}
	if c.DeliveryBudget <= 0 {
		errs = append(errs, errors.New("delivery budget must be positive"))
	}
	if c.DemoLifetime < 0 {
		errs = append(errs, errors.New("demo lifetime must not be negative"))
	}
	if c.StoreLatency < 0 {
		errs = append(errs, errors.New("store latency must not be negative"))
	}
	if !slices.Contains(drivers, c.Driver) {
		errs = append(errs, fmt.Errorf("unknown driver %q (want one of %s)", c.Driver, strings.Join(drivers, ", ")))
	}
	if c.Driver != storage.DriverMemory && c.DSN == "" {
		errs = append(errs, fmt.Errorf("driver %s needs a dsn", c.Driver))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func envStr(lookup lookupFunc, key, defaultVal string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return defaultVal
}

func envInt(lookup lookupFunc, key string, defaultVal int) (int, error) {
	v, ok := lookup(key)
	if !ok || v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envDuration(lookup lookupFunc, key string, defaultVal time.Duration) (time.Duration, error) {
	v, ok := lookup(key)
	if !ok || v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}
