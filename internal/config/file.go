package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/rworker/internal/logging"
	"github.com/smazurov/rworker/internal/process"
)

// Defaults for the [pool] section.
const (
	DefaultUseCluster      = "auto"
	DefaultShutdownTimeout = 10 * time.Second
)

// PoolConfig is the [pool] section.
type PoolConfig struct {
	Prepared        int    `toml:"prepared"`
	UseCluster      string `toml:"use_cluster"`
	Cwd             string `toml:"cwd"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// File is the typed view of a config file, used for validation and the
// sections that are reloaded at runtime.
type File struct {
	Server struct {
		Port string `toml:"port"`
	} `toml:"server"`
	Auth struct {
		Username string `toml:"username"`
		Password string `toml:"password"`
	} `toml:"auth"`
	Pool    PoolConfig `toml:"pool"`
	Channel struct {
		Transport string `toml:"transport"`
	} `toml:"channel"`
	NATS struct {
		Host string `toml:"host"`
		Port int    `toml:"port"`
		URL  string `toml:"url"`
	} `toml:"nats"`
	Logging map[string]string `toml:"logging"`
}

// LoadFile parses and validates a config file.
func LoadFile(path string) (File, error) {
	var f File
	data, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := toml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse %s: %w", path, err)
	}
	f.Pool.applyDefaults()
	return f, f.Validate()
}

// Validate checks every section and reports all problems at once.
func (f File) Validate() error {
	var errs []error
	if err := f.Pool.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch f.Channel.Transport {
	case "", "pipe", "nats":
	default:
		errs = append(errs, fmt.Errorf("channel.transport: unknown transport %q", f.Channel.Transport))
	}
	if f.NATS.Port < -1 || f.NATS.Port > 65535 {
		errs = append(errs, fmt.Errorf("nats.port: %d out of range", f.NATS.Port))
	}
	if (f.Auth.Username == "") != (f.Auth.Password == "") {
		errs = append(errs, errors.New("auth: username and password must be set together"))
	}
	for module, level := range f.Logging {
		if module == "format" {
			if level != "text" && level != "json" {
				errs = append(errs, fmt.Errorf("logging.format: unknown format %q", level))
			}
			continue
		}
		if !logging.ValidLevel(level) {
			errs = append(errs, fmt.Errorf("logging.%s: unknown level %q", module, level))
		}
	}
	return errors.Join(errs...)
}

func (p *PoolConfig) applyDefaults() {
	if p.UseCluster == "" {
		p.UseCluster = DefaultUseCluster
	}
	if p.ShutdownTimeout == "" {
		p.ShutdownTimeout = DefaultShutdownTimeout.String()
	}
}

// Validate checks the pool section.
func (p PoolConfig) Validate() error {
	var errs []error
	if p.Prepared < 0 {
		errs = append(errs, fmt.Errorf("pool.prepared: must not be negative, got %d", p.Prepared))
	}
	switch p.UseCluster {
	case "", "auto", "true", "false":
	default:
		errs = append(errs, fmt.Errorf("pool.use_cluster: want auto, true or false, got %q", p.UseCluster))
	}
	if p.ShutdownTimeout != "" {
		if _, err := time.ParseDuration(p.ShutdownTimeout); err != nil {
			errs = append(errs, fmt.Errorf("pool.shutdown_timeout: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Timeout returns the parsed shutdown timeout, or the default.
func (p PoolConfig) Timeout() time.Duration {
	d, err := time.ParseDuration(p.ShutdownTimeout)
	if err != nil || d <= 0 {
		return DefaultShutdownTimeout
	}
	return d
}

// ForkOptions returns the fork options used for prepared workers.
func (p PoolConfig) ForkOptions() process.ForkOptions {
	return process.ForkOptions{
		Cwd:        p.Cwd,
		UseCluster: ParseUseCluster(p.UseCluster),
	}
}

// ParseUseCluster maps "true"/"false" to a forced strategy and anything
// else to nil, which picks by topology.
func ParseUseCluster(s string) *bool {
	switch s {
	case "true":
		return process.Bool(true)
	case "false":
		return process.Bool(false)
	}
	return nil
}

// LoadPoolConfig loads the [pool] section. It is the loader for the
// config watcher.
func LoadPoolConfig(path string) (PoolConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PoolConfig{}, err
	}
	var doc struct {
		Pool PoolConfig `toml:"pool"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return PoolConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	doc.Pool.applyDefaults()
	if err := doc.Pool.Validate(); err != nil {
		return PoolConfig{}, err
	}
	return doc.Pool, nil
}

// LoadLoggingConfig loads the [logging] section. Missing or unreadable
// files yield the defaults.
func LoadLoggingConfig(configPath string) logging.Config {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}

	if configPath == "" {
		return cfg
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg
	}

	var rawConfig struct {
		Logging map[string]string `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &rawConfig); err != nil {
		return cfg
	}

	// level and format are global, the rest are module levels
	for key, value := range rawConfig.Logging {
		switch key {
		case "level":
			cfg.Level = value
		case "format":
			cfg.Format = value
		default:
			cfg.Modules[key] = value
		}
	}

	return cfg
}
