// Package config loads settings from an optional TOML file and SURPLUS_*
// environment variables.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the complete runtime configuration.
type Config struct {
	LogLevel  string         `toml:"log_level"`
	LogFormat string         `toml:"log_format"` // "text" (default) or "json"
	Database  DatabaseConfig `toml:"database"`
	Data      DataConfig     `toml:"data"`
	Export    ExportConfig   `toml:"export"`
	Backup    BackupConfig   `toml:"backup"`
	HTTP      HTTPConfig     `toml:"http"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// DataConfig points at the bulk-load CSV directory.
type DataConfig struct {
	Dir string `toml:"dir"`
}

type ExportConfig struct {
	Dir string `toml:"dir"`
}

type BackupConfig struct {
	Dir           string   `toml:"dir"`
	RetentionDays int      `toml:"retention_days"`
	Interval      Duration `toml:"interval"` // zero disables scheduled backups
	Passphrase    string   `toml:"passphrase,omitempty"`
	S3            S3Config `toml:"s3"`
}

type S3Config struct {
	Endpoint  string `toml:"endpoint,omitempty"`
	Bucket    string `toml:"bucket,omitempty"`
	Region    string `toml:"region,omitempty"`
	AccessKey string `toml:"access_key,omitempty"`
	SecretKey string `toml:"secret_key,omitempty"`
	Prefix    string `toml:"prefix,omitempty"`
}

type HTTPConfig struct {
	Port string `toml:"port"`
	// MaintenancePerMinute limits maintenance POSTs per client IP.
	MaintenancePerMinute int `toml:"maintenance_per_minute"`
}

// Duration is a time.Duration written as a Go duration string in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Database:  DatabaseConfig{Path: filepath.Join("database", "food_waste.db")},
		Data:      DataConfig{Dir: "data"},
		Export:    ExportConfig{Dir: "exports"},
		Backup:    BackupConfig{Dir: "backups", RetentionDays: 30},
		HTTP:      HTTPConfig{Port: "8080", MaintenancePerMinute: 10},
	}
}

// Read decodes a Config from r on top of the defaults.
func Read(r io.Reader) (*Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Write encodes cfg as TOML.
func Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads path when it is non-empty, otherwise starts from the defaults,
// then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = ReadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init writes cfg to a new file at path. It refuses to overwrite.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := Write(f, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return f.Close()
}

// ApplyEnv overrides fields from SURPLUS_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SURPLUS_LOG_LEVEL":         &c.LogLevel,
		"SURPLUS_LOG_FORMAT":        &c.LogFormat,
		"SURPLUS_DB_PATH":           &c.Database.Path,
		"SURPLUS_DATA_DIR":          &c.Data.Dir,
		"SURPLUS_EXPORT_DIR":        &c.Export.Dir,
		"SURPLUS_BACKUP_DIR":        &c.Backup.Dir,
		"SURPLUS_BACKUP_PASSPHRASE": &c.Backup.Passphrase,
		"SURPLUS_S3_ENDPOINT":       &c.Backup.S3.Endpoint,
		"SURPLUS_S3_BUCKET":         &c.Backup.S3.Bucket,
		"SURPLUS_S3_REGION":         &c.Backup.S3.Region,
		"SURPLUS_S3_ACCESS_KEY":     &c.Backup.S3.AccessKey,
		"SURPLUS_S3_SECRET_KEY":     &c.Backup.S3.SecretKey,
		"SURPLUS_S3_PREFIX":         &c.Backup.S3.Prefix,
		"SURPLUS_PORT":              &c.HTTP.Port,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("SURPLUS_BACKUP_RETENTION_DAYS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SURPLUS_BACKUP_RETENTION_DAYS: %w", err)
		}
		c.Backup.RetentionDays = n
	}
	if v, ok := lookup("SURPLUS_BACKUP_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SURPLUS_BACKUP_INTERVAL: %w", err)
		}
		c.Backup.Interval = Duration{d}
	}
	return nil
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Backup.Passphrase != "" {
		out.Backup.Passphrase = "********"
	}
	if out.Backup.S3.SecretKey != "" {
		out.Backup.S3.SecretKey = "********"
	}
	return &out
}
