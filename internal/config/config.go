// Package config loads photovault settings with viper.
//
// Precedence, lowest first: built-in defaults, config file, PHOTOVAULT_*
// environment variables. Nested keys map to env names by replacing dots
// with underscores, e.g. vault.root -> PHOTOVAULT_VAULT_ROOT.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/illarion/photovault/internal/crypto"
)

const (
	EnvPrefix = "PHOTOVAULT"
	// HomeEnv overrides the default vault location and config search path.
	HomeEnv = "PHOTOVAULT_HOME"

	KeySourceKeyring  = "keyring"
	KeySourcePassword = "password"
)

const (
	DefaultThumbnailMaxDimension = 300
	DefaultThumbnailQuality      = 80
	DefaultCacheLimitBytes       = 50 * 1024 * 1024
	DefaultEraserChunkSize       = 64 * 1024
	DefaultEraserFillByte        = 0
	DefaultKDFIterations         = crypto.DefaultIters
	DefaultLogLevel              = "warn"
	DefaultLogMaxSizeMB          = 10
	DefaultLogMaxBackups         = 3
)

type (
	// Config is the full application configuration.
	Config struct {
		Vault   VaultConfig   `mapstructure:"vault"`
		Cache   CacheConfig   `mapstructure:"cache"`
		Eraser  EraserConfig  `mapstructure:"eraser"`
		Keys    KeysConfig    `mapstructure:"keys"`
		Backup  BackupConfig  `mapstructure:"backup"`
		Log     LogConfig     `mapstructure:"log"`
		Metrics MetricsConfig `mapstructure:"metrics"`
	}

	VaultConfig struct {
		Root                  string `mapstructure:"root"`
		ThumbnailMaxDimension int    `mapstructure:"thumbnail_max_dimension"`
		ThumbnailQuality      int    `mapstructure:"thumbnail_quality"`
	}

	CacheConfig struct {
		LimitBytes int64 `mapstructure:"limit_bytes"`
	}

	EraserConfig struct {
		ChunkSize int `mapstructure:"chunk_size"`
		FillByte  int `mapstructure:"fill_byte"`
	}

	KeysConfig struct {
		Source string `mapstructure:"source"`
		Cipher string `mapstructure:"cipher"`
	}

	BackupConfig struct {
		DeviceName    string `mapstructure:"device_name"`
		KDFIterations int    `mapstructure:"kdf_iterations"`
	}

	LogConfig struct {
		Level      string `mapstructure:"level"`
		File       string `mapstructure:"file"`
		MaxSizeMB  int    `mapstructure:"max_size_mb"`
		MaxBackups int    `mapstructure:"max_backups"`
	}

	MetricsConfig struct {
		Textfile string `mapstructure:"textfile"`
	}
)

// Home returns the photovault home directory.
func Home() string {
	if h := os.Getenv(HomeEnv); h != "" {
		return h
	}
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".photovault")
	}
	return ".photovault"
}

func setDefaults(v *viper.Viper) {
	home := Home()
	host, _ := os.Hostname()

	v.SetDefault("vault.root", home)
	v.SetDefault("vault.thumbnail_max_dimension", DefaultThumbnailMaxDimension)
	v.SetDefault("vault.thumbnail_quality", DefaultThumbnailQuality)
	v.SetDefault("cache.limit_bytes", DefaultCacheLimitBytes)
	v.SetDefault("eraser.chunk_size", DefaultEraserChunkSize)
	v.SetDefault("eraser.fill_byte", DefaultEraserFillByte)
	v.SetDefault("keys.source", KeySourceKeyring)
	v.SetDefault("keys.cipher", string(crypto.AES256GCM))
	v.SetDefault("backup.device_name", host)
	v.SetDefault("backup.kdf_iterations", DefaultKDFIterations)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", DefaultLogMaxSizeMB)
	v.SetDefault("log.max_backups", DefaultLogMaxBackups)
	v.SetDefault("metrics.textfile", "")
}

// Load reads configuration. An explicit path must exist; otherwise
// config.{yaml,json,toml} in Home() is used when present.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(Home())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Vault.Root == "" {
		return errors.New("vault.root must be set")
	}
	if c.Vault.ThumbnailMaxDimension <= 0 {
		return fmt.Errorf("vault.thumbnail_max_dimension must be positive, got %d", c.Vault.ThumbnailMaxDimension)
	}
	if c.Vault.ThumbnailQuality < 1 || c.Vault.ThumbnailQuality > 100 {
		return fmt.Errorf("vault.thumbnail_quality must be 1-100, got %d", c.Vault.ThumbnailQuality)
	}
	if c.Cache.LimitBytes <= 0 {
		return fmt.Errorf("cache.limit_bytes must be positive, got %d", c.Cache.LimitBytes)
	}
	if c.Eraser.ChunkSize <= 0 {
		return fmt.Errorf("eraser.chunk_size must be positive, got %d", c.Eraser.ChunkSize)
	}
	if c.Eraser.FillByte < 0 || c.Eraser.FillByte > 255 {
		return fmt.Errorf("eraser.fill_byte must be 0-255, got %d", c.Eraser.FillByte)
	}
	switch c.Keys.Source {
	case KeySourceKeyring, KeySourcePassword:
	default:
		return fmt.Errorf("keys.source must be %q or %q, got %q", KeySourceKeyring, KeySourcePassword, c.Keys.Source)
	}
	if _, err := crypto.ParseCipherSuite(c.Keys.Cipher); err != nil {
		return fmt.Errorf("keys.cipher: %w", err)
	}
	if c.Backup.KDFIterations <= 0 {
		return fmt.Errorf("backup.kdf_iterations must be positive, got %d", c.Backup.KDFIterations)
	}
	return nil
}

// CipherSuite returns the parsed keys.cipher value.
func (c *Config) CipherSuite() crypto.CipherSuite {
	suite, _ := crypto.ParseCipherSuite(c.Keys.Cipher)
	return suite
}
