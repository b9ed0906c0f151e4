package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

type Config struct {
	Cache  CacheConfig  `mapstructure:"cache" yaml:"cache"`
	Worker WorkerConfig `mapstructure:"worker" yaml:"worker"`
	Fetch  FetchConfig  `mapstructure:"fetch" yaml:"fetch"`
	S3     S3Config     `mapstructure:"s3" yaml:"s3"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
	Store  StoreConfig  `mapstructure:"store" yaml:"store"`

	Port string `mapstructure:"port" yaml:"port"`
}

type CacheConfig struct {
	// MaxSize is a human readable byte budget, e.g. "32MiB"
	MaxSize string `mapstructure:"max_size" yaml:"max_size"`
	// MaxEntries switches the cache to a count ceiling when > 0
	MaxEntries int `mapstructure:"max_entries" yaml:"max_entries"`

	MaxBytes int64 `mapstructure:"-" yaml:"-"`
}

type WorkerConfig struct {
	QueueLimit    int `mapstructure:"queue_limit" yaml:"queue_limit"`
	PreloadRadius int `mapstructure:"preload_radius" yaml:"preload_radius"`
}

type FetchConfig struct {
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxBytes  string        `mapstructure:"max_bytes" yaml:"max_bytes"`
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`
	// MaxPixels caps width*height read from the image header before decoding
	MaxPixels int64 `mapstructure:"max_pixels" yaml:"max_pixels"`

	MaxBodyBytes int64 `mapstructure:"-" yaml:"-"`
}

type S3Config struct {
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

type StoreConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Driver     string `mapstructure:"driver" yaml:"driver"` // sqlite, postgres or file
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	DSN        string `mapstructure:"dsn" yaml:"dsn"`
	BlobDir    string `mapstructure:"blob_dir" yaml:"blob_dir"`
}

func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = "config.yaml"
	}

	// 1. Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if explicit {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		// FALLBACK: Docker mounts live under /config
		if _, errEx := os.Stat("/config/config.yaml"); errEx == nil {
			path = "/config/config.yaml"
		} else {
			// Defaults and environment variables only
			path = ""
		}
	}

	v := viper.New()

	// Set Defaults
	v.SetDefault("port", "8080")
	v.SetDefault("cache.max_size", "32MiB")
	v.SetDefault("cache.max_entries", 0)
	v.SetDefault("worker.queue_limit", 0)
	v.SetDefault("worker.preload_radius", 10)
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.max_bytes", "10MiB")
	v.SetDefault("fetch.user_agent", "gothumb/1.0")
	v.SetDefault("fetch.max_pixels", 4096*4096)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("log.path", "gothumb.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)
	v.SetDefault("store.enabled", false)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "./data/gothumb.db")
	v.SetDefault("store.blob_dir", "./data/blobs")

	// Read config File
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// Support Environment Variables
	v.SetEnvPrefix("GOTHUMB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Cache.MaxEntries < 0 {
		return errors.New("cache.max_entries must not be negative")
	}

	if c.Cache.MaxSize == "" {
		c.Cache.MaxSize = "32MiB"
	}
	size, err := humanize.ParseBytes(c.Cache.MaxSize)
	if err != nil {
		return fmt.Errorf("cache.max_size: %w", err)
	}
	if size == 0 && c.Cache.MaxEntries == 0 {
		return errors.New("cache.max_size must be greater than zero")
	}
	c.Cache.MaxBytes = int64(size)

	if c.Worker.QueueLimit < 0 {
		return errors.New("worker.queue_limit must not be negative")
	}

	if c.Worker.PreloadRadius < 0 {
		// Negative radius means no preloading
		c.Worker.PreloadRadius = 0
	}

	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 30 * time.Second
	}

	if c.Fetch.MaxBytes == "" {
		c.Fetch.MaxBytes = "10MiB"
	}
	maxBody, err := humanize.ParseBytes(c.Fetch.MaxBytes)
	if err != nil {
		return fmt.Errorf("fetch.max_bytes: %w", err)
	}
	c.Fetch.MaxBodyBytes = int64(maxBody)

	if c.Fetch.MaxPixels < 0 {
		return errors.New("fetch.max_pixels must not be negative")
	}

	if c.Store.Enabled {
		switch c.Store.Driver {
		case "sqlite":
			if c.Store.SQLitePath == "" {
				return errors.New("store: sqlite_path is required for the sqlite driver")
			}
		case "postgres":
			if c.Store.DSN == "" {
				return errors.New("store: dsn is required for the postgres driver")
			}
		case "file":
			// Blob files only, no metadata database
		default:
			return fmt.Errorf("store: unsupported driver %q", c.Store.Driver)
		}

		if c.Store.BlobDir == "" {
			c.Store.BlobDir = "./data/blobs"
		}
	}

	if c.Port == "" {
		c.Port = "8080"
	}

	return nil
}
