// Package config resolves process configuration from an optional stash.yaml
// plus environment variables (STASH_* wins over the file).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"stashkit/internal/stash"
	"stashkit/internal/store"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
	BackendHTTP     = "http"
)

type PostgresConfig struct {
	DSN string
}

type HTTPConfig struct {
	BaseURL string
}

type Config struct {
	Backend  string
	Manifest string
	Postgres PostgresConfig
	S3       store.S3Config
	HTTP     HTTPConfig
	Defaults stash.Options
}

// Load reads .env, the config file and the environment.
// cfgFile may be empty; the lookup order is then ./stash.yaml, then
// ~/.config/stash/stash.yaml.
func Load(cfgFile string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	def := stash.DefaultOptions()
	v.SetDefault("backend", BackendMemory)
	v.SetDefault("manifest", ".stash/manifest.yaml")
	v.SetDefault("defaults.retention_days", def.RetentionDays)
	v.SetDefault("defaults.compression_level", def.CompressionLevel)
	v.SetDefault("defaults.overwrite", def.Overwrite)
	v.SetDefault("defaults.if_no_files_found", def.IfNoFilesFound)
	v.SetDefault("defaults.include_hidden", def.IncludeHidden)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "stashkit")
	v.SetDefault("s3.use_ssl", true)

	v.SetEnvPrefix("STASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName("stash")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "stash"))
		}
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{
		Backend:  strings.ToLower(strings.TrimSpace(v.GetString("backend"))),
		Manifest: strings.TrimSpace(v.GetString("manifest")),
		Postgres: PostgresConfig{
			DSN: firstNonEmpty(v.GetString("postgres.dsn"), os.Getenv("STASH_PG_DSN")),
		},
		S3: store.S3Config{
			Endpoint:  strings.TrimSpace(v.GetString("s3.endpoint")),
			Region:    strings.TrimSpace(v.GetString("s3.region")),
			AccessKey: firstNonEmpty(v.GetString("s3.access_key"), os.Getenv("MINIO_ROOT_USER")),
			SecretKey: firstNonEmpty(v.GetString("s3.secret_key"), os.Getenv("MINIO_ROOT_PASSWORD")),
			Bucket:    strings.TrimSpace(v.GetString("s3.bucket")),
			UseSSL:    v.GetBool("s3.use_ssl"),
		},
		HTTP: HTTPConfig{
			BaseURL: strings.TrimSpace(v.GetString("http.base_url")),
		},
		Defaults: stash.Options{
			RetentionDays:    v.GetInt("defaults.retention_days"),
			CompressionLevel: v.GetInt("defaults.compression_level"),
			Overwrite:        v.GetBool("defaults.overwrite"),
			IfNoFilesFound:   strings.ToLower(strings.TrimSpace(v.GetString("defaults.if_no_files_found"))),
			IncludeHidden:    v.GetBool("defaults.include_hidden"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendMemory, BackendPostgres, BackendS3, BackendHTTP:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if err := c.Defaults.Validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	return nil
}

// BuildStore constructs the configured backend.
func (c *Config) BuildStore() (store.Store, error) {
	switch c.Backend {
	case BackendMemory:
		return store.NewMemoryStore(), nil
	case BackendPostgres:
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			return nil, fmt.Errorf("postgres backend requires a dsn")
		}
		return store.NewPostgresStore(c.Postgres.DSN)
	case BackendS3:
		return store.NewS3Store(c.S3)
	case BackendHTTP:
		return store.NewHTTPStore(c.HTTP.BaseURL)
	default:
		return nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
