package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// DataDir holds one directory per time shard (raw log, story table,
	// index segment).
	DataDir string `envconfig:"PB_DATA_DIR" default:"./data"`

	// EngineConfigPath points at the YAML file with tag tables, source
	// precedence ranks and score weights. Empty means the embedded default.
	EngineConfigPath string `envconfig:"PB_ENGINE_CONFIG" default:""`

	// RetentionMonths is the write horizon: shards older than this many
	// months are read-only.
	RetentionMonths int `envconfig:"PB_RETENTION_MONTHS" default:"24"`

	// SpoolDir is swept by the daemon/ingest-batch commands for scrape
	// payload files dropped by the cron collaborator.
	SpoolDir  string `envconfig:"PB_SPOOL_DIR" default:"./spool"`
	CronSpec  string `envconfig:"PB_CRON_SPEC" default:"@every 30m"`
	BackupDir string `envconfig:"PB_BACKUP_DIR" default:"./backup"`

	Host string `envconfig:"PB_HOST" default:"0.0.0.0"`
	Port int    `envconfig:"PB_PORT" default:"8090"`

	// AdminTokenHash is a bcrypt hash of the token required by the
	// destructive admin endpoints. Empty disables them.
	AdminTokenHash     string `envconfig:"PB_ADMIN_TOKEN_HASH" default:""`
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("PB_DATA_DIR is required")
	}
	if c.RetentionMonths < 1 {
		return fmt.Errorf("PB_RETENTION_MONTHS must be >= 1")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PB_PORT must be between 1 and 65535")
	}
	if strings.TrimSpace(c.CronSpec) == "" {
		return fmt.Errorf("PB_CRON_SPEC is required")
	}
	return nil
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
