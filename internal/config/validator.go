package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rohankatakam/devpulse/internal/errors"
	"github.com/rohankatakam/devpulse/internal/logging"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, e := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", e))
	}
	if len(vr.Warnings) > 0 {
		sb.WriteString("warnings:\n")
		for _, w := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", w))
		}
	}
	return sb.String()
}

// Validate checks the configuration needed to serve the dashboard
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch c.Storage.Type {
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			result.AddError("storage.postgres_dsn is required when storage.type is postgres")
		}
	case "sqlite":
		if c.Storage.LocalPath == "" {
			result.AddError("storage.local_path is required when storage.type is sqlite")
		}
		if c.Database.PostgresDSN != "" {
			result.AddWarning("database.postgres_dsn is set; analytics will read Postgres while segments stay in sqlite")
		}
	default:
		result.AddError("storage.type must be postgres or sqlite, got %q", c.Storage.Type)
	}

	if c.UsesPostgres() && c.Database.PostgresDSN == "" {
		result.AddError("database.postgres_dsn is required with postgres storage")
	}

	if c.Server.Addr == "" {
		result.AddError("server.addr is required")
	}
	switch c.Server.Mode {
	case "", "debug", "release", "test":
	default:
		result.AddError("server.mode must be debug, release or test, got %q", c.Server.Mode)
	}
	if c.Jobs.TZ != "" {
		if _, err := time.LoadLocation(c.Jobs.TZ); err != nil {
			result.AddError("jobs.tz is invalid: %v", err)
		}
	}
	if c.Server.RateLimit < 0 {
		result.AddError("server.rate_limit must not be negative")
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst <= 0 {
		result.AddError("server.rate_burst must be positive when rate limiting is enabled")
	}

	if c.Cache.RedisAddr == "" && c.Cache.BoltPath == "" {
		result.AddWarning("no shared cache configured; results are cached in memory only")
	}

	if c.Jobs.WarmCron != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(c.Jobs.WarmCron); err != nil {
			result.AddError("jobs.warm_cron is invalid: %v", err)
		}
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		result.AddError("logging.level: %v", err)
	}

	return result
}

// MustValidate returns a config error if validation fails
func (c *Config) MustValidate() error {
	if result := c.Validate(); result.HasErrors() {
		return errors.ConfigErrorf("%s", result.Error())
	}
	return nil
}
