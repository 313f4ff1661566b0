// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	// Defaults
	DefaultLogLevel   = "info"
	DefaultImage      = "ghcr.io/deckhand/worker:latest"
	DefaultContainer  = "deckhand-worker"
	DefaultVolume     = "deckhand-auth"
	DefaultDbPath     = "/var/lib/deckhand/deckhand.db"
	DefaultCron       = "0 4 * * *"
	DefaultStopSecs   = 30

	// Environment variables
	EnvPrefix     = "DECKHAND_"
	EnvLogLevel   = EnvPrefix + "LOG_LEVEL"
	EnvImage      = EnvPrefix + "IMAGE"
	EnvContainer  = EnvPrefix + "CONTAINER"
	EnvVolume     = EnvPrefix + "VOLUME"
	EnvDbPath     = EnvPrefix + "DB"
	EnvAppriseURL = EnvPrefix + "APPRISE_URL"
	EnvCron       = EnvPrefix + "UPDATE_CRON"
)

// Config holds the global application configuration.
type Config struct {
	// General parameters
	LogLevel   string
	AppriseURL string
	DbPath     string

	// Worker container identity
	Image         string // image reference the worker runs from
	ContainerName string // fixed name of the long-running container
	VolumeName    string // durable volume holding auth/credential state

	// Behavior
	IgnoreWarnings bool   // proceed past requirement warnings without asking
	Yes            bool   // assume yes on every prompt
	AutoUpdate     bool   // keep running and apply updates on a schedule
	UpdateCron     string // cron expression for --auto-update

	StopTimeout int // seconds granted to the old container to stop

	// Configured logger
	Logger *logrus.Logger
}

// NewConfig returns a configuration populated with defaults.
func NewConfig() *Config {
	return &Config{
		LogLevel:      DefaultLogLevel,
		Image:         DefaultImage,
		ContainerName: DefaultContainer,
		VolumeName:    DefaultVolume,
		DbPath:        DefaultDbPath,
		UpdateCron:    DefaultCron,
		StopTimeout:   DefaultStopSecs,
		Logger:        newLogger(DefaultLogLevel),
	}
}

// LoadFromEnv overlays configuration from environment variables.
func (c *Config) LoadFromEnv() error {
	if level := os.Getenv(EnvLogLevel); level != "" {
		if err := c.SetLogLevel(level); err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
	}
	if image := os.Getenv(EnvImage); image != "" {
		c.Image = image
	}
	if name := os.Getenv(EnvContainer); name != "" {
		c.ContainerName = name
	}
	if volume := os.Getenv(EnvVolume); volume != "" {
		c.VolumeName = volume
	}
	if path := os.Getenv(EnvDbPath); path != "" {
		c.DbPath = path
	}
	if url := os.Getenv(EnvAppriseURL); url != "" {
		c.AppriseURL = url
	}
	if cron := os.Getenv(EnvCron); cron != "" {
		c.UpdateCron = cron
	}
	return nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level '%s': %w", c.LogLevel, err)
	}
	if c.Image == "" {
		return fmt.Errorf("worker image cannot be empty")
	}
	if c.ContainerName == "" {
		return fmt.Errorf("container name cannot be empty")
	}
	if strings.ContainsAny(c.ContainerName, " /") {
		return fmt.Errorf("invalid container name: %q", c.ContainerName)
	}
	if c.VolumeName == "" {
		return fmt.Errorf("volume name cannot be empty")
	}
	if c.DbPath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.StopTimeout < 1 {
		return fmt.Errorf("stop timeout must be at least 1 second")
	}
	return nil
}

// EffectiveImage resolves the image reference to use, applying an optional
// tag (or full reference) override from the command line.
func (c *Config) EffectiveImage(tagOrRef string) string {
	if tagOrRef == "" {
		return c.Image
	}
	// Anything with a path or tag separator is taken as a full reference.
	if strings.ContainsAny(tagOrRef, "/:@") {
		return tagOrRef
	}
	base := c.Image
	if colon := strings.LastIndex(base, ":"); colon > strings.LastIndex(base, "/") {
		base = base[:colon]
	}
	return base + ":" + tagOrRef
}

// SetLogLevel adjusts the log level on the configured logger.
func (c *Config) SetLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	c.LogLevel = level
	c.Logger.SetLevel(lvl)
	return nil
}

// newLogger builds a logger with the project-wide format.
func newLogger(level string) *logrus.Logger {
	logger := logrus.New()

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if lvl, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	return logger
}
