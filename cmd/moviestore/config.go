package main

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkbelov/moviestore/internal/logger"
)

const (
	defaultListenAddr    = "localhost:8000"
	defaultLoggingLevel  = logger.LevelInfo
	defaultPublicBaseURL = "http://localhost:8000"
	defaultSweepInterval = 1 * time.Hour
	defaultSMTPPort      = 587
)

type Config struct {
	// Default logging level and format ("text" or "json")
	LogLevel  string
	LogFormat string

	// Address on which the service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Signing secrets for JWT tokens. Access and refresh tokens use
	// different keys.
	AccessSecret  string
	RefreshSecret string

	// Token lifetimes; zero means the service's defaults
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	ActivationTTL time.Duration
	ResetTTL      time.Duration

	// Base URL embedded into emailed links
	PublicBaseURL string

	// SMTP transport; when Host is empty outgoing email is logged instead
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	SMTPTLS      bool

	// How often expired activation tokens are removed
	SweepInterval time.Duration
}

func NewConfig() *Config {
	return &Config{
		LogLevel:      defaultLoggingLevel,
		LogFormat:     "text",
		ListenAddr:    defaultListenAddr,
		PublicBaseURL: defaultPublicBaseURL,
		SMTPPort:      defaultSMTPPort,
		SweepInterval: defaultSweepInterval,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}
	setInt := func(o *int) func(value string) {
		return func(value string) {
			if n, err := strconv.Atoi(value); err == nil {
				*o = n
			}
		}
	}
	setBool := func(o *bool) func(value string) {
		return func(value string) {
			if b, err := strconv.ParseBool(value); err == nil {
				*o = b
			}
		}
	}
	setDuration := func(o *time.Duration) func(value string) {
		return func(value string) {
			if d, err := time.ParseDuration(value); err == nil {
				*o = d
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":     setString(&c.ListenAddr),
		"DATABASE_URI":    setString(&c.DatabaseDSN),
		"ACCESS_SECRET":   setString(&c.AccessSecret),
		"REFRESH_SECRET":  setString(&c.RefreshSecret),
		"ACCESS_TTL":      setDuration(&c.AccessTTL),
		"REFRESH_TTL":     setDuration(&c.RefreshTTL),
		"ACTIVATION_TTL":  setDuration(&c.ActivationTTL),
		"RESET_TTL":       setDuration(&c.ResetTTL),
		"PUBLIC_BASE_URL": setString(&c.PublicBaseURL),
		"SMTP_HOST":       setString(&c.SMTPHost),
		"SMTP_PORT":       setInt(&c.SMTPPort),
		"SMTP_USERNAME":   setString(&c.SMTPUsername),
		"SMTP_PASSWORD":   setString(&c.SMTPPassword),
		"SMTP_FROM":       setString(&c.SMTPFrom),
		"SMTP_FROM_NAME":  setString(&c.SMTPFromName),
		"SMTP_TLS":        setBool(&c.SMTPTLS),
		"SWEEP_INTERVAL":  setDuration(&c.SweepInterval),
		"LOG_LEVEL":       setString(&c.LogLevel),
		"LOG_FORMAT":      setString(&c.LogFormat),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("moviestore", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVar(&c.AccessSecret, "access-secret", c.AccessSecret, "Access token signing secret")
	fs.StringVar(&c.RefreshSecret, "refresh-secret", c.RefreshSecret, "Refresh token signing secret")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "Logging format (text, json)")
	fs.StringVarP(&c.PublicBaseURL, "base-url", "b", c.PublicBaseURL, "Public base URL for emailed links")
	fs.DurationVar(&c.SweepInterval, "sweep-interval", c.SweepInterval, "Expired activation token sweep interval")

	return fs.Parse(args)
}
