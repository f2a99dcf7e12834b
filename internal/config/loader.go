package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables read by Load itself.
const (
	EnvPrefix = "ATTENDSYNC_"
	EnvConfig = EnvPrefix + "CONFIG"
	EnvDotenv = EnvPrefix + "DOTENV"

	defaultDotenv = ".env"
)

// Load builds a Config by layering defaults, .env, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. .env file (ATTENDSYNC_DOTENV, or ./.env when present); never overrides
//     variables already set in the process
//  3. file (YAML) if ATTENDSYNC_CONFIG is set
//  4. env (prefix ATTENDSYNC_, "__" separates nested keys)
func Load(_ context.Context) (*Config, error) {
	if err := loadDotenv(); err != nil {
		return nil, err
	}

	base := New()
	k := koanf.New(".")

	if path := os.Getenv(EnvConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, wrapLoad(path, err)
		}
	}

	// ATTENDSYNC_SYNC__BATCH_SIZE -> sync.batch_size
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, wrapLoad("env", err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, wrapLoad("unmarshal", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotenv() error {
	path := os.Getenv(EnvDotenv)
	explicit := path != ""
	if !explicit {
		path = defaultDotenv
	}
	err := godotenv.Load(path)
	switch {
	case err == nil:
		return nil
	case !explicit && errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return wrapLoad(path, err)
	}
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return wrapInvalid(err.Error())
	}
	if !c.Source.Enabled() {
		return wrapInvalid("source.driver must be set")
	}
	if !c.Target.Enabled() {
		return wrapInvalid("target.driver must be set")
	}
	for _, d := range append([]Database{c.Source, c.Target, c.Mirror}, c.ExtraSources...) {
		if d.Enabled() && d.Driver != "memory" && d.DSN == "" {
			return wrapInvalid(d.Driver + " database needs a dsn")
		}
	}
	if c.Notify.Endpoint != "" && len(c.Notify.Recipients) == 0 {
		return wrapInvalid("notify.recipients must be set with notify.endpoint")
	}
	if _, err := c.Templates(); err != nil {
		return err
	}
	return nil
}
