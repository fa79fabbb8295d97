package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cognito  CognitoConfig  `mapstructure:"cognito"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
	// Timezone is the IANA zone used for "today" day-boundary math
	// (workout archive windows, login-day recording). Empty means server local.
	Timezone string `mapstructure:"timezone"`
}

// Location resolves the configured timezone, falling back to server local.
func (c ServerConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
	// ConnectTimeout bounds the initial connect+ping and the shutdown
	// disconnect.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// CognitoConfig identifies the user pool whose tokens this service accepts.
type CognitoConfig struct {
	Region     string `mapstructure:"region"`
	UserPoolID string `mapstructure:"user_pool_id"`
	// JWKSURL and Issuer are derived from region/pool when empty.
	// Overridable so tests can point the verifier at a local key server.
	JWKSURL string        `mapstructure:"jwks_url"`
	Issuer  string        `mapstructure:"issuer"`
	KeyTTL  time.Duration `mapstructure:"key_ttl"`
}

// EffectiveJWKSURL returns the configured JWKS endpoint or the standard
// Cognito well-known location for the pool.
func (c CognitoConfig) EffectiveJWKSURL() string {
	if c.JWKSURL != "" {
		return c.JWKSURL
	}
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s/.well-known/jwks.json", c.Region, c.UserPoolID)
}

// EffectiveIssuer returns the configured issuer or the standard Cognito
// issuer for the pool.
func (c CognitoConfig) EffectiveIssuer() string {
	if c.Issuer != "" {
		return c.Issuer
	}
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", c.Region, c.UserPoolID)
}

type LogConfig struct {
	FileName   string `mapstructure:"file_name"`
	ToStdout   bool   `mapstructure:"to_stdout"`
	Level      string `mapstructure:"level"`
	FormatJSON bool   `mapstructure:"format_json"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Env override: server.address -> SERVER_ADDRESS,
	// cognito.user_pool_id -> COGNITO_USER_POOL_ID, etc.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("server.timezone", "")
	viper.SetDefault("database.uri", "mongodb://localhost:27017")
	viper.SetDefault("database.name", "ironlog")
	viper.SetDefault("database.connect_timeout", "10s")
	viper.SetDefault("cognito.key_ttl", "24h")
	viper.SetDefault("log.to_stdout", true)
	viper.SetDefault("log.level", "debug")

	err = viper.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// Config file is optional; env vars and defaults may be enough.
		err = nil
	} else if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	return config, nil
}
