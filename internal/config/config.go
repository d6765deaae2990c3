/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the billpay-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort            string `mapstructure:"SERVER_PORT"`
	DatabaseURL           string `mapstructure:"DATABASE_URL"`
	RedisURL              string `mapstructure:"REDIS_URL"`
	RedisCachePrefix      string `mapstructure:"REDIS_CACHE_PREFIX"`
	RabbitMQURL           string `mapstructure:"RABBITMQ_URL"`
	BillerAPIBaseURL      string `mapstructure:"BILLER_API_BASE_URL"`
	BillerAPIKey          string `mapstructure:"BILLER_API_KEY"`
	SessionJWKSURL        string `mapstructure:"SESSION_JWKS_URL"`
	CountryCode           string `mapstructure:"COUNTRY_CODE"`
	ConfirmTimeoutSeconds int    `mapstructure:"CONFIRM_TIMEOUT_SECONDS"`
	FlowTTLMinutes        int    `mapstructure:"FLOW_TTL_MINUTES"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_CACHE_PREFIX", "billpay:cache")
	viper.SetDefault("COUNTRY_CODE", "NG")
	viper.SetDefault("CONFIRM_TIMEOUT_SECONDS", 15)
	viper.SetDefault("FLOW_TTL_MINUTES", 15)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "BILLPAY_REDIS_URL")
	_ = viper.BindEnv("REDIS_CACHE_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("BILLER_API_BASE_URL")
	_ = viper.BindEnv("BILLER_API_KEY")
	_ = viper.BindEnv("SESSION_JWKS_URL")
	_ = viper.BindEnv("COUNTRY_CODE")
	_ = viper.BindEnv("CONFIRM_TIMEOUT_SECONDS")
	_ = viper.BindEnv("FLOW_TTL_MINUTES")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisCachePrefix = strings.TrimSpace(config.RedisCachePrefix)
	if config.RedisCachePrefix == "" {
		config.RedisCachePrefix = "billpay:cache"
	}
	config.CountryCode = strings.ToUpper(strings.TrimSpace(config.CountryCode))
	if config.CountryCode == "" {
		config.CountryCode = "NG"
	}

	if config.ConfirmTimeoutSeconds <= 0 {
		log.Printf("level=warn component=config msg=\"invalid confirm timeout; using default\" seconds=%d", config.ConfirmTimeoutSeconds)
		config.ConfirmTimeoutSeconds = 15
	}
	if config.FlowTTLMinutes <= 0 {
		log.Printf("level=warn component=config msg=\"invalid flow ttl; using default\" minutes=%d", config.FlowTTLMinutes)
		config.FlowTTLMinutes = 15
	}

	return
}
