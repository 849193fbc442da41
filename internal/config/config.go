/**
 * @description
 * This file handles the configuration management for the back-office service.
 * It uses the Viper library to read settings from environment variables or a
 * .env file.
 *
 * @dependencies
 * - github.com/spf13/viper: For configuration management.
 */
package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	DatabaseURL         string `mapstructure:"DATABASE_URL"`
	RabbitMQURL         string `mapstructure:"RABBITMQ_URL"`
	IdentityProvider    string `mapstructure:"IDENTITY_PROVIDER"` // "remote" or "local"
	IdentityAPIBaseURL  string `mapstructure:"IDENTITY_API_BASE_URL"`
	IdentityAPIKey      string `mapstructure:"IDENTITY_API_KEY"`
	CardIssuerBaseURL   string `mapstructure:"CARD_ISSUER_BASE_URL"`
	CardIssuerAPIKey    string `mapstructure:"CARD_ISSUER_API_KEY"`
	JWTSecret           string `mapstructure:"JWT_SECRET"`
	ServerPort          string `mapstructure:"SERVER_PORT"`
	RemediationSchedule string `mapstructure:"REMEDIATION_SCHEDULE"`
	AllowedOrigins      string `mapstructure:"ALLOWED_ORIGINS"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("IDENTITY_PROVIDER", "remote")
	viper.SetDefault("REMEDIATION_SCHEDULE", "@hourly")
	viper.SetDefault("ALLOWED_ORIGINS", "*")

	// Bind envs explicitly so containers pick them up reliably
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("IDENTITY_PROVIDER")
	_ = viper.BindEnv("IDENTITY_API_BASE_URL")
	_ = viper.BindEnv("IDENTITY_API_KEY")
	_ = viper.BindEnv("CARD_ISSUER_BASE_URL")
	_ = viper.BindEnv("CARD_ISSUER_API_KEY")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("REMEDIATION_SCHEDULE")
	_ = viper.BindEnv("ALLOWED_ORIGINS")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("Warning: Error reading config file: %s", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
