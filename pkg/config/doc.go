// Package config loads application configuration from environment variables
// into typed structs.
//
// It combines github.com/joho/godotenv and github.com/caarlos0/env/v11: a
// default .env file is read once per process, then environment variables are
// parsed into any struct carrying `env` field tags. Each configuration type
// is parsed a single time and cached for the lifetime of the process, so
// packages can call Load for their own Config without coordinating.
//
// Usage:
//
//	type GatewayConfig struct {
//		SecretKey     string `env:"STRIPE_SECRET_KEY,required"`
//		WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"`
//	}
//
//	var cfg GatewayConfig
//	if err := config.Load(&cfg); err != nil {
//		// handle error
//	}
//
// MustLoad panics on failure and is intended for configuration the process
// cannot start without.
package config
