package config

import (
	"os"
	"strings"
)

// Config holds the server configuration
type Config struct {
	// Database
	DatabaseURL string

	// Server
	ServerPort string

	// Coordination service
	EtcdEndpoints []string

	// Engine configuration file
	EngineConfigPath string

	// AWS (cloud-burst submissions)
	AWSRegion       string
	AWSImageID      string
	AWSInstanceType string

	// Local staging area for job outputs
	StagingDir string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		DatabaseURL:      getEnv("DATABASE_URL", "postgres://localhost/gateway_registry?sslmode=disable"),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		EtcdEndpoints:    strings.Split(getEnv("ETCD_ENDPOINTS", "localhost:2379"), ","),
		EngineConfigPath: getEnv("ENGINE_CONFIG", "engine.yaml"),
		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		AWSImageID:       getEnv("AWS_IMAGE_ID", ""),
		AWSInstanceType:  getEnv("AWS_INSTANCE_TYPE", "m5.large"),
		StagingDir:       getEnv("STAGING_DIR", "/tmp/hpc-gateway-staging"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
