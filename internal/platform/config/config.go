// Package config loads orchestrator configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// Config holds all configuration for the orchestrator process.
type Config struct {
	Service      ServiceConfig      `mapstructure:"service"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	AWS          AWSConfig          `mapstructure:"aws"`
	Security     SecurityConfig     `mapstructure:"security"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
	Version      string             `mapstructure:"version"`
}

// ServiceConfig holds service identity.
type ServiceConfig struct {
	Name        string `mapstructure:"name" envconfig:"SERVICE_NAME"`
	Environment string `mapstructure:"environment" envconfig:"ENVIRONMENT" default:"development"`
}

// OrchestratorConfig holds orchestrator runtime tuning.
type OrchestratorConfig struct {
	ContainerPoolSize      int           `mapstructure:"container_pool_size" envconfig:"CONTAINER_POOL_SIZE" default:"4"`
	ContainerPoolMaxSize   int           `mapstructure:"container_pool_max_size" envconfig:"CONTAINER_POOL_MAX_SIZE" default:"10"`
	MaxConcurrentTasks     int           `mapstructure:"max_concurrent_tasks" envconfig:"MAX_CONCURRENT_TASKS" default:"8"`
	SchedulerTickInterval  time.Duration `mapstructure:"scheduler_tick_interval" envconfig:"SCHEDULER_TICK_INTERVAL" default:"1s"`
	HealthCheckInterval    time.Duration `mapstructure:"health_check_interval" envconfig:"HEALTH_CHECK_INTERVAL" default:"30s"`
	TaskHistoryLimit       int           `mapstructure:"task_history_limit" envconfig:"TASK_HISTORY_LIMIT" default:"1000"`
	DefaultRetryMaxAttempts int          `mapstructure:"default_retry_max_attempts" envconfig:"DEFAULT_RETRY_MAX_ATTEMPTS" default:"3"`
	DefaultRetryBaseDelay  time.Duration `mapstructure:"default_retry_base_delay" envconfig:"DEFAULT_RETRY_BASE_DELAY" default:"500ms"`
}

// RedisConfig holds optional distributed quota-cache configuration.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled" envconfig:"REDIS_ENABLED" default:"false"`
	Host         string        `mapstructure:"host" envconfig:"REDIS_HOST" default:"localhost"`
	Port         int           `mapstructure:"port" envconfig:"REDIS_PORT" default:"6379"`
	Password     string        `mapstructure:"password" envconfig:"REDIS_PASSWORD"`
	DB           int           `mapstructure:"db" envconfig:"REDIS_DB" default:"0"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

// KafkaConfig holds optional task-event publisher configuration.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled" envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers []string `mapstructure:"brokers" envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	Topic   string   `mapstructure:"topic" envconfig:"KAFKA_TOPIC" default:"orchestrator-task-events"`
}

// AWSConfig holds credentials resolution settings for the Bedrock cloud-LLM
// worker variant. Empty fields fall back to the default AWS credential chain.
type AWSConfig struct {
	Region          string `mapstructure:"region" envconfig:"AWS_REGION" default:"us-east-1"`
	Profile         string `mapstructure:"profile" envconfig:"AWS_PROFILE"`
	AccessKeyID     string `mapstructure:"access_key_id" envconfig:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `mapstructure:"secret_access_key" envconfig:"AWS_SECRET_ACCESS_KEY"`
}

// SecurityConfig holds the credential-at-rest encryption key material.
type SecurityConfig struct {
	EncryptionKey       string `mapstructure:"encryption_key" envconfig:"ENCRYPTION_KEY"`
	EncryptionKeyType   string `mapstructure:"encryption_key_type" envconfig:"ENCRYPTION_KEY_TYPE" default:"passphrase"`
	RemoteWorkerJWTSecret string `mapstructure:"remote_worker_jwt_secret" envconfig:"REMOTE_WORKER_JWT_SECRET" default:"change-me"`
}

// LoggerConfig holds logger configuration.
type LoggerConfig struct {
	Level      string `mapstructure:"level" envconfig:"LOG_LEVEL" default:"info"`
	Format     string `mapstructure:"format" envconfig:"LOG_FORMAT" default:"json"`
	OutputPath string `mapstructure:"output_path" envconfig:"LOG_OUTPUT_PATH" default:"stdout"`
}

// TelemetryConfig holds tracing/metrics configuration.
type TelemetryConfig struct {
	MetricsEnabled bool   `mapstructure:"metrics_enabled" envconfig:"METRICS_ENABLED" default:"true"`
	TracingEnabled bool   `mapstructure:"tracing_enabled" envconfig:"TRACING_ENABLED" default:"false"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint" envconfig:"JAEGER_ENDPOINT" default:"http://localhost:14268/api/traces"`
	ServiceName    string `mapstructure:"service_name" envconfig:"TELEMETRY_SERVICE_NAME"`
}

// Load loads configuration from ./configs/config.yaml (if present) and
// overrides it with environment variables.
func Load(serviceName string) (*Config, error) {
	var cfg Config

	cfg.Service.Name = serviceName
	cfg.Telemetry.ServiceName = serviceName

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env vars: %w", err)
	}

	envPrefix := fmt.Sprintf("%s_", toEnvPrefix(serviceName))
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process service env vars: %w", err)
	}

	if version := os.Getenv("VERSION"); version != "" {
		cfg.Version = version
	} else {
		cfg.Version = "dev"
	}

	return &cfg, nil
}

// Addr returns the Redis address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func toEnvPrefix(name string) string {
	result := ""
	for i, r := range name {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result += "_"
		}
		if r >= 'a' && r <= 'z' {
			result += string(r - 32)
		} else {
			result += string(r)
		}
	}
	return result
}
