package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort int `env:"BANK_HTTP_PORT"`

	DBConfig struct {
		Host     string `env:"BANK_DB_HOST"`
		Port     int    `env:"BANK_DB_PORT"`
		User     string `env:"BANK_DB_USER"`
		Password string `env:"BANK_DB_PASSWORD"`
		Name     string `env:"BANK_DB_NAME"`
		SSLMode  string `env:"BANK_DB_SSLMODE"`
	}

	MigrationsPath string `env:"BANK_MIGRATIONS_PATH"`

	KafkaBrokerURL   string `env:"KAFKA_BROKER_URL"`
	KafkaEventsTopic string `env:"KAFKA_BANK_EVENTS_TOPIC"`

	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL"`
	OutboxPollTimeout  time.Duration `env:"OUTBOX_POLL_TIMEOUT"`
	SweepInterval      time.Duration `env:"SWEEP_INTERVAL"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.HTTPPort = getEnvAsInt("BANK_HTTP_PORT", 8080)

	cfg.DBConfig.Host = getEnvOrDefault("BANK_DB_HOST", "localhost")
	cfg.DBConfig.Port = getEnvAsInt("BANK_DB_PORT", 5432)
	cfg.DBConfig.User = getEnvOrDefault("BANK_DB_USER", "bank")
	cfg.DBConfig.Password = getEnvOrDefault("BANK_DB_PASSWORD", "bank")
	cfg.DBConfig.Name = getEnvOrDefault("BANK_DB_NAME", "bank_db")
	cfg.DBConfig.SSLMode = getEnvOrDefault("BANK_DB_SSLMODE", "disable")

	cfg.MigrationsPath = getEnvOrDefault("BANK_MIGRATIONS_PATH", "file://migrations")

	cfg.KafkaBrokerURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.KafkaEventsTopic = getEnvOrDefault("KAFKA_BANK_EVENTS_TOPIC", "bank_domain_events")

	cfg.OutboxPollInterval = getEnvAsDuration("OUTBOX_POLL_INTERVAL", 1*time.Second)
	cfg.OutboxPollTimeout = getEnvAsDuration("OUTBOX_POLL_TIMEOUT", 500*time.Millisecond)
	cfg.SweepInterval = getEnvAsDuration("SWEEP_INTERVAL", 1*time.Hour)

	return cfg, nil
}

func (c *Config) GetDBMigrationConnectionString() string {
	return "postgres://" + c.DBConfig.User + ":" + c.DBConfig.Password + "@" +
		c.DBConfig.Host + ":" + strconv.Itoa(c.DBConfig.Port) + "/" + c.DBConfig.Name +
		"?sslmode=" + c.DBConfig.SSLMode
}

func (c *Config) GetKafkaBrokers() []string {
	return strings.Split(c.KafkaBrokerURL, ",")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
