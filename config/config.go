package config

import (
	"fmt"
	"net/url"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	CarrierBox CarrierBoxConfig `yaml:"carrierbox"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                     string `yaml:"host"`
	Port                     int    `yaml:"port"`
	ShipmentCreatedTopicName string `yaml:"shipment_created_topic_name"`
	LabelCreatedTopicName    string `yaml:"label_created_topic_name"`
	LineItemsTopicName       string `yaml:"line_items_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type CarrierBoxConfig struct {
	HTTPAddr        string `yaml:"http_addr"`
	TokenTTLSeconds int    `yaml:"token_ttl_seconds"`

	// Per-username /auth/token attempts per minute. Only enforced when redis is configured.
	LoginRateLimitPerMinute int `yaml:"login_rate_limit_per_minute"`

	// Replaces the built-in demo users when non-empty.
	Users []UserConfig `yaml:"users"`

	DiscrepancyConsumerGroup string `yaml:"discrepancy_consumer_group"`
}

type UserConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Surname  string `yaml:"surname"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}

// PostgresConnString builds a pgx connection string, defaulting ssl_mode to "disable".
func (c DatabaseConfig) PostgresConnString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

// Brokers returns nil when kafka is not configured.
func (c KafkaConfig) Brokers() []string {
	if c.Host == "" {
		return nil
	}
	return []string{fmt.Sprintf("%s:%d", c.Host, c.Port)}
}

// Addr returns "" when redis is not configured.
func (c RedisConfig) Addr() string {
	if c.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
