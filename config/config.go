package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	NATS      NATSConfig      `yaml:"nats"`
	DynamoDB  DynamoDBConfig  `yaml:"dynamodb"`
	Geocoder  GeocoderConfig  `yaml:"geocoder"`
	Providers ProvidersConfig `yaml:"providers"`
	FleetSync FleetSyncConfig `yaml:"fleetsync"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) ConnString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, sslMode)
}

type StorageConfig struct {
	Driver     string `yaml:"driver"` // "postgres" | "sqlite"
	SQLitePath string `yaml:"sqlite_path"`
}

type KafkaConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	AlertsTopicName string `yaml:"alerts_topic_name"`
	SyncedTopicName string `yaml:"synced_topic_name"`
	ConsumerGroup   string `yaml:"consumer_group"`
}

func (k KafkaConfig) Enabled() bool { return k.Host != "" }

func (k KafkaConfig) Brokers() []string {
	return []string{fmt.Sprintf("%s:%d", k.Host, k.Port)}
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (r RedisConfig) Enabled() bool { return r.Host != "" }

func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%d", r.Host, r.Port) }

type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type DynamoDBConfig struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	TableName string `yaml:"table_name"`
}

func (d DynamoDBConfig) Enabled() bool { return d.TableName != "" }

type GeocoderConfig struct {
	BaseURL         string `yaml:"base_url"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	Concurrency     int    `yaml:"concurrency"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	Disabled        bool   `yaml:"disabled"`
}

type ProvidersConfig struct {
	Traccar   ProviderConfig `yaml:"traccar"`
	Sensolus  ProviderConfig `yaml:"sensolus"`
	Tive      ProviderConfig `yaml:"tive"`
	Project44 ProviderConfig `yaml:"project44"`
}

type ProviderConfig struct {
	Enabled            bool   `yaml:"enabled"`
	Mode               string `yaml:"mode"` // "http" (default) | "fake"
	BaseURL            string `yaml:"base_url"`
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	APIKey             string `yaml:"api_key"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	// FakeDevices is used only with mode "fake".
	FakeDevices []string `yaml:"fake_devices"`
}

func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

type FleetSyncConfig struct {
	HTTPAddr       string `yaml:"http_addr"`
	GRPCAddr       string `yaml:"grpc_addr"`
	WorkerHTTPAddr string `yaml:"worker_http_addr"`

	SyncTimeoutSeconds       int `yaml:"sync_timeout_seconds"`
	LockTTLSeconds           int `yaml:"lock_ttl_seconds"`
	LockWaitSeconds          int `yaml:"lock_wait_seconds"`
	DefaultBatteryLevel      int `yaml:"default_battery_level"`
	AlertCooldownSeconds     int `yaml:"alert_cooldown_seconds"`
	ShipmentsCacheTTLSeconds int `yaml:"shipments_cache_ttl_seconds"`

	// Status tiers: fix age in minutes, speed in km/h.
	StatusMovingKmh    float64 `yaml:"status_moving_kmh"`
	StatusFreshMinutes int     `yaml:"status_fresh_minutes"`
	StatusIdleMinutes  int     `yaml:"status_idle_minutes"`
	StatusStaleMinutes int     `yaml:"status_stale_minutes"`

	WorkerPollIntervalSeconds int `yaml:"worker_poll_interval_seconds"`
	WorkerBatchSize           int `yaml:"worker_batch_size"`
	WorkerConcurrency         int `yaml:"worker_concurrency"`
	WorkerLeaseSeconds        int `yaml:"worker_lease_seconds"`
	WorkerSyncIntervalSeconds int `yaml:"worker_sync_interval_seconds"`
	WorkerBackoff1Seconds     int `yaml:"worker_backoff_1_seconds"`
	WorkerBackoff2Seconds     int `yaml:"worker_backoff_2_seconds"`
	WorkerBackoff3Seconds     int `yaml:"worker_backoff_3_seconds"`
	WorkerBackoff4Seconds     int `yaml:"worker_backoff_4_seconds"`

	// Owners seeded into sync_schedules on worker start.
	Owners []string `yaml:"owners"`
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

	// .env необязателен: в контейнерах переменные приходят из окружения.
	_ = godotenv.Load()
	config.ApplyEnv()

	return config.WithDefaults(), nil
}

// ApplyEnv overrides secrets from the environment.
func (c *Config) ApplyEnv() {
	override := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	override(&c.Providers.Traccar.Username, "TRACCAR_USERNAME")
	override(&c.Providers.Traccar.Password, "TRACCAR_PASSWORD")
	override(&c.Providers.Sensolus.APIKey, "SENSOLUS_API_KEY")
	override(&c.Providers.Tive.APIKey, "TIVE_API_KEY")
	override(&c.Providers.Project44.APIKey, "PROJECT44_API_KEY")
	override(&c.Database.Password, "DATABASE_PASSWORD")
}

func (c *Config) WithDefaults() *Config {
	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "fleetsync.db"
	}
	if c.Kafka.AlertsTopicName == "" {
		c.Kafka.AlertsTopicName = "shipment.alerts"
	}
	if c.Kafka.SyncedTopicName == "" {
		c.Kafka.SyncedTopicName = "shipments.synced"
	}
	if c.Kafka.ConsumerGroup == "" {
		c.Kafka.ConsumerGroup = "sync-api"
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "fleetsync.alerts"
	}
	if c.DynamoDB.Region == "" {
		c.DynamoDB.Region = "eu-west-1"
	}
	if c.Geocoder.BaseURL == "" {
		c.Geocoder.BaseURL = "https://api.bigdatacloud.net"
	}
	if c.Geocoder.TimeoutSeconds <= 0 {
		c.Geocoder.TimeoutSeconds = 3
	}
	if c.Geocoder.Concurrency <= 0 {
		c.Geocoder.Concurrency = 4
	}
	if c.Geocoder.CacheTTLSeconds <= 0 {
		c.Geocoder.CacheTTLSeconds = 24 * 3600
	}
	for _, p := range []*ProviderConfig{&c.Providers.Traccar, &c.Providers.Sensolus, &c.Providers.Tive, &c.Providers.Project44} {
		if p.Mode == "" {
			p.Mode = "http"
		}
		if p.TimeoutSeconds <= 0 {
			p.TimeoutSeconds = 10
		}
	}

	f := &c.FleetSync
	if f.HTTPAddr == "" {
		f.HTTPAddr = ":8080"
	}
	if f.GRPCAddr == "" {
		f.GRPCAddr = ":50051"
	}
	if f.WorkerHTTPAddr == "" {
		f.WorkerHTTPAddr = ":8081"
	}
	if f.SyncTimeoutSeconds <= 0 {
		f.SyncTimeoutSeconds = 45
	}
	if f.LockTTLSeconds <= 0 {
		f.LockTTLSeconds = 60
	}
	if f.DefaultBatteryLevel <= 0 {
		f.DefaultBatteryLevel = 85
	}
	if f.AlertCooldownSeconds <= 0 {
		f.AlertCooldownSeconds = 24 * 3600
	}
	if f.ShipmentsCacheTTLSeconds <= 0 {
		f.ShipmentsCacheTTLSeconds = 60
	}
	if f.StatusMovingKmh <= 0 {
		f.StatusMovingKmh = 5
	}
	if f.StatusFreshMinutes <= 0 {
		f.StatusFreshMinutes = 5
	}
	if f.StatusIdleMinutes <= 0 {
		f.StatusIdleMinutes = 30
	}
	if f.StatusStaleMinutes <= 0 {
		f.StatusStaleMinutes = 60
	}
	if f.WorkerPollIntervalSeconds <= 0 {
		f.WorkerPollIntervalSeconds = 2
	}
	if f.WorkerBatchSize <= 0 {
		f.WorkerBatchSize = 50
	}
	if f.WorkerConcurrency <= 0 {
		f.WorkerConcurrency = 4
	}
	if f.WorkerLeaseSeconds <= 0 {
		f.WorkerLeaseSeconds = 120
	}
	if f.WorkerSyncIntervalSeconds <= 0 {
		f.WorkerSyncIntervalSeconds = 30
	}
	if f.WorkerBackoff1Seconds <= 0 {
		f.WorkerBackoff1Seconds = 60
	}
	if f.WorkerBackoff2Seconds <= 0 {
		f.WorkerBackoff2Seconds = 120
	}
	if f.WorkerBackoff3Seconds <= 0 {
		f.WorkerBackoff3Seconds = 300
	}
	if f.WorkerBackoff4Seconds <= 0 {
		f.WorkerBackoff4Seconds = 600
	}
	return c
}

func Seconds(n int) time.Duration { return time.Duration(n) * time.Second }
