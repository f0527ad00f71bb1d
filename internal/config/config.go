package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application's configuration.
type Config struct {
	// APIBaseURL is the backend base URL including the /api prefix.
	APIBaseURL string
	// RequestTimeout bounds every backend call.
	RequestTimeout time.Duration
	// DefaultToken is the fallback device token injected at the
	// credential-store boundary. Empty means no fallback.
	DefaultToken string

	// PollInterval is how often the monitor refreshes each device.
	PollInterval time.Duration

	// RedisAddr enables the persistent credential cache when set.
	RedisAddr string

	// InfluxDB archive target. Archiving is disabled when the URL is
	// empty.
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	// MQTT republishing target. Disabled when the broker is empty.
	MQTTBroker   string
	MQTTClientID string
	MQTTTopic    string

	// MetricsAddr is where the monitor serves /metrics and /health.
	MetricsAddr string

	// DevServerAddr is the listen address for the dev backend.
	DevServerAddr string
}

// Load reads the configuration from environment variables, with a
// .env file taken into account when present.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system environment variables")
	}

	return Config{
		APIBaseURL:     getEnv("API_URL", "http://localhost:5000/api"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT_MS", 60*time.Second),
		DefaultToken:   getEnv("DEFAULT_DEVICE_TOKEN", ""),
		PollInterval:   getEnvDuration("POLL_INTERVAL_MS", 30*time.Second),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		InfluxURL:      getEnv("INFLUXDB_URL", ""),
		InfluxToken:    getEnv("INFLUXDB_TOKEN", ""),
		InfluxOrg:      getEnv("INFLUXDB_ORG", ""),
		InfluxBucket:   getEnv("INFLUXDB_BUCKET", "sensor_data"),
		MQTTBroker:     getEnv("MQTT_BROKER", ""),
		MQTTClientID:   getEnv("MQTT_CLIENT_ID", "farmlink-monitor"),
		MQTTTopic:      getEnv("MQTT_TOPIC", "farmlink/readings"),
		MetricsAddr:    getEnv("METRICS_ADDR", ":9090"),
		DevServerAddr:  getEnv("DEVSERVER_ADDR", ":5000"),
	}
}

// getEnv returns the value of key or fallback when unset.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvDuration reads a millisecond count from the environment.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	ms, err := strconv.Atoi(value)
	if err != nil || ms <= 0 {
		log.Printf("Invalid %s value %q, using default %s", key, value, fallback)
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
