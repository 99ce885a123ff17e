package config

import (
	"os"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/pflag"
)

type Config struct {
	HTTPPort           string
	MongoURI           string
	MongoDBName        string
	RedisAddr          string
	RedisPassword      string
	KafkaBrokers       []string
	KafkaTopic         string
	CORSAllowedOrigins []string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
	GuestCartTTL       time.Duration
	LogLevel           string
}

// Load reads the configuration from the environment. Command-line flags override it.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("cart-service", pflag.ContinueOnError)

	cfg := &Config{}
	fs.StringVar(&cfg.HTTPPort, "http-port", getEnv("HTTP_PORT", "8080"), "HTTP listen port")
	fs.StringVar(&cfg.MongoURI, "mongo-uri", getEnv("MONGO_URI", "mongodb://localhost:27017"), "MongoDB connection URI")
	fs.StringVar(&cfg.MongoDBName, "mongo-db", getEnv("MONGO_DB_NAME", "cartdb"), "MongoDB database name")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis address")
	fs.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	brokers := fs.String("kafka-brokers", getEnv("KAFKA_BROKERS", "localhost:9092"), "comma separated Kafka brokers, empty disables the checkout consumer")
	fs.StringVar(&cfg.KafkaTopic, "kafka-topic", getEnv("KAFKA_TOPIC", "checkout-outbox"), "checkout events topic")
	origins := fs.String("cors-allowed-origins", getEnv("CORS_ALLOWED_ORIGINS", "*"), "comma separated allowed CORS origins")
	requestTimeout := fs.String("request-timeout", getEnv("REQUEST_TIMEOUT", "30s"), "per request timeout")
	shutdownTimeout := fs.String("shutdown-timeout", getEnv("SHUTDOWN_TIMEOUT", "10s"), "graceful shutdown timeout")
	fs.Int64Var(&cfg.MaxRequestBodySize, "max-request-body-size", 1<<20, "maximum request body size in bytes") // 1MB
	guestTTL := fs.String("guest-cart-ttl", getEnv("GUEST_CART_TTL", "168h"), "guest cart inactivity TTL")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "log level")

	if v := os.Getenv("MAX_REQUEST_BODY_SIZE"); v != "" {
		if err := fs.Set("max-request-body-size", v); err != nil {
			return nil, errors.Wrap(err, "MAX_REQUEST_BODY_SIZE")
		}
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var err error
	if cfg.RequestTimeout, err = parseDuration("request-timeout", *requestTimeout); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = parseDuration("shutdown-timeout", *shutdownTimeout); err != nil {
		return nil, err
	}
	if cfg.GuestCartTTL, err = parseDuration("guest-cart-ttl", *guestTTL); err != nil {
		return nil, err
	}
	if cfg.MaxRequestBodySize <= 0 {
		return nil, errors.New("max-request-body-size must be positive")
	}
	cfg.KafkaBrokers = splitList(*brokers)
	cfg.CORSAllowedOrigins = splitList(*origins)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", name)
	}
	if d <= 0 {
		return 0, errors.Errorf("%s must be positive", name)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
