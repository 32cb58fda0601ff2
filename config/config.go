package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	aws_pkg "github.com/Dayvhiid/Simple-E-commerce-API/pkg/aws"

	"github.com/joho/godotenv"
)

// Event bus backends for payment events.
const (
	EventBusNone  = "none"
	EventBusSNS   = "sns"
	EventBusKafka = "kafka"
)

// Config holds every setting the service reads at startup. It is built once and
// passed down by constructor; nothing below main reads the environment.
type Config struct {
	Port   string
	AppEnv string

	MongoURI string
	MongoDB  string

	JWTSecret string

	FlutterwaveBaseURL    string
	FlutterwaveSecretKey  string
	FlutterwaveSecretHash string
	FrontendURL           string
	PaymentCurrency       string
	GatewayTimeout        time.Duration

	RedisURL        string
	ProductCacheTTL time.Duration

	EventBus           string
	PaymentSNSTopicARN string
	KafkaBrokers       []string
	KafkaPaymentTopic  string

	AllowedOrigins []string

	AWSRegion         string
	AWSEndpoint       string
	AWSUseSecrets     bool
	CloudWatchEnabled bool
	MetricsNamespace  string
	LogGroupName      string
}

// Load reads .env (if present) and the environment into a Config. With
// AWS_USE_SECRETS=true the JWT and Flutterwave secrets are taken from Secrets
// Manager, falling back to the environment value when a lookup fails.
func Load(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := fromEnv(os.Getenv)
	if err != nil {
		return nil, err
	}

	if cfg.AWSUseSecrets {
		awsCfg, err := aws_pkg.LoadAWSConfig(ctx, cfg.AWSRegion, cfg.AWSEndpoint)
		if err == nil {
			applySecrets(ctx, cfg, aws_pkg.NewSecretsClient(awsCfg))
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	gatewayTimeout, err := time.ParseDuration(get("GATEWAY_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid GATEWAY_TIMEOUT: %w", err)
	}
	cacheTTL, err := time.ParseDuration(get("PRODUCT_CACHE_TTL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid PRODUCT_CACHE_TTL: %w", err)
	}
	useSecrets, _ := strconv.ParseBool(get("AWS_USE_SECRETS", "false"))
	cloudWatch, _ := strconv.ParseBool(get("CLOUDWATCH_ENABLED", "false"))

	return &Config{
		Port:   get("PORT", "5000"),
		AppEnv: get("APP_ENV", "development"),

		MongoURI: get("MONGO_URI", ""),
		MongoDB:  get("MONGO_DB", "ecommerce"),

		JWTSecret: get("JWT_SECRET", ""),

		FlutterwaveBaseURL:    strings.TrimRight(get("FLW_BASE_URL", "https://api.flutterwave.com/v3"), "/"),
		FlutterwaveSecretKey:  get("FLW_SECRET_KEY", ""),
		FlutterwaveSecretHash: get("FLW_SECRET_HASH", ""),
		FrontendURL:           strings.TrimRight(get("FRONTEND_URL", "http://localhost:3000"), "/"),
		PaymentCurrency:       get("PAYMENT_CURRENCY", "NGN"),
		GatewayTimeout:        gatewayTimeout,

		RedisURL:        get("REDIS_URL", ""),
		ProductCacheTTL: cacheTTL,

		EventBus:           strings.ToLower(get("EVENT_BUS", EventBusNone)),
		PaymentSNSTopicARN: get("PAYMENT_SNS_TOPIC_ARN", ""),
		KafkaBrokers:       splitList(get("KAFKA_BROKERS", "")),
		KafkaPaymentTopic:  get("KAFKA_PAYMENT_TOPIC", "payment-events"),

		AllowedOrigins: splitList(get("ALLOWED_ORIGINS", "http://localhost:3000")),

		AWSRegion:         get("AWS_REGION", "us-east-1"),
		AWSEndpoint:       get("AWS_ENDPOINT", ""),
		AWSUseSecrets:     useSecrets,
		CloudWatchEnabled: cloudWatch,
		MetricsNamespace:  get("CLOUDWATCH_NAMESPACE", "ECommerce"),
		LogGroupName:      get("CLOUDWATCH_LOG_GROUP", "/ecommerce/services"),
	}, nil
}

func applySecrets(ctx context.Context, cfg *Config, sm aws_pkg.SecretGetter) {
	targets := map[string]*string{
		"ecommerce/JWT_SECRET":      &cfg.JWTSecret,
		"ecommerce/FLW_SECRET_KEY":  &cfg.FlutterwaveSecretKey,
		"ecommerce/FLW_SECRET_HASH": &cfg.FlutterwaveSecretHash,
	}
	for name, dst := range targets {
		if v, err := sm.GetSecret(ctx, name); err == nil && v != "" {
			*dst = v
		}
	}
}

// Validate reports the first required setting that is missing or inconsistent.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"MONGO_URI", c.MongoURI},
		{"JWT_SECRET", c.JWTSecret},
		{"FLW_SECRET_KEY", c.FlutterwaveSecretKey},
		{"FLW_SECRET_HASH", c.FlutterwaveSecretHash},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}

	switch c.EventBus {
	case EventBusNone:
	case EventBusSNS:
		if c.PaymentSNSTopicARN == "" {
			return fmt.Errorf("PAYMENT_SNS_TOPIC_ARN is required when EVENT_BUS=sns")
		}
	case EventBusKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when EVENT_BUS=kafka")
		}
	default:
		return fmt.Errorf("unsupported EVENT_BUS %q", c.EventBus)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
