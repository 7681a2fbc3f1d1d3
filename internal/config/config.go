package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	d "github.com/manxbiltong/checkout/domain"
	"gopkg.in/yaml.v3"
)

const (
	defaultSuccessURL = "https://manxbiltong.com/cart/index.html?success=true"
	defaultCancelURL  = "https://manxbiltong.com/cart/index.html?canceled=true"
	defaultAdminEmail = "orders@manxbiltong.com"
)

type Config struct {
	HTTPPort           string
	StripeSecretKey    string
	StripeAPIURL       string
	AllowedOrigin      string
	RequestTimeout     time.Duration
	PaymentTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
	LogLevel           string

	KafkaBrokers []string
	KafkaTopic   string

	SendGridAPIKey string
	SenderEmail    string

	RedisAddr          string
	RedisPassword      string
	RateLimitPerMinute int64

	Storefront Storefront
}

// Storefront is the business configuration, optionally read from a YAML file.
type Storefront struct {
	d.Policy               `yaml:",inline"`
	AllowedShippingCountry string `yaml:"allowed_shipping_country"`
	SuccessURL             string `yaml:"success_url"`
	CancelURL              string `yaml:"cancel_url"`
	AdminEmail             string `yaml:"admin_email"`
}

func DefaultStorefront() Storefront {
	return Storefront{
		Policy:                 d.DefaultPolicy(),
		AllowedShippingCountry: d.DefaultAllowedRegion,
		SuccessURL:             defaultSuccessURL,
		CancelURL:              defaultCancelURL,
		AdminEmail:             defaultAdminEmail,
	}
}

// Load reads configuration from the environment. CHECKOUT_POLICY_FILE, when
// set, points at a YAML file whose values override the storefront defaults.
func Load() (*Config, error) {
	var errs []error
	duration := func(key string, def time.Duration) time.Duration {
		v, err := getDuration(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	rateLimit, err := getInt("RATE_LIMIT_PER_MINUTE", 30)
	if err != nil {
		errs = append(errs, err)
	} else if rateLimit <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", rateLimit))
	}

	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		StripeSecretKey:    getEnv("STRIPE_SECRET_KEY", ""),
		StripeAPIURL:       getEnv("STRIPE_API_URL", ""),
		AllowedOrigin:      getEnv("ALLOWED_ORIGIN", "*"),
		RequestTimeout:     duration("REQUEST_TIMEOUT", 30*time.Second),
		PaymentTimeout:     duration("PAYMENT_TIMEOUT", 10*time.Second),
		ShutdownTimeout:    duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: 1 << 20, // 1MB
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		KafkaBrokers:       splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "checkout-sessions"),
		SendGridAPIKey:     getEnv("SENDGRID_API_KEY", ""),
		SenderEmail:        getEnv("SENDER_EMAIL", defaultAdminEmail),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RateLimitPerMinute: rateLimit,
	}

	storefront, err := LoadStorefront(getEnv("CHECKOUT_POLICY_FILE", ""))
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Storefront = storefront

	if v := os.Getenv("SUCCESS_URL"); v != "" {
		cfg.Storefront.SuccessURL = v
	}
	if v := os.Getenv("CANCEL_URL"); v != "" {
		cfg.Storefront.CancelURL = v
	}
	if v := os.Getenv("ADMIN_EMAIL"); v != "" {
		cfg.Storefront.AdminEmail = v
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadStorefront reads the YAML policy file at path. An empty path yields
// the defaults; keys missing from the file keep their default values.
func LoadStorefront(path string) (Storefront, error) {
	sf := DefaultStorefront()
	if path == "" {
		return sf, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Storefront{}, fmt.Errorf("reading policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return Storefront{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := sf.Validate(); err != nil {
		return Storefront{}, fmt.Errorf("invalid %s: %w", path, err)
	}
	return sf, nil
}

func (s Storefront) Validate() error {
	errs := []error{s.Policy.Validate()}
	if s.SuccessURL == "" {
		errs = append(errs, errors.New("success_url is empty"))
	}
	if s.CancelURL == "" {
		errs = append(errs, errors.New("cancel_url is empty"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return dur, nil
}

func getInt(key string, defaultValue int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
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
