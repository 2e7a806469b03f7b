package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Kafka
	KafkaBrokers       string
	KafkaEventsTopic   string
	KafkaRequestsTopic string
	KafkaConsumerGroup string

	// API Configuration
	APIPort string
	APIHost string

	// Shopify
	ShopDomain  string
	AccessToken string
	APIVersion  string

	// Vendor catalog source
	SourceURL         string
	LocalSourceFiles  []string
	DownloadTimeout   time.Duration
	SourceMinInterval time.Duration

	// Sync pacing and retries
	MaxBatchSize   int
	RequestDelay   time.Duration
	BatchPause     time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration

	// Sync behaviour
	LocationHint       string
	DuplicateKey       string
	ImageLimit         int
	InventoryMode      string
	ErrorThreshold     int
	CooldownBase       time.Duration
	CooldownMax        time.Duration
	ProbeWrite         bool
	TaxonomyCategoryID string
	MetafieldNamespace string

	// Offline splitter
	SplitChunkSize int
	SplitOutputDir string

	// Environment
	Env      string
	LogLevel string
}

const (
	DuplicateKeyHandle          = "handle"
	DuplicateKeyTitle           = "title"
	DuplicateKeyHandleThenTitle = "handle_then_title"

	InventoryModeSet    = "set"
	InventoryModeAdjust = "adjust"
)

var defaultLocalFiles = []string{
	"ProductosHora.csv",
	"productos_ociostock.csv",
	"productos_shopify.csv",
	"productos.csv",
	"syscom.csv",
}

func Load() (*Config, error) {
	// Load .env file
	godotenv.Load()

	delay := getEnvAsFloat("DELAY_BETWEEN_REQUESTS", 2)

	cfg := &Config{
		DatabaseURL:        getEnv("DATABASE_URL", "sqlite://catalogsync.db"),
		RedisURL:           getEnv("REDIS_URL", ""),
		KafkaBrokers:       getEnv("KAFKA_BROKERS", ""),
		KafkaEventsTopic:   getEnv("KAFKA_EVENTS_TOPIC", "catalog-sync-events"),
		KafkaRequestsTopic: getEnv("KAFKA_REQUESTS_TOPIC", "catalog-sync-requests"),
		KafkaConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "catalogsync-worker"),
		APIPort:            getEnv("API_PORT", "8080"),
		APIHost:            getEnv("API_HOST", "0.0.0.0"),
		ShopDomain:         getEnv("SHOPIFY_SHOP_NAME", ""),
		AccessToken:        getEnv("SHOPIFY_ACCESS_TOKEN", ""),
		APIVersion:         getEnv("SHOPIFY_API_VERSION", "2025-04"),
		SourceURL:          getEnv("CSV_URL", ""),
		LocalSourceFiles:   getEnvAsList("LOCAL_CSV_FILES", defaultLocalFiles),
		DownloadTimeout:    seconds(getEnvAsFloat("DOWNLOAD_TIMEOUT_SECONDS", 30)),
		SourceMinInterval:  time.Duration(getEnvAsInt("SOURCE_MIN_INTERVAL_MINUTES", 60)) * time.Minute,
		MaxBatchSize:       getEnvAsInt("MAX_PRODUCTS_PER_BATCH", 5),
		RequestDelay:       seconds(delay),
		BatchPause:         seconds(getEnvAsFloat("BATCH_PAUSE_SECONDS", delay*2)),
		MaxRetries:         getEnvAsInt("MAX_RETRIES", 3),
		RetryBaseDelay:     seconds(getEnvAsFloat("RETRY_BASE_DELAY_SECONDS", 0.3)),
		LocationHint:       getEnv("LOCATION_NAME_HINT", ""),
		DuplicateKey:       getEnv("DUPLICATE_KEY", DuplicateKeyHandle),
		ImageLimit:         getEnvAsInt("IMAGE_LIMIT", 10),
		InventoryMode:      getEnv("INVENTORY_MODE", InventoryModeSet),
		ErrorThreshold:     getEnvAsInt("ERROR_THRESHOLD", 5),
		CooldownBase:       seconds(getEnvAsFloat("COOLDOWN_BASE_SECONDS", 10)),
		CooldownMax:        seconds(getEnvAsFloat("COOLDOWN_MAX_SECONDS", 120)),
		ProbeWrite:         getEnvAsBool("PROBE_WRITE", true),
		TaxonomyCategoryID: getEnv("TAXONOMY_CATEGORY_ID", ""),
		MetafieldNamespace: getEnv("METAFIELD_NAMESPACE", "catalogsync"),
		SplitChunkSize:     getEnvAsInt("SPLIT_CHUNK_SIZE", 2000),
		SplitOutputDir:     getEnv("SPLIT_OUTPUT_DIR", "csv_shopify_split"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the options the sync core relies on.
func (c *Config) Validate() error {
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("MAX_PRODUCTS_PER_BATCH must be > 0, got %d", c.MaxBatchSize)
	}
	if c.RequestDelay < 0 {
		return fmt.Errorf("DELAY_BETWEEN_REQUESTS must be >= 0, got %s", c.RequestDelay)
	}
	if c.BatchPause < 0 {
		return fmt.Errorf("BATCH_PAUSE_SECONDS must be >= 0, got %s", c.BatchPause)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must be >= 0, got %d", c.MaxRetries)
	}
	if c.SplitChunkSize <= 0 {
		return fmt.Errorf("SPLIT_CHUNK_SIZE must be > 0, got %d", c.SplitChunkSize)
	}
	if c.ImageLimit < 0 {
		return fmt.Errorf("IMAGE_LIMIT must be >= 0, got %d", c.ImageLimit)
	}
	if c.SourceURL != "" {
		u, err := url.Parse(c.SourceURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("CSV_URL is not an absolute http(s) URL: %q", c.SourceURL)
		}
	}
	switch c.DuplicateKey {
	case DuplicateKeyHandle, DuplicateKeyTitle, DuplicateKeyHandleThenTitle:
	default:
		return fmt.Errorf("unknown DUPLICATE_KEY %q", c.DuplicateKey)
	}
	switch c.InventoryMode {
	case InventoryModeSet, InventoryModeAdjust:
	default:
		return fmt.Errorf("unknown INVENTORY_MODE %q", c.InventoryMode)
	}
	return nil
}

// HasShopCredentials reports whether the remote platform can be reached.
func (c *Config) HasShopCredentials() bool {
	return c.ShopDomain != "" && c.AccessToken != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
