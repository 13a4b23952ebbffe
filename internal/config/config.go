package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string
	MetricsAddr string
	Environment string

	QueueBackend     string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	KafkaBrokers     []string
	KafkaGroupPrefix string

	QueueHighPriority   string
	QueueNormalPriority string
	QueueRoutePlanner   string
	QueueCarbonAudit    string

	PollTimeout       time.Duration
	QueueRetryBackoff time.Duration
	TaskErrorPause    time.Duration

	ScanShipmentDelay time.Duration
	ScanCycleDelay    time.Duration
	ScanEmptyDelay    time.Duration
	RiskThreshold     float64

	StoreDriver string
	DatabaseURL string

	Reasoner         string
	LLMProvider      string
	LLMModel         string
	FallbackProvider string
	FallbackModel    string
	AnthropicAPIKey  string
	OpenAIAPIKey     string
	OllamaBaseURL    string
	LLMMaxTokens     int
	LLMTemperature   float64
	EmbeddingModel   string

	OpenMeteoURL          string
	CarbonInterfaceURL    string
	CarbonInterfaceAPIKey string

	EmissionFactor         float64
	DefaultCargoWeightTons float64
	AverageSpeedKmh        float64
	AuditEmissionsCapKg    float64
	AuditTopK              int
	AuditQuery             string

	PortGraphFile string
	OTelEndpoint  string
	SimulatorTick time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory, when present, is applied first without overriding real env vars.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		QueueBackend:     strings.ToLower(getEnv("QUEUE_BACKEND", "redis")),
		RedisAddr:        getEnv("REDIS_ADDR", redisAddrFromParts()),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		KafkaBrokers:     getEnvList("KAFKA_BROKERS"),
		KafkaGroupPrefix: getEnv("KAFKA_GROUP_PREFIX", "ecoroute"),

		QueueHighPriority:   getEnv("QUEUE_HIGH_PRIORITY", "event:queue:high_priority"),
		QueueNormalPriority: getEnv("QUEUE_NORMAL_PRIORITY", "event:queue:normal_priority"),
		QueueRoutePlanner:   getEnv("QUEUE_ROUTE_PLANNER", "agent:task:route_planner"),
		QueueCarbonAudit:    getEnv("QUEUE_CARBON_AUDIT", "agent:task:carbon_audit"),

		PollTimeout:       getEnvDuration("POLL_TIMEOUT", 5*time.Second),
		QueueRetryBackoff: getEnvDuration("QUEUE_RETRY_BACKOFF", 5*time.Second),
		TaskErrorPause:    getEnvDuration("TASK_ERROR_PAUSE", time.Second),

		ScanShipmentDelay: getEnvDuration("SCAN_SHIPMENT_DELAY", 2*time.Second),
		ScanCycleDelay:    getEnvDuration("SCAN_CYCLE_DELAY", time.Minute),
		ScanEmptyDelay:    getEnvDuration("SCAN_EMPTY_DELAY", 5*time.Minute),
		RiskThreshold:     getEnvFloat("RISK_THRESHOLD", 0.7),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		Reasoner:         strings.ToLower(getEnv("REASONER", "rules")),
		LLMProvider:      strings.ToLower(getEnv("LLM_PROVIDER", "anthropic")),
		LLMModel:         getEnv("LLM_MODEL", "claude-haiku-4-5-20251001"),
		FallbackProvider: strings.ToLower(getEnv("FALLBACK_PROVIDER", "")),
		FallbackModel:    getEnv("FALLBACK_MODEL", "gpt-4.1-mini"),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OllamaBaseURL:    getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		LLMMaxTokens:     getEnvInt("LLM_MAX_TOKENS", 1024),
		LLMTemperature:   getEnvFloat("LLM_TEMPERATURE", 0.1),
		EmbeddingModel:   getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),

		OpenMeteoURL:          getEnv("OPEN_METEO_URL", "https://api.open-meteo.com/v1"),
		CarbonInterfaceURL:    getEnv("CARBON_INTERFACE_URL", "https://www.carboninterface.com/api/v1"),
		CarbonInterfaceAPIKey: getEnv("CARBON_INTERFACE_API_KEY", ""),

		EmissionFactor:         getEnvFloat("EMISSION_FACTOR", 0.015),
		DefaultCargoWeightTons: getEnvFloat("DEFAULT_CARGO_WEIGHT_TONS", 1000),
		AverageSpeedKmh:        getEnvFloat("AVERAGE_SPEED_KMH", 30),
		AuditEmissionsCapKg:    getEnvFloat("AUDIT_EMISSIONS_CAP_KG", 400000),
		AuditTopK:              getEnvInt("AUDIT_TOP_K", 3),
		AuditQuery:             getEnv("AUDIT_QUERY", "EU ETS shipping emissions caps 2025"),

		PortGraphFile: getEnv("PORT_GRAPH_FILE", ""),
		OTelEndpoint:  getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		SimulatorTick: time.Duration(getEnvInt("SIMULATOR_TICK_SECONDS", 0)) * time.Second,
	}
}

// Validate reports settings the services cannot start without.
func (c Config) Validate() error {
	var errs []error

	switch c.QueueBackend {
	case "redis":
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis queue backend"))
		}
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required for the kafka queue backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported QUEUE_BACKEND %q", c.QueueBackend))
	}

	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver))
	}

	switch c.Reasoner {
	case "rules":
	case "llm":
		if err := c.checkProvider(c.LLMProvider); err != nil {
			errs = append(errs, err)
		}
		if c.FallbackProvider != "" {
			if err := c.checkProvider(c.FallbackProvider); err != nil {
				errs = append(errs, fmt.Errorf("fallback: %w", err))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported REASONER %q", c.Reasoner))
	}

	if c.RiskThreshold < 0 || c.RiskThreshold > 1 {
		errs = append(errs, fmt.Errorf("RISK_THRESHOLD must be within [0,1], got %.2f", c.RiskThreshold))
	}
	if c.PollTimeout <= 0 {
		errs = append(errs, errors.New("POLL_TIMEOUT must be positive"))
	}
	if c.AuditTopK <= 0 {
		errs = append(errs, errors.New("AUDIT_TOP_K must be positive"))
	}

	return errors.Join(errs...)
}

func (c Config) checkProvider(provider string) error {
	switch provider {
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return errors.New("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required for the openai provider")
		}
	case "ollama":
		if c.OllamaBaseURL == "" {
			return errors.New("OLLAMA_BASE_URL is required for the ollama provider")
		}
	default:
		return fmt.Errorf("unsupported LLM provider %q", provider)
	}
	return nil
}

// redisAddrFromParts keeps compatibility with REDIS_HOST/REDIS_PORT deployments.
func redisAddrFromParts() string {
	host := getEnv("REDIS_HOST", "localhost")
	port := getEnv("REDIS_PORT", "6379")
	return host + ":" + port
}

func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string) []string {
	parts := strings.Split(os.Getenv(key), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
