package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration. Loaded once at start; nothing
// else in the service holds mutable cross-request state.
type Server struct {
	Addr string

	// Ledger relayer endpoint (JSON over HTTP in front of the registry
	// contract).
	LedgerURL string

	// Content network endpoints: the node API used for uploads and the
	// public gateway used to build retrieval URLs in responses.
	ContentAPIURL     string
	ContentGatewayURL string

	// ContentFetchTimeout bounds a single content-body fetch so an
	// unavailable content network degrades a read instead of hanging it.
	ContentFetchTimeout time.Duration

	// FetchConcurrency caps parallel per-item detail fetches in bulk
	// enumeration.
	FetchConcurrency int

	Redis RedisConfig
	Kafka KafkaConfig
}

// RedisConfig configures the optional duplicate-content guard store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the optional submission audit trail sink.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:                envOr("BVC_REGISTRY_ADDR", ":8080"),
		LedgerURL:           envOr("BVC_LEDGER_URL", "http://localhost:8545"),
		ContentAPIURL:       envOr("BVC_CONTENT_API_URL", "http://localhost:5001"),
		ContentGatewayURL:   envOr("BVC_CONTENT_GATEWAY_URL", "https://ipfs.io/ipfs"),
		ContentFetchTimeout: envDuration("BVC_CONTENT_FETCH_TIMEOUT", 5*time.Second),
		FetchConcurrency:    envInt("BVC_FETCH_CONCURRENCY", 8),
		Redis: RedisConfig{
			URL:          os.Getenv("BVC_REDIS_URL"),
			PoolSize:     envInt("BVC_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("BVC_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("BVC_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("BVC_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("BVC_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: envList("BVC_KAFKA_BROKERS"),
			Topic:   envOr("BVC_KAFKA_AUDIT_TOPIC", "bvc.audit"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
