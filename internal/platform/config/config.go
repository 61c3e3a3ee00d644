package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr string

	// PostgresURL enables the postgres-backed stores when set; the service
	// falls back to in-memory stores otherwise.
	PostgresURL string

	// RedisURL enables the account-resolution cache when set.
	RedisURL string

	// KafkaBrokers enables the audit event publisher when non-empty.
	KafkaBrokers []string
	AuditTopic   string

	// TrustedIssuerMode restricts account registration to designated
	// issuers, with IssuerAdmin as the administrative owner allowed to
	// designate them.
	TrustedIssuerMode bool
	IssuerAdmin       string

	// EngineOwner receives swept protocol fees and may change the primary
	// sale fee.
	EngineOwner string

	JWTSigningKey string
}

// ResolveCacheTTL bounds staleness of the redis account-resolution cache.
// Entries are also invalidated explicitly on account transfer.
var ResolveCacheTTL = 5 * time.Minute

// FromEnv builds a Server config from environment variables so main stays
// lean.
func FromEnv() Server {
	addr := os.Getenv("CATALOG_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	var brokers []string
	if v := os.Getenv("CATALOG_KAFKA_BROKERS"); v != "" {
		brokers = strings.Split(v, ",")
	}
	topic := os.Getenv("CATALOG_AUDIT_TOPIC")
	if topic == "" {
		topic = "catalog.audit"
	}

	jwtSigningKey := os.Getenv("CATALOG_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default; must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:              addr,
		PostgresURL:       os.Getenv("CATALOG_POSTGRES_URL"),
		RedisURL:          os.Getenv("CATALOG_REDIS_URL"),
		KafkaBrokers:      brokers,
		AuditTopic:        topic,
		TrustedIssuerMode: os.Getenv("CATALOG_TRUSTED_ISSUER_MODE") == "true",
		IssuerAdmin:       os.Getenv("CATALOG_ISSUER_ADMIN"),
		EngineOwner:       os.Getenv("CATALOG_ENGINE_OWNER"),
		JWTSigningKey:     jwtSigningKey,
	}
}
