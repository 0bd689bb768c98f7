// Package config builds runtime configuration from the environment so main
// stays lean. Secret material (master key, blind index salt, JWT key) is
// injected here once at startup and handed to the keyring.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "intake/pkg/platform/strings"
)

// Config captures everything the server needs to start.
type Config struct {
	Addr        string
	DatabaseURL string
	RedisURL    string

	// KafkaBrokers and KafkaAuditTopic enable the best-effort audit mirror.
	// Empty brokers disable it.
	KafkaBrokers    []string
	KafkaAuditTopic string

	JWTSigningKey string
	TokenTTL      time.Duration

	// MasterKeyHex is a 64-char hex AES-256 key. When empty, MasterPassphrase
	// plus KDFSalt derive the key via argon2id instead.
	MasterKeyHex     string
	MasterPassphrase string
	KDFSalt          string
	BlindIndexSalt   string

	// StaleAssignmentThreshold is operational policy, not a structural
	// invariant; operators tune it per workload.
	StaleAssignmentThreshold time.Duration
	// ReclaimInterval drives the background sweep; claim-next still sweeps
	// inline before selecting a candidate.
	ReclaimInterval time.Duration

	BcryptCost int

	BootstrapAdminUser     string
	BootstrapAdminPassword string
}

// FromEnv reads configuration from INTAKE_* environment variables.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:                     envOr("INTAKE_ADDR", ":8080"),
		DatabaseURL:              os.Getenv("INTAKE_DATABASE_URL"),
		RedisURL:                 os.Getenv("INTAKE_REDIS_URL"),
		KafkaAuditTopic:          envOr("INTAKE_KAFKA_AUDIT_TOPIC", "intake.audit"),
		JWTSigningKey:            os.Getenv("INTAKE_JWT_SIGNING_KEY"),
		MasterKeyHex:             os.Getenv("INTAKE_MASTER_KEY"),
		MasterPassphrase:         os.Getenv("INTAKE_MASTER_PASSPHRASE"),
		KDFSalt:                  os.Getenv("INTAKE_KDF_SALT"),
		BlindIndexSalt:           os.Getenv("INTAKE_BLIND_INDEX_SALT"),
		BootstrapAdminUser:       os.Getenv("INTAKE_BOOTSTRAP_ADMIN_USER"),
		BootstrapAdminPassword:   os.Getenv("INTAKE_BOOTSTRAP_ADMIN_PASSWORD"),
		StaleAssignmentThreshold: 7 * 24 * time.Hour,
		ReclaimInterval:          15 * time.Minute,
		TokenTTL:                 8 * time.Hour,
		BcryptCost:               12,
	}

	if brokers := os.Getenv("INTAKE_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = platformstrings.DedupeAndTrim(strings.Split(brokers, ","))
	}

	var err error
	if cfg.StaleAssignmentThreshold, err = durationOr("INTAKE_STALE_ASSIGNMENT_THRESHOLD", cfg.StaleAssignmentThreshold); err != nil {
		return Config{}, err
	}
	if cfg.ReclaimInterval, err = durationOr("INTAKE_RECLAIM_INTERVAL", cfg.ReclaimInterval); err != nil {
		return Config{}, err
	}
	if cfg.TokenTTL, err = durationOr("INTAKE_TOKEN_TTL", cfg.TokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.BcryptCost, err = intOr("INTAKE_BCRYPT_COST", cfg.BcryptCost); err != nil {
		return Config{}, err
	}

	if cfg.JWTSigningKey == "" {
		return Config{}, fmt.Errorf("INTAKE_JWT_SIGNING_KEY is required")
	}
	if cfg.BlindIndexSalt == "" {
		return Config{}, fmt.Errorf("INTAKE_BLIND_INDEX_SALT is required")
	}
	if cfg.MasterKeyHex == "" && (cfg.MasterPassphrase == "" || cfg.KDFSalt == "") {
		return Config{}, fmt.Errorf("either INTAKE_MASTER_KEY or INTAKE_MASTER_PASSPHRASE with INTAKE_KDF_SALT is required")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func intOr(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
