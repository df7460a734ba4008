package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DatabaseSchemePostgres is the postgres database scheme identifier
	DatabaseSchemePostgres = "postgres"
)

type Config struct {
	ListenAddr string // HTTP API listen address
	DBDialect  string // postgres only
	DBDsn      string // DSN string passed to GORM driver
	BlobDir    string // directory backing the content-addressed blob store
	Debug      bool   // if true: verbose logs

	// Consensus tuning.
	Algorithm             string        // adaptive|simple|weighted|supermajority|bft|quorum
	ValidationTimeout     time.Duration // deadline for a pending request
	SupermajorityFraction float64
	QuorumFraction        float64
	CandidatePoolSize     int // leaderboard slice considered for validator selection

	// Trust economics. Operational tuning knobs, never hard-coded at use sites.
	TrustMediumThreshold   float64
	TrustHighThreshold     float64
	CorrectVoteDelta       float64
	IncorrectVotePenalty   float64
	ConsensusPassedDelta   float64
	ConsensusFailedPenalty float64
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func getenvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: invalid %s=%q, using default %v\n", key, v, def)
		return def
	}
	return f
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: invalid %s=%q, using default %v\n", key, v, def)
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: invalid %s=%q, using default %v\n", key, v, def)
		return def
	}
	return d
}

// parseDatabaseURL interprets DATABASE_URL and returns (dialect, dsn).
// Supported schemes: postgres, postgresql.
func parseDatabaseURL(databaseURL string) (string, string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", "", err
	}
	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case DatabaseSchemePostgres, "postgresql":
		// GORM postgres driver accepts URL DSN as-is
		return DatabaseSchemePostgres, databaseURL, nil
	default:
		return "", "", fmt.Errorf("unsupported DATABASE_URL scheme: %s", u.Scheme)
	}
}

func Load() Config {
	cfg := Config{
		ListenAddr: getenv("LISTEN_ADDR", ":8480"),
		BlobDir:    getenv("BLOB_DIR", "blobs"),
		Debug:      getenvBool("DEBUG", false),

		Algorithm:             getenv("CONSENSUS_ALGORITHM", "adaptive"),
		ValidationTimeout:     getenvDuration("VALIDATION_TIMEOUT", 5*time.Minute),
		SupermajorityFraction: getenvFloat("SUPERMAJORITY_FRACTION", 0.66),
		QuorumFraction:        getenvFloat("QUORUM_FRACTION", 0.5),
		CandidatePoolSize:     getenvInt("CANDIDATE_POOL_SIZE", 50),

		TrustMediumThreshold:   getenvFloat("TRUST_MEDIUM_THRESHOLD", 0.5),
		TrustHighThreshold:     getenvFloat("TRUST_HIGH_THRESHOLD", 0.9),
		CorrectVoteDelta:       getenvFloat("TRUST_CORRECT_VOTE_DELTA", 0.02),
		IncorrectVotePenalty:   getenvFloat("TRUST_INCORRECT_VOTE_PENALTY", 0.10),
		ConsensusPassedDelta:   getenvFloat("TRUST_CONSENSUS_PASSED_DELTA", 0.02),
		ConsensusFailedPenalty: getenvFloat("TRUST_CONSENSUS_FAILED_PENALTY", 0.15),
	}

	if dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL")); dbURL != "" {
		if dialect, dsn, err := parseDatabaseURL(dbURL); err == nil {
			cfg.DBDialect = dialect
			cfg.DBDsn = dsn
		} else {
			fmt.Fprintf(os.Stderr, "warning: invalid DATABASE_URL, disabling persistence: %v\n", err)
		}
	}

	return cfg
}

func (c Config) String() string {
	return fmt.Sprintf("listen=%s db=%s algorithm=%s", c.ListenAddr, c.DBDialect, c.Algorithm)
}

// DebugString returns a human-friendly configuration string with masked secrets.
func (c Config) DebugString() string {
	return fmt.Sprintf(
		"listen=%s db=%s dsn=%s blob_dir=%s algorithm=%s timeout=%s",
		c.ListenAddr,
		c.DBDialect,
		maskDSN(c.DBDialect, c.DBDsn),
		c.BlobDir,
		c.Algorithm,
		c.ValidationTimeout,
	)
}

func maskDSN(dialect, dsn string) string {
	switch strings.ToLower(dialect) {
	case DatabaseSchemePostgres:
		if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
			if u.User != nil {
				username := u.User.Username()
				u.User = url.User(username)
			}
			return u.String()
		}
		// Fallback for DSN as key-value list
		parts := strings.Fields(dsn)
		for i, p := range parts {
			lower := strings.ToLower(p)
			if strings.HasPrefix(lower, "password=") {
				parts[i] = "password=***"
			}
		}
		return strings.Join(parts, " ")
	default:
		return dsn
	}
}
