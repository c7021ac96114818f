// Package config collects the service's environment knobs in one place.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is everything cmd/api needs to wire the service.
type Config struct {
	Port string

	// scoring oracle
	OracleURL   string
	OracleKey   string
	OracleModel string
	MockOracle  bool

	// OCR sidecar for image transcripts
	OCRURL      string
	OCRLanguage string
	MockOCR     bool

	// rubric and roster artifacts; empty rubric path means the embedded
	// revision
	RubricPath string
	RosterPath string

	// pacing between consecutive oracle calls
	ScoreDelay time.Duration

	// where login credentials persist between restarts
	CredentialsPath string
}

// FromEnv reads the configuration. Every knob has a working default
// except the oracle key, which the oracle client checks at call time.
func FromEnv() Config {
	return Config{
		Port:            envOr("PORT", "8080"),
		OracleURL:       envOr("ORACLE_API_URL", "https://api.groq.com/openai/v1/chat/completions"),
		OracleKey:       os.Getenv("ORACLE_API_KEY"),
		OracleModel:     envOr("ORACLE_MODEL", "llama-3.3-70b-versatile"),
		MockOracle:      envBool("USE_MOCK_ORACLE"),
		OCRURL:          os.Getenv("OCR_API_URL"),
		OCRLanguage:     envOr("OCR_LANGUAGE", "spa"),
		MockOCR:         envBool("USE_MOCK_OCR"),
		RubricPath:      os.Getenv("RUBRIC_PATH"),
		RosterPath:      envOr("ROSTER_PATH", "roster.yaml"),
		ScoreDelay:      time.Duration(envInt("SCORE_DELAY_MS", 500)) * time.Millisecond,
		CredentialsPath: envOr("CREDENTIALS_PATH", ".credentials.json"),
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envBool(k string) bool {
	v, err := strconv.ParseBool(os.Getenv(k))
	return err == nil && v
}

func envInt(k string, def int) int {
	v, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	return v
}
