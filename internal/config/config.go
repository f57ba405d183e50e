package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/coursegen/worldmodel/internal/domain"
	"github.com/joho/godotenv"
)

// Load reads the .env file specified by WORLDMODEL_ENV (or .env by default),
// then the corresponding .secret sidecar if it exists. All config is flat
// env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("WORLDMODEL_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return "migrations"
	}
	return p
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

// ResolutionPolicy returns the policy fixed for this instance.
// Defaults to highest_confidence.
func ResolutionPolicy() domain.ResolutionPolicy {
	p := os.Getenv("RESOLUTION_POLICY")
	if !domain.ValidResolutionPolicy(p) {
		return domain.PolicyHighestConfidence
	}
	return domain.ResolutionPolicy(p)
}

// HalfLife returns the confidence decay half-life.
// Defaults to 720h (30 days).
func HalfLife() time.Duration {
	hours, err := strconv.ParseFloat(os.Getenv("HALF_LIFE_HOURS"), 64)
	if err != nil || hours <= 0 {
		return 720 * time.Hour
	}
	return time.Duration(hours * float64(time.Hour))
}

// ConfidenceFloor is the lowest value decay may produce. Defaults to 0.05.
func ConfidenceFloor() float64 {
	floor, err := strconv.ParseFloat(os.Getenv("CONFIDENCE_FLOOR"), 64)
	if err != nil || floor <= 0 || floor >= 1 {
		return 0.05
	}
	return floor
}

// DedupWindow guards against retried double submissions.
// Defaults to 300s.
func DedupWindow() time.Duration {
	secs, err := strconv.Atoi(os.Getenv("DEDUP_WINDOW_SECONDS"))
	if err != nil || secs < 0 {
		return 300 * time.Second
	}
	return time.Duration(secs) * time.Second
}

// NegationTokenThreshold is the shared-token count required by the
// negation heuristic. Defaults to 3.
func NegationTokenThreshold() int {
	n, err := strconv.Atoi(os.Getenv("NEGATION_TOKEN_THRESHOLD"))
	if err != nil || n <= 0 {
		return 3
	}
	return n
}

// MergeTopK is how many top claims the MERGE policy considers.
// Defaults to 3.
func MergeTopK() int {
	k, err := strconv.Atoi(os.Getenv("MERGE_TOP_K"))
	if err != nil || k <= 0 {
		return 3
	}
	return k
}

// StrictConfidence makes out-of-range confidence a hard error instead of
// clamping. Defaults to false.
func StrictConfidence() bool {
	v, err := strconv.ParseBool(os.Getenv("STRICT_CONFIDENCE"))
	if err != nil {
		return false
	}
	return v
}

// AntonymPairs parses ANTONYM_PAIRS ("term:opposite,term:opposite") into a
// table handed to the detector. Returns nil when unset so the detector
// falls back to its built-in defaults.
func AntonymPairs() map[string]string {
	raw := os.Getenv("ANTONYM_PAIRS")
	if raw == "" {
		return nil
	}
	pairs := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		pairs[parts[0]] = parts[1]
	}
	if len(pairs) == 0 {
		return nil
	}
	return pairs
}

// RateLimitRPS returns requests per second limit. Defaults to 100.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting. Defaults to 20.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}
