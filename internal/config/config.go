package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DBDSN         string
	Environment   string
	HTTPAddr      string
	TelegramToken string
	RedisAddr     string
	RedisPassword string

	CommsBaseURL     string
	CommsAPIKey      string
	CommsTokenSecret string
	CommsTokenTTL    time.Duration
	ProviderTimeout  time.Duration
	RequestTimeout   time.Duration

	MigrationsDisabled bool
	SweepSchedule      string

	Policy Policy
}

// Policy holds the trial rules that are tuned per deployment rather than in code
type Policy struct {
	JoinLeadMinutes       int            `yaml:"joinLeadMinutes"`
	JurorFloor            int            `yaml:"jurorFloor"`
	JurorCeiling          int            `yaml:"jurorCeiling"`
	DefaultRequiredJurors int            `yaml:"defaultRequiredJurors"`
	TimezoneOffsets       map[string]int `yaml:"timezoneOffsets"` // state code -> minutes east of UTC
}

// DefaultPolicy returns the policy used when no CONFIG_FILE is given
func DefaultPolicy() Policy {
	return Policy{
		JoinLeadMinutes:       15,
		JurorFloor:            5,
		JurorCeiling:          7,
		DefaultRequiredJurors: 7,
		TimezoneOffsets:       map[string]int{},
	}
}

func Load() (*Config, error) {
	// .env необязателен, в проде всё приходит из окружения
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	cfg := &Config{
		DBDSN:            os.Getenv("DB_DSN"),
		Environment:      os.Getenv("ENV"),
		HTTPAddr:         os.Getenv("HTTP_ADDR"),
		TelegramToken:    os.Getenv("TELEGRAM_TOKEN"),
		RedisAddr:        strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		CommsBaseURL:     strings.TrimRight(os.Getenv("COMMS_BASE_URL"), "/"),
		CommsAPIKey:      os.Getenv("COMMS_API_KEY"),
		CommsTokenSecret: os.Getenv("COMMS_TOKEN_SECRET"),
		SweepSchedule:    os.Getenv("SWEEP_SCHEDULE"),
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = "@every 10m"
	}

	var err error
	if cfg.CommsTokenTTL, err = durationEnv("COMMS_TOKEN_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.ProviderTimeout, err = durationEnv("PROVIDER_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = durationEnv("REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if v := os.Getenv("MIGRATIONS_DISABLED"); v != "" {
		if cfg.MigrationsDisabled, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("MIGRATIONS_DISABLED: %w", err)
		}
	}

	cfg.Policy, err = LoadPolicy(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}
	if cfg.CommsBaseURL == "" {
		return nil, fmt.Errorf("COMMS_BASE_URL is required but not set")
	}
	if cfg.CommsTokenSecret == "" {
		return nil, fmt.Errorf("COMMS_TOKEN_SECRET is required but not set")
	}

	log.Printf("Config loaded\n")

	return cfg, nil
}

// LoadPolicy reads the YAML policy file, falling back to defaults for anything unset.
// An empty path yields DefaultPolicy.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return policy, fmt.Errorf("read config: %w", err)
	}

	var fromFile Policy
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return policy, fmt.Errorf("parse config: %w", err)
	}

	if fromFile.JoinLeadMinutes > 0 {
		policy.JoinLeadMinutes = fromFile.JoinLeadMinutes
	}
	if fromFile.JurorFloor > 0 {
		policy.JurorFloor = fromFile.JurorFloor
	}
	if fromFile.JurorCeiling > 0 {
		policy.JurorCeiling = fromFile.JurorCeiling
	}
	if fromFile.DefaultRequiredJurors > 0 {
		policy.DefaultRequiredJurors = fromFile.DefaultRequiredJurors
	}
	for state, offset := range fromFile.TimezoneOffsets {
		policy.TimezoneOffsets[strings.ToUpper(strings.TrimSpace(state))] = offset
	}

	if err := policy.validate(); err != nil {
		return policy, err
	}
	return policy, nil
}

func (p Policy) validate() error {
	if p.JurorFloor > p.JurorCeiling {
		return fmt.Errorf("config: jurorFloor (%d) exceeds jurorCeiling (%d)", p.JurorFloor, p.JurorCeiling)
	}
	if p.DefaultRequiredJurors < p.JurorFloor || p.DefaultRequiredJurors > p.JurorCeiling {
		return fmt.Errorf("config: defaultRequiredJurors (%d) must be within [%d, %d]",
			p.DefaultRequiredJurors, p.JurorFloor, p.JurorCeiling)
	}
	for state, offset := range p.TimezoneOffsets {
		if offset < -14*60 || offset > 14*60 {
			return fmt.Errorf("config: timezone offset %d for %s is out of range", offset, state)
		}
	}
	return nil
}

// TimezoneOffset looks up the offset for a state code
func (p Policy) TimezoneOffset(state string) (int, bool) {
	offset, ok := p.TimezoneOffsets[strings.ToUpper(strings.TrimSpace(state))]
	return offset, ok
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
