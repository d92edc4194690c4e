package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"teamquiz-service/internal/domain"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr          string `yaml:"addr"`
		Password      string `yaml:"password"`
		DB            int    `yaml:"db" validate:"gte=0"`
		TTL           string `yaml:"ttl"`
		ChannelPrefix string `yaml:"channel_prefix"`
	} `yaml:"redis"`
	Postgres struct {
		URL           string `yaml:"url"`
		NotifyChannel string `yaml:"notify_channel"`
	} `yaml:"postgres"`
	Auth struct {
		JWTSecret     string `yaml:"jwt_secret" validate:"required,min=16"`
		AdminTokenTTL string `yaml:"admin_token_ttl"`
	} `yaml:"auth"`
	Scoring struct {
		DefaultScoreTable      []int  `yaml:"default_score_table" validate:"dive,gte=0"`
		DefaultTotalQuestions  int    `yaml:"default_total_questions" validate:"gte=0"`
		Timezone               string `yaml:"timezone"`
		NotificationBufferSize int    `yaml:"notification_buffer_size" validate:"gte=0"`
	} `yaml:"scoring"`
	Teams []domain.Team `yaml:"teams" validate:"dive"`
}

var validate = validator.New()

// DefaultTeams is the catalog seeded when the config lists none.
func DefaultTeams() []domain.Team {
	return []domain.Team{
		{ID: 1, Name: "池袋", Color: "#3246a5", DisplayOrder: 1},
		{ID: 2, Name: "秋葉原", Color: "#eb6405", DisplayOrder: 2},
		{ID: 3, Name: "蒲田", Color: "#824628", DisplayOrder: 3},
		{ID: 4, Name: "名古屋", Color: "#e61e55", DisplayOrder: 4},
		{ID: 5, Name: "大阪", Color: "#1eaabe", DisplayOrder: 5},
	}
}

// Load reads YAML config from path, applies defaults and validates it.
// JWT_SECRET overrides auth.jwt_secret when set.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if len(c.Scoring.DefaultScoreTable) == 0 {
		c.Scoring.DefaultScoreTable = []int{10, 7, 5, 3, 2, 1}
	}
	if c.Scoring.DefaultTotalQuestions == 0 {
		c.Scoring.DefaultTotalQuestions = 12
	}
	if c.Scoring.NotificationBufferSize == 0 {
		c.Scoring.NotificationBufferSize = 32
	}
	if len(c.Teams) == 0 {
		c.Teams = DefaultTeams()
	}
}

// Validate checks field constraints and the timezone name.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: scoring.timezone: %w", err)
	}
	seen := make(map[int64]bool, len(c.Teams))
	for _, t := range c.Teams {
		if t.ID <= 0 || t.Name == "" {
			return fmt.Errorf("invalid config: team %d needs a positive id and a name", t.ID)
		}
		if seen[t.ID] {
			return fmt.Errorf("invalid config: duplicate team id %d", t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}

// Location resolves scoring.timezone; empty means the server's local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Scoring.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Scoring.Timezone)
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
