package application

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ReminderConfig defines overdue reminder delivery settings. Durations are
// carried as strings ("20h", "5s") and parsed by LoadConfig.
type ReminderConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Template   string `yaml:"template"`
	Cooldown   string `yaml:"cooldown"`
	Timeout    string `yaml:"timeout"`
}

// Config defines scheduler configuration.
type Config struct {
	DailyAt  string         `yaml:"daily_at"`
	Reminder ReminderConfig `yaml:"reminder"`

	ReminderCooldown time.Duration `yaml:"-"`
	ReminderTimeout  time.Duration `yaml:"-"`
}

// LoadConfig loads scheduler config from yaml or env.
func LoadConfig() (Config, error) {
	cfg := Config{
		DailyAt: getenvDefault("SCHEDULE_DAILY_AT", "06:00"),
		Reminder: ReminderConfig{
			WebhookURL: os.Getenv("REMINDER_WEBHOOK_URL"),
			Cooldown:   getenvDefault("REMINDER_COOLDOWN", "20h"),
			Timeout:    getenvDefault("REMINDER_TIMEOUT", "5s"),
		},
	}

	if path := os.Getenv("SCHEDULE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.DailyAt == "" {
		return cfg, errors.New("schedule: daily_at required")
	}
	if _, _, err := parseDailyAt(cfg.DailyAt); err != nil {
		return cfg, errors.New("schedule: daily_at must be HH:MM")
	}
	cfg.ReminderCooldown = parseDurationDefault(cfg.Reminder.Cooldown, 20*time.Hour)
	cfg.ReminderTimeout = parseDurationDefault(cfg.Reminder.Timeout, 5*time.Second)
	return cfg, nil
}

func parseDurationDefault(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
