package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config collects everything the server reads from the environment.
// Call godotenv.Load before FromEnv, like the entrypoint does.
type Config struct {
	DatabaseURL string
	Port        string
	JWTSecret   string

	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	// SendGrid dynamic template ids: one for class reminders (with trainer),
	// one for personal room reservations.
	ClassReminderTemplateID string
	RoomReminderTemplateID  string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	FrontendBaseURL string
	Timezone        string
	InternalJobKey  string

	RemindersEnabled   bool
	RemindersInterval  time.Duration
	RemindersBatchSize int
	SweepInterval      time.Duration
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Port:        getenv("PORT", "8080"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		SendGridAPIKey:          os.Getenv("SENDGRID_API_KEY"),
		SendGridFromEmail:       os.Getenv("SENDGRID_FROM_EMAIL"),
		SendGridFromName:        getenv("SENDGRID_FROM_NAME", "GymSlots"),
		ClassReminderTemplateID: os.Getenv("SENDGRID_CLASS_TEMPLATE_ID"),
		RoomReminderTemplateID:  os.Getenv("SENDGRID_ROOM_TEMPLATE_ID"),

		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: os.Getenv("TWILIO_FROM_NUMBER"),

		FrontendBaseURL: getenv("FRONTEND_BASE_URL", "http://localhost:4200"),
		Timezone:        getenv("TZ", "Europe/Warsaw"),
		InternalJobKey:  os.Getenv("X_INTERNAL_KEY"),

		RemindersEnabled: getenv("REMINDERS_ENABLED", "true") == "true",
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET not set")
	}

	var err error
	cfg.RemindersInterval, err = time.ParseDuration(getenv("REMINDERS_INTERVAL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid REMINDERS_INTERVAL: %w", err)
	}
	cfg.SweepInterval, err = time.ParseDuration(getenv("SWEEP_INTERVAL", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_INTERVAL: %w", err)
	}
	cfg.RemindersBatchSize, err = strconv.Atoi(getenv("REMINDERS_BATCH_SIZE", "50"))
	if err != nil || cfg.RemindersBatchSize <= 0 {
		return nil, fmt.Errorf("invalid REMINDERS_BATCH_SIZE")
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
