package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Port    string `env:"PORT" envDefault:"3000"`
	DBPath  string `env:"DB_PATH" envDefault:"curlshop.db"`
	BaseURL string `env:"SITE_URL" envDefault:"http://localhost:3000"`
	WebDir  string `env:"WEB_DIR" envDefault:"web/dist"`
	// FilesDir holds the deliverable eBook artifacts served by the
	// download endpoint.
	FilesDir string `env:"FILES_DIR" envDefault:"files"`

	// ReleaseDate is the launch cutoff: completed orders before it are
	// pre-orders and receive download tokens at launch, not immediately.
	ReleaseDate time.Time `env:"RELEASE_DATE" envDefault:"2025-10-01T15:00:00Z"`

	Log       Log       `envPrefix:"LOG_"`
	Stripe    Stripe    `envPrefix:"STRIPE_"`
	Resend    Resend    `envPrefix:"RESEND_"`
	Mailchimp Mailchimp `envPrefix:"MAILCHIMP_"`
	Tokens    Tokens    `envPrefix:"TOKEN_"`
}

type Log struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"text"`
}

type Stripe struct {
	SecretKey      string `env:"SECRET_KEY"`
	PublishableKey string `env:"PUBLISHABLE_KEY"`
	WebhookSecret  string `env:"WEBHOOK_SECRET"`
}

type Resend struct {
	APIKey    string `env:"API_KEY"`
	FromEmail string `env:"FROM_EMAIL" envDefault:"hello@curlsandcontemplation.com"`
	FromName  string `env:"FROM_NAME" envDefault:"Curls & Contemplation"`
}

type Mailchimp struct {
	APIKey string `env:"API_KEY"`
	ListID string `env:"LIST_ID"`
	Server string `env:"SERVER" envDefault:"us1"`
}

// Tokens holds the download-token policy.
type Tokens struct {
	MaxDownloads  int           `env:"MAX_DOWNLOADS" envDefault:"3"`
	TTL           time.Duration `env:"TTL" envDefault:"168h"`
	MaxExtensions int           `env:"MAX_EXTENSIONS" envDefault:"4"`
}

// Load reads configuration from the environment, after loading a .env
// file if one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
