package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/tunegate/tunegate/pkg/jwtx"
)

type Config struct {
	// Spotify app registration. All three are required.
	SpotifyClientID     string `env:"TUNEGATE_SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string `env:"TUNEGATE_SPOTIFY_CLIENT_SECRET"`
	RedirectURI         string `env:"TUNEGATE_REDIRECT_URI" envDefault:"http://localhost:8080/callback"`

	// SessionSecret signs session tokens. Must be at least 32 bytes.
	SessionSecret string        `env:"TUNEGATE_SESSION_SECRET"`
	SessionTTL    time.Duration `env:"TUNEGATE_SESSION_TTL" envDefault:"168h"`
	Issuer        string        `env:"TUNEGATE_ISSUER" envDefault:"tunegate"`

	RefreshBuffer   time.Duration `env:"TUNEGATE_REFRESH_BUFFER" envDefault:"60s"`
	ProviderTimeout time.Duration `env:"TUNEGATE_PROVIDER_TIMEOUT" envDefault:"10s"`

	DatabaseFile string `env:"TUNEGATE_DATABASE_FILE" envDefault:"tunegate.db"`

	Env                 string        `env:"ENV" envDefault:"dev"`
	LogLevel            string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat           string        `env:"LOG_FORMAT" envDefault:"json"`
	Port                int           `env:"PORT" envDefault:"8080"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.SpotifyClientID == "" {
		errs = append(errs, errors.New("TUNEGATE_SPOTIFY_CLIENT_ID is required"))
	}
	if c.SpotifyClientSecret == "" {
		errs = append(errs, errors.New("TUNEGATE_SPOTIFY_CLIENT_SECRET is required"))
	}
	if c.RedirectURI == "" {
		errs = append(errs, errors.New("TUNEGATE_REDIRECT_URI must not be empty"))
	}
	if len(c.SessionSecret) < jwtx.MinSecretLen {
		errs = append(errs, fmt.Errorf(
			"TUNEGATE_SESSION_SECRET must be at least %d bytes", jwtx.MinSecretLen))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("TUNEGATE_SESSION_TTL must be positive"))
	}
	if c.RefreshBuffer <= 0 {
		errs = append(errs, errors.New("TUNEGATE_REFRESH_BUFFER must be positive"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", c.Port))
	}

	return errors.Join(errs...)
}
