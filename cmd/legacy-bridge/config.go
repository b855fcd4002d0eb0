package main

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-auth-legacy/provider/legacy"
)

// BridgeConfig is loaded from config/app.json and the environment.
type BridgeConfig struct {
	App         AppConfig         `koanf:"app" json:"app"`
	Auth        AuthConfig        `koanf:"auth" json:"auth"`
	Persistence PersistenceConfig `koanf:"persistence" json:"persistence"`
	Legacy      map[string]string `koanf:"legacy" json:"legacy"`
	WarmOnStart bool              `koanf:"warm_on_start" json:"warm_on_start"`
}

type AppConfig struct {
	Address         string `koanf:"address" json:"address"`
	MetricsAddress  string `koanf:"metrics_address" json:"metrics_address"`
	ShutdownTimeout string `koanf:"shutdown_timeout" json:"shutdown_timeout"`
}

type AuthConfig struct {
	SigningKey      string   `koanf:"signing_key" json:"signing_key"`
	TokenExpiration int      `koanf:"token_expiration" json:"token_expiration"`
	Issuer          string   `koanf:"issuer" json:"issuer"`
	Audience        []string `koanf:"audience" json:"audience"`
}

type PersistenceConfig struct {
	DSN   string `koanf:"dsn" json:"dsn"`
	Debug bool   `koanf:"debug" json:"debug"`
}

func (a AuthConfig) GetSigningKey() string {
	return a.SigningKey
}

func (a AuthConfig) GetTokenExpiration() int {
	return a.TokenExpiration
}

func (a AuthConfig) GetIssuer() string {
	return a.Issuer
}

func (a AuthConfig) GetAudience() []string {
	return a.Audience
}

func (p PersistenceConfig) IsPostgres() bool {
	return strings.HasPrefix(p.DSN, "postgres://") || strings.HasPrefix(p.DSN, "postgresql://")
}

func (a AppConfig) GetShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(a.ShutdownTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// GetLegacy maps the flat legacy settings onto the federation config.
func (c BridgeConfig) GetLegacy() legacy.Config {
	cfg := legacy.ConfigFromMap(c.Legacy)
	cfg.WarmOnStart = c.WarmOnStart
	return cfg
}

// Validate will validate the configuration
func (c BridgeConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.App),
		validation.Field(&c.Auth),
		validation.Field(&c.Persistence),
	)
}

func (a AppConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Address, validation.Required),
	)
}

func (a AuthConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.SigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&a.TokenExpiration, validation.Required, validation.Min(1)),
		validation.Field(&a.Issuer, validation.Required),
	)
}

func (p PersistenceConfig) Validate() error {
	rules := []validation.Rule{validation.Required}
	if p.IsPostgres() {
		rules = append(rules, is.URL)
	}
	return validation.ValidateStruct(&p,
		validation.Field(&p.DSN, rules...),
	)
}
