package legacy

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	// ConfigKeyBaseURL is the component setting holding the facade base URL.
	ConfigKeyBaseURL = "legacyBaseUrl"
	// DefaultBaseURL is used when no base URL is configured.
	DefaultBaseURL = "http://legacy-auth:4000/"
	// DefaultProviderID is the provider component of federated storage ids.
	DefaultProviderID = "legacy"
	// DefaultTimeout bounds every remote call.
	DefaultTimeout = 5 * time.Second
)

const (
	configKeyTimeout       = "legacyTimeout"
	configKeyCacheMode     = "legacyCacheMode"
	configKeyCacheCapacity = "legacyCacheCapacity"
	configKeyCacheTTL      = "legacyCacheTtl"
)

// CacheMode selects the ProfileCache implementation.
type CacheMode string

const (
	CacheModeBounded   CacheMode = "bounded"
	CacheModeUnbounded CacheMode = "unbounded"
)

// CacheConfig sizes the profile cache. Capacity and TTL apply to the
// bounded mode only.
type CacheConfig struct {
	Mode     CacheMode     `json:"mode"`
	Capacity int           `json:"capacity"`
	TTL      time.Duration `json:"ttl"`
}

// BreakerConfig configures the optional circuit breaker in front of the
// facade. It trips after FailureThreshold consecutive failures.
type BreakerConfig struct {
	Enabled          bool          `json:"enabled"`
	FailureThreshold uint32        `json:"failure_threshold"`
	MaxRequests      uint32        `json:"max_requests"`
	Interval         time.Duration `json:"interval"`
	Timeout          time.Duration `json:"timeout"`
}

// Config holds the federation bridge settings.
type Config struct {
	BaseURL          string        `json:"legacy_base_url"`
	ProviderID       string        `json:"provider_id"`
	FederationSource string        `json:"federation_source"`
	Timeout          time.Duration `json:"timeout"`
	WarmOnStart      bool          `json:"warm_on_start"`
	Cache            CacheConfig   `json:"cache"`
	Breaker          BreakerConfig `json:"breaker"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:          DefaultBaseURL,
		ProviderID:       DefaultProviderID,
		FederationSource: DefaultProviderID,
		Timeout:          DefaultTimeout,
		Cache: CacheConfig{
			Mode:     CacheModeBounded,
			Capacity: 10000,
			TTL:      15 * time.Minute,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
		},
	}
}

// ConfigFromMap builds a Config from flat component settings. Unknown keys
// are ignored and malformed numbers keep the default.
func ConfigFromMap(settings map[string]string) Config {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(settings[ConfigKeyBaseURL]); v != "" {
		cfg.BaseURL = v
	}

	if v, err := time.ParseDuration(settings[configKeyTimeout]); err == nil {
		cfg.Timeout = v
	}

	if v := strings.TrimSpace(settings[configKeyCacheMode]); v != "" {
		cfg.Cache.Mode = CacheMode(strings.ToLower(v))
	}

	if v, err := strconv.Atoi(settings[configKeyCacheCapacity]); err == nil {
		cfg.Cache.Capacity = v
	}

	if v, err := time.ParseDuration(settings[configKeyCacheTTL]); err == nil {
		cfg.Cache.TTL = v
	}

	return cfg.Normalize()
}

// Normalize fills zero values with defaults and makes sure the base URL
// ends with a slash.
func (c Config) Normalize() Config {
	def := DefaultConfig()

	c.BaseURL = strings.TrimSpace(c.BaseURL)
	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	if !strings.HasSuffix(c.BaseURL, "/") {
		c.BaseURL += "/"
	}

	if strings.TrimSpace(c.ProviderID) == "" {
		c.ProviderID = def.ProviderID
	}

	if strings.TrimSpace(c.FederationSource) == "" {
		c.FederationSource = c.ProviderID
	}

	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}

	if c.Cache.Mode == "" {
		c.Cache.Mode = def.Cache.Mode
	}

	if c.Cache.Mode == CacheModeBounded && c.Cache.Capacity == 0 {
		c.Cache.Capacity = def.Cache.Capacity
	}

	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = def.Breaker.FailureThreshold
	}

	if c.Breaker.MaxRequests == 0 {
		c.Breaker.MaxRequests = def.Breaker.MaxRequests
	}

	if c.Breaker.Timeout <= 0 {
		c.Breaker.Timeout = def.Breaker.Timeout
	}

	return c
}

// Validate will validate the configuration
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, is.URL, validation.By(httpURL)),
		validation.Field(&c.ProviderID, validation.Required, validation.By(noColon)),
		validation.Field(&c.FederationSource, validation.Required),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.Cache),
	)
}

// Validate will validate the cache settings
func (c CacheConfig) Validate() error {
	capacityRules := []validation.Rule{}
	if c.Mode == CacheModeBounded {
		capacityRules = append(capacityRules, validation.Required, validation.Min(1))
	}

	return validation.ValidateStruct(&c,
		validation.Field(&c.Mode, validation.Required, validation.In(CacheModeBounded, CacheModeUnbounded)),
		validation.Field(&c.Capacity, capacityRules...),
		validation.Field(&c.TTL, validation.Min(time.Duration(0))),
	)
}

func httpURL(value any) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("must include a host")
	}
	return nil
}

func noColon(value any) error {
	s, _ := value.(string)
	if strings.Contains(s, ":") {
		return fmt.Errorf("must not contain ':'")
	}
	return nil
}
