package legacy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-auth-legacy"
	"github.com/goliatone/go-errors"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxResponseBytes = 1 << 20

const (
	opFetchProfile = "fetch_profile"
	opLogin        = "login"
	opListProfiles = "list_profiles"
	opHealth       = "health"
)

var errUnexpectedStatus = errors.New("legacy facade returned a server error", errors.CategoryOperation)

// Client talks to the legacy facade. Every call is a single attempt bounded
// by the configured timeout, there are no retries.
type Client struct {
	baseURL  string
	timeout  time.Duration
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	logger   auth.Logger
	provider auth.LoggerProvider
	metrics  *Metrics
}

type ClientOption func(*Client)

// WithHTTPClient replaces the default instrumented http client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithClientLogger sets the logger used for per call log lines.
func WithClientLogger(l auth.Logger) ClientOption {
	return func(cl *Client) {
		cl.provider, cl.logger = auth.ResolveLogger("legacy.client", nil, l)
	}
}

// WithClientLoggerProvider resolves the "legacy.client" logger from provider.
func WithClientLoggerProvider(provider auth.LoggerProvider) ClientOption {
	return func(cl *Client) {
		cl.provider, cl.logger = auth.ResolveLogger("legacy.client", provider, cl.logger)
	}
}

// WithClientMetrics records remote calls on m.
func WithClientMetrics(m *Metrics) ClientOption {
	return func(cl *Client) {
		cl.metrics = m
	}
}

// NewClient builds a client for cfg.BaseURL. cfg is normalized first.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	cfg = cfg.Normalize()
	provider, logger := auth.ResolveLogger("legacy.client", nil, nil)

	c := &Client{
		baseURL:  cfg.BaseURL,
		timeout:  cfg.Timeout,
		provider: provider,
		logger:   logger,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if cfg.Breaker.Enabled {
		c.breaker = newBreaker(cfg.Breaker, c.logger)
	}

	return c
}

// BaseURL returns the normalized base URL, always ending in "/".
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchProfile loads username from GET <base>/users/<username>.
// A 404 maps to ErrNotFound, anything else that is not 2xx to ErrTransport.
func (c *Client) FetchProfile(ctx context.Context, username string) (RemoteProfile, error) {
	if strings.TrimSpace(username) == "" {
		return RemoteProfile{}, notFoundError(username)
	}

	target := c.baseURL + "users/" + url.PathEscape(username)
	started := time.Now()

	res, err := c.roundTrip(ctx, http.MethodGet, target, nil)
	switch {
	case err != nil && res.status == 0:
		c.logger.Error("legacy fetch profile failed", "url", target, "error", err)
		c.metrics.observeRemote(opFetchProfile, "error", started)
		return RemoteProfile{}, transportError(err, opFetchProfile, target, 0)

	case res.status == http.StatusNotFound:
		c.logger.Info("legacy fetch profile", "url", target, "status", res.status, "outcome", "not_found")
		c.metrics.observeRemote(opFetchProfile, "not_found", started)
		return RemoteProfile{}, notFoundError(username)

	case res.status < 200 || res.status > 299:
		c.logger.Warn("legacy fetch profile unexpected status", "url", target, "status", res.status)
		c.metrics.observeRemote(opFetchProfile, "unexpected_status", started)
		return RemoteProfile{}, transportError(nil, opFetchProfile, target, res.status)
	}

	var profile RemoteProfile
	if err := json.Unmarshal(res.body, &profile); err != nil {
		c.logger.Error("legacy fetch profile decode failed", "url", target, "error", err)
		c.metrics.observeRemote(opFetchProfile, "decode_error", started)
		return RemoteProfile{}, transportError(err, opFetchProfile, target, res.status)
	}

	if profile.IsZero() {
		c.logger.Warn("legacy fetch profile missing username", "url", target)
		c.metrics.observeRemote(opFetchProfile, "decode_error", started)
		return RemoteProfile{}, transportError(nil, opFetchProfile, target, res.status)
	}

	c.logger.Info("legacy fetch profile", "url", target, "status", res.status, "outcome", "ok", "roles", len(profile.roles))
	c.metrics.observeRemote(opFetchProfile, "ok", started)

	return profile, nil
}

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ValidateCredentials posts the pair to <base>/login. Only a 200 counts as
// valid, every failure returns false.
func (c *Client) ValidateCredentials(ctx context.Context, username, password string) bool {
	target := c.baseURL + "login"
	started := time.Now()

	res, err := c.roundTrip(ctx, http.MethodPost, target, loginPayload{
		Username: username,
		Password: password,
	})
	if err != nil && res.status == 0 {
		c.logger.Error("legacy validate credentials failed", "username", username, "error", err)
		c.metrics.observeRemote(opLogin, "error", started)
		return false
	}

	valid := res.status == http.StatusOK
	outcome := "rejected"
	if valid {
		outcome = "ok"
	}

	c.logger.Info("legacy validate credentials", "username", username, "status", res.status, "outcome", outcome)
	c.metrics.observeRemote(opLogin, outcome, started)

	return valid
}

// ListProfiles loads every profile from GET <base>/users.
func (c *Client) ListProfiles(ctx context.Context) ([]RemoteProfile, error) {
	target := c.baseURL + "users"
	started := time.Now()

	res, err := c.roundTrip(ctx, http.MethodGet, target, nil)
	if err != nil && res.status == 0 {
		c.logger.Error("legacy list profiles failed", "url", target, "error", err)
		c.metrics.observeRemote(opListProfiles, "error", started)
		return nil, transportError(err, opListProfiles, target, 0)
	}

	if res.status < 200 || res.status > 299 {
		c.logger.Warn("legacy list profiles unexpected status", "url", target, "status", res.status)
		c.metrics.observeRemote(opListProfiles, "unexpected_status", started)
		return nil, transportError(nil, opListProfiles, target, res.status)
	}

	var profiles []RemoteProfile
	if err := json.Unmarshal(res.body, &profiles); err != nil {
		c.logger.Error("legacy list profiles decode failed", "url", target, "error", err)
		c.metrics.observeRemote(opListProfiles, "decode_error", started)
		return nil, transportError(err, opListProfiles, target, res.status)
	}

	c.logger.Info("legacy list profiles", "url", target, "status", res.status, "count", len(profiles))
	c.metrics.observeRemote(opListProfiles, "ok", started)

	return profiles, nil
}

// Health checks GET <base>/health.
func (c *Client) Health(ctx context.Context) error {
	target := c.baseURL + "health"
	started := time.Now()

	res, err := c.roundTrip(ctx, http.MethodGet, target, nil)
	if err != nil && res.status == 0 {
		c.logger.Warn("legacy health check failed", "url", target, "error", err)
		c.metrics.observeRemote(opHealth, "error", started)
		return transportError(err, opHealth, target, 0)
	}

	if res.status < 200 || res.status > 299 {
		c.logger.Warn("legacy health check unexpected status", "url", target, "status", res.status)
		c.metrics.observeRemote(opHealth, "unexpected_status", started)
		return transportError(nil, opHealth, target, res.status)
	}

	c.logger.Info("legacy health check", "url", target, "status", res.status)
	c.metrics.observeRemote(opHealth, "ok", started)
	return nil
}

type response struct {
	status int
	body   []byte
}

// roundTrip performs one request. A zero status in the response means the
// request never produced an HTTP answer.
func (c *Client) roundTrip(ctx context.Context, method, target string, payload any) (response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return response{}, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return response{}, err
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	call := func() (interface{}, error) {
		res, err := c.http.Do(req)
		if err != nil {
			return response{}, err
		}
		defer res.Body.Close()

		data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
		if err != nil {
			return response{}, err
		}

		out := response{status: res.StatusCode, body: data}
		if res.StatusCode >= http.StatusInternalServerError {
			return out, errUnexpectedStatus
		}
		return out, nil
	}

	var result interface{}
	if c.breaker != nil {
		result, err = c.breaker.Execute(call)
	} else {
		result, err = call()
	}

	out, _ := result.(response)
	return out, err
}

func newBreaker(cfg BreakerConfig, logger auth.Logger) *gobreaker.CircuitBreaker {
	threshold := cfg.FailureThreshold
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "legacy-facade",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("legacy circuit breaker state change",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
}
