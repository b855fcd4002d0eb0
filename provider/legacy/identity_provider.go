package legacy

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-auth-legacy"
	"github.com/goliatone/go-errors"
	"github.com/prometheus/client_golang/prometheus"
)

// CredentialType names the kind of secret being validated.
type CredentialType string

// CredentialPassword is the only credential type the facade understands.
const CredentialPassword CredentialType = "password"

// CredentialInput is a submitted secret.
type CredentialInput struct {
	Type   CredentialType
	Secret string
}

// PasswordCredential wraps a plaintext password.
func PasswordCredential(secret string) CredentialInput {
	return CredentialInput{Type: CredentialPassword, Secret: secret}
}

// ValidationOutcome is the result of a credential validation. Both
// validated outcomes count as a successful login.
type ValidationOutcome int

const (
	OutcomeRejected ValidationOutcome = iota
	OutcomeValidatedNoSync
	OutcomeValidatedSynced
)

func (o ValidationOutcome) String() string {
	switch o {
	case OutcomeValidatedNoSync:
		return "validated_no_sync"
	case OutcomeValidatedSynced:
		return "validated_synced"
	default:
		return "rejected"
	}
}

// Accepted reports whether the login succeeded.
func (o ValidationOutcome) Accepted() bool {
	return o != OutcomeRejected
}

// ProvisioningEngine writes validated profiles to the local store.
type ProvisioningEngine interface {
	Provision(ctx context.Context, profile RemoteProfile, password string) (*auth.User, error)
}

var _ ProvisioningEngine = (*Provisioner)(nil)

// IdentityProvider federates the legacy facade. It answers user lookups,
// validates passwords remotely and provisions the local copy on success.
type IdentityProvider struct {
	config      Config
	client      RemoteClient
	resolver    *Resolver
	provisioner ProvisioningEngine
	logger      auth.Logger
	provider    auth.LoggerProvider
	activity    auth.ActivitySink
	metrics     *Metrics
}

type settings struct {
	client     RemoteClient
	httpClient *http.Client
	cache      ProfileCache
	registerer prometheus.Registerer
	logger     auth.Logger
	provider   auth.LoggerProvider
	activity   auth.ActivitySink
	now        func() time.Time
}

// Option configures New.
type Option func(*settings)

// WithRemoteClient replaces the HTTP facade client.
func WithRemoteClient(c RemoteClient) Option {
	return func(s *settings) { s.client = c }
}

// WithFacadeHTTPClient sets the http client used by the default facade client.
func WithFacadeHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// WithProfileCache replaces the cache built from Config.Cache.
func WithProfileCache(c ProfileCache) Option {
	return func(s *settings) { s.cache = c }
}

// WithRegisterer registers the bridge metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *settings) { s.registerer = reg }
}

func WithLogger(l auth.Logger) Option {
	return func(s *settings) { s.logger = l }
}

func WithLoggerProvider(p auth.LoggerProvider) Option {
	return func(s *settings) { s.provider = p }
}

func WithActivitySink(sink auth.ActivitySink) Option {
	return func(s *settings) { s.activity = sink }
}

func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// New wires the client, cache, resolver and provisioner for cfg and repo.
func New(cfg Config, repo auth.RepositoryManager, opts ...Option) (*IdentityProvider, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid legacy federation config")
	}

	s := &settings{}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	provider, logger := auth.ResolveLogger("legacy.identity_provider", s.provider, s.logger)
	named := func(name string) auth.Logger {
		_, l := auth.ResolveLogger(name, provider, logger)
		return l
	}

	metrics := NewMetrics(s.registerer)

	client := s.client
	if client == nil {
		client = NewClient(cfg,
			WithHTTPClient(s.httpClient),
			WithClientLogger(named("legacy.client")),
			WithClientMetrics(metrics),
		)
	}

	cache := s.cache
	if cache == nil {
		cache = NewProfileCache(cfg.Cache)
	}
	metrics.WatchCache(s.registerer, cache)

	resolver := NewResolver(client, cache,
		WithProviderID(cfg.ProviderID),
		WithResolverLogger(named("legacy.resolver")),
		WithResolverMetrics(metrics),
	)

	provisioner := NewProvisioner(repo, cfg.FederationSource,
		WithProvisionerLogger(named("legacy.provisioner")),
		WithProvisionerActivitySink(s.activity),
		WithProvisionerMetrics(metrics),
		WithProvisionerClock(s.now),
	)

	idp := NewIdentityProvider(cfg, client, resolver, provisioner)
	idp.provider, idp.logger = provider, logger
	idp.activity = auth.NormalizeActivitySink(s.activity)
	idp.metrics = metrics

	return idp, nil
}

// NewIdentityProvider assembles a provider from already built parts.
func NewIdentityProvider(cfg Config, client RemoteClient, resolver *Resolver, provisioner ProvisioningEngine) *IdentityProvider {
	provider, logger := auth.ResolveLogger("legacy.identity_provider", nil, nil)
	return &IdentityProvider{
		config:      cfg.Normalize(),
		client:      client,
		resolver:    resolver,
		provisioner: provisioner,
		logger:      logger,
		provider:    provider,
		activity:    auth.NormalizeActivitySink(nil),
	}
}

func (p *IdentityProvider) WithLogger(l auth.Logger) *IdentityProvider {
	p.provider, p.logger = auth.ResolveLogger("legacy.identity_provider", nil, l)
	return p
}

func (p *IdentityProvider) WithActivitySink(sink auth.ActivitySink) *IdentityProvider {
	p.activity = auth.NormalizeActivitySink(sink)
	return p
}

func (p *IdentityProvider) WithMetrics(m *Metrics) *IdentityProvider {
	p.metrics = m
	return p
}

func (p *IdentityProvider) Config() Config {
	return p.config
}

// Resolver exposes the resolver, mostly for warm up.
func (p *IdentityProvider) Resolver() *Resolver {
	return p.resolver
}

// StorageID returns the opaque id for username.
func (p *IdentityProvider) StorageID(username string) string {
	return EncodeStorageID(p.config.ProviderID, username)
}

// LookupUser resolves identifier by kind. A missing user is not an error,
// only malformed ids and unknown kinds are.
func (p *IdentityProvider) LookupUser(ctx context.Context, identifier string, kind auth.LookupKind) (auth.Identity, bool, error) {
	var profile RemoteProfile
	var found bool

	switch kind {
	case auth.LookupByUsername:
		profile, found = p.resolver.ResolveByUsername(ctx, identifier)
	case auth.LookupByID:
		var err error
		if profile, found, err = p.resolver.ResolveByID(ctx, identifier); err != nil {
			return nil, false, err
		}
	case auth.LookupByEmail:
		profile, found = p.resolver.ResolveByEmail(ctx, identifier)
	default:
		return nil, false, ErrUnknownLookupKind
	}

	if !found {
		return nil, false, nil
	}

	return NewProfileIdentity(profile, p.config.ProviderID), true, nil
}

// SupportsCredentialType only passwords are federated.
func (p *IdentityProvider) SupportsCredentialType(t CredentialType) bool {
	return t == CredentialPassword
}

// ValidateCredential reports whether input is valid for user. A valid
// login whose profile can not be synchronized still succeeds.
func (p *IdentityProvider) ValidateCredential(ctx context.Context, user auth.Identity, input CredentialInput) bool {
	if user == nil {
		return false
	}
	outcome, _ := p.Validate(ctx, user.Username(), input)
	return outcome.Accepted()
}

// Validate runs the remote login and, on success, provisions the local
// record. The returned user is nil unless the outcome is OutcomeValidatedSynced.
func (p *IdentityProvider) Validate(ctx context.Context, username string, input CredentialInput) (ValidationOutcome, *auth.User) {
	if !p.SupportsCredentialType(input.Type) {
		p.logger.Debug("legacy credential type not supported", "type", string(input.Type))
		return OutcomeRejected, nil
	}

	if !p.client.ValidateCredentials(ctx, username, input.Secret) {
		p.metrics.validation(OutcomeRejected)
		return OutcomeRejected, nil
	}

	profile, found := p.resolver.ResolveByUsername(ctx, username)
	if !found {
		p.logger.Warn("legacy user validated but profile could not be loaded", "username", username)
		p.unsynced(ctx, username, "profile_unresolved", nil)
		return OutcomeValidatedNoSync, nil
	}

	record, err := p.provisioner.Provision(ctx, profile, input.Secret)
	if err != nil {
		p.logger.Error("legacy user validated but provisioning failed", "username", username, "error", err)
		p.unsynced(ctx, username, "provisioning_failed", err)
		return OutcomeValidatedNoSync, nil
	}

	p.metrics.validation(OutcomeValidatedSynced)
	return OutcomeValidatedSynced, record
}

func (p *IdentityProvider) unsynced(ctx context.Context, username, reason string, cause error) {
	p.metrics.validation(OutcomeValidatedNoSync)

	metadata := map[string]any{"reason": reason}
	if cause != nil {
		metadata["error"] = cause.Error()
	}

	auth.RecordActivity(ctx, p.activity, p.logger, auth.ActivityEvent{
		EventType: auth.ActivityEventFederationUnsynced,
		Username:  username,
		Source:    p.config.FederationSource,
		Metadata:  metadata,
	})
}

// VerifyIdentity implements auth.IdentityProvider. identifier may be a
// username or a storage id.
func (p *IdentityProvider) VerifyIdentity(ctx context.Context, identifier, password string) (auth.Identity, error) {
	username, err := p.usernameFor(identifier)
	if err != nil {
		return nil, err
	}

	outcome, record := p.Validate(ctx, username, PasswordCredential(password))
	switch outcome {
	case OutcomeValidatedSynced:
		return auth.NewIdentityFromUser(record), nil
	case OutcomeValidatedNoSync:
		return NewProfileIdentity(NewRemoteProfile(username, "", "", nil), p.config.ProviderID), nil
	default:
		return nil, auth.ErrMismatchedHashAndPassword
	}
}

// FindIdentityByIdentifier implements auth.IdentityProvider.
func (p *IdentityProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (auth.Identity, error) {
	kind := auth.LookupByUsername
	if strings.HasPrefix(identifier, storageIDPrefix) {
		kind = auth.LookupByID
	}

	identity, found, err := p.LookupUser(ctx, identifier, kind)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, auth.ErrIdentityNotFound
	}
	return identity, nil
}

// Health checks the facade when the client supports it.
func (p *IdentityProvider) Health(ctx context.Context) error {
	if hc, ok := p.client.(auth.HealthChecker); ok {
		return hc.Health(ctx)
	}
	return nil
}

// Close drops every cached profile.
func (p *IdentityProvider) Close() error {
	p.resolver.Cache().Clear()
	return nil
}

func (p *IdentityProvider) usernameFor(identifier string) (string, error) {
	if !strings.HasPrefix(identifier, storageIDPrefix) {
		return identifier, nil
	}
	sid, err := DecodeStorageID(identifier)
	if err != nil {
		return "", err
	}
	if sid.ProviderID != p.config.ProviderID {
		return "", malformedID(identifier, "foreign provider id")
	}
	return sid.ExternalID, nil
}

var (
	_ auth.IdentityProvider = (*IdentityProvider)(nil)
	_ auth.UserLookup       = (*IdentityProvider)(nil)
	_ auth.HealthChecker    = (*IdentityProvider)(nil)
)
