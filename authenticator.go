package auth

import (
	"context"
	"reflect"

	"github.com/golang-jwt/jwt/v5"
)

// Auther verifies identities through a provider and issues tokens.
type Auther struct {
	provider     IdentityProvider
	logger       Logger
	loggerProv   LoggerProvider
	tokenService TokenService
	activitySink ActivitySink
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, opts Config) *Auther {
	loggerProvider, logger := ResolveLogger("auth.authenticator", nil, nil)
	return &Auther{
		provider:   provider,
		logger:     logger,
		loggerProv: loggerProvider,
		tokenService: NewTokenService(
			[]byte(opts.GetSigningKey()),
			opts.GetTokenExpiration(),
			opts.GetIssuer(),
			jwt.ClaimStrings(opts.GetAudience()),
			logger,
		),
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.loggerProv, s.logger = ResolveLogger("auth.authenticator", nil, logger)
	return s
}

// WithLoggerProvider overrides the logger provider.
func (s *Auther) WithLoggerProvider(provider LoggerProvider) *Auther {
	s.loggerProv, s.logger = ResolveLogger("auth.authenticator", provider, s.logger)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = NormalizeActivitySink(sink)
	return s
}

// WithTokenService replaces the token service.
func (s *Auther) WithTokenService(ts TokenService) *Auther {
	if ts != nil {
		s.tokenService = ts
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

func (s *Auther) Login(ctx context.Context, identifier, password string) (string, error) {
	identity, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		s.logger.Error("Login verify identity error", "error", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, identifier, "", map[string]any{
			"error": err.Error(),
		})
		return "", err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, identifier, "", map[string]any{
			"error": ErrIdentityNotFound.Error(),
		})
		return "", ErrIdentityNotFound
	}

	token, err := s.tokenService.Generate(identity)
	if err != nil {
		s.logger.Error("Login generate token error", "error", err)
		return "", err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, identity.Username(), identity.ID(), nil)

	return token, nil
}

// IdentityFromToken validates token and loads the identity it was issued for.
func (s *Auther) IdentityFromToken(ctx context.Context, token string) (Identity, error) {
	claims, err := s.tokenService.Validate(token)
	if err != nil {
		return nil, err
	}

	identifier := claims.Username
	if identifier == "" {
		identifier = claims.Subject
	}

	identity, err := s.provider.FindIdentityByIdentifier(ctx, identifier)
	if err != nil {
		s.logger.Error("IdentityFromToken find identity by identifier", "error", err)
		return nil, err
	}

	return identity, nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, username, userID string, metadata map[string]any) {
	RecordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: eventType,
		UserID:    userID,
		Username:  username,
		Metadata:  metadata,
	})
}

var _ Authenticator = (*Auther)(nil)
