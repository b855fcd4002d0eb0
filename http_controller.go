package auth

import (
	"context"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// RegisterFederationRoutes mounts the JSON login and user lookup routes.
func RegisterFederationRoutes[T any](app router.Router[T], opts ...FederationControllerOption) *FederationController {
	controller := NewFederationController(opts...)

	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("federation.login.post")

	app.Get(controller.Routes.Lookup, controller.LookupGet).
		SetName("federation.users.get")

	app.Get(controller.Routes.Health, controller.HealthGet).
		SetName("federation.health.get")

	if controller.Guard != nil {
		app.Get(controller.Routes.Me, controller.MeGet, controller.Guard).
			SetName("federation.me.get")
	}

	return controller
}

type FederationControllerRoutes struct {
	Login  string
	Lookup string
	Health string
	Me     string
}

// DefaultClaimsKey is the context local holding validated token claims.
const DefaultClaimsKey = "user"

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// FederationController serves login and lookup requests as JSON.
type FederationController struct {
	Logger Logger
	Auther Authenticator
	Lookup UserLookup
	Health HealthChecker
	// Guard validates bearer tokens for the Me route, which is only
	// mounted when a guard is configured.
	Guard     router.MiddlewareFunc
	ClaimsKey string
	Routes    *FederationControllerRoutes
}

type FederationControllerOption func(*FederationController) *FederationController

func WithControllerAuthenticator(a Authenticator) FederationControllerOption {
	return func(c *FederationController) *FederationController {
		c.Auther = a
		return c
	}
}

func WithControllerLookup(l UserLookup) FederationControllerOption {
	return func(c *FederationController) *FederationController {
		c.Lookup = l
		return c
	}
}

func WithControllerHealth(h HealthChecker) FederationControllerOption {
	return func(c *FederationController) *FederationController {
		c.Health = h
		return c
	}
}

func WithControllerGuard(guard router.MiddlewareFunc) FederationControllerOption {
	return func(c *FederationController) *FederationController {
		c.Guard = guard
		return c
	}
}

func WithControllerLogger(l Logger) FederationControllerOption {
	return func(c *FederationController) *FederationController {
		_, c.Logger = ResolveLogger("auth.controller", nil, l)
		return c
	}
}

func NewFederationController(opts ...FederationControllerOption) *FederationController {
	_, logger := ResolveLogger("auth.controller", nil, nil)
	c := &FederationController{
		Logger:    logger,
		ClaimsKey: DefaultClaimsKey,
		Routes: &FederationControllerRoutes{
			Login:  "/auth/login",
			Lookup: "/auth/users/:identifier",
			Health: "/health",
			Me:     "/auth/me",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing Authenticator in federation controller...")
	}

	if c.Lookup == nil {
		panic("Missing UserLookup in federation controller...")
	}

	return c
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
}

// Validate will validate the request
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Password, validation.Required),
	)
}

// LookupQuery selects how the identifier is interpreted.
type LookupQuery struct {
	Identifier string
	Kind       LookupKind
}

func (q LookupQuery) Validate() error {
	rules := []validation.Rule{validation.Required}
	if q.Kind == LookupByEmail {
		rules = append(rules, is.Email)
	}
	return validation.ValidateStruct(&q,
		validation.Field(&q.Identifier, rules...),
		validation.Field(&q.Kind, validation.Required, validation.In(LookupByUsername, LookupByID, LookupByEmail)),
	)
}

func (a *FederationController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return ctx.JSON(http.StatusBadRequest, router.ViewContext{
			"status":  "error",
			"message": "invalid payload",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, router.ViewContext{
			"status": "error",
			"errors": err,
		})
	}

	token, err := a.Auther.Login(ctx.Context(), payload.Identifier, payload.Password)
	if err != nil {
		return a.writeError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"status": "ok",
		"token":  token,
	})
}

func (a *FederationController) LookupGet(ctx router.Context) error {
	query := LookupQuery{
		Identifier: ctx.Param("identifier"),
		Kind:       LookupKind(ctx.Query("kind")),
	}
	if query.Kind == "" {
		query.Kind = LookupByUsername
	}

	if err := query.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, router.ViewContext{
			"status": "error",
			"errors": err,
		})
	}

	identity, found, err := a.Lookup.LookupUser(ctx.Context(), query.Identifier, query.Kind)
	if err != nil {
		return a.writeError(ctx, err)
	}

	if !found {
		return ctx.JSON(http.StatusNotFound, router.ViewContext{
			"status":  "error",
			"message": "user not found",
		})
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"id":       identity.ID(),
		"username": identity.Username(),
		"email":    identity.Email(),
		"role":     identity.Role(),
	})
}

func (a *FederationController) HealthGet(ctx router.Context) error {
	if a.Health != nil {
		if err := a.Health.Health(ctx.Context()); err != nil {
			a.Logger.Warn("health check failed", "error", err)
			return ctx.JSON(http.StatusServiceUnavailable, router.ViewContext{
				"status": "degraded",
			})
		}
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"status": "ok",
	})
}

// MeGet echoes the claims of the bearer token validated by the guard.
func (a *FederationController) MeGet(ctx router.Context) error {
	claims, ok := ClaimsFromContext(ctx, a.ClaimsKey)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, router.ViewContext{
			"status":  "error",
			"message": "missing token claims",
		})
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"id":       claims.UID,
		"username": claims.Username,
		"role":     claims.UserRole,
		"origin":   claims.Origin,
		"expires":  claims.ExpiresAt,
	})
}

// ClaimsFromContext returns the claims stored under key by the token guard.
func ClaimsFromContext(ctx router.Context, key string) (*JWTClaims, bool) {
	if key == "" {
		key = DefaultClaimsKey
	}
	claims, ok := ctx.Locals(key).(*JWTClaims)
	return claims, ok && claims != nil
}

func (a *FederationController) writeError(ctx router.Context, err error) error {
	status := StatusFromError(err)
	if status >= http.StatusInternalServerError {
		a.Logger.Error("federation request failed", "error", err)
	}

	return ctx.JSON(status, router.ViewContext{
		"status":  "error",
		"message": publicMessage(status, err),
	})
}

// StatusFromError maps rich error categories onto HTTP status codes.
func StatusFromError(err error) int {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return http.StatusInternalServerError
	}

	switch richErr.Category {
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryBadInput, errors.CategoryValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func publicMessage(status int, err error) string {
	if status >= http.StatusInternalServerError {
		return "internal error"
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.Message
	}
	return err.Error()
}
