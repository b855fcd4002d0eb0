package legacy

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-auth-legacy"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// AttributeLegacyRoles holds the remote role names on the local record.
const AttributeLegacyRoles = "legacyRoles"

// ProvisionUserMessage asks for the local copy of Profile to be created or
// refreshed after Password was accepted by the facade.
type ProvisionUserMessage struct {
	Profile  RemoteProfile
	Password string
}

func (m ProvisionUserMessage) Type() string { return "legacy.user.provision" }

func (m ProvisionUserMessage) Validate() error {
	username := m.Profile.Username()
	return validation.Errors{
		"username": validation.Validate(username, validation.Required),
		"password": validation.Validate(m.Password, validation.Required),
	}.Filter()
}

// Provisioner reconciles local user records with remote profiles. It
// relies on the store's unique username constraint for concurrent creates.
type Provisioner struct {
	repo     auth.RepositoryManager
	source   string
	timeout  time.Duration
	now      func() time.Time
	logger   auth.Logger
	activity auth.ActivitySink
	metrics  *Metrics
}

type ProvisionerOption func(*Provisioner)

func WithProvisionerLogger(l auth.Logger) ProvisionerOption {
	return func(p *Provisioner) {
		_, p.logger = auth.ResolveLogger("legacy.provisioner", nil, l)
	}
}

func WithProvisionerActivitySink(sink auth.ActivitySink) ProvisionerOption {
	return func(p *Provisioner) {
		p.activity = auth.NormalizeActivitySink(sink)
	}
}

func WithProvisionerMetrics(m *Metrics) ProvisionerOption {
	return func(p *Provisioner) {
		p.metrics = m
	}
}

func WithProvisionerClock(now func() time.Time) ProvisionerOption {
	return func(p *Provisioner) {
		if now != nil {
			p.now = now
		}
	}
}

func NewProvisioner(repo auth.RepositoryManager, source string, opts ...ProvisionerOption) *Provisioner {
	_, logger := auth.ResolveLogger("legacy.provisioner", nil, nil)
	p := &Provisioner{
		repo:     repo,
		source:   source,
		timeout:  10 * time.Second,
		now:      time.Now,
		logger:   logger,
		activity: auth.NormalizeActivitySink(nil),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p
}

func (p *Provisioner) Execute(ctx context.Context, msg ProvisionUserMessage) error {
	_, err := p.Provision(ctx, msg.Profile, msg.Password)
	return err
}

// Provision creates or refreshes the local record for profile and stores
// password as its credential. Running it twice with the same input leaves
// the same observable record.
func (p *Provisioner) Provision(ctx context.Context, profile RemoteProfile, password string) (*auth.User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during legacy user provisioning",
		)
	default:
	}

	msg := ProvisionUserMessage{Profile: profile, Password: password}
	if err := msg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid provisioning request")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var record *auth.User
	var created bool

	err := p.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		record, created, err = p.findOrCreate(ctx, tx, profile.Username())
		if err != nil {
			return err
		}

		applyProfile(record, profile)

		if record, err = p.repo.Users().SaveTx(ctx, tx, record); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not save provisioned user")
		}

		if err := p.repo.Users().UpdateCredentialTx(ctx, tx, record, password); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not update provisioned user credential")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "legacy user provisioning transaction failed")
	}

	if created {
		p.logger.Info("imported legacy user into local storage", "username", record.Username)
	} else {
		p.logger.Debug("updated imported legacy user", "username", record.Username)
	}

	p.metrics.provisioned(created)
	auth.RecordActivity(ctx, p.activity, p.logger, auth.ActivityEvent{
		EventType:  auth.ActivityEventFederationProvisioned,
		UserID:     record.ID.String(),
		Username:   record.Username,
		Source:     p.source,
		OccurredAt: p.now(),
		Metadata: map[string]any{
			"created": created,
		},
	})

	return record, nil
}

func (p *Provisioner) findOrCreate(ctx context.Context, tx bun.IDB, username string) (*auth.User, bool, error) {
	users := p.repo.Users()

	record, err := users.GetByUsernameTx(ctx, tx, username)
	switch {
	case err == nil:
		if !record.IsLocalTo(p.source) {
			p.logger.Info("claiming user imported by another source",
				"username", username,
				"previous_source", record.Origin,
			)
			record.ClaimFor(p.source, p.now())
			return record, true, nil
		}
		record.Origin = p.source
		return record, false, nil

	case !repository.IsRecordNotFound(err) && !goerrors.IsNotFound(err):
		return nil, false, goerrors.Wrap(err, goerrors.CategoryInternal, "could not load local user")
	}

	now := p.now()
	candidate := &auth.User{
		Username:  username,
		Role:      auth.RoleMember,
		Origin:    p.source,
		CreatedAt: &now,
	}
	if id, err := hashid.NewUUID(p.source + ":" + username); err == nil {
		candidate.ID = id
	}

	record, created, err := users.CreateLocalUserTx(ctx, tx, candidate)
	if err != nil {
		return nil, false, goerrors.Wrap(err, goerrors.CategoryConflict, "could not create local user")
	}

	if !created && !record.IsLocalTo(p.source) {
		record.ClaimFor(p.source, now)
		return record, true, nil
	}
	record.Origin = p.source

	return record, created, nil
}

// applyProfile projects profile onto record. Blank names and a missing
// email leave the existing values alone.
func applyProfile(record *auth.User, profile RemoteProfile) {
	record.Enabled = true
	record.FederationLink = nil

	if profile.HasEmail() {
		record.Email = profile.Email()
		record.EmailVerified = true
	}

	if first, last, ok := SplitDisplayName(profile.DisplayName()); ok {
		record.FirstName = first
		if last != "" {
			record.LastName = last
		}
	}

	if roles := profile.Roles(); len(roles) == 0 {
		record.RemoveAttribute(AttributeLegacyRoles)
	} else {
		record.SetAttribute(AttributeLegacyRoles, roles)
	}
}

// SplitDisplayName splits on whitespace: the first token is the first name,
// the rest joined by single spaces is the last name. ok is false for blank input.
func SplitDisplayName(displayName string) (first, last string, ok bool) {
	parts := strings.Fields(displayName)
	if len(parts) == 0 {
		return "", "", false
	}
	return parts[0], strings.Join(parts[1:], " "), true
}
