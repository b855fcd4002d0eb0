package auth

import (
	"context"
)

// ChainProvider tries identity providers in order. Rejections and missing
// identities fall through to the next provider, any other error stops the chain.
type ChainProvider struct {
	providers []IdentityProvider
}

// NewChainProvider builds a chain, nil providers are skipped.
func NewChainProvider(providers ...IdentityProvider) *ChainProvider {
	chain := &ChainProvider{}
	for _, p := range providers {
		if p != nil {
			chain.providers = append(chain.providers, p)
		}
	}
	return chain
}

func (c *ChainProvider) VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error) {
	var lastErr error = ErrMismatchedHashAndPassword
	for _, p := range c.providers {
		identity, err := p.VerifyIdentity(ctx, identifier, password)
		if err == nil && identity != nil {
			return identity, nil
		}
		if err != nil && !fallsThrough(err) {
			return nil, err
		}
		if err != nil {
			lastErr = err
		}
	}
	return nil, lastErr
}

func (c *ChainProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	for _, p := range c.providers {
		identity, err := p.FindIdentityByIdentifier(ctx, identifier)
		if err == nil && identity != nil {
			return identity, nil
		}
		if err != nil && !fallsThrough(err) {
			return nil, err
		}
	}
	return nil, ErrIdentityNotFound
}

func fallsThrough(err error) bool {
	return IsCredentialsMismatch(err) || IsIdentityNotFound(err)
}

var _ IdentityProvider = (*ChainProvider)(nil)
