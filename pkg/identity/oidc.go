package identity

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCConfig holds OpenID Connect provider settings
type OIDCConfig struct {
	IssuerURL       string
	ClientID        string
	ClientSecret    string
	Scopes          []string
	SkipIssuerCheck bool
}

// OIDCProvider adapts an external OpenID Connect issuer to the Provider
// contract using the resource-owner password grant. Registration happens on
// the issuer's side, so SignUp reports ErrUnsupported.
type OIDCProvider struct {
	config       *OIDCConfig
	provider     *oidc.Provider
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
	*notifier
}

var _ Provider = (*OIDCProvider)(nil)

// NewOIDCProvider discovers the issuer and prepares the token verifier
func NewOIDCProvider(ctx context.Context, config *OIDCConfig) (*OIDCProvider, error) {
	if config == nil {
		return nil, fmt.Errorf("OIDC config is required")
	}

	provider, err := oidc.NewProvider(ctx, config.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID:        config.ClientID,
		SkipIssuerCheck: config.SkipIssuerCheck,
	})

	scopes := config.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	oauth2Config := &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Endpoint:     provider.Endpoint(),
		Scopes:       scopes,
	}

	return &OIDCProvider{
		config:       config,
		provider:     provider,
		verifier:     verifier,
		oauth2Config: oauth2Config,
		notifier:     newNotifier(),
	}, nil
}

// SignUp is handled on the issuer's side
func (p *OIDCProvider) SignUp(ctx context.Context, email, password string) (*Identity, error) {
	return nil, ErrUnsupported
}

// SignIn exchanges credentials for an ID token, verifies it, and fires an
// identity-changed event with the verified claims.
func (p *OIDCProvider) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	token, err := p.oauth2Config.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("missing id_token in token response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse ID token claims: %w", err)
	}
	if claims.Email == "" {
		claims.Email = normalizeEmail(email)
	}

	id := &Identity{
		SubjectID:   idToken.Subject,
		Email:       normalizeEmail(claims.Email),
		DisplayName: claims.Name,
		AvatarURL:   claims.Picture,
	}

	p.publish(id)
	return id, nil
}

// SignOut clears the current identity and fires a nil identity-changed event
func (p *OIDCProvider) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.publish(nil)
	return nil
}
