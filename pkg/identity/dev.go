package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DevProvider is an in-process identity provider with bcrypt-hashed
// credentials. It exists for development and tests; production deployments
// use the OIDC adapter.
type DevProvider struct {
	mu       sync.Mutex
	accounts map[string]*devAccount
	*notifier
}

var _ Provider = (*DevProvider)(nil)

type devAccount struct {
	identity     Identity
	passwordHash []byte
}

// NewDevProvider creates an empty development provider
func NewDevProvider() *DevProvider {
	return &DevProvider{
		accounts: make(map[string]*devAccount),
		notifier: newNotifier(),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp registers a new account and fires an identity-changed event
func (p *DevProvider) SignUp(ctx context.Context, email, password string) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := normalizeEmail(email)

	p.mu.Lock()
	if _, exists := p.accounts[key]; exists {
		p.mu.Unlock()
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}

	account := &devAccount{
		identity: Identity{
			SubjectID: uuid.NewString(),
			Email:     key,
		},
		passwordHash: hash,
	}
	p.accounts[key] = account
	id := account.identity
	p.mu.Unlock()

	p.publish(&id)
	return &id, nil
}

// SignIn verifies credentials and fires an identity-changed event
func (p *DevProvider) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := normalizeEmail(email)

	p.mu.Lock()
	account, exists := p.accounts[key]
	if !exists {
		p.mu.Unlock()
		return nil, ErrInvalidCredentials
	}
	hash := account.passwordHash
	id := account.identity
	p.mu.Unlock()

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	p.publish(&id)
	return &id, nil
}

// SignOut clears the current identity and fires a nil identity-changed event
func (p *DevProvider) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.publish(nil)
	return nil
}

// UpdateProfile updates the display name and avatar on the current account
// and fires an identity-changed event, mirroring providers that allow the
// user to edit provider-side profile fields.
func (p *DevProvider) UpdateProfile(ctx context.Context, email, displayName, avatarURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := normalizeEmail(email)

	p.mu.Lock()
	account, exists := p.accounts[key]
	if !exists {
		p.mu.Unlock()
		return ErrInvalidCredentials
	}
	account.identity.DisplayName = displayName
	account.identity.AvatarURL = avatarURL
	id := account.identity
	p.mu.Unlock()

	p.publish(&id)
	return nil
}
