package identity

import (
	"context"
	"errors"
	"sync"
)

// Identity is a verified assertion from the identity provider about who is
// signed in. It is immutable; the provider replaces it wholesale on every
// identity-changed event.
type Identity struct {
	SubjectID   string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"photoURL,omitempty"`
}

// Provider is the identity provider contract. Subscribe delivers
// identity-changed events: a non-nil Identity on sign-in/sign-up and nil on
// sign-out. Credential verification and token issuance belong to the
// provider; callers receive only verified identities.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (*Identity, error)
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	SignOut(ctx context.Context) error
	Subscribe(fn func(*Identity)) (unsubscribe func())
}

var (
	// ErrInvalidCredentials indicates a failed sign-in
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailTaken indicates a sign-up for an already registered email
	ErrEmailTaken = errors.New("email already registered")

	// ErrUnsupported indicates the provider does not implement the
	// operation (e.g. self-service registration against an external IdP)
	ErrUnsupported = errors.New("operation not supported by this provider")
)

// notifier manages identity-changed subscriptions shared by provider
// implementations. Callbacks run synchronously in subscription order so a
// subscriber always observes events in the order the provider fired them.
type notifier struct {
	mu      sync.Mutex
	nextID  int
	subs    map[int]func(*Identity)
	current *Identity
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]func(*Identity))}
}

// Subscribe registers a callback and immediately replays the current
// identity, mirroring auth-state observers that fire on attach. Provider
// implementations embed the notifier to satisfy the Provider contract.
func (n *notifier) Subscribe(fn func(*Identity)) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	current := n.current
	n.mu.Unlock()

	fn(current)

	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

// publish records the new current identity and notifies subscribers
func (n *notifier) publish(id *Identity) {
	n.mu.Lock()
	n.current = id
	fns := make([]func(*Identity), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(id)
	}
}
