package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/classhub/classhub/pkg/async"
	"github.com/classhub/classhub/pkg/identity"
	"github.com/classhub/classhub/pkg/observability"
	"github.com/classhub/classhub/pkg/profile"
)

// Config controls retry and deadline behavior for reconciliation
type Config struct {
	// FetchAttempts is the total number of Fetch attempts before a
	// not-found result is treated as truly absent. Default 3.
	FetchAttempts int

	// RetryInterval is the fixed delay between Fetch attempts. Default 1s.
	RetryInterval time.Duration

	// CallTimeout bounds each individual store call. Default 2s.
	CallTimeout time.Duration

	// Deadline bounds an entire reconciliation; past it the session
	// degrades instead of blocking. Default 5s.
	Deadline time.Duration

	// RoleCacheSize bounds the last-known-role cache used for degraded
	// sessions. Default 1024.
	RoleCacheSize int
}

func (c Config) withDefaults() Config {
	if c.FetchAttempts <= 0 {
		c.FetchAttempts = 3
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = time.Second
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 2 * time.Second
	}
	if c.Deadline <= 0 {
		c.Deadline = 5 * time.Second
	}
	if c.RoleCacheSize <= 0 {
		c.RoleCacheSize = 1024
	}
	return c
}

// Reconciler turns identity-changed events into published Sessions. Events
// for the same email are serialized: a newer event supersedes the in-flight
// reconciliation and only the session derived from the newest event is ever
// published. Events for different emails reconcile independently.
type Reconciler struct {
	store   profile.Store
	cfg     Config
	logger  *observability.Logger
	metrics *observability.Metrics

	baseCtx context.Context
	stop    context.CancelFunc

	mu         sync.Mutex
	events     uint64
	generation map[string]uint64
	cancels    map[string]context.CancelFunc
	current    Session
	subs       map[int]func(Session)
	nextSub    int
	closed     bool

	// pubMu serializes subscriber callbacks so consumers observe
	// sessions in publish order.
	pubMu sync.Mutex

	lastRole *lru.Cache[string, profile.Role]
	wg       sync.WaitGroup
}

// NewReconciler creates a reconciler publishing the signed-out session
func NewReconciler(store profile.Store, cfg Config, logger *observability.Logger, metrics *observability.Metrics) (*Reconciler, error) {
	cfg = cfg.withDefaults()

	cache, err := lru.New[string, profile.Role](cfg.RoleCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create role cache: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		store:      store,
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		baseCtx:    ctx,
		stop:       cancel,
		generation: make(map[string]uint64),
		cancels:    make(map[string]context.CancelFunc),
		current:    None(),
		subs:       make(map[int]func(Session)),
		lastRole:   cache,
	}, nil
}

// Subscribe registers a session consumer and immediately replays the
// current session. The returned function unsubscribes.
func (r *Reconciler) Subscribe(fn func(Session)) func() {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	current := r.current
	r.mu.Unlock()

	r.pubMu.Lock()
	fn(current)
	r.pubMu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

// Current returns the most recently published session
func (r *Reconciler) Current() Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// OnIdentityChanged is the sole entry point. A nil identity is the
// signed-out event: it cancels all in-flight work and publishes the
// signed-out session synchronously. A non-nil identity starts an
// asynchronous reconciliation for its email, superseding any in-flight
// reconciliation for the same email.
func (r *Reconciler) OnIdentityChanged(id *identity.Identity) {
	if id == nil {
		r.signOut()
		return
	}

	email := profile.NormalizeEmail(id.Email)
	if email == "" {
		r.logger.Warn("ignoring identity-changed event with empty email")
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if cancel, ok := r.cancels[email]; ok {
		cancel()
	}
	r.events++
	r.generation[email]++
	gen := r.generation[email]
	jobCtx, cancel := context.WithCancel(r.baseCtx)
	r.cancels[email] = cancel
	r.wg.Add(1)
	r.mu.Unlock()

	async.SafeGo(jobCtx, r.cfg.Deadline, "session reconcile", r.logger, func(ctx context.Context) error {
		defer r.wg.Done()
		return r.reconcile(ctx, id, email, gen)
	})
}

func (r *Reconciler) signOut() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	for email, cancel := range r.cancels {
		cancel()
		delete(r.cancels, email)
	}
	// bump every generation so a reconciliation that already passed its
	// context check can no longer publish over the signed-out session
	for email := range r.generation {
		r.generation[email]++
	}
	r.events++
	seq := r.events
	r.mu.Unlock()

	r.publish("", seq, None())
}

// OnProfileDeleted invalidates session state after a profile record is
// removed. The cached role for the email is evicted so a later degraded
// session cannot resurrect it; if the current session belongs to the
// deleted email, any in-flight reconciliation is cancelled and the
// signed-out session is published.
func (r *Reconciler) OnProfileDeleted(email string) {
	email = profile.NormalizeEmail(email)
	if email == "" {
		return
	}
	r.lastRole.Remove(email)

	r.mu.Lock()
	if r.closed || !r.current.SignedIn() || r.current.Email() != email {
		r.mu.Unlock()
		return
	}
	if cancel, ok := r.cancels[email]; ok {
		cancel()
		delete(r.cancels, email)
	}
	r.events++
	r.generation[email]++
	seq := r.events
	r.mu.Unlock()

	r.logger.WithField("email", email).Info("session invalidated after profile delete")
	r.publish("", seq, None())
}

// Close stops the reconciler. In-flight store calls are abandoned and no
// further sessions are published.
func (r *Reconciler) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.stop()
	r.wg.Wait()
}

// reconcile runs the fetch/provision/degrade algorithm for one event
func (r *Reconciler) reconcile(ctx context.Context, id *identity.Identity, email string, gen uint64) error {
	start := time.Now()
	log := r.logger.WithField("email", email)

	p, err := r.lookup(ctx, email)
	if err == nil {
		r.metrics.ObserveReconciliation("full", time.Since(start))
		r.publish(email, gen, New(id, p))
		return nil
	}

	if errors.Is(err, profile.ErrNotFound) {
		p, err = r.provision(ctx, id, email)
		if err == nil {
			r.metrics.ObserveReconciliation("full", time.Since(start))
			r.publish(email, gen, New(id, p))
			return nil
		}
	}

	if ctx.Err() != nil && errors.Is(context.Cause(ctx), context.Canceled) {
		// superseded or shut down; nothing is published for this event
		return nil
	}

	r.metrics.ObserveReconciliation("degraded", time.Since(start))
	role, _ := r.lastRole.Get(email)
	log.WithError(err).Warn("reconciliation degraded")
	r.publish(email, gen, Degraded(id, role, err))
	return err
}

// lookup fetches the profile, retrying not-found results to absorb
// read-after-write store lag. Any other failure aborts the retry loop.
func (r *Reconciler) lookup(ctx context.Context, email string) (*profile.Profile, error) {
	attempt := 0
	operation := func() (*profile.Profile, error) {
		if attempt > 0 {
			r.metrics.ReconcileRetriesTotal.Inc()
		}
		attempt++

		callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
		defer cancel()

		p, err := r.store.Fetch(callCtx, email)
		if err != nil {
			if errors.Is(err, profile.ErrNotFound) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return p, nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(r.cfg.RetryInterval),
			uint64(r.cfg.FetchAttempts-1),
		),
		ctx,
	)
	return backoff.RetryWithData(operation, policy)
}

// provision creates the first-sign-in profile. A conflict means a
// concurrent reconciliation won the race; the winner's record is
// re-fetched and used as-is.
func (r *Reconciler) provision(ctx context.Context, id *identity.Identity, email string) (*profile.Profile, error) {
	newProfile := &profile.Profile{
		Email:     email,
		Name:      id.DisplayName,
		AvatarURL: id.AvatarURL,
		Role:      profile.RoleUser,
		CreatedAt: time.Now().UTC(),
	}

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	created, err := r.store.Create(callCtx, newProfile)
	cancel()
	if err == nil {
		r.metrics.ProvisionedProfilesTotal.Inc()
		r.logger.WithField("email", email).Info("provisioned profile on first sign-in")
		return created, nil
	}
	if !errors.Is(err, profile.ErrConflict) {
		return nil, err
	}

	callCtx, cancel = context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()
	return r.store.Fetch(callCtx, email)
}

// publish delivers the session unless a newer event has superseded it.
// Email jobs check their per-email generation; the signed-out session
// passes an empty email with the event sequence captured at sign-out, so
// a sign-in admitted after the sign-out wins the race.
func (r *Reconciler) publish(email string, gen uint64, s Session) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if email == "" {
		if r.events != gen {
			r.mu.Unlock()
			r.logger.Debug("dropping superseded signed-out session")
			return
		}
	} else if r.generation[email] != gen {
		r.mu.Unlock()
		r.logger.WithField("email", email).Debug("dropping superseded session")
		return
	}
	r.current = s
	if s.Status == StatusFull {
		r.lastRole.Add(email, s.Role)
	}
	fns := make([]func(Session), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	r.pubMu.Lock()
	defer r.pubMu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}
