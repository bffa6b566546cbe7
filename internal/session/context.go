package session

import (
	"context"
	"sync"

	"finscope/internal/core"
	"finscope/internal/watch"
)

// SessionContext is the explicitly constructed per-client session state:
// the resolved identity plus a live view of its profile document. Loading is
// true until the first profile resolution completes and permanently false
// afterwards; a nil profile after that is the normal absent/signed-out state,
// not an error. Close releases the profile subscription and must run on every
// exit path; switching identity means Close first, then a fresh context.
type SessionContext struct {
	identity Identity

	mu      sync.Mutex
	profile *core.UserProfile
	loading bool

	sub  *watch.Subscription
	stop chan struct{}
	once sync.Once
}

// NewSessionContext subscribes to the identity's profile topic and starts
// tracking it. onChange, when non-nil, runs after every applied profile
// snapshot, including the first.
func NewSessionContext(ctx context.Context, identity Identity, hub *watch.Hub, onChange func(*core.UserProfile)) (*SessionContext, error) {
	sub, err := hub.Subscribe(ctx, watch.ProfileTopic(identity.ID))
	if err != nil {
		return nil, err
	}

	sc := &SessionContext{
		identity: identity,
		loading:  true,
		sub:      sub,
		stop:     make(chan struct{}),
	}

	go func() {
		for {
			select {
			case snap, ok := <-sub.Snapshots():
				if !ok {
					return
				}
				sc.mu.Lock()
				sc.profile = snap.Profile
				sc.loading = false
				sc.mu.Unlock()
				if onChange != nil {
					onChange(snap.Profile)
				}
			case <-sc.stop:
				return
			}
		}
	}()

	return sc, nil
}

func (sc *SessionContext) Identity() Identity { return sc.identity }

// Loading reports whether the first profile resolution is still pending.
func (sc *SessionContext) Loading() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.loading
}

// Profile returns the latest profile snapshot, nil when absent.
func (sc *SessionContext) Profile() *core.UserProfile {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.profile
}

// Close releases the profile subscription. Idempotent.
func (sc *SessionContext) Close() {
	sc.once.Do(func() {
		close(sc.stop)
		sc.sub.Unsubscribe()
	})
}
