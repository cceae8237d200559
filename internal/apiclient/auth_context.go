package apiclient

import (
	"sync"

	"github.com/samber/lo"

	"flashcards-backend/internal/models"
)

type AuthEvent string

const (
	EventSignedIn       AuthEvent = "signed_in"
	EventSignedOut      AuthEvent = "signed_out"
	EventTokenRefreshed AuthEvent = "token_refreshed"
)

// AuthState is the snapshot handed to listeners.
type AuthState struct {
	Event AuthEvent
	User  *models.User
	Token string
}

type listener struct {
	id int
	fn func(AuthState)
}

// AuthContext holds the signed-in user for one client session. Create one
// per session and Close it on logout.
type AuthContext struct {
	mu        sync.RWMutex
	user      *models.User
	tokens    models.AuthTokens
	listeners []listener
	nextID    int
	closed    bool
}

func NewAuthContext() *AuthContext {
	return &AuthContext{}
}

func (a *AuthContext) User() *models.User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.user
}

func (a *AuthContext) AccessToken() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tokens.AccessToken
}

func (a *AuthContext) RefreshToken() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tokens.RefreshToken
}

func (a *AuthContext) SignedIn() bool {
	return a.AccessToken() != ""
}

// Subscribe registers fn for every later state change. The returned func
// removes it; calling it more than once is harmless.
func (a *AuthContext) Subscribe(fn func(AuthState)) (unsubscribe func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return func() {}
	}

	a.nextID++
	id := a.nextID
	a.listeners = append(a.listeners, listener{id: id, fn: fn})

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.listeners = lo.Reject(a.listeners, func(l listener, _ int) bool { return l.id == id })
	}
}

// SignIn stores the user and tokens, e.g. after login or when restoring a
// saved session.
func (a *AuthContext) SignIn(user *models.User, tokens models.AuthTokens) {
	a.update(EventSignedIn, func() {
		a.user = user
		a.tokens = tokens
	})
}

func (a *AuthContext) refreshed(tokens models.AuthTokens) {
	a.update(EventTokenRefreshed, func() {
		a.tokens = tokens
	})
}

func (a *AuthContext) SignOut() {
	a.update(EventSignedOut, func() {
		a.user = nil
		a.tokens = models.AuthTokens{}
	})
}

// Close signs out and drops every listener. Later calls are no-ops.
func (a *AuthContext) Close() {
	a.SignOut()

	a.mu.Lock()
	a.closed = true
	a.listeners = nil
	a.mu.Unlock()
}

func (a *AuthContext) update(event AuthEvent, apply func()) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	apply()
	state := AuthState{Event: event, User: a.user, Token: a.tokens.AccessToken}
	fns := lo.Map(a.listeners, func(l listener, _ int) func(AuthState) { return l.fn })
	a.mu.Unlock()

	// Listeners run outside the lock so they may call back into a.
	for _, fn := range fns {
		fn(state)
	}
}
