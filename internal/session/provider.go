// Package session is the identity provider boundary: account creation,
// credential verification, bearer tokens, and the per-client session context
// that tracks the live profile document.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"finscope/internal/core"
	"finscope/internal/store"
	"finscope/internal/watch"

	"golang.org/x/crypto/bcrypt"
)

// Provider owns accounts and sessions. The profile document is mirrored into
// the user store at registration so display screens never read the account
// record directly.
type Provider struct {
	users  store.UserStore
	tokens *TokenIssuer
	hub    *watch.Hub
	logger *slog.Logger
}

func NewProvider(users store.UserStore, tokens *TokenIssuer, hub *watch.Hub, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{users: users, tokens: tokens, hub: hub, logger: logger}
}

// Register creates the account and its mirrored profile document.
func (p *Provider) Register(ctx context.Context, reg core.Registration) (core.UserProfile, error) {
	if err := reg.Validate(); err != nil {
		return core.UserProfile{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("hash password: %w", err)
	}

	profile, err := p.users.CreateUser(ctx, core.UserProfile{
		Name:  strings.TrimSpace(reg.Name),
		Email: reg.Email,
		Age:   reg.Age,
	}, string(hash))
	if err != nil {
		return core.UserProfile{}, err
	}

	p.logger.InfoContext(ctx, "User registered", "user_id", profile.ID)
	return profile, nil
}

// Login verifies credentials and issues a bearer token. Unknown email and
// wrong password are indistinguishable to the caller.
func (p *Provider) Login(ctx context.Context, email, password string) (string, core.UserProfile, error) {
	profile, hash, err := p.users.GetUserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return "", core.UserProfile{}, core.ErrInvalidCredentials
	}
	if err != nil {
		return "", core.UserProfile{}, fmt.Errorf("look up account: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", core.UserProfile{}, core.ErrInvalidCredentials
	}

	token, err := p.tokens.Issue(Identity{ID: profile.ID, Email: profile.Email})
	if err != nil {
		return "", core.UserProfile{}, err
	}

	p.logger.InfoContext(ctx, "User logged in", "user_id", profile.ID)
	return token, profile, nil
}

// Verify resolves a bearer token to an identity.
func (p *Provider) Verify(token string) (Identity, error) {
	return p.tokens.Verify(token)
}

// UpdateProfile edits the mirrored display attributes. Email is the login
// credential and stays untouched.
func (p *Provider) UpdateProfile(ctx context.Context, id, name string, age int) error {
	if len(strings.TrimSpace(name)) < 2 {
		return core.ErrShortName
	}
	if age <= 0 {
		return core.ErrInvalidAge
	}
	if err := p.users.UpdateProfile(ctx, id, strings.TrimSpace(name), age); err != nil {
		return err
	}
	p.hub.Notify(ctx, watch.ProfileTopic(id))
	return nil
}

// Profile reads the mirrored profile document.
func (p *Provider) Profile(ctx context.Context, id string) (core.UserProfile, error) {
	return p.users.GetUserByID(ctx, id)
}
