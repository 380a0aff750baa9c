/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/


package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/toftewellness/wellness-api/pkg/metrics"
	"github.com/toftewellness/wellness-api/pkg/store"
	"github.com/toftewellness/wellness-api/pkg/validation"
)

const (
	DefaultTokenTTL          = 24 * time.Hour
	DefaultBcryptCost        = 12
	DefaultMinPasswordLength = 8

	lastLoginTimeout = 5 * time.Second
)

// Options configures an Authenticator.
type Options struct {
	JWTSecret         string
	SetupSecret       string
	TokenTTL          time.Duration
	BcryptCost        int
	MinPasswordLength int
	// Now replaces time.Now, mainly for tests.
	Now func() time.Time
}

// Profile is the public view of an admin returned after login.
type Profile struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// LoginResult is returned by a successful Authenticate.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	UserID    string
	User      Profile
}

// ProvisionRequest carries the fields of a first-admin setup call.
type ProvisionRequest struct {
	Email    string
	Password string
	Name     string
	SetupKey string
}

// Authenticator verifies admin credentials, issues and verifies access
// tokens, and provisions the first admin account.
type Authenticator struct {
	admins      store.AdminStore
	secret      []byte
	setupSecret []byte
	ttl         time.Duration
	cost        int
	minPassword int
	now         func() time.Time
	log         *zap.SugaredLogger

	// dummyHash is compared against when the email is unknown so both
	// failure paths cost one bcrypt comparison.
	dummyOnce sync.Once
	dummyHash []byte

	pending sync.WaitGroup
}

// New creates an Authenticator. A JWT secret is required.
func New(admins store.AdminStore, opts Options, log *zap.SugaredLogger) (*Authenticator, error) {
	if opts.JWTSecret == "" {
		return nil, errors.New("auth: JWT secret must not be empty")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	a := &Authenticator{
		admins:      admins,
		secret:      []byte(opts.JWTSecret),
		setupSecret: []byte(opts.SetupSecret),
		ttl:         opts.TokenTTL,
		cost:        opts.BcryptCost,
		minPassword: opts.MinPasswordLength,
		now:         opts.Now,
		log:         log.Named("auth"),
	}
	if a.ttl <= 0 {
		a.ttl = DefaultTokenTTL
	}
	if a.cost == 0 {
		a.cost = DefaultBcryptCost
	}
	if a.cost < bcrypt.MinCost || a.cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("auth: bcrypt cost %d out of range [%d, %d]", a.cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if a.minPassword <= 0 {
		a.minPassword = DefaultMinPasswordLength
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a, nil
}

// Authenticate checks email and password and issues an access token.
// An unknown email and a wrong password both yield ErrInvalidCredentials.
// Storage failures are returned wrapped and must be treated as server errors.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (*LoginResult, error) {
	email = validation.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	admin, err := a.admins.FindAdminByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		a.burnComparison(password)
		metrics.LoginAttempts.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("looking up admin: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			a.log.Warnw("Stored password hash could not be compared", "adminId", admin.ID, "error", err)
		}
		metrics.LoginAttempts.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidCredentials
	}

	token, expires, err := a.issueToken(admin.ID, admin.Email, admin.Role)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.LoginAttempts.WithLabelValues("success").Inc()

	a.recordLastLogin(ctx, admin.ID)

	return &LoginResult{
		Token:     token,
		ExpiresAt: expires,
		UserID:    admin.ID,
		User:      Profile{Email: admin.Email, Name: admin.Name, Role: admin.Role},
	}, nil
}

// recordLastLogin writes the login time in the background. Failures are
// logged and counted but never reach the caller.
func (a *Authenticator) recordLastLogin(ctx context.Context, id string) {
	at := a.now()
	bg := context.WithoutCancel(ctx)

	a.pending.Add(1)
	go func() {
		defer a.pending.Done()
		wctx, cancel := context.WithTimeout(bg, lastLoginTimeout)
		defer cancel()
		if err := a.admins.UpdateLastLogin(wctx, id, at); err != nil {
			metrics.LastLoginUpdateFailures.Inc()
			a.log.Warnw("Failed to record last login", "adminId", id, "error", err)
		}
	}()
}

// Wait blocks until all background last-login writes have finished.
func (a *Authenticator) Wait() {
	a.pending.Wait()
}

func (a *Authenticator) burnComparison(password string) {
	a.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), a.cost)
		if err == nil {
			a.dummyHash = h
		}
	})
	if a.dummyHash != nil {
		_ = bcrypt.CompareHashAndPassword(a.dummyHash, []byte(password))
	}
}

// Provision creates the first admin account. It requires the pre-shared
// setup key and refuses to create a second account for the same email.
func (a *Authenticator) Provision(ctx context.Context, req ProvisionRequest) (string, error) {
	if len(a.setupSecret) == 0 || subtle.ConstantTimeCompare([]byte(req.SetupKey), a.setupSecret) != 1 {
		metrics.ProvisionAttempts.WithLabelValues("unauthorized").Inc()
		return "", ErrSetupUnauthorized
	}

	email := validation.NormalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	if email == "" || req.Password == "" || name == "" {
		metrics.ProvisionAttempts.WithLabelValues("invalid").Inc()
		return "", ErrMissingFields
	}
	if utf8.RuneCountInString(req.Password) < a.minPassword {
		metrics.ProvisionAttempts.WithLabelValues("invalid").Inc()
		return "", ErrWeakPassword
	}

	_, err := a.admins.FindAdminByEmail(ctx, email)
	switch {
	case err == nil:
		metrics.ProvisionAttempts.WithLabelValues("exists").Inc()
		return "", ErrAlreadyProvisioned
	case !errors.Is(err, store.ErrNotFound):
		metrics.ProvisionAttempts.WithLabelValues("error").Inc()
		return "", fmt.Errorf("looking up admin: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), a.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		metrics.ProvisionAttempts.WithLabelValues("invalid").Inc()
		return "", ErrPasswordTooLong
	}
	if err != nil {
		metrics.ProvisionAttempts.WithLabelValues("error").Inc()
		return "", fmt.Errorf("hashing password: %w", err)
	}

	id, err := a.admins.InsertAdmin(ctx, &store.Admin{
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Role:         RoleAdmin,
		CreatedAt:    a.now(),
	})
	if errors.Is(err, store.ErrDuplicate) {
		// lost a race with a concurrent provision
		metrics.ProvisionAttempts.WithLabelValues("exists").Inc()
		return "", ErrAlreadyProvisioned
	}
	if err != nil {
		metrics.ProvisionAttempts.WithLabelValues("error").Inc()
		return "", fmt.Errorf("storing admin: %w", err)
	}

	metrics.ProvisionAttempts.WithLabelValues("created").Inc()
	a.log.Infow("Provisioned admin account", "adminId", id)
	return id, nil
}

// TokenTTL returns the lifetime of issued tokens.
func (a *Authenticator) TokenTTL() time.Duration {
	return a.ttl
}
