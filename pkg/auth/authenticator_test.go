package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/toftewellness/wellness-api/pkg/store"
)

const (
	testSecret      = "test-jwt-secret"
	testSetupSecret = "test-setup-secret"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
}

func newTestAuthenticator(t *testing.T, admins store.AdminStore, clock *testClock, cost int) *Authenticator {
	t.Helper()
	a, err := New(admins, Options{
		JWTSecret:   testSecret,
		SetupSecret: testSetupSecret,
		BcryptCost:  cost,
		Now:         clock.Now,
	}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	t.Cleanup(a.Wait)
	return a
}

func provisionAdmin(t *testing.T, a *Authenticator, email, password string) string {
	t.Helper()
	id, err := a.Provision(context.Background(), ProvisionRequest{
		Email: email, Password: password, Name: "Admin", SetupKey: testSetupSecret,
	})
	require.NoError(t, err)
	return id
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(store.NewMemory(), Options{}, nil)
	assert.Error(t, err, "empty secret")

	_, err = New(store.NewMemory(), Options{JWTSecret: "s", BcryptCost: 99}, nil)
	assert.Error(t, err, "cost out of range")

	a, err := New(store.NewMemory(), Options{JWTSecret: "s"}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenTTL, a.TokenTTL())
	assert.Equal(t, DefaultBcryptCost, a.cost)
	assert.Equal(t, DefaultMinPasswordLength, a.minPassword)
}

func TestProvisionAndAuthenticateScenario(t *testing.T) {
	clock := newTestClock()
	admins := store.NewMemory()
	a := newTestAuthenticator(t, admins, clock, 12)

	id := provisionAdmin(t, a, "admin@example.com", "CorrectHorse123")

	stored, err := admins.FindAdminByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(stored.PasswordHash))
	require.NoError(t, err)
	assert.Equal(t, 12, cost)
	assert.Equal(t, RoleAdmin, stored.Role)
	assert.Nil(t, stored.LastLogin)
	assert.Equal(t, clock.Now(), stored.CreatedAt)

	res, err := a.Authenticate(context.Background(), "ADMIN@example.com", "CorrectHorse123")
	require.NoError(t, err)
	assert.WithinDuration(t, clock.Now().Add(24*time.Hour), res.ExpiresAt, 0)
	assert.Equal(t, Profile{Email: "admin@example.com", Name: "Admin", Role: RoleAdmin}, res.User)
	assert.Equal(t, id, res.UserID)

	claims, err := a.Verify("Bearer " + res.Token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, id, claims.Subject)
	assert.Equal(t, "admin@example.com", claims.Email)
	assert.WithinDuration(t, clock.Now().Add(24*time.Hour), claims.ExpiresAt.Time, 0)
	assert.NotEmpty(t, claims.ID)

	a.Wait()
	stored, err = admins.FindAdminByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored.LastLogin)
	assert.Equal(t, clock.Now(), *stored.LastLogin)
}

func TestAuthenticateInvalidCredentialsAreIndistinguishable(t *testing.T) {
	a := newTestAuthenticator(t, store.NewMemory(), newTestClock(), bcrypt.MinCost)
	provisionAdmin(t, a, "admin@example.com", "CorrectHorse123")

	_, errUnknown := a.Authenticate(context.Background(), "nobody@example.com", "CorrectHorse123")
	_, errWrong := a.Authenticate(context.Background(), "admin@example.com", "wrong-password")

	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
}

func TestAuthenticateMissingCredentials(t *testing.T) {
	a := newTestAuthenticator(t, store.NewMemory(), newTestClock(), bcrypt.MinCost)

	for _, tc := range []struct{ email, password string }{
		{"", "x"},
		{"   ", "x"},
		{"a@example.com", ""},
	} {
		_, err := a.Authenticate(context.Background(), tc.email, tc.password)
		assert.ErrorIs(t, err, ErrMissingCredentials)
	}
}

type failingAdmins struct {
	store.AdminStore
	findErr   error
	updateErr error
	updated   chan struct{}
}

func (f *failingAdmins) FindAdminByEmail(ctx context.Context, email string) (*store.Admin, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.AdminStore.FindAdminByEmail(ctx, email)
}

func (f *failingAdmins) UpdateLastLogin(context.Context, string, time.Time) error {
	if f.updated != nil {
		close(f.updated)
	}
	return f.updateErr
}

func TestAuthenticateStorageErrorIsNotACredentialError(t *testing.T) {
	boom := errors.New("connection reset")
	a := newTestAuthenticator(t, &failingAdmins{AdminStore: store.NewMemory(), findErr: boom}, newTestClock(), bcrypt.MinCost)

	_, err := a.Authenticate(context.Background(), "admin@example.com", "CorrectHorse123")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateSucceedsWhenLastLoginWriteFails(t *testing.T) {
	mem := store.NewMemory()
	fa := &failingAdmins{AdminStore: mem, updateErr: errors.New("write failed"), updated: make(chan struct{})}
	a := newTestAuthenticator(t, fa, newTestClock(), bcrypt.MinCost)
	provisionAdmin(t, a, "admin@example.com", "CorrectHorse123")

	res, err := a.Authenticate(context.Background(), "admin@example.com", "CorrectHorse123")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	select {
	case <-fa.updated:
	case <-time.After(5 * time.Second):
		t.Fatal("last-login write was never attempted")
	}
	a.Wait()
}

func TestAuthenticateLastLoginSurvivesRequestCancellation(t *testing.T) {
	mem := store.NewMemory()
	a := newTestAuthenticator(t, mem, newTestClock(), bcrypt.MinCost)
	provisionAdmin(t, a, "admin@example.com", "CorrectHorse123")

	ctx, cancel := context.WithCancel(context.Background())
	_, err := a.Authenticate(ctx, "admin@example.com", "CorrectHorse123")
	require.NoError(t, err)
	cancel()
	a.Wait()

	admin, err := mem.FindAdminByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)
	assert.NotNil(t, admin.LastLogin)
}

func TestProvision(t *testing.T) {
	valid := ProvisionRequest{Email: "owner@example.com", Password: "longenough", Name: "Owner", SetupKey: testSetupSecret}

	tests := []struct {
		name   string
		mutate func(*ProvisionRequest)
		err    error
	}{
		{name: "wrong setup key", mutate: func(r *ProvisionRequest) { r.SetupKey = "nope" }, err: ErrSetupUnauthorized},
		{name: "empty setup key", mutate: func(r *ProvisionRequest) { r.SetupKey = "" }, err: ErrSetupUnauthorized},
		{name: "setup key checked before fields", mutate: func(r *ProvisionRequest) { r.SetupKey = "nope"; r.Email = "" }, err: ErrSetupUnauthorized},
		{name: "missing email", mutate: func(r *ProvisionRequest) { r.Email = "" }, err: ErrMissingFields},
		{name: "missing password", mutate: func(r *ProvisionRequest) { r.Password = "" }, err: ErrMissingFields},
		{name: "missing name", mutate: func(r *ProvisionRequest) { r.Name = "  " }, err: ErrMissingFields},
		{name: "short password", mutate: func(r *ProvisionRequest) { r.Password = "1234567" }, err: ErrWeakPassword},
		{name: "password over bcrypt limit", mutate: func(r *ProvisionRequest) { r.Password = strings.Repeat("x", 73) }, err: ErrPasswordTooLong},
		{name: "valid", mutate: func(*ProvisionRequest) {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAuthenticator(t, store.NewMemory(), newTestClock(), bcrypt.MinCost)
			req := valid
			tt.mutate(&req)

			id, err := a.Provision(context.Background(), req)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Empty(t, id)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, id)
		})
	}
}

func TestProvisionWithoutConfiguredSecretAlwaysRejects(t *testing.T) {
	a, err := New(store.NewMemory(), Options{JWTSecret: testSecret, BcryptCost: bcrypt.MinCost}, nil)
	require.NoError(t, err)

	_, err = a.Provision(context.Background(), ProvisionRequest{Email: "a@example.com", Password: "longenough", Name: "A"})
	assert.ErrorIs(t, err, ErrSetupUnauthorized)
}

func TestProvisionTwiceYieldsAlreadyProvisioned(t *testing.T) {
	mem := store.NewMemory()
	a := newTestAuthenticator(t, mem, newTestClock(), bcrypt.MinCost)
	provisionAdmin(t, a, "admin@example.com", "CorrectHorse123")

	_, err := a.Provision(context.Background(), ProvisionRequest{
		Email: " Admin@Example.com ", Password: "AnotherPass1", Name: "Other", SetupKey: testSetupSecret,
	})
	assert.ErrorIs(t, err, ErrAlreadyProvisioned)

	recent, err := mem.FindAdminByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Admin", recent.Name, "no duplicate or overwrite")
}

type racingAdmins struct {
	store.AdminStore
}

func (racingAdmins) FindAdminByEmail(context.Context, string) (*store.Admin, error) {
	return nil, store.ErrNotFound
}

func (racingAdmins) InsertAdmin(context.Context, *store.Admin) (string, error) {
	return "", store.ErrDuplicate
}

func TestProvisionDuplicateInsertMapsToAlreadyProvisioned(t *testing.T) {
	a := newTestAuthenticator(t, racingAdmins{}, newTestClock(), bcrypt.MinCost)
	_, err := a.Provision(context.Background(), ProvisionRequest{
		Email: "a@example.com", Password: "longenough", Name: "A", SetupKey: testSetupSecret,
	})
	assert.ErrorIs(t, err, ErrAlreadyProvisioned)
}

func signClaims(t *testing.T, secret string, method jwt.SigningMethod, claims Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func TestVerify(t *testing.T) {
	clock := newTestClock()
	a := newTestAuthenticator(t, store.NewMemory(), clock, bcrypt.MinCost)

	claimsFor := func(role string, expires time.Time) Claims {
		return Claims{
			UserID: "u1", Email: "admin@example.com", Role: role,
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(expires)},
		}
	}
	valid := signClaims(t, testSecret, jwt.SigningMethodHS256, claimsFor(RoleAdmin, clock.Now().Add(time.Hour)))

	tests := []struct {
		name   string
		header string
		err    error
	}{
		{name: "valid", header: "Bearer " + valid},
		{name: "lowercase scheme", header: "bearer " + valid},
		{name: "missing header", header: "", err: ErrNoToken},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", err: ErrNoToken},
		{name: "empty bearer", header: "Bearer   ", err: ErrNoToken},
		{name: "garbage", header: "Bearer not.a.jwt", err: ErrInvalidToken},
		{name: "different secret", header: "Bearer " + signClaims(t, "other-secret", jwt.SigningMethodHS256, claimsFor(RoleAdmin, clock.Now().Add(time.Hour))), err: ErrInvalidToken},
		{name: "expired", header: "Bearer " + signClaims(t, testSecret, jwt.SigningMethodHS256, claimsFor(RoleAdmin, clock.Now().Add(-time.Second))), err: ErrInvalidToken},
		{name: "no expiry", header: "Bearer " + signClaims(t, testSecret, jwt.SigningMethodHS256, Claims{UserID: "u1", Role: RoleAdmin}), err: ErrInvalidToken},
		{name: "wrong algorithm", header: "Bearer " + signClaims(t, testSecret, jwt.SigningMethodHS512, claimsFor(RoleAdmin, clock.Now().Add(time.Hour))), err: ErrInvalidToken},
		{name: "guest role", header: "Bearer " + signClaims(t, testSecret, jwt.SigningMethodHS256, claimsFor("guest", clock.Now().Add(time.Hour))), err: ErrAccessDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := a.Verify(tt.header)
			if errors.Is(tt.err, ErrAccessDenied) {
				assert.ErrorIs(t, err, ErrAccessDenied)
				require.NotNil(t, claims)
				assert.Equal(t, "guest", claims.Role)
				return
			}
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u1", claims.UserID)
		})
	}
}

func TestVerifyExpiryFollowsClock(t *testing.T) {
	clock := newTestClock()
	a := newTestAuthenticator(t, store.NewMemory(), clock, bcrypt.MinCost)
	provisionAdmin(t, a, "admin@example.com", "CorrectHorse123")

	res, err := a.Authenticate(context.Background(), "admin@example.com", "CorrectHorse123")
	require.NoError(t, err)

	clock.Advance(24*time.Hour - time.Second)
	_, err = a.Verify("Bearer " + res.Token)
	assert.NoError(t, err)

	clock.Advance(time.Second)
	_, err = a.Verify("Bearer " + res.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestBearerToken(t *testing.T) {
	tok, err := BearerToken("Bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = BearerToken("Bearer")
	assert.ErrorIs(t, err, ErrNoToken)
	_, err = BearerToken("Token abc")
	assert.ErrorIs(t, err, ErrNoToken)
}
