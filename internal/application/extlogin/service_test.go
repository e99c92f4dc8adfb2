package extlogin

import (
	"context"
	"testing"

	"github.com/go-auth-core/internal/domain"
	"github.com/go-auth-core/internal/infrastructure/google"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockLoginStore struct{ mock.Mock }

func (m *mockLoginStore) Put(ctx context.Context, l *domain.ExternalLogin) error {
	return m.Called(ctx, l).Error(0)
}
func (m *mockLoginStore) Get(ctx context.Context, accountID, loginKey string) (*domain.ExternalLogin, error) {
	args := m.Called(ctx, accountID, loginKey)
	if l, _ := args.Get(0).(*domain.ExternalLogin); l != nil {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockLoginStore) ListByAccount(ctx context.Context, accountID string) ([]domain.ExternalLogin, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).([]domain.ExternalLogin), args.Error(1)
}
func (m *mockLoginStore) GetByLoginKey(ctx context.Context, loginKey string) (*domain.ExternalLogin, error) {
	args := m.Called(ctx, loginKey)
	if l, _ := args.Get(0).(*domain.ExternalLogin); l != nil {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockLoginStore) DeleteByProvider(ctx context.Context, accountID, provider string) error {
	return m.Called(ctx, accountID, provider).Error(0)
}

type mockAccountStore struct{ mock.Mock }

func (m *mockAccountStore) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	args := m.Called(ctx, accountID)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAccountStore) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	args := m.Called(ctx, email)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAccountStore) Put(ctx context.Context, a *domain.Account) error {
	return m.Called(ctx, a).Error(0)
}

type mockVerifier struct{ mock.Mock }

func (m *mockVerifier) Verify(ctx context.Context, token string) (*google.Payload, error) {
	args := m.Called(ctx, token)
	if p, _ := args.Get(0).(*google.Payload); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSessionCreator struct{ mock.Mock }

func (m *mockSessionCreator) Create(ctx context.Context, accountID, ip, userAgent string) (*domain.Session, error) {
	args := m.Called(ctx, accountID, ip, userAgent)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSigner struct{ mock.Mock }

func (m *mockSigner) Sign(accountID, role, sessionID string) (string, error) {
	args := m.Called(accountID, role, sessionID)
	return args.String(0), args.Error(1)
}

type deps struct {
	logins   *mockLoginStore
	accounts *mockAccountStore
	verifier *mockVerifier
	sessions *mockSessionCreator
	signer   *mockSigner
}

func newDeps() deps {
	return deps{
		logins:   &mockLoginStore{},
		accounts: &mockAccountStore{},
		verifier: &mockVerifier{},
		sessions: &mockSessionCreator{},
		signer:   &mockSigner{},
	}
}

func (d deps) svc(allowUnlinkLast bool) Service {
	return NewService(ServiceDeps{
		LoginRepo:                 d.logins,
		AccountRepo:               d.accounts,
		Verifier:                  d.verifier,
		Sessions:                  d.sessions,
		Signer:                    d.signer,
		AllowUnlinkLastCredential: allowUnlinkLast,
	})
}

// --- Link ---

func TestLink_NewIdentity(t *testing.T) {
	d := newDeps()
	key := domain.ExternalLoginKey("google", "sub-1")
	d.logins.On("Get", mock.Anything, "a1", key).Return(nil, domain.ErrNotFound)
	d.logins.On("GetByLoginKey", mock.Anything, key).Return(nil, domain.ErrNotFound)
	d.logins.On("Put", mock.Anything, mock.MatchedBy(func(l *domain.ExternalLogin) bool {
		return l.AccountID == "a1" && l.LoginKey == key && l.Provider == "google"
	})).Return(nil)

	err := d.svc(true).Link(context.Background(), "a1", "google", "sub-1", "Alice")
	require.NoError(t, err)
	d.logins.AssertExpectations(t)
}

func TestLink_AlreadyLinkedIsIdempotent(t *testing.T) {
	d := newDeps()
	key := domain.ExternalLoginKey("google", "sub-1")
	d.logins.On("Get", mock.Anything, "a1", key).
		Return(&domain.ExternalLogin{AccountID: "a1", LoginKey: key}, nil)

	err := d.svc(true).Link(context.Background(), "a1", "google", "sub-1", "Alice")
	require.NoError(t, err)
	d.logins.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestLink_IdentityOwnedElsewhere(t *testing.T) {
	d := newDeps()
	key := domain.ExternalLoginKey("google", "sub-1")
	d.logins.On("Get", mock.Anything, "a1", key).Return(nil, domain.ErrNotFound)
	d.logins.On("GetByLoginKey", mock.Anything, key).
		Return(&domain.ExternalLogin{AccountID: "someone-else", LoginKey: key}, nil)

	err := d.svc(true).Link(context.Background(), "a1", "google", "sub-1", "Alice")
	assert.ErrorIs(t, err, domain.ErrConflict)
	d.logins.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestLink_EmptyProvider(t *testing.T) {
	d := newDeps()
	err := d.svc(true).Link(context.Background(), "a1", "", "sub-1", "Alice")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

// --- Unlink ---

func TestUnlink_RemovesProviderLogin(t *testing.T) {
	d := newDeps()
	d.logins.On("DeleteByProvider", mock.Anything, "a1", "google").Return(nil)

	err := d.svc(true).Unlink(context.Background(), "a1", "google")
	require.NoError(t, err)
	d.logins.AssertExpectations(t)
}

func TestUnlink_NothingToRemove(t *testing.T) {
	d := newDeps()
	d.logins.On("DeleteByProvider", mock.Anything, "a1", "google").Return(domain.ErrNotFound)

	err := d.svc(true).Unlink(context.Background(), "a1", "google")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUnlink_RefusesToStrandPasswordlessAccount(t *testing.T) {
	d := newDeps()
	d.accounts.On("Get", mock.Anything, "a1").Return(&domain.Account{AccountID: "a1"}, nil)
	d.logins.On("ListByAccount", mock.Anything, "a1").
		Return([]domain.ExternalLogin{{AccountID: "a1", Provider: "google"}}, nil)

	err := d.svc(false).Unlink(context.Background(), "a1", "google")
	assert.ErrorIs(t, err, domain.ErrConflict)
	d.logins.AssertNotCalled(t, "DeleteByProvider", mock.Anything, mock.Anything, mock.Anything)
}

func TestUnlink_PasswordHolderMayDropLastLogin(t *testing.T) {
	d := newDeps()
	hash := "$2a$04$notarealhash"
	d.accounts.On("Get", mock.Anything, "a1").
		Return(&domain.Account{AccountID: "a1", PasswordHash: &hash}, nil)
	d.logins.On("DeleteByProvider", mock.Anything, "a1", "google").Return(nil)

	err := d.svc(false).Unlink(context.Background(), "a1", "google")
	require.NoError(t, err)
	d.logins.AssertExpectations(t)
}

// --- LoginWithGoogle ---

func googlePayload() *google.Payload {
	return &google.Payload{
		Sub:           "sub-1",
		Email:         "alice@example.com",
		EmailVerified: true,
		FirstName:     "Alice",
		LastName:      "Smith",
	}
}

func TestLoginWithGoogle_ExistingLink(t *testing.T) {
	d := newDeps()
	key := domain.ExternalLoginKey("google", "sub-1")
	d.verifier.On("Verify", mock.Anything, "id-token").Return(googlePayload(), nil)
	d.logins.On("GetByLoginKey", mock.Anything, key).
		Return(&domain.ExternalLogin{AccountID: "a1", LoginKey: key}, nil)
	d.accounts.On("Get", mock.Anything, "a1").
		Return(&domain.Account{AccountID: "a1", Status: domain.StatusActive}, nil)
	d.logins.On("Get", mock.Anything, "a1", key).
		Return(&domain.ExternalLogin{AccountID: "a1", LoginKey: key}, nil)
	d.sessions.On("Create", mock.Anything, "a1", "1.2.3.4", "tests").
		Return(&domain.Session{SessionID: "s1", AccountID: "a1", RefreshToken: "refresh"}, nil)
	d.signer.On("Sign", "a1", "user", "s1").Return("bearer", nil)

	result, err := d.svc(true).LoginWithGoogle(context.Background(), "id-token", "1.2.3.4", "tests")
	require.NoError(t, err)
	assert.Equal(t, "bearer", result.Bearer)
	assert.Equal(t, "refresh", result.RefreshToken)
	assert.Equal(t, "a1", result.Account.AccountID)
	d.accounts.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestLoginWithGoogle_MatchesVerifiedEmail(t *testing.T) {
	d := newDeps()
	key := domain.ExternalLoginKey("google", "sub-1")
	d.verifier.On("Verify", mock.Anything, "id-token").Return(googlePayload(), nil)
	d.logins.On("GetByLoginKey", mock.Anything, key).Return(nil, domain.ErrNotFound)
	d.accounts.On("GetByEmail", mock.Anything, "alice@example.com").
		Return(&domain.Account{AccountID: "a1", Email: "alice@example.com", Status: domain.StatusActive}, nil)
	// The resolved account gets the identity linked.
	d.logins.On("Get", mock.Anything, "a1", key).Return(nil, domain.ErrNotFound)
	d.logins.On("Put", mock.Anything, mock.AnythingOfType("*domain.ExternalLogin")).Return(nil)
	d.sessions.On("Create", mock.Anything, "a1", mock.Anything, mock.Anything).
		Return(&domain.Session{SessionID: "s1", AccountID: "a1", RefreshToken: "refresh"}, nil)
	d.signer.On("Sign", "a1", "user", "s1").Return("bearer", nil)

	result, err := d.svc(true).LoginWithGoogle(context.Background(), "id-token", "", "")
	require.NoError(t, err)
	assert.Equal(t, "a1", result.Account.AccountID)
	d.logins.AssertCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestLoginWithGoogle_ProvisionsPasswordlessAccount(t *testing.T) {
	d := newDeps()
	key := domain.ExternalLoginKey("google", "sub-1")
	d.verifier.On("Verify", mock.Anything, "id-token").Return(googlePayload(), nil)
	d.logins.On("GetByLoginKey", mock.Anything, key).Return(nil, domain.ErrNotFound)
	d.accounts.On("GetByEmail", mock.Anything, "alice@example.com").Return(nil, domain.ErrNotFound)

	var created *domain.Account
	d.accounts.On("Put", mock.Anything, mock.AnythingOfType("*domain.Account")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*domain.Account)
		}).Return(nil)
	d.logins.On("Get", mock.Anything, mock.Anything, key).Return(nil, domain.ErrNotFound)
	d.logins.On("Put", mock.Anything, mock.Anything).Return(nil)
	d.sessions.On("Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.Session{SessionID: "s1", RefreshToken: "refresh"}, nil)
	d.signer.On("Sign", mock.Anything, "user", "s1").Return("bearer", nil)

	result, err := d.svc(true).LoginWithGoogle(context.Background(), "id-token", "", "")
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Nil(t, created.PasswordHash)
	assert.True(t, created.EmailVerified)
	assert.Equal(t, domain.StatusActive, created.Status)
	assert.Equal(t, created.AccountID, result.Account.AccountID)
}

func TestLoginWithGoogle_UnverifiedEmailStaysPending(t *testing.T) {
	d := newDeps()
	p := googlePayload()
	p.EmailVerified = false
	key := domain.ExternalLoginKey("google", "sub-1")
	d.verifier.On("Verify", mock.Anything, "id-token").Return(p, nil)
	d.logins.On("GetByLoginKey", mock.Anything, key).Return(nil, domain.ErrNotFound)

	var created *domain.Account
	d.accounts.On("Put", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*domain.Account)
		}).Return(nil)

	_, err := d.svc(true).LoginWithGoogle(context.Background(), "id-token", "", "")
	// A PendingEmail account cannot pass the sign-in guard yet.
	var verif *domain.RequiresVerificationError
	assert.ErrorAs(t, err, &verif)
	require.NotNil(t, created)
	assert.Equal(t, domain.StatusPendingEmail, created.Status)
	// An unverified email must not match an existing account.
	d.accounts.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
}

func TestLoginWithGoogle_SuspendedAccountRejected(t *testing.T) {
	d := newDeps()
	key := domain.ExternalLoginKey("google", "sub-1")
	d.verifier.On("Verify", mock.Anything, "id-token").Return(googlePayload(), nil)
	d.logins.On("GetByLoginKey", mock.Anything, key).
		Return(&domain.ExternalLogin{AccountID: "a1", LoginKey: key}, nil)
	d.accounts.On("Get", mock.Anything, "a1").
		Return(&domain.Account{AccountID: "a1", Status: domain.StatusSuspended}, nil)

	_, err := d.svc(true).LoginWithGoogle(context.Background(), "id-token", "", "")
	assert.ErrorIs(t, err, domain.ErrAccountBanned)
	d.sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLoginWithGoogle_BadToken(t *testing.T) {
	d := newDeps()
	d.verifier.On("Verify", mock.Anything, "garbage").Return(nil, domain.ErrUnauthorized)

	_, err := d.svc(true).LoginWithGoogle(context.Background(), "garbage", "", "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
