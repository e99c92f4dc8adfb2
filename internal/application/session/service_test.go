package session

import (
	"context"
	"testing"
	"time"

	"github.com/go-auth-core/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

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
func (m *mockAccountStore) Update(ctx context.Context, accountID string, updates map[string]interface{}) error {
	return m.Called(ctx, accountID, updates).Error(0)
}

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) Put(ctx context.Context, s *domain.Session) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockSessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSessionStore) ListByAccount(ctx context.Context, accountID string) ([]domain.Session, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).([]domain.Session), args.Error(1)
}
func (m *mockSessionStore) Update(ctx context.Context, sessionID string, updates map[string]interface{}) error {
	return m.Called(ctx, sessionID, updates).Error(0)
}
func (m *mockSessionStore) Delete(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}
func (m *mockSessionStore) DeleteExpired(ctx context.Context, accountID string, now time.Time) error {
	return m.Called(ctx, accountID, now).Error(0)
}
func (m *mockSessionStore) GetByRefreshToken(ctx context.Context, token string) (*domain.Session, error) {
	args := m.Called(ctx, token)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSessionStore) RotateRefreshToken(ctx context.Context, sessionID, newToken string, newExpiry time.Time) error {
	return m.Called(ctx, sessionID, newToken, newExpiry).Error(0)
}

type mockBlacklist struct{ mock.Mock }

func (m *mockBlacklist) BlacklistSession(ctx context.Context, sessionID string, ttl time.Duration) error {
	return m.Called(ctx, sessionID, ttl).Error(0)
}

type mockSigner struct{ mock.Mock }

func (m *mockSigner) Sign(accountID, role, sessionID string) (string, error) {
	args := m.Called(accountID, role, sessionID)
	return args.String(0), args.Error(1)
}

// --- helpers ---

const blacklistTTL = 65 * time.Minute

func newSvc(as *mockAccountStore, ss *mockSessionStore, bl *mockBlacklist, sg *mockSigner) Service {
	return NewService(ServiceDeps{
		AccountRepo:     as,
		SessionRepo:     ss,
		Blacklist:       bl,
		Signer:          sg,
		SessionExpiry:   7 * 24 * time.Hour,
		BlacklistTTL:    blacklistTTL,
		MaxFailedLogins: 5,
		LockoutDuration: 15 * time.Minute,
	})
}

func activeAccount(t *testing.T, password string) *domain.Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	hashStr := string(hash)
	return &domain.Account{
		AccountID:    "a1",
		Email:        "alice@example.com",
		PasswordHash: &hashStr,
		Status:       domain.StatusActive,
	}
}

func loginReq() LoginRequest {
	return LoginRequest{Email: "alice@example.com", Password: "s3cret-pass"}
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	as, ss, bl, sg := &mockAccountStore{}, &mockSessionStore{}, &mockBlacklist{}, &mockSigner{}
	as.On("GetByEmail", mock.Anything, "alice@example.com").Return(activeAccount(t, "s3cret-pass"), nil)
	ss.On("Put", mock.Anything, mock.AnythingOfType("*domain.Session")).Return(nil)
	sg.On("Sign", "a1", "user", mock.Anything).Return("bearer-token", nil)

	result, err := newSvc(as, ss, bl, sg).Login(context.Background(), loginReq(), "1.2.3.4", "tests")
	require.NoError(t, err)
	assert.Equal(t, "bearer-token", result.Bearer)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, "a1", result.Session.AccountID)
	assert.Equal(t, "1.2.3.4", result.Session.IPAddress)
}

func TestLogin_UnknownEmail(t *testing.T) {
	as, ss, bl, sg := &mockAccountStore{}, &mockSessionStore{}, &mockBlacklist{}, &mockSigner{}
	as.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)

	_, err := newSvc(as, ss, bl, sg).Login(context.Background(), loginReq(), "", "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogin_WrongPasswordIncrementsCounter(t *testing.T) {
	as, ss, bl, sg := &mockAccountStore{}, &mockSessionStore{}, &mockBlacklist{}, &mockSigner{}
	a := activeAccount(t, "s3cret-pass")
	a.AccessFailedCount = 2
	as.On("GetByEmail", mock.Anything, mock.Anything).Return(a, nil)
	as.On("Update", mock.Anything, "a1", map[string]interface{}{"access_failed_count": 3}).Return(nil)

	req := loginReq()
	req.Password = "wrong"
	_, err := newSvc(as, ss, bl, sg).Login(context.Background(), req, "", "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	as.AssertExpectations(t)
}

func TestLogin_FifthFailureStartsLockout(t *testing.T) {
	as, ss, bl, sg := &mockAccountStore{}, &mockSessionStore{}, &mockBlacklist{}, &mockSigner{}
	a := activeAccount(t, "s3cret-pass")
	a.AccessFailedCount = 4
	as.On("GetByEmail", mock.Anything, mock.Anything).Return(a, nil)

	var captured map[string]interface{}
	as.On("Update", mock.Anything, "a1", mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).(map[string]interface{})
		}).Return(nil)

	req := loginReq()
	req.Password = "wrong"
	_, err := newSvc(as, ss, bl, sg).Login(context.Background(), req, "", "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	require.NotNil(t, captured)
	assert.Equal(t, 0, captured["access_failed_count"])
	end, ok := captured["lockout_end"].(time.Time)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), end, time.Minute)
}

// A locked account must be reported as locked before the password is even
// checked, so the caller cannot use the lockout response as a password oracle.
func TestLogin_LockedAccount_BeforeCredentialCheck(t *testing.T) {
	as, ss, bl, sg := &mockAccountStore{}, &mockSessionStore{}, &mockBlacklist{}, &mockSigner{}
	a := activeAccount(t, "s3cret-pass")
	end := time.Now().Add(10 * time.Minute)
	a.LockoutEnd = &end
	as.On("GetByEmail", mock.Anything, mock.Anything).Return(a, nil)

	req := loginReq()
	req.Password = "wrong"
	_, err := newSvc(as, ss, bl, sg).Login(context.Background(), req, "", "")

	var locked *domain.AccountLockedError
	assert.ErrorAs(t, err, &locked)
	as.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogin_SuspendedAccount(t *testing.T) {
	as, ss, bl, sg := &mockAccountStore{}, &mockSessionStore{}, &mockBlacklist{}, &mockSigner{}
	a := activeAccount(t, "s3cret-pass")
	a.Status = domain.StatusSuspended
	as.On("GetByEmail", mock.Anything, mock.Anything).Return(a, nil)

	_, err := newSvc(as, ss, bl, sg).Login(context.Background(), loginReq(), "", "")
	assert.ErrorIs(t, err, domain.ErrAccountBanned)
}

func TestLogin_SuccessResetsCounters(t *testing.T) {
	as, ss, bl, sg := &mockAccountStore{}, &mockSessionStore{}, &mockBlacklist{}, &mockSigner{}
	a := activeAccount(t, "s3cret-pass")
	a.AccessFailedCount = 3
	as.On("GetByEmail", mock.Anything, mock.Anything).Return(a, nil)
	as.On("Update", mock.Anything, "a1", map[string]interface{}{
		"access_failed_count": 0,
		"lockout_end":         nil,
	}).Return(nil)
	ss.On("Put", mock.Anything, mock.Anything).Return(nil)
	sg.On("Sign", mock.Anything, mock.Anything, mock.Anything).Return("bearer", nil)

	_, err := newSvc(as, ss, bl, sg).Login(context.Background(), loginReq(), "", "")
	require.NoError(t, err)
	as.AssertExpectations(t)
}

// --- Revoke ---

func TestRevoke_UnknownSession(t *testing.T) {
	as, ss, bl, sg := &mockAccountStore{}, &mockSessionStore{}, &mockBlacklist{}, &mockSigner{}
	ss.On("Get", mock.Anything, "s1").Return(nil, domain.ErrNotFound)

	err := newSvc(as, ss, bl, sg).Revoke(context.Background(), "a1", "s1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	ss.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestRevoke_ForeignSession(t *testing.T) {
	as, ss, bl, sg := &mockAccountStore{}, &mockSessionStore{}, &mockBlacklist{}, &mockSigner{}
	ss.On("Get", mock.Anything, "s1").Return(&domain.Session{SessionID: "s1", AccountID: "someone-else"}, nil)

	err := newSvc(as, ss, bl, sg).Revoke(context.Background(), "a1", "s1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	ss.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	bl.AssertNotCalled(t, "BlacklistSession", mock.Anything, mock.Anything, mock.Anything)
}

func TestRevoke_PersistsThenBlacklists(t *testing.T) {
	as, ss, bl, sg := &mockAccountStore{}, &mockSessionStore{}, &mockBlacklist{}, &mockSigner{}
	ss.On("Get", mock.Anything, "s1").Return(&domain.Session{SessionID: "s1", AccountID: "a1"}, nil)
	ss.On("Update", mock.Anything, "s1", map[string]interface{}{"revoked": true}).Return(nil)
	bl.On("BlacklistSession", mock.Anything, "s1", blacklistTTL).Return(nil)

	err := newSvc(as, ss, bl, sg).Revoke(context.Background(), "a1", "s1")
	require.NoError(t, err)
	ss.AssertExpectations(t)
	bl.AssertExpectations(t)
}

func TestRevoke_BlacklistFailureDoesNotFailRevocation(t *testing.T) {
	as, ss, bl, sg := &mockAccountStore{}, &mockSessionStore{}, &mockBlacklist{}, &mockSigner{}
	ss.On("Get", mock.Anything, "s1").Return(&domain.Session{SessionID: "s1", AccountID: "a1"}, nil)
	ss.On("Update", mock.Anything, "s1", mock.Anything).Return(nil)
	bl.On("BlacklistSession", mock.Anything, "s1", blacklistTTL).Return(assert.AnError)

	err := newSvc(as, ss, bl, sg).Revoke(context.Background(), "a1", "s1")
	assert.NoError(t, err)
}

// --- Remove / ClearExpired ---

func TestRemove_UnknownSessionIsQuiet(t *testing.T) {
	as, ss, bl, sg := &mockAccountStore{}, &mockSessionStore{}, &mockBlacklist{}, &mockSigner{}
	ss.On("Get", mock.Anything, "s1").Return(nil, domain.ErrNotFound)

	err := newSvc(as, ss, bl, sg).Remove(context.Background(), "a1", "s1")
	assert.NoError(t, err)
	ss.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestRemove_DeletesAndSweeps(t *testing.T) {
	as, ss, bl, sg := &mockAccountStore{}, &mockSessionStore{}, &mockBlacklist{}, &mockSigner{}
	ss.On("Get", mock.Anything, "s1").Return(&domain.Session{SessionID: "s1", AccountID: "a1"}, nil)
	ss.On("Delete", mock.Anything, "s1").Return(nil)
	ss.On("DeleteExpired", mock.Anything, "a1", mock.Anything).Return(nil)

	err := newSvc(as, ss, bl, sg).Remove(context.Background(), "a1", "s1")
	require.NoError(t, err)
	ss.AssertExpectations(t)
}

// --- Refresh ---

func TestRefresh_RotatesToken(t *testing.T) {
	as, ss, bl, sg := &mockAccountStore{}, &mockSessionStore{}, &mockBlacklist{}, &mockSigner{}
	sess := &domain.Session{
		SessionID:    "s1",
		AccountID:    "a1",
		RefreshToken: "old-token",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	ss.On("GetByRefreshToken", mock.Anything, "old-token").Return(sess, nil)
	as.On("Get", mock.Anything, "a1").Return(&domain.Account{AccountID: "a1", Status: domain.StatusActive}, nil)
	ss.On("RotateRefreshToken", mock.Anything, "s1", mock.Anything, mock.Anything).Return(nil)
	sg.On("Sign", "a1", "user", "s1").Return("new-bearer", nil)

	bearer, newToken, err := newSvc(as, ss, bl, sg).Refresh(context.Background(), "old-token")
	require.NoError(t, err)
	assert.Equal(t, "new-bearer", bearer)
	assert.NotEmpty(t, newToken)
	assert.NotEqual(t, "old-token", newToken)
}

func TestRefresh_RevokedSession(t *testing.T) {
	as, ss, bl, sg := &mockAccountStore{}, &mockSessionStore{}, &mockBlacklist{}, &mockSigner{}
	sess := &domain.Session{
		SessionID:    "s1",
		AccountID:    "a1",
		RefreshToken: "old-token",
		Revoked:      true,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	ss.On("GetByRefreshToken", mock.Anything, "old-token").Return(sess, nil)

	_, _, err := newSvc(as, ss, bl, sg).Refresh(context.Background(), "old-token")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	ss.AssertNotCalled(t, "RotateRefreshToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRefresh_ExpiredSession(t *testing.T) {
	as, ss, bl, sg := &mockAccountStore{}, &mockSessionStore{}, &mockBlacklist{}, &mockSigner{}
	sess := &domain.Session{
		SessionID:    "s1",
		AccountID:    "a1",
		RefreshToken: "old-token",
		ExpiresAt:    time.Now().Add(-time.Hour),
	}
	ss.On("GetByRefreshToken", mock.Anything, "old-token").Return(sess, nil)

	_, _, err := newSvc(as, ss, bl, sg).Refresh(context.Background(), "old-token")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
