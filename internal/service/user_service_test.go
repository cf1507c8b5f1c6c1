package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plgshop/internal/auth"
	"plgshop/internal/constants"
	"plgshop/internal/model"
	"plgshop/internal/repository"
	"plgshop/pkg/googleauth"
	"plgshop/pkg/logger"
)

type memUsers struct {
	mu     sync.Mutex
	byMail map[string]*model.User
	nextID int64
}

func newMemUsers() *memUsers { return &memUsers{byMail: map[string]*model.User{}} }

func (m *memUsers) Create(_ context.Context, email string, hash sql.NullString, verified bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.byMail[email] = &model.User{ID: m.nextID, Email: email, PasswordHash: hash, EmailVerified: verified}
	return m.nextID, nil
}

func (m *memUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byMail {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byMail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) MarkVerified(_ context.Context, id int64, hash sql.NullString) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byMail {
		if u.ID == id {
			u.EmailVerified = true
			if hash.Valid {
				u.PasswordHash = hash
			}
			return nil
		}
	}
	return repository.ErrNotFound
}

type memVerifications struct {
	rows map[string]*model.EmailVerification
}

func (m *memVerifications) Save(_ context.Context, email, code string, expiresAt time.Time) error {
	m.rows[email] = &model.EmailVerification{Email: email, Code: code, ExpiresAt: expiresAt}
	return nil
}

func (m *memVerifications) Get(_ context.Context, email string) (*model.EmailVerification, error) {
	v, ok := m.rows[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *memVerifications) MarkUsed(_ context.Context, email string) error {
	if v, ok := m.rows[email]; ok {
		v.IsUsed = true
	}
	return nil
}

type memStates struct {
	slots  map[string]bool
	states map[string]bool
}

func (m *memStates) AcquireSendSlot(_ context.Context, email string, _ time.Duration) (bool, error) {
	if m.slots[email] {
		return false, nil
	}
	m.slots[email] = true
	return true, nil
}

func (m *memStates) SaveOAuthState(_ context.Context, state string, _ time.Duration) error {
	m.states[state] = true
	return nil
}

func (m *memStates) ConsumeOAuthState(_ context.Context, state string) (bool, error) {
	ok := m.states[state]
	delete(m.states, state)
	return ok, nil
}

type recordingMailer struct {
	codes    map[string]string
	welcomed []string
	paid     []string
}

func (r *recordingMailer) SendVerificationCode(to, code string, _ time.Duration) error {
	r.codes[to] = code
	return nil
}

func (r *recordingMailer) SendWelcomeEmail(to string) error {
	r.welcomed = append(r.welcomed, to)
	return nil
}

func (r *recordingMailer) SendOrderPaid(to, orderName string, total int64) error {
	r.paid = append(r.paid, fmt.Sprintf("%s %s %d", to, orderName, total))
	return nil
}

// syncQueue 同步执行任务
type syncQueue struct{ names []string }

func (q *syncQueue) AddTask(name string, _ int, _ time.Duration, handler func(ctx context.Context) error) (string, error) {
	q.names = append(q.names, name)
	return name, handler(context.Background())
}

type fakeGoogle struct {
	info *googleauth.UserInfo
	err  error
}

func (g *fakeGoogle) Configured() bool { return true }
func (g *fakeGoogle) AuthCodeURL(state string) (string, error) {
	return "https://accounts.google.com/o/oauth2/auth?state=" + state, nil
}
func (g *fakeGoogle) Exchange(context.Context, string) (*googleauth.UserInfo, error) {
	return g.info, g.err
}

type userFixture struct {
	users  *memUsers
	codes  *memVerifications
	states *memStates
	mailer *recordingMailer
	google *fakeGoogle
	tokens *auth.TokenManager
	svc    *UserService
}

func newUserFixture() *userFixture {
	f := &userFixture{
		users:  newMemUsers(),
		codes:  &memVerifications{rows: map[string]*model.EmailVerification{}},
		states: &memStates{slots: map[string]bool{}, states: map[string]bool{}},
		mailer: &recordingMailer{codes: map[string]string{}},
		google: &fakeGoogle{},
		tokens: auth.NewTokenManager("test-secret", time.Hour),
	}
	f.svc = NewUserService(f.users, f.codes, f.states, f.tokens, f.mailer, &syncQueue{}, f.google, logger.NewNop())
	return f
}

func TestSendEmailCodeAndRegister(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.SendEmailCode(ctx, "amy@example.com"))
	code := f.mailer.codes["amy@example.com"]
	require.Len(t, code, 6)
	assert.Equal(t, code, f.codes.rows["amy@example.com"].Code)

	err := f.svc.SendEmailCode(ctx, "amy@example.com")
	assert.ErrorIs(t, err, ErrTooFrequent)

	session, err := f.svc.Register(ctx, "amy@example.com", "secret1", code)
	require.NoError(t, err)
	assert.NotZero(t, session.UserID)

	id, err := f.tokens.Parse(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.UserID, id.UserID)
	assert.Equal(t, "amy@example.com", id.Email)
	assert.True(t, f.codes.rows["amy@example.com"].IsUsed)
	assert.Equal(t, []string{"amy@example.com"}, f.mailer.welcomed)

	_, err = f.svc.Register(ctx, "amy@example.com", "secret1", code)
	assert.EqualError(t, err, constants.ErrCodeUsed)

	f.states.slots = map[string]bool{}
	err = f.svc.SendEmailCode(ctx, "amy@example.com")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRegisterUpgradesUnverifiedUser(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()
	id, _ := f.users.Create(ctx, "bob@example.com", sql.NullString{}, false)
	require.NoError(t, f.codes.Save(ctx, "bob@example.com", "123456", time.Now().Add(time.Minute)))

	session, err := f.svc.Register(ctx, "bob@example.com", "secret1", "123456")
	require.NoError(t, err)
	assert.Equal(t, id, session.UserID)

	u, _ := f.users.GetByEmail(ctx, "bob@example.com")
	assert.True(t, u.EmailVerified)
	assert.True(t, u.PasswordHash.Valid)
}

func TestRegisterValidation(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()
	require.NoError(t, f.codes.Save(ctx, "old@example.com", "111111", time.Now().Add(-time.Minute)))
	require.NoError(t, f.codes.Save(ctx, "ok@example.com", "222222", time.Now().Add(time.Minute)))

	tests := []struct {
		email, password, code, msg string
	}{
		{"bad", "secret1", "111111", constants.ErrInvalidEmail},
		{"ok@example.com", "12345", "222222", constants.ErrPasswordTooShort},
		{"ok@example.com", "secret1", "22222", constants.ErrCodeFormat},
		{"none@example.com", "secret1", "222222", constants.ErrCodeMissing},
		{"old@example.com", "secret1", "111111", constants.ErrCodeExpired},
		{"ok@example.com", "secret1", "999999", constants.ErrCodeIncorrect},
	}
	for _, tt := range tests {
		_, err := f.svc.Register(ctx, tt.email, tt.password, tt.code)
		require.ErrorIs(t, err, ErrValidation, tt.msg)
		assert.Equal(t, tt.msg, err.Error())
	}
}

func TestLogin(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()
	require.NoError(t, f.codes.Save(ctx, "amy@example.com", "123456", time.Now().Add(time.Minute)))
	registered, err := f.svc.Register(ctx, "amy@example.com", "secret1", "123456")
	require.NoError(t, err)
	_, _ = f.users.Create(ctx, "pending@example.com", sql.NullString{}, false)

	session, err := f.svc.Login(ctx, "amy@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, registered.UserID, session.UserID)

	_, err = f.svc.Login(ctx, "amy@example.com", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.EqualError(t, err, constants.ErrPasswordIncorrect)

	_, err = f.svc.Login(ctx, "pending@example.com", "secret1")
	assert.EqualError(t, err, constants.ErrAccountNotVerified)

	_, err = f.svc.Login(ctx, "nobody@example.com", "secret1")
	assert.EqualError(t, err, constants.ErrAccountNotVerified)

	_, err = f.svc.Login(ctx, "amy@example.com", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGoogleLogin(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()

	authURL, err := f.svc.GoogleAuthURL(ctx)
	require.NoError(t, err)
	require.Len(t, f.states.states, 1)
	var state string
	for s := range f.states.states {
		state = s
	}
	assert.Contains(t, authURL, state)

	f.google.info = &googleauth.UserInfo{Email: "g@example.com", EmailVerified: true}
	session, err := f.svc.GoogleLogin(ctx, state, "code")
	require.NoError(t, err)
	u, err := f.users.GetByEmail(ctx, "g@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, session.UserID)
	assert.True(t, u.EmailVerified)

	// state只能用一次
	_, err = f.svc.GoogleLogin(ctx, state, "code")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGoogleLoginVerifiesExistingUser(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()
	id, _ := f.users.Create(ctx, "g@example.com", sql.NullString{}, false)
	f.states.states["s1"] = true
	f.google.info = &googleauth.UserInfo{Email: "g@example.com", EmailVerified: true}

	session, err := f.svc.GoogleLogin(ctx, "s1", "code")
	require.NoError(t, err)
	assert.Equal(t, id, session.UserID)
	u, _ := f.users.GetByEmail(ctx, "g@example.com")
	assert.True(t, u.EmailVerified)
}

func TestGoogleLoginPropagatesEmailError(t *testing.T) {
	f := newUserFixture()
	f.states.states["s1"] = true
	f.google.err = googleauth.ErrEmailNotVerified

	_, err := f.svc.GoogleLogin(context.Background(), "s1", "code")
	assert.True(t, errors.Is(err, googleauth.ErrEmailNotVerified))
}

func TestNotifyOrderPaid(t *testing.T) {
	f := newUserFixture()
	id, err := f.users.Create(context.Background(), "buyer@example.com", sql.NullString{}, true)
	require.NoError(t, err)

	require.NoError(t, f.svc.NotifyOrderPaid(context.Background(), id, "#1001", 50000))
	assert.Equal(t, []string{"buyer@example.com #1001 50000"}, f.mailer.paid)

	assert.ErrorIs(t, f.svc.NotifyOrderPaid(context.Background(), id+100, "#1002", 1), repository.ErrNotFound)
}
