package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/logging"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/otp"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/user"
)

// fakeUserStore is an in-memory UserStore with the same uniqueness rules as
// the users table.
type fakeUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*user.User

	// createErr, when set, is returned by Create instead of inserting.
	createErr error

	// updatePasswordErr, when set, is returned by UpdatePassword. Any
	// beforeUpdatePassword hook runs first, outside the lock.
	updatePasswordErr    error
	beforeUpdatePassword func()
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[uuid.UUID]*user.User)}
}

func (f *fakeUserStore) Create(_ context.Context, nu user.NewUser) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, u := range f.users {
		switch {
		case u.Email == nu.Email:
			return nil, user.ErrDuplicateEmail
		case u.Phone == nu.Phone:
			return nil, user.ErrDuplicatePhone
		case nu.Role == user.RoleAdmin && u.Role == user.RoleAdmin:
			return nil, user.ErrAdminExists
		}
	}

	now := time.Now()
	u := &user.User{
		ID:           uuid.New(),
		Firstname:    nu.Firstname,
		Lastname:     nu.Lastname,
		Email:        nu.Email,
		Phone:        nu.Phone,
		PasswordHash: nu.PasswordHash,
		Role:         nu.Role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (f *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) ExistsByEmailOrPhone(_ context.Context, email, phone string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email || u.Phone == phone {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserStore) AdminExists(_ context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Role == user.RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserStore) mutate(id uuid.UUID, fn func(*user.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return user.ErrNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now()
	return nil
}

func (f *fakeUserStore) MarkEmailVerified(_ context.Context, id uuid.UUID) error {
	return f.mutate(id, func(u *user.User) { u.IsEmailVerified = true })
}

func (f *fakeUserStore) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	return f.mutate(id, func(u *user.User) { u.LastLogin = &at })
}

func (f *fakeUserStore) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	if f.beforeUpdatePassword != nil {
		f.beforeUpdatePassword()
	}
	if f.updatePasswordErr != nil {
		return f.updatePasswordErr
	}
	return f.mutate(id, func(u *user.User) { u.PasswordHash = hash })
}

func (f *fakeUserStore) Deactivate(_ context.Context, id uuid.UUID) error {
	return f.mutate(id, func(u *user.User) { u.IsActive = false })
}

func (f *fakeUserStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

func (f *fakeUserStore) get(t *testing.T, email string) *user.User {
	t.Helper()
	u, err := f.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	return u
}

type sentCode struct {
	kind string
	to   string
	code string
}

// fakeMailer records every code instead of sending it.
type fakeMailer struct {
	mu   sync.Mutex
	sent []sentCode
	err  error
}

func (m *fakeMailer) record(kind, to, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentCode{kind: kind, to: to, code: code})
	return nil
}

func (m *fakeMailer) SendVerificationCode(_ context.Context, to, _, code string) error {
	return m.record("verify", to, code)
}

func (m *fakeMailer) SendLoginVerificationCode(_ context.Context, to, _, code string) error {
	return m.record("login", to, code)
}

func (m *fakeMailer) SendPasswordResetCode(_ context.Context, to, _, code string) error {
	return m.record("reset", to, code)
}

func (m *fakeMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no code was sent")
	return m.sent[len(m.sent)-1].code
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

var errMailDown = errors.New("smtp: connection refused")

type testEnv struct {
	svc     *Service
	users   *fakeUserStore
	mailer  *fakeMailer
	tokens  *Tokens
	refresh *RefreshStore
	otps    *otp.Store
	mr      *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	client, mr := newTestRedis(t)
	users := newFakeUserStore()
	mailer := &fakeMailer{}
	tokens := newTestTokens(t)
	refresh := NewRefreshStore(client)
	otps := otp.NewStore(client)

	svc := NewService(users, otps, tokens, refresh, mailer, logging.NewNop())

	return &testEnv{
		svc:     svc,
		users:   users,
		mailer:  mailer,
		tokens:  tokens,
		refresh: refresh,
		otps:    otps,
		mr:      mr,
	}
}

func (e *testEnv) register(t *testing.T, email, phone, password string, role user.Role) {
	t.Helper()
	_, err := e.svc.Register(context.Background(), RegisterInput{
		Firstname: "Asha",
		Lastname:  "Rao",
		Email:     email,
		Phone:     phone,
		Password:  password,
		Role:      role,
	})
	require.NoError(t, err)
}

// registerVerified registers a user and completes the registration OTP.
func (e *testEnv) registerVerified(t *testing.T, email, phone, password string) *AuthResult {
	t.Helper()
	e.register(t, email, phone, password, "")
	result, already, err := e.svc.VerifyRegistrationOTP(context.Background(), email, e.mailer.lastCode(t))
	require.NoError(t, err)
	require.False(t, already)
	return result
}

func (e *testEnv) otpExists(t *testing.T, email, code string) bool {
	t.Helper()
	ok, err := e.otps.Exists(context.Background(), email, code)
	require.NoError(t, err)
	return ok
}
