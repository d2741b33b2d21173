package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/board-api/internal/auth"
	"github.com/spec-kit/board-api/internal/domain"
	"github.com/spec-kit/board-api/internal/repository"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*domain.User{}}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return repository.ErrUsernameTaken
		}
	}
	user.ID = uuid.NewString()
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type issuedSession struct {
	subjectID, deviceID string
}

type fakeIssuer struct {
	next    int
	issued  []issuedSession
	revoked []issuedSession
	err     error
}

func (f *fakeIssuer) IssueDeviceID() string {
	f.next++
	return fmt.Sprintf("device-%d", f.next)
}

func (f *fakeIssuer) IssuePair(_ context.Context, subjectID, deviceID string) (domain.TokenPair, error) {
	if f.err != nil {
		return domain.TokenPair{}, f.err
	}
	f.issued = append(f.issued, issuedSession{subjectID, deviceID})
	return domain.TokenPair{AccessToken: "Bearer:a", RefreshToken: "Bearer:r"}, nil
}

func (f *fakeIssuer) Revoke(_ context.Context, subjectID, deviceID string) error {
	f.revoked = append(f.revoked, issuedSession{subjectID, deviceID})
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *fakeUserRepo, *fakeIssuer) {
	t.Helper()
	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewPasswordHasher: %v", err)
	}
	repo := newFakeUserRepo()
	issuer := &fakeIssuer{}
	svc := NewAuthService(AuthDependencies{UserRepo: repo, Sessions: issuer, Passwords: hasher})
	return svc, repo, issuer
}

func TestAuthService_RegisterStartsSession(t *testing.T) {
	svc, repo, issuer := newAuthFixture(t)
	ctx := context.Background()

	user, session, err := svc.Register(ctx, "  alice ", "s3cret")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("username = %q, want trimmed alice", user.Username)
	}
	if user.PasswordHash == "s3cret" || user.PasswordHash == "" {
		t.Error("password stored without hashing")
	}
	if session.DeviceID == "" || session.Tokens.AccessToken == "" {
		t.Fatalf("session not populated: %+v", session)
	}
	if len(issuer.issued) != 1 || issuer.issued[0] != (issuedSession{user.ID, session.DeviceID}) {
		t.Errorf("issued = %+v", issuer.issued)
	}
	if _, err := repo.GetByID(ctx, user.ID); err != nil {
		t.Errorf("user not persisted: %v", err)
	}
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "alice", "pw"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, _, err := svc.Register(ctx, "alice", "other"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("duplicate Register: want ErrUsernameTaken, got %v", err)
	}
}

func TestAuthService_LoginUsesFreshDevice(t *testing.T) {
	svc, _, issuer := newAuthFixture(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "alice", "pw"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, first, err := svc.Login(ctx, "alice", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	_, second, err := svc.Login(ctx, "alice", "pw")
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}
	if first.DeviceID == second.DeviceID {
		t.Error("each login should get its own device id")
	}
	if len(issuer.issued) != 3 {
		t.Errorf("issued %d pairs, want 3", len(issuer.issued))
	}
}

func TestAuthService_LoginRejectsBadCredentials(t *testing.T) {
	svc, _, issuer := newAuthFixture(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "alice", "pw"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, _, err := svc.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: want ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "bob", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: want ErrInvalidCredentials, got %v", err)
	}
	if len(issuer.issued) != 1 {
		t.Errorf("failed logins issued sessions: %+v", issuer.issued)
	}
}

func TestAuthService_LoginPropagatesIssueFailure(t *testing.T) {
	svc, _, issuer := newAuthFixture(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "alice", "pw"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	issuer.err = errors.New("cache down")
	if _, _, err := svc.Login(ctx, "alice", "pw"); err == nil {
		t.Fatal("Login succeeded without a stored session")
	}
}

func TestAuthService_LogoutRevokesDevice(t *testing.T) {
	svc, _, issuer := newAuthFixture(t)
	if err := svc.Logout(context.Background(), "u1", "d1"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(issuer.revoked) != 1 || issuer.revoked[0] != (issuedSession{"u1", "d1"}) {
		t.Errorf("revoked = %+v", issuer.revoked)
	}
}

func TestAuthService_RegisterRejectsLongPassword(t *testing.T) {
	svc, _, issuer := newAuthFixture(t)
	long := string(make([]byte, 80))
	if _, _, err := svc.Register(context.Background(), "alice", long); !errors.Is(err, auth.ErrPasswordTooLong) {
		t.Fatalf("want ErrPasswordTooLong, got %v", err)
	}
	if len(issuer.issued) != 0 {
		t.Error("session issued for rejected registration")
	}
}
