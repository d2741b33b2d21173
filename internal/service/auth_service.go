package service

import (
	"context"
	"errors"
	"strings"

	"github.com/spec-kit/board-api/internal/auth"
	"github.com/spec-kit/board-api/internal/domain"
	"github.com/spec-kit/board-api/internal/repository"
)

var (
	// ErrInvalidCredentials is returned for an unknown user or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUsernameTaken is returned when registering an existing username.
	ErrUsernameTaken = errors.New("username already taken")
)

// SessionIssuer is the part of the token service used at login and logout.
type SessionIssuer interface {
	IssueDeviceID() string
	IssuePair(ctx context.Context, subjectID, deviceID string) (domain.TokenPair, error)
	Revoke(ctx context.Context, subjectID, deviceID string) error
}

// AuthService coordinates registration, login and logout.
type AuthService struct {
	users    repository.UserRepository
	sessions SessionIssuer
	hasher   *auth.PasswordHasher
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo  repository.UserRepository
	Sessions  SessionIssuer
	Passwords *auth.PasswordHasher
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	return &AuthService{
		users:    deps.UserRepo,
		sessions: deps.Sessions,
		hasher:   deps.Passwords,
	}
}

// Register creates an account and logs it in on a new device.
func (s *AuthService) Register(ctx context.Context, username, password string) (*domain.User, domain.Session, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, domain.Session{}, err
	}

	user := &domain.User{
		Username:     strings.TrimSpace(username),
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return nil, domain.Session{}, ErrUsernameTaken
		}
		return nil, domain.Session{}, err
	}

	session, err := s.startSession(ctx, user.ID)
	if err != nil {
		return nil, domain.Session{}, err
	}
	return user, session, nil
}

// Login authenticates the credentials and starts a session on a new device.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, domain.Session, error) {
	user, err := s.FindPrincipalByCredentials(ctx, username, password)
	if err != nil {
		return nil, domain.Session{}, err
	}
	session, err := s.startSession(ctx, user.ID)
	if err != nil {
		return nil, domain.Session{}, err
	}
	return user, session, nil
}

// FindPrincipalByCredentials returns the user when the password matches.
func (s *AuthService) FindPrincipalByCredentials(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if repository.IsNotFound(err) {
			s.hasher.CompareMissing(password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Logout revokes the session for this device only.
func (s *AuthService) Logout(ctx context.Context, subjectID, deviceID string) error {
	return s.sessions.Revoke(ctx, subjectID, deviceID)
}

// GetUser loads the account behind a principal.
func (s *AuthService) GetUser(ctx context.Context, subjectID string) (*domain.User, error) {
	return s.users.GetByID(ctx, subjectID)
}

func (s *AuthService) startSession(ctx context.Context, subjectID string) (domain.Session, error) {
	deviceID := s.sessions.IssueDeviceID()
	pair, err := s.sessions.IssuePair(ctx, subjectID, deviceID)
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{DeviceID: deviceID, Tokens: pair}, nil
}
