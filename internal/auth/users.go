package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"activitylog/internal/log"
)

type User struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
}

// UserStore persists login accounts. Email lookups are case-insensitive.
type UserStore interface {
	UserByEmail(ctx context.Context, email string) (User, error)
	SaveUser(ctx context.Context, email, passwordHash string) (User, error)
}

// MemoryUsers is a UserStore for the non-SQLite backends.
type MemoryUsers struct {
	mu     sync.RWMutex
	users  map[string]User
	nextID int64
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: make(map[string]User), nextID: 1}
}

func (m *MemoryUsers) UserByEmail(_ context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *MemoryUsers) SaveUser(_ context.Context, email, passwordHash string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(strings.TrimSpace(email))
	u, ok := m.users[key]
	if !ok {
		u = User{ID: m.nextID, Email: strings.TrimSpace(email)}
		m.nextID++
	}
	u.PasswordHash = passwordHash
	m.users[key] = u
	return u, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Service handles logins against a UserStore.
type Service struct {
	users  UserStore
	cfg    TokenConfig
	logger *log.Logger
	now    func() time.Time
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

func NewService(users UserStore, cfg TokenConfig, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		users:  users,
		cfg:    cfg,
		logger: logger.WithComponent(log.ComponentAuth),
		now:    time.Now,
	}
}

// EnsureAdmin creates or resets the admin account. An empty email is a no-op.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" {
		return nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	u, err := s.users.SaveUser(ctx, email, hash)
	if err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}
	s.logger.InfoContext(ctx, "Admin account ready", "user_id", u.ID)
	return nil
}

// Login checks the password and issues a token. Unknown emails and wrong
// passwords both return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	u, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		s.logger.WarnContext(ctx, "Login for unknown account", log.FieldOperation, log.OpLogin)
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("login: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "Login with wrong password", log.FieldOperation, log.OpLogin, "user_id", u.ID)
		return LoginResult{}, ErrInvalidCredentials
	}

	token, exp, err := IssueToken(u, s.cfg, s.now())
	if err != nil {
		return LoginResult{}, err
	}
	s.logger.InfoContext(ctx, "Login succeeded", log.FieldOperation, log.OpLogin, "user_id", u.ID)
	return LoginResult{Token: token, ExpiresAt: exp, User: u}, nil
}

// Verify parses a bearer token issued by this service.
func (s *Service) Verify(token string) (*Claims, error) {
	return ParseToken(token, s.cfg)
}
