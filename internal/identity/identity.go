// Package identity supplies the authenticated-principal side of the request
// pipeline. The governance core depends only on Verifier; the session
// implementation here is the default collaborator behind it.
package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/authz"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/db/models"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidSession     = errors.New("invalid session token")
	ErrUserInactive       = errors.New("user account is inactive")
)

// Verifier resolves an identity bearer credential to a principal.
type Verifier interface {
	Verify(ctx context.Context, credential string) (*authz.Principal, error)
}

type sessionData struct {
	UserID    uint
	ExpiresAt time.Time
}

// SessionService issues and verifies in-memory session tokens backed by the
// user table.
type SessionService struct {
	db       *gorm.DB
	logger   *zap.Logger
	timeout  time.Duration
	sessions map[string]sessionData
	mu       sync.RWMutex
	stopChan chan struct{}
}

func NewSessionService(db *gorm.DB, logger *zap.Logger, timeout time.Duration) *SessionService {
	s := &SessionService{
		db:       db,
		logger:   logger.With(zap.String("service", "session_service")),
		timeout:  timeout,
		sessions: make(map[string]sessionData),
		stopChan: make(chan struct{}),
	}
	go s.startCleanup()
	return s
}

// Login checks the password and mints a session token.
func (s *SessionService) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if ok, _ := utils.VerifyPassword(user.PasswordHash, password); !ok {
		return "", nil, ErrInvalidCredentials
	}
	if !user.ActiveStatus {
		return "", nil, ErrUserInactive
	}

	token := uuid.New().String()
	s.mu.Lock()
	s.sessions[token] = sessionData{
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(s.timeout),
	}
	s.mu.Unlock()

	s.db.WithContext(ctx).Model(&user).Update("last_login", time.Now().UTC())
	s.logger.Info("User logged in", zap.String("username", user.Username), zap.Uint("user_id", user.ID))
	return token, &user, nil
}

func (s *SessionService) Logout(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// Verify implements Verifier.
func (s *SessionService) Verify(ctx context.Context, credential string) (*authz.Principal, error) {
	s.mu.RLock()
	data, ok := s.sessions[credential]
	s.mu.RUnlock()
	if !ok || time.Now().After(data.ExpiresAt) {
		return nil, ErrInvalidSession
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, data.UserID).Error; err != nil {
		return nil, ErrInvalidSession
	}
	if !user.ActiveStatus {
		return nil, ErrUserInactive
	}

	return &authz.Principal{
		UserID: user.ID,
		Name:   user.Username,
		Roles:  user.Roles(),
	}, nil
}

func (s *SessionService) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for token, data := range s.sessions {
				if now.After(data.ExpiresAt) {
					delete(s.sessions, token)
				}
			}
			s.mu.Unlock()
		case <-s.stopChan:
			return
		}
	}
}

func (s *SessionService) Stop() {
	close(s.stopChan)
}
