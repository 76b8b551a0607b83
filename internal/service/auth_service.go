package service

import (
	"context"
	"errors"
	"time"

	"inventra-api/internal/model"
	"inventra-api/internal/repository"
	"inventra-api/pkg/jwt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrSessionReplaced    = errors.New("session expired (logged in on another device)")
)

// TokenManager is satisfied by *jwt.Manager
type TokenManager interface {
	GenerateToken(userID uuid.UUID, email, name, roleCode, tokenVersion string) (string, error)
	ValidateToken(tokenString string) (*jwt.Claims, error)
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
	ValidateToken(ctx context.Context, tokenString string) (*TokenValidationResponse, error)
	Me(ctx context.Context, userID uuid.UUID) (*TokenValidationResponse, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error
}

type LoginResponse struct {
	Token      string             `json:"token"`
	User       model.UserResponse `json:"user"`
	Role       *model.Role        `json:"role"`
	Privileges []string           `json:"privileges"`
}

type TokenValidationResponse struct {
	User       model.UserResponse `json:"user"`
	Role       *model.Role        `json:"role"`
	Privileges []string           `json:"privileges"`
}

type authService struct {
	userRepo repository.UserRepository
	tokens   TokenManager
	timeout  time.Duration
	now      func() time.Time
}

// NewAuthService bounds every repository round trip by timeout (zero means no bound)
func NewAuthService(userRepo repository.UserRepository, tokens TokenManager, timeout time.Duration) AuthService {
	return &authService{
		userRepo: userRepo,
		tokens:   tokens,
		timeout:  timeout,
		now:      time.Now,
	}
}

// boundedContext applies the service timeout on top of the caller's context
func boundedContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	ctx, cancel := boundedContext(ctx, s.timeout)
	defer cancel()

	// 1. Find user by email
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	// 2. Check if user is active
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	// 3. Verify password
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	// 4. Single session: a new token version invalidates older tokens
	version := uuid.NewString()
	now := s.now()
	if err := s.userRepo.RecordLogin(ctx, user.ID, version, now); err != nil {
		return nil, err
	}
	user.TokenVersion = version
	user.LastLoginAt = &now

	// 5. Generate JWT token with TokenVersion
	token, err := s.tokens.GenerateToken(user.ID, user.Email, user.FullName, user.RoleCode(), version)
	if err != nil {
		return nil, err
	}

	log.Infof("user %s logged in", user.Email)
	return &LoginResponse{
		Token:      token,
		User:       user.ToResponse(),
		Role:       user.Role,
		Privileges: user.GetPrivilegeCodes(),
	}, nil
}

func (s *authService) ValidateToken(ctx context.Context, tokenString string) (*TokenValidationResponse, error) {
	ctx, cancel := boundedContext(ctx, s.timeout)
	defer cancel()

	claims, err := s.tokens.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user.TokenVersion != claims.TokenVersion {
		return nil, ErrSessionReplaced
	}
	return sessionOf(user), nil
}

func (s *authService) Me(ctx context.Context, userID uuid.UUID) (*TokenValidationResponse, error) {
	ctx, cancel := boundedContext(ctx, s.timeout)
	defer cancel()

	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return sessionOf(user), nil
}

func (s *authService) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	if len(newPassword) < 6 {
		return invalid("new password must be at least 6 characters")
	}

	ctx, cancel := boundedContext(ctx, s.timeout)
	defer cancel()

	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.CheckPassword(oldPassword) {
		return ErrWrongPassword
	}
	if err := user.SetPassword(newPassword); err != nil {
		return err
	}
	return s.userRepo.UpdatePassword(ctx, user.ID, user.Password)
}

func (s *authService) activeUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	return user, nil
}

func sessionOf(user *model.User) *TokenValidationResponse {
	return &TokenValidationResponse{
		User:       user.ToResponse(),
		Role:       user.Role,
		Privileges: user.GetPrivilegeCodes(),
	}
}
