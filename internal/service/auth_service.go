package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pos-service/internal/models"
	"pos-service/internal/store"
	"pos-service/internal/util"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// emailRules matches the binding on LoginRequest.Email
var emailRules = validator.New()

// AuthConfig holds the session and throttling parameters
type AuthConfig struct {
	Secret          string
	TokenTTL        time.Duration
	ResetTTL        time.Duration
	MaxFailedLogins int
	FailureWindow   time.Duration
}

// AuthService authenticates administrators and manages their sessions
type AuthService struct {
	users    store.UserRepository
	sessions SessionStore
	cfg      AuthConfig
	logger   *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(users store.UserRepository, sessions SessionStore, cfg AuthConfig) *AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 12 * time.Hour
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = 30 * time.Minute
	}
	if cfg.MaxFailedLogins <= 0 {
		cfg.MaxFailedLogins = 5
	}
	if cfg.FailureWindow <= 0 {
		cfg.FailureWindow = 15 * time.Minute
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		cfg:      cfg,
		logger:   util.GetLogger(),
	}
}

// Claims are carried by session tokens. ID is the session id registered in
// the session store.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64  `json:"uid"`
	Email  string `json:"email"`
}

// LoginRequest represents a login attempt
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries a fresh session token
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// ForgotPasswordRequest asks for a password reset token
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest sets a new password using a reset token
type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login checks credentials and opens a session
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Login")
	defer span.End()

	email := normalizeEmail(req.Email)

	failures, err := s.sessions.FailedLogins(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to read login failures: %w", err)
	}
	if failures >= int64(s.cfg.MaxFailedLogins) {
		util.LoginAttemptsTotal.WithLabelValues("throttled").Inc()
		s.logger.Warn("Login throttled", zap.String("email", email), zap.Int64("failures", failures))
		return nil, ErrTooManyAttempts
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, s.rejectLogin(ctx, email)
	}
	if err != nil {
		return nil, persistenceErr("load user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, s.rejectLogin(ctx, email)
	}
	if !user.Active {
		util.LoginAttemptsTotal.WithLabelValues("inactive").Inc()
		return nil, ErrUserInactive
	}

	if err := s.sessions.ClearFailedLogins(ctx, email); err != nil {
		s.logger.Warn("Failed to clear login failures", zap.String("email", email), zap.Error(err))
	}

	token, expiresAt, err := s.issueToken(ctx, user)
	if err != nil {
		return nil, err
	}

	util.LoginAttemptsTotal.WithLabelValues("success").Inc()
	s.logger.Info("User logged in", zap.Int64("user_id", user.ID))
	return &LoginResponse{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *AuthService) rejectLogin(ctx context.Context, email string) error {
	util.LoginAttemptsTotal.WithLabelValues("invalid").Inc()
	if _, err := s.sessions.RegisterFailedLogin(ctx, email, s.cfg.FailureWindow); err != nil {
		s.logger.Warn("Failed to count login failure", zap.String("email", email), zap.Error(err))
	}
	return ErrInvalidCredentials
}

func (s *AuthService) issueToken(ctx context.Context, user *models.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.TokenTTL)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: user.ID,
		Email:  user.Email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	if err := s.sessions.StoreSession(ctx, claims.ID, user.ID, s.cfg.TokenTTL); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store session: %w", err)
	}
	return signed, expiresAt, nil
}

// Authenticate validates a bearer token and its session
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil || !token.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}

	active, err := s.sessions.SessionExists(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check session: %w", err)
	}
	if !active {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Logout revokes the session behind claims
func (s *AuthService) Logout(ctx context.Context, claims *Claims) error {
	if err := s.sessions.DeleteSession(ctx, claims.ID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.logger.Info("User logged out", zap.Int64("user_id", claims.UserID))
	return nil
}

// ForgotPassword issues a reset token when email belongs to an active user.
// The token is only written to the log; callers must not expose it.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Info("Password reset requested for unknown email", zap.String("email", email))
		return "", nil
	}
	if err != nil {
		return "", persistenceErr("load user", err)
	}
	if !user.Active {
		return "", nil
	}

	token := uuid.New().String()
	if err := s.sessions.StoreResetToken(ctx, token, user.ID, s.cfg.ResetTTL); err != nil {
		return "", fmt.Errorf("failed to store reset token: %w", err)
	}
	s.logger.Info("Password reset token issued",
		zap.Int64("user_id", user.ID),
		zap.String("reset_token", token),
		zap.Duration("ttl", s.cfg.ResetTTL))
	return token, nil
}

// ResetPassword consumes a reset token and stores the new password
func (s *AuthService) ResetPassword(ctx context.Context, req *ResetPasswordRequest) error {
	if len(req.Password) < minPasswordLength {
		return invalidf("password must have at least %d characters", minPasswordLength)
	}

	userID, ok, err := s.sessions.ConsumeResetToken(ctx, req.Token)
	if err != nil {
		return fmt.Errorf("failed to consume reset token: %w", err)
	}
	if !ok {
		return ErrInvalidToken
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return persistenceErr("load user", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.UpdateUserPassword(ctx, user.ID, string(hash)); err != nil {
		return persistenceErr("update password", err)
	}
	if err := s.sessions.ClearFailedLogins(ctx, user.Email); err != nil {
		s.logger.Warn("Failed to clear login failures", zap.Error(err))
	}

	s.logger.Info("Password reset", zap.Int64("user_id", user.ID))
	return nil
}

// EnsureAdmin creates the administrator account when it does not exist yet.
// An email the login endpoint would reject is an error.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		s.logger.Warn("Admin credentials not configured, skipping seed")
		return nil
	}
	if err := emailRules.Var(email, "email"); err != nil {
		return invalidf("admin email %q is not a valid login email", email)
	}

	_, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to look up admin: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	admin := &models.User{
		Email:        email,
		Name:         "Administrator",
		PasswordHash: string(hash),
		Active:       true,
	}
	if err := s.users.CreateUser(ctx, admin); err != nil && !errors.Is(err, store.ErrDuplicate) {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	s.logger.Info("Admin user created", zap.String("email", email))
	return nil
}
