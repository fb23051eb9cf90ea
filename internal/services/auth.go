package services

import (
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/widyaops/confdeploy/internal/config"
	"github.com/widyaops/confdeploy/internal/database"
	"github.com/widyaops/confdeploy/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionNotFound    = errors.New("session not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrTOTPRequired       = errors.New("totp code required")
	ErrInvalidTOTPCode    = errors.New("invalid totp code")
)

// AuthService handles operator accounts, sessions, and the optional
// TOTP second factor.
type AuthService struct {
	db     *database.DB
	cfg    *config.Config
	crypto *CryptoService
}

// NewAuthService creates a new AuthService. crypto may be nil, in which
// case TOTP secrets are stored unencrypted.
func NewAuthService(db *database.DB, cfg *config.Config, crypto *CryptoService) *AuthService {
	return &AuthService{db: db, cfg: cfg, crypto: crypto}
}

func (s *AuthService) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.Auth.BcryptCost)
	return string(bytes), err
}

func (s *AuthService) CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func (s *AuthService) CreateUser(username, password string, isAdmin bool) (*models.User, error) {
	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}

	result, err := s.db.Exec(
		"INSERT INTO users (username, password_hash, is_admin) VALUES (?, ?, ?)",
		username, hash, isAdmin,
	)
	if err != nil {
		return nil, ErrUserExists
	}

	id, _ := result.LastInsertId()
	return s.GetUserByID(id)
}

func (s *AuthService) GetUserByID(id int64) (*models.User, error) {
	return s.getUser("id = ?", id)
}

func (s *AuthService) GetUserByUsername(username string) (*models.User, error) {
	return s.getUser("username = ?", username)
}

func (s *AuthService) getUser(where string, arg interface{}) (*models.User, error) {
	var user models.User
	var totpSecret sql.NullString

	err := s.db.QueryRow(
		"SELECT id, username, password_hash, totp_secret, is_admin, created_at, updated_at FROM users WHERE "+where,
		arg,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &totpSecret, &user.IsAdmin, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if totpSecret.Valid {
		user.TOTPSecret = totpSecret.String
	}
	return &user, nil
}

// Login validates credentials and, when the user has a second factor
// enrolled, the TOTP code. A successful login invalidates existing
// sessions for the user and creates a fresh one.
func (s *AuthService) Login(username, password, totpCode string) (*models.Session, error) {
	user, err := s.GetUserByUsername(username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if !s.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if user.TOTPSecret != "" {
		if totpCode == "" {
			return nil, ErrTOTPRequired
		}
		secret, err := s.decryptSecret(user.TOTPSecret)
		if err != nil {
			return nil, err
		}
		if !totp.Validate(totpCode, secret) {
			return nil, ErrInvalidTOTPCode
		}
	}

	s.InvalidateUserSessions(user.ID)

	return s.CreateSession(user.ID)
}

// EnrollTOTP generates a TOTP secret for the user and stores it. The
// returned otpauth URL is shown once for authenticator enrollment.
func (s *AuthService) EnrollTOTP(userID int64) (string, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return "", err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "confdeploy",
		AccountName: user.Username,
	})
	if err != nil {
		return "", err
	}

	stored, err := s.encryptSecret(key.Secret())
	if err != nil {
		return "", err
	}

	_, err = s.db.Exec(
		"UPDATE users SET totp_secret = ?, updated_at = ? WHERE id = ?",
		stored, time.Now(), userID,
	)
	if err != nil {
		return "", err
	}

	return key.URL(), nil
}

// DisableTOTP removes the user's second factor.
func (s *AuthService) DisableTOTP(userID int64) error {
	_, err := s.db.Exec(
		"UPDATE users SET totp_secret = NULL, updated_at = ? WHERE id = ?",
		time.Now(), userID,
	)
	return err
}

func (s *AuthService) encryptSecret(secret string) (string, error) {
	if s.crypto == nil {
		return secret, nil
	}
	return s.crypto.Encrypt(secret)
}

func (s *AuthService) decryptSecret(stored string) (string, error) {
	if s.crypto == nil {
		return stored, nil
	}
	return s.crypto.Decrypt(stored)
}

// InvalidateUserSessions removes all sessions for a user.
func (s *AuthService) InvalidateUserSessions(userID int64) error {
	_, err := s.db.Exec("DELETE FROM sessions WHERE user_id = ?", userID)
	return err
}

func (s *AuthService) CreateSession(userID int64) (*models.Session, error) {
	sessionID := uuid.New().String()
	expiresAt := time.Now().Add(s.cfg.Auth.GetSessionDuration())

	_, err := s.db.Exec(
		"INSERT INTO sessions (id, user_id, expires_at) VALUES (?, ?, ?)",
		sessionID, userID, expiresAt,
	)
	if err != nil {
		return nil, err
	}

	return &models.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}, nil
}

func (s *AuthService) ValidateSession(sessionID string) (*models.User, error) {
	var session models.Session
	err := s.db.QueryRow(
		"SELECT id, user_id, expires_at, created_at FROM sessions WHERE id = ?",
		sessionID,
	).Scan(&session.ID, &session.UserID, &session.ExpiresAt, &session.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	if time.Now().After(session.ExpiresAt) {
		s.DeleteSession(sessionID)
		return nil, ErrSessionExpired
	}

	return s.GetUserByID(session.UserID)
}

func (s *AuthService) DeleteSession(sessionID string) error {
	_, err := s.db.Exec("DELETE FROM sessions WHERE id = ?", sessionID)
	return err
}

func (s *AuthService) CleanExpiredSessions() error {
	_, err := s.db.Exec("DELETE FROM sessions WHERE expires_at < ?", time.Now())
	return err
}

// EnsureAdminUser creates the bootstrap admin account on first start.
func (s *AuthService) EnsureAdminUser() error {
	_, err := s.GetUserByUsername(s.cfg.Admin.Username)
	if err == ErrUserNotFound {
		log.Printf("Creating admin user %q", s.cfg.Admin.Username)
		_, err = s.CreateUser(s.cfg.Admin.Username, s.cfg.Admin.Password, true)
		return err
	}
	return err
}
