package services

import (
	"errors"
	"fmt"
	"time"

	"tasker/internal/models"
	"tasker/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid session")
	ErrPasswordTooLong    = errors.New("password longer than 72 bytes")
)

// MaxPasswordBytes is the longest password bcrypt will hash.
const MaxPasswordBytes = 72

// HashPassword returns a salted bcrypt hash of password at the default cost.
func HashPassword(password string) (string, error) {
	return hashPassword(password, bcrypt.DefaultCost)
}

// VerifyPassword reports whether password matches the bcrypt hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func hashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// AuthService handles registration, credential checks and login sessions.
type AuthService struct {
	userRepo    repositories.UserRepository
	sessionRepo repositories.SessionRepository
	jwtSecret   []byte
	sessionTTL  time.Duration
	hashCost    int
	now         func() time.Time
	log         *logrus.Logger

	// dummyHash is compared against when the email is unknown, so a failed
	// login costs one bcrypt comparison at hashCost either way.
	dummyHash []byte
}

// AuthOption customizes an AuthService.
type AuthOption func(*AuthService)

// WithSessionTTL sets how long a login session stays valid.
func WithSessionTTL(ttl time.Duration) AuthOption {
	return func(s *AuthService) { s.sessionTTL = ttl }
}

// WithBcryptCost sets the cost used when hashing new passwords.
func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) { s.hashCost = cost }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, sessionRepo repositories.SessionRepository, jwtSecret string, log *logrus.Logger, opts ...AuthOption) *AuthService {
	s := &AuthService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		jwtSecret:   []byte(jwtSecret),
		sessionTTL:  24 * time.Hour,
		hashCost:    bcrypt.DefaultCost,
		now:         time.Now,
		log:         log,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("tasker-dummy-password"), s.hashCost)
	return s
}

// RegisterUser stores a new user with a hashed password.
// It fails with ErrUsernameTaken or ErrEmailTaken on a uniqueness clash and
// with ErrPasswordTooLong when bcrypt cannot hash the password.
func (s *AuthService) RegisterUser(username, email, password string) (*models.User, error) {
	if len(password) > MaxPasswordBytes {
		return nil, ErrPasswordTooLong
	}
	if err := s.checkAvailable(username, email); err != nil {
		return nil, err
	}

	hashed, err := hashPassword(password, s.hashCost)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username: username,
		Email:    email,
		Password: hashed,
	}
	if err := s.userRepo.Create(user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			// Lost a race with a concurrent registration; report which key clashed.
			if availErr := s.checkAvailable(username, email); availErr != nil {
				return nil, availErr
			}
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	s.log.WithField("user_id", user.ID).Info("user registered")
	return user, nil
}

func (s *AuthService) checkAvailable(username, email string) error {
	if _, err := s.userRepo.GetByUsername(username); err == nil {
		return ErrUsernameTaken
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return err
	}
	if _, err := s.userRepo.GetByEmail(email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return err
	}
	return nil
}

// Authenticate returns the user owning email if password matches.
// Unknown email and wrong password both yield ErrInvalidCredentials.
func (s *AuthService) Authenticate(email, password string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, err
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}

	if !VerifyPassword(user.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// StartSession records a new session for user and returns its signed token
// together with the token expiry.
func (s *AuthService) StartSession(user *models.User) (string, time.Time, error) {
	now := s.now()
	session := &models.Session{
		UserID:    user.ID,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to start session: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sid":     session.ID,
		"user_id": user.ID,
		"exp":     session.ExpiresAt.Unix(),
		"iat":     now.Unix(),
	})
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "session_id": session.ID}).Info("session started")
	return tokenString, session.ExpiresAt, nil
}

// ResolveSession maps a session token to its user. Any tampered, expired or
// revoked token yields ErrInvalidSession.
func (s *AuthService) ResolveSession(tokenString string) (*models.User, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, ErrInvalidSession
	}
	sid, _ := claims["sid"].(string)
	userID, _ := claims["user_id"].(string)
	if sid == "" || userID == "" {
		return nil, ErrInvalidSession
	}

	session, err := s.sessionRepo.GetByID(sid)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrInvalidSession
	}
	if session.Expired(s.now()) {
		if err := s.sessionRepo.Delete(session.ID); err != nil {
			s.log.WithError(err).WithField("session_id", session.ID).Warn("failed to purge expired session")
		}
		return nil, ErrInvalidSession
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	return user, nil
}

// EndSession revokes the session behind tokenString. Tokens that no longer
// verify are ignored since they cannot authenticate anyway.
func (s *AuthService) EndSession(tokenString string) error {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil
	}
	sid, _ := claims["sid"].(string)
	if sid == "" {
		return nil
	}
	if err := s.sessionRepo.Delete(sid); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	s.log.WithField("session_id", sid).Info("session ended")
	return nil
}

// ValidateToken parses and validates a JWT token, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
