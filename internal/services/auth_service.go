package services

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles registration, login and token validation. It is the
// identity source bound to sessions by the auth middleware.
type AuthService struct {
	userRepo  repositories.UserRepository
	jwtSecret []byte
	tokenTTL  time.Duration

	mu      sync.Mutex
	revoked map[string]time.Time // token id -> expiry
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		revoked:   make(map[string]time.Time),
	}
}

// RegisterUser registers a new user, hashes their password, and saves them to the database.
func (s *AuthService) RegisterUser(user *models.User) error {
	if err := s.ensureAvailable(s.userRepo.GetByUsername, user.Username); err != nil {
		return err
	}
	if err := s.ensureAvailable(s.userRepo.GetByEmail, user.Email); err != nil {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashedPassword)

	if err := s.userRepo.Create(user); err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}
	return nil
}

func (s *AuthService) ensureAvailable(lookup func(string) (*models.User, error), value string) error {
	existing, err := lookup(value)
	switch {
	case err == nil && existing != nil:
		return fmt.Errorf("%w: '%s' already registered", ErrUserExists, value)
	case err != nil && !errors.Is(err, repositories.ErrUserNotFound):
		return fmt.Errorf("failed to check existing user: %w", err)
	}
	return nil
}

// LoginUser authenticates a user and returns a signed JWT.
func (s *AuthService) LoginUser(username, password string) (string, error) {
	user, err := s.userRepo.GetByUsername(username)
	if err != nil || user == nil {
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"email":    user.Email,
		"jti":      uuid.New().String(),
		"exp":      now.Add(s.tokenTTL).Unix(),
		"iat":      now.Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken parses a JWT and returns the identity it carries.
func (s *AuthService) ValidateToken(tokenString string) (models.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		log.Printf("Token validation error: %v", err)
		return models.Identity{}, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return models.Identity{}, fmt.Errorf("invalid token")
	}

	identity := models.Identity{
		UserID:   claimString(claims, "user_id"),
		Username: claimString(claims, "username"),
		Email:    claimString(claims, "email"),
		TokenID:  claimString(claims, "jti"),
	}
	if identity.UserID == "" || identity.Email == "" {
		return models.Identity{}, fmt.Errorf("invalid token: missing identity claims")
	}
	if s.isRevoked(identity.TokenID) {
		return models.Identity{}, ErrTokenRevoked
	}
	return identity, nil
}

// RevokeToken rejects the identity's token until it would have expired anyway.
func (s *AuthService) RevokeToken(identity models.Identity) error {
	if identity.TokenID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, expiry := range s.revoked {
		if now.After(expiry) {
			delete(s.revoked, id)
		}
	}
	s.revoked[identity.TokenID] = now.Add(s.tokenTTL)
	return nil
}

func (s *AuthService) isRevoked(tokenID string) bool {
	if tokenID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.revoked[tokenID]
	return ok && time.Now().Before(expiry)
}

func claimString(claims jwt.MapClaims, key string) string {
	value, _ := claims[key].(string)
	return value
}
