package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"gymslots/internal/db"
	apperrors "gymslots/internal/errors"
)

const sessionTokenTTL = time.Hour

// ErrInvalidCredentials covers an unknown email or a wrong password. Other
// login failures (a store outage, say) pass through as internal errors.
var ErrInvalidCredentials = errors.New("invalid credentials")

type AuthStore interface {
	GetByEmail(ctx context.Context, email string) (*db.User, error)
}

// AuthService issues session tokens. Authorization policy itself stays at
// the HTTP boundary; the scheduling core only cares about user ids and the
// trainer role.
type AuthService struct {
	Store  AuthStore
	Secret string
	Clock  Clock
}

func NewAuthService(store AuthStore, secret string, clock Clock) *AuthService {
	return &AuthService{Store: store, Secret: secret, Clock: clock}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.Store.GetByEmail(ctx, email)
	if err != nil {
		var notFound *apperrors.NotFoundError
		if errors.As(err, &notFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("error loading user for login: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := s.Clock.Now()
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"role":    user.Role,
		"iat":     now.Unix(),
		"exp":     now.Add(sessionTokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.Secret))
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}
