package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"gymslots/internal/db"
	apperrors "gymslots/internal/errors"
)

const cancelTokenTTL = 24 * time.Hour

// CancelClaims is the verified claim set of a cancellation token. Verifying
// a token does not authorize anything by itself; the caller still has to
// confirm the booking belongs to that user.
type CancelClaims struct {
	Kind     string
	SourceID int64
	UserID   int64
}

// TokenService signs and verifies the single-use cancellation tokens embedded
// in reminder emails. The kind discriminator is part of the signed payload,
// so a class-cancel token cannot be replayed against a room booking.
type TokenService struct {
	Secret []byte
	Clock  Clock
}

func NewTokenService(secret string, clock Clock) *TokenService {
	return &TokenService{Secret: []byte(secret), Clock: clock}
}

func (t *TokenService) IssueCancelToken(kind string, sourceID, userID int64) (string, error) {
	if kind != db.ReminderKindClassEnrollment && kind != db.ReminderKindRoomBooking {
		return "", fmt.Errorf("unknown cancel token kind %q", kind)
	}
	now := t.Clock.Now()
	claims := jwt.MapClaims{
		"type":      "cancel",
		"kind":      kind,
		"source_id": sourceID,
		"user_id":   userID,
		"jti":       uuid.NewString(),
		"iat":       now.Unix(),
		"exp":       now.Add(cancelTokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.Secret)
}

func (t *TokenService) VerifyCancelToken(tokenString string) (*CancelClaims, error) {
	parsed, err := jwt.Parse(tokenString,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return t.Secret, nil
		},
		jwt.WithTimeFunc(t.Clock.Now),
		jwt.WithValidMethods([]string{"HS256"}),
	)
	if err != nil || !parsed.Valid {
		return nil, apperrors.NewInvalidToken("the cancellation link has expired or is invalid")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || claims["type"] != "cancel" {
		return nil, apperrors.NewInvalidToken("the cancellation link has expired or is invalid")
	}

	kind, _ := claims["kind"].(string)
	if kind != db.ReminderKindClassEnrollment && kind != db.ReminderKindRoomBooking {
		return nil, apperrors.NewInvalidToken("the cancellation link has expired or is invalid")
	}
	sourceID, ok1 := claims["source_id"].(float64)
	userID, ok2 := claims["user_id"].(float64)
	if !ok1 || !ok2 {
		return nil, apperrors.NewInvalidToken("the cancellation link has expired or is invalid")
	}

	return &CancelClaims{
		Kind:     kind,
		SourceID: int64(sourceID),
		UserID:   int64(userID),
	}, nil
}
