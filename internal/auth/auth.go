package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"p2px/internal/db"
	"p2px/internal/models"
)

// starterBalance is credited to each of a new user's wallets at
// registration, matching the demo ledger this system trades against.
var starterBalance = decimal.NewFromInt(100)

// Service handles user registration and token issuance.
type Service struct {
	DB     *db.DB
	secret []byte
	log    *zap.Logger
}

// NewService creates a new auth service signing tokens with secret.
func NewService(database *db.DB, secret string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{DB: database, secret: []byte(secret), log: logger}
}

// Register creates a new user with a hashed password and one starter wallet
// per supported currency.
func (s *Service) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email required", models.ErrInvalidArgument)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password required", models.ErrInvalidArgument)
	}
	if len(password) > 100 {
		return nil, fmt.Errorf("%w: password too long (max 100 characters)", models.ErrInvalidArgument)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user, err := s.DB.CreateUserWithWallets(ctx, email, string(hashed), starterBalance)
	if err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.Int64("user_id", user.ID))
	return user, nil
}

// Login verifies credentials and generates a JWT valid for 24 hours.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.DB.GetUserByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		return "", fmt.Errorf("%w: invalid credentials", models.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", fmt.Errorf("%w: invalid credentials", models.ErrUnauthorized)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// UserFromToken extracts the authenticated user id from a JWT.
func (s *Service) UserFromToken(tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, fmt.Errorf("%w: invalid token", models.ErrUnauthorized)
	}
	userID, ok := claims["user_id"].(float64)
	if !ok {
		return 0, fmt.Errorf("%w: malformed token claims", models.ErrUnauthorized)
	}
	return int64(userID), nil
}
