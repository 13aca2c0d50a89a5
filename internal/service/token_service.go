package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/classroom-attendance-api/internal/models"
	appErrors "github.com/noah-isme/classroom-attendance-api/pkg/errors"
)

// TokenConfig configures access token issuance. A zero Expiry issues tokens without exp.
type TokenConfig struct {
	Secret string
	Expiry time.Duration
	Issuer string
}

// TokenService signs and verifies HS256 access tokens.
type TokenService struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenService constructs a token service bound to the signing secret.
func NewTokenService(config TokenConfig) *TokenService {
	return &TokenService{config: config, now: time.Now}
}

// Issue mints a signed token carrying the user's id and role.
func (s *TokenService) Issue(user *models.User) (string, error) {
	issuedAt := s.now().UTC()
	claims := &models.JWTClaims{
		UserID: user.ID.Hex(),
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   s.config.Issuer,
			Subject:  user.ID.Hex(),
			IssuedAt: jwt.NewNumericDate(issuedAt),
		},
	}
	if s.config.Expiry > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(issuedAt.Add(s.config.Expiry))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses tokenString and returns its claims. Any failure is Unauthorized.
func (s *TokenService) Verify(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, appErrors.ErrUnauthorized.Message)
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" || !claims.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	return claims, nil
}
