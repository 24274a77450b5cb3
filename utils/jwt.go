package utils

import (
	"errors"
	"time"

	"lifeline/models"

	"github.com/golang-jwt/jwt/v5"
)

// JWTService verifies bearer tokens issued by the identity service. Tokens
// are shared-secret HS256 with an access token type.
type JWTService struct {
	secretKey      []byte
	issuer         string
	accessTokenTTL time.Duration
}

type Claims struct {
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"tokenType"` // access, refresh
	jwt.RegisteredClaims
}

// Principal converts verified claims into the authorization context.
func (c *Claims) Principal() models.Principal {
	role := c.Role
	if role == "" {
		role = models.RoleUser
	}
	return models.Principal{
		UserID:      c.UserID,
		DisplayName: c.Name,
		Email:       c.Email,
		Role:        role,
	}
}

func NewJWTService(secretKey, issuer string) *JWTService {
	return &JWTService{
		secretKey:      []byte(secretKey),
		issuer:         issuer,
		accessTokenTTL: 15 * time.Minute,
	}
}

// GenerateAccessToken is used by operational tooling and tests.
func (j *JWTService) GenerateAccessToken(principal models.Principal) (string, error) {
	now := time.Now()

	claims := Claims{
		UserID:    principal.UserID,
		Name:      principal.DisplayName,
		Email:     principal.Email,
		Role:      principal.Role,
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    j.issuer,
			Subject:   principal.UserID,
			ID:        GenerateUUID(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secretKey)
}

func (j *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return j.secretKey, nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.TokenType != "" && claims.TokenType != "access" {
		return nil, errors.New("invalid token type")
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no user")
	}
	return claims, nil
}
