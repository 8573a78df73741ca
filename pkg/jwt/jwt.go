package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes access tokens from other tokens signed with the same key
type TokenType string

const AccessToken TokenType = "access"

// Roles understood by the booking API
const (
	RolePassenger = "passenger"
	RoleOperator  = "operator"
	RoleAdmin     = "admin"
)

var (
	ErrWrongTokenType = errors.New("invalid token type")
	ErrMissingUser    = errors.New("token has no user id")
)

// Claims carried by an access token
type Claims struct {
	UserID    uuid.UUID `json:"user_id"`
	Roles     []string  `json:"roles"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// HasRole reports whether the claims carry any of roles
func (c *Claims) HasRole(roles ...string) bool {
	for _, r := range c.Roles {
		for _, want := range roles {
			if r == want {
				return true
			}
		}
	}
	return false
}

// Service checks HS256 access tokens minted by the identity service.
// Tooling and tests also use it to mint tokens.
type Service struct {
	key    []byte
	issuer string
	ttl    time.Duration
}

// NewService creates a Service. An empty issuer disables the iss check.
func NewService(secret, issuer string, ttl time.Duration) *Service {
	return &Service{key: []byte(secret), issuer: issuer, ttl: ttl}
}

// GenerateAccessToken signs a token for userID valid for the configured ttl
func (s *Service) GenerateAccessToken(userID uuid.UUID, roles []string) (string, error) {
	issuedAt := time.Now()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:    userID,
		Roles:     roles,
		TokenType: AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
		},
	}).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken verifies signature, expiry, issuer and token type
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(s.parserOptions()...)

	claims := &Claims{}
	if _, err := parser.ParseWithClaims(tokenString, claims, s.keyFunc); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	switch {
	case claims.TokenType != AccessToken:
		return nil, fmt.Errorf("%w: want %s, got %q", ErrWrongTokenType, AccessToken, claims.TokenType)
	case claims.UserID == uuid.Nil:
		return nil, ErrMissingUser
	}
	return claims, nil
}

func (s *Service) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	return opts
}

func (s *Service) keyFunc(*jwt.Token) (interface{}, error) {
	return s.key, nil
}

// ExtractClaims decodes a token without checking its signature
func (s *Service) ExtractClaims(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return claims, nil
}

// IsTokenExpired reports whether the token's exp is in the past.
// Undecodable tokens and tokens without exp count as expired.
func (s *Service) IsTokenExpired(tokenString string) bool {
	claims, err := s.ExtractClaims(tokenString)
	if err != nil || claims.ExpiresAt == nil {
		return true
	}
	return time.Now().After(claims.ExpiresAt.Time)
}
