package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	jwtgo "github.com/golang-jwt/jwt/v4"
)

var ErrInvalidToken = errors.New("invalid token")

// User is the authenticated caller extracted from a verified JWT. Roles
// carries the marketplace roles granted to the user (client, provider,
// admin).
type User struct {
	ID    string   `json:"id"`
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles"`
}

// HasAnyRole reports whether the user holds at least one of the given roles.
func (u *User) HasAnyRole(roles ...string) bool {
	return slices.ContainsFunc(roles, func(role string) bool {
		return slices.Contains(u.Roles, role)
	})
}

type claims struct {
	User *User `json:"user"`
	jwtgo.RegisteredClaims
}

func (c *claims) Valid() error {
	if c.User == nil {
		return fmt.Errorf("user is required")
	}
	if c.User.ID == "" {
		return fmt.Errorf("user ID is required")
	}
	return c.RegisteredClaims.Valid()
}

// JWTManager issues and verifies the ES256 tokens used by the HTTP API.
// The identity service signs tokens with the private key; this service
// only needs the public key to verify them, so the private key is
// optional and only wired in environments that mint their own tokens
// (tests, local development).
type JWTManager struct {
	ec256PublicKey  string
	ec256PrivateKey string
}

func NewJWTManager(ec256PublicKey, ec256PrivateKey string) (*JWTManager, error) {
	if ec256PublicKey == "" {
		return nil, fmt.Errorf("EC256 public key is required")
	}
	if _, err := jwtgo.ParseECPublicKeyFromPEM([]byte(ec256PublicKey)); err != nil {
		return nil, fmt.Errorf("parsing EC256 public key: %w", err)
	}
	if ec256PrivateKey != "" {
		if _, err := jwtgo.ParseECPrivateKeyFromPEM([]byte(ec256PrivateKey)); err != nil {
			return nil, fmt.Errorf("parsing EC256 private key: %w", err)
		}
	}

	return &JWTManager{ec256PublicKey: ec256PublicKey, ec256PrivateKey: ec256PrivateKey}, nil
}

// GetUserFromToken verifies the token signature and expiry, then returns
// the embedded user.
func (m *JWTManager) GetUserFromToken(tokenString string) (*User, error) {
	c, err := m.parseToken(tokenString)
	if err != nil {
		return nil, err
	}
	return c.User, nil
}

// GenerateToken mints a signed token for the given user, expiring at
// expiresAt. It fails if the manager was built without a private key.
func (m *JWTManager) GenerateToken(user *User, expiresAt time.Time) (string, error) {
	if m.ec256PrivateKey == "" {
		return "", fmt.Errorf("EC256 private key is required to generate tokens")
	}

	esPrivateKey, err := jwtgo.ParseECPrivateKeyFromPEM([]byte(m.ec256PrivateKey))
	if err != nil {
		return "", fmt.Errorf("parsing EC256 private key: %w", err)
	}

	c := &claims{
		User: user,
		RegisteredClaims: jwtgo.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwtgo.NewNumericDate(expiresAt),
			IssuedAt:  jwtgo.NewNumericDate(time.Now()),
		},
	}

	token := jwtgo.NewWithClaims(jwtgo.SigningMethodES256, c)
	signedToken, err := token.SignedString(esPrivateKey)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return signedToken, nil
}

func (m *JWTManager) parseToken(tokenString string) (*claims, error) {
	c := &claims{}
	_, err := jwtgo.ParseWithClaims(tokenString, c, func(token *jwtgo.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwtgo.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Header["alg"])
		}
		return jwtgo.ParseECPublicKeyFromPEM([]byte(m.ec256PublicKey))
	})
	if err != nil {
		var vErr *jwtgo.ValidationError
		if errors.As(err, &vErr) && vErr.Errors&jwtgo.ValidationErrorUnverifiable != 0 {
			return nil, fmt.Errorf("verifying token signature: %w", vErr.Inner)
		}
		return nil, ErrInvalidToken
	}

	return c, nil
}
