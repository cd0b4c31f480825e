package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrMissingKey   = errors.New("signing secret is empty")
)

const tokenTypeAccess = "access"

// Claims represents access token claims. The subject carries the user ID.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Type     string `json:"type,omitempty"`
}

// Verifier validates HS256 access tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewVerifier creates a verifier. issuer is only enforced when non-empty.
func NewVerifier(secret, issuer string, leeway time.Duration) (*Verifier, error) {
	if secret == "" {
		return nil, ErrMissingKey
	}
	return &Verifier{
		secret: []byte(secret),
		issuer: issuer,
		leeway: leeway,
	}, nil
}

// Validate parses tokenString and returns its claims.
// Refresh tokens are rejected; tokens without a type are accepted as access tokens.
func (v *Verifier) Validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if claims.Type != "" && claims.Type != tokenTypeAccess {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Signer issues access tokens. The chat service never issues tokens
// itself; this exists for the auth service contract and for tests.
type Signer struct {
	secret   []byte
	issuer   string
	duration time.Duration
}

// NewSigner creates a signer for access tokens valid for duration.
func NewSigner(secret, issuer string, duration time.Duration) (*Signer, error) {
	if secret == "" {
		return nil, ErrMissingKey
	}
	return &Signer{
		secret:   []byte(secret),
		issuer:   issuer,
		duration: duration,
	}, nil
}

// Sign creates an access token for the given user.
func (s *Signer) Sign(userID, username string) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.duration)),
		},
		Username: username,
		Type:     tokenTypeAccess,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
