package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
)

// TokenVerifier turns an opaque bearer token into a Principal.
// Every failure is reported as domain.ErrUnauthenticated.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (domain.Principal, error)
}

// JWTVerifier verifies access tokens issued by the auth service.
type JWTVerifier struct {
	verifier *jwt.Verifier
}

func NewJWTVerifier(secret, issuer string, leeway time.Duration) (*JWTVerifier, error) {
	v, err := jwt.NewVerifier(secret, issuer, leeway)
	if err != nil {
		return nil, fmt.Errorf("failed to create jwt verifier: %w", err)
	}
	return &JWTVerifier{verifier: v}, nil
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (domain.Principal, error) {
	if err := ctx.Err(); err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}

	claims, err := v.verifier.Validate(token)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}

	name := claims.Username
	if name == "" {
		name = claims.Subject
	}
	return domain.Principal{ID: claims.Subject, DisplayName: name}, nil
}

// ValidateFunc adapts a TokenVerifier to the gin auth middleware.
func ValidateFunc(v TokenVerifier) func(ctx context.Context, token string) (string, string, error) {
	return func(ctx context.Context, token string) (string, string, error) {
		p, err := v.Verify(ctx, token)
		if err != nil {
			return "", "", err
		}
		return p.ID, p.DisplayName, nil
	}
}
