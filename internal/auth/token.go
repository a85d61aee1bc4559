package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken indicates the bearer token failed verification.
	ErrInvalidToken = errors.New("invalid bearer token")
	// ErrMissingSecret indicates the verifier was built without a signing secret.
	ErrMissingSecret = errors.New("token secret must be provided")
)

// Identity is the verified caller behind a request.
type Identity struct {
	UserID string
	Admin  bool
}

// Claims are the JWT claims issued by the identity provider.
type Claims struct {
	Admin bool `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier checks HS256 bearer tokens issued by the identity provider.
// It is safe for concurrent use.
type TokenVerifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewTokenVerifier returns a verifier for tokens signed with secret by issuer.
func NewTokenVerifier(secret, issuer string) (*TokenVerifier, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &TokenVerifier{
		secret: []byte(secret),
		issuer: issuer,
		leeway: 30 * time.Second,
	}, nil
}

// Verify parses token and returns the identity it carries.
func (v *TokenVerifier) Verify(token string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{UserID: claims.Subject, Admin: claims.Admin}, nil
}

// Issue signs a token for userID. The identity provider owns issuance in
// production; this exists for local tooling and tests.
func (v *TokenVerifier) Issue(userID string, admin bool, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("user id must be provided")
	}
	now := time.Now().UTC()
	claims := Claims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

type identityKey struct{}

// WithIdentity stores the verified identity on the context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity stored by WithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok && identity.UserID != ""
}
