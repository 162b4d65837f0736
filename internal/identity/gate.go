package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/buildmart/internal/config"
)

// ErrInvalidCredential is returned when a bearer credential cannot be verified.
var ErrInvalidCredential = errors.New("invalid credential")

// Module provides the identity gate to Fx.
var Module = fx.Provide(NewGate)

// Gate is the only place principal ids are minted from external credentials.
type Gate struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewGate builds a Gate that verifies HS256 tokens signed with the configured secret.
func NewGate(cfg config.Config, logger *zap.Logger) *Gate {
	return &Gate{
		secret: []byte(cfg.Auth.JWTSecret),
		issuer: cfg.Auth.Issuer,
		ttl:    cfg.Auth.TokenTTL,
		now:    time.Now,
		logger: logger,
	}
}

// Verify checks signature, expiry and issuer of a raw token and returns its principal.
func (g *Gate) Verify(token string) (Principal, error) {
	if token == "" {
		return Anonymous, ErrInvalidCredential
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(g.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return Anonymous, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return Anonymous, ErrInvalidCredential
	}
	return Principal{ID: claims.Subject}, nil
}

// Authenticate resolves an Authorization header value. Missing or unverifiable
// credentials resolve to Anonymous; mutating operations reject that later.
func (g *Gate) Authenticate(authorization string) Principal {
	token, ok := parseBearer(authorization)
	if !ok {
		return Anonymous
	}
	p, err := g.Verify(token)
	if err != nil {
		if g.logger != nil {
			g.logger.Debug("bearer credential rejected", zap.Error(err))
		}
		return Anonymous
	}
	return p
}

// Issue mints a signed token for subject. Used by the developer CLI and tests.
func (g *Gate) Issue(subject string) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("subject is required")
	}
	now := g.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    g.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
}

func parseBearer(authorization string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(authorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
