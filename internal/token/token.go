// Package token issues and verifies the access/refresh JWT pair handed out after OTP verification.
package token

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/oggyb/kinnect/internal/config"
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the registered JWT claims plus the actor role and token kind.
type Claims struct {
	Role string `json:"role"`
	Kind string `json:"kind"`
	jwtlib.RegisteredClaims
}

// Pair is what a successful login or refresh returns.
type Pair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
	RefreshID        string    `json:"-"`
}

type Issuer struct {
	issuer        string
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewIssuer(cfg *config.Config) *Issuer {
	return &Issuer{
		issuer:        cfg.Auth.Issuer,
		accessSecret:  []byte(cfg.Auth.AccessSecret),
		refreshSecret: []byte(cfg.Auth.RefreshSecret),
		accessTTL:     cfg.Auth.AccessTTL,
		refreshTTL:    cfg.Auth.RefreshTTL,
		now:           time.Now,
	}
}

// RefreshTTL is the lifetime of issued refresh tokens.
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// IssuePair signs a fresh access token and a refresh token carrying a unique jti.
func (i *Issuer) IssuePair(subject, role string) (Pair, error) {
	now := i.now()
	accessExp := now.Add(i.accessTTL)
	refreshExp := now.Add(i.refreshTTL)
	refreshID := uuid.NewString()

	access, err := i.sign(i.accessSecret, Claims{
		Role: role,
		Kind: kindAccess,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwtlib.NewNumericDate(now),
			NotBefore: jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(accessExp),
		},
	})
	if err != nil {
		return Pair{}, err
	}

	refresh, err := i.sign(i.refreshSecret, Claims{
		Role: role,
		Kind: kindRefresh,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   subject,
			ID:        refreshID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			NotBefore: jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(refreshExp),
		},
	})
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		RefreshID:        refreshID,
	}, nil
}

// ParseAccess verifies an access token.
func (i *Issuer) ParseAccess(raw string) (*Claims, error) {
	return i.parse(raw, i.accessSecret, kindAccess)
}

// ParseRefresh verifies a refresh token.
func (i *Issuer) ParseRefresh(raw string) (*Claims, error) {
	return i.parse(raw, i.refreshSecret, kindRefresh)
}

func (i *Issuer) sign(secret []byte, c Claims) (string, error) {
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, c).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (i *Issuer) parse(raw string, secret []byte, kind string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwtlib.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (interface{}, error) {
		// only HMAC
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return secret, nil
	},
		jwtlib.WithIssuer(i.issuer),
		jwtlib.WithTimeFunc(i.now),
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Kind != kind || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
