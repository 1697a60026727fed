package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/makeasinger/songprompt/internal/config"
)

var ErrInvalidToken = errors.New("invalid token")

// Verifier turns a bearer token into an authenticated identity.
type Verifier interface {
	Verify(token string) (*Identity, error)
}

// Identity is what the API needs to know about a caller.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// OIDCClaims are the claims issued by the OIDC provider.
type OIDCClaims struct {
	Email             string `json:"email,omitempty"`
	Name              string `json:"name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	jwt.RegisteredClaims
}

// JWKSVerifier checks RS/ES-signed tokens against the issuer's published keys.
type JWKSVerifier struct {
	jwks     keyfunc.Keyfunc
	issuer   string
	audience string
}

// NewJWKSVerifier discovers the issuer's JWKS endpoint and starts the key refresher.
func NewJWKSVerifier(ctx context.Context, cfg *config.OIDCConfig) (*JWKSVerifier, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("oidc issuer is required")
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	jwksURL, err := discoverJWKSURL(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover JWKS URL: %w", err)
	}

	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS keyfunc: %w", err)
	}

	return &JWKSVerifier{
		jwks:     jwks,
		issuer:   cfg.Issuer,
		audience: cfg.ClientID,
	}, nil
}

func discoverJWKSURL(ctx context.Context, issuer string) (string, error) {
	var doc struct {
		JWKSURI string `json:"jwks_uri"`
	}
	resp, err := resty.New().R().
		SetContext(ctx).
		SetResult(&doc).
		Get(strings.TrimRight(issuer, "/") + "/.well-known/openid-configuration")
	if err != nil {
		return "", fmt.Errorf("failed to fetch discovery document: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("discovery endpoint returned status %d", resp.StatusCode())
	}
	if doc.JWKSURI == "" {
		return "", errors.New("jwks_uri not found in discovery document")
	}
	return doc.JWKSURI, nil
}

func (v *JWKSVerifier) Verify(tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &OIDCClaims{}, v.jwks.Keyfunc,
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*OIDCClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if v.audience != "" {
		aud, err := claims.GetAudience()
		if err != nil || !slices.Contains(aud, v.audience) {
			return nil, fmt.Errorf("%w: audience mismatch", ErrInvalidToken)
		}
	}

	name := claims.Name
	if name == "" {
		name = claims.PreferredUsername
	}
	return &Identity{UserID: claims.Subject, Email: claims.Email, Name: name}, nil
}
