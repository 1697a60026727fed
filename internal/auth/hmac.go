package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

const hmacIssuer = "songprompt-api"

// HMACClaims are carried by tokens signed with the shared JWT secret.
type HMACClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// HMACVerifier accepts HS256 tokens signed with a shared secret. It is used
// in development and as a fallback next to JWKS.
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

func (v *HMACVerifier) Verify(tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &HMACClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*HMACClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing userId", ErrInvalidToken)
	}
	return &Identity{UserID: claims.UserID, Email: claims.Email}, nil
}

// Sign issues a token for userID. Used by tests and local tooling.
func (v *HMACVerifier) Sign(userID, email string) (string, error) {
	if len(v.secret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}
	claims := HMACClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: hmacIssuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Chain tries each verifier in order and returns the first identity.
type Chain []Verifier

func (c Chain) Verify(tokenString string) (*Identity, error) {
	err := error(ErrInvalidToken)
	for _, v := range c {
		id, verr := v.Verify(tokenString)
		if verr == nil {
			return id, nil
		}
		err = verr
	}
	return nil, err
}
