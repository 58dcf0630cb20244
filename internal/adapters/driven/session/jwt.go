package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// Ensure the JWT types implement the interfaces.
var (
	_ driven.SessionVerifier = (*JWTService)(nil)
	_ driven.SessionIssuer   = (*JWTService)(nil)
	_ driven.SessionDecoder  = Decoder{}
)

// Claims is the payload of a session credential.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWTService signs and verifies session credentials.
type JWTService struct {
	secret []byte
	expiry time.Duration
	issuer string
}

// NewJWTService builds a JWT helper with the given secret and expiry.
// A non-positive expiry issues credentials that never expire.
func NewJWTService(secret string, expiry time.Duration, issuer string) *JWTService {
	return &JWTService{secret: []byte(secret), expiry: expiry, issuer: issuer}
}

// Issue signs a credential for the given user.
func (s *JWTService) Issue(user domain.UserInfo) (domain.SessionCredential, error) {
	if s == nil || len(s.secret) == 0 {
		return "", domain.ErrNotImplemented
	}
	email := domain.NormalizeIdentity(user.Email)
	if email == "" {
		return "", fmt.Errorf("email required: %w", domain.ErrInvalidInput)
	}
	subject := strings.TrimSpace(user.Subject)
	if subject == "" {
		subject = email
	}

	now := time.Now()
	claims := Claims{
		Email: email,
		Name:  strings.TrimSpace(user.Name),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			Issuer:   s.issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.expiry > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.expiry))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing session: %w", err)
	}
	return domain.SessionCredential(signed), nil
}

// Verify checks the signature and expiry and returns the identity.
func (s *JWTService) Verify(cred domain.SessionCredential) (*domain.UserInfo, error) {
	if s == nil || len(s.secret) == 0 {
		return nil, domain.ErrNotImplemented
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	parsed, err := jwt.ParseWithClaims(cred.String(), &Claims{}, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrAuthExpired
		}
		return nil, domain.ErrAuthInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, domain.ErrAuthInvalid
	}
	info := claimsToUser(claims)
	if !info.HasIdentity() {
		return nil, domain.ErrAuthInvalid
	}
	return info, nil
}

// Decoder reads the identity claims of a credential without verifying it.
type Decoder struct{}

// Decode parses the credential's claims. The signature is not checked.
func (Decoder) Decode(cred domain.SessionCredential) (*domain.UserInfo, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(cred.String(), claims); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return claimsToUser(claims), nil
}

func claimsToUser(claims *Claims) *domain.UserInfo {
	info := &domain.UserInfo{
		Subject: claims.Subject,
		Email:   domain.NormalizeIdentity(claims.Email),
		Name:    strings.TrimSpace(claims.Name),
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info
}
