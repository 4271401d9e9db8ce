package token

import (
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/trackline/backend/domain"
)

// Manager issues and verifies the two token kinds used by the API: short-lived
// access tokens carrying the caller identity, and long-lived refresh tokens
// carrying only the user id. The two kinds are signed with separate secrets so
// one can never be presented as the other.
type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// Config collects the signing material and lifetimes for a Manager.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

func NewManager(cfg Config) *Manager {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Manager{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		issuer:        cfg.Issuer,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
	}
}

type accessClaims struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
	Role           string `json:"role"`
	jwt.RegisteredClaims
}

type refreshClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// RefreshTTL exposes the configured refresh lifetime so callers can persist
// matching expiry timestamps.
func (m *Manager) RefreshTTL() time.Duration {
	return m.refreshTTL
}

// IssueAccess signs an access token for the identity.
func (m *Manager) IssueAccess(identity domain.Identity) (string, error) {
	now := time.Now()
	claims := accessClaims{
		UserID:         identity.UserID,
		OrganizationID: identity.OrganizationID,
		Role:           identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.accessSecret)
}

// IssueRefresh signs a refresh token for the user.
func (m *Manager) IssueRefresh(userID string) (string, error) {
	now := time.Now()
	claims := refreshClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.refreshTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.refreshSecret)
}

// VerifyAccess parses an access token and returns the embedded identity.
func (m *Manager) VerifyAccess(tokenString string) (domain.Identity, error) {
	var claims accessClaims
	if err := m.verify(tokenString, &claims, m.accessSecret); err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{
		UserID:         claims.UserID,
		OrganizationID: claims.OrganizationID,
		Role:           claims.Role,
	}, nil
}

// VerifyRefresh parses a refresh token and returns the user id it was issued for.
func (m *Manager) VerifyRefresh(tokenString string) (string, error) {
	var claims refreshClaims
	if err := m.verify(tokenString, &claims, m.refreshSecret); err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (m *Manager) verify(tokenString string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return domain.WrapError(domain.ErrCodeUnauthorized, "invalid token", err)
	}
	if !token.Valid {
		return domain.ErrUnauthorized
	}
	return nil
}
