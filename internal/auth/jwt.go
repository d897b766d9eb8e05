package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Session policy. Access tokens are short-lived HS256 JWTs held in
// dashboard memory; they stay valid until expiry and cannot be revoked.
// Refresh tokens are long-lived opaque values stored server-side, rotated
// on every use and revocable through the logout endpoints.
const (
	// AccessTokenExpiry is how long access tokens are valid.
	AccessTokenExpiry = 1 * time.Hour

	// RefreshTokenExpiry is how long refresh tokens are valid.
	RefreshTokenExpiry = 30 * 24 * time.Hour

	// RefreshTokenLength is the refresh token size in bytes, 256 bits
	// of entropy.
	RefreshTokenLength = 32
)

// tokenUseAccess marks a JWT as an access token. A token minted for any
// other purpose fails validation even when its signature checks out.
const tokenUseAccess = "access"

// Token validation errors.
var (
	ErrInvalidAccessToken  = errors.New("invalid access token")
	ErrAccessTokenExpired  = errors.New("access token has expired")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token has expired")
)

// JWTClaims is the claim set carried by access tokens.
type JWTClaims struct {
	jwt.RegisteredClaims

	// AccountID is the authenticated account's ID.
	AccountID string `json:"acc"`

	// TokenUse pins the token to its purpose.
	TokenUse string `json:"use"`
}

// JWTService mints and validates access tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
}

// JWTConfig holds the signing material and the issuer and audience
// claims stamped into every token.
type JWTConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
}

// NewJWTService creates a new JWT service.
func NewJWTService(cfg JWTConfig) *JWTService {
	return &JWTService{
		signingKey: []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
	}
}

// GenerateAccessToken mints an access token for the account and reports
// when it expires.
func (s *JWTService) GenerateAccessToken(account *Account) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(AccessTokenExpiry)

	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   account.ID,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		AccountID: account.ID,
		TokenUse:  tokenUseAccess,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateAccessToken checks the signature and the registered claims
// and returns the claim set. Expiry surfaces as ErrAccessTokenExpired;
// every other failure collapses into ErrInvalidAccessToken.
func (s *JWTService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	// WithValidMethods pins the algorithm before the key is handed out,
	// so the keyfunc has nothing left to inspect.
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{},
		func(*jwt.Token) (any, error) { return s.signingKey, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrAccessTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidAccessToken, err.Error())
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.TokenUse != tokenUseAccess {
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}

// RefreshToken is the stored form of a refresh token.
type RefreshToken struct {
	ID        string
	Token     string
	AccountID string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// GenerateRefreshToken draws a fresh opaque token from crypto/rand.
func GenerateRefreshToken() (string, error) {
	buf := make([]byte, RefreshTokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
