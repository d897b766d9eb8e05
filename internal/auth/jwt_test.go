package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkwatch/parkwatch/internal/auth"
)

const (
	jwtTestKey      = "test-secret-key-for-testing-only"
	jwtTestIssuer   = "parkwatch"
	jwtTestAudience = "parkwatch-dashboard"
)

func newJWTService(key, issuer, audience string) *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: key,
		Issuer:     issuer,
		Audience:   audience,
	})
}

// signClaims hand-signs a claim set with the test key, bypassing
// GenerateAccessToken so tests can mint tokens the service never would.
func signClaims(t *testing.T, claims auth.JWTClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtTestKey))
	require.NoError(t, err)
	return signed
}

func registeredClaims(expiresAt time.Time) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Issuer:    jwtTestIssuer,
		Subject:   "acc_handmade",
		Audience:  jwt.ClaimStrings{jwtTestAudience},
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newJWTService(jwtTestKey, jwtTestIssuer, jwtTestAudience)
	account := &auth.Account{ID: "acc_7f3a", Username: "monitor", DisplayName: "City Monitor"}

	token, expiresAt, err := svc.GenerateAccessToken(account)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(auth.AccessTokenExpiry), expiresAt, 5*time.Second)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "acc_7f3a", claims.AccountID)
	assert.Equal(t, "acc_7f3a", claims.Subject)
	assert.Equal(t, jwtTestIssuer, claims.Issuer)
	assert.Contains(t, claims.Audience, jwtTestAudience)
	assert.NotEmpty(t, claims.ID)
}

func TestAccessToken_UniqueTokenIDs(t *testing.T) {
	svc := newJWTService(jwtTestKey, jwtTestIssuer, jwtTestAudience)
	account := &auth.Account{ID: "acc_7f3a"}

	first, _, err := svc.GenerateAccessToken(account)
	require.NoError(t, err)
	second, _, err := svc.GenerateAccessToken(account)
	require.NoError(t, err)

	firstClaims, err := svc.ValidateAccessToken(first)
	require.NoError(t, err)
	secondClaims, err := svc.ValidateAccessToken(second)
	require.NoError(t, err)
	assert.NotEqual(t, firstClaims.ID, secondClaims.ID)
}

func TestValidateAccessToken_Garbage(t *testing.T) {
	svc := newJWTService(jwtTestKey, jwtTestIssuer, jwtTestAudience)

	for _, token := range []string{"", "not.a.valid.jwt", "xxx.yyy.zzz"} {
		_, err := svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, auth.ErrInvalidAccessToken, "token %q", token)
	}
}

func TestValidateAccessToken_WrongService(t *testing.T) {
	tests := []struct {
		name     string
		verifier *auth.JWTService
	}{
		{"different signing key", newJWTService("another-secret-entirely", jwtTestIssuer, jwtTestAudience)},
		{"different issuer", newJWTService(jwtTestKey, "someone-else", jwtTestAudience)},
		{"different audience", newJWTService(jwtTestKey, jwtTestIssuer, "another-app")},
	}

	minter := newJWTService(jwtTestKey, jwtTestIssuer, jwtTestAudience)
	token, _, err := minter.GenerateAccessToken(&auth.Account{ID: "acc_7f3a"})
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.verifier.ValidateAccessToken(token)
			assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
		})
	}
}

func TestValidateAccessToken_Expired(t *testing.T) {
	svc := newJWTService(jwtTestKey, jwtTestIssuer, jwtTestAudience)
	token := signClaims(t, auth.JWTClaims{
		RegisteredClaims: registeredClaims(time.Now().Add(-time.Hour)),
		AccountID:        "acc_handmade",
		TokenUse:         "access",
	})

	_, err := svc.ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrAccessTokenExpired)
}

func TestValidateAccessToken_RejectsUnsignedToken(t *testing.T) {
	claims := auth.JWTClaims{
		RegisteredClaims: registeredClaims(time.Now().Add(time.Hour)),
		AccountID:        "acc_handmade",
		TokenUse:         "access",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	svc := newJWTService(jwtTestKey, jwtTestIssuer, jwtTestAudience)
	_, err = svc.ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
}

func TestValidateAccessToken_RejectsNonAccessUse(t *testing.T) {
	token := signClaims(t, auth.JWTClaims{
		RegisteredClaims: registeredClaims(time.Now().Add(time.Hour)),
		AccountID:        "acc_handmade",
		TokenUse:         "refresh",
	})

	svc := newJWTService(jwtTestKey, jwtTestIssuer, jwtTestAudience)
	_, err := svc.ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
}

func TestGenerateRefreshToken(t *testing.T) {
	seen := make(map[string]bool)
	for range 20 {
		token, err := auth.GenerateRefreshToken()
		require.NoError(t, err)
		assert.Regexp(t, `^[A-Za-z0-9_-]{43}$`, token)
		assert.False(t, seen[token], "refresh token repeated")
		seen[token] = true
	}
}
