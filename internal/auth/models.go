// Package auth provides authentication for the ParkWatch dashboard API.
package auth

import "time"

// Account represents a dashboard operator account.
type Account struct {
	ID           string    `json:"accountId"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"displayName,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// FieldError pins a validation failure to a single request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func requiredField(name string) FieldError {
	return FieldError{Field: name, Message: name + " is required", Code: "REQUIRED"}
}

// LoginRequest is the body for password authentication.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate reports the missing fields.
func (r *LoginRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Username == "" {
		errs = append(errs, requiredField("username"))
	}
	if r.Password == "" {
		errs = append(errs, requiredField("password"))
	}
	return errs
}

// TokenResponse is the body returned by login and refresh: a Bearer
// access token, the refresh token to redeem next, and the account it
// belongs to.
type TokenResponse struct {
	AccessToken  string   `json:"accessToken"`
	TokenType    string   `json:"tokenType"`
	ExpiresIn    int64    `json:"expiresIn"`
	RefreshToken string   `json:"refreshToken,omitempty"`
	Account      *Account `json:"account"`
}

// RefreshTokenRequest redeems a refresh token for a new token pair.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Validate reports the missing fields.
func (r *RefreshTokenRequest) Validate() []FieldError {
	if r.RefreshToken == "" {
		return []FieldError{requiredField("refreshToken")}
	}
	return nil
}

// LogoutRequest names the refresh token to revoke.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Validate reports the missing fields.
func (r *LogoutRequest) Validate() []FieldError {
	if r.RefreshToken == "" {
		return []FieldError{requiredField("refreshToken")}
	}
	return nil
}
