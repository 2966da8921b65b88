package auth

import "time"

type User struct {
	ID                int64     `json:"id"`
	OpenID            string    `json:"open_id"`
	Name              string    `json:"name"`
	Email             string    `json:"email,omitempty"`
	PasswordHash      string    `json:"-"`
	LoginMethod       string    `json:"login_method,omitempty"`
	Role              string    `json:"role"`
	UserType          string    `json:"user_type"`
	Bio               string    `json:"bio,omitempty"`
	PhotoURL          string    `json:"photo_url,omitempty"`
	CadasturNumber    *string   `json:"cadastur_number,omitempty"`
	CadasturValidated bool      `json:"cadastur_validated"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	LastSignedIn      time.Time `json:"last_signed_in"`
}

type RegisterRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	UserType       string `json:"user_type"`
	CadasturNumber string `json:"cadastur_number"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// ProfileUpdate carries the fields a user may change through the generic
// profile edit. Certificate number and user type are deliberately absent:
// those only change through the become-guide flow, which re-runs registry
// validation.
type ProfileUpdate struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Bio   string `json:"bio"`
}
