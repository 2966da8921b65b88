package guide

import "time"

// Profile is the point-in-time snapshot of a registry record taken when
// the guide's certificate was validated.
type Profile struct {
	ID                  int64      `json:"id"`
	UserID              int64      `json:"user_id"`
	CadasturNumber      string     `json:"cadastur_number"`
	CadasturValidatedAt *time.Time `json:"cadastur_validated_at,omitempty"`
	CadasturExpiresAt   *time.Time `json:"cadastur_expires_at,omitempty"`
	UF                  string     `json:"uf,omitempty"`
	City                string     `json:"city,omitempty"`
	Categories          []string   `json:"categories,omitempty"`
	Languages           []string   `json:"languages,omitempty"`
	ContactPhone        string     `json:"contact_phone,omitempty"`
	ContactEmail        string     `json:"contact_email,omitempty"`
	Website             string     `json:"website,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// DirectoryEntry is a registry record decorated with whether its holder
// has a registered account.
type DirectoryEntry struct {
	Name           string     `json:"name"`
	CadasturNumber string     `json:"cadastur_number"`
	UF             string     `json:"uf"`
	City           string     `json:"city,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	Email          string     `json:"email,omitempty"`
	Website        string     `json:"website,omitempty"`
	ValidUntil     *time.Time `json:"valid_until,omitempty"`
	Languages      []string   `json:"languages,omitempty"`
	Categories     []string   `json:"categories,omitempty"`
	Segments       []string   `json:"segments,omitempty"`
	IsVerified     bool       `json:"is_verified"`
	IsDriverGuide  bool       `json:"is_driver_guide"`
}

type ListFilters struct {
	Search       string
	UF           string
	CadasturCode string
}
