package registry

import "time"

// Record is one row of the CADASTUR registry, keyed by the normalized
// certificate number.
type Record struct {
	CertificateNumber string     `json:"certificate_number"`
	FullName          string     `json:"full_name"`
	UF                string     `json:"uf"`
	City              string     `json:"city"`
	Phone             string     `json:"phone,omitempty"`
	Email             string     `json:"email,omitempty"`
	Website           string     `json:"website,omitempty"`
	ValidUntil        *time.Time `json:"valid_until,omitempty"`
	Languages         []string   `json:"languages,omitempty"`
	OperatingCities   []string   `json:"operating_cities,omitempty"`
	Categories        []string   `json:"categories,omitempty"`
	Segments          []string   `json:"segments,omitempty"`
	IsDriverGuide     bool       `json:"is_driver_guide"`
}

// ImportReport aggregates the outcome of a registry batch import.
type ImportReport struct {
	Read     int `json:"read"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Errored  int `json:"errored"`
}

type Stats struct {
	Total int       `json:"total"`
	ByUF  []UFCount `json:"by_uf"`
}

type UFCount struct {
	UF    string `json:"uf"`
	Count int    `json:"count"`
}
