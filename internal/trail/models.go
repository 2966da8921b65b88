package trail

import "time"

type Trail struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	UF            string    `json:"uf"`
	City          string    `json:"city,omitempty"`
	Region        string    `json:"region,omitempty"`
	Park          string    `json:"park,omitempty"`
	DistanceKm    float64   `json:"distance_km,omitempty"`
	ElevationGain int       `json:"elevation_gain,omitempty"`
	Difficulty    string    `json:"difficulty"`
	Description   string    `json:"description,omitempty"`
	ImageURL      string    `json:"image_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ListFilters struct {
	Search      string
	UF          string
	Difficulty  string
	MaxDistance float64
}

type CityUF struct {
	City string `json:"city"`
	UF   string `json:"uf"`
}
