package expedition

import "time"

type Expedition struct {
	ID            int64      `json:"id"`
	GuideID       int64      `json:"guide_id"`
	TrailID       int64      `json:"trail_id"`
	Title         string     `json:"title"`
	StartDate     time.Time  `json:"start_date"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	Capacity      int        `json:"capacity"`
	EnrolledCount int        `json:"enrolled_count"`
	Price         float64    `json:"price"`
	MeetingPoint  string     `json:"meeting_point,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// EffectiveStatus is what callers should display: an open expedition with
// no spots left reads as "full" without a stored transition.
func (e Expedition) EffectiveStatus() string {
	return EffectiveStatus(e.Status, e.EnrolledCount, e.Capacity)
}

func (e Expedition) AvailableSpots() int {
	if spots := e.Capacity - e.EnrolledCount; spots > 0 {
		return spots
	}
	return 0
}

// EffectiveStatus derives the displayed status from stored status and the
// capacity counter at read time, so nothing stored can drift.
func EffectiveStatus(status string, enrolledCount, capacity int) string {
	if isOpen(status) && enrolledCount >= capacity {
		return "full"
	}
	return status
}

// isOpen reports whether enrollment is allowed for the stored status.
func isOpen(status string) bool {
	return status == "published" || status == "active"
}

type Participant struct {
	ExpeditionID int64     `json:"expedition_id"`
	UserID       int64     `json:"user_id"`
	Status       string    `json:"status"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	PhotoURL     string    `json:"photo_url,omitempty"`
	EnrolledAt   time.Time `json:"enrolled_at"`
}

type ListFilters struct {
	Search    string
	UF        string
	GuideID   int64
	TrailID   int64
	Status    string
	StartDate *time.Time
	EndDate   *time.Time
}

type Detailed struct {
	Expedition
	TrailName string `json:"trail_name"`
	TrailUF   string `json:"trail_uf"`
	GuideName string `json:"guide_name"`
}
