package admin

import (
	"context"

	"backend-trekko/internal/db"
)

type Metrics struct {
	Trails       int     `json:"trails"`
	Expeditions  int     `json:"expeditions"`
	Guides       int     `json:"guides"`
	Reservations int     `json:"reservations"`
	Revenue      float64 `json:"revenue"`
}

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) Metrics(ctx context.Context) (Metrics, error) {
	var m Metrics
	row := s.db.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM trails),
			(SELECT count(*) FROM expeditions WHERE status IN ('published','draft')),
			(SELECT count(*) FROM users WHERE user_type='guide'),
			(SELECT count(*) FROM expedition_participants WHERE status <> 'cancelled'),
			(SELECT COALESCE(SUM(price),0) FROM expeditions WHERE status='completed')
	`)
	if err := row.Scan(&m.Trails, &m.Expeditions, &m.Guides, &m.Reservations, &m.Revenue); err != nil {
		return Metrics{}, err
	}
	return m, nil
}
