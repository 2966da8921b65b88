package favorite

import (
	"context"

	"backend-trekko/internal/db"
	"backend-trekko/internal/trail"
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) Add(ctx context.Context, userID, trailID int64) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO favorites (user_id, trail_id)
		VALUES ($1,$2)
		ON CONFLICT (user_id, trail_id) DO NOTHING
	`, userID, trailID)
	return err
}

func (s *Service) Remove(ctx context.Context, userID, trailID int64) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM favorites WHERE user_id=$1 AND trail_id=$2
	`, userID, trailID)
	return err
}

func (s *Service) Check(ctx context.Context, userID, trailID int64) (bool, error) {
	var fav bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM favorites WHERE user_id=$1 AND trail_id=$2)
	`, userID, trailID).Scan(&fav)
	return fav, err
}

// List returns the user's favorite trails, newest bookmark first.
func (s *Service) List(ctx context.Context, userID int64) ([]trail.Trail, error) {
	rows, err := s.db.Query(ctx, `
		SELECT t.id, t.name, t.uf, COALESCE(t.city,''), COALESCE(t.region,''), COALESCE(t.park,''),
		       COALESCE(t.distance_km,0), COALESCE(t.elevation_gain,0), t.difficulty,
		       COALESCE(t.description,''), COALESCE(t.image_url,''), t.created_at, t.updated_at
		FROM favorites f
		JOIN trails t ON t.id = f.trail_id
		WHERE f.user_id=$1
		ORDER BY f.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trails []trail.Trail
	for rows.Next() {
		var t trail.Trail
		if err := rows.Scan(&t.ID, &t.Name, &t.UF, &t.City, &t.Region, &t.Park,
			&t.DistanceKm, &t.ElevationGain, &t.Difficulty,
			&t.Description, &t.ImageURL, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		trails = append(trails, t)
	}
	return trails, rows.Err()
}
