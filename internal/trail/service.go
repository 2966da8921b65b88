package trail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"backend-trekko/internal/db"

	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("trail not found")

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) Create(ctx context.Context, input Trail) (Trail, error) {
	if input.Difficulty == "" {
		input.Difficulty = "moderate"
	}
	input.UF = strings.ToUpper(input.UF)

	row := s.db.QueryRow(ctx, `
		INSERT INTO trails (name, uf, city, region, park, distance_km, elevation_gain, difficulty, description, image_url)
		VALUES ($1,$2,NULLIF($3,''),NULLIF($4,''),NULLIF($5,''),$6,$7,$8,NULLIF($9,''),NULLIF($10,''))
		RETURNING id, created_at, updated_at
	`, input.Name, input.UF, input.City, input.Region, input.Park,
		input.DistanceKm, input.ElevationGain, input.Difficulty, input.Description, input.ImageURL)
	if err := row.Scan(&input.ID, &input.CreatedAt, &input.UpdatedAt); err != nil {
		return Trail{}, err
	}
	return input, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Trail, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, uf, COALESCE(city,''), COALESCE(region,''), COALESCE(park,''),
		       COALESCE(distance_km,0), COALESCE(elevation_gain,0), difficulty,
		       COALESCE(description,''), COALESCE(image_url,''), created_at, updated_at
		FROM trails WHERE id=$1
	`, id)
	t, err := scanTrail(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Trail{}, ErrNotFound
		}
		return Trail{}, err
	}
	return t, nil
}

func (s *Service) List(ctx context.Context, filters ListFilters, page, limit int) ([]Trail, int, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 12
	}

	where := []string{"TRUE"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Search != "" {
		p := arg("%" + filters.Search + "%")
		where = append(where, "(name ILIKE "+p+" OR city ILIKE "+p+" OR region ILIKE "+p+")")
	}
	if filters.UF != "" {
		where = append(where, "uf="+arg(strings.ToUpper(filters.UF)))
	}
	if filters.Difficulty != "" {
		where = append(where, "difficulty="+arg(filters.Difficulty))
	}
	if filters.MaxDistance > 0 {
		where = append(where, "distance_km <= "+arg(filters.MaxDistance))
	}

	clause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM trails WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listSQL := `
		SELECT id, name, uf, COALESCE(city,''), COALESCE(region,''), COALESCE(park,''),
		       COALESCE(distance_km,0), COALESCE(elevation_gain,0), difficulty,
		       COALESCE(description,''), COALESCE(image_url,''), created_at, updated_at
		FROM trails WHERE ` + clause + ` ORDER BY name` +
		fmt.Sprintf(" LIMIT %s OFFSET %s", arg(limit), arg((page-1)*limit))

	rows, err := s.db.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var trails []Trail
	for rows.Next() {
		t, err := scanTrail(rows)
		if err != nil {
			return nil, 0, err
		}
		trails = append(trails, t)
	}
	return trails, total, rows.Err()
}

func (s *Service) DistinctUFs(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT uf FROM trails ORDER BY uf`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ufs []string
	for rows.Next() {
		var uf string
		if err := rows.Scan(&uf); err != nil {
			return nil, err
		}
		ufs = append(ufs, uf)
	}
	return ufs, rows.Err()
}

func (s *Service) Cities(ctx context.Context) ([]CityUF, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT city, uf FROM trails WHERE city IS NOT NULL ORDER BY city
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cities []CityUF
	for rows.Next() {
		var c CityUF
		if err := rows.Scan(&c.City, &c.UF); err != nil {
			return nil, err
		}
		cities = append(cities, c)
	}
	return cities, rows.Err()
}

func scanTrail(row pgx.Row) (Trail, error) {
	var t Trail
	err := row.Scan(&t.ID, &t.Name, &t.UF, &t.City, &t.Region, &t.Park,
		&t.DistanceKm, &t.ElevationGain, &t.Difficulty,
		&t.Description, &t.ImageURL, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}
