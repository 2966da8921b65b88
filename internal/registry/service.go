package registry

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"
	"time"
	"unicode"

	"backend-trekko/internal/db"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNotFound = errors.New("certificate not found in CADASTUR registry")
	// ErrExpired is returned together with the matching record so callers
	// can still display who the expired guide was.
	ErrExpired = errors.New("CADASTUR certificate expired")
)

const cacheTTL = 10 * time.Minute

type Service struct {
	db    db.Querier
	cache *redis.Client
	now   func() time.Time
}

func NewService(db db.Querier, cache *redis.Client) *Service {
	return &Service{db: db, cache: cache, now: time.Now}
}

// Normalize strips all whitespace and upper-cases a certificate number.
// This is the form persisted everywhere certificate numbers are stored.
func Normalize(certificateNumber string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, certificateNumber))
}

func (s *Service) Lookup(ctx context.Context, certificateNumber string) (Record, error) {
	cert := Normalize(certificateNumber)
	if cert == "" {
		return Record{}, ErrNotFound
	}

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey(cert)).Bytes(); err == nil {
			var rec Record
			if err := json.Unmarshal(cached, &rec); err == nil {
				return rec, nil
			}
		}
	}

	row := s.db.QueryRow(ctx, `
		SELECT certificate_number, full_name, uf, COALESCE(city,''),
		       COALESCE(phone,''), COALESCE(email,''), COALESCE(website,''),
		       valid_until, languages, operating_cities, categories, segments, is_driver_guide
		FROM cadastur_registry WHERE certificate_number=$1
	`, cert)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(rec); err == nil {
			_ = s.cache.Set(ctx, cacheKey(cert), payload, cacheTTL).Err()
		}
	}
	return rec, nil
}

// Validate is the sole gate for CADASTUR legitimacy. It does not check
// whether the certificate is already claimed by an account; that is the
// caller's invariant.
func (s *Service) Validate(ctx context.Context, certificateNumber string) (Record, error) {
	rec, err := s.Lookup(ctx, certificateNumber)
	if err != nil {
		return Record{}, err
	}
	if rec.ValidUntil != nil && rec.ValidUntil.Before(s.now()) {
		return rec, ErrExpired
	}
	return rec, nil
}

func (s *Service) Search(ctx context.Context, name string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(ctx, `
		SELECT certificate_number, full_name, uf, COALESCE(city,''),
		       COALESCE(phone,''), COALESCE(email,''), COALESCE(website,''),
		       valid_until, languages, operating_cities, categories, segments, is_driver_guide
		FROM cadastur_registry
		WHERE full_name ILIKE '%' || $1 || '%'
		ORDER BY full_name
		LIMIT $2
	`, name, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *Service) ByUF(ctx context.Context, uf string, page, limit int) ([]Record, int, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	uf = strings.ToUpper(uf)

	rows, err := s.db.Query(ctx, `
		SELECT certificate_number, full_name, uf, COALESCE(city,''),
		       COALESCE(phone,''), COALESCE(email,''), COALESCE(website,''),
		       valid_until, languages, operating_cities, categories, segments, is_driver_guide
		FROM cadastur_registry
		WHERE uf=$1
		ORDER BY full_name
		LIMIT $2 OFFSET $3
	`, uf, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	records, err := collectRecords(rows)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM cadastur_registry WHERE uf=$1`, uf).Scan(&total); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM cadastur_registry`).Scan(&stats.Total); err != nil {
		return Stats{}, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT uf, count(*) FROM cadastur_registry
		GROUP BY uf ORDER BY count(*) DESC
	`)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var c UFCount
		if err := rows.Scan(&c.UF, &c.Count); err != nil {
			return Stats{}, err
		}
		stats.ByUF = append(stats.ByUF, c)
	}
	return stats, nil
}

var datePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// ImportBatch reads semicolon-delimited registry rows and upserts them
// keyed by normalized certificate number, last value wins. Malformed or
// certificate-less rows are counted and skipped, never fatal.
func (s *Service) ImportBatch(ctx context.Context, r io.Reader) (ImportReport, error) {
	var report ImportReport

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		report.Read++

		fields := strings.Split(line, ";")
		if len(fields) < 14 {
			report.Skipped++
			continue
		}

		cert := Normalize(fields[7])
		if cert == "" || cert == "-" {
			report.Skipped++
			continue
		}

		var validUntil *time.Time
		if raw := strings.TrimSpace(fields[8]); raw != "" && raw != "-" {
			if m := datePrefix.FindString(raw); m != "" {
				if parsed, err := time.Parse("2006-01-02", m); err == nil {
					validUntil = &parsed
				}
			}
		}

		_, err := s.db.Exec(ctx, `
			INSERT INTO cadastur_registry
				(certificate_number, full_name, uf, city, phone, email, website,
				 valid_until, languages, operating_cities, categories, segments, is_driver_guide)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
			ON CONFLICT (certificate_number) DO UPDATE SET
				full_name=EXCLUDED.full_name, uf=EXCLUDED.uf, city=EXCLUDED.city,
				phone=EXCLUDED.phone, email=EXCLUDED.email, website=EXCLUDED.website,
				valid_until=EXCLUDED.valid_until, languages=EXCLUDED.languages,
				operating_cities=EXCLUDED.operating_cities, categories=EXCLUDED.categories,
				segments=EXCLUDED.segments, is_driver_guide=EXCLUDED.is_driver_guide,
				updated_at=now()
		`,
			cert,
			strings.TrimSpace(fields[3]),
			strings.ToUpper(strings.TrimSpace(fields[1])),
			textOrNil(fields[2]),
			textOrNil(fields[4]),
			lowerOrNil(fields[5]),
			textOrNil(fields[6]),
			validUntil,
			splitList(fields[9]),
			splitList(fields[10]),
			splitList(fields[11]),
			splitList(fields[12]),
			strings.TrimSpace(fields[13]) == "1",
		)
		if err != nil {
			report.Errored++
			continue
		}
		report.Imported++
	}
	if err := scanner.Err(); err != nil {
		return report, err
	}

	s.invalidateCache(ctx)
	return report, nil
}

func (s *Service) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	iter := s.cache.Scan(ctx, 0, "cadastur:*", 0).Iterator()
	for iter.Next(ctx) {
		_ = s.cache.Del(ctx, iter.Val()).Err()
	}
}

func cacheKey(certificateNumber string) string {
	return "cadastur:" + certificateNumber
}

// splitList parses a pipe-separated field. The "-" placeholder maps to
// absent, not an empty list.
func splitList(field string) []string {
	field = strings.TrimSpace(field)
	if field == "" || field == "-" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(field, "|") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func textOrNil(field string) *string {
	field = strings.TrimSpace(field)
	if field == "" || field == "-" {
		return nil
	}
	return &field
}

func lowerOrNil(field string) *string {
	if v := textOrNil(field); v != nil {
		lowered := strings.ToLower(*v)
		return &lowered
	}
	return nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(&rec.CertificateNumber, &rec.FullName, &rec.UF, &rec.City,
		&rec.Phone, &rec.Email, &rec.Website, &rec.ValidUntil,
		&rec.Languages, &rec.OperatingCities, &rec.Categories, &rec.Segments,
		&rec.IsDriverGuide)
	return rec, err
}

func collectRecords(rows pgx.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
