package guide

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"backend-trekko/internal/db"
	"backend-trekko/internal/event"
	"backend-trekko/internal/registry"

	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound           = errors.New("guide not found")
	ErrCertificateClaimed = errors.New("certificate already linked to another account")
)

// Validator gates become-guide on the CADASTUR registry, same as
// registration. There is no path to guide status that skips it.
type Validator interface {
	Validate(ctx context.Context, certificateNumber string) (registry.Record, error)
}

type Service struct {
	db        db.Querier
	validator Validator
	events    *event.Service
}

func NewService(db db.Querier, validator Validator, events *event.Service) *Service {
	return &Service{db: db, validator: validator, events: events}
}

func (s *Service) Profile(ctx context.Context, userID int64) (Profile, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, cadastur_number, cadastur_validated_at, cadastur_expires_at,
		       COALESCE(uf,''), COALESCE(city,''), categories, languages,
		       COALESCE(contact_phone,''), COALESCE(contact_email,''), COALESCE(website,''),
		       created_at, updated_at
		FROM guide_profiles WHERE user_id=$1
	`, userID)
	var p Profile
	err := row.Scan(&p.ID, &p.UserID, &p.CadasturNumber, &p.CadasturValidatedAt, &p.CadasturExpiresAt,
		&p.UF, &p.City, &p.Categories, &p.Languages,
		&p.ContactPhone, &p.ContactEmail, &p.Website, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	return p, nil
}

// BecomeGuide upgrades an existing account to guide type. The certificate
// goes through the same claimed check and registry validation as guide
// registration.
func (s *Service) BecomeGuide(ctx context.Context, userID int64, certificateNumber string) (Profile, error) {
	cert := registry.Normalize(certificateNumber)
	if cert == "" {
		return Profile{}, errors.New("cadastur number required")
	}

	var claimedBy int64
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE((SELECT id FROM users WHERE cadastur_number=$1), 0)
	`, cert).Scan(&claimedBy)
	if err != nil {
		return Profile{}, err
	}
	if claimedBy != 0 && claimedBy != userID {
		return Profile{}, ErrCertificateClaimed
	}

	record, err := s.validator.Validate(ctx, cert)
	if err != nil {
		return Profile{}, err
	}

	_, err = s.db.Exec(ctx, `
		UPDATE users
		SET user_type='guide', cadastur_number=$2, cadastur_validated=TRUE, updated_at=now()
		WHERE id=$1
	`, userID, cert)
	if err != nil {
		return Profile{}, err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO guide_profiles
			(user_id, cadastur_number, cadastur_validated_at, cadastur_expires_at,
			 uf, city, categories, languages, contact_phone, contact_email, website)
		VALUES ($1,$2,now(),$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (user_id) DO UPDATE SET
			cadastur_number=EXCLUDED.cadastur_number,
			cadastur_validated_at=now(),
			cadastur_expires_at=EXCLUDED.cadastur_expires_at,
			uf=EXCLUDED.uf, city=EXCLUDED.city,
			categories=EXCLUDED.categories, languages=EXCLUDED.languages,
			contact_phone=EXCLUDED.contact_phone, contact_email=EXCLUDED.contact_email,
			website=EXCLUDED.website, updated_at=now()
	`, userID, record.CertificateNumber, record.ValidUntil, record.UF, record.City,
		record.Categories, record.Languages, record.Phone, record.Email, record.Website)
	if err != nil {
		return Profile{}, err
	}

	if s.events != nil {
		s.events.Record(ctx, event.Event{
			Type:    "GUIDE_REGISTERED",
			Message: fmt.Sprintf("Account #%d upgraded to guide", userID),
			ActorID: &userID,
		})
	}
	return s.Profile(ctx, userID)
}

// List serves the public guide directory straight from the registry,
// marking entries whose certificate is held by a registered account.
func (s *Service) List(ctx context.Context, filters ListFilters, page, limit int) ([]DirectoryEntry, int, error) {
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
		where = append(where, "r.full_name ILIKE "+arg("%"+filters.Search+"%"))
	}
	if filters.CadasturCode != "" {
		where = append(where, "r.certificate_number LIKE "+arg("%"+registry.Normalize(filters.CadasturCode)+"%"))
	}
	if filters.UF != "" {
		where = append(where, "r.uf="+arg(strings.ToUpper(filters.UF)))
	}

	clause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM cadastur_registry r WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listSQL := `
		SELECT r.full_name, r.certificate_number, r.uf, COALESCE(r.city,''),
		       COALESCE(r.phone,''), COALESCE(r.email,''), COALESCE(r.website,''),
		       r.valid_until, r.languages, r.categories, r.segments, r.is_driver_guide,
		       EXISTS (
		           SELECT 1 FROM users u
		           WHERE u.user_type='guide' AND u.cadastur_number = r.certificate_number
		       )
		FROM cadastur_registry r
		WHERE ` + clause + ` ORDER BY r.full_name` +
		fmt.Sprintf(" LIMIT %s OFFSET %s", arg(limit), arg((page-1)*limit))

	rows, err := s.db.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []DirectoryEntry
	for rows.Next() {
		var e DirectoryEntry
		if err := rows.Scan(&e.Name, &e.CadasturNumber, &e.UF, &e.City,
			&e.Phone, &e.Email, &e.Website, &e.ValidUntil,
			&e.Languages, &e.Categories, &e.Segments, &e.IsDriverGuide, &e.IsVerified); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}
