package expedition

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"backend-trekko/internal/db"
	"backend-trekko/internal/event"

	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound        = errors.New("expedition not found")
	ErrNotOpen         = errors.New("expedition is not open for enrollment")
	ErrFull            = errors.New("expedition is full")
	ErrAlreadyEnrolled = errors.New("already enrolled in this expedition")
	ErrNotEnrolled     = errors.New("not enrolled in this expedition")
	ErrForbidden       = errors.New("not authorized")
)

type Service struct {
	db     db.TxQuerier
	events *event.Service
}

func NewService(db db.TxQuerier, events *event.Service) *Service {
	return &Service{db: db, events: events}
}

// Enroll adds a user to an expedition. The status gate, the capacity gate
// and both writes run in one transaction with the expedition row locked,
// so two enrollments racing on the last spot cannot both succeed.
func (s *Service) Enroll(ctx context.Context, expeditionID, userID int64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status string
	var enrolled, capacity int
	row := tx.QueryRow(ctx, `
		SELECT status, enrolled_count, capacity
		FROM expeditions WHERE id=$1
		FOR UPDATE
	`, expeditionID)
	if err := row.Scan(&status, &enrolled, &capacity); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	if !isOpen(status) {
		return ErrNotOpen
	}
	if enrolled >= capacity {
		return ErrFull
	}

	var active bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM expedition_participants
			WHERE expedition_id=$1 AND user_id=$2 AND status <> 'cancelled'
		)
	`, expeditionID, userID).Scan(&active)
	if err != nil {
		return err
	}
	if active {
		return ErrAlreadyEnrolled
	}

	// Re-enrollment after cancellation reactivates the historical row.
	_, err = tx.Exec(ctx, `
		INSERT INTO expedition_participants (expedition_id, user_id, status)
		VALUES ($1,$2,'confirmed')
		ON CONFLICT (expedition_id, user_id) DO UPDATE SET status='confirmed', updated_at=now()
	`, expeditionID, userID)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE expeditions SET enrolled_count = enrolled_count + 1, updated_at=now()
		WHERE id=$1 AND enrolled_count < capacity
	`, expeditionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrFull
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	if s.events != nil {
		s.events.Record(ctx, event.Event{
			Type:    "EXPEDITION_ENROLLED",
			Message: fmt.Sprintf("User enrolled in expedition #%d", expeditionID),
			ActorID: &userID,
		})
	}
	return nil
}

// Cancel flips the active participant row to cancelled and decrements the
// counter, floored at zero, in one transaction.
func (s *Service) Cancel(ctx context.Context, expeditionID, userID int64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE expedition_participants SET status='cancelled', updated_at=now()
		WHERE expedition_id=$1 AND user_id=$2 AND status <> 'cancelled'
	`, expeditionID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotEnrolled
	}

	_, err = tx.Exec(ctx, `
		UPDATE expeditions SET enrolled_count = enrolled_count - 1, updated_at=now()
		WHERE id=$1 AND enrolled_count > 0
	`, expeditionID)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Service) IsEnrolled(ctx context.Context, expeditionID, userID int64) (bool, error) {
	var enrolled bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM expedition_participants
			WHERE expedition_id=$1 AND user_id=$2 AND status <> 'cancelled'
		)
	`, expeditionID, userID).Scan(&enrolled)
	return enrolled, err
}

// Participants lists active participants with account display fields.
// Only the owning guide or an admin may call it.
func (s *Service) Participants(ctx context.Context, expeditionID, requesterID int64, requesterRole string) ([]Participant, error) {
	var guideID int64
	err := s.db.QueryRow(ctx, `SELECT guide_id FROM expeditions WHERE id=$1`, expeditionID).Scan(&guideID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if requesterRole != "admin" && requesterID != guideID {
		return nil, ErrForbidden
	}

	rows, err := s.db.Query(ctx, `
		SELECT p.expedition_id, p.user_id, p.status,
		       u.name, COALESCE(u.email,''), COALESCE(u.photo_url,''), p.created_at
		FROM expedition_participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.expedition_id=$1 AND p.status <> 'cancelled'
		ORDER BY p.created_at
	`, expeditionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []Participant
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.ExpeditionID, &p.UserID, &p.Status, &p.Name, &p.Email, &p.PhotoURL, &p.EnrolledAt); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (s *Service) Create(ctx context.Context, input Expedition) (Expedition, error) {
	if input.Capacity <= 0 {
		input.Capacity = 10
	}
	if input.Status == "" {
		input.Status = "published"
	}
	input.EnrolledCount = 0

	row := s.db.QueryRow(ctx, `
		INSERT INTO expeditions (guide_id, trail_id, title, start_date, end_date, capacity, enrolled_count, price, meeting_point, notes, status)
		VALUES ($1,$2,$3,$4,$5,$6,0,$7,$8,$9,$10)
		RETURNING id, created_at, updated_at
	`, input.GuideID, input.TrailID, input.Title, input.StartDate, input.EndDate,
		input.Capacity, input.Price, input.MeetingPoint, input.Notes, input.Status)
	if err := row.Scan(&input.ID, &input.CreatedAt, &input.UpdatedAt); err != nil {
		return Expedition{}, err
	}

	if s.events != nil {
		s.events.Record(ctx, event.Event{
			Type:    "EXPEDITION_CREATED",
			Message: fmt.Sprintf("New expedition created: %s", input.Title),
			ActorID: &input.GuideID,
		})
	}
	return input, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Expedition, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, guide_id, trail_id, COALESCE(title,''), start_date, end_date,
		       capacity, enrolled_count, COALESCE(price,0), COALESCE(meeting_point,''), COALESCE(notes,''),
		       status, created_at, updated_at
		FROM expeditions WHERE id=$1
	`, id)
	exp, err := scanExpedition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Expedition{}, ErrNotFound
		}
		return Expedition{}, err
	}
	return exp, nil
}

func (s *Service) GetDetailed(ctx context.Context, id int64) (Detailed, error) {
	row := s.db.QueryRow(ctx, `
		SELECT e.id, e.guide_id, e.trail_id, COALESCE(e.title,''), e.start_date, e.end_date,
		       e.capacity, e.enrolled_count, COALESCE(e.price,0), COALESCE(e.meeting_point,''), COALESCE(e.notes,''),
		       e.status, e.created_at, e.updated_at,
		       t.name, t.uf, u.name
		FROM expeditions e
		JOIN trails t ON t.id = e.trail_id
		JOIN users u ON u.id = e.guide_id
		WHERE e.id=$1
	`, id)
	var d Detailed
	err := row.Scan(&d.ID, &d.GuideID, &d.TrailID, &d.Title, &d.StartDate, &d.EndDate,
		&d.Capacity, &d.EnrolledCount, &d.Price, &d.MeetingPoint, &d.Notes,
		&d.Status, &d.CreatedAt, &d.UpdatedAt,
		&d.TrailName, &d.TrailUF, &d.GuideName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Detailed{}, ErrNotFound
		}
		return Detailed{}, err
	}
	return d, nil
}

// Update patches guide-editable fields. Callers are responsible for the
// ownership check via Get; admins go through ForceStatus/Delete.
func (s *Service) Update(ctx context.Context, id int64, patch Expedition) (Expedition, error) {
	exp, err := s.Get(ctx, id)
	if err != nil {
		return Expedition{}, err
	}
	if patch.Title != "" {
		exp.Title = patch.Title
	}
	if !patch.StartDate.IsZero() {
		exp.StartDate = patch.StartDate
	}
	if patch.EndDate != nil {
		exp.EndDate = patch.EndDate
	}
	if patch.Capacity > 0 {
		exp.Capacity = patch.Capacity
	}
	if patch.Price > 0 {
		exp.Price = patch.Price
	}
	if patch.MeetingPoint != "" {
		exp.MeetingPoint = patch.MeetingPoint
	}
	if patch.Notes != "" {
		exp.Notes = patch.Notes
	}
	if patch.Status != "" {
		exp.Status = patch.Status
	}

	// enrolled_count is owned by Enroll/Cancel and never written here.
	_, err = s.db.Exec(ctx, `
		UPDATE expeditions
		SET title=$2, start_date=$3, end_date=$4, capacity=$5, price=$6,
		    meeting_point=$7, notes=$8, status=$9, updated_at=now()
		WHERE id=$1
	`, exp.ID, exp.Title, exp.StartDate, exp.EndDate, exp.Capacity, exp.Price,
		exp.MeetingPoint, exp.Notes, exp.Status)
	if err != nil {
		return Expedition{}, err
	}
	return exp, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM expeditions WHERE id=$1`, id)
	return err
}

func (s *Service) List(ctx context.Context, filters ListFilters, page, limit int) ([]Expedition, int, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 12
	}

	where := []string{}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	// "all" skips the status filter; unset means public listing.
	if filters.Status == "" {
		where = append(where, "e.status='published'")
	} else if filters.Status != "all" {
		where = append(where, "e.status="+arg(filters.Status))
	}
	if filters.GuideID != 0 {
		where = append(where, "e.guide_id="+arg(filters.GuideID))
	}
	if filters.TrailID != 0 {
		where = append(where, "e.trail_id="+arg(filters.TrailID))
	}
	if filters.UF != "" {
		where = append(where, "t.uf="+arg(strings.ToUpper(filters.UF)))
	}
	if filters.Search != "" {
		p := arg("%" + filters.Search + "%")
		where = append(where, "(e.title ILIKE "+p+" OR t.name ILIKE "+p+")")
	}
	if filters.StartDate != nil {
		where = append(where, "e.start_date >= "+arg(*filters.StartDate))
	}
	if filters.EndDate != nil {
		where = append(where, "e.start_date <= "+arg(*filters.EndDate))
	}

	clause := "TRUE"
	if len(where) > 0 {
		clause = strings.Join(where, " AND ")
	}

	countSQL := `SELECT count(*) FROM expeditions e JOIN trails t ON t.id=e.trail_id WHERE ` + clause
	var total int
	if err := s.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listSQL := `
		SELECT e.id, e.guide_id, e.trail_id, COALESCE(e.title,''), e.start_date, e.end_date,
		       e.capacity, e.enrolled_count, COALESCE(e.price,0), COALESCE(e.meeting_point,''), COALESCE(e.notes,''),
		       e.status, e.created_at, e.updated_at
		FROM expeditions e JOIN trails t ON t.id=e.trail_id
		WHERE ` + clause + `
		ORDER BY e.start_date` +
		fmt.Sprintf(" LIMIT %s OFFSET %s", arg(limit), arg((page-1)*limit))

	rows, err := s.db.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var expeditions []Expedition
	for rows.Next() {
		exp, err := scanExpedition(rows)
		if err != nil {
			return nil, 0, err
		}
		expeditions = append(expeditions, exp)
	}
	return expeditions, total, rows.Err()
}

func (s *Service) ByTrail(ctx context.Context, trailID int64) ([]Expedition, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, guide_id, trail_id, COALESCE(title,''), start_date, end_date,
		       capacity, enrolled_count, COALESCE(price,0), COALESCE(meeting_point,''), COALESCE(notes,''),
		       status, created_at, updated_at
		FROM expeditions
		WHERE trail_id=$1 AND status='published'
		ORDER BY start_date
	`, trailID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expeditions []Expedition
	for rows.Next() {
		exp, err := scanExpedition(rows)
		if err != nil {
			return nil, err
		}
		expeditions = append(expeditions, exp)
	}
	return expeditions, rows.Err()
}

func scanExpedition(row pgx.Row) (Expedition, error) {
	var exp Expedition
	err := row.Scan(&exp.ID, &exp.GuideID, &exp.TrailID, &exp.Title, &exp.StartDate, &exp.EndDate,
		&exp.Capacity, &exp.EnrolledCount, &exp.Price, &exp.MeetingPoint, &exp.Notes,
		&exp.Status, &exp.CreatedAt, &exp.UpdatedAt)
	return exp, err
}
