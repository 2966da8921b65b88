package event

import (
	"context"
	"encoding/json"
	"log"

	"backend-trekko/internal/db"
)

type Service struct {
	db  db.Querier
	hub *Hub
}

func NewService(db db.Querier, hub *Hub) *Service {
	return &Service{db: db, hub: hub}
}

// Record persists a system event, best effort. A failed write is logged
// and never propagated into the operation that emitted the event.
func (s *Service) Record(ctx context.Context, e Event) {
	if e.Severity == "" {
		e.Severity = "info"
	}

	var metadata []byte
	if e.Metadata != nil {
		metadata, _ = json.Marshal(e.Metadata)
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO system_events (type, message, severity, actor_id, metadata)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at
	`, e.Type, e.Message, e.Severity, e.ActorID, metadata)
	if err := row.Scan(&e.ID, &e.CreatedAt); err != nil {
		log.Printf("system event write failed: %v", err)
		return
	}

	if s.hub != nil {
		if payload, err := json.Marshal(e); err == nil {
			s.hub.Broadcast(AdminFeed, payload)
		}
	}
}

func (s *Service) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, type, message, severity, actor_id, COALESCE(metadata, 'null'::jsonb), created_at
		FROM system_events
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var metadata []byte
		if err := rows.Scan(&e.ID, &e.Type, &e.Message, &e.Severity, &e.ActorID, &metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(metadata, &e.Metadata)
		events = append(events, e)
	}
	return events, rows.Err()
}
