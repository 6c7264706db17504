package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventscape/relevance/internal/apperrors"
	"github.com/eventscape/relevance/internal/models"
)

// EventsRepository handles data access for platform events and their embeddings.
type EventsRepository struct {
	db *pgxpool.Pool
}

// NewEventsRepository creates a new events repository.
func NewEventsRepository(db *pgxpool.Pool) *EventsRepository {
	return &EventsRepository{db: db}
}

const eventSelect = `
		SELECT id, title, description, status, is_online, latitude, longitude,
			start_date, end_date, created_at, updated_at, embedding,
			COALESCE((SELECT array_agg(ec.category_name ORDER BY ec.category_name)
				FROM event_categories ec WHERE ec.event_id = events.id), '{}') AS categories
		FROM events`

var eventUpcomingColumns = upcomingColumns{
	lastDayExpr: "COALESCE(end_date, start_date)",
	categoryExpr: func(p string) string {
		return "EXISTS (SELECT 1 FROM event_categories ec WHERE ec.event_id = events.id AND ec.category_name = " + p + ")"
	},
	extraConditions: []string{"status = 'published'"},
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var (
		event  models.Event
		emb    nullableEmbedding
		status string
		lat    *float32
		lng    *float32
	)

	err := row.Scan(
		&event.ID, &event.Title, &event.Description, &status, &event.IsOnline, &lat, &lng,
		&event.StartDate, &event.EndDate, &event.CreatedAt, &event.UpdatedAt, &emb,
		&event.Categories,
	)
	if err != nil {
		return nil, err
	}

	event.Status = models.EventStatus(status)
	event.Latitude = widen(lat)
	event.Longitude = widen(lng)
	event.Embedding = emb

	return &event, nil
}

// widen converts a nullable real column to float64.
func widen(v *float32) *float64 {
	if v == nil {
		return nil
	}

	f := float64(*v)

	return &f
}

// GetByID retrieves a platform event with its categories and segments.
func (r *EventsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	event, err := scanEvent(r.db.QueryRow(ctx, eventSelect+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("event", "event not found")
		}

		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, name, description, category_id
		FROM segments
		WHERE event_id = $1
		ORDER BY start_time NULLS LAST, id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list event segments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s models.Segment
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.CategoryID); err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}

		event.Segments = append(event.Segments, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating segments: %w", err)
	}

	return event, nil
}

// ListUpcoming returns published events that have not ended before filters.From.
func (r *EventsRepository) ListUpcoming(ctx context.Context, filters *models.UpcomingFilters) ([]*models.Event, error) {
	query, args := buildUpcomingQuery(eventSelect, eventUpcomingColumns, filters)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event

	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating upcoming events: %w", err)
	}

	return events, nil
}

// UpdateEmbedding sets the embedding vector for an event. Pass nil to clear it.
func (r *EventsRepository) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	result, err := r.db.Exec(ctx,
		`UPDATE events SET embedding = $1, updated_at = now() WHERE id = $2`,
		vectorArg(embedding), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update event embedding: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("event", "event not found")
	}

	return nil
}

// ListIDsForEmbeddingBackfill returns IDs of events whose embedding is NULL.
func (r *EventsRepository) ListIDsForEmbeddingBackfill(ctx context.Context) ([]uuid.UUID, error) {
	return listIDs(ctx, r.db, `SELECT id FROM events WHERE embedding IS NULL ORDER BY created_at`)
}

func listIDs(ctx context.Context, db *pgxpool.Pool, query string) ([]uuid.UUID, error) {
	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list ids for embedding backfill: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating embedding backfill ids: %w", err)
	}

	return ids, nil
}
