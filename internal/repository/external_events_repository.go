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

// ExternalEventsRepository handles data access for scraped external events.
type ExternalEventsRepository struct {
	db *pgxpool.Pool
}

// NewExternalEventsRepository creates a new external events repository.
func NewExternalEventsRepository(db *pgxpool.Pool) *ExternalEventsRepository {
	return &ExternalEventsRepository{db: db}
}

const externalEventSelect = `
		SELECT id, title, slug, description, COALESCE(categories, '[]'::json), link, location, is_online,
			latitude, longitude, start_date, clicks, hovers, created_at, embedding
		FROM external_events`

var externalUpcomingColumns = upcomingColumns{
	lastDayExpr: "start_date",
	categoryExpr: func(p string) string {
		return "categories::jsonb ? " + p
	},
}

func scanExternalEvent(row pgx.Row) (*models.ExternalEvent, error) {
	var (
		event models.ExternalEvent
		emb   nullableEmbedding
		lat   *float32
		lng   *float32
	)

	err := row.Scan(
		&event.ID, &event.Title, &event.Slug, &event.Description, &event.Categories, &event.Link,
		&event.Location, &event.IsOnline, &lat, &lng, &event.StartDate, &event.Clicks, &event.Hovers,
		&event.CreatedAt, &emb,
	)
	if err != nil {
		return nil, err
	}

	event.Latitude = widen(lat)
	event.Longitude = widen(lng)
	event.Embedding = emb

	return &event, nil
}

// GetByID retrieves a single external event.
func (r *ExternalEventsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ExternalEvent, error) {
	event, err := scanExternalEvent(r.db.QueryRow(ctx, externalEventSelect+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("external event", "external event not found")
		}

		return nil, fmt.Errorf("failed to get external event: %w", err)
	}

	return event, nil
}

// ListUpcoming returns external events starting on or after filters.From.
func (r *ExternalEventsRepository) ListUpcoming(
	ctx context.Context, filters *models.UpcomingFilters,
) ([]*models.ExternalEvent, error) {
	query, args := buildUpcomingQuery(externalEventSelect, externalUpcomingColumns, filters)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming external events: %w", err)
	}
	defer rows.Close()

	var events []*models.ExternalEvent

	for rows.Next() {
		event, err := scanExternalEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan external event: %w", err)
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating upcoming external events: %w", err)
	}

	return events, nil
}

// UpdateEmbedding sets the embedding vector for an external event. Pass nil to clear it.
func (r *ExternalEventsRepository) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	result, err := r.db.Exec(ctx,
		`UPDATE external_events SET embedding = $1 WHERE id = $2`,
		vectorArg(embedding), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update external event embedding: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("external event", "external event not found")
	}

	return nil
}

// IncrementClicks bumps the click counter and returns the updated event.
func (r *ExternalEventsRepository) IncrementClicks(ctx context.Context, id uuid.UUID) (*models.ExternalEvent, error) {
	return r.increment(ctx, id, "clicks")
}

// IncrementHovers bumps the hover counter and returns the updated event.
func (r *ExternalEventsRepository) IncrementHovers(ctx context.Context, id uuid.UUID) (*models.ExternalEvent, error) {
	return r.increment(ctx, id, "hovers")
}

// increment is only called with the fixed column names above.
func (r *ExternalEventsRepository) increment(ctx context.Context, id uuid.UUID, column string) (*models.ExternalEvent, error) {
	query := fmt.Sprintf(`
		UPDATE external_events SET %[1]s = %[1]s + 1 WHERE id = $1
		RETURNING id, title, slug, description, COALESCE(categories, '[]'::json), link, location, is_online,
			latitude, longitude, start_date, clicks, hovers, created_at, embedding`, column)

	event, err := scanExternalEvent(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("external event", "external event not found")
		}

		return nil, fmt.Errorf("failed to increment external event %s: %w", column, err)
	}

	return event, nil
}

// ListIDsForEmbeddingBackfill returns IDs of external events whose embedding is NULL.
func (r *ExternalEventsRepository) ListIDsForEmbeddingBackfill(ctx context.Context) ([]uuid.UUID, error) {
	return listIDs(ctx, r.db, `SELECT id FROM external_events WHERE embedding IS NULL ORDER BY created_at`)
}
