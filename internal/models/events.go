package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus mirrors the lifecycle column of platform events.
type EventStatus string

// Event statuses. Only published events are ranked.
const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusCancelled EventStatus = "cancelled"
)

// Segment is a sub-session of a platform event; its text is appended to the event's embedding text.
type Segment struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CategoryID  *string   `json:"category_id,omitempty"`
}

// Event is a platform event as seen by the relevance engine.
type Event struct {
	ID          uuid.UUID   `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Categories  []string    `json:"categories,omitempty"`
	Segments    []Segment   `json:"segments,omitempty"`
	Status      EventStatus `json:"status"`
	IsOnline    bool        `json:"is_online"`
	Latitude    *float64    `json:"latitude,omitempty"`
	Longitude   *float64    `json:"longitude,omitempty"`
	StartDate   time.Time   `json:"start_date"`
	EndDate     *time.Time  `json:"end_date,omitempty"`
	Embedding   []float32   `json:"-"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// SegmentTexts returns the segment lines appended after the description when embedding.
func (e *Event) SegmentTexts() []string {
	out := make([]string, 0, len(e.Segments)*3)
	for _, s := range e.Segments {
		out = append(out, s.Name, s.Description)
		if s.CategoryID != nil {
			out = append(out, *s.CategoryID)
		}
	}

	return out
}

// EmbeddingText is the text the event's embedding is generated from.
func (e *Event) EmbeddingText() string {
	return EmbeddingText(e.Title, e.Categories, e.Description, e.SegmentTexts()...)
}

// ExternalEvent is an event scraped from another site.
type ExternalEvent struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description,omitempty"`
	Categories  []string  `json:"categories,omitempty"`
	Link        string    `json:"link"`
	Location    *string   `json:"location,omitempty"`
	IsOnline    bool      `json:"is_online"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	StartDate   time.Time `json:"start_date"`
	Clicks      int64     `json:"clicks"`
	Hovers      int64     `json:"hovers"`
	Embedding   []float32 `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// EmbeddingText is the text the external event's embedding is generated from.
func (e *ExternalEvent) EmbeddingText() string {
	description := ""
	if e.Description != nil {
		description = *e.Description
	}

	return EmbeddingText(e.Title, e.Categories, description)
}

// MissingEmbedding identifies a candidate row whose embedding has not been generated.
type MissingEmbedding struct {
	ID uuid.UUID
}

// UpcomingFilters narrows the candidate listing used by ranking.
type UpcomingFilters struct {
	// From is the first day still considered upcoming; events ending before it are skipped.
	From time.Time
	// Limit caps the rows loaded; 0 means no limit.
	Limit int
	// WithEmbeddingOnly skips candidates whose embedding has not been generated yet.
	WithEmbeddingOnly bool
	// Category keeps only candidates tagged with it.
	Category *string
}
