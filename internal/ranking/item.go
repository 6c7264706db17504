// Package ranking orders candidate events by semantic similarity, distance and recency.
//
// Platform events and external events are ranked through the same Rankable interface; the
// adapters in this file map each stored shape onto it.
package ranking

import (
	"time"

	"github.com/google/uuid"

	"github.com/eventscape/relevance/internal/datatypes"
	"github.com/eventscape/relevance/internal/models"
	"github.com/eventscape/relevance/pkg/geo"
)

// Rankable is anything the scorer can order.
type Rankable interface {
	RankID() uuid.UUID
	// Embedding returns nil when the candidate has not been embedded yet.
	Embedding() []float32
	// Location reports false when the candidate has no usable coordinates.
	Location() (geo.Point, bool)
	CreatedAt() time.Time
}

// Scheduled is implemented by candidates with a validity window.
type Scheduled interface {
	// ActiveUntil is the last instant the candidate is still relevant.
	ActiveUntil() time.Time
}

// Sourced is implemented by candidates backed by a stored event.
type Sourced interface {
	Source() datatypes.CandidateSource
}

// PlatformItem adapts a platform event.
type PlatformItem struct {
	Event *models.Event
}

// PlatformEvent wraps e for ranking.
func PlatformEvent(e *models.Event) PlatformItem {
	return PlatformItem{Event: e}
}

// PlatformEvents wraps every event.
func PlatformEvents(events []*models.Event) []Rankable {
	out := make([]Rankable, 0, len(events))
	for _, e := range events {
		out = append(out, PlatformEvent(e))
	}

	return out
}

func (p PlatformItem) RankID() uuid.UUID                 { return p.Event.ID }
func (p PlatformItem) Embedding() []float32              { return p.Event.Embedding }
func (p PlatformItem) CreatedAt() time.Time              { return p.Event.CreatedAt }
func (p PlatformItem) Source() datatypes.CandidateSource { return datatypes.SourcePlatform }
func (p PlatformItem) Location() (geo.Point, bool)       { return point(p.Event.Latitude, p.Event.Longitude) }

// ActiveUntil is the end of the event's last day.
func (p PlatformItem) ActiveUntil() time.Time {
	last := p.Event.StartDate
	if p.Event.EndDate != nil {
		last = *p.Event.EndDate
	}

	return endOfDay(last)
}

// ExternalItem adapts an externally scraped event.
type ExternalItem struct {
	Event *models.ExternalEvent
}

// ExternalEvent wraps e for ranking.
func ExternalEvent(e *models.ExternalEvent) ExternalItem {
	return ExternalItem{Event: e}
}

// ExternalEvents wraps every event.
func ExternalEvents(events []*models.ExternalEvent) []Rankable {
	out := make([]Rankable, 0, len(events))
	for _, e := range events {
		out = append(out, ExternalEvent(e))
	}

	return out
}

func (x ExternalItem) RankID() uuid.UUID                 { return x.Event.ID }
func (x ExternalItem) Embedding() []float32              { return x.Event.Embedding }
func (x ExternalItem) CreatedAt() time.Time              { return x.Event.CreatedAt }
func (x ExternalItem) Source() datatypes.CandidateSource { return datatypes.SourceExternal }
func (x ExternalItem) Location() (geo.Point, bool)       { return point(x.Event.Latitude, x.Event.Longitude) }

// ActiveUntil is the end of the event's start day; external events carry no end date.
func (x ExternalItem) ActiveUntil() time.Time {
	return endOfDay(x.Event.StartDate)
}

func point(lat, lng *float64) (geo.Point, bool) {
	if lat == nil || lng == nil {
		return geo.Point{}, false
	}

	p, err := geo.NewPoint(*lat, *lng)
	if err != nil {
		return geo.Point{}, false
	}

	return p, true
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()

	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

var (
	_ Scheduled = PlatformItem{}
	_ Scheduled = ExternalItem{}
	_ Sourced   = PlatformItem{}
	_ Sourced   = ExternalItem{}
)
