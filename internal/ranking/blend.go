package ranking

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/eventscape/relevance/internal/apperrors"
	"github.com/eventscape/relevance/pkg/geo"
)

// ReferenceKind says where the similarity reference vector came from.
type ReferenceKind uint8

const (
	// ReferenceNone means no semantic ordering.
	ReferenceNone ReferenceKind = iota
	// ReferenceQuery is the embedding of an explicit search text.
	ReferenceQuery
	// ReferenceInterest is the requester's stored interest vector.
	ReferenceInterest
)

func (k ReferenceKind) String() string {
	switch k {
	case ReferenceQuery:
		return "query"
	case ReferenceInterest:
		return "interest"
	default:
		return "none"
	}
}

// Ordering modes reported to callers.
const (
	ModeQuery     = "query"
	ModeInterest  = "interest"
	ModeProximity = "proximity"
	ModeRecency   = "recency"
)

// Request carries the per-call ranking inputs.
type Request struct {
	Reference     []float32
	ReferenceKind ReferenceKind
	Location      *geo.Point
	RadiusKm      *float64
	// Now excludes candidates whose validity window has ended. Zero disables the check.
	Now time.Time
}

// Validate checks the requester's coordinates and radius.
func (r Request) Validate() error {
	if r.Location != nil {
		if err := r.Location.Validate(); err != nil {
			return apperrors.NewValidationError("location", err.Error())
		}
	}

	if r.RadiusKm != nil && (math.IsNaN(*r.RadiusKm) || *r.RadiusKm < 0) {
		return apperrors.NewValidationError("radius_km", "radius must be a non-negative number")
	}

	return nil
}

// semantic reports whether the request carries a usable reference vector.
func (r Request) semantic() bool {
	return r.ReferenceKind != ReferenceNone && len(r.Reference) > 0
}

// Mode names the ordering the request produces.
func (r Request) Mode() string {
	switch {
	case r.semantic() && r.ReferenceKind == ReferenceQuery:
		return ModeQuery
	case r.semantic():
		return ModeInterest
	case r.Location != nil:
		return ModeProximity
	default:
		return ModeRecency
	}
}

// Result is one ranked candidate. Similarity and Score are nil when no semantic score applies;
// DistanceKm is nil when either side lacks coordinates.
type Result struct {
	Item       Rankable `json:"-"`
	Similarity *float64 `json:"similarity,omitempty"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
	Score      *float64 `json:"score,omitempty"`
}

// Scorer computes blended relevance.
type Scorer struct {
	Weights Weights
}

// NewScorer creates a Scorer with the given weights.
func NewScorer(w Weights) *Scorer {
	return &Scorer{Weights: w}
}

// Score evaluates one candidate. It reports false when the candidate is excluded: expired,
// outside the radius, or below the similarity floor of a query.
func (s *Scorer) Score(c Rankable, req Request) (Result, bool) {
	if sch, ok := c.(Scheduled); ok && !req.Now.IsZero() && sch.ActiveUntil().Before(req.Now) {
		return Result{}, false
	}

	res := Result{Item: c}

	if req.Location != nil {
		if at, ok := c.Location(); ok {
			d := geo.DistanceKm(*req.Location, at)
			res.DistanceKm = &d
		}
	}

	if req.RadiusKm != nil && res.DistanceKm != nil && *res.DistanceKm > *req.RadiusKm {
		return Result{}, false
	}

	if !req.semantic() {
		return res, true
	}

	sim, ok := similarity(req.Reference, c)

	if req.ReferenceKind == ReferenceQuery && (!ok || sim <= s.Weights.Threshold) {
		return Result{}, false
	}

	if ok {
		score := s.Weights.Blend(sim, res.DistanceKm)
		res.Similarity = &sim
		res.Score = &score
	}

	return res, true
}

// Order scores every candidate and returns the survivors best first: scored before unscored,
// then score descending, distance ascending, newest first and ID ascending.
func (s *Scorer) Order(candidates []Rankable, req Request) []Result {
	out := make([]Result, 0, len(candidates))

	for _, c := range candidates {
		if res, ok := s.Score(c, req); ok {
			out = append(out, res)
		}
	}

	slices.SortStableFunc(out, compareResults)

	return out
}

func compareResults(a, b Result) int {
	if c := compareDesc(a.Score, b.Score); c != 0 {
		return c
	}

	if c := compareAsc(a.DistanceKm, b.DistanceKm); c != 0 {
		return c
	}

	return compareRecency(a.Item, b.Item)
}

// compareDesc puts present values first, larger before smaller.
func compareDesc(a, b *float64) int {
	switch {
	case a != nil && b != nil:
		return cmp.Compare(*b, *a)
	case a != nil:
		return -1
	case b != nil:
		return 1
	default:
		return 0
	}
}

// compareAsc puts present values first, smaller before larger.
func compareAsc(a, b *float64) int {
	switch {
	case a != nil && b != nil:
		return cmp.Compare(*a, *b)
	case a != nil:
		return -1
	case b != nil:
		return 1
	default:
		return 0
	}
}

// Page returns the window [offset, offset+limit) of items. A non-positive limit means no limit.
func Page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}

	if offset >= len(items) {
		return []T{}
	}

	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	return items
}
