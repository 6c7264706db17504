// Package datatypes defines shared enums for interaction signals and ranking candidates.
package datatypes

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInteractionKind is returned when a string does not name a known interaction kind.
var ErrInvalidInteractionKind = errors.New("invalid interaction kind")

// InteractionKind tags an interaction signal for weighting, logging and metrics.
// Use String() to get the representation stored in job args and metric labels.
type InteractionKind uint8

// Interaction kinds; string form is given in interactionKindMap.
const (
	InteractionRegistration InteractionKind = iota + 1
	InteractionBookmark
	InteractionExternalClick
	InteractionCustom
)

// interactionKindMap is the single source of truth for valid interaction kind strings.
var interactionKindMap = map[string]InteractionKind{
	"registration":   InteractionRegistration,
	"bookmark":       InteractionBookmark,
	"external_click": InteractionExternalClick,
	"custom":         InteractionCustom,
}

var reverseInteractionKindMap map[InteractionKind]string

func init() {
	reverseInteractionKindMap = make(map[InteractionKind]string, len(interactionKindMap))
	for str, kind := range interactionKindMap {
		reverseInteractionKindMap[kind] = str
	}
}

// String returns the string representation of an InteractionKind.
// Returns empty string for invalid kinds.
func (k InteractionKind) String() string {
	return reverseInteractionKindMap[k]
}

// Valid reports whether k is a known kind.
func (k InteractionKind) Valid() bool {
	_, ok := reverseInteractionKindMap[k]

	return ok
}

// MarshalText implements encoding.TextMarshaler so kinds travel as strings in job args.
func (k InteractionKind) MarshalText() ([]byte, error) {
	s, ok := reverseInteractionKindMap[k]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidInteractionKind, k)
	}

	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *InteractionKind) UnmarshalText(b []byte) error {
	parsed, err := ParseInteractionKind(string(b))
	if err != nil {
		return err
	}

	*k = parsed

	return nil
}

// ParseInteractionKind converts a string (case-insensitive) to an InteractionKind.
func ParseInteractionKind(s string) (InteractionKind, error) {
	k, ok := interactionKindMap[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInteractionKind, s)
	}

	return k, nil
}

// Canonical weights: completing a costly action pulls the interest vector harder than a click.
const (
	DefaultRegistrationWeight  = 0.5
	DefaultBookmarkWeight      = 0.3
	DefaultExternalClickWeight = 0.1
)

// InteractionWeights maps each kind to the blend weight applied to its embedding.
type InteractionWeights struct {
	Registration  float64
	Bookmark      float64
	ExternalClick float64
}

// DefaultInteractionWeights returns the canonical weights.
func DefaultInteractionWeights() InteractionWeights {
	return InteractionWeights{
		Registration:  DefaultRegistrationWeight,
		Bookmark:      DefaultBookmarkWeight,
		ExternalClick: DefaultExternalClickWeight,
	}
}

// For returns the weight for kind. Custom and unknown kinds have no canonical weight.
func (w InteractionWeights) For(kind InteractionKind) (float64, bool) {
	switch kind {
	case InteractionRegistration:
		return w.Registration, true
	case InteractionBookmark:
		return w.Bookmark, true
	case InteractionExternalClick:
		return w.ExternalClick, true
	case InteractionCustom:
		return 0, false
	default:
		return 0, false
	}
}
