package datatypes

import (
	"errors"
	"fmt"
)

// ErrInvalidCandidateSource is returned for an unknown candidate source string.
var ErrInvalidCandidateSource = errors.New("invalid candidate source")

// CandidateSource identifies which table a rankable candidate lives in.
type CandidateSource string

const (
	// SourcePlatform is an event organized on the platform.
	SourcePlatform CandidateSource = "platform"
	// SourceExternal is an event scraped from an external site.
	SourceExternal CandidateSource = "external"
)

// ParseCandidateSource validates s.
func ParseCandidateSource(s string) (CandidateSource, error) {
	switch CandidateSource(s) {
	case SourcePlatform, SourceExternal:
		return CandidateSource(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCandidateSource, s)
	}
}

func (s CandidateSource) String() string {
	return string(s)
}
