package core

import (
	"fmt"
	"strings"
)

// NextStep is the routing decision proposed by answer evaluation.
type NextStep int

const (
	// StepFinish ends the session successfully.
	StepFinish NextStep = iota + 1
	// StepRetriever re-runs retrieval against the store.
	StepRetriever
	// StepWebSearch plans new web searches.
	StepWebSearch
	// StepCrawlContexts follows links found inside the evidence.
	StepCrawlContexts
)

var nextStepNames = map[NextStep]string{
	StepFinish:        "finish",
	StepRetriever:     "retriever",
	StepWebSearch:     "web_search",
	StepCrawlContexts: "crawl_contexts",
}

func (s NextStep) String() string {
	if name, ok := nextStepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("NextStep(%d)", int(s))
}

// ParseNextStep converts the oracle's wire value into a NextStep.
// Anything outside the four known steps is rejected.
func ParseNextStep(s string) (NextStep, error) {
	v := normalizeToken(s)
	for step, name := range nextStepNames {
		if name == v {
			return step, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidNextStep, s)
}

// Rating is the evaluator's satisfaction tier for an answer.
type Rating int

const (
	RatingHighlySatisfactory Rating = iota + 1
	RatingSatisfactory
	RatingUnsatisfactory
	RatingHighlyUnsatisfactory
)

var ratingNames = map[Rating]string{
	RatingHighlySatisfactory:   "highly_satisfactory",
	RatingSatisfactory:         "satisfactory",
	RatingUnsatisfactory:       "unsatisfactory",
	RatingHighlyUnsatisfactory: "highly_unsatisfactory",
}

func (r Rating) String() string {
	if name, ok := ratingNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// ParseRating converts the oracle's wire value into a Rating.
// "highly unsatisfactory" and "highly_unsatisfactory" are equivalent.
func ParseRating(s string) (Rating, error) {
	v := normalizeToken(s)
	for rating, name := range ratingNames {
		if name == v {
			return rating, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRating, s)
}

// Complexity is the oracle's estimate of how much research a question needs.
type Complexity int

const (
	ComplexitySimple Complexity = iota + 1
	ComplexityModerate
	ComplexityComplex
)

func (c Complexity) String() string {
	switch c {
	case ComplexitySimple:
		return "simple"
	case ComplexityModerate:
		return "moderate"
	case ComplexityComplex:
		return "complex"
	default:
		return "unknown"
	}
}

// ParseComplexity is lenient: unrecognized values map to ComplexityModerate.
func ParseComplexity(s string) Complexity {
	switch normalizeToken(s) {
	case "simple":
		return ComplexitySimple
	case "complex":
		return ComplexityComplex
	default:
		return ComplexityModerate
	}
}

func normalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "_")
}
