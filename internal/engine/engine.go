// Package engine defines the contract between the OCR pipeline and a text
// recognition backend. Engines report through a completion callback and may
// finish on their own goroutines.
package engine

import "context"

// Accuracy trades recognition speed for precision.
type Accuracy string

const (
	AccuracyFast     Accuracy = "fast"
	AccuracyAccurate Accuracy = "accurate"
)

// BoundingBox is a rectangle normalized to the image size, so every field is
// in [0,1]. The origin corner is whatever the engine uses.
type BoundingBox struct {
	X      float32
	Y      float32
	Width  float32
	Height float32
}

// Observation is one recognized text region.
type Observation struct {
	Text        string
	Confidence  float32
	BoundingBox BoundingBox
}

// Request is a single recognition call.
type Request struct {
	Image              []byte
	Languages          []string
	Accuracy           Accuracy
	LanguageCorrection bool
}

// Status tags an Outcome.
type Status int

const (
	StatusRecognized Status = iota
	StatusCannotParseImage
	StatusInternalFailure
)

func (s Status) String() string {
	switch s {
	case StatusRecognized:
		return "recognized"
	case StatusCannotParseImage:
		return "cannot_parse_image"
	case StatusInternalFailure:
		return "internal_failure"
	default:
		return "unknown"
	}
}

// Outcome is what an engine delivers to its completion callback. Only
// StatusRecognized carries observations; the failure statuses carry Err.
type Outcome struct {
	Status       Status
	Observations []Observation
	Err          error
}

// Recognized builds a successful outcome. An empty slice is still a success;
// deciding what "no text" means is up to the caller.
func Recognized(observations []Observation) Outcome {
	return Outcome{Status: StatusRecognized, Observations: observations}
}

// CannotParseImage reports bytes the engine could not read as an image.
func CannotParseImage(err error) Outcome {
	return Outcome{Status: StatusCannotParseImage, Err: err}
}

// InternalFailure reports any other engine error.
func InternalFailure(err error) Outcome {
	return Outcome{Status: StatusInternalFailure, Err: err}
}

// Completion receives the result of a Recognize call.
type Completion func(Outcome)

// Engine is a stateless recognition backend shared by all requests.
//
// Recognize must eventually call done, at most once, either before returning
// or from another goroutine. Implementations must not keep per-call state on
// the Engine value.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, req Request, done Completion)
}
