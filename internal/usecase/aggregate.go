package usecase

import (
	"strings"

	"github.com/example/ocrs/internal/engine"
)

// Result is the assembled outcome of one successful request.
type Result struct {
	Text             string
	Confidence       float32
	ProcessingTimeMs int64
	Observations     []engine.Observation
}

// Aggregate keeps the observations whose confidence is at least threshold
// (all of them when threshold is nil), in engine order, and summarizes them.
// An empty selection yields empty text and a confidence of exactly zero.
func Aggregate(observations []engine.Observation, threshold *float32, processingTimeMs int64) *Result {
	filtered := make([]engine.Observation, 0, len(observations))
	for _, o := range observations {
		if threshold != nil && o.Confidence < *threshold {
			continue
		}
		filtered = append(filtered, o)
	}

	texts := make([]string, len(filtered))
	var sum float64
	for i, o := range filtered {
		texts[i] = o.Text
		sum += float64(o.Confidence)
	}

	var confidence float32
	if len(filtered) > 0 {
		confidence = float32(sum / float64(len(filtered)))
	}

	return &Result{
		Text:             strings.Join(texts, "\n"),
		Confidence:       confidence,
		ProcessingTimeMs: processingTimeMs,
		Observations:     filtered,
	}
}
