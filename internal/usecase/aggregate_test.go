package usecase

import (
	"math"
	"testing"

	"github.com/example/ocrs/internal/engine"
)

func float32Ptr(f float32) *float32 { return &f }

func approxEqual(a, b float32) bool {
	return math.Abs(float64(a)-float64(b)) < 1e-6
}

func TestAggregateWithoutThreshold(t *testing.T) {
	res := Aggregate(helloWorld, nil, 12)
	if res.Text != "Hello\nWorld" {
		t.Fatalf("unexpected text: %q", res.Text)
	}
	if !approxEqual(res.Confidence, 0.85) {
		t.Fatalf("expected confidence 0.85, got %v", res.Confidence)
	}
	if res.ProcessingTimeMs != 12 {
		t.Fatalf("unexpected processing time: %d", res.ProcessingTimeMs)
	}
	if len(res.Observations) != 2 {
		t.Fatalf("expected all observations, got %d", len(res.Observations))
	}
}

func TestAggregateThresholdIsInclusiveAndKeepsOrder(t *testing.T) {
	observations := []engine.Observation{
		{Text: "c", Confidence: 0.7},
		{Text: "a", Confidence: 0.3},
		{Text: "b", Confidence: 0.5},
		{Text: "d", Confidence: 0.5},
	}
	res := Aggregate(observations, float32Ptr(0.5), 0)
	if res.Text != "c\nb\nd" {
		t.Fatalf("unexpected text: %q", res.Text)
	}
	for _, o := range res.Observations {
		if o.Confidence < 0.5 {
			t.Fatalf("observation below threshold kept: %+v", o)
		}
	}
	if !approxEqual(res.Confidence, (0.7+0.5+0.5)/3) {
		t.Fatalf("unexpected mean: %v", res.Confidence)
	}
}

func TestAggregateEmptySelection(t *testing.T) {
	res := Aggregate(helloWorld, float32Ptr(0.95), 3)
	if res.Text != "" {
		t.Fatalf("expected empty text, got %q", res.Text)
	}
	if res.Confidence != 0 {
		t.Fatalf("expected confidence exactly 0, got %v", res.Confidence)
	}
	if res.Observations == nil || len(res.Observations) != 0 {
		t.Fatalf("expected empty non-nil observations, got %#v", res.Observations)
	}
}

func TestAggregateZeroThresholdKeepsEverything(t *testing.T) {
	observations := []engine.Observation{{Text: "x", Confidence: 0}}
	res := Aggregate(observations, float32Ptr(0), 0)
	if len(res.Observations) != 1 || res.Confidence != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}
