package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/ocrs/internal/engine"
	"github.com/example/ocrs/internal/logging"
)

// DefaultLanguages are evaluated when the request carries no language hint;
// the engine picks the best match per region.
var DefaultLanguages = []string{"zh-CN", "en-US"}

// Recognition is the raw engine result for one request.
type Recognition struct {
	Observations     []engine.Observation
	ProcessingTimeMs int64
}

// Recognizer turns the engine's completion callback into a plain call that
// returns once, and classifies engine failures.
type Recognizer struct {
	engine  engine.Engine
	timeout time.Duration
	logger  *zap.Logger
}

// NewRecognizer wraps e. A zero timeout waits for the engine indefinitely.
func NewRecognizer(e engine.Engine, timeout time.Duration, logger *zap.Logger) *Recognizer {
	return &Recognizer{
		engine:  e,
		timeout: timeout,
		logger:  logger.Named("recognizer"),
	}
}

// EngineName reports which backend is in use.
func (r *Recognizer) EngineName() string { return r.engine.Name() }

// Recognize runs the engine in accurate mode with language correction. A nil
// language uses DefaultLanguages. Zero observations are reported as
// KindNoTextFound.
func (r *Recognizer) Recognize(ctx context.Context, requestID string, image []byte, language *string) (*Recognition, error) {
	opLogger := logging.WithOperation(r.logger, "usecase.recognize", requestID)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	req := engine.Request{
		Image:              image,
		Languages:          languagesFor(language),
		Accuracy:           engine.AccuracyAccurate,
		LanguageCorrection: true,
	}

	start := time.Now()
	outcome, err := settle(ctx, r.engine, req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		wrapped := logging.NewOperationError("usecase.recognize", requestID, err)
		opLogger.Warn("stopped waiting for engine", zap.Error(wrapped), zap.Int64("elapsed_ms", elapsed))
		return nil, NewError(KindRecognitionFailed, wrapped)
	}

	switch outcome.Status {
	case engine.StatusRecognized:
		if len(outcome.Observations) == 0 {
			return nil, NewError(KindNoTextFound, nil)
		}
		opLogger.Debug("engine settled",
			zap.Int("observations", len(outcome.Observations)),
			zap.Int64("processing_ms", elapsed),
		)
		return &Recognition{Observations: outcome.Observations, ProcessingTimeMs: elapsed}, nil
	case engine.StatusCannotParseImage:
		opLogger.Info("engine could not parse image", zap.Error(outcome.Err))
		return nil, NewError(KindInvalidImageFormat, outcome.Err)
	case engine.StatusInternalFailure:
		wrapped := logging.NewOperationError("engine."+r.engine.Name(), requestID, outcome.Err)
		opLogger.Error("engine failed", zap.Error(wrapped))
		return nil, NewError(KindRecognitionFailed, wrapped)
	default:
		err := fmt.Errorf("engine %s returned unknown status %d", r.engine.Name(), outcome.Status)
		opLogger.Error("engine failed", zap.Error(err))
		return nil, NewError(KindRecognitionFailed, err)
	}
}

// settle dispatches req and waits for the first completion. The slot has room
// for exactly one outcome and is written at most once, so a late or repeated
// callback never blocks the engine and never reaches the caller twice. When
// ctx ends first the slot is simply dropped and collected with the closure.
func settle(ctx context.Context, e engine.Engine, req engine.Request) (engine.Outcome, error) {
	slot := make(chan engine.Outcome, 1)
	var once sync.Once
	e.Recognize(ctx, req, func(o engine.Outcome) {
		once.Do(func() { slot <- o })
	})

	select {
	case o := <-slot:
		return o, nil
	case <-ctx.Done():
		return engine.Outcome{}, ctx.Err()
	}
}

func languagesFor(language *string) []string {
	if language != nil && *language != "" {
		return []string{*language}
	}
	return append([]string(nil), DefaultLanguages...)
}
