package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/ocrs/internal/engine"
	"github.com/example/ocrs/internal/logging"
	"github.com/example/ocrs/internal/repository"
	"github.com/example/ocrs/internal/retry"
)

// RequestLogRepository defines the persistence operations needed by the use case.
type RequestLogRepository interface {
	SaveLog(ctx context.Context, log *repository.RequestLog) error
	FindByRequestID(ctx context.Context, requestID string) (*repository.RequestLog, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// DecodedRequest is the transport-independent form of an OCR request.
type DecodedRequest struct {
	Image      []byte
	Language   *string
	Confidence *float32
}

// Outcome describes a finished request for the request log. Exactly one of
// Result and Err is set.
type Outcome struct {
	RequestID   string
	ContentType string
	Image       []byte
	Result      *Result
	Err         error
}

// ErrRequestLogDisabled is returned by the request-log queries when no
// repository is configured.
var ErrRequestLogDisabled = errors.New("request log is not configured")

// OCRUseCase runs validation, recognition and aggregation for one request.
// Cache and request log are optional.
type OCRUseCase struct {
	recognizer   *Recognizer
	maxImageSize int64
	cache        Cache
	cacheTTL     time.Duration
	repo         RequestLogRepository
	policy       retry.Policy
	logger       *zap.Logger
}

// Option configures optional collaborators.
type Option func(*OCRUseCase)

// WithMaxImageSize overrides DefaultMaxImageSize.
func WithMaxImageSize(n int64) Option {
	return func(uc *OCRUseCase) { uc.maxImageSize = n }
}

// WithCache stores raw engine observations for ttl.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(uc *OCRUseCase) {
		uc.cache = cache
		uc.cacheTTL = ttl
	}
}

// WithRequestLog records every request outcome.
func WithRequestLog(repo RequestLogRepository) Option {
	return func(uc *OCRUseCase) { uc.repo = repo }
}

// NewOCRUseCase constructs a new use case instance.
func NewOCRUseCase(recognizer *Recognizer, logger *zap.Logger, opts ...Option) *OCRUseCase {
	uc := &OCRUseCase{
		recognizer:   recognizer,
		maxImageSize: DefaultMaxImageSize,
		policy:       retry.DefaultPolicy,
		logger:       logger.Named("ocr_usecase"),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// EngineName reports the recognition backend.
func (uc *OCRUseCase) EngineName() string { return uc.recognizer.EngineName() }

// MaxImageSize is the largest accepted image in bytes.
func (uc *OCRUseCase) MaxImageSize() int64 { return uc.maxImageSize }

// RequestLogEnabled reports whether outcomes are persisted.
func (uc *OCRUseCase) RequestLogEnabled() bool { return uc.repo != nil }

// Process validates the image, recognizes it and aggregates the observations.
// Every error it returns is an *Error.
func (uc *OCRUseCase) Process(ctx context.Context, requestID string, req DecodedRequest) (*Result, error) {
	if err := ValidateImage(req.Image, uc.maxImageSize); err != nil {
		return nil, err
	}

	rec, err := uc.recognize(ctx, requestID, req)
	if err != nil {
		return nil, err
	}
	return Aggregate(rec.Observations, req.Confidence, rec.ProcessingTimeMs), nil
}

func (uc *OCRUseCase) recognize(ctx context.Context, requestID string, req DecodedRequest) (*Recognition, error) {
	if uc.cache == nil {
		return uc.recognizer.Recognize(ctx, requestID, req.Image, req.Language)
	}

	opLogger := logging.WithOperation(uc.logger, "usecase.recognize_cached", requestID)
	key := observationCacheKey(ImageDigest(req.Image), req.Language)

	start := time.Now()
	if observations, ok := uc.lookup(ctx, requestID, key); ok {
		elapsed := time.Since(start).Milliseconds()
		opLogger.Debug("observation cache hit", zap.Int("observations", len(observations)))
		return &Recognition{Observations: observations, ProcessingTimeMs: elapsed}, nil
	}

	rec, err := uc.recognizer.Recognize(ctx, requestID, req.Image, req.Language)
	if err != nil {
		return nil, err
	}

	serialized, err := encodeObservations(rec.Observations)
	if err != nil {
		opLogger.Warn("failed to serialize observations", zap.Error(err))
		return rec, nil
	}
	if err := retry.Do(ctx, uc.policy, uc.logger, "cache.set.observations", requestID, func() error {
		return uc.cache.Set(ctx, key, serialized, uc.cacheTTL)
	}); err != nil {
		opLogger.Warn("failed to cache observations", zap.Error(err))
	}
	return rec, nil
}

// lookup never fails the request: misses, cache errors and corrupt entries all
// fall through to the engine.
func (uc *OCRUseCase) lookup(ctx context.Context, requestID, key string) ([]engine.Observation, bool) {
	opLogger := logging.WithOperation(uc.logger, "cache.get.observations", requestID)

	var raw string
	err := retry.Do(ctx, uc.policy, uc.logger, "cache.get.observations", requestID, func() error {
		value, err := uc.cache.Get(ctx, key)
		if err != nil {
			return err
		}
		raw = value
		return nil
	})
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			opLogger.Warn("failed to read cache", zap.Error(err))
		}
		return nil, false
	}

	observations, err := decodeObservations(raw)
	if err != nil {
		opLogger.Warn("failed to decode cached observations", zap.Error(err))
		return nil, false
	}
	return observations, true
}

// RecordOutcome persists the outcome when a request log is configured.
// Persistence problems are logged and never reach the client; the write is
// detached from the request context so a disconnect does not drop it.
func (uc *OCRUseCase) RecordOutcome(ctx context.Context, outcome Outcome) {
	if uc.repo == nil {
		return
	}

	log := &repository.RequestLog{
		RequestID:   outcome.RequestID,
		ContentType: outcome.ContentType,
		CreatedAt:   time.Now().UTC(),
	}
	if len(outcome.Image) > 0 {
		log.ImageSHA1 = ImageDigest(outcome.Image)
	}
	if outcome.Err != nil {
		log.Status = "error"
		log.ErrorKind = KindOf(outcome.Err).String()
	} else if outcome.Result != nil {
		log.Status = "success"
		log.ObservationCount = len(outcome.Result.Observations)
		log.Confidence = outcome.Result.Confidence
		log.ProcessingTimeMs = outcome.Result.ProcessingTimeMs
	}

	if err := uc.repo.SaveLog(context.WithoutCancel(ctx), log); err != nil {
		logging.WithOperation(uc.logger, "usecase.record_outcome", outcome.RequestID).
			Warn("failed to persist request log", zap.Error(err))
	}
}

// GetRequestLog returns the stored outcome of one request.
func (uc *OCRUseCase) GetRequestLog(ctx context.Context, requestID string) (*repository.RequestLog, error) {
	if uc.repo == nil {
		return nil, ErrRequestLogDisabled
	}
	return uc.repo.FindByRequestID(ctx, requestID)
}
