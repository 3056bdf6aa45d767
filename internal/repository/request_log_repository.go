package repository

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/ocrs/internal/retry"
)

// RequestLog is one audited POST /api/v1/ocr call. It never stores image
// bytes or recognized text, only the outcome.
type RequestLog struct {
	ID               uint      `gorm:"primaryKey"`
	RequestID        string    `gorm:"column:request_id;uniqueIndex;size:64"`
	ContentType      string    `gorm:"column:content_type;size:32"`
	Status           string    `gorm:"column:status;size:16;index"`
	ErrorKind        string    `gorm:"column:error_kind;size:64"`
	ObservationCount int       `gorm:"column:observation_count"`
	Confidence       float32   `gorm:"column:confidence"`
	ProcessingTimeMs int64     `gorm:"column:processing_time_ms"`
	ImageSHA1        string    `gorm:"column:image_sha1;size:40;index"`
	CreatedAt        time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (RequestLog) TableName() string {
	return "ocr_request_logs"
}

// MetricsAggregation is the raw aggregate over all request logs. The averages
// only cover successful requests.
type MetricsAggregation struct {
	TotalCount              int64
	SuccessCount            int64
	AverageConfidence       float64
	AverageProcessingTimeMs float64
}

// RequestLogRepository persists request logs through gorm.
type RequestLogRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	policy retry.Policy
}

// NewRequestLogRepository creates a new repository instance.
func NewRequestLogRepository(db *gorm.DB, logger *zap.Logger) *RequestLogRepository {
	return &RequestLogRepository{
		db:     db,
		logger: logger.Named("request_log_repository"),
		policy: retry.DefaultPolicy,
	}
}

// AutoMigrate ensures the schema is available.
func (r *RequestLogRepository) AutoMigrate(ctx context.Context) error {
	return r.executeWithRetry(ctx, "repository.auto_migrate", "", func() error {
		return r.db.WithContext(ctx).AutoMigrate(&RequestLog{})
	})
}

// SaveLog persists a request log entry.
func (r *RequestLogRepository) SaveLog(ctx context.Context, log *RequestLog) error {
	return r.executeWithRetry(ctx, "repository.save_log", log.RequestID, func() error {
		return r.db.WithContext(ctx).Create(log).Error
	})
}

// FindByRequestID retrieves the log for one request.
func (r *RequestLogRepository) FindByRequestID(ctx context.Context, requestID string) (*RequestLog, error) {
	var log RequestLog
	err := r.executeWithRetry(ctx, "repository.find_by_request_id", requestID, func() error {
		return r.db.WithContext(ctx).First(&log, "request_id = ?", requestID).Error
	})
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// AggregateMetrics summarizes every stored request.
func (r *RequestLogRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	var agg MetricsAggregation
	err := r.executeWithRetry(ctx, "repository.aggregate_metrics", "", func() error {
		return r.db.WithContext(ctx).
			Model(&RequestLog{}).
			Select(`COUNT(*) AS total_count,
				COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0) AS success_count,
				COALESCE(AVG(CASE WHEN status = 'success' THEN confidence END), 0) AS average_confidence,
				COALESCE(AVG(CASE WHEN status = 'success' THEN processing_time_ms END), 0) AS average_processing_time_ms`).
			Scan(&agg).Error
	})
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

func (r *RequestLogRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	return retry.Do(ctx, r.policy, r.logger, operation, requestID, fn)
}
