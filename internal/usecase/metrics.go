package usecase

import "context"

// MetricsSummary represents aggregated request insights.
type MetricsSummary struct {
	TotalRequests           int64   `json:"total_requests"`
	SuccessfulRequests      int64   `json:"successful_requests"`
	SuccessRate             float64 `json:"success_rate"`
	AverageConfidence       float64 `json:"average_confidence"`
	AverageProcessingTimeMs float64 `json:"average_processing_time_ms"`
}

// GetMetricsSummary aggregates request metrics from persisted logs.
func (uc *OCRUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	if uc.repo == nil {
		return nil, ErrRequestLogDisabled
	}
	aggregation, err := uc.repo.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalRequests:           aggregation.TotalCount,
		SuccessfulRequests:      aggregation.SuccessCount,
		AverageConfidence:       aggregation.AverageConfidence,
		AverageProcessingTimeMs: aggregation.AverageProcessingTimeMs,
	}

	if aggregation.TotalCount > 0 {
		summary.SuccessRate = float64(aggregation.SuccessCount) / float64(aggregation.TotalCount)
	}

	return summary, nil
}
