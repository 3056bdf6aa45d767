package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/ocrs/internal/auth"
	"github.com/example/ocrs/internal/logging"
	"github.com/example/ocrs/internal/usecase"
)

const serviceVersion = "1.0.0"

// framingAllowance is added on top of the base64-expanded image limit so that
// multipart boundaries and JSON fields fit in the body cap.
const framingAllowance = 1 << 20

var supportedFormats = []string{"jpg", "jpeg", "png", "tiff", "bmp"}

var supportedLanguages = []string{"zh-CN", "en-US"}

// Options wires RegisterRoutes to the rest of the service.
type Options struct {
	UseCase *usecase.OCRUseCase
	Logger  *zap.Logger
	// Auth guards the recognition and request log routes when non-nil.
	Auth gin.HandlerFunc
}

// RegisterRoutes wires HTTP routes to handlers.
func RegisterRoutes(router *gin.Engine, opts Options) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &ocrHandler{
		uc:      opts.UseCase,
		decoder: NewRequestDecoder(),
		logger:  logger,
	}

	router.Use(RequestID(), AccessLog(logger), Recovery(logger))
	router.GET("/health", health)

	api := router.Group("/api/v1/ocr")
	api.GET("/info", h.info)

	protected := api.Group("")
	if opts.Auth != nil {
		protected.Use(opts.Auth)
	}
	protected.POST("", LimitBody(BodyLimit(h.uc.MaxImageSize())), h.recognize)
	if h.uc.RequestLogEnabled() {
		protected.GET("/metrics", h.metrics)
		protected.GET("/requests/:id", h.requestLog)
	}
}

// BodyLimit is the largest request body accepted for an image limit of
// maxImageSize. JSON carries the image base64 encoded, so the cap leaves room
// for that expansion.
func BodyLimit(maxImageSize int64) int64 {
	return (maxImageSize+2)/3*4 + framingAllowance
}

// formatMegabytes renders n bytes in MiB with at most two decimals.
func formatMegabytes(n int64) string {
	mb := math.Round(float64(n)/(1<<20)*100) / 100
	return strconv.FormatFloat(mb, 'f', -1, 64) + "MB"
}

type ocrHandler struct {
	uc      *usecase.OCRUseCase
	decoder *RequestDecoder
	logger  *zap.Logger
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *ocrHandler) info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":             "OCR Service",
		"version":             serviceVersion,
		"framework":           "Gin + " + h.uc.EngineName(),
		"engine":              h.uc.EngineName(),
		"supported_formats":   supportedFormats,
		"max_file_size":       formatMegabytes(h.uc.MaxImageSize()),
		"supported_languages": supportedLanguages,
		"endpoints": gin.H{
			"POST /api/v1/ocr":     "Perform OCR on uploaded image",
			"GET /api/v1/ocr/info": "Service information",
			"GET /health":          "Health check",
		},
	})
}

// recognize always answers 200; failures travel in the envelope.
func (h *ocrHandler) recognize(c *gin.Context) {
	requestID := GetRequestID(c)
	logger := logging.WithOperation(h.logger, "handlers.recognize", requestID)
	ctx := c.Request.Context()
	if subject, ok := auth.GetSubject(ctx); ok {
		logger = logger.With(zap.String("subject", subject))
	}

	variant, decoded, err := h.decoder.Decode(c)
	var result *usecase.Result
	if err == nil {
		result, err = h.uc.Process(ctx, requestID, decoded)
	}

	h.uc.RecordOutcome(ctx, usecase.Outcome{
		RequestID:   requestID,
		ContentType: string(variant),
		Image:       decoded.Image,
		Result:      result,
		Err:         err,
	})

	if err != nil {
		kind := usecase.KindOf(err)
		fields := []zap.Field{
			zap.String("kind", kind.String()),
			zap.String("variant", string(variant)),
			zap.Error(err),
		}
		if kind == usecase.KindRecognitionFailed {
			logger.Error("ocr request failed", fields...)
		} else {
			logger.Info("ocr request rejected", fields...)
		}
		c.JSON(http.StatusOK, NewErrorResponse(kind))
		return
	}

	logger.Info("ocr request succeeded",
		zap.String("variant", string(variant)),
		zap.Int("observations", len(result.Observations)),
		zap.Int64("processing_ms", result.ProcessingTimeMs),
	)
	c.JSON(http.StatusOK, NewSuccessResponse(result))
}

func (h *ocrHandler) metrics(c *gin.Context) {
	summary, err := h.uc.GetMetricsSummary(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to aggregate metrics", zap.Error(err), zap.String("request_id", GetRequestID(c)))
		c.JSON(http.StatusInternalServerError, dataResponse{Status: statusError, Error: "failed to load metrics"})
		return
	}
	c.JSON(http.StatusOK, dataResponse{Status: statusSuccess, Data: summary})
}

func (h *ocrHandler) requestLog(c *gin.Context) {
	log, err := h.uc.GetRequestLog(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, dataResponse{Status: statusError, Error: "request not found"})
		return
	case err != nil:
		h.logger.Error("failed to load request log", zap.Error(err), zap.String("request_id", GetRequestID(c)))
		c.JSON(http.StatusInternalServerError, dataResponse{Status: statusError, Error: "failed to load request log"})
		return
	}

	c.JSON(http.StatusOK, dataResponse{Status: statusSuccess, Data: gin.H{
		"request_id":         log.RequestID,
		"content_type":       log.ContentType,
		"status":             log.Status,
		"error_kind":         log.ErrorKind,
		"observation_count":  log.ObservationCount,
		"confidence":         log.Confidence,
		"processing_time_ms": log.ProcessingTimeMs,
		"image_sha1":         log.ImageSHA1,
		"created_at":         log.CreatedAt.UTC().Format(time.RFC3339),
	}})
}
