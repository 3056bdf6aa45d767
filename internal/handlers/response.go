package handlers

import "github.com/example/ocrs/internal/usecase"

const (
	statusSuccess = "success"
	statusError   = "error"
)

// BoundingBoxResponse is one recognized line in normalized image coordinates.
type BoundingBoxResponse struct {
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
	X          float32 `json:"x"`
	Y          float32 `json:"y"`
	Width      float32 `json:"width"`
	Height     float32 `json:"height"`
}

// OCRData is the payload of a successful recognition.
type OCRData struct {
	Text           string                `json:"text"`
	Confidence     float32               `json:"confidence"`
	ProcessingTime int64                 `json:"processingTime"`
	BoundingBoxes  []BoundingBoxResponse `json:"boundingBoxes"`
}

// OCRResponse is the envelope returned for every recognition request.
// Exactly one of Data and Error is set.
type OCRResponse struct {
	Status string   `json:"status"`
	Data   *OCRData `json:"data,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// NewSuccessResponse converts a pipeline result into the wire envelope.
func NewSuccessResponse(result *usecase.Result) OCRResponse {
	boxes := make([]BoundingBoxResponse, 0, len(result.Observations))
	for _, obs := range result.Observations {
		boxes = append(boxes, BoundingBoxResponse{
			Text:       obs.Text,
			Confidence: obs.Confidence,
			X:          obs.BoundingBox.X,
			Y:          obs.BoundingBox.Y,
			Width:      obs.BoundingBox.Width,
			Height:     obs.BoundingBox.Height,
		})
	}
	return OCRResponse{
		Status: statusSuccess,
		Data: &OCRData{
			Text:           result.Text,
			Confidence:     result.Confidence,
			ProcessingTime: result.ProcessingTimeMs,
			BoundingBoxes:  boxes,
		},
	}
}

// NewErrorResponse carries only the fixed client message for kind.
func NewErrorResponse(kind usecase.Kind) OCRResponse {
	return OCRResponse{Status: statusError, Error: kind.Message()}
}

type dataResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}
