package usecase

import (
	"errors"
	"fmt"
)

// Kind classifies every way a request can fail. Each kind has a fixed
// client-facing message; anything else about the failure stays in the logs.
type Kind int

const (
	KindMissingContentType Kind = iota + 1
	KindUnsupportedMediaType
	KindMalformedMultipart
	KindMalformedJSON
	KindMissingImageField
	KindInvalidEncoding
	KindEmptyImage
	KindImageTooLarge
	KindInvalidImageFormat
	KindNoTextFound
	KindRecognitionFailed
)

var kindNames = map[Kind]string{
	KindMissingContentType:   "missing_content_type",
	KindUnsupportedMediaType: "unsupported_media_type",
	KindMalformedMultipart:   "malformed_multipart",
	KindMalformedJSON:        "malformed_json",
	KindMissingImageField:    "missing_image_field",
	KindInvalidEncoding:      "invalid_encoding",
	KindEmptyImage:           "empty_image",
	KindImageTooLarge:        "image_too_large",
	KindInvalidImageFormat:   "invalid_image_format",
	KindNoTextFound:          "no_text_found",
	KindRecognitionFailed:    "recognition_failed",
}

var kindMessages = map[Kind]string{
	KindMissingContentType:   "Missing Content-Type header",
	KindUnsupportedMediaType: "Unsupported Content-Type. Use multipart/form-data, application/octet-stream or application/json",
	KindMalformedMultipart:   "Invalid multipart form data",
	KindMalformedJSON:        "Invalid JSON request body",
	KindMissingImageField:    "Missing image data in JSON",
	KindInvalidEncoding:      "Invalid base64 image data in JSON",
	KindEmptyImage:           "Empty image data",
	KindImageTooLarge:        "Image too large (max 10MB)",
	KindInvalidImageFormat:   "Invalid image format",
	KindNoTextFound:          "No text found in image",
	KindRecognitionFailed:    "OCR processing failed",
}

// String returns a stable snake_case identifier for logs and the request log.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Message returns the text sent to clients. Unknown kinds get the generic
// recognition failure message.
func (k Kind) Message() string {
	if msg, ok := kindMessages[k]; ok {
		return msg
	}
	return kindMessages[KindRecognitionFailed]
}

// Error is a classified pipeline failure. Err holds the detail for logging.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// NewError classifies err (which may be nil) as kind.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the classification of err. Errors that were never classified
// are internal and count as KindRecognitionFailed.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindRecognitionFailed
}
