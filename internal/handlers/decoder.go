package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/example/ocrs/internal/usecase"
)

// Variant names the transport encoding of an OCR request.
type Variant string

const (
	VariantMultipart   Variant = "multipart"
	VariantOctetStream Variant = "octet-stream"
	VariantJSON        Variant = "json"
)

type decodeStrategy interface {
	variant() Variant
	decode(c *gin.Context) (usecase.DecodedRequest, error)
}

// RequestDecoder picks a decoding strategy by media type. Parameters such as
// charset or boundary do not take part in the lookup.
type RequestDecoder struct {
	strategies map[string]decodeStrategy
}

// NewRequestDecoder registers the three supported encodings.
func NewRequestDecoder() *RequestDecoder {
	return &RequestDecoder{strategies: map[string]decodeStrategy{
		"multipart/form-data":      multipartDecoder{},
		"application/octet-stream": octetStreamDecoder{},
		"application/json":         jsonDecoder{schema: ocrRequestSchema},
	}}
}

// Decode reads the request body into a DecodedRequest. The returned Variant is
// empty when no strategy was selected. Every error is a *usecase.Error.
func (d *RequestDecoder) Decode(c *gin.Context) (Variant, usecase.DecodedRequest, error) {
	header := strings.TrimSpace(c.GetHeader("Content-Type"))
	if header == "" {
		return "", usecase.DecodedRequest{}, usecase.NewError(usecase.KindMissingContentType, nil)
	}

	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return "", usecase.DecodedRequest{}, usecase.NewError(usecase.KindUnsupportedMediaType, err)
	}
	strategy, ok := d.strategies[mediaType]
	if !ok {
		return "", usecase.DecodedRequest{}, usecase.NewError(usecase.KindUnsupportedMediaType, fmt.Errorf("media type %q", mediaType))
	}

	req, err := strategy.decode(c)
	return strategy.variant(), req, err
}

type multipartDecoder struct{}

func (multipartDecoder) variant() Variant { return VariantMultipart }

func (multipartDecoder) decode(c *gin.Context) (usecase.DecodedRequest, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return usecase.DecodedRequest{}, bodyError(usecase.KindMalformedMultipart, err)
	}

	image, err := formImage(form)
	if err != nil {
		return usecase.DecodedRequest{}, bodyError(usecase.KindMalformedMultipart, err)
	}

	req := usecase.DecodedRequest{
		Image:    image,
		Language: optionalString(firstValue(form.Value["language"])),
	}
	if raw := firstValue(form.Value["confidence"]); raw != "" {
		confidence, err := parseConfidence(raw)
		if err != nil {
			return usecase.DecodedRequest{}, usecase.NewError(usecase.KindMalformedMultipart, err)
		}
		req.Confidence = &confidence
	}
	return req, nil
}

// formImage accepts the image as a file part or, failing that, as a plain
// form value.
func formImage(form *multipart.Form) ([]byte, error) {
	if files := form.File["image"]; len(files) > 0 {
		f, err := files[0].Open()
		if err != nil {
			return nil, fmt.Errorf("open image part: %w", err)
		}
		defer f.Close()
		return io.ReadAll(f)
	}
	if values := form.Value["image"]; len(values) > 0 {
		return []byte(values[0]), nil
	}
	return nil, errors.New("missing image field")
}

type octetStreamDecoder struct{}

func (octetStreamDecoder) variant() Variant { return VariantOctetStream }

func (octetStreamDecoder) decode(c *gin.Context) (usecase.DecodedRequest, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return usecase.DecodedRequest{}, bodyError(usecase.KindRecognitionFailed, err)
	}
	language, _ := c.GetQuery("language")
	return usecase.DecodedRequest{
		Image:    body,
		Language: optionalString(language),
	}, nil
}

type jsonDecoder struct {
	schema *jsonschema.Schema
}

type jsonRequest struct {
	Image      *string  `json:"image"`
	Language   *string  `json:"language"`
	Confidence *float32 `json:"confidence"`
}

func (jsonDecoder) variant() Variant { return VariantJSON }

func (d jsonDecoder) decode(c *gin.Context) (usecase.DecodedRequest, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return usecase.DecodedRequest{}, bodyError(usecase.KindRecognitionFailed, err)
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return usecase.DecodedRequest{}, usecase.NewError(usecase.KindMalformedJSON, err)
	}
	if err := d.schema.Validate(doc); err != nil {
		return usecase.DecodedRequest{}, usecase.NewError(usecase.KindMalformedJSON, err)
	}

	var payload jsonRequest
	if err := json.Unmarshal(body, &payload); err != nil {
		return usecase.DecodedRequest{}, usecase.NewError(usecase.KindMalformedJSON, err)
	}
	if payload.Image == nil {
		return usecase.DecodedRequest{}, usecase.NewError(usecase.KindMissingImageField, nil)
	}

	image, err := decodeBase64Image(*payload.Image)
	if err != nil {
		return usecase.DecodedRequest{}, usecase.NewError(usecase.KindInvalidEncoding, err)
	}
	return usecase.DecodedRequest{
		Image:      image,
		Language:   optionalString(deref(payload.Language)),
		Confidence: payload.Confidence,
	}, nil
}

// decodeBase64Image drops anything up to and including the first comma, which
// covers data URIs such as "data:image/png;base64,....".
func decodeBase64Image(s string) ([]byte, error) {
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[i+1:]
	}
	return base64.StdEncoding.DecodeString(s)
}

var ocrRequestSchema = mustCompileSchema(map[string]any{
	"type": "object",
	"properties": map[string]any{
		"image":            map[string]any{"type": []string{"string", "null"}},
		"language":         map[string]any{"type": []string{"string", "null"}},
		"recognitionLevel": map[string]any{"type": []string{"string", "null"}},
		"confidence": map[string]any{
			"type":    []string{"number", "null"},
			"minimum": 0,
			"maximum": 1,
		},
	},
})

func mustCompileSchema(schemaMap map[string]any) *jsonschema.Schema {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		panic(fmt.Sprintf("marshal schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("ocr_request.json", bytes.NewReader(b)); err != nil {
		panic(fmt.Sprintf("add schema: %v", err))
	}
	return compiler.MustCompile("ocr_request.json")
}

// bodyError reports an oversized body as KindImageTooLarge and anything else
// as kind.
func bodyError(kind usecase.Kind, err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return usecase.NewError(usecase.KindImageTooLarge, err)
	}
	return usecase.NewError(kind, err)
}

func parseConfidence(raw string) (float32, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 32)
	if err != nil {
		return 0, fmt.Errorf("confidence: %w", err)
	}
	if math.IsNaN(v) || v < 0 || v > 1 {
		return 0, fmt.Errorf("confidence %v outside [0,1]", v)
	}
	return float32(v), nil
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// optionalString treats the empty string as absent.
func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
