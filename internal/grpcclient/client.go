package grpcclient

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/example/ocrs/internal/engine"
	"github.com/example/ocrs/internal/logging"
)

// RecognizeMethod is the unary method served by remote recognizers. Request
// and response are google.protobuf.Struct messages:
//
//	request:  {image: base64, languages: [string], accuracy: string, language_correction: bool}
//	response: {observations: [{text, confidence, x, y, width, height}]}
//
// A remote that cannot decode the image answers with codes.InvalidArgument.
const RecognizeMethod = "/ocrs.v1.Recognizer/Recognize"

// Dial returns a ready-to-use remote engine and the connection backing it.
func Dial(ctx context.Context, addr string, logger *zap.Logger) (*Engine, *grpc.ClientConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(
		dialCtx,
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.dial_recognizer", "", err)
		logger.Error("failed to dial recognizer", zap.Error(wrapped), zap.String("addr", addr))
		return nil, nil, wrapped
	}
	return NewEngine(conn, logger), conn, nil
}

// Engine forwards recognition to a remote service. It holds only the shared
// connection.
type Engine struct {
	conn   grpc.ClientConnInterface
	logger *zap.Logger
}

// NewEngine wraps an existing connection.
func NewEngine(conn grpc.ClientConnInterface, logger *zap.Logger) *Engine {
	return &Engine{conn: conn, logger: logger.Named("grpc_engine")}
}

func (e *Engine) Name() string { return "grpc" }

// Recognize issues the call on its own goroutine and completes exactly once.
func (e *Engine) Recognize(ctx context.Context, req engine.Request, done engine.Completion) {
	go func() {
		done(e.call(ctx, req))
	}()
}

func (e *Engine) call(ctx context.Context, req engine.Request) engine.Outcome {
	in, err := encodeRequest(req)
	if err != nil {
		return engine.InternalFailure(fmt.Errorf("encode request: %w", err))
	}

	out := &structpb.Struct{}
	if err := e.conn.Invoke(ctx, RecognizeMethod, in, out); err != nil {
		if status.Code(err) == codes.InvalidArgument {
			return engine.CannotParseImage(err)
		}
		return engine.InternalFailure(logging.NewOperationError("grpcclient.recognize", "", err))
	}

	observations, err := decodeResponse(out)
	if err != nil {
		return engine.InternalFailure(fmt.Errorf("decode response: %w", err))
	}
	return engine.Recognized(observations)
}

func encodeRequest(req engine.Request) (*structpb.Struct, error) {
	languages := make([]interface{}, len(req.Languages))
	for i, l := range req.Languages {
		languages[i] = l
	}
	return structpb.NewStruct(map[string]interface{}{
		"image":               base64.StdEncoding.EncodeToString(req.Image),
		"languages":           languages,
		"accuracy":            string(req.Accuracy),
		"language_correction": req.LanguageCorrection,
	})
}

func decodeResponse(out *structpb.Struct) ([]engine.Observation, error) {
	field, ok := out.GetFields()["observations"]
	if !ok {
		return nil, errors.New("missing observations field")
	}
	list := field.GetListValue()
	if list == nil {
		return nil, errors.New("observations is not a list")
	}

	observations := make([]engine.Observation, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		item := v.GetStructValue()
		if item == nil {
			return nil, fmt.Errorf("observation %d is not an object", i)
		}
		fields := item.GetFields()
		observations = append(observations, engine.Observation{
			Text:       fields["text"].GetStringValue(),
			Confidence: number(fields, "confidence"),
			BoundingBox: engine.BoundingBox{
				X:      number(fields, "x"),
				Y:      number(fields, "y"),
				Width:  number(fields, "width"),
				Height: number(fields, "height"),
			},
		})
	}
	return observations, nil
}

func number(fields map[string]*structpb.Value, key string) float32 {
	return float32(fields[key].GetNumberValue())
}
