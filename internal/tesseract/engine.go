package tesseract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/example/ocrs/internal/engine"
)

// Config holds the settings shared by every recognition call.
type Config struct {
	// TessdataDir overrides the location of *.traineddata files.
	TessdataDir string
}

// Engine runs recognition with libtesseract through gosseract. Each call gets
// its own client. The only shared state is the set of init config files,
// one per distinct combination of init variables.
type Engine struct {
	clientFactory func() *gosseract.Client
	tessdataDir   string
	logger        *zap.Logger

	mu          sync.Mutex
	configDir   string
	configFiles map[string]string
}

// New constructs a Tesseract-backed engine.
func New(cfg Config, logger *zap.Logger) *Engine {
	return &Engine{
		clientFactory: gosseract.NewClient,
		tessdataDir:   cfg.TessdataDir,
		logger:        logger.Named("tesseract"),
		configFiles:   make(map[string]string),
	}
}

// Close removes the init config files written so far.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.configDir == "" {
		return nil
	}
	err := os.RemoveAll(e.configDir)
	e.configDir = ""
	e.configFiles = make(map[string]string)
	return err
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize runs on its own goroutine and reports through done exactly once.
func (e *Engine) Recognize(ctx context.Context, req engine.Request, done engine.Completion) {
	go func() {
		done(e.recognize(ctx, req))
	}()
}

func (e *Engine) recognize(ctx context.Context, req engine.Request) engine.Outcome {
	if err := ctx.Err(); err != nil {
		return engine.InternalFailure(err)
	}

	width, height, err := imageSize(req.Image)
	if err != nil {
		return engine.CannotParseImage(err)
	}

	c := e.clientFactory()
	defer c.Close()

	if err := e.configure(c, req); err != nil {
		return engine.InternalFailure(err)
	}
	if err := c.SetImageFromBytes(req.Image); err != nil {
		return engine.CannotParseImage(fmt.Errorf("set image: %w", err))
	}

	if err := ctx.Err(); err != nil {
		return engine.InternalFailure(err)
	}
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return engine.InternalFailure(fmt.Errorf("recognize text lines: %w", err))
	}

	observations := make([]engine.Observation, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		observations = append(observations, engine.Observation{
			Text:        text,
			Confidence:  clamp01(float32(b.Confidence / 100.0)),
			BoundingBox: normalizeBox(b.Box, width, height),
		})
	}
	e.logger.Debug("tesseract finished",
		zap.Int("lines", len(boxes)),
		zap.Int("observations", len(observations)),
		zap.Strings("languages", req.Languages),
	)
	return engine.Recognized(observations)
}

// settings is what one request asks of Tesseract. initVariables are only
// honoured while the engine initializes, so they travel in a config file
// handed to Init rather than through SetVariable.
type settings struct {
	pageSegMode   gosseract.PageSegMode
	initVariables map[string]string
}

const oemLSTMOnly = "1"

func settingsFor(req engine.Request) settings {
	s := settings{
		pageSegMode:   gosseract.PSM_SINGLE_BLOCK,
		initVariables: make(map[string]string),
	}
	if req.Accuracy == engine.AccuracyAccurate {
		s.pageSegMode = gosseract.PSM_AUTO
		s.initVariables["tessedit_ocr_engine_mode"] = oemLSTMOnly
	}

	dawg := "0"
	if req.LanguageCorrection {
		dawg = "1"
	}
	s.initVariables["load_system_dawg"] = dawg
	s.initVariables["load_freq_dawg"] = dawg
	return s
}

// renderConfig writes variables in Tesseract config syntax, sorted by name.
func renderConfig(vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s %s\n", k, vars[k])
	}
	return b.String()
}

// configFile returns a file holding vars, writing it on first use.
func (e *Engine) configFile(vars map[string]string) (string, error) {
	content := renderConfig(vars)

	e.mu.Lock()
	defer e.mu.Unlock()
	if path, ok := e.configFiles[content]; ok {
		return path, nil
	}
	if e.configDir == "" {
		dir, err := os.MkdirTemp("", "ocrs-tesseract-")
		if err != nil {
			return "", fmt.Errorf("create config dir: %w", err)
		}
		e.configDir = dir
	}

	path := filepath.Join(e.configDir, fmt.Sprintf("ocrs_%d.config", len(e.configFiles)))
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("write config file: %w", err)
	}
	e.configFiles[content] = path
	return path, nil
}

func (e *Engine) configure(c *gosseract.Client, req engine.Request) error {
	if e.tessdataDir != "" {
		if err := c.SetTessdataPrefix(e.tessdataDir); err != nil {
			return fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if langs := TraineddataFor(req.Languages); len(langs) > 0 {
		if err := c.SetLanguage(langs...); err != nil {
			return fmt.Errorf("set languages: %w", err)
		}
	}

	s := settingsFor(req)
	path, err := e.configFile(s.initVariables)
	if err != nil {
		return err
	}
	if err := c.SetConfigFile(path); err != nil {
		return fmt.Errorf("set config file: %w", err)
	}
	if err := c.SetPageSegMode(s.pageSegMode); err != nil {
		return fmt.Errorf("set page segmentation mode: %w", err)
	}
	return nil
}

// imageSize reads only the image header. Formats without a registered
// decoder are reported as unparsable.
func imageSize(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, errors.New("image has no pixels")
	}
	return cfg.Width, cfg.Height, nil
}

func normalizeBox(r image.Rectangle, width, height int) engine.BoundingBox {
	w, h := float32(width), float32(height)
	return engine.BoundingBox{
		X:      clamp01(float32(r.Min.X) / w),
		Y:      clamp01(float32(r.Min.Y) / h),
		Width:  clamp01(float32(r.Dx()) / w),
		Height: clamp01(float32(r.Dy()) / h),
	}
}

func clamp01(v float32) float32 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
