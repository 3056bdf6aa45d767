package tesseract

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"os/exec"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/example/ocrs/internal/engine"
)

func recognizeSync(t *testing.T, e *Engine, req engine.Request) engine.Outcome {
	t.Helper()
	ch := make(chan engine.Outcome, 1)
	e.Recognize(context.Background(), req, func(o engine.Outcome) { ch <- o })
	select {
	case o := <-ch:
		return o
	case <-time.After(30 * time.Second):
		t.Fatal("engine did not complete")
		return engine.Outcome{}
	}
}

func TestRecognizeRejectsNonImage(t *testing.T) {
	e := New(Config{}, zap.NewNop())
	out := recognizeSync(t, e, engine.Request{Image: []byte("definitely not an image")})
	if out.Status != engine.StatusCannotParseImage {
		t.Fatalf("expected cannot parse image, got %s (%v)", out.Status, out.Err)
	}
}

func TestRecognizeReportsCanceledContext(t *testing.T) {
	e := New(Config{}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ch := make(chan engine.Outcome, 1)
	e.Recognize(ctx, engine.Request{Image: []byte{1}}, func(o engine.Outcome) { ch <- o })
	out := <-ch
	if out.Status != engine.StatusInternalFailure {
		t.Fatalf("expected internal failure, got %s", out.Status)
	}
}

func TestNormalizeBox(t *testing.T) {
	box := normalizeBox(image.Rect(10, 20, 60, 40), 100, 200)
	want := engine.BoundingBox{X: 0.1, Y: 0.1, Width: 0.5, Height: 0.1}
	if box != want {
		t.Fatalf("expected %+v, got %+v", want, box)
	}
	clamped := normalizeBox(image.Rect(-5, 0, 150, 10), 100, 100)
	if clamped.X != 0 || clamped.Width != 1 {
		t.Fatalf("expected clamped box, got %+v", clamped)
	}
}

func TestSettingsFor(t *testing.T) {
	tests := []struct {
		name     string
		req      engine.Request
		wantMode gosseract.PageSegMode
		wantVars map[string]string
	}{
		{
			name:     "accurate with correction",
			req:      engine.Request{Accuracy: engine.AccuracyAccurate, LanguageCorrection: true},
			wantMode: gosseract.PSM_AUTO,
			wantVars: map[string]string{"tessedit_ocr_engine_mode": "1", "load_system_dawg": "1", "load_freq_dawg": "1"},
		},
		{
			name:     "accurate without correction",
			req:      engine.Request{Accuracy: engine.AccuracyAccurate},
			wantMode: gosseract.PSM_AUTO,
			wantVars: map[string]string{"tessedit_ocr_engine_mode": "1", "load_system_dawg": "0", "load_freq_dawg": "0"},
		},
		{
			name:     "fast with correction",
			req:      engine.Request{Accuracy: engine.AccuracyFast, LanguageCorrection: true},
			wantMode: gosseract.PSM_SINGLE_BLOCK,
			wantVars: map[string]string{"load_system_dawg": "1", "load_freq_dawg": "1"},
		},
		{
			name:     "fast without correction",
			req:      engine.Request{Accuracy: engine.AccuracyFast},
			wantMode: gosseract.PSM_SINGLE_BLOCK,
			wantVars: map[string]string{"load_system_dawg": "0", "load_freq_dawg": "0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := settingsFor(tt.req)
			if got.pageSegMode != tt.wantMode {
				t.Fatalf("expected page seg mode %v, got %v", tt.wantMode, got.pageSegMode)
			}
			if !reflect.DeepEqual(got.initVariables, tt.wantVars) {
				t.Fatalf("expected variables %v, got %v", tt.wantVars, got.initVariables)
			}
		})
	}
}

func TestRenderConfigIsSorted(t *testing.T) {
	got := renderConfig(map[string]string{"load_system_dawg": "1", "load_freq_dawg": "1", "tessedit_ocr_engine_mode": "1"})
	want := "load_freq_dawg 1\nload_system_dawg 1\ntessedit_ocr_engine_mode 1\n"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestConfigFileWrittenOncePerSettings(t *testing.T) {
	e := New(Config{}, zap.NewNop())
	t.Cleanup(func() { _ = e.Close() })

	accurate := settingsFor(engine.Request{Accuracy: engine.AccuracyAccurate, LanguageCorrection: true})
	first, err := e.configFile(accurate.initVariables)
	if err != nil {
		t.Fatalf("write config: %v", err)
	}
	again, err := e.configFile(settingsFor(engine.Request{Accuracy: engine.AccuracyAccurate, LanguageCorrection: true}).initVariables)
	if err != nil {
		t.Fatalf("write config: %v", err)
	}
	if first != again {
		t.Fatalf("expected reuse of %s, got %s", first, again)
	}

	content, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if string(content) != renderConfig(accurate.initVariables) {
		t.Fatalf("unexpected config content %q", content)
	}

	fast, err := e.configFile(settingsFor(engine.Request{Accuracy: engine.AccuracyFast}).initVariables)
	if err != nil {
		t.Fatalf("write config: %v", err)
	}
	if fast == first {
		t.Fatal("different settings must not share a config file")
	}

	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(first); !os.IsNotExist(err) {
		t.Fatalf("expected config file removed, stat err %v", err)
	}
}

func TestRecognizeRendersText(t *testing.T) {
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed in PATH")
	}

	img := image.NewRGBA(image.Rect(0, 0, 240, 80))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{Dst: img, Src: image.Black, Face: basicfont.Face7x13, Dot: fixed.P(10, 50)}
	d.DrawString("Hello OCR")

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	e := New(Config{}, zap.NewNop())
	t.Cleanup(func() { _ = e.Close() })
	out := recognizeSync(t, e, engine.Request{
		Image:              buf.Bytes(),
		Languages:          []string{"en-US"},
		Accuracy:           engine.AccuracyAccurate,
		LanguageCorrection: true,
	})
	if out.Status != engine.StatusRecognized {
		t.Fatalf("expected recognized, got %s (%v)", out.Status, out.Err)
	}
	if len(out.Observations) == 0 {
		t.Fatal("expected at least one observation")
	}
	got := strings.ToLower(out.Observations[0].Text)
	if !strings.Contains(got, "hello") {
		t.Fatalf("unexpected OCR output: %q", out.Observations[0].Text)
	}
	for _, o := range out.Observations {
		b := o.BoundingBox
		if b.X < 0 || b.X > 1 || b.Width <= 0 || b.Width > 1 || o.Confidence < 0 || o.Confidence > 1 {
			t.Fatalf("observation out of range: %+v", o)
		}
	}
}
