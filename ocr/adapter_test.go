package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"
)

type fakeEngine struct {
	initErr      error
	recognizeErr error
	result       Result
	scores       []LanguageScore
	detectErr    error

	initCalls      int
	initLanguages  []string
	recognizeCalls int
	closeCalls     int
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Init(ctx context.Context, languages []string) error {
	f.initCalls++
	f.initLanguages = append([]string(nil), languages...)
	return f.initErr
}

func (f *fakeEngine) Recognize(ctx context.Context, in Input) (Result, error) {
	f.recognizeCalls++
	if f.recognizeErr != nil {
		return Result{}, f.recognizeErr
	}
	res := f.result
	res.InputID = in.ID
	return res, nil
}

func (f *fakeEngine) Close() error {
	f.closeCalls++
	return nil
}

type fakeDetectingEngine struct {
	fakeEngine
}

func (f *fakeDetectingEngine) DetectLanguages(ctx context.Context, in Input) ([]LanguageScore, error) {
	return f.scores, f.detectErr
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestAdapterInitOnce(t *testing.T) {
	eng := &fakeEngine{result: Result{Text: "hello", Confidence: 90}}
	a := NewAdapter(eng, WithPrimaryLanguage("german"))
	ctx := context.Background()

	img := pngBytes(t, 4, 4)
	for i := 0; i < 3; i++ {
		if res := a.Recognize(ctx, "im1", img, 72); res == nil {
			t.Fatalf("call %d: expected result, got nil", i)
		}
	}
	if eng.initCalls != 1 {
		t.Fatalf("expected one engine init, got %d", eng.initCalls)
	}
	want := []string{"deu"}
	if len(eng.initLanguages) != 1 || eng.initLanguages[0] != want[0] {
		t.Fatalf("init languages = %v, want %v", eng.initLanguages, want)
	}
}

func TestAdapterDisabledOnInitFailure(t *testing.T) {
	eng := &fakeEngine{initErr: errors.New("no trained data")}
	a := NewAdapter(eng)
	ctx := context.Background()

	if a.Enabled(ctx) {
		t.Fatal("adapter should be disabled after init failure")
	}
	if res := a.Recognize(ctx, "im1", pngBytes(t, 4, 4), 0); res != nil {
		t.Fatalf("disabled adapter returned result %+v", res)
	}
	if eng.recognizeCalls != 0 {
		t.Fatalf("engine recognized despite disabled adapter: %d calls", eng.recognizeCalls)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close disabled adapter: %v", err)
	}
	if eng.closeCalls != 0 {
		t.Fatalf("engine closed despite never starting: %d calls", eng.closeCalls)
	}
}

func TestAdapterIsolatesPerImageErrors(t *testing.T) {
	eng := &fakeEngine{recognizeErr: errors.New("engine hiccup")}
	a := NewAdapter(eng)
	ctx := context.Background()

	if res := a.Recognize(ctx, "bad", pngBytes(t, 4, 4), 0); res != nil {
		t.Fatalf("failed recognition returned result %+v", res)
	}
	if !a.Enabled(ctx) {
		t.Fatal("per-image failure must not disable the adapter")
	}

	eng.recognizeErr = nil
	eng.result = Result{Text: "recovered", Confidence: 80}
	res := a.Recognize(ctx, "good", pngBytes(t, 4, 4), 0)
	if res == nil || res.Text != "recovered" {
		t.Fatalf("expected recovery after per-image failure, got %+v", res)
	}
}

func TestAdapterEmptyImage(t *testing.T) {
	eng := &fakeEngine{result: Result{Text: "x"}}
	a := NewAdapter(eng)
	if res := a.Recognize(context.Background(), "im1", nil, 0); res != nil {
		t.Fatalf("empty payload returned result %+v", res)
	}
}

func TestAdapterLanguageDetection(t *testing.T) {
	eng := &fakeDetectingEngine{
		fakeEngine: fakeEngine{result: Result{Text: "hallo", Confidence: 70, Language: "eng"}},
	}
	eng.scores = []LanguageScore{
		{Language: "deu", Confidence: 88},
		{Language: "eng", Confidence: 61},
	}
	a := NewAdapter(eng, WithPrimaryLanguage("english"), WithFallbackLanguages("german"))

	res := a.Recognize(context.Background(), "im1", pngBytes(t, 4, 4), 0)
	if res == nil {
		t.Fatal("expected result")
	}
	if res.Language != "deu" {
		t.Fatalf("dominant language = %q, want deu", res.Language)
	}
	if len(res.Languages) != 2 || res.Languages[0].Language != "deu" {
		t.Fatalf("ranked languages = %+v", res.Languages)
	}
}

func TestAdapterDetectionSkippedForSingleLanguage(t *testing.T) {
	eng := &fakeDetectingEngine{
		fakeEngine: fakeEngine{result: Result{Text: "hi", Language: "eng"}},
	}
	eng.scores = []LanguageScore{{Language: "deu", Confidence: 99}}
	a := NewAdapter(eng, WithPrimaryLanguage("eng"))

	res := a.Recognize(context.Background(), "im1", pngBytes(t, 4, 4), 0)
	if res == nil {
		t.Fatal("expected result")
	}
	if res.Language != "eng" || len(res.Languages) != 0 {
		t.Fatalf("detection should be skipped with one language, got %+v", res)
	}
}

func TestAdapterDownscalesLargeImages(t *testing.T) {
	eng := &fakeEngine{result: Result{Text: "ok"}}
	a := NewAdapter(eng, WithMaxImageSize(8))

	big := pngBytes(t, 32, 16)
	if res := a.Recognize(context.Background(), "im1", big, 0); res == nil {
		t.Fatal("expected result")
	}

	scaled, err := downscale(big, 8)
	if err != nil {
		t.Fatalf("downscale: %v", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(scaled))
	if err != nil {
		t.Fatalf("decode scaled: %v", err)
	}
	if cfg.Width != 8 || cfg.Height != 4 {
		t.Fatalf("scaled dims = %dx%d, want 8x4", cfg.Width, cfg.Height)
	}
}

func TestDownscalePassThrough(t *testing.T) {
	small := pngBytes(t, 4, 4)
	out, err := downscale(small, 8)
	if err != nil {
		t.Fatalf("downscale: %v", err)
	}
	if !bytes.Equal(out, small) {
		t.Fatal("image within bounds must pass through unchanged")
	}
}

func TestAdapterCloseAfterUse(t *testing.T) {
	eng := &fakeEngine{result: Result{Text: "ok"}}
	a := NewAdapter(eng)
	ctx := context.Background()

	if res := a.Recognize(ctx, "im1", pngBytes(t, 4, 4), 0); res == nil {
		t.Fatal("expected result")
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if eng.closeCalls != 1 {
		t.Fatalf("engine close calls = %d, want 1", eng.closeCalls)
	}
	if res := a.Recognize(ctx, "im2", pngBytes(t, 4, 4), 0); res != nil {
		t.Fatalf("recognize after close returned %+v", res)
	}
}

func TestAdapterCloseWithoutUse(t *testing.T) {
	eng := &fakeEngine{}
	a := NewAdapter(eng)
	if err := a.Close(); err != nil {
		t.Fatalf("close before first use: %v", err)
	}
}
