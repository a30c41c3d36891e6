package ocr

import "context"

// ImageFormat identifies the content type of an OCR input image.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "image/png"
	ImageFormatJPEG ImageFormat = "image/jpeg"
	ImageFormatTIFF ImageFormat = "image/tiff"
)

// Input encapsulates a single rasterized image region submitted for
// recognition.
type Input struct {
	// ID is an optional caller-provided identifier echoed back in the Result.
	ID string
	// Image is the encoded image payload.
	Image []byte
	// Format declares the image content type (e.g., image/png).
	Format ImageFormat
	// DPI carries the effective dots-per-inch; zero means unknown.
	DPI int
}

// Result captures recognition output for a single input image.
type Result struct {
	// InputID mirrors the Input.ID that produced this result.
	InputID string
	// Text contains the linearized recognized text.
	Text string
	// Confidence is the mean word confidence on a 0-100 scale.
	Confidence float64
	// Language is the dominant language used for recognition, if known.
	Language string
}

// LanguageScore is one entry of a ranked language-detection result.
type LanguageScore struct {
	Language   string
	Confidence float64
}

// Engine is the recognition provider contract. Init resolves trained data
// for the given engine language codes and must be called before Recognize;
// Close releases engine resources and must be called regardless of
// recognition outcomes.
type Engine interface {
	Name() string
	Init(ctx context.Context, languages []string) error
	Recognize(ctx context.Context, input Input) (Result, error)
	Close() error
}

// LanguageDetector is an optional engine capability returning a ranked list
// of (language, confidence) pairs for an input image.
type LanguageDetector interface {
	DetectLanguages(ctx context.Context, input Input) ([]LanguageScore, error)
}
