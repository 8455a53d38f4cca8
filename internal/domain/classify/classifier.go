// Package classify runs the vision model over a downloaded image. The current
// implementation is a stand-in that returns plausible labels; the surrounding
// pipeline (taxonomy lookup, retrieval, report generation) is real.
package classify

import (
	"bytes"
	"context"
	"image"
	"log/slog"
	"math/rand"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"smartagri-server-go/internal/platform/errors"
)

// Result is one classification outcome.
type Result struct {
	ModelLabel      string  `json:"model_label"`
	Confidence      float64 `json:"confidence"`
	InferenceTimeMs int64   `json:"inference_time_ms"`
}

// Classifier turns image bytes into a label.
type Classifier interface {
	Classify(ctx context.Context, imageData []byte) (*Result, error)
}

type labelCandidate struct {
	label      string
	confidence float64
}

// Candidate outputs with confidences shaped like the real model's.
var mockCandidates = []labelCandidate{
	{"healthy", 0.95},
	{"powdery_mildew", 0.87},
	{"aphid_complex", 0.92},
	{"spider_mite", 0.78},
	{"late_blight", 0.85},
}

// MockClassifier decodes the image to confirm it is a real raster file, then
// picks a label at random.
type MockClassifier struct {
	rng    *rand.Rand
	logger *slog.Logger
}

// NewMockClassifier creates a classifier seeded from the clock.
func NewMockClassifier(logger *slog.Logger) *MockClassifier {
	return NewMockClassifierWithSeed(time.Now().UnixNano(), logger)
}

// NewMockClassifierWithSeed creates a classifier with a fixed seed so tests
// get reproducible label sequences.
func NewMockClassifierWithSeed(seed int64, logger *slog.Logger) *MockClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockClassifier{
		rng:    rand.New(rand.NewSource(seed)),
		logger: logger,
	}
}

// Classify validates the image and returns a mock result.
func (m *MockClassifier) Classify(ctx context.Context, imageData []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(imageData) == 0 {
		return nil, errors.New(errors.KindValidation, "classify.Classify", "empty image data")
	}

	start := time.Now()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		return nil, errors.Wrap(errors.KindValidation, "classify.Classify", "decode image", err)
	}

	pick := mockCandidates[m.rng.Intn(len(mockCandidates))]
	elapsed := time.Since(start).Milliseconds()

	m.logger.Debug("classification completed",
		"format", format, "width", cfg.Width, "height", cfg.Height,
		"label", pick.label, "confidence", pick.confidence)

	return &Result{
		ModelLabel:      pick.label,
		Confidence:      pick.confidence,
		InferenceTimeMs: elapsed,
	}, nil
}
