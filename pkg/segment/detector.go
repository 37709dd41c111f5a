package segment

import (
	"context"
	"errors"
	"fmt"
	"image"

	"literature-agent-be/pkg/figure"
)

// Region is one candidate subfigure in figure pixel coordinates
type Region struct {
	Rect       image.Rectangle
	Confidence float64
}

// Source is the figure image handed to a detector
type Source struct {
	Path  string
	Image image.Image
}

// Detector proposes subfigure regions for a figure image
type Detector interface {
	Name() figure.Method
	Detect(ctx context.Context, src Source) ([]Region, error)
}

// ErrModelUnavailable is returned by the model detector when no model endpoint is configured
var ErrModelUnavailable = errors.New("segmentation model unavailable")

// ErrNoConfidentRegions means the model answered but nothing survived the confidence floor
var ErrNoConfidentRegions = errors.New("no region above the confidence floor")

// DegradedError records why model-based detection was skipped. It is logged,
// never surfaced to callers as a failure.
type DegradedError struct {
	Figure int
	Cause  error
}

func (e *DegradedError) Error() string {
	return fmt.Sprintf("figure %d: model segmentation degraded to heuristic: %v", e.Figure, e.Cause)
}

func (e *DegradedError) Unwrap() error {
	return e.Cause
}
