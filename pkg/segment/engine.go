package segment

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"literature-agent-be/internal/pkg/logger"
	"literature-agent-be/pkg/figure"

	"github.com/disintegration/imaging"
)

const logModule = "Segment"

// Config controls detection thresholds and output
type Config struct {
	MinConfidence float64
	ModelTimeout  time.Duration
	OutputDir     string
}

// Engine segments main figures into subfigures. It holds no per-figure state
// and is safe for concurrent use; memoization lives in figure.Store.
type Engine struct {
	model     Detector
	heuristic Detector
	cfg       Config
	logger    logger.ILogger
}

func NewEngine(model Detector, heuristic Detector, cfg Config, log logger.ILogger) *Engine {
	if heuristic == nil {
		heuristic = NewHeuristicDetector(0)
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.3
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = 3 * time.Minute
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Engine{
		model:     model,
		heuristic: heuristic,
		cfg:       cfg,
		logger:    log,
	}
}

// Segment returns the subfigures of fig in reading order. Model failures
// degrade to the heuristic; only an unreadable figure image is an error.
func (e *Engine) Segment(ctx context.Context, fig figure.Figure) ([]figure.Subfigure, error) {
	img, err := imaging.Open(fig.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("open %s image: %w", fig.Label, err)
	}
	src := Source{Path: fig.ImagePath, Image: img}

	regions, method, err := e.detect(ctx, fig, src)
	if err != nil {
		return nil, err
	}

	kept := readingOrder(regions)
	if len(kept) > maxLabels {
		kept = kept[:maxLabels]
	}

	subs := make([]figure.Subfigure, 0, len(kept))
	for i, r := range kept {
		sub := figure.Subfigure{
			Parent:     fig.Number,
			Label:      letter(i),
			Region:     r.Rect,
			Confidence: r.Confidence,
			Method:     method,
		}
		path, err := e.crop(img, fig, sub)
		if err != nil {
			e.logger.Warn(logModule, "Failed to write subfigure crop", map[string]interface{}{
				"figure": fig.Number, "label": sub.Label, "error": err.Error(),
			})
			path = fig.ImagePath
		}
		sub.ImagePath = path
		subs = append(subs, sub)
	}

	e.logger.Info(logModule, "Figure segmented", map[string]interface{}{
		"figure": fig.Number, "method": string(method), "count": len(subs),
	})
	return subs, nil
}

func (e *Engine) detect(ctx context.Context, fig figure.Figure, src Source) ([]Region, figure.Method, error) {
	if e.model != nil {
		mctx, cancel := context.WithTimeout(ctx, e.cfg.ModelTimeout)
		regions, err := e.model.Detect(mctx, src)
		cancel()
		if err == nil {
			if kept := e.confident(regions); len(kept) > 0 {
				return kept, e.model.Name(), nil
			}
			err = ErrNoConfidentRegions
		}
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		degraded := &DegradedError{Figure: fig.Number, Cause: err}
		level := e.logger.Warn
		if errors.Is(err, ErrModelUnavailable) {
			level = e.logger.Info
		}
		level(logModule, "Model segmentation unavailable, using heuristic", map[string]interface{}{
			"figure": fig.Number, "error": degraded.Error(),
		})
	} else {
		e.logger.Debug(logModule, "No segmentation model configured, using heuristic", map[string]interface{}{
			"figure": fig.Number,
		})
	}

	regions, err := e.heuristic.Detect(ctx, src)
	if err != nil {
		return nil, "", err
	}
	return e.confident(regions), e.heuristic.Name(), nil
}

// confident drops regions below the confidence floor
func (e *Engine) confident(regions []Region) []Region {
	kept := make([]Region, 0, len(regions))
	for _, r := range regions {
		if r.Confidence >= e.cfg.MinConfidence {
			kept = append(kept, r)
		}
	}
	return kept
}

// crop writes next to the parent image unless an output dir is configured
func (e *Engine) crop(img image.Image, fig figure.Figure, sub figure.Subfigure) (string, error) {
	dir := e.cfg.OutputDir
	if dir == "" {
		dir = filepath.Dir(fig.ImagePath)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("figure_%d%s.png", fig.Number, sub.Label))
	cropped := imaging.Crop(img, sub.Region)
	if err := imaging.Save(cropped, path); err != nil {
		return "", err
	}
	return path, nil
}
