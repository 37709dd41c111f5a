package parser

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"literature-agent-be/internal/pkg/logger"
	"literature-agent-be/pkg/figure"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/google/uuid"
)

const logModule = "Parser"

// FitzParser loads PDFs through MuPDF. Each captioned figure is rendered
// from the page that carries its caption, with blank margins trimmed.
type FitzParser struct {
	OutputDir string
	DPI       float64
	logger    logger.ILogger
}

var _ Parser = &FitzParser{}

func NewFitzParser(outputDir string, dpi float64, log logger.ILogger) *FitzParser {
	if dpi <= 0 {
		dpi = 144
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &FitzParser{OutputDir: outputDir, DPI: dpi, logger: log}
}

func (p *FitzParser) Load(ctx context.Context, path string) (*Document, error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return nil, &ParseError{Path: path, Reason: "only PDF files are supported"}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &ParseError{Path: path, Reason: "file not readable", Err: err}
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: "failed to open PDF", Err: err}
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, &ParseError{Path: path, Reason: "PDF has no pages"}
	}

	result := &Document{
		ID:    uuid.NewString(),
		Path:  path,
		Name:  filepath.Base(path),
		Pages: pageCount,
	}

	for n := 0; n < pageCount; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := doc.Text(n)
		if err != nil {
			p.logger.Warn(logModule, "Failed to extract page text", map[string]interface{}{
				"page": n + 1, "error": err.Error(),
			})
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		result.Texts = append(result.Texts, PageText{Page: n + 1, Content: text})
	}

	figDir := filepath.Join(p.OutputDir, result.ID)
	if err := os.MkdirAll(figDir, 0o755); err != nil {
		return nil, fmt.Errorf("create figure dir: %w", err)
	}

	rendered := make(map[int]image.Image)
	for _, c := range FindCaptions(result.Texts) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, ok := rendered[c.Page]
		if !ok {
			img, err := doc.ImageDPI(c.Page-1, p.DPI)
			if err != nil {
				p.logger.Warn(logModule, "Failed to render figure page", map[string]interface{}{
					"page": c.Page, "figure": c.Number, "error": err.Error(),
				})
				continue
			}
			page = trimMargins(img, 245)
			rendered[c.Page] = page
		}

		out := filepath.Join(figDir, fmt.Sprintf("figure_%d.png", c.Number))
		if err := imaging.Save(page, out); err != nil {
			p.logger.Warn(logModule, "Failed to save figure image", map[string]interface{}{
				"figure": c.Number, "error": err.Error(),
			})
			continue
		}
		result.Figures = append(result.Figures, figure.NewFigure(c.Number, out, c.Text, c.Page))
	}

	p.logger.Info(logModule, "Document parsed", map[string]interface{}{
		"document": result.Name,
		"pages":    result.Pages,
		"figures":  len(result.Figures),
	})
	return result, nil
}

// trimMargins crops away rows and columns lighter than threshold on every side
func trimMargins(img image.Image, threshold uint8) image.Image {
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	inked := func(x, y int) bool {
		return gray.Pix[gray.PixOffset(x, y)] < threshold
	}

	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if !inked(x, y) {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < minX || maxY < minY {
		return img
	}
	return imaging.Crop(img, image.Rect(minX, minY, maxX+1, maxY+1).Add(img.Bounds().Min))
}
