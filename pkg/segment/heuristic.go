package segment

import (
	"context"
	"image"
	"image/color"

	"literature-agent-be/pkg/figure"
)

// HeuristicDetector splits a figure along blank gutters (recursive XY-cut on
// row and column ink profiles). It assumes a light background.
type HeuristicDetector struct {
	// InkThreshold is the luminance (0-255) below which a pixel counts as ink
	InkThreshold uint8
	// MinRegion is the minimum side length in pixels of a kept region
	MinRegion int
	// MinGapRatio is the minimum gutter width relative to the cut extent
	MinGapRatio float64
	// MaxDepth bounds the recursion
	MaxDepth int
}

var _ Detector = &HeuristicDetector{}

func NewHeuristicDetector(minRegion int) *HeuristicDetector {
	if minRegion <= 0 {
		minRegion = 40
	}
	return &HeuristicDetector{
		InkThreshold: 235,
		MinRegion:    minRegion,
		MinGapRatio:  0.015,
		MaxDepth:     4,
	}
}

func (h *HeuristicDetector) Name() figure.Method {
	return figure.MethodHeuristic
}

func (h *HeuristicDetector) Detect(ctx context.Context, src Source) ([]Region, error) {
	if src.Image == nil {
		return nil, nil
	}
	ink := h.inkMask(src.Image)

	var leaves []image.Rectangle
	h.cut(ctx, ink, ink.bounds, 0, &leaves)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kept := make([]image.Rectangle, 0, len(leaves))
	for _, r := range leaves {
		if r.Dx() < h.MinRegion || r.Dy() < h.MinRegion {
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) == 0 {
		return nil, nil
	}

	total := float64(ink.bounds.Dx() * ink.bounds.Dy())
	fairShare := total / float64(len(kept))

	regions := make([]Region, 0, len(kept))
	for _, r := range kept {
		share := float64(r.Dx()*r.Dy()) / fairShare
		if share > 1 {
			share = 1
		}
		// heuristic proposals never claim model-level certainty
		conf := 0.3 + 0.6*share
		if conf > 0.9 {
			conf = 0.9
		}
		regions = append(regions, Region{Rect: r, Confidence: conf})
	}
	return regions, nil
}

type inkMask struct {
	bounds image.Rectangle
	w      int
	bits   []bool
}

func (m *inkMask) at(x, y int) bool {
	return m.bits[(y-m.bounds.Min.Y)*m.w+(x-m.bounds.Min.X)]
}

func (h *HeuristicDetector) inkMask(img image.Image) *inkMask {
	b := img.Bounds()
	m := &inkMask{bounds: b, w: b.Dx(), bits: make([]bool, b.Dx()*b.Dy())}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			m.bits[(y-b.Min.Y)*m.w+(x-b.Min.X)] = g.Y < h.InkThreshold
		}
	}
	return m
}

// cut appends the leaf regions of r to out
func (h *HeuristicDetector) cut(ctx context.Context, m *inkMask, r image.Rectangle, depth int, out *[]image.Rectangle) {
	if ctx.Err() != nil {
		return
	}
	r = trim(m, r)
	if r.Empty() {
		return
	}
	if depth >= h.MaxDepth {
		*out = append(*out, r)
		return
	}

	rows := profile(m, r, true)
	if bands := h.split(rows, r.Dy()); len(bands) > 1 {
		for _, band := range bands {
			sub := image.Rect(r.Min.X, r.Min.Y+band[0], r.Max.X, r.Min.Y+band[1])
			h.cut(ctx, m, sub, depth+1, out)
		}
		return
	}

	cols := profile(m, r, false)
	if bands := h.split(cols, r.Dx()); len(bands) > 1 {
		for _, band := range bands {
			sub := image.Rect(r.Min.X+band[0], r.Min.Y, r.Min.X+band[1], r.Max.Y)
			h.cut(ctx, m, sub, depth+1, out)
		}
		return
	}

	*out = append(*out, r)
}

// split returns [start,end) bands separated by blank gutters
func (h *HeuristicDetector) split(p []int, extent int) [][2]int {
	minGap := int(float64(extent) * h.MinGapRatio)
	if minGap < 3 {
		minGap = 3
	}

	var bands [][2]int
	start := -1
	gap := 0
	for i, v := range p {
		if v > 0 {
			if start < 0 {
				start = i
			} else if gap >= minGap {
				bands = append(bands, [2]int{start, i - gap})
				start = i
			}
			gap = 0
			continue
		}
		gap++
	}
	if start >= 0 {
		bands = append(bands, [2]int{start, len(p) - gap})
	}
	return bands
}

// profile counts ink pixels per row (byRow) or per column
func profile(m *inkMask, r image.Rectangle, byRow bool) []int {
	var p []int
	if byRow {
		p = make([]int, r.Dy())
	} else {
		p = make([]int, r.Dx())
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if !m.at(x, y) {
				continue
			}
			if byRow {
				p[y-r.Min.Y]++
			} else {
				p[x-r.Min.X]++
			}
		}
	}
	return p
}

// trim shrinks r to the bounding box of its ink
func trim(m *inkMask, r image.Rectangle) image.Rectangle {
	minX, minY, maxX, maxY := r.Max.X, r.Max.Y, r.Min.X-1, r.Min.Y-1
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if !m.at(x, y) {
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
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}
