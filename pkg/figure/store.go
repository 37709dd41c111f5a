package figure

import (
	"context"
	"fmt"
	"image"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Method tags how a subfigure region was detected
type Method string

const (
	MethodModel     Method = "model"
	MethodHeuristic Method = "heuristic"
)

// Figure is one main figure extracted from the source document. Immutable once created.
type Figure struct {
	Label     string `json:"label"` // "Figure 2"
	Number    int    `json:"number"`
	ImagePath string `json:"image_path"`
	Caption   string `json:"caption,omitempty"`
	Page      int    `json:"page"`
}

// Subfigure is a region of a parent figure, keyed by (Parent, Label)
type Subfigure struct {
	Parent     int             `json:"parent"`
	Label      string          `json:"label"` // "a", "b", ...
	Region     image.Rectangle `json:"region"`
	Confidence float64         `json:"confidence"`
	Method     Method          `json:"method"`
	ImagePath  string          `json:"image_path"`
}

// FullLabel returns the display label, e.g. "Figure 2a"
func (s Subfigure) FullLabel() string {
	return fmt.Sprintf("Figure %d%s", s.Parent, s.Label)
}

// NewFigure builds a figure with the canonical "Figure N" label
func NewFigure(number int, imagePath, caption string, page int) Figure {
	return Figure{
		Label:     "Figure " + strconv.Itoa(number),
		Number:    number,
		ImagePath: imagePath,
		Caption:   caption,
		Page:      page,
	}
}

// SegmentFunc computes the subfigures of one figure
type SegmentFunc func(ctx context.Context, fig Figure) ([]Subfigure, error)

// Store holds the main figures of one document and memoizes their segmentation.
// Segmentation for a figure runs at most once; failed runs are not cached.
type Store struct {
	mu         sync.RWMutex
	figures    map[int]Figure
	subfigures map[int][]Subfigure
	group      singleflight.Group
}

// NewStore creates a store seeded with the document's main figures
func NewStore(figures []Figure) *Store {
	s := &Store{
		figures:    make(map[int]Figure, len(figures)),
		subfigures: make(map[int][]Subfigure),
	}
	for _, f := range figures {
		if _, exists := s.figures[f.Number]; exists {
			continue
		}
		s.figures[f.Number] = f
	}
	return s
}

// Figures returns all main figures ordered by number
func (s *Store) Figures() []Figure {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Figure, 0, len(s.figures))
	for _, f := range s.figures {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Len returns the number of main figures
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.figures)
}

// Figure looks up a main figure by number
func (s *Store) Figure(number int) (Figure, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.figures[number]
	return f, ok
}

// Subfigures returns the cached segmentation of a figure. The bool reports
// whether segmentation has run at all; an empty slice with true means
// "no split needed".
func (s *Store) Subfigures(number int) ([]Subfigure, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subs, ok := s.subfigures[number]
	if !ok {
		return nil, false
	}
	return append([]Subfigure(nil), subs...), true
}

// Subfigure finds a cached subfigure by parent number and letter
func (s *Store) Subfigure(number int, label string) (Subfigure, bool) {
	subs, _ := s.Subfigures(number)
	for _, sub := range subs {
		if sub.Label == label {
			return sub, true
		}
	}
	return Subfigure{}, false
}

// Segmented reports whether a figure's segmentation is cached
func (s *Store) Segmented(number int) bool {
	_, ok := s.Subfigures(number)
	return ok
}

// EnsureSegmented returns the subfigures of a figure, invoking segment only
// when nothing is cached yet. computed is true when this call ran segment.
func (s *Store) EnsureSegmented(ctx context.Context, number int, segment SegmentFunc) (subs []Subfigure, computed bool, err error) {
	if cached, ok := s.Subfigures(number); ok {
		return cached, false, nil
	}

	fig, ok := s.Figure(number)
	if !ok {
		return nil, false, fmt.Errorf("figure %d: %w", number, ErrFigureNotFound)
	}

	v, err, _ := s.group.Do(strconv.Itoa(number), func() (interface{}, error) {
		// re-check under the flight: a previous flight may have filled it
		if cached, ok := s.Subfigures(number); ok {
			return fillResult{subs: cached}, nil
		}
		result, err := segment(ctx, fig)
		if err != nil {
			return nil, err
		}
		result = dedupe(number, result)

		s.mu.Lock()
		s.subfigures[number] = result
		s.mu.Unlock()
		return fillResult{subs: result, computed: true}, nil
	})
	if err != nil {
		return nil, false, err
	}

	r := v.(fillResult)
	return append([]Subfigure(nil), r.subs...), r.computed, nil
}

type fillResult struct {
	subs     []Subfigure
	computed bool
}

// dedupe enforces the (parent, label) uniqueness of a segmentation result
func dedupe(parent int, subs []Subfigure) []Subfigure {
	seen := make(map[string]struct{}, len(subs))
	out := make([]Subfigure, 0, len(subs))
	for _, sub := range subs {
		sub.Parent = parent
		if _, dup := seen[sub.Label]; dup {
			continue
		}
		seen[sub.Label] = struct{}{}
		out = append(out, sub)
	}
	return out
}
