package agent

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoFigureAvailable is returned when none of the referenced figures resolved to an image
var ErrNoFigureAvailable = errors.New("no referenced figure is available")

// ReferenceNotFoundError marks a subfigure label that does not exist after
// segmentation. It is recovered locally: the reference is skipped.
type ReferenceNotFoundError struct {
	Figure    int
	Subfigure string
	Available []string
}

func (e *ReferenceNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("Figure %d%s not found: the figure has no separable panels", e.Figure, e.Subfigure)
	}
	return fmt.Sprintf("Figure %d%s not found (available: %s)", e.Figure, e.Subfigure, strings.Join(e.Available, ", "))
}
