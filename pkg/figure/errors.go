package figure

import "errors"

// ErrFigureNotFound is returned when a figure number is not part of the document
var ErrFigureNotFound = errors.New("figure not found")
