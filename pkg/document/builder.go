package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"literature-agent-be/internal/pkg/logger"

	"github.com/google/uuid"
)

const logModule = "Builder"

// Kind is the artifact family
type Kind string

const (
	KindSlideDeck Kind = "ppt"
	KindReport    Kind = "report"
)

// Output formats
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatMarp     = "marp"
)

// FigureRef is an image placed in a section or slide
type FigureRef struct {
	Label     string
	ImagePath string
	Caption   string
}

// Section is one report section or one slide
type Section struct {
	Heading string
	Body    string // markdown
	Figures []FigureRef
}

// Content is the material handed to the builder
type Content struct {
	Title    string
	Subtitle string
	Sections []Section
}

// Options tune the rendered artifact
type Options struct {
	Style        string
	Language     string
	OutputFormat string
}

// Artifact is a materialized output file
type Artifact struct {
	Path      string
	Name      string
	Kind      Kind
	Format    string
	Size      int64
	CreatedAt time.Time
}

// Builder materializes generated content into a file
type Builder interface {
	Build(ctx context.Context, kind Kind, content Content, opts Options) (*Artifact, error)
}

// BuildError is returned for malformed content or a failed write
type BuildError struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *BuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("build %s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("build %s: %s", e.Kind, e.Reason)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// FileBuilder writes markdown, HTML and Marp slide files under OutputDir
type FileBuilder struct {
	OutputDir string
	logger    logger.ILogger
}

var _ Builder = &FileBuilder{}

func NewFileBuilder(outputDir string, log logger.ILogger) *FileBuilder {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &FileBuilder{OutputDir: outputDir, logger: log}
}

func (b *FileBuilder) Build(ctx context.Context, kind Kind, content Content, opts Options) (*Artifact, error) {
	if err := validate(kind, content); err != nil {
		return nil, err
	}
	format := resolveFormat(kind, opts.OutputFormat)

	var (
		body []byte
		ext  string
		err  error
	)
	switch kind {
	case KindReport:
		md := renderReportMarkdown(content, opts)
		if format == FormatHTML {
			body, err = renderHTML(content.Title, md, opts, false)
			ext = ".html"
		} else {
			body, ext = []byte(md), ".md"
		}
	case KindSlideDeck:
		if format == FormatHTML {
			body, err = renderHTML(content.Title, renderSlidesMarkdown(content, opts, false), opts, true)
			ext = ".html"
		} else {
			body, ext = []byte(renderSlidesMarkdown(content, opts, true)), ".md"
		}
	}
	if err != nil {
		return nil, &BuildError{Kind: kind, Reason: "render failed", Err: err}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(b.OutputDir, 0o755); err != nil {
		return nil, &BuildError{Kind: kind, Reason: "output dir unavailable", Err: err}
	}

	name := fmt.Sprintf("%s_%s_%s%s", slug(content.Title), kind, uuid.NewString()[:8], ext)
	path := filepath.Join(b.OutputDir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return nil, &BuildError{Kind: kind, Reason: "write failed", Err: err}
	}

	b.logger.Info(logModule, "Artifact written", map[string]interface{}{
		"kind": string(kind), "format": format, "path": path, "sections": len(content.Sections),
	})
	return &Artifact{
		Path:      path,
		Name:      name,
		Kind:      kind,
		Format:    format,
		Size:      int64(len(body)),
		CreatedAt: time.Now(),
	}, nil
}

func validate(kind Kind, content Content) error {
	if kind != KindReport && kind != KindSlideDeck {
		return &BuildError{Kind: kind, Reason: "unknown document kind"}
	}
	if strings.TrimSpace(content.Title) == "" {
		return &BuildError{Kind: kind, Reason: "missing title"}
	}
	if len(content.Sections) == 0 {
		return &BuildError{Kind: kind, Reason: "no sections"}
	}
	for i, s := range content.Sections {
		if strings.TrimSpace(s.Heading) == "" && strings.TrimSpace(s.Body) == "" && len(s.Figures) == 0 {
			return &BuildError{Kind: kind, Reason: fmt.Sprintf("section %d is empty", i+1)}
		}
	}
	return nil
}

func resolveFormat(kind Kind, requested string) string {
	switch strings.ToLower(requested) {
	case FormatHTML:
		return FormatHTML
	case FormatMarkdown, "md":
		if kind == KindReport {
			return FormatMarkdown
		}
		return FormatMarp
	case FormatMarp:
		if kind == KindSlideDeck {
			return FormatMarp
		}
		return FormatMarkdown
	}
	if kind == KindSlideDeck {
		return FormatMarp
	}
	return FormatMarkdown
}

var nonSlug = regexp.MustCompile(`[^\p{L}\p{N}]+`)

func slug(title string) string {
	s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "_"), "_")
	runes := []rune(s)
	if len(runes) > 40 {
		s = string(runes[:40])
	}
	if s == "" {
		s = "document"
	}
	return s
}
