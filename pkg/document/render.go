package document

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

const maxEmbedWidth = 1200

var imageLink = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

func renderReportMarkdown(c Content, opts Options) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", c.Title)
	if c.Subtitle != "" {
		fmt.Fprintf(&sb, "_%s_\n\n", c.Subtitle)
	}
	for _, s := range c.Sections {
		if s.Heading != "" {
			fmt.Fprintf(&sb, "## %s\n\n", s.Heading)
		}
		if body := strings.TrimSpace(s.Body); body != "" {
			sb.WriteString(body)
			sb.WriteString("\n\n")
		}
		for _, f := range s.Figures {
			fmt.Fprintf(&sb, "![%s](%s)\n\n", f.Label, f.ImagePath)
			if f.Caption != "" {
				fmt.Fprintf(&sb, "*%s*\n\n", f.Caption)
			}
		}
	}
	return sb.String()
}

// renderSlidesMarkdown emits one slide per section. With frontMatter the
// result is a Marp deck.
func renderSlidesMarkdown(c Content, opts Options, frontMatter bool) string {
	var sb strings.Builder
	if frontMatter {
		theme := opts.Style
		if theme == "" {
			theme = "default"
		}
		fmt.Fprintf(&sb, "---\nmarp: true\ntheme: %s\npaginate: true\n---\n\n", theme)
	}

	fmt.Fprintf(&sb, "# %s\n\n", c.Title)
	if c.Subtitle != "" {
		fmt.Fprintf(&sb, "%s\n\n", c.Subtitle)
	}
	for _, s := range c.Sections {
		sb.WriteString("---\n\n")
		if s.Heading != "" {
			fmt.Fprintf(&sb, "## %s\n\n", s.Heading)
		}
		if body := strings.TrimSpace(s.Body); body != "" {
			sb.WriteString(body)
			sb.WriteString("\n\n")
		}
		for _, f := range s.Figures {
			if frontMatter {
				fmt.Fprintf(&sb, "![bg right:40%% fit](%s)\n\n", f.ImagePath)
			} else {
				fmt.Fprintf(&sb, "![%s](%s)\n\n", f.Label, f.ImagePath)
			}
		}
	}
	return sb.String()
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 960px; margin: 2rem auto; line-height: 1.5; }
img { max-width: 100%; }
section.slide { border: 1px solid #ddd; padding: 2rem; margin-bottom: 2rem; min-height: 480px; }
</style>
</head>
<body>
{{range .Blocks}}{{if $.Slides}}<section class="slide">{{.}}</section>
{{else}}{{.}}{{end}}{{end}}</body>
</html>
`))

type page struct {
	Lang   string
	Title  string
	Slides bool
	Blocks []template.HTML
}

// renderHTML converts markdown to a standalone page with images embedded
func renderHTML(title, md string, opts Options, slides bool) ([]byte, error) {
	md = embedImages(md)

	var chunks []string
	if slides {
		chunks = strings.Split(md, "\n---\n")
	} else {
		chunks = []string{md}
	}

	p := page{Lang: language(opts.Language), Title: title, Slides: slides}
	for _, chunk := range chunks {
		var buf bytes.Buffer
		if err := markdown.Convert([]byte(chunk), &buf); err != nil {
			return nil, err
		}
		p.Blocks = append(p.Blocks, template.HTML(buf.String()))
	}

	var out bytes.Buffer
	if err := pageTemplate.Execute(&out, p); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// embedImages rewrites local image paths to PNG data URIs, downscaled to
// maxEmbedWidth. Unreadable images are left as paths.
func embedImages(md string) string {
	return imageLink.ReplaceAllStringFunc(md, func(m string) string {
		parts := imageLink.FindStringSubmatch(m)
		alt, path := parts[1], parts[2]
		if strings.HasPrefix(path, "data:") || strings.Contains(path, "://") {
			return m
		}
		img, err := imaging.Open(path)
		if err != nil {
			return m
		}
		if img.Bounds().Dx() > maxEmbedWidth {
			img = imaging.Resize(img, maxEmbedWidth, 0, imaging.Lanczos)
		}
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return m
		}
		return fmt.Sprintf("![%s](data:image/png;base64,%s)", alt, base64.StdEncoding.EncodeToString(buf.Bytes()))
	})
}

func language(lang string) string {
	switch strings.ToLower(lang) {
	case "zh", "chinese", "中文":
		return "zh"
	default:
		return "en"
	}
}
