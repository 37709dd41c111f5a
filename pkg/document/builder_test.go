package document

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleContent(t *testing.T) Content {
	t.Helper()
	img := imaging.New(40, 30, color.Black)
	path := filepath.Join(t.TempDir(), "figure_2a.png")
	require.NoError(t, imaging.Save(img, path))

	return Content{
		Title:    "Attention Is All You Need",
		Subtitle: "Paper summary",
		Sections: []Section{
			{Heading: "Method", Body: "- self-attention\n- no recurrence"},
			{Heading: "Results", Body: "BLEU improves.", Figures: []FigureRef{{Label: "Figure 2a", ImagePath: path, Caption: "Figure 2: results"}}},
		},
	}
}

func TestBuildReportMarkdown(t *testing.T) {
	b := NewFileBuilder(t.TempDir(), nil)
	artifact, err := b.Build(context.Background(), KindReport, sampleContent(t), Options{})
	require.NoError(t, err)

	assert.Equal(t, FormatMarkdown, artifact.Format)
	assert.True(t, strings.HasSuffix(artifact.Name, ".md"))
	raw, err := os.ReadFile(artifact.Path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "# Attention Is All You Need")
	assert.Contains(t, string(raw), "## Results")
	assert.Contains(t, string(raw), "![Figure 2a](")
	assert.Equal(t, int64(len(raw)), artifact.Size)
}

func TestBuildReportHTMLEmbedsImages(t *testing.T) {
	b := NewFileBuilder(t.TempDir(), nil)
	artifact, err := b.Build(context.Background(), KindReport, sampleContent(t), Options{OutputFormat: "html", Language: "zh"})
	require.NoError(t, err)

	raw, err := os.ReadFile(artifact.Path)
	require.NoError(t, err)
	html := string(raw)
	assert.Contains(t, html, `<html lang="zh">`)
	assert.Contains(t, html, "<h2>Method</h2>")
	assert.Contains(t, html, "<li>self-attention</li>")
	assert.Contains(t, html, "data:image/png;base64,")
}

func TestBuildSlideDeckMarp(t *testing.T) {
	b := NewFileBuilder(t.TempDir(), nil)
	artifact, err := b.Build(context.Background(), KindSlideDeck, sampleContent(t), Options{Style: "gaia"})
	require.NoError(t, err)

	assert.Equal(t, FormatMarp, artifact.Format)
	raw, err := os.ReadFile(artifact.Path)
	require.NoError(t, err)
	deck := string(raw)
	assert.True(t, strings.HasPrefix(deck, "---\nmarp: true\ntheme: gaia\n"))
	// title slide + two content slides
	assert.Equal(t, 3, strings.Count(deck, "\n---\n"))
	assert.Contains(t, deck, "![bg right:40% fit](")
}

func TestBuildSlideDeckHTML(t *testing.T) {
	b := NewFileBuilder(t.TempDir(), nil)
	artifact, err := b.Build(context.Background(), KindSlideDeck, sampleContent(t), Options{OutputFormat: "html"})
	require.NoError(t, err)

	raw, err := os.ReadFile(artifact.Path)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(raw), `<section class="slide">`))
}

func TestBuildRejectsMalformedContent(t *testing.T) {
	b := NewFileBuilder(t.TempDir(), nil)

	tests := []struct {
		name    string
		kind    Kind
		content Content
	}{
		{"missing title", KindReport, Content{Sections: []Section{{Heading: "x"}}}},
		{"no sections", KindSlideDeck, Content{Title: "t"}},
		{"empty section", KindReport, Content{Title: "t", Sections: []Section{{}}}},
		{"unknown kind", Kind("docx"), Content{Title: "t", Sections: []Section{{Heading: "x"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Build(context.Background(), tt.kind, tt.content, Options{})
			var buildErr *BuildError
			assert.True(t, errors.As(err, &buildErr))
		})
	}
}

func TestEmbedImagesDownscales(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wide.png")
	require.NoError(t, imaging.Save(image.NewGray(image.Rect(0, 0, 2400, 10)), path))

	out := embedImages("![wide](" + path + ")")
	assert.True(t, strings.HasPrefix(out, "![wide](data:image/png;base64,"))
	assert.Equal(t, "![x](missing.png)", embedImages("![x](missing.png)"))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "attention_is_all_you_need", slug("Attention Is All You Need!"))
	assert.Equal(t, "document", slug("!!!"))
	assert.Equal(t, "图像分割", slug("图像分割"))
}
