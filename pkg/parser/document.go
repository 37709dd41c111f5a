package parser

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"literature-agent-be/pkg/figure"
)

// PageText is the extracted text of one page
type PageText struct {
	Page    int
	Content string
}

// Document is the parsed form of a loaded file
type Document struct {
	ID      string
	Path    string
	Name    string
	Pages   int
	Texts   []PageText
	Figures []figure.Figure
}

// Parser loads a document from disk
type Parser interface {
	Load(ctx context.Context, path string) (*Document, error)
}

// Caption is a figure caption found in page text
type Caption struct {
	Number int
	Page   int
	Text   string
}

// English captions need a delimiter after the number ("Figure 2:", "Fig. 2.",
// "Figure 2 |"); Chinese captions may use a space ("图2 实验结果").
var captionPattern = regexp.MustCompile(`(?mi)^[ \t]*(?:(?:figure|fig\.?)[ \t]*(\d+)[ \t]*[:.：|]|图[ \t]*(\d+)[ \t:：.])[ \t]*(.*)$`)

// FindCaptions returns the first caption of each figure number, ordered by
// number. A caption line must start with the figure word so that in-text
// mentions ("as shown in Figure 2") are not mistaken for captions.
func FindCaptions(texts []PageText) []Caption {
	seen := make(map[int]struct{})
	var captions []Caption
	for _, pt := range texts {
		for _, m := range captionPattern.FindAllStringSubmatch(pt.Content, -1) {
			num := m[1]
			if num == "" {
				num = m[2]
			}
			n, err := strconv.Atoi(num)
			if err != nil || n <= 0 {
				continue
			}
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			captions = append(captions, Caption{
				Number: n,
				Page:   pt.Page,
				Text:   strings.TrimSpace(m[0]),
			})
		}
	}
	sort.Slice(captions, func(i, j int) bool { return captions[i].Number < captions[j].Number })
	return captions
}

// Mentions returns up to limit text snippets that mention the figure,
// skipping its caption line
func (d *Document) Mentions(number int, limit int) []string {
	if limit <= 0 {
		return nil
	}
	mention := regexp.MustCompile(`(?i)(?:figure|fig\.?|图)\s*` + strconv.Itoa(number) + `(?:[^0-9]|$)`)
	caption := d.Caption(number)

	var out []string
	for _, pt := range d.Texts {
		for _, sentence := range splitSentences(pt.Content) {
			if !mention.MatchString(sentence) {
				continue
			}
			if caption != "" && (strings.HasPrefix(caption, sentence) || strings.HasPrefix(sentence, caption)) {
				continue
			}
			out = append(out, sentence)
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}

// Caption returns the caption of a figure, or an empty string
func (d *Document) Caption(number int) string {
	for _, f := range d.Figures {
		if f.Number == number {
			return f.Caption
		}
	}
	return ""
}

// FullText joins all page text
func (d *Document) FullText() string {
	var sb strings.Builder
	for _, pt := range d.Texts {
		sb.WriteString(pt.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

var (
	sentenceEnd  = regexp.MustCompile(`[.!?。！？]\s+|\n{2,}`)
	abbreviation = regexp.MustCompile(`(?i)\b(figs?|eqs?|al|e\.g|i\.e|vs)\.[ \t]`)
)

func splitSentences(text string) []string {
	// a no-break space after "Fig." keeps the abbreviation from ending a sentence
	text = abbreviation.ReplaceAllString(text, "${1}.\u00a0")
	parts := sentenceEnd.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimRight(strings.Join(strings.Fields(p), " "), ".!?。！？")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
