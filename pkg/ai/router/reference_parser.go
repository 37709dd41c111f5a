package router

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ReferenceKind indicates what a reference points at
type ReferenceKind string

const (
	ReferenceDocument   ReferenceKind = "document"
	ReferenceFigure     ReferenceKind = "figure"
	ReferenceSubfigure  ReferenceKind = "subfigure"
	ReferenceAllFigures ReferenceKind = "all_figures"
)

// Reference is one figure target extracted from a query
type Reference struct {
	Kind      ReferenceKind
	Figure    int    // 1-based, zero for document / all-figures
	Subfigure string // lower-case letter, empty unless Kind is subfigure
	Raw       string // the matched text
}

// Label renders the reference the way figures are labelled, e.g. "Figure 2a"
func (r Reference) Label() string {
	switch r.Kind {
	case ReferenceFigure:
		return "Figure " + strconv.Itoa(r.Figure)
	case ReferenceSubfigure:
		return "Figure " + strconv.Itoa(r.Figure) + r.Subfigure
	case ReferenceAllFigures:
		return "all figures"
	default:
		return "document"
	}
}

// ReferenceParseResult contains all parsed references of a query
type ReferenceParseResult struct {
	References []Reference
	AllFigures bool // an "all figures" trigger phrase is present
	HasRefs    bool // Quick check for any references
}

// HasSubfigure reports whether any reference names a subfigure
func (r *ReferenceParseResult) HasSubfigure() bool {
	for _, ref := range r.References {
		if ref.Kind == ReferenceSubfigure {
			return true
		}
	}
	return false
}

// Reference grammar:
//
//	word      = "figure" | "figures" | "fig" | "fig." | "figs" | "图"
//	number    = digits | chinese numeral (一 .. 九十九)
//	tail      = [ "的" | "之" ] [ "子图" | "subfigure" | "sub-figure" | "panel" ] [ "-" | "." | "(" | "（" ] letter [ ")" | "）" ]
//	reference = word [space] number [space] [tail]
var (
	figureRefPattern = regexp.MustCompile(
		`(?i)(?:figures?|figs?\.?|图)\s*(\d+|[零一二两三四五六七八九十]+)` +
			`(?:(\s*(?:[的之]\s*)?(?:子图|sub-?figure|panel)?\s*[-.(（]?\s*)([a-z])(?:\s*[)）])?)?`)

	allFiguresPattern = regexp.MustCompile(
		`(?i)(?:all|every|each)\s+(?:of\s+)?(?:the\s+)?(?:figures?|figs?\.?|subfigures?)|所有的?(?:子)?图|全部的?(?:子)?图|每[张个幅]图|各个?图`)

	whitespaceOnly = regexp.MustCompile(`^\s+$`)
	// "." or "-" followed by whitespace before the letter, as in "Figure 3. I"
	loosePunct = regexp.MustCompile(`[-.]\s+$`)
)

var fullWidthDigits = strings.NewReplacer(
	"０", "0", "１", "1", "２", "2", "３", "3", "４", "4",
	"５", "5", "６", "6", "７", "7", "８", "8", "９", "9",
)

// ParseReferences extracts all figure and subfigure references from a query.
// Supports:
//   - Figure 1 / fig. 1 / 图1 / 图一        → figure reference
//   - Figure 2a / Fig 2(b) / 图3子图c / 图3 的 c → subfigure reference
//   - "all figures" / 所有图 / 每张图           → all-figures reference
//
// Unmatched text yields an empty result, never an error.
func ParseReferences(text string) *ReferenceParseResult {
	result := &ReferenceParseResult{
		References: make([]Reference, 0),
	}

	normalized := fullWidthDigits.Replace(text)
	seen := make(map[string]struct{})

	for pos := 0; pos < len(normalized); {
		loc := figureRefPattern.FindStringSubmatchIndex(normalized[pos:])
		if loc == nil {
			break
		}
		for i := range loc {
			if loc[i] >= 0 {
				loc[i] += pos
			}
		}

		// "config 2" is not a figure reference
		if prev, _ := utf8.DecodeLastRuneInString(normalized[:loc[0]]); loc[0] > 0 && normalized[loc[0]] < utf8.RuneSelf &&
			prev < utf8.RuneSelf && unicode.IsLetter(prev) {
			pos = loc[0] + 1
			continue
		}

		number, ok := parseNumeral(normalized[loc[2]:loc[3]])
		if !ok || number <= 0 {
			pos = loc[3]
			continue
		}

		ref := Reference{Kind: ReferenceFigure, Figure: number, Raw: normalized[loc[0]:loc[3]]}
		pos = loc[3]
		if loc[6] >= 0 {
			sep := normalized[loc[4]:loc[5]]
			if acceptLetter(sep, normalized[loc[6]:loc[7]], normalized[loc[7]:]) {
				ref.Kind = ReferenceSubfigure
				ref.Subfigure = strings.ToLower(normalized[loc[6]:loc[7]])
				ref.Raw = normalized[loc[0]:loc[1]]
				pos = loc[1]
			}
		}

		key := ref.Label()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result.References = append(result.References, ref)
	}

	if m := allFiguresPattern.FindString(normalized); m != "" {
		result.AllFigures = true
		result.References = append(result.References, Reference{Kind: ReferenceAllFigures, Raw: m})
	}

	result.HasRefs = len(result.References) > 0
	return result
}

// acceptLetter decides whether a letter after a figure number is a subfigure
// label. rest is the text following the letter.
func acceptLetter(sep, letter, rest string) bool {
	next, size := utf8.DecodeRuneInString(rest)
	if size > 0 && next < utf8.RuneSelf && unicode.IsLetter(next) {
		// "Figure 1 and", "Figure 2ab"
		return false
	}
	if loosePunct.MatchString(sep) {
		// "Figure 3. I don't get it" starts a new sentence
		if strings.Contains(sep, ".") && strings.ToUpper(letter) == letter {
			return false
		}
		return atBoundary(next, size)
	}
	if sep == "" || !whitespaceOnly.MatchString(sep) {
		return true
	}
	// plain whitespace separator: "Figure 1 a" only at a boundary, so that
	// "Figure 1 a good result" stays a figure reference
	return atBoundary(next, size)
}

// atBoundary reports whether a separated letter ends the reference: end of
// text, punctuation or a non-ASCII rune.
func atBoundary(next rune, size int) bool {
	if size == 0 || next >= utf8.RuneSelf {
		return true
	}
	return unicode.IsPunct(next)
}

var chineseDigits = map[rune]int{
	'零': 0, '一': 1, '二': 2, '两': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

// parseNumeral accepts ASCII digits or Chinese numerals up to 九十九
func parseNumeral(s string) (int, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}

	runes := []rune(s)
	switch {
	case len(runes) == 1 && runes[0] == '十':
		return 10, true
	case len(runes) == 1:
		d, ok := chineseDigits[runes[0]]
		return d, ok
	case len(runes) == 2 && runes[0] == '十':
		d, ok := chineseDigits[runes[1]]
		return 10 + d, ok
	case len(runes) == 2 && runes[1] == '十':
		d, ok := chineseDigits[runes[0]]
		return d * 10, ok
	case len(runes) == 3 && runes[1] == '十':
		tens, ok1 := chineseDigits[runes[0]]
		ones, ok2 := chineseDigits[runes[2]]
		return tens*10 + ones, ok1 && ok2
	}
	return 0, false
}
