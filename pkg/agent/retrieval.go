package agent

import (
	"sort"
	"strings"
	"unicode"

	"literature-agent-be/pkg/parser"
	"literature-agent-be/pkg/utils"
)

// excerpt is a page snippet chosen as context for a question
type excerpt struct {
	Page  int
	Text  string
	score int
}

// relevantPages splits pages into windows of maxChars, ranks the windows by
// term overlap with the question and returns the top k. When nothing
// overlaps, the head of the document is used.
func relevantPages(doc *parser.Document, question string, k, maxChars int) []excerpt {
	if doc == nil || len(doc.Texts) == 0 || k <= 0 {
		return nil
	}

	terms := tokenize(question)
	scored := make([]excerpt, 0, len(doc.Texts))
	for _, pt := range doc.Texts {
		for _, chunk := range utils.SplitText(pt.Content, maxChars, maxChars/10) {
			score := 0
			if len(terms) > 0 {
				chunkTerms := tokenize(chunk)
				for t := range terms {
					score += chunkTerms[t]
				}
			}
			scored = append(scored, excerpt{Page: pt.Page, Text: chunk, score: score})
		}
	}
	if len(scored) == 0 {
		return nil
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if scored[0].score == 0 {
		// fallback: document head in page order
		sort.SliceStable(scored, func(i, j int) bool { return scored[i].Page < scored[j].Page })
	}

	if len(scored) > k {
		scored = scored[:k]
	}
	for i := range scored {
		scored[i].Text = clip(scored[i].Text, maxChars)
	}
	return scored
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "what": {}, "does": {}, "this": {}, "that": {}, "with": {},
	"for": {}, "are": {}, "how": {}, "why": {}, "paper": {}, "from": {}, "about": {},
	"is": {}, "of": {}, "in": {}, "to": {}, "a": {}, "an": {}, "it": {}, "on": {},
}

// tokenize counts lower-cased latin words and CJK bigrams
func tokenize(text string) map[string]int {
	counts := make(map[string]int)
	var word []rune
	var prevCJK rune

	flush := func() {
		if len(word) >= 2 {
			w := string(word)
			if _, stop := stopwords[w]; !stop {
				counts[w]++
			}
		}
		word = word[:0]
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			if prevCJK != 0 {
				counts[string([]rune{prevCJK, r})]++
			}
			prevCJK = r
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			prevCJK = 0
			word = append(word, r)
		default:
			prevCJK = 0
			flush()
		}
	}
	flush()
	return counts
}

func clip(s string, n int) string {
	runes := []rune(strings.TrimSpace(s))
	if n <= 0 || len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "…"
}
