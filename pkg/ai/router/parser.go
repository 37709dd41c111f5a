package router

import (
	"regexp"
	"strings"
)

// Prefix constants - ORDER MATTERS for parsing (check longer prefix first)
const (
	PrefixSlides = "/slides"
	PrefixPPT    = "/ppt"
	PrefixReport = "/report"
)

// Intent is the discrete handling category a query is routed to
type Intent string

const (
	IntentQA        Intent = "qa"
	IntentSubfigure Intent = "subfigure-analysis"
	IntentReport    Intent = "report"
	IntentPPT       Intent = "ppt"
)

// Intents lists every intent; the set is closed
var Intents = []Intent{IntentQA, IntentSubfigure, IntentReport, IntentPPT}

// IsGeneration reports whether the intent produces a downloadable document
func (i Intent) IsGeneration() bool {
	return i == IntentReport || i == IntentPPT
}

// ParsedPrompt contains generation-command information extracted from a prompt
type ParsedPrompt struct {
	OriginalPrompt string // Full original prompt
	CleanPrompt    string // Prompt without command prefix
	Generation     Intent // IntentReport, IntentPPT or "" when no command is present
	Trigger        string // The matched prefix or phrase
}

// Command phrases. These must read as an instruction, a bare mention of
// "report" or "slides" inside a question is not a command. English commands
// start a sentence, optionally after a polite lead-in, so "How does the paper
// make the presentation convincing?" stays a question.
var (
	enCommandPattern = regexp.MustCompile(
		`(?i)(?:^|[.!?;:]\s+)(?:(?:please|kindly|now|then|so|ok(?:ay)?,?|can\s+you|could\s+you|would\s+you|will\s+you|help\s+me|i\s+want\s+you\s+to|i'?d\s+like\s+you\s+to|let'?s)\s+)*` +
			`(?:generate|create|make|build|produce|export|prepare)\s+(?:me\s+)?(?:(?:a|an|the|some)\s+)?(?:[\w-]+\s+){0,2}?` +
			`(pptx?|powerpoint|slides?|slide\s+deck|presentation|report)\b`)
	zhCommandPattern = regexp.MustCompile(
		`(?i)(?:生成|创建|制作|做|写|导出|整理)(?:一份|一个|一下|个|份)?[^，。？?！!,.;；]{0,16}?(ppt|幻灯片|演示文稿|汇报稿|报告)`)
)

// Parse extracts a generation command from a prompt
// Supports:
//   - /ppt <prompt>, /slides <prompt> → slide deck generation
//   - /report <prompt>               → report generation
//   - "generate a report", "make slides", "生成PPT", "写一份报告" → same, by phrase
//   - <prompt> → no command
func Parse(prompt string) *ParsedPrompt {
	trimmed := strings.TrimSpace(prompt)
	lower := strings.ToLower(trimmed)

	// 1. Slash commands
	for _, p := range []struct {
		prefix string
		intent Intent
	}{
		{PrefixSlides, IntentPPT},
		{PrefixPPT, IntentPPT},
		{PrefixReport, IntentReport},
	} {
		if !strings.HasPrefix(lower, p.prefix) {
			continue
		}
		rest := trimmed[len(p.prefix):]
		if rest == "" || rest[0] == ' ' {
			return &ParsedPrompt{
				OriginalPrompt: prompt,
				CleanPrompt:    strings.TrimSpace(rest),
				Generation:     p.intent,
				Trigger:        p.prefix,
			}
		}
	}

	// 2. Command phrases
	for _, pattern := range []*regexp.Regexp{enCommandPattern, zhCommandPattern} {
		m := pattern.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		return &ParsedPrompt{
			OriginalPrompt: prompt,
			CleanPrompt:    trimmed,
			Generation:     generationKind(m[1]),
			Trigger:        m[0],
		}
	}

	// 3. Default: no command
	return &ParsedPrompt{
		OriginalPrompt: prompt,
		CleanPrompt:    trimmed,
	}
}

func generationKind(keyword string) Intent {
	k := strings.ToLower(keyword)
	if k == "report" || k == "报告" {
		return IntentReport
	}
	return IntentPPT
}
