package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"literature-agent-be/internal/constant"
	"literature-agent-be/pkg/ai/router"
	"literature-agent-be/pkg/document"
	"literature-agent-be/pkg/figure"
	"literature-agent-be/pkg/llm"
	"literature-agent-be/pkg/stream"
)

// Generation stages, announced in this order
const (
	StageOutline   = "outline"
	StageDrafting  = "drafting"
	StageFigures   = "figure placement"
	StageExport    = "file export"
	generationStep = 4
)

const defaultMaxFigures = 5

// GenerationAgent produces a report or a slide deck from the loaded document
type GenerationAgent struct {
	kind router.Intent
	deps Deps
}

func NewGenerationAgent(kind router.Intent, deps Deps) *GenerationAgent {
	return &GenerationAgent{kind: kind, deps: deps}
}

func (a *GenerationAgent) Kind() router.Intent { return a.kind }

type outline struct {
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle"`
	Sections []string `json:"sections"`
}

func (a *GenerationAgent) Run(ctx context.Context, sess *Session, payload Payload, em *stream.Emitter) (*Result, error) {
	if !sess.HasDocument() {
		return nil, &router.RoutingError{Intent: a.kind}
	}
	opts := a.options(payload)
	docKind := document.KindReport
	if a.kind == router.IntentPPT {
		docKind = document.KindSlideDeck
	}
	noun := nounFor(a.kind)
	sample := clip(sess.Document.FullText(), constant.GenerationSampleChars)
	discussion := conversationBlock(recentHistory(sess.History, a.deps.Config.MaxHistory))

	// 1. Outline
	em.Progress(StageOutline, 1, generationStep, fmt.Sprintf("Planning the %s outline", noun))
	plan, err := a.outline(ctx, sess, opts, noun, discussion, sample)
	if err != nil {
		return nil, err
	}

	// 2. Drafting
	em.Progress(StageDrafting, 2, generationStep, fmt.Sprintf("Drafting %d sections", len(plan.Sections)))
	content := document.Content{Title: plan.Title, Subtitle: plan.Subtitle}
	format := constant.ReportBodyFormat
	if docKind == document.KindSlideDeck {
		format = constant.SlideBodyFormat
	}
	for i, heading := range plan.Sections {
		em.Thinking(fmt.Sprintf("Drafting section %d/%d: %s", i+1, len(plan.Sections), heading))
		prompt := fmt.Sprintf(constant.SectionDraftPrompt, heading, noun, opts.Style, opts.Language, opts.Instruction, format, discussion, sample)
		body, err := a.deps.LLM.Chat(ctx, []llm.Message{{Role: constant.ChatMessageRoleUser, Content: prompt}},
			llm.WithTemperature(constant.DraftTemperature),
			llm.WithMaxTokens(constant.DraftMaxTokens),
		)
		if err != nil {
			return nil, fmt.Errorf("draft section %q: %w", heading, err)
		}
		content.Sections = append(content.Sections, document.Section{Heading: heading, Body: strings.TrimSpace(body)})
	}

	// 3. Figure placement
	em.Progress(StageFigures, 3, generationStep, "Placing figures")
	if opts.IncludeFigures && sess.Figures != nil {
		content.Sections = a.placeFigures(ctx, sess, opts, docKind, content.Sections, em)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	// 4. File export
	em.Progress(StageExport, 4, generationStep, fmt.Sprintf("Writing the %s file", noun))
	artifact, err := a.deps.Builder.Build(ctx, docKind, content, document.Options{
		Style:        opts.Style,
		Language:     opts.Language,
		OutputFormat: opts.OutputFormat,
	})
	if err != nil {
		return nil, err
	}

	token, err := a.deps.Artifacts.Register(ctx, artifact)
	if err != nil {
		return nil, fmt.Errorf("register artifact: %w", err)
	}
	em.Download(stream.DownloadData{
		Name:   artifact.Name,
		Kind:   string(artifact.Kind),
		Format: artifact.Format,
		Token:  token,
		Size:   artifact.Size,
	}, a.deps.Config.DownloadPath+"?token="+url.QueryEscape(token), artifact.Path)

	return &Result{
		Summary:  fmt.Sprintf("Generated %s \"%s\" (%s, %d sections): %s", noun, content.Title, artifact.Format, len(content.Sections), artifact.Name),
		Artifact: artifact,
	}, nil
}

func (a *GenerationAgent) options(payload Payload) GenerateOptions {
	var opts GenerateOptions
	if payload.Generate != nil {
		opts = *payload.Generate
	} else {
		opts.IncludeFigures = true
		if payload.Decision != nil && payload.Decision.Generation != nil {
			opts.Figures = payload.Decision.Generation.Figures
			opts.Instruction = payload.Decision.Generation.Prompt
		}
		if containsHan(payload.Query) {
			opts.Language = "中文"
		}
	}
	opts.Type = a.kind
	if opts.Style == "" {
		opts.Style = "academic"
	}
	if opts.Language == "" {
		opts.Language = "English"
	}
	if opts.MaxFigures <= 0 {
		opts.MaxFigures = defaultMaxFigures
	}
	if len(opts.Figures) > 0 {
		opts.IncludeFigures = true
	}
	return opts
}

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

func (a *GenerationAgent) outline(ctx context.Context, sess *Session, opts GenerateOptions, noun, discussion, sample string) (*outline, error) {
	minSections, maxSections := 4, 6
	if a.kind == router.IntentPPT {
		minSections, maxSections = 5, 8
	}
	prompt := fmt.Sprintf(constant.OutlinePrompt, noun, opts.Style, opts.Language, opts.Instruction, minSections, maxSections, discussion, sample)
	raw, err := a.deps.LLM.Chat(ctx, []llm.Message{{Role: constant.ChatMessageRoleUser, Content: prompt}},
		llm.WithTemperature(constant.OutlineTemperature),
	)
	if err != nil {
		return nil, fmt.Errorf("plan outline: %w", err)
	}

	var plan outline
	if m := jsonObject.FindString(raw); m == "" || json.Unmarshal([]byte(m), &plan) != nil || len(plan.Sections) == 0 {
		a.deps.Logger.Warn(logModule, "Outline was not valid JSON, using default", map[string]interface{}{
			"kind": string(a.kind),
		})
		plan = defaultOutline(a.kind, opts.Language)
	}
	if strings.TrimSpace(plan.Title) == "" {
		plan.Title = strings.TrimSuffix(sess.Document.Name, ".pdf")
	}
	if len(plan.Sections) > maxSections {
		plan.Sections = plan.Sections[:maxSections]
	}
	return &plan, nil
}

// conversationBlock renders recent turns for the generation prompts; empty
// when nothing was discussed yet
func conversationBlock(history []llm.Message) string {
	if len(history) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n### CONVERSATION\n")
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, clip(m.Content, constant.GenerationTurnChars))
	}
	return b.String()
}

func defaultOutline(kind router.Intent, language string) outline {
	zh := isChinese(language)
	if kind == router.IntentPPT {
		if zh {
			return outline{Title: "论文解读", Sections: []string{"研究背景", "研究动机", "方法", "主要结果", "结论"}}
		}
		return outline{Title: "Paper Overview", Sections: []string{"Background", "Motivation", "Method", "Results", "Conclusion"}}
	}
	if zh {
		return outline{Title: "阅读报告", Sections: []string{"基本信息", "研究背景与动机", "研究方法", "实验与结果", "讨论与结论"}}
	}
	return outline{Title: "Reading Report", Sections: []string{"Overview", "Background and Motivation", "Method", "Experiments and Results", "Discussion and Conclusion"}}
}

// placeFigures attaches figures. Named figures are segmented and their
// panels placed; otherwise the first MaxFigures main figures are used.
// Slides get one slide per figure, reports one figures section.
func (a *GenerationAgent) placeFigures(ctx context.Context, sess *Session, opts GenerateOptions, kind document.Kind, sections []document.Section, em *stream.Emitter) []document.Section {
	var figs []figure.Figure
	if len(opts.Figures) > 0 {
		for _, n := range opts.Figures {
			fig, ok := sess.Figures.Figure(n)
			if !ok {
				em.Status(fmt.Sprintf("Figure %d was not found in this document", n))
				continue
			}
			figs = append(figs, fig)
		}
	} else {
		figs = sess.Figures.Figures()
	}
	if len(figs) > opts.MaxFigures {
		figs = figs[:opts.MaxFigures]
	}
	if len(figs) == 0 {
		return sections
	}

	var placed []document.Section
	for _, fig := range figs {
		refs := []document.FigureRef{{Label: fig.Label, ImagePath: fig.ImagePath, Caption: fig.Caption}}
		body := strings.Join(sess.Document.Mentions(fig.Number, 1), " ")

		if len(opts.Figures) > 0 && a.deps.Segmenter != nil {
			if !sess.Figures.Segmented(fig.Number) {
				em.Status(fmt.Sprintf("Segmenting %s into subfigures…", fig.Label))
			}
			subs, _, err := sess.Figures.EnsureSegmented(ctx, fig.Number, a.deps.Segmenter.Segment)
			if err != nil {
				if ctx.Err() != nil {
					return sections
				}
				em.Status(fmt.Sprintf("Could not segment %s: %v", fig.Label, err))
			} else if len(subs) > 1 {
				refs = refs[:0]
				for _, sub := range subs {
					refs = append(refs, document.FigureRef{Label: sub.FullLabel(), ImagePath: sub.ImagePath, Caption: fig.Caption})
				}
			}
		}

		if kind == document.KindSlideDeck {
			placed = append(placed, document.Section{Heading: fig.Label, Body: clip(firstNonEmpty(body, fig.Caption), 300), Figures: refs})
			continue
		}
		placed = append(placed, document.Section{Heading: fig.Label, Body: firstNonEmpty(body, fig.Caption), Figures: refs})
	}

	if kind == document.KindSlideDeck {
		// figure slides go before the last two content slides (results, conclusion)
		cut := len(sections) - 2
		if cut < 0 {
			cut = 0
		}
		out := append([]document.Section{}, sections[:cut]...)
		out = append(out, placed...)
		return append(out, sections[cut:]...)
	}
	return append(sections, placed...)
}

func nounFor(kind router.Intent) string {
	if kind == router.IntentPPT {
		return "slide deck"
	}
	return "report"
}

func isChinese(language string) bool {
	l := strings.ToLower(language)
	return l == "zh" || l == "chinese" || strings.Contains(language, "中文")
}

func containsHan(s string) bool {
	for _, r := range s {
		if r >= 0x4e00 && r <= 0x9fff {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
