package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"literature-agent-be/internal/constant"
	"literature-agent-be/pkg/ai/router"
	"literature-agent-be/pkg/figure"
	"literature-agent-be/pkg/llm"
	"literature-agent-be/pkg/stream"
)

// SubfigureAgent resolves figure and subfigure references, attaches the
// images and streams a vision model's analysis
type SubfigureAgent struct {
	deps Deps
}

func NewSubfigureAgent(deps Deps) *SubfigureAgent {
	return &SubfigureAgent{deps: deps}
}

func (a *SubfigureAgent) Kind() router.Intent { return router.IntentSubfigure }

// resolvedImage is one image handed to the vision model
type resolvedImage struct {
	label   string
	path    string
	context string
}

func (a *SubfigureAgent) Run(ctx context.Context, sess *Session, payload Payload, em *stream.Emitter) (*Result, error) {
	if !sess.HasDocument() || sess.Figures == nil {
		return nil, &router.RoutingError{Intent: router.IntentSubfigure}
	}
	if payload.Decision == nil || payload.Decision.References == nil {
		return nil, ErrNoFigureAvailable
	}

	images, err := a.resolve(ctx, sess, payload.Decision.References, em)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, ErrNoFigureAvailable
	}

	var sb strings.Builder
	paths := make([]string, 0, len(images))
	for i, img := range images {
		fmt.Fprintf(&sb, "%d. %s\n%s\n", i+1, img.label, img.context)
		paths = append(paths, img.path)
	}
	listing := sb.String()

	if err := a.analyse(ctx, sess, payload.Query, listing, paths, em); err != nil {
		return nil, err
	}
	return &Result{}, nil
}

// resolve turns references into images, segmenting parents on demand.
// Misses are reported as status events and skipped.
func (a *SubfigureAgent) resolve(ctx context.Context, sess *Session, refs *router.ReferenceParseResult, em *stream.Emitter) ([]resolvedImage, error) {
	var images []resolvedImage
	seen := make(map[string]struct{})
	add := func(img resolvedImage) {
		if _, ok := seen[img.label]; ok {
			return
		}
		seen[img.label] = struct{}{}
		images = append(images, img)
	}

	targets := refs.References
	if refs.AllFigures {
		targets = expandAllFigures(sess.Figures, targets)
	}

	for _, ref := range targets {
		switch ref.Kind {
		case router.ReferenceFigure:
			fig, ok := sess.Figures.Figure(ref.Figure)
			if !ok {
				em.Status(fmt.Sprintf("Figure %d was not found in this document", ref.Figure))
				continue
			}
			em.Figure(figureData(fig))
			add(resolvedImage{label: fig.Label, path: fig.ImagePath, context: a.figureContext(sess, fig)})

		case router.ReferenceSubfigure:
			fig, ok := sess.Figures.Figure(ref.Figure)
			if !ok {
				em.Status(fmt.Sprintf("Figure %d was not found in this document", ref.Figure))
				continue
			}
			sub, err := a.locate(ctx, sess, fig, ref.Subfigure, em)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				var notFound *ReferenceNotFoundError
				if errors.As(err, &notFound) {
					em.Status(notFound.Error())
				} else {
					em.Status(fmt.Sprintf("Could not segment %s: %v", fig.Label, err))
				}
				a.deps.Logger.Info(logModule, "Subfigure reference skipped", map[string]interface{}{
					"figure": ref.Figure, "subfigure": ref.Subfigure, "error": err.Error(),
				})
				continue
			}
			em.Figure(subfigureData(fig, sub))
			add(resolvedImage{label: sub.FullLabel(), path: sub.ImagePath, context: a.figureContext(sess, fig)})
		}
	}
	return images, nil
}

func (a *SubfigureAgent) locate(ctx context.Context, sess *Session, fig figure.Figure, label string, em *stream.Emitter) (figure.Subfigure, error) {
	if !sess.Figures.Segmented(fig.Number) {
		em.Status(fmt.Sprintf("Segmenting %s into subfigures…", fig.Label))
	}
	if a.deps.Segmenter == nil {
		return figure.Subfigure{}, errors.New("segmentation is not configured")
	}
	subs, _, err := sess.Figures.EnsureSegmented(ctx, fig.Number, a.deps.Segmenter.Segment)
	if err != nil {
		return figure.Subfigure{}, err
	}
	for _, sub := range subs {
		if sub.Label == label {
			return sub, nil
		}
	}
	available := make([]string, 0, len(subs))
	for _, sub := range subs {
		available = append(available, sub.Label)
	}
	return figure.Subfigure{}, &ReferenceNotFoundError{Figure: fig.Number, Subfigure: label, Available: available}
}

// expandAllFigures replaces the all-figures reference by one figure
// reference per main figure, keeping explicit references first
func expandAllFigures(store *figure.Store, refs []router.Reference) []router.Reference {
	out := make([]router.Reference, 0, len(refs)+store.Len())
	for _, ref := range refs {
		if ref.Kind != router.ReferenceAllFigures {
			out = append(out, ref)
		}
	}
	for _, fig := range store.Figures() {
		out = append(out, router.Reference{Kind: router.ReferenceFigure, Figure: fig.Number, Raw: fig.Label})
	}
	return out
}

// figureContext is the caption, any cached panel letters and a few text mentions
func (a *SubfigureAgent) figureContext(sess *Session, fig figure.Figure) string {
	var sb strings.Builder
	if fig.Caption != "" {
		fmt.Fprintf(&sb, "Caption: %s\n", fig.Caption)
	}
	if subs, ok := sess.Figures.Subfigures(fig.Number); ok && len(subs) > 1 {
		letters := make([]string, 0, len(subs))
		for _, s := range subs {
			letters = append(letters, s.Label)
		}
		fmt.Fprintf(&sb, "Subfigures: %s\n", strings.Join(letters, ", "))
	}
	for _, m := range sess.Document.Mentions(fig.Number, constant.FigureMentionLimit) {
		fmt.Fprintf(&sb, "Mentioned: %s\n", clip(m, 300))
	}
	return sb.String()
}

// analyse streams the vision answer. A vision timeout before any output
// degrades to a caption-only text answer.
func (a *SubfigureAgent) analyse(ctx context.Context, sess *Session, question, listing string, paths []string, em *stream.Emitter) error {
	history := recentHistory(sess.History, a.deps.Config.MaxHistory)
	messages := append([]llm.Message{{Role: constant.ChatMessageRoleSystem, Content: constant.FigureAnalysisSystemPrompt}}, history...)

	vctx, cancel := context.WithTimeout(ctx, a.deps.Config.VisionTimeout)
	defer cancel()

	emitted := false
	ch, err := a.deps.LLM.ChatVisionStream(vctx, messages, fmt.Sprintf(constant.FigureAnalysisUserPrompt, question, listing), paths)
	if err == nil {
		emitted, err = relay(vctx, ch, em)
	}
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("analyse figures: %w", err)
	}

	a.deps.Logger.Warn(logModule, "Vision analysis timed out", map[string]interface{}{
		"images": len(paths), "partial": emitted,
	})
	if emitted {
		em.Status("Figure analysis timed out; the answer above may be incomplete")
		return nil
	}

	em.Status("Image analysis timed out, answering from captions and text")
	text := []llm.Message{
		{Role: constant.ChatMessageRoleSystem, Content: constant.DocumentQASystemPrompt},
		{Role: constant.ChatMessageRoleUser, Content: fmt.Sprintf(constant.FigureCaptionOnlyPrompt, question, listing)},
	}
	tch, err := a.deps.LLM.ChatStream(ctx, text)
	if err != nil {
		return fmt.Errorf("analyse figures: %w", err)
	}
	if _, err := relay(ctx, tch, em); err != nil {
		return fmt.Errorf("analyse figures: %w", err)
	}
	return nil
}

func figureData(fig figure.Figure) stream.FigureData {
	return stream.FigureData{
		Label:     fig.Label,
		Figure:    fig.Number,
		ImagePath: fig.ImagePath,
		Caption:   fig.Caption,
		Page:      fig.Page,
	}
}

func subfigureData(fig figure.Figure, sub figure.Subfigure) stream.FigureData {
	return stream.FigureData{
		Label:      sub.FullLabel(),
		Figure:     fig.Number,
		Subfigure:  sub.Label,
		ImagePath:  sub.ImagePath,
		Caption:    fig.Caption,
		Page:       fig.Page,
		Method:     string(sub.Method),
		Confidence: sub.Confidence,
	}
}
