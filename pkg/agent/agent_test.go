package agent

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"testing"
	"time"

	"literature-agent-be/internal/pkg/logger"
	"literature-agent-be/pkg/ai/router"
	"literature-agent-be/pkg/document"
	"literature-agent-be/pkg/figure"
	"literature-agent-be/pkg/llm"
	"literature-agent-be/pkg/parser"
	"literature-agent-be/pkg/stream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeLLM struct {
	mu           sync.Mutex
	chunks       []string
	outline      string
	visionBlock  bool
	openErr      error
	prompts      []string
	visionImages [][]string
}

func chunkChan(parts []string) <-chan llm.StreamChunk {
	ch := make(chan llm.StreamChunk, len(parts))
	for _, p := range parts {
		ch <- llm.StreamChunk{Content: p}
	}
	close(ch)
	return ch
}

func (f *fakeLLM) record(history []llm.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(history) > 0 {
		f.prompts = append(f.prompts, history[len(history)-1].Content)
	}
}

func (f *fakeLLM) ChatStream(ctx context.Context, history []llm.Message, options ...llm.Option) (<-chan llm.StreamChunk, error) {
	f.record(history)
	if f.openErr != nil {
		return nil, f.openErr
	}
	return chunkChan(f.chunks), nil
}

func (f *fakeLLM) ChatVisionStream(ctx context.Context, history []llm.Message, prompt string, images []string, options ...llm.Option) (<-chan llm.StreamChunk, error) {
	f.mu.Lock()
	f.visionImages = append(f.visionImages, images)
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.visionBlock {
		ch := make(chan llm.StreamChunk, 1)
		go func() {
			<-ctx.Done()
			ch <- llm.StreamChunk{Err: ctx.Err()}
			close(ch)
		}()
		return ch, nil
	}
	return chunkChan(f.chunks), nil
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	f.record(history)
	if f.openErr != nil {
		return "", f.openErr
	}
	if strings.Contains(history[len(history)-1].Content, "Return JSON only") {
		return f.outline, nil
	}
	return "- point one\n- point two", nil
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return f.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, options...)
}

type fakeSegmenter struct {
	mu     sync.Mutex
	calls  int
	labels []string
}

func (s *fakeSegmenter) Segment(ctx context.Context, fig figure.Figure) ([]figure.Subfigure, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	subs := make([]figure.Subfigure, 0, len(s.labels))
	for i, l := range s.labels {
		subs = append(subs, figure.Subfigure{
			Parent:     fig.Number,
			Label:      l,
			Region:     image.Rect(i*10, 0, i*10+10, 10),
			Confidence: 0.5,
			Method:     figure.MethodHeuristic,
			ImagePath:  fmt.Sprintf("/tmp/figure_%d%s.png", fig.Number, l),
		})
	}
	return subs, nil
}

type fakeRegistry struct{}

func (fakeRegistry) Register(ctx context.Context, artifact *document.Artifact) (string, error) {
	return "tok-1", nil
}

// --- helpers ---

func testSession() *Session {
	figs := []figure.Figure{
		figure.NewFigure(1, "/tmp/figure_1.png", "Figure 1: Model overview", 1),
		figure.NewFigure(2, "/tmp/figure_2.png", "Figure 2: Training curves", 3),
	}
	return &Session{
		ID: "s1",
		Document: &parser.Document{
			ID:    "doc-1",
			Name:  "paper.pdf",
			Pages: 3,
			Texts: []parser.PageText{
				{Page: 1, Content: "We propose a transformer for protein folding."},
				{Page: 2, Content: "As shown in Figure 2, the validation loss drops after warmup."},
				{Page: 3, Content: "Figure 2: Training curves"},
			},
			Figures: figs,
		},
		Figures: figure.NewStore(figs),
	}
}

func newDeps(t *testing.T, fake *fakeLLM, seg *fakeSegmenter) Deps {
	deps := Deps{
		LLM:       fake,
		Builder:   document.NewFileBuilder(t.TempDir(), nil),
		Artifacts: fakeRegistry{},
		Config:    Config{VisionTimeout: time.Second, MaxHistory: 10, DownloadPath: "/api/download"},
		Logger:    logger.NewNopLogger(),
	}
	if seg != nil {
		deps.Segmenter = seg
	}
	return deps
}

func run(t *testing.T, a Agent, sess *Session, payload Payload) ([]stream.Event, *stream.Emitter, *Result, error) {
	t.Helper()
	ch := make(chan stream.Event, 256)
	em := stream.NewEmitter(context.Background(), ch, nil)
	res, err := a.Run(context.Background(), sess, payload, em)
	close(ch)
	var events []stream.Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events, em, res, err
}

func types(events []stream.Event) []stream.Type {
	out := make([]stream.Type, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func queryPayload(q string) Payload {
	return Payload{Query: q, Decision: router.Classify(q)}
}

// --- tests ---

func TestSetForIsExhaustive(t *testing.T) {
	set := NewSet(newDeps(t, &fakeLLM{}, nil))
	for _, intent := range router.Intents {
		a, err := set.For(intent)
		require.NoError(t, err)
		assert.Equal(t, intent, a.Kind())
	}
	_, err := set.For(router.Intent("translate"))
	assert.Error(t, err)
}

func TestQAChitChatWithoutDocument(t *testing.T) {
	fake := &fakeLLM{chunks: []string{"你好", "！有什么", "可以帮你？"}}
	events, em, _, err := run(t, NewQAAgent(newDeps(t, fake, nil)), &Session{}, queryPayload("你好"))
	require.NoError(t, err)

	assert.Equal(t, []stream.Type{stream.TypeAnswerChunk, stream.TypeAnswerChunk, stream.TypeAnswerChunk}, types(events))
	assert.Equal(t, "你好！有什么可以帮你？", em.AnswerText())
	assert.Equal(t, "你好", fake.prompts[0])
}

func TestQAUsesRelevantPages(t *testing.T) {
	fake := &fakeLLM{chunks: []string{"It drops."}}
	_, _, _, err := run(t, NewQAAgent(newDeps(t, fake, nil)), testSession(), queryPayload("when does the validation loss drop?"))
	require.NoError(t, err)

	require.Len(t, fake.prompts, 1)
	assert.Contains(t, fake.prompts[0], "--- PAGE 2 ---")
	assert.Contains(t, fake.prompts[0], "paper.pdf")
}

func TestQASurfacesLLMUnavailable(t *testing.T) {
	fake := &fakeLLM{openErr: llm.ErrLLMUnavailable}
	events, _, _, err := run(t, NewQAAgent(newDeps(t, fake, nil)), &Session{}, queryPayload("hi"))
	assert.ErrorIs(t, err, llm.ErrLLMUnavailable)
	assert.Empty(t, events)
}

func TestSubfigureSegmentsOnDemand(t *testing.T) {
	fake := &fakeLLM{chunks: []string{"Panel a shows ", "the loss."}}
	seg := &fakeSegmenter{labels: []string{"a", "b"}}
	agent := NewSubfigureAgent(newDeps(t, fake, seg))
	sess := testSession()

	events, em, _, err := run(t, agent, sess, queryPayload("Figure 2a展示了什么？"))
	require.NoError(t, err)

	assert.Equal(t, []stream.Type{
		stream.TypeStatus, stream.TypeFigure, stream.TypeAnswerChunk, stream.TypeAnswerChunk,
	}, types(events))
	assert.Contains(t, events[0].Content, "Segmenting Figure 2")
	assert.Equal(t, "Figure 2a", events[1].Content)
	assert.Equal(t, "/tmp/figure_2a.png", events[1].FilePath)
	assert.Equal(t, "Panel a shows the loss.", em.AnswerText())
	assert.Equal(t, [][]string{{"/tmp/figure_2a.png"}}, fake.visionImages)
	assert.Contains(t, fake.prompts[0], "Caption: Figure 2: Training curves")
	assert.Contains(t, fake.prompts[0], "Mentioned: As shown in Figure 2")

	// second call hits the cache
	events, _, _, err = run(t, agent, sess, queryPayload("and Figure 2b?"))
	require.NoError(t, err)
	assert.Equal(t, stream.TypeFigure, events[0].Type)
	assert.Equal(t, 1, seg.calls)
}

func TestSubfigureMissingLabelContinues(t *testing.T) {
	fake := &fakeLLM{chunks: []string{"ok"}}
	seg := &fakeSegmenter{labels: []string{"a", "b"}}
	events, _, _, err := run(t, NewSubfigureAgent(newDeps(t, fake, seg)), testSession(), queryPayload("compare Figure 2e and Figure 1"))
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(events), 3)
	var statuses []string
	var figures []string
	for _, ev := range events {
		switch ev.Type {
		case stream.TypeStatus:
			statuses = append(statuses, ev.Content)
		case stream.TypeFigure:
			figures = append(figures, ev.Content)
		}
	}
	assert.Contains(t, strings.Join(statuses, "\n"), "Figure 2e not found (available: a, b)")
	assert.Equal(t, []string{"Figure 1"}, figures)
}

func TestSubfigureNothingResolved(t *testing.T) {
	fake := &fakeLLM{chunks: []string{"never"}}
	events, _, _, err := run(t, NewSubfigureAgent(newDeps(t, fake, &fakeSegmenter{})), testSession(), queryPayload("Figure 9"))
	assert.ErrorIs(t, err, ErrNoFigureAvailable)
	require.Len(t, events, 1)
	assert.Equal(t, stream.TypeStatus, events[0].Type)
	assert.Empty(t, fake.visionImages)
}

func TestSubfigureAllFigures(t *testing.T) {
	fake := &fakeLLM{chunks: []string{"two figures"}}
	events, _, _, err := run(t, NewSubfigureAgent(newDeps(t, fake, nil)), testSession(), queryPayload("describe all figures"))
	require.NoError(t, err)

	assert.Equal(t, []stream.Type{stream.TypeFigure, stream.TypeFigure, stream.TypeAnswerChunk}, types(events))
	assert.Equal(t, [][]string{{"/tmp/figure_1.png", "/tmp/figure_2.png"}}, fake.visionImages)
}

func TestSubfigureVisionTimeoutDegrades(t *testing.T) {
	fake := &fakeLLM{chunks: []string{"From the caption, ", "loss falls."}, visionBlock: true}
	deps := newDeps(t, fake, nil)
	deps.Config.VisionTimeout = 20 * time.Millisecond

	events, em, _, err := run(t, NewSubfigureAgent(deps), testSession(), queryPayload("Figure 2"))
	require.NoError(t, err)

	assert.Equal(t, []stream.Type{stream.TypeFigure, stream.TypeStatus, stream.TypeAnswerChunk, stream.TypeAnswerChunk}, types(events))
	assert.Contains(t, events[1].Content, "timed out")
	assert.Equal(t, "From the caption, loss falls.", em.AnswerText())
}

func TestSubfigureRequiresDocument(t *testing.T) {
	_, _, _, err := run(t, NewSubfigureAgent(newDeps(t, &fakeLLM{}, nil)), &Session{}, queryPayload("Figure 2a"))
	var routingErr *router.RoutingError
	assert.True(t, errors.As(err, &routingErr))
}

func TestGenerationPPT(t *testing.T) {
	fake := &fakeLLM{outline: `Sure! {"title": "Protein Transformer", "subtitle": "Journal club", "sections": ["Background", "Method", "Results", "Conclusion"]}`}
	agent := NewGenerationAgent(router.IntentPPT, newDeps(t, fake, nil))

	events, _, res, err := run(t, agent, testSession(), Payload{
		Query:    "generate",
		Generate: &GenerateOptions{IncludeFigures: true, MaxFigures: 10},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Artifact)
	assert.FileExists(t, res.Artifact.Path)
	assert.NotEmpty(t, res.Summary)

	var stages, drafting []string
	downloads := 0
	for _, ev := range events {
		switch ev.Type {
		case stream.TypeThinking:
			drafting = append(drafting, ev.Content)
		case stream.TypeProgress:
			stages = append(stages, ev.Data.(stream.ProgressData).Stage)
		case stream.TypeDownload:
			downloads++
			assert.Equal(t, "/api/download?token=tok-1", ev.DownloadURL)
			assert.NotEmpty(t, ev.FilePath)
		case stream.TypeAnswerChunk, stream.TypeComplete, stream.TypeError:
			t.Fatalf("unexpected %s event", ev.Type)
		}
	}
	assert.Equal(t, []string{StageOutline, StageDrafting, StageFigures, StageExport}, stages)
	assert.Equal(t, 1, downloads)
	assert.Equal(t, stream.TypeDownload, events[len(events)-1].Type)
	require.NotEmpty(t, drafting)
	assert.Contains(t, drafting[0], "Background")
}

func TestGenerationUsesConversation(t *testing.T) {
	fake := &fakeLLM{outline: `{"title": "Discussed", "sections": ["Warmup", "Loss"]}`}
	agent := NewGenerationAgent(router.IntentPPT, newDeps(t, fake, nil))

	sess := testSession()
	sess.History = []llm.Message{
		{Role: "user", Content: "Why does the validation loss drop after warmup?"},
		{Role: "assistant", Content: "Warmup stabilises early optimisation."},
	}
	_, _, _, err := run(t, agent, sess, queryPayload("make slides of what we discussed"))
	require.NoError(t, err)

	require.NotEmpty(t, fake.prompts)
	outlinePrompt := fake.prompts[0]
	assert.Contains(t, outlinePrompt, "### CONVERSATION")
	assert.Contains(t, outlinePrompt, "user: Why does the validation loss drop after warmup?")
	assert.Contains(t, outlinePrompt, "assistant: Warmup stabilises early optimisation.")
	assert.Contains(t, fake.prompts[1], "### CONVERSATION")
}

func TestGenerationWithoutConversation(t *testing.T) {
	fake := &fakeLLM{outline: `{"title": "Paper", "sections": ["Intro"]}`}
	agent := NewGenerationAgent(router.IntentReport, newDeps(t, fake, nil))

	_, _, _, err := run(t, agent, testSession(), Payload{Generate: &GenerateOptions{}})
	require.NoError(t, err)
	require.NotEmpty(t, fake.prompts)
	assert.NotContains(t, fake.prompts[0], "### CONVERSATION")
}

func TestGenerationReportDefaultOutline(t *testing.T) {
	fake := &fakeLLM{outline: "I cannot produce JSON"}
	agent := NewGenerationAgent(router.IntentReport, newDeps(t, fake, nil))

	_, _, res, err := run(t, agent, testSession(), queryPayload("写一份总结报告"))
	require.NoError(t, err)
	assert.Contains(t, res.Summary, "阅读报告")
	assert.Equal(t, document.KindReport, res.Artifact.Kind)
}

func TestGenerationFigureFocusedSegments(t *testing.T) {
	fake := &fakeLLM{outline: `{"title": "Fig 2", "sections": ["Intro", "Results", "Conclusion"]}`}
	seg := &fakeSegmenter{labels: []string{"a", "b", "c"}}
	agent := NewGenerationAgent(router.IntentReport, newDeps(t, fake, seg))

	_, _, res, err := run(t, agent, testSession(), queryPayload("生成Figure 2的报告"))
	require.NoError(t, err)
	assert.Equal(t, 1, seg.calls)
	// three drafted sections plus one figure section
	assert.Contains(t, res.Summary, "4 sections")
}

func TestGenerationBuildErrorIsTerminal(t *testing.T) {
	fake := &fakeLLM{outline: `{"title": "", "sections": []}`}
	deps := newDeps(t, fake, nil)
	deps.Builder = failingBuilder{}

	_, _, _, err := run(t, NewGenerationAgent(router.IntentPPT, deps), testSession(), Payload{Generate: &GenerateOptions{}})
	var buildErr *document.BuildError
	assert.True(t, errors.As(err, &buildErr))
}

type failingBuilder struct{}

func (failingBuilder) Build(ctx context.Context, kind document.Kind, content document.Content, opts document.Options) (*document.Artifact, error) {
	return nil, &document.BuildError{Kind: kind, Reason: "disk full"}
}

func TestRelevantPages(t *testing.T) {
	doc := testSession().Document

	got := relevantPages(doc, "validation loss", 1, 100)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Page)

	// nothing overlaps: document head
	got = relevantPages(doc, "xyzzy", 2, 100)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Page)
	assert.Equal(t, 2, got[1].Page)
}

func TestTokenizeCJK(t *testing.T) {
	counts := tokenize("损失函数 loss, the Loss")
	assert.Equal(t, 2, counts["loss"])
	assert.Equal(t, 1, counts["损失"])
	assert.Equal(t, 1, counts["函数"])
	_, stop := counts["the"]
	assert.False(t, stop)
}
