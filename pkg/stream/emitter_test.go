package stream

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(ch chan Event) []Event {
	close(ch)
	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestEmitterSingleTerminal(t *testing.T) {
	ch := make(chan Event, 10)
	em := NewEmitter(context.Background(), ch, nil)

	assert.True(t, em.Status("working"))
	assert.True(t, em.Chunk("hello "))
	assert.True(t, em.Chunk("world"))
	assert.True(t, em.Complete("qa"))
	assert.False(t, em.Chunk("late"))
	assert.False(t, em.Error("late failure"))
	assert.True(t, em.Terminated())

	events := drain(ch)
	require.Len(t, events, 4)
	assert.Equal(t, TypeComplete, events[3].Type)

	terminals := 0
	for _, ev := range events {
		if ev.Type.IsTerminal() {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
	assert.Equal(t, "hello world", em.AnswerText())
}

func TestEmitterDeduplicatesFigures(t *testing.T) {
	ch := make(chan Event, 10)
	em := NewEmitter(context.Background(), ch, nil)

	fig := FigureData{Label: "Figure 2a", Figure: 2, Subfigure: "a", ImagePath: "/tmp/figure_2a.png"}
	assert.True(t, em.Figure(fig))
	assert.True(t, em.Figure(fig))
	assert.True(t, em.Figure(FigureData{Label: "Figure 3", Figure: 3}))

	events := drain(ch)
	require.Len(t, events, 2)
	assert.Equal(t, "Figure 2a", events[0].Content)
	assert.Equal(t, "/tmp/figure_2a.png", events[0].FilePath)
}

func TestEmitterStopsWhenConsumerLeaves(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan Event) // unbuffered, nobody reading
	em := NewEmitter(ctx, ch, nil)

	cancel()
	assert.False(t, em.Chunk("never delivered"))
	assert.False(t, em.Terminated())
	assert.Empty(t, em.AnswerText())
}

func TestEmitterCompleteCarriesDownload(t *testing.T) {
	ch := make(chan Event, 10)
	em := NewEmitter(context.Background(), ch, nil)

	em.Progress("outline", 1, 4, "Building outline")
	em.Download(DownloadData{Name: "slides.md", Kind: "ppt", Format: "marp", Token: "tok"}, "/api/download?token=tok", "/out/slides.md")
	em.Complete("ppt")

	events := drain(ch)
	require.Len(t, events, 3)
	progress, ok := events[0].Data.(ProgressData)
	require.True(t, ok)
	assert.Equal(t, 25, progress.Percent)

	assert.Equal(t, "/api/download?token=tok", events[1].DownloadURL)
	complete, ok := events[2].Data.(CompleteData)
	require.True(t, ok)
	require.NotNil(t, complete.Download)
	assert.Equal(t, "slides.md", complete.Download.Name)
}

func TestEventWireFormat(t *testing.T) {
	raw, err := json.Marshal(Event{Type: TypeAnswerChunk, Content: "hi"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"answer_chunk","content":"hi"}`, string(raw))

	raw, err = json.Marshal(Event{Type: TypeDownload, DownloadURL: "/d", FilePath: "/f"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"download","download_url":"/d","file_path":"/f"}`, string(raw))
}
