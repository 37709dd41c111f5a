package figure

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFigures() []Figure {
	return []Figure{
		NewFigure(2, "/tmp/figure_2.png", "Results", 4),
		NewFigure(1, "/tmp/figure_1.png", "Overview", 2),
	}
}

func TestStoreLookup(t *testing.T) {
	s := NewStore(testFigures())

	figs := s.Figures()
	require.Len(t, figs, 2)
	assert.Equal(t, 1, figs[0].Number)
	assert.Equal(t, "Figure 2", figs[1].Label)

	_, ok := s.Figure(3)
	assert.False(t, ok)
	assert.False(t, s.Segmented(1))
}

func TestEnsureSegmentedRunsOnce(t *testing.T) {
	s := NewStore(testFigures())
	var calls int32
	segment := func(ctx context.Context, fig Figure) ([]Subfigure, error) {
		atomic.AddInt32(&calls, 1)
		return []Subfigure{
			{Label: "a", Region: image.Rect(0, 0, 10, 10), Confidence: 0.9, Method: MethodModel},
			{Label: "b", Region: image.Rect(10, 0, 20, 10), Confidence: 0.8, Method: MethodModel},
		}, nil
	}

	first, computed, err := s.EnsureSegmented(context.Background(), 2, segment)
	require.NoError(t, err)
	assert.True(t, computed)

	second, computed, err := s.EnsureSegmented(context.Background(), 2, segment)
	require.NoError(t, err)
	assert.False(t, computed)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 2, first[0].Parent)

	sub, ok := s.Subfigure(2, "b")
	require.True(t, ok)
	assert.Equal(t, "Figure 2b", sub.FullLabel())
}

func TestEnsureSegmentedConcurrentCallers(t *testing.T) {
	s := NewStore(testFigures())
	var calls int32
	release := make(chan struct{})
	segment := func(ctx context.Context, fig Figure) ([]Subfigure, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []Subfigure{{Label: "a"}}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.EnsureSegmented(context.Background(), 1, segment)
			assert.NoError(t, err)
		}()
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, s.Segmented(1))
	subs, _ := s.Subfigures(1)
	assert.Len(t, subs, 1)
}

func TestEnsureSegmentedEmptyResultIsCached(t *testing.T) {
	s := NewStore(testFigures())
	var calls int
	segment := func(ctx context.Context, fig Figure) ([]Subfigure, error) {
		calls++
		return nil, nil
	}

	for i := 0; i < 3; i++ {
		subs, _, err := s.EnsureSegmented(context.Background(), 1, segment)
		require.NoError(t, err)
		assert.Empty(t, subs)
	}
	assert.Equal(t, 1, calls)
	assert.True(t, s.Segmented(1))
}

func TestEnsureSegmentedFailureNotCached(t *testing.T) {
	s := NewStore(testFigures())
	boom := errors.New("cannot read image")
	calls := 0
	segment := func(ctx context.Context, fig Figure) ([]Subfigure, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return []Subfigure{{Label: "a"}}, nil
	}

	_, _, err := s.EnsureSegmented(context.Background(), 1, segment)
	assert.ErrorIs(t, err, boom)
	assert.False(t, s.Segmented(1))

	subs, computed, err := s.EnsureSegmented(context.Background(), 1, segment)
	require.NoError(t, err)
	assert.True(t, computed)
	assert.Len(t, subs, 1)
}

func TestEnsureSegmentedUnknownFigure(t *testing.T) {
	s := NewStore(testFigures())
	_, _, err := s.EnsureSegmented(context.Background(), 9, func(ctx context.Context, fig Figure) ([]Subfigure, error) {
		t.Fatal("segment must not run for unknown figure")
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrFigureNotFound)
}

func TestDedupeDropsDuplicateLabels(t *testing.T) {
	out := dedupe(3, []Subfigure{{Label: "a"}, {Label: "a"}, {Label: "b"}})
	require.Len(t, out, 2)
	assert.Equal(t, 3, out[1].Parent)
}
