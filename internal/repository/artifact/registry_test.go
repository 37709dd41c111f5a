package artifact

import (
	"context"
	"testing"
	"time"

	"literature-agent-be/pkg/document"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndResolveInMemory(t *testing.T) {
	reg := NewRegistry(nil, time.Hour, nil)
	a := &document.Artifact{Path: "/tmp/out/deck.md", Name: "deck.md", Kind: document.KindSlideDeck, Format: "marp"}

	token, err := reg.Register(context.Background(), a)
	require.NoError(t, err)
	assert.Len(t, token, 36)

	got, err := reg.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	other, err := reg.Register(context.Background(), a)
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestResolveUnknownToken(t *testing.T) {
	reg := NewRegistry(nil, time.Hour, nil)

	_, err := reg.Resolve(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrArtifactNotFound)
	_, err = reg.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestTokensExpire(t *testing.T) {
	reg := NewRegistry(nil, 20*time.Millisecond, nil)
	token, err := reg.Register(context.Background(), &document.Artifact{Path: "/tmp/r.md"})
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)
	_, err = reg.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestRegisterRejectsEmpty(t *testing.T) {
	reg := NewRegistry(nil, time.Hour, nil)
	_, err := reg.Register(context.Background(), &document.Artifact{})
	assert.Error(t, err)
}
