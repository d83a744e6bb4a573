package template

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dripsheet/dripsheet/internal/model"
)

func testStore() *FileStore {
	return NewFSStore(fstest.MapFS{
		"0_EN.txt": {Data: []byte("Hi {name},\n\nFirst note. Reply to {sender}.")},
		"1_EN.txt": {Data: []byte("Hi again {name}!")},
		"0_LV.txt": {Data: []byte("Sveiki, {name}!")},
	}, ".txt")
}

func TestKey(t *testing.T) {
	assert.Equal(t, "0_EN", Key(model.LanguageEN, 0))
	assert.Equal(t, "12_LV", Key(model.LanguageLV, 12))
}

func TestResolve(t *testing.T) {
	r := NewResolver(testStore())
	ctx := context.Background()

	body, err := r.Resolve(ctx, model.LanguageEN, 0, "Ana")
	require.NoError(t, err)
	assert.Equal(t, "Hi Ana,\n\nFirst note. Reply to {sender}.", body)

	body, err = r.Resolve(ctx, model.LanguageLV, 0, "Jānis")
	require.NoError(t, err)
	assert.Equal(t, "Sveiki, Jānis!", body)
}

func TestResolveIsDeterministic(t *testing.T) {
	r := NewResolver(testStore())
	ctx := context.Background()

	first, err := r.Resolve(ctx, model.LanguageEN, 1, "Bo")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := r.Resolve(ctx, model.LanguageEN, 1, "Bo")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestResolveExhaustedCampaign(t *testing.T) {
	r := NewResolver(testStore())
	_, err := r.Resolve(context.Background(), model.LanguageEN, 2, "Ana")
	assert.ErrorIs(t, err, ErrTemplateNotFound)

	_, err = r.Resolve(context.Background(), model.LanguageLV, 1, "Ana")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestRenderEmptyName(t *testing.T) {
	assert.Equal(t, "Hello ,", Render("Hello {name},", ""))
	assert.Equal(t, "No placeholders", Render("No placeholders", "Ana"))
}

func TestFileStoreRejectsPathKeys(t *testing.T) {
	_, err := testStore().Load(context.Background(), "../0_EN")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTemplateNotFound)
}

func TestFileStoreHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testStore().Load(ctx, "0_EN")
	assert.ErrorIs(t, err, context.Canceled)
}
