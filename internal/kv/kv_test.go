package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type prefs struct {
	Language string `json:"language"`
	Theme    string `json:"theme"`
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_PutGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, KeyLanguage, "it"))

	var lang string
	require.NoError(t, s.Get(ctx, KeyLanguage, &lang))
	assert.Equal(t, "it", lang)

	require.NoError(t, s.Put(ctx, KeyLanguage, "en"))
	require.NoError(t, s.Get(ctx, KeyLanguage, &lang))
	assert.Equal(t, "en", lang, "last write wins")
}

func TestStore_GetMissing(t *testing.T) {
	s := newStore(t)
	var p prefs
	assert.ErrorIs(t, s.Get(context.Background(), KeyAppState, &p), ErrNotFound)
}

func TestStore_PutMany(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	err := s.PutMany(ctx, map[string]any{
		KeyAppState:        prefs{Language: "en", Theme: "dark"},
		KeyCategoryBudgets: map[string]string{"Travel": "500.00"},
	})
	require.NoError(t, err)

	var p prefs
	require.NoError(t, s.Get(ctx, KeyAppState, &p))
	assert.Equal(t, prefs{Language: "en", Theme: "dark"}, p)

	var limits map[string]string
	require.NoError(t, s.Get(ctx, KeyCategoryBudgets, &limits))
	assert.Equal(t, "500.00", limits["Travel"])
}

func TestStore_Delete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, KeyBudgets, []int{1, 2}))
	require.NoError(t, s.Delete(ctx, KeyBudgets))

	var out []int
	assert.ErrorIs(t, s.Get(ctx, KeyBudgets, &out), ErrNotFound)
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, KeyLanguage, "hi"))
	require.NoError(t, s.Close())

	s, err = Open(dir, nil)
	require.NoError(t, err)
	defer s.Close()

	var lang string
	require.NoError(t, s.Get(ctx, KeyLanguage, &lang))
	assert.Equal(t, "hi", lang)
}
