package i18n

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslator(t *testing.T) {
	translator, err := newTranslatorFromBytes([]byte("greeting: Xin chào\nwelcome_user: Xin chào %s\ncountry_fra: Pháp"))
	require.NoError(t, err)

	t.Run("should translate a simple key", func(t *testing.T) {
		assert.Equal(t, "Xin chào", translator.T("greeting"))
	})

	t.Run("should return key if not found", func(t *testing.T) {
		assert.Equal(t, "nonexistent_key", translator.T("nonexistent_key"))
	})

	t.Run("should format arguments correctly", func(t *testing.T) {
		assert.Equal(t, "Xin chào An", translator.T("welcome_user", "An"))
	})

	t.Run("should resolve country names", func(t *testing.T) {
		assert.Equal(t, "Pháp", translator.Country("FRA"))
		assert.Equal(t, "JPN", translator.Country("jpn"))
	})
}

func TestNewTranslator_FromFS(t *testing.T) {
	fsys := fstest.MapFS{"locales/xx.yaml": {Data: []byte("help: hi")}}

	tr, err := NewTranslator(fsys, "xx")
	require.NoError(t, err)
	assert.Equal(t, "hi", tr.T("help"))
	assert.Equal(t, "xx", tr.Lang())

	_, err = NewTranslator(fsys, "zz")
	assert.Error(t, err)
}

func TestEmbeddedLocalesShareKeys(t *testing.T) {
	vi, err := NewTranslator(LocalesFS, "vi")
	require.NoError(t, err)
	en, err := NewTranslator(LocalesFS, "en")
	require.NoError(t, err)

	for key := range vi.translations {
		_, ok := en.translations[key]
		assert.True(t, ok, "en locale misses %q", key)
	}
	assert.Equal(t, "Pháp", vi.Country("fra"))
	assert.Equal(t, "France", en.Country("fra"))
}
