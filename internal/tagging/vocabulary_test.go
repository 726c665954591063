package tagging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVocabulary = `
max_tags: 4
default_language: en
languages:
  en:
    prompt: "tag it"
  pt:
    prompt: "etiquete"
`

func TestLoadVocabulary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testVocabulary), 0644))

	v, err := LoadVocabulary(path)
	require.NoError(t, err)
	assert.Equal(t, 4, v.MaxTags)

	prompt, lang := v.Prompt("pt-BR")
	assert.Equal(t, "etiquete", prompt)
	assert.Equal(t, "pt", lang)

	prompt, lang = v.Prompt("ja")
	assert.Equal(t, "tag it", prompt)
	assert.Equal(t, "en", lang)
}

func TestParseVocabulary_Defaults(t *testing.T) {
	v, err := ParseVocabulary([]byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxTags, v.MaxTags)
	assert.Contains(t, v.Languages, "en")
}

func TestParseVocabulary_Errors(t *testing.T) {
	_, err := ParseVocabulary([]byte("languages: [oops"))
	assert.Error(t, err)

	_, err = ParseVocabulary([]byte("default_language: xx\nlanguages:\n  en:\n    prompt: hi\n"))
	assert.Error(t, err)

	_, err = LoadVocabulary(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
